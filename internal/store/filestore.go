package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/resumeintel/interview-backend/internal/model"
)

// ErrNotFound is returned when no record exists for a candidate.
var ErrNotFound = errors.New("summary record not found")

// FileStore persists finalized session summaries as flat JSON records keyed
// by candidate ID. Writes are atomic from the reader's perspective: the
// record is written to a temp file in the same directory and renamed into
// place, so a partially written record is never visible.
type FileStore struct {
	dir string
}

// NewFileStore creates the store directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(candidateID string) string {
	return filepath.Join(s.dir, candidateID+"_session.json")
}

// Write commits a finalized summary. The last write for a candidate wins;
// summaries are only ever written once per session, so overwrites happen
// only when the same candidate interviews again.
func (s *FileStore) Write(summary *model.SessionSummary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+summary.CandidateID+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp record: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp record: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp record: %w", err)
	}

	if err := os.Rename(tmpName, s.path(summary.CandidateID)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("commit record: %w", err)
	}
	return nil
}

// Read returns the persisted summary for a candidate or ErrNotFound.
func (s *FileStore) Read(candidateID string) (*model.SessionSummary, error) {
	data, err := os.ReadFile(s.path(candidateID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read record: %w", err)
	}

	var summary model.SessionSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return &summary, nil
}
