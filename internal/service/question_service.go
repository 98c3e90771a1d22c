package service

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/resumeintel/interview-backend/internal/model"
)

// QuestionService loads interview question sets from flat JSON files. Each
// file holds either one question object or an array of them.
type QuestionService struct {
	dir string
	log zerolog.Logger
}

// NewQuestionService creates a QuestionService over the given directory.
func NewQuestionService(dir string, log zerolog.Logger) *QuestionService {
	return &QuestionService{
		dir: dir,
		log: log.With().Str("component", "question_service").Logger(),
	}
}

// Load returns all questions whose file name contains pattern (empty pattern
// matches everything), sorted by question ID so Q1, Q2, Q3 order holds.
func (s *QuestionService) Load(pattern string) ([]model.Question, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []model.Question{}, nil
		}
		return nil, err
	}

	var questions []model.Question
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		if pattern != "" && !strings.Contains(name, pattern) {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			s.log.Error().Err(err).Str("file", name).Msg("Skipping unreadable question file")
			continue
		}

		// A file may carry a single question or a set.
		var batch []model.Question
		if err := json.Unmarshal(data, &batch); err != nil {
			var single model.Question
			if err := json.Unmarshal(data, &single); err != nil {
				s.log.Error().Err(err).Str("file", name).Msg("Skipping malformed question file")
				continue
			}
			batch = []model.Question{single}
		}
		questions = append(questions, batch...)
	}

	sort.Slice(questions, func(i, j int) bool { return questions[i].ID < questions[j].ID })
	if questions == nil {
		questions = []model.Question{}
	}
	return questions, nil
}
