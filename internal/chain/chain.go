// Package chain keeps a local append-only hash chain that stamps the content
// hash of every finalized interview report. It gives downstream consumers a
// tamper-evidence check, not a consensus system: a single JSON file, each
// block carrying the SHA-256 of its predecessor.
package chain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Block is one link in the audit chain.
type Block struct {
	Index        int       `json:"index"`
	Timestamp    time.Time `json:"timestamp"`
	CandidateID  string    `json:"candidate_id,omitempty"`
	ReportHash   string    `json:"report_hash,omitempty"`
	PreviousHash string    `json:"previous_hash"`
	Hash         string    `json:"hash"`
}

// Chain is the on-disk hash registry. Appends are serialized; the file is
// rewritten atomically on every append.
type Chain struct {
	mu     sync.Mutex
	path   string
	blocks []Block
}

// Open loads the chain from disk or initializes it with a genesis block.
// A corrupt file is replaced with a fresh chain rather than failing startup.
func Open(path string) (*Chain, error) {
	c := &Chain{path: path}

	data, err := os.ReadFile(path)
	if err == nil && json.Unmarshal(data, &c.blocks) == nil && len(c.blocks) > 0 {
		return c, nil
	}
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read chain: %w", err)
	}

	genesis := Block{
		Index:        0,
		Timestamp:    time.Now().UTC(),
		PreviousHash: "0",
	}
	genesis.Hash = blockHash(genesis)
	c.blocks = []Block{genesis}

	if err := c.persist(); err != nil {
		return nil, err
	}
	return c, nil
}

// HashReport computes the canonical content hash for a report payload.
func HashReport(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// Append records a report hash for a candidate and returns the new block.
func (c *Chain) Append(candidateID, reportHash string) (Block, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.blocks[len(c.blocks)-1]
	block := Block{
		Index:        prev.Index + 1,
		Timestamp:    time.Now().UTC(),
		CandidateID:  candidateID,
		ReportHash:   reportHash,
		PreviousHash: prev.Hash,
	}
	block.Hash = blockHash(block)
	c.blocks = append(c.blocks, block)

	if err := c.persist(); err != nil {
		// Roll back the in-memory append so the file and memory agree.
		c.blocks = c.blocks[:len(c.blocks)-1]
		return Block{}, err
	}
	return block, nil
}

// Verify walks the chain and reports the first broken link, if any.
func (c *Chain) Verify() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, b := range c.blocks {
		if blockHash(b) != b.Hash {
			return fmt.Errorf("block %d: hash mismatch", i)
		}
		if i > 0 && b.PreviousHash != c.blocks[i-1].Hash {
			return fmt.Errorf("block %d: broken link", i)
		}
	}
	return nil
}

// Length returns the number of blocks including genesis.
func (c *Chain) Length() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.blocks)
}

// blockHash hashes every field except Hash itself, using the JSON encoding
// of the block for a stable byte layout.
func blockHash(b Block) string {
	b.Hash = ""
	data, _ := json.Marshal(b)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// persist writes the chain atomically (temp + rename). Caller holds c.mu.
func (c *Chain) persist() error {
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create chain dir: %w", err)
	}

	data, err := json.MarshalIndent(c.blocks, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal chain: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".chain-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp chain: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp chain: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp chain: %w", err)
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("commit chain: %w", err)
	}
	return nil
}
