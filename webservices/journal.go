package webservices

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// JournalEntry is one submission record: enough to correlate a retry
// storm or reconstruct what was sent when, without persisting documents.
type JournalEntry struct {
	CorrelationID string    `json:"correlation_id"`
	Fingerprint   string    `json:"fingerprint"`
	CDC           string    `json:"cdc,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	Outcome       string    `json:"outcome"`
	Code          string    `json:"code,omitempty"`
	Attempts      int       `json:"attempts"`
}

// Journal is an append-only JSONL submission log: one JSON object per
// line. Safe for concurrent use.
type Journal struct {
	mu sync.Mutex
	w  io.Writer
	f  *os.File
}

// NewJournal writes entries to an arbitrary writer.
func NewJournal(w io.Writer) *Journal {
	return &Journal{w: w}
}

// OpenJournal opens (or creates) an append-only journal file.
func OpenJournal(path string) (*Journal, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	return &Journal{w: f, f: f}, nil
}

// Record appends one entry.
func (j *Journal) Record(e JournalEntry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("journal: marshal: %w", err)
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, err := j.w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("journal: write: %w", err)
	}
	return nil
}

// Close closes the underlying file, when the journal owns one.
func (j *Journal) Close() error {
	if j.f == nil {
		return nil
	}
	return j.f.Close()
}
