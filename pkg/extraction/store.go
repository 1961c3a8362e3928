package extraction

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hanavoice/hana/pkg/errorsx"
	"github.com/hanavoice/hana/pkg/transcript"
)

// RequestKind classifies one schedulable request extracted from a call.
type RequestKind string

const (
	KindReminder RequestKind = "reminder"
	KindTodo     RequestKind = "todo"
	KindCalendar RequestKind = "calendar"
	KindCallBack RequestKind = "call_back"
)

// BatchStatus tracks the downstream lifecycle of a processed batch. The
// actuator that executes requests moves it from pending onward.
type BatchStatus string

const (
	StatusPending   BatchStatus = "pending"
	StatusCompleted BatchStatus = "completed"
	StatusFailed    BatchStatus = "failed"
)

// ExtractedRequest is one typed request pulled from a transcript.
type ExtractedRequest struct {
	Type     RequestKind `json:"type"`
	Content  string      `json:"content"`
	Datetime string      `json:"datetime,omitempty"`
}

// ProcessedBatch is one call's worth of extracted requests, appended to the
// pending-request store.
type ProcessedBatch struct {
	LogFile     string             `json:"log_file"`
	ProcessedAt time.Time          `json:"processed_at"`
	Requests    []ExtractedRequest `json:"requests"`
	Status      BatchStatus        `json:"status"`
}

const pendingFileName = "requests_processed.json"

// Store persists call records (one file per call, keyed by the creation
// timestamp) and the shared pending-request file. The pending file uses
// read-modify-rewrite semantics and assumes this process is its only
// writer; the mutex serializes writers within the process.
type Store struct {
	dir string

	mu sync.Mutex
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// SaveCallRecord durably writes one call record and returns the storage
// key (the file name) used to correlate later batches with the raw log.
func (s *Store) SaveCallRecord(rec transcript.CallRecord) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", errorsx.Wrap(err, errorsx.ReasonStorageWrite)
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", errorsx.Wrap(err, errorsx.ReasonStorageWrite)
	}
	base := rec.Timestamp.Format("2006-01-02_15-04-05")
	name := base + ".json"
	// Two calls finishing within the same second would collide on the
	// timestamp key; disambiguate with a numeric suffix.
	for i := 2; ; i++ {
		if _, err := os.Stat(filepath.Join(s.dir, name)); os.IsNotExist(err) {
			break
		}
		name = fmt.Sprintf("%s_%d.json", base, i)
	}
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", errorsx.Wrap(err, errorsx.ReasonStorageWrite)
	}
	return name, nil
}

// AppendBatch loads the pending-request file, appends the batch, and
// rewrites the whole file.
func (s *Store) AppendBatch(batch ProcessedBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return errorsx.Wrap(err, errorsx.ReasonStorageWrite)
	}
	batches, err := s.loadBatches()
	if err != nil {
		return err
	}
	batches = append(batches, batch)
	data, err := json.MarshalIndent(batches, "", "  ")
	if err != nil {
		return errorsx.Wrap(err, errorsx.ReasonStorageWrite)
	}
	if err := os.WriteFile(s.pendingPath(), data, 0o644); err != nil {
		return errorsx.Wrap(err, errorsx.ReasonStorageWrite)
	}
	return nil
}

// LoadBatches returns all batches in the pending-request store, oldest
// first. An absent store reads as empty.
func (s *Store) LoadBatches() ([]ProcessedBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadBatches()
}

func (s *Store) loadBatches() ([]ProcessedBatch, error) {
	data, err := os.ReadFile(s.pendingPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonStorageRead)
	}
	var batches []ProcessedBatch
	if err := json.Unmarshal(data, &batches); err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonStorageRead)
	}
	return batches, nil
}

func (s *Store) pendingPath() string {
	return filepath.Join(s.dir, pendingFileName)
}
