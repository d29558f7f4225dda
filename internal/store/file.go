package store

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/vinayprograms/workbrief/internal/brief"
)

// Record types in a session log.
const (
	RecordTypeFindings     = "findings"
	RecordTypeCorrelations = "correlations"
)

// LogRecord is one line of a session log.
type LogRecord struct {
	RecordType   string              `json:"_type"`
	WrittenAt    time.Time           `json:"written_at"`
	Findings     *brief.Findings     `json:"findings,omitempty"`
	Correlations []brief.Correlation `json:"correlations,omitempty"`
}

// FileStore keeps one append-only JSONL log per session under dir. Reads
// replay the log so the last write for a key wins.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates a file-based store rooted at dir.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("file store: directory is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(session string) (string, error) {
	if session == "" || strings.ContainsAny(session, `/\`) || session == "." || session == ".." {
		return "", fmt.Errorf("invalid session id: %q", session)
	}
	return filepath.Join(s.dir, session+".jsonl"), nil
}

// WriteFindings appends f to the session log.
func (s *FileStore) WriteFindings(ctx context.Context, session string, f *brief.Findings) error {
	if err := checkFindings(session, f); err != nil {
		return err
	}
	return s.append(session, LogRecord{RecordType: RecordTypeFindings, Findings: f})
}

// WriteCorrelations appends cs to the session log.
func (s *FileStore) WriteCorrelations(ctx context.Context, session string, cs []brief.Correlation) error {
	if cs == nil {
		cs = []brief.Correlation{}
	}
	return s.append(session, LogRecord{RecordType: RecordTypeCorrelations, Correlations: cs})
}

// ReadFindings returns the latest findings for (session, domain).
func (s *FileStore) ReadFindings(ctx context.Context, session string, domain brief.Domain) (*brief.Findings, error) {
	st, err := s.load(session)
	if err != nil {
		return nil, err
	}
	f, ok := st.findings[domain]
	if !ok {
		return nil, ErrNotFound
	}
	return f, nil
}

// ReadAllFindings returns the latest findings of every domain in session.
func (s *FileStore) ReadAllFindings(ctx context.Context, session string) ([]*brief.Findings, error) {
	st, err := s.load(session)
	if err != nil {
		return nil, err
	}
	out := make([]*brief.Findings, 0, len(st.findings))
	for _, f := range st.findings {
		out = append(out, f)
	}
	sortByDomain(out)
	return out, nil
}

// ReadCorrelations returns the latest correlations of session.
func (s *FileStore) ReadCorrelations(ctx context.Context, session string) ([]brief.Correlation, error) {
	st, err := s.load(session)
	if err != nil {
		return nil, err
	}
	if st.correlations == nil {
		return []brief.Correlation{}, nil
	}
	return st.correlations, nil
}

// Close is a no-op; every write is flushed immediately.
func (s *FileStore) Close() error { return nil }

func (s *FileStore) append(session string, record LogRecord) error {
	path, err := s.path(session)
	if err != nil {
		return err
	}
	record.WrittenAt = time.Now().UTC()
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open session log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write session log: %w", err)
	}
	return nil
}

type sessionState struct {
	findings     map[brief.Domain]*brief.Findings
	correlations []brief.Correlation
}

func (s *FileStore) load(session string) (*sessionState, error) {
	path, err := s.path(session)
	if err != nil {
		return nil, err
	}
	st := &sessionState{findings: make(map[brief.Domain]*brief.Findings)}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open session log: %w", err)
	}
	defer f.Close()

	// bufio.Reader rather than Scanner: findings lines have no length limit.
	reader := bufio.NewReader(f)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("error reading session log: %w", err)
		}
		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			if perr := st.apply(trimmed); perr != nil {
				return nil, perr
			}
		}
		if err == io.EOF {
			break
		}
	}
	return st, nil
}

func (st *sessionState) apply(line []byte) error {
	var record LogRecord
	if err := json.Unmarshal(line, &record); err != nil {
		return fmt.Errorf("failed to parse session log line: %w", err)
	}
	switch record.RecordType {
	case RecordTypeFindings:
		if record.Findings != nil {
			record.Findings.Normalize()
			st.findings[record.Findings.Domain] = record.Findings
		}
	case RecordTypeCorrelations:
		st.correlations = record.Correlations
		if st.correlations == nil {
			st.correlations = []brief.Correlation{}
		}
	}
	return nil
}
