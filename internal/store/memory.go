package store

import (
	"context"
	"sync"

	"github.com/vinayprograms/workbrief/internal/brief"
)

type findingsKey struct {
	session string
	domain  brief.Domain
}

// MemoryStore keeps records in process memory. Values are stored encoded so
// callers never share mutable state with the store.
type MemoryStore struct {
	mu           sync.RWMutex
	findings     map[findingsKey][]byte
	correlations map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		findings:     make(map[findingsKey][]byte),
		correlations: make(map[string][]byte),
	}
}

// WriteFindings stores f under (session, f.Domain).
func (s *MemoryStore) WriteFindings(ctx context.Context, session string, f *brief.Findings) error {
	if err := checkFindings(session, f); err != nil {
		return err
	}
	data, err := encodeFindings(f)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findings[findingsKey{session, f.Domain}] = data
	return nil
}

// ReadFindings returns the findings for (session, domain).
func (s *MemoryStore) ReadFindings(ctx context.Context, session string, domain brief.Domain) (*brief.Findings, error) {
	s.mu.RLock()
	data, ok := s.findings[findingsKey{session, domain}]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return decodeFindings(data)
}

// ReadAllFindings returns every findings record of session.
func (s *MemoryStore) ReadAllFindings(ctx context.Context, session string) ([]*brief.Findings, error) {
	s.mu.RLock()
	var raw [][]byte
	for k, data := range s.findings {
		if k.session == session {
			raw = append(raw, data)
		}
	}
	s.mu.RUnlock()

	out := make([]*brief.Findings, 0, len(raw))
	for _, data := range raw {
		f, err := decodeFindings(data)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	sortByDomain(out)
	return out, nil
}

// WriteCorrelations replaces the correlations of session.
func (s *MemoryStore) WriteCorrelations(ctx context.Context, session string, cs []brief.Correlation) error {
	data, err := encodeCorrelations(cs)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.correlations[session] = data
	return nil
}

// ReadCorrelations returns the correlations of session.
func (s *MemoryStore) ReadCorrelations(ctx context.Context, session string) ([]brief.Correlation, error) {
	s.mu.RLock()
	data, ok := s.correlations[session]
	s.mu.RUnlock()
	if !ok {
		return []brief.Correlation{}, nil
	}
	return decodeCorrelations(data)
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
