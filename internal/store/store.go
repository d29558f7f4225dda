// Package store provides session-scoped persistence for findings and
// correlations.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/vinayprograms/workbrief/internal/brief"
)

// ErrNotFound is returned when a key has never been written.
var ErrNotFound = errors.New("not found")

// SessionStore is the intermediate store shared by workers, the correlation
// engine and the synthesizer. Findings are keyed by (session, domain) and
// correlations by session; a write replaces the previous value for its key.
// Implementations must be safe for concurrent use.
type SessionStore interface {
	WriteFindings(ctx context.Context, session string, f *brief.Findings) error
	ReadFindings(ctx context.Context, session string, domain brief.Domain) (*brief.Findings, error)
	// ReadAllFindings returns the findings written for session in canonical
	// domain order. A session with no writes yields an empty slice.
	ReadAllFindings(ctx context.Context, session string) ([]*brief.Findings, error)
	WriteCorrelations(ctx context.Context, session string, cs []brief.Correlation) error
	// ReadCorrelations returns an empty slice when none were written.
	ReadCorrelations(ctx context.Context, session string) ([]brief.Correlation, error)
	Close() error
}

// Driver names accepted by Open.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverFile   = "file"
)

// Open creates a store for driver. path is the database file for sqlite and
// the directory for file; it is ignored for memory.
func Open(driver, path string) (SessionStore, error) {
	switch driver {
	case "", DriverMemory:
		return NewMemoryStore(), nil
	case DriverSQLite:
		return NewSQLiteStore(path)
	case DriverFile:
		return NewFileStore(path)
	default:
		return nil, fmt.Errorf("unknown store driver: %s", driver)
	}
}

func checkFindings(session string, f *brief.Findings) error {
	if session == "" {
		return fmt.Errorf("session is required")
	}
	if f == nil {
		return fmt.Errorf("findings are required")
	}
	if !f.Domain.Valid() {
		return fmt.Errorf("unknown domain: %s", f.Domain)
	}
	return nil
}

func encodeFindings(f *brief.Findings) ([]byte, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal findings: %w", err)
	}
	return data, nil
}

func decodeFindings(data []byte) (*brief.Findings, error) {
	var f brief.Findings
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to unmarshal findings: %w", err)
	}
	f.Normalize()
	return &f, nil
}

func encodeCorrelations(cs []brief.Correlation) ([]byte, error) {
	if cs == nil {
		cs = []brief.Correlation{}
	}
	data, err := json.Marshal(cs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal correlations: %w", err)
	}
	return data, nil
}

func decodeCorrelations(data []byte) ([]brief.Correlation, error) {
	cs := []brief.Correlation{}
	if err := json.Unmarshal(data, &cs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal correlations: %w", err)
	}
	return cs, nil
}

func sortByDomain(fs []*brief.Findings) {
	sort.SliceStable(fs, func(i, j int) bool {
		ri, rj := fs[i].Domain.Rank(), fs[j].Domain.Rank()
		if ri != rj {
			return ri < rj
		}
		return fs[i].Domain < fs[j].Domain
	})
}
