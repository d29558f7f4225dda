// Package ids provides injectable identifier generation.
package ids

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Provider generates identifiers. The prefix names the kind of record
// ("brief", "corr", "session"...).
type Provider interface {
	New(prefix string) string
}

// UUID generates random, globally unique ids.
type UUID struct{}

// New returns prefix-<uuid>.
func (UUID) New(prefix string) string {
	if prefix == "" {
		return uuid.NewString()
	}
	return prefix + "-" + uuid.NewString()
}

// Sequence generates predictable ids (prefix-1, prefix-2, ...), counted per
// prefix. The zero value is ready to use. Safe for concurrent use.
type Sequence struct {
	mu       sync.Mutex
	counters map[string]int
}

// NewSequence creates a sequence provider.
func NewSequence() *Sequence {
	return &Sequence{counters: make(map[string]int)}
}

// New returns the next id for prefix.
func (s *Sequence) New(prefix string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.counters == nil {
		s.counters = make(map[string]int)
	}
	s.counters[prefix]++
	return fmt.Sprintf("%s-%d", prefix, s.counters[prefix])
}
