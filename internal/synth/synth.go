// Package synth turns findings and correlations into a brief.
package synth

import (
	"context"
	"fmt"
	"time"

	"github.com/vinayprograms/agentkit/logging"

	"github.com/vinayprograms/workbrief/internal/brief"
)

// Input is everything a strategy may use to build a brief.
type Input struct {
	Session      string
	BriefID      string
	At           time.Time
	Set          brief.Set
	Correlations []brief.Correlation
}

// Strategy synthesizes a brief.
type Strategy interface {
	Name() string
	Synthesize(ctx context.Context, in Input) (*brief.Brief, error)
}

type fallback struct {
	primary, secondary Strategy
	logger             *logging.Logger
}

// WithFallback returns a strategy that runs secondary whenever primary
// fails.
func WithFallback(primary, secondary Strategy) Strategy {
	return &fallback{
		primary:   primary,
		secondary: secondary,
		logger:    logging.New().WithComponent("synth"),
	}
}

func (f *fallback) Name() string {
	return f.primary.Name() + "+" + f.secondary.Name()
}

func (f *fallback) Synthesize(ctx context.Context, in Input) (*brief.Brief, error) {
	b, err := f.primary.Synthesize(ctx, in)
	if err == nil {
		return b, nil
	}
	f.logger.Warn("primary synthesis failed, using fallback", map[string]interface{}{
		"primary":   f.primary.Name(),
		"secondary": f.secondary.Name(),
		"error":     err.Error(),
	})
	b, err2 := f.secondary.Synthesize(ctx, in)
	if err2 != nil {
		return nil, fmt.Errorf("%s: %v; %s: %w", f.primary.Name(), err, f.secondary.Name(), err2)
	}
	return b, nil
}
