// Package workers implements the per-domain specialist workers.
package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/vinayprograms/agentkit/llm"
	"github.com/vinayprograms/agentkit/logging"
	"github.com/vinayprograms/agentkit/telemetry"
	"go.opentelemetry.io/otel/attribute"

	"github.com/vinayprograms/workbrief/internal/brief"
	"github.com/vinayprograms/workbrief/internal/store"
)

// Mode selects how a worker analyses its payload.
type Mode string

const (
	ModeDeep Mode = "deep"
	ModeFast Mode = "fast"
)

// ParseMode parses a mode name. The empty string means fast.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeDeep:
		return ModeDeep, nil
	case ModeFast, "":
		return ModeFast, nil
	}
	return "", fmt.Errorf("unknown mode: %s", s)
}

// WorkerFailure reports a worker that produced no findings.
type WorkerFailure struct {
	Domain brief.Domain
	Err    error
}

func (e *WorkerFailure) Error() string {
	return fmt.Sprintf("worker %s failed: %v", e.Domain, e.Err)
}

func (e *WorkerFailure) Unwrap() error { return e.Err }

// Worker produces one findings record per session for its domain.
type Worker interface {
	Domain() brief.Domain
	Run(ctx context.Context, session, user string) error
}

// Specialist is the Worker for one domain.
type Specialist struct {
	domain        brief.Domain
	fetcher       Fetcher
	store         store.SessionStore
	mode          Mode
	provider      llm.Provider
	maxIterations int
	now           func() time.Time
	logger        *logging.Logger
}

// Option configures a Specialist.
type Option func(*Specialist)

// WithDeep enables deep mode with provider. maxIterations <= 0 uses the
// loop default.
func WithDeep(provider llm.Provider, maxIterations int) Option {
	return func(s *Specialist) {
		if provider == nil {
			return
		}
		s.mode = ModeDeep
		s.provider = provider
		s.maxIterations = maxIterations
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Specialist) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a specialist for domain.
func New(domain brief.Domain, fetcher Fetcher, st store.SessionStore, opts ...Option) *Specialist {
	s := &Specialist{
		domain:  domain,
		fetcher: fetcher,
		store:   st,
		mode:    ModeFast,
		now:     time.Now,
		logger:  logging.New().WithComponent("worker." + string(domain)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Domain returns the worker's domain.
func (s *Specialist) Domain() brief.Domain { return s.domain }

// Mode returns the configured mode.
func (s *Specialist) Mode() Mode { return s.mode }

// Run analyses the domain for user and writes findings for session. A
// returned error is always a *WorkerFailure and means nothing was written.
func (s *Specialist) Run(ctx context.Context, session, user string) (err error) {
	tracer := telemetry.GetTracer()
	ctx, span := tracer.StartSpan(ctx, "worker."+string(s.domain))
	span.SetAttributes(
		attribute.String("worker.domain", string(s.domain)),
		attribute.String("worker.mode", string(s.mode)),
	)
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = &WorkerFailure{Domain: s.domain, Err: fmt.Errorf("panic: %v", r)}
		}
		status := "complete"
		if err != nil {
			status = "failed"
			span.RecordError(err)
			s.logger.Error("worker failed", map[string]interface{}{
				"domain": string(s.domain),
				"error":  err.Error(),
			})
		}
		s.logger.PhaseComplete("WORKER", string(s.domain), string(s.mode), time.Since(start), status)
		span.End()
	}()
	s.logger.PhaseStart("WORKER", string(s.domain), string(s.mode))

	if s.fetcher == nil {
		return &WorkerFailure{Domain: s.domain, Err: fmt.Errorf("no fetcher configured")}
	}

	var cached *Payload
	if s.mode == ModeDeep {
		written, payload, derr := s.runDeep(ctx, session, user)
		if written {
			return nil
		}
		cached = payload
		fields := map[string]interface{}{"domain": string(s.domain)}
		if derr != nil {
			fields["error"] = derr.Error()
		}
		s.logger.Warn("deep analysis produced no findings, falling back to fast mode", fields)
	}

	return s.runFast(ctx, session, user, cached)
}

func (s *Specialist) runFast(ctx context.Context, session, user string, payload *Payload) error {
	if payload == nil {
		p, err := s.fetcher.Fetch(ctx, user)
		if err != nil {
			return &WorkerFailure{Domain: s.domain, Err: fmt.Errorf("fetch: %w", err)}
		}
		payload = p
	}
	f := Analyze(s.domain, payload, s.now())
	if err := s.store.WriteFindings(ctx, session, f); err != nil {
		return &WorkerFailure{Domain: s.domain, Err: fmt.Errorf("write findings: %w", err)}
	}
	s.logger.Info("findings written", map[string]interface{}{
		"domain":         string(s.domain),
		"mode":           string(ModeFast),
		"priority_items": len(f.PriorityItems),
		"action_items":   len(f.ActionItems),
	})
	return nil
}
