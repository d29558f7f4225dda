// Package coordinator runs the brief pipeline: concurrent workers, then
// correlation, then synthesis.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vinayprograms/agentkit/logging"
	"github.com/vinayprograms/agentkit/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/vinayprograms/workbrief/internal/brief"
	"github.com/vinayprograms/workbrief/internal/correlate"
	"github.com/vinayprograms/workbrief/internal/ids"
	"github.com/vinayprograms/workbrief/internal/store"
	"github.com/vinayprograms/workbrief/internal/synth"
	"github.com/vinayprograms/workbrief/internal/workers"
)

// ErrPipelineFailure means no synthesis strategy produced a brief. A
// degraded brief is returned alongside it.
var ErrPipelineFailure = errors.New("pipeline failure")

// ErrMissingUser is returned when GenerateBrief is called without a user.
var ErrMissingUser = errors.New("user is required")

// Default phase deadlines.
const (
	DefaultWorkerTimeout      = 90 * time.Second
	DefaultCorrelationTimeout = 60 * time.Second
	DefaultSynthesisTimeout   = 60 * time.Second
)

// Timeouts bounds each phase. Zero values use the defaults.
type Timeouts struct {
	Worker      time.Duration
	Correlation time.Duration
	Synthesis   time.Duration
}

func (t Timeouts) withDefaults() Timeouts {
	if t.Worker <= 0 {
		t.Worker = DefaultWorkerTimeout
	}
	if t.Correlation <= 0 {
		t.Correlation = DefaultCorrelationTimeout
	}
	if t.Synthesis <= 0 {
		t.Synthesis = DefaultSynthesisTimeout
	}
	return t
}

// Coordinator owns one pipeline configuration.
type Coordinator struct {
	workers  []workers.Worker
	engine   correlate.Engine
	strategy synth.Strategy
	store    store.SessionStore
	ids      ids.Provider
	now      func() time.Time
	timeouts Timeouts
	logger   *logging.Logger
	onEvent  EventFunc
}

// EventFunc receives pipeline events such as "worker_failed" or
// "synthesis_complete".
type EventFunc func(name string, data map[string]interface{})

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithIDs sets the id provider.
func WithIDs(p ids.Provider) Option {
	return func(c *Coordinator) {
		if p != nil {
			c.ids = p
		}
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// WithEvents sets the receiver of pipeline events.
func WithEvents(fn EventFunc) Option {
	return func(c *Coordinator) { c.onEvent = fn }
}

// WithTimeouts sets the phase deadlines.
func WithTimeouts(t Timeouts) Option {
	return func(c *Coordinator) { c.timeouts = t.withDefaults() }
}

// New creates a coordinator. A nil engine uses fast correlation and a nil
// strategy uses rule-based synthesis.
func New(ws []workers.Worker, engine correlate.Engine, strategy synth.Strategy, st store.SessionStore, opts ...Option) *Coordinator {
	c := &Coordinator{
		workers:  ws,
		engine:   engine,
		strategy: strategy,
		store:    st,
		ids:      ids.UUID{},
		now:      time.Now,
		timeouts: Timeouts{}.withDefaults(),
		logger:   logging.New().WithComponent("coordinator"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.engine == nil {
		c.engine = correlate.NewFast(st, c.ids)
	}
	if c.strategy == nil {
		c.strategy = synth.NewRules()
	}
	return c
}

// GenerateBrief runs every phase for user. An empty session gets a fresh
// id. Worker and correlation failures degrade the brief's content but are
// not errors; only a synthesis failure returns ErrPipelineFailure.
func (c *Coordinator) GenerateBrief(ctx context.Context, session, user string) (b *brief.Brief, err error) {
	if strings.TrimSpace(user) == "" {
		return nil, ErrMissingUser
	}
	if session == "" {
		session = c.ids.New("session")
	}

	tracer := telemetry.GetTracer()
	ctx, span := tracer.StartSpan(ctx, "brief.generate")
	span.SetAttributes(
		attribute.String("brief.session", session),
		attribute.Int("brief.workers", len(c.workers)),
	)
	start := time.Now()
	c.logger.ExecutionStart("brief:" + session)
	defer func() {
		status := "complete"
		if err != nil {
			status = "failed"
			span.RecordError(err)
		}
		c.logger.ExecutionComplete("brief:"+session, time.Since(start), status)
		span.End()
	}()

	failures := c.dispatch(ctx, session, user)
	span.SetAttributes(attribute.Int("brief.worker_failures", len(failures)))

	cs := c.correlate(ctx, session)

	set, rerr := c.readSet(ctx, session)
	if rerr != nil {
		c.logger.Error("failed to read findings", map[string]interface{}{
			"session": session,
			"error":   rerr.Error(),
		})
		set = brief.NewSet(nil)
	}

	in := synth.Input{
		Session:      session,
		BriefID:      c.ids.New("brief"),
		At:           c.now(),
		Set:          set,
		Correlations: cs,
	}
	b, serr := c.synthesize(ctx, in)
	if serr != nil {
		return synth.Degraded(in), fmt.Errorf("%w: %v", ErrPipelineFailure, serr)
	}
	return b, nil
}

// dispatch runs every worker concurrently and waits for all of them.
// Goroutines always return nil; each failure is kept in its own slot.
func (c *Coordinator) dispatch(ctx context.Context, session, user string) []*workers.WorkerFailure {
	results := make([]error, len(c.workers))
	var g errgroup.Group
	for i, w := range c.workers {
		g.Go(func() error {
			results[i] = c.runWorker(ctx, w, session, user)
			return nil
		})
	}
	_ = g.Wait()

	var failures []*workers.WorkerFailure
	for i, err := range results {
		if err == nil {
			continue
		}
		var wf *workers.WorkerFailure
		if !errors.As(err, &wf) {
			wf = &workers.WorkerFailure{Domain: c.workers[i].Domain(), Err: err}
		}
		failures = append(failures, wf)
		c.emit("worker_failed", map[string]interface{}{
			"session": session,
			"domain":  string(wf.Domain),
			"error":   wf.Err.Error(),
		})
		c.logger.Warn("worker produced no findings", map[string]interface{}{
			"session": session,
			"domain":  string(wf.Domain),
			"error":   wf.Err.Error(),
		})
	}
	return failures
}

// runWorker runs w under the worker deadline. A panic becomes a failure
// of w's domain.
func (c *Coordinator) runWorker(ctx context.Context, w workers.Worker, session, user string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("worker panic", map[string]interface{}{
				"session": session,
				"domain":  string(w.Domain()),
				"panic":   fmt.Sprintf("%v", r),
			})
			err = &workers.WorkerFailure{Domain: w.Domain(), Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	wctx, cancel := context.WithTimeout(ctx, c.timeouts.Worker)
	defer cancel()
	return w.Run(wctx, session, user)
}

// correlate runs the engine under its deadline. A failure yields no
// correlations.
func (c *Coordinator) correlate(ctx context.Context, session string) []brief.Correlation {
	ctx, span := telemetry.GetTracer().StartSpan(ctx, "correlate")
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Correlation)
	defer cancel()

	start := time.Now()
	c.logger.PhaseStart("CORRELATE", session, "")
	cs, err := c.engine.Correlate(ctx, session)
	if err != nil {
		span.RecordError(err)
		c.logger.PhaseComplete("CORRELATE", session, "", time.Since(start), "failed")
		c.logger.Warn("correlation failed, continuing without correlations", map[string]interface{}{
			"session": session,
			"error":   err.Error(),
		})
		c.emit("correlation_failed", map[string]interface{}{"session": session, "error": err.Error()})
		return []brief.Correlation{}
	}
	c.emit("correlation_complete", map[string]interface{}{"session": session, "count": len(cs)})
	span.SetAttributes(attribute.Int("correlate.count", len(cs)))
	c.logger.PhaseComplete("CORRELATE", session, "", time.Since(start), "complete")
	return cs
}

func (c *Coordinator) synthesize(ctx context.Context, in synth.Input) (*brief.Brief, error) {
	ctx, span := telemetry.GetTracer().StartSpan(ctx, "synthesize")
	defer span.End()
	span.SetAttributes(attribute.String("synthesize.strategy", c.strategy.Name()))
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Synthesis)
	defer cancel()

	start := time.Now()
	c.logger.PhaseStart("SYNTHESIZE", in.Session, c.strategy.Name())
	b, err := c.strategy.Synthesize(ctx, in)
	if err != nil {
		span.RecordError(err)
		c.logger.PhaseComplete("SYNTHESIZE", in.Session, c.strategy.Name(), time.Since(start), "failed")
		c.emit("synthesis_failed", map[string]interface{}{"session": in.Session, "strategy": c.strategy.Name(), "error": err.Error()})
		return nil, err
	}
	span.SetAttributes(attribute.Int("synthesize.sections", len(b.Sections)))
	c.logger.PhaseComplete("SYNTHESIZE", in.Session, c.strategy.Name(), time.Since(start), "complete")
	c.emit("synthesis_complete", map[string]interface{}{"session": in.Session, "strategy": c.strategy.Name(), "sections": len(b.Sections)})
	return b, nil
}

func (c *Coordinator) emit(name string, data map[string]interface{}) {
	if c.onEvent != nil {
		c.onEvent(name, data)
	}
}

func (c *Coordinator) readSet(ctx context.Context, session string) (brief.Set, error) {
	fs, err := c.store.ReadAllFindings(ctx, session)
	if err != nil {
		return nil, err
	}
	return brief.NewSet(fs), nil
}
