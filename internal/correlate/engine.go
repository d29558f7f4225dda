// Package correlate discovers relationships between the findings of
// different domains.
package correlate

import (
	"context"
	"fmt"
	"sync"

	"github.com/vinayprograms/agentkit/llm"
	"github.com/vinayprograms/agentkit/logging"

	"github.com/vinayprograms/workbrief/internal/brief"
	"github.com/vinayprograms/workbrief/internal/executor"
	"github.com/vinayprograms/workbrief/internal/ids"
	"github.com/vinayprograms/workbrief/internal/store"
)

// Tool names offered to the deep engine.
const (
	ToolReadAllFindings   = "read_all_findings"
	ToolWriteCorrelations = "write_correlations"
)

// Engine correlates the findings of a session and stores the result.
type Engine interface {
	Correlate(ctx context.Context, session string) ([]brief.Correlation, error)
}

// Fast applies the deterministic rules.
type Fast struct {
	store  store.SessionStore
	ids    ids.Provider
	logger *logging.Logger
}

// NewFast creates a rule-based engine.
func NewFast(st store.SessionStore, idp ids.Provider) *Fast {
	if idp == nil {
		idp = ids.UUID{}
	}
	return &Fast{
		store:  st,
		ids:    idp,
		logger: logging.New().WithComponent("correlate"),
	}
}

// Correlate reads every findings record of session, detects correlations
// and writes them.
func (e *Fast) Correlate(ctx context.Context, session string) ([]brief.Correlation, error) {
	set, err := loadSet(ctx, e.store, session)
	if err != nil {
		return nil, err
	}
	cs := Detect(set, e.ids)
	if err := Validate(cs, set); err != nil {
		return nil, fmt.Errorf("fast correlation produced invalid output: %w", err)
	}
	if err := e.store.WriteCorrelations(ctx, session, cs); err != nil {
		return nil, fmt.Errorf("failed to write correlations: %w", err)
	}
	e.logger.Info("correlations written", map[string]interface{}{
		"mode":  "fast",
		"count": len(cs),
	})
	return cs, nil
}

func loadSet(ctx context.Context, st store.SessionStore, session string) (brief.Set, error) {
	fs, err := st.ReadAllFindings(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("failed to read findings: %w", err)
	}
	return brief.NewSet(fs), nil
}

// Deep runs a reasoning loop and falls back to Fast when the loop fails or
// writes nothing.
type Deep struct {
	provider      llm.Provider
	store         store.SessionStore
	ids           ids.Provider
	maxIterations int
	fallback      *Fast
	logger        *logging.Logger
}

// NewDeep creates a loop-driven engine.
func NewDeep(provider llm.Provider, st store.SessionStore, idp ids.Provider, maxIterations int) *Deep {
	fast := NewFast(st, idp)
	return &Deep{
		provider:      provider,
		store:         st,
		ids:           fast.ids,
		maxIterations: maxIterations,
		fallback:      fast,
		logger:        logging.New().WithComponent("correlate"),
	}
}

const deepSystemPrompt = `You are the correlation analyst of a work-brief assistant.
Call read_all_findings, then find relationships between items of different domains:
explicit shared references (ticket keys, #numbers), shared topics, and workflow links
(a thread to settle before a meeting, a review tied to a ticket in progress).
Call write_correlations once with a JSON array of
{"type": "explicit|semantic|temporal", "sourceItem", "targetItem", "sourceDomain", "targetDomain", "confidence": 0..1, "reason", "actionable": bool}.
Only reference item ids that appear in the findings.`

// Correlate runs the loop for session.
func (e *Deep) Correlate(ctx context.Context, session string) ([]brief.Correlation, error) {
	run := &deepRun{}
	loop := executor.New(e.provider, executor.NewRegistry(
		e.readCapability(),
		e.writeCapability(run),
	))
	_, err := loop.Run(ctx, executor.Request{
		Role:          "correlator",
		System:        deepSystemPrompt,
		Prompt:        "Correlate this session's findings.",
		Allowed:       []string{ToolReadAllFindings, ToolWriteCorrelations},
		MaxIterations: e.maxIterations,
		SessionID:     session,
	})

	run.mu.Lock()
	written, cs := run.written, run.correlations
	run.mu.Unlock()
	if written {
		return cs, nil
	}

	fields := map[string]interface{}{"session": session}
	if err != nil {
		fields["error"] = err.Error()
	}
	e.logger.Warn("deep correlation produced nothing, falling back to fast mode", fields)
	return e.fallback.Correlate(ctx, session)
}

type deepRun struct {
	mu           sync.Mutex
	written      bool
	correlations []brief.Correlation
}

func (e *Deep) readCapability() executor.Capability {
	return &executor.Func{
		ToolName:        ToolReadAllFindings,
		ToolDescription: "Read every domain's findings for this session.",
		Schema:          executor.ObjectSchema(nil),
		Requires:        executor.RequiredContext{Session: true},
		Fn: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			session, err := executor.StringArg(args, executor.ArgSessionID)
			if err != nil {
				return nil, err
			}
			set, err := loadSet(ctx, e.store, session)
			if err != nil {
				return nil, err
			}
			return set.Ordered(), nil
		},
	}
}

func (e *Deep) writeCapability(run *deepRun) executor.Capability {
	return &executor.Func{
		ToolName:        ToolWriteCorrelations,
		ToolDescription: "Write the correlations for this session. Call once.",
		Schema: executor.ObjectSchema(map[string]interface{}{
			"correlations": map[string]interface{}{
				"type":  "array",
				"items": map[string]interface{}{"type": "object"},
			},
		}, "correlations"),
		Requires: executor.RequiredContext{Session: true},
		Fn: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			session, err := executor.StringArg(args, executor.ArgSessionID)
			if err != nil {
				return nil, err
			}
			raw, err := executor.RawArg(args, "correlations")
			if err != nil {
				return nil, err
			}
			var cs []brief.Correlation
			if err := brief.DecodeStrict("correlations", raw, &cs); err != nil {
				return nil, err
			}
			set, err := loadSet(ctx, e.store, session)
			if err != nil {
				return nil, err
			}
			cs = e.prepare(cs, set)
			if err := Validate(cs, set); err != nil {
				return nil, err
			}
			if err := e.store.WriteCorrelations(ctx, session, cs); err != nil {
				return nil, fmt.Errorf("failed to write correlations: %w", err)
			}

			run.mu.Lock()
			run.written = true
			run.correlations = cs
			run.mu.Unlock()
			e.logger.Info("correlations written", map[string]interface{}{
				"mode":  "deep",
				"count": len(cs),
			})
			return map[string]interface{}{"status": "written", "count": len(cs)}, nil
		},
	}
}

// prepare clamps confidences, pins the fixed ones, takes domains from the
// referenced items, fills missing ids and sorts.
func (e *Deep) prepare(cs []brief.Correlation, set brief.Set) []brief.Correlation {
	idx := set.Index()
	out := make([]brief.Correlation, 0, len(cs))
	for _, c := range cs {
		c.Confidence = brief.ClampConfidence(c.Confidence)
		if fixed, ok := brief.FixedConfidence(c.Type); ok {
			c.Confidence = fixed
		}
		if r, ok := idx[c.SourceItem]; ok {
			c.SourceDomain = r.Domain
		}
		if r, ok := idx[c.TargetItem]; ok {
			c.TargetDomain = r.Domain
		}
		out = append(out, c)
	}
	Sort(out)
	for i := range out {
		if out[i].ID == "" {
			out[i].ID = e.ids.New("corr")
		}
	}
	return out
}
