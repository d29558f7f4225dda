package synth

import (
	"context"
	"fmt"
	"strings"

	"github.com/vinayprograms/agentkit/llm"

	"github.com/vinayprograms/workbrief/internal/brief"
	"github.com/vinayprograms/workbrief/internal/executor"
	"github.com/vinayprograms/workbrief/internal/store"
)

// Tool names offered to the AI strategy.
const (
	ToolReadAllFindings  = "read_all_findings"
	ToolReadCorrelations = "read_correlations"
)

// AI asks a reasoning loop for the brief and accepts only a final answer
// that decodes strictly and validates.
type AI struct {
	provider      llm.Provider
	store         store.SessionStore
	maxIterations int
}

// NewAI creates the loop-driven strategy.
func NewAI(provider llm.Provider, st store.SessionStore, maxIterations int) *AI {
	return &AI{provider: provider, store: st, maxIterations: maxIterations}
}

// Name returns "ai".
func (a *AI) Name() string { return "ai" }

var aiSystemPrompt = `You write a morning work brief.
Call read_all_findings and read_correlations, then answer with ONE JSON object and nothing else:
{"sections": [{"id", "type", "title", "items": [{"id", "title", "description", "domain", "priority", "url", "deadline", "effort", "urgency", "blockingImpact", "correlations": [...]}], "sectionInsight"}],
 "overallInsights": {"hiddenTasksFound": int, "criticalCorrelations": [], "workPatterns": [], "recommendations": []}}
Section types, in this order, each at most once and never empty: ` + sectionList() + `.
At most 7 items per section. Item ids must be ids from the findings; observations may use any id.`

func sectionList() string {
	names := make([]string, len(brief.SectionOrder))
	for i, s := range brief.SectionOrder {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

// Synthesize runs the loop and decodes its final answer.
func (a *AI) Synthesize(ctx context.Context, in Input) (*brief.Brief, error) {
	loop := executor.New(a.provider, executor.NewRegistry(a.readFindings(), a.readCorrelations()))
	res, err := loop.Run(ctx, executor.Request{
		Role:          "synthesizer",
		System:        aiSystemPrompt,
		Prompt:        "Write the brief for this session.",
		Allowed:       []string{ToolReadAllFindings, ToolReadCorrelations},
		MaxIterations: a.maxIterations,
		SessionID:     in.Session,
	})
	if err != nil {
		return nil, fmt.Errorf("ai synthesis: %w", err)
	}

	var b brief.Brief
	if err := brief.DecodeStrict("brief", []byte(res.Output), &b); err != nil {
		return nil, err
	}
	b.ID = in.BriefID
	b.SessionID = in.Session
	b.GeneratedAt = in.At
	b.Degraded = false
	b.Normalize()
	if err := brief.ValidateBrief(&b, in.Set); err != nil {
		return nil, err
	}
	return &b, nil
}

func (a *AI) readFindings() executor.Capability {
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
			fs, err := a.store.ReadAllFindings(ctx, session)
			if err != nil {
				return nil, err
			}
			return brief.NewSet(fs).Ordered(), nil
		},
	}
}

func (a *AI) readCorrelations() executor.Capability {
	return &executor.Func{
		ToolName:        ToolReadCorrelations,
		ToolDescription: "Read the correlations found for this session.",
		Schema:          executor.ObjectSchema(nil),
		Requires:        executor.RequiredContext{Session: true},
		Fn: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			session, err := executor.StringArg(args, executor.ArgSessionID)
			if err != nil {
				return nil, err
			}
			return a.store.ReadCorrelations(ctx, session)
		},
	}
}
