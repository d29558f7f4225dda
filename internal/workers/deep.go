package workers

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/vinayprograms/workbrief/internal/brief"
	"github.com/vinayprograms/workbrief/internal/executor"
)

// Tool names offered to deep workers.
const (
	ToolWriteFindings = "write_findings"
)

// FetchToolName returns the fetch capability name for d.
func FetchToolName(d brief.Domain) string {
	return "fetch_" + strings.ReplaceAll(string(d), "-", "_") + "_data"
}

var roleFocus = map[brief.Domain]string{
	brief.DomainCodeReview:   "pull requests awaiting review, stale or conflicting pull requests and urgent labels",
	brief.DomainIssueTracker: "blocked tickets, tickets due today, stale in-progress work and priority levels",
	brief.DomainMessaging:    "unread messages, urgent requests, questions needing a reply and unresolved threads",
	brief.DomainScheduling:   "today's meetings, meetings needing preparation, meeting density and free focus blocks",
}

const findingsSchemaHint = `{"summary": string, "priorityItems": [{"id", "title", "description", "priority": "critical|high|medium|low", "url"?, "deadline"?, "blockingImpact"?}], "actionItems": [{"id", "title", "description", "effort": "quick|medium|large", "urgency": "immediate|today|this_week|later"}], "insights": [string]}`

func systemPrompt(d brief.Domain) string {
	return fmt.Sprintf(`You are the %s specialist of a work-brief assistant.
Use %s to read the user's data, then call %s exactly once with your analysis.
Findings must match this JSON shape and contain nothing else:
%s
Item ids must be unique and stable; derive them from the source record ids.`,
		d, FetchToolName(d), ToolWriteFindings, findingsSchemaHint)
}

func objective(d brief.Domain) string {
	return fmt.Sprintf("Find the items that need the user's action, categorize them by priority and urgency, and identify patterns. Focus on %s.", roleFocus[d])
}

// deepRun holds the per-invocation state shared by the capabilities.
type deepRun struct {
	mu      sync.Mutex
	payload *Payload
	written bool
}

func (s *Specialist) runDeep(ctx context.Context, session, user string) (bool, *Payload, error) {
	run := &deepRun{}
	loop := executor.New(s.provider, executor.NewRegistry(
		s.fetchCapability(run),
		s.writeCapability(run),
	))

	_, err := loop.Run(ctx, executor.Request{
		Role:          string(s.domain),
		System:        systemPrompt(s.domain),
		Prompt:        objective(s.domain),
		Allowed:       []string{FetchToolName(s.domain), ToolWriteFindings},
		MaxIterations: s.maxIterations,
		SessionID:     session,
		UserID:        user,
	})

	run.mu.Lock()
	defer run.mu.Unlock()
	return run.written, run.payload, err
}

func (s *Specialist) fetchCapability(run *deepRun) executor.Capability {
	return &executor.Func{
		ToolName:        FetchToolName(s.domain),
		ToolDescription: fmt.Sprintf("Fetch the user's %s data.", s.domain),
		Schema:          executor.ObjectSchema(nil),
		Requires:        executor.RequiredContext{User: true},
		Fn: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			user, err := executor.StringArg(args, executor.ArgUserID)
			if err != nil {
				return nil, err
			}
			p, err := s.fetcher.Fetch(ctx, user)
			if err != nil {
				return nil, fmt.Errorf("fetch %s data: %w", s.domain, err)
			}
			run.mu.Lock()
			run.payload = p
			run.mu.Unlock()
			return p, nil
		},
	}
}

func (s *Specialist) writeCapability(run *deepRun) executor.Capability {
	return &executor.Func{
		ToolName:        ToolWriteFindings,
		ToolDescription: "Write the findings for this domain. Call once with the complete analysis.",
		Schema: executor.ObjectSchema(map[string]interface{}{
			"findings": map[string]interface{}{
				"type":        "object",
				"description": "Findings document: " + findingsSchemaHint,
			},
		}, "findings"),
		Requires: executor.RequiredContext{Session: true},
		Fn: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			run.mu.Lock()
			done := run.written
			run.mu.Unlock()
			if done {
				return nil, fmt.Errorf("findings already written for this session")
			}
			session, err := executor.StringArg(args, executor.ArgSessionID)
			if err != nil {
				return nil, err
			}
			raw, err := executor.RawArg(args, "findings")
			if err != nil {
				return nil, err
			}
			var f brief.Findings
			if err := brief.DecodeStrict("findings", raw, &f); err != nil {
				return nil, err
			}
			f.Domain = s.domain
			f.Timestamp = s.now()
			if f.Metadata == nil {
				f.Metadata = map[string]string{}
			}
			f.Metadata["mode"] = string(ModeDeep)
			f.Normalize()
			if err := brief.ValidateFindings(&f); err != nil {
				return nil, err
			}
			if err := s.store.WriteFindings(ctx, session, &f); err != nil {
				return nil, fmt.Errorf("write findings: %w", err)
			}

			run.mu.Lock()
			run.written = true
			run.mu.Unlock()
			s.logger.Info("findings written", map[string]interface{}{
				"domain":         string(s.domain),
				"mode":           string(ModeDeep),
				"priority_items": len(f.PriorityItems),
				"action_items":   len(f.ActionItems),
			})
			return map[string]interface{}{
				"status":        "written",
				"priorityItems": len(f.PriorityItems),
				"actionItems":   len(f.ActionItems),
			}, nil
		},
	}
}
