// Package executor runs a reasoning engine through a bounded tool-call loop.
package executor

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/vinayprograms/agentkit/llm"
	"github.com/vinayprograms/agentkit/logging"
)

// DefaultMaxIterations bounds a loop when the request does not.
const DefaultMaxIterations = 10

// Request describes one loop invocation.
type Request struct {
	Role          string
	System        string
	Prompt        string
	Allowed       []string
	MaxIterations int
	SessionID     string
	UserID        string
}

// Result reports how a loop invocation went.
type Result struct {
	Output     string
	Iterations int
	ToolsUsed  []string
	ToolCalls  int
}

// Loop drives a provider through tool calls against a registry.
type Loop struct {
	provider llm.Provider
	registry *Registry
	logger   *logging.Logger
}

// New creates a loop.
func New(provider llm.Provider, registry *Registry) *Loop {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Loop{
		provider: provider,
		registry: registry,
		logger:   logging.New().WithComponent("executor"),
	}
}

// Registry returns the capability registry.
func (l *Loop) Registry() *Registry {
	return l.registry
}

// Run executes req until the engine returns a terminal answer, the
// iteration cap is reached or ctx is done.
func (l *Loop) Run(ctx context.Context, req Request) (*Result, error) {
	if l.provider == nil {
		return nil, fmt.Errorf("loop %s: no provider configured", req.Role)
	}
	maxIter := req.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}

	ctx, span := startLoopSpan(ctx, req)
	start := time.Now()
	l.logger.PhaseStart("LOOP", req.Role, "")

	result := &Result{}
	output, err := l.run(ctx, req, maxIter, result)
	result.Output = output

	status := "complete"
	if err != nil {
		status = "error"
	}
	l.logger.PhaseComplete("LOOP", req.Role, "", time.Since(start), status)
	endLoopSpan(span, result, err)
	return result, err
}

func (l *Loop) run(ctx context.Context, req Request, maxIter int, result *Result) (string, error) {
	messages := []llm.Message{
		{Role: "system", Content: req.System},
		{Role: "user", Content: req.Prompt},
	}
	toolDefs := l.registry.Definitions(req.Allowed)
	l.logger.Debug("tools available", map[string]interface{}{
		"role":  req.Role,
		"count": len(toolDefs),
	})

	allowed := make(map[string]bool, len(req.Allowed))
	for _, name := range req.Allowed {
		allowed[name] = true
	}
	toolsUsed := make(map[string]bool)
	defer func() {
		for name := range toolsUsed {
			result.ToolsUsed = append(result.ToolsUsed, name)
		}
		sort.Strings(result.ToolsUsed)
	}()

	for result.Iterations < maxIter {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("loop %s: %w", req.Role, err)
		}
		result.Iterations++

		llmStart := time.Now()
		resp, err := l.provider.Chat(ctx, llm.ChatRequest{
			Messages: messages,
			Tools:    toolDefs,
		})
		if err != nil {
			return "", fmt.Errorf("LLM error: %w", err)
		}
		l.logger.Debug("llm response", map[string]interface{}{
			"role":       req.Role,
			"iteration":  result.Iterations,
			"tool_calls": len(resp.ToolCalls),
			"duration":   time.Since(llmStart).String(),
		})

		// No tool calls = terminal answer
		if len(resp.ToolCalls) == 0 {
			return resp.Content, nil
		}

		for _, tc := range resp.ToolCalls {
			toolsUsed[tc.Name] = true
		}
		result.ToolCalls += len(resp.ToolCalls)

		messages = append(messages, llm.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		messages = append(messages, l.executeTools(ctx, req, allowed, resp.ToolCalls)...)
	}

	l.logger.Warn("iteration limit reached", map[string]interface{}{
		"role":       req.Role,
		"iterations": maxIter,
	})
	return "", fmt.Errorf("loop %s: %w (%d iterations)", req.Role, ErrIterationLimitExceeded, maxIter)
}
