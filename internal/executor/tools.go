// Tool execution functions for the loop.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vinayprograms/agentkit/llm"
)

// executeTools runs a batch of tool calls sequentially in request order and
// returns one tool message per call.
func (l *Loop) executeTools(ctx context.Context, req Request, allowed map[string]bool, calls []llm.ToolCallResponse) []llm.Message {
	messages := make([]llm.Message, 0, len(calls))
	for _, tc := range calls {
		var content string
		result, err := l.executeTool(ctx, req, allowed, tc)
		if err != nil {
			content = toolError(tc.Name, err).JSON()
		} else {
			content = renderResult(tc.Name, result)
		}
		messages = append(messages, llm.Message{
			Role:       "tool",
			ToolCallID: tc.ID,
			Content:    content,
		})
	}
	return messages
}

func (l *Loop) executeTool(ctx context.Context, req Request, allowed map[string]bool, tc llm.ToolCallResponse) (result interface{}, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("tool panic", map[string]interface{}{
				"tool":  tc.Name,
				"panic": fmt.Sprintf("%v", r),
			})
			result = nil
			err = &ToolExecutionError{Tool: tc.Name, Message: fmt.Sprintf("panic: %v", r)}
		}
		l.logger.ToolResult(tc.Name, time.Since(start), err)
	}()

	if !allowed[tc.Name] {
		return nil, &ToolExecutionError{Tool: tc.Name, Message: "tool not allowed for " + req.Role}
	}
	c := l.registry.Get(tc.Name)
	if c == nil {
		return nil, &ToolExecutionError{Tool: tc.Name, Message: "tool not found: " + tc.Name}
	}

	args, err := injectContext(c, req, tc.Args)
	if err != nil {
		return nil, err
	}
	return c.Execute(ctx, args)
}

// injectContext copies args and adds the context values c requires.
func injectContext(c Capability, req Request, in map[string]interface{}) (map[string]interface{}, error) {
	args := make(map[string]interface{}, len(in)+2)
	for k, v := range in {
		args[k] = v
	}
	need := c.RequiredContext()
	if need.Session {
		if req.SessionID == "" {
			return nil, &ToolExecutionError{Tool: c.Name(), Message: "missing required context: session"}
		}
		args[ArgSessionID] = req.SessionID
	}
	if need.User {
		if req.UserID == "" {
			return nil, &ToolExecutionError{Tool: c.Name(), Message: "missing required context: user"}
		}
		args[ArgUserID] = req.UserID
	}
	return args, nil
}

func renderResult(tool string, result interface{}) string {
	switch v := result.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case json.RawMessage:
		return string(v)
	case nil:
		return "null"
	}
	data, err := json.Marshal(result)
	if err != nil {
		return toolError(tool, fmt.Errorf("failed to marshal result: %w", err)).JSON()
	}
	return string(data)
}
