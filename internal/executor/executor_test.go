package executor

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vinayprograms/agentkit/llm"
)

func echoCapability(name string, requires RequiredContext) *Func {
	return &Func{
		ToolName:        name,
		ToolDescription: "echoes its arguments",
		Requires:        requires,
		Fn: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return args, nil
		},
	}
}

// toolMessages returns the tool messages of the last request.
func toolMessages(req llm.ChatRequest) []llm.Message {
	var out []llm.Message
	for _, m := range req.Messages {
		if m.Role == "tool" {
			out = append(out, m)
		}
	}
	return out
}

func TestLoop_TerminalAnswer(t *testing.T) {
	provider := llm.NewMockProvider()
	provider.SetResponse("all done")

	loop := New(provider, NewRegistry())
	result, err := loop.Run(context.Background(), Request{Role: "tester", Prompt: "go"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Output != "all done" {
		t.Errorf("got %q, want all done", result.Output)
	}
	if result.Iterations != 1 {
		t.Errorf("got %d iterations, want 1", result.Iterations)
	}
}

func TestLoop_OffersOnlyAllowedTools(t *testing.T) {
	provider := llm.NewMockProvider()
	provider.SetResponse("ok")

	reg := NewRegistry(echoCapability("a", RequiredContext{}), echoCapability("b", RequiredContext{}))
	loop := New(provider, reg)
	if _, err := loop.Run(context.Background(), Request{Role: "r", Allowed: []string{"b", "missing"}}); err != nil {
		t.Fatal(err)
	}
	tools := provider.LastRequest().Tools
	if len(tools) != 1 || tools[0].Name != "b" {
		t.Errorf("unexpected tool defs: %+v", tools)
	}
}

func TestLoop_ToolResultFedBack(t *testing.T) {
	var calls int
	provider := llm.NewMockProvider()
	provider.ChatFunc = func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
		calls++
		if calls == 1 {
			return &llm.ChatResponse{ToolCalls: []llm.ToolCallResponse{
				{ID: "c1", Name: "echo", Args: map[string]interface{}{"x": "y"}},
			}}, nil
		}
		msgs := toolMessages(req)
		if len(msgs) != 1 || msgs[0].ToolCallID != "c1" {
			t.Errorf("unexpected tool messages: %+v", msgs)
		}
		if !strings.Contains(msgs[0].Content, `"x":"y"`) {
			t.Errorf("tool result not fed back: %s", msgs[0].Content)
		}
		return &llm.ChatResponse{Content: "final"}, nil
	}

	loop := New(provider, NewRegistry(echoCapability("echo", RequiredContext{})))
	result, err := loop.Run(context.Background(), Request{Role: "r", Allowed: []string{"echo"}})
	if err != nil {
		t.Fatal(err)
	}
	if result.Iterations != 2 || result.ToolCalls != 1 {
		t.Errorf("got %d iterations / %d calls", result.Iterations, result.ToolCalls)
	}
	if len(result.ToolsUsed) != 1 || result.ToolsUsed[0] != "echo" {
		t.Errorf("unexpected tools used: %v", result.ToolsUsed)
	}
}

func TestLoop_ToolErrorsAreStructured(t *testing.T) {
	failing := &Func{
		ToolName: "fail",
		Fn: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return nil, errors.New("backend down")
		},
	}
	panicky := &Func{
		ToolName: "boom",
		Fn: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			panic("kaboom")
		},
	}
	hidden := echoCapability("hidden", RequiredContext{})

	var seen []llm.Message
	var calls int
	provider := llm.NewMockProvider()
	provider.ChatFunc = func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
		calls++
		if calls == 1 {
			return &llm.ChatResponse{ToolCalls: []llm.ToolCallResponse{
				{ID: "1", Name: "fail"},
				{ID: "2", Name: "boom"},
				{ID: "3", Name: "hidden"},
				{ID: "4", Name: "nope"},
			}}, nil
		}
		seen = toolMessages(req)
		return &llm.ChatResponse{Content: "done"}, nil
	}

	loop := New(provider, NewRegistry(failing, panicky, hidden))
	_, err := loop.Run(context.Background(), Request{Role: "r", Allowed: []string{"fail", "boom", "nope"}})
	if err != nil {
		t.Fatalf("tool failures must not abort the loop: %v", err)
	}
	if len(seen) != 4 {
		t.Fatalf("got %d tool messages, want 4", len(seen))
	}

	wantTools := []string{"fail", "boom", "hidden", "nope"}
	wantMsg := []string{"backend down", "panic: kaboom", "not allowed", "not found"}
	for i, m := range seen {
		var body struct {
			Error struct {
				Tool    string `json:"tool"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal([]byte(m.Content), &body); err != nil {
			t.Fatalf("message %d is not structured JSON: %s", i, m.Content)
		}
		if body.Error.Tool != wantTools[i] {
			t.Errorf("message %d: tool = %q, want %q", i, body.Error.Tool, wantTools[i])
		}
		if !strings.Contains(body.Error.Message, wantMsg[i]) {
			t.Errorf("message %d: %q does not mention %q", i, body.Error.Message, wantMsg[i])
		}
	}
}

func TestLoop_InjectsRequiredContext(t *testing.T) {
	var got map[string]interface{}
	capture := &Func{
		ToolName: "capture",
		Requires: RequiredContext{Session: true, User: true},
		Fn: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			got = args
			return "ok", nil
		},
	}

	var calls int
	provider := llm.NewMockProvider()
	provider.ChatFunc = func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
		calls++
		if calls == 1 {
			return &llm.ChatResponse{ToolCalls: []llm.ToolCallResponse{
				{ID: "1", Name: "capture", Args: map[string]interface{}{"session_id": "spoofed"}},
			}}, nil
		}
		return &llm.ChatResponse{Content: "done"}, nil
	}

	loop := New(provider, NewRegistry(capture))
	_, err := loop.Run(context.Background(), Request{
		Role: "r", Allowed: []string{"capture"}, SessionID: "s1", UserID: "u1",
	})
	if err != nil {
		t.Fatal(err)
	}
	if got[ArgSessionID] != "s1" || got[ArgUserID] != "u1" {
		t.Errorf("context not injected: %v", got)
	}
}

func TestLoop_MissingRequiredContext(t *testing.T) {
	executed := false
	capture := &Func{
		ToolName: "capture",
		Requires: RequiredContext{User: true},
		Fn: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			executed = true
			return "ok", nil
		},
	}

	var content string
	var calls int
	provider := llm.NewMockProvider()
	provider.ChatFunc = func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
		calls++
		if calls == 1 {
			return &llm.ChatResponse{ToolCalls: []llm.ToolCallResponse{{ID: "1", Name: "capture"}}}, nil
		}
		content = toolMessages(req)[0].Content
		return &llm.ChatResponse{Content: "done"}, nil
	}

	loop := New(provider, NewRegistry(capture))
	if _, err := loop.Run(context.Background(), Request{Role: "r", Allowed: []string{"capture"}}); err != nil {
		t.Fatal(err)
	}
	if executed {
		t.Error("capability must not run without required context")
	}
	if !strings.Contains(content, "missing required context: user") {
		t.Errorf("unexpected error content: %s", content)
	}
}

func TestLoop_IterationLimit(t *testing.T) {
	var calls int
	provider := llm.NewMockProvider()
	provider.ChatFunc = func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
		calls++
		return &llm.ChatResponse{ToolCalls: []llm.ToolCallResponse{{ID: "x", Name: "echo"}}}, nil
	}

	loop := New(provider, NewRegistry(echoCapability("echo", RequiredContext{})))
	result, err := loop.Run(context.Background(), Request{Role: "r", Allowed: []string{"echo"}, MaxIterations: 3})
	if !errors.Is(err, ErrIterationLimitExceeded) {
		t.Fatalf("expected ErrIterationLimitExceeded, got %v", err)
	}
	if calls != 3 || result.Iterations != 3 {
		t.Errorf("got %d calls / %d iterations, want 3", calls, result.Iterations)
	}
}

func TestLoop_DefaultIterationLimit(t *testing.T) {
	var calls int
	provider := llm.NewMockProvider()
	provider.ChatFunc = func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
		calls++
		return &llm.ChatResponse{ToolCalls: []llm.ToolCallResponse{{ID: "x", Name: "echo"}}}, nil
	}
	loop := New(provider, NewRegistry(echoCapability("echo", RequiredContext{})))
	_, err := loop.Run(context.Background(), Request{Role: "r", Allowed: []string{"echo"}})
	if !errors.Is(err, ErrIterationLimitExceeded) {
		t.Fatalf("expected ErrIterationLimitExceeded, got %v", err)
	}
	if calls != DefaultMaxIterations {
		t.Errorf("got %d calls, want %d", calls, DefaultMaxIterations)
	}
}

func TestLoop_ProviderErrorAborts(t *testing.T) {
	provider := llm.NewMockProvider()
	provider.SetError(errors.New("rate limited"))

	loop := New(provider, NewRegistry())
	_, err := loop.Run(context.Background(), Request{Role: "r"})
	if err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestLoop_ContextCancelledBetweenIterations(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	provider := llm.NewMockProvider()
	provider.ChatFunc = func(c context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
		cancel()
		return &llm.ChatResponse{ToolCalls: []llm.ToolCallResponse{{ID: "x", Name: "echo"}}}, nil
	}

	loop := New(provider, NewRegistry(echoCapability("echo", RequiredContext{})))
	result, err := loop.Run(ctx, Request{Role: "r", Allowed: []string{"echo"}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if result.Iterations != 1 {
		t.Errorf("got %d iterations, want 1", result.Iterations)
	}
}

func TestLoop_BatchRunsSequentiallyInOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string
	record := func(name string, delay time.Duration) *Func {
		return &Func{
			ToolName: name,
			Fn: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
				time.Sleep(delay)
				mu.Lock()
				order = append(order, name)
				mu.Unlock()
				return name, nil
			},
		}
	}

	var calls int
	provider := llm.NewMockProvider()
	provider.ChatFunc = func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
		calls++
		if calls == 1 {
			return &llm.ChatResponse{ToolCalls: []llm.ToolCallResponse{
				{ID: "1", Name: "slow"}, {ID: "2", Name: "fast"},
			}}, nil
		}
		return &llm.ChatResponse{Content: "done"}, nil
	}

	loop := New(provider, NewRegistry(record("slow", 20*time.Millisecond), record("fast", 0)))
	if _, err := loop.Run(context.Background(), Request{Role: "r", Allowed: []string{"slow", "fast"}}); err != nil {
		t.Fatal(err)
	}
	if len(order) != 2 || order[0] != "slow" || order[1] != "fast" {
		t.Errorf("unexpected execution order: %v", order)
	}
}

func TestArgs(t *testing.T) {
	args := map[string]interface{}{"s": "text", "n": 3.0, "obj": map[string]interface{}{"a": 1.0}}
	if v, err := StringArg(args, "s"); err != nil || v != "text" {
		t.Errorf("StringArg = %q, %v", v, err)
	}
	if _, err := StringArg(args, "n"); err == nil {
		t.Error("expected type error")
	}
	if _, err := StringArg(args, "missing"); err == nil {
		t.Error("expected missing error")
	}
	raw, err := RawArg(args, "obj")
	if err != nil || string(raw) != `{"a":1}` {
		t.Errorf("RawArg = %s, %v", raw, err)
	}
	raw, _ = RawArg(args, "s")
	if string(raw) != "text" {
		t.Errorf("RawArg string passthrough = %s", raw)
	}
}
