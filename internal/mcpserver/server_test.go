package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/vinayprograms/workbrief/internal/brief"
	"github.com/vinayprograms/workbrief/internal/coordinator"
)

type stubGenerator struct {
	session, user string
	brief         *brief.Brief
	err           error
}

func (g *stubGenerator) GenerateBrief(ctx context.Context, session, user string) (*brief.Brief, error) {
	g.session, g.user = session, user
	return g.brief, g.err
}

func getResultText(result *mcp.CallToolResult) string {
	var sb strings.Builder
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	return sb.String()
}

func call(t *testing.T, tool *BriefTool, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	result, err := tool.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	return result
}

func TestBriefTool_Definition(t *testing.T) {
	def := NewBriefTool(&stubGenerator{}).Definition()
	if def.Name != ToolGenerateBrief {
		t.Errorf("name = %q, want %s", def.Name, ToolGenerateBrief)
	}
}

func TestBriefTool_ReturnsBriefJSON(t *testing.T) {
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	gen := &stubGenerator{brief: brief.NewEmpty("brief-1", "s1", at)}
	result := call(t, NewBriefTool(gen), map[string]interface{}{"user": "dana", "session": "s1"})
	if result.IsError {
		t.Fatalf("unexpected error: %s", getResultText(result))
	}
	if gen.user != "dana" || gen.session != "s1" {
		t.Errorf("generator got session=%q user=%q", gen.session, gen.user)
	}

	var b brief.Brief
	if err := json.Unmarshal([]byte(getResultText(result)), &b); err != nil {
		t.Fatalf("result is not a brief: %v", err)
	}
	if b.ID != "brief-1" || b.Sections == nil {
		t.Errorf("decoded brief = %+v", b)
	}
}

func TestBriefTool_RequiresUser(t *testing.T) {
	gen := &stubGenerator{}
	result := call(t, NewBriefTool(gen), map[string]interface{}{"session": "s1"})
	if !result.IsError {
		t.Fatal("expected a tool error")
	}
	if gen.user != "" {
		t.Error("generator must not run without a user")
	}
}

func TestBriefTool_DegradedBriefIsAResult(t *testing.T) {
	b := brief.NewEmpty("b", "s1", time.Time{})
	b.Degraded = true
	gen := &stubGenerator{brief: b, err: fmt.Errorf("%w: no output", coordinator.ErrPipelineFailure)}
	result := call(t, NewBriefTool(gen), map[string]interface{}{"user": "dana"})
	if result.IsError {
		t.Fatalf("degraded briefs are results, got error: %s", getResultText(result))
	}
	if !strings.Contains(getResultText(result), `"degraded": true`) {
		t.Errorf("result should carry the degraded flag: %s", getResultText(result))
	}
}

func TestBriefTool_GeneratorError(t *testing.T) {
	gen := &stubGenerator{err: errors.New("store offline")}
	result := call(t, NewBriefTool(gen), map[string]interface{}{"user": "dana"})
	if !result.IsError || !strings.Contains(getResultText(result), "store offline") {
		t.Errorf("expected tool error, got %+v", result)
	}
}

func TestNew(t *testing.T) {
	if s := New(&stubGenerator{}, "test"); s == nil {
		t.Fatal("expected a server")
	}
}
