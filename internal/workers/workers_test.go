package workers

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/vinayprograms/agentkit/llm"

	"github.com/vinayprograms/workbrief/internal/brief"
	"github.com/vinayprograms/workbrief/internal/store"
)

var now = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

func staticFetcher(p *Payload) Fetcher {
	return FetcherFunc(func(ctx context.Context, user string) (*Payload, error) {
		return p, nil
	})
}

func findItem(f *brief.Findings, id string) *brief.PriorityItem {
	for i := range f.PriorityItems {
		if f.PriorityItems[i].ID == id {
			return &f.PriorityItems[i]
		}
	}
	return nil
}

func findAction(f *brief.Findings, id string) *brief.ActionItem {
	for i := range f.ActionItems {
		if f.ActionItems[i].ID == id {
			return &f.ActionItems[i]
		}
	}
	return nil
}

func hasInsight(f *brief.Findings, substr string) bool {
	for _, in := range f.Insights {
		if strings.Contains(in, substr) {
			return true
		}
	}
	return false
}

func TestAnalyze_PullRequests(t *testing.T) {
	p := &Payload{PullRequests: []PullRequest{
		{ID: "1", Number: 10, Title: "Add login", ReviewRequested: true, UpdatedAt: now.Add(-time.Hour)},
		{ID: "2", Number: 11, Title: "Old refactor", UpdatedAt: now.Add(-96 * time.Hour)},
		{ID: "3", Number: 12, Title: "Hotfix cache", Labels: []string{"HotFix"}, UpdatedAt: now},
		{ID: "4", Number: 13, Title: "Rebase me", HasConflicts: true, UpdatedAt: now},
		{ID: "5", Number: 14, Title: "Fresh and quiet", UpdatedAt: now},
		{ID: "6", Number: 15, Title: "Draft", Draft: true, ReviewRequested: true},
	}}
	f := Analyze(brief.DomainCodeReview, p, now)

	if len(f.PriorityItems) != 4 {
		t.Fatalf("got %d priority items, want 4", len(f.PriorityItems))
	}
	if it := findItem(f, "code-review-1"); it == nil || it.Priority != brief.PriorityHigh {
		t.Errorf("review-requested PR: %+v", it)
	}
	if it := findItem(f, "code-review-2"); it == nil || it.Priority != brief.PriorityMedium {
		t.Errorf("stale PR: %+v", it)
	}
	if it := findItem(f, "code-review-3"); it == nil || it.Priority != brief.PriorityCritical {
		t.Errorf("hotfix PR: %+v", it)
	}
	if it := findItem(f, "code-review-4"); it == nil || it.Priority != brief.PriorityHigh {
		t.Errorf("conflicting PR: %+v", it)
	}
	if findItem(f, "code-review-5") != nil || findItem(f, "code-review-6") != nil {
		t.Error("quiet and draft PRs must be skipped")
	}
	if a := findAction(f, "code-review-1-review"); a == nil || !strings.Contains(a.Title, "Review") {
		t.Errorf("missing review action: %+v", a)
	}
	if !hasInsight(f, "not been updated in over 3 days") {
		t.Errorf("missing stale insight: %v", f.Insights)
	}
	if err := brief.ValidateFindings(f); err != nil {
		t.Errorf("fast findings must validate: %v", err)
	}
}

func TestAnalyze_ManyPendingReviews(t *testing.T) {
	var prs []PullRequest
	for i := 0; i < 5; i++ {
		prs = append(prs, PullRequest{ID: string(rune('a' + i)), Number: i, Title: "pr", ReviewRequested: true, UpdatedAt: now})
	}
	f := Analyze(brief.DomainCodeReview, &Payload{PullRequests: prs}, now)
	if !hasInsight(f, "5 pull requests are waiting") {
		t.Errorf("missing pending review insight: %v", f.Insights)
	}
}

func TestAnalyze_Issues(t *testing.T) {
	today := now.Add(6 * time.Hour)
	yesterday := now.Add(-30 * time.Hour)
	p := &Payload{Issues: []Issue{
		{ID: "JIRA-55", Title: "Login broken", Status: "Blocked", Priority: "Medium", UpdatedAt: now},
		{ID: "JIRA-56", Title: "Ship it", Status: "In Progress", Priority: "High", DueDate: &today, UpdatedAt: now.Add(-8 * 24 * time.Hour)},
		{ID: "JIRA-57", Title: "Late", Status: "To Do", Priority: "Low", DueDate: &yesterday},
		{ID: "JIRA-58", Title: "Finished", Status: "Done", Priority: "Highest"},
		{ID: "JIRA-59", Title: "Top", Status: "To Do", Priority: "Highest"},
	}}
	f := Analyze(brief.DomainIssueTracker, p, now)

	blocked := findItem(f, "issue-tracker-JIRA-55")
	if blocked == nil || blocked.Priority != brief.PriorityCritical || blocked.BlockingImpact == "" {
		t.Errorf("blocked issue: %+v", blocked)
	}
	due := findItem(f, "issue-tracker-JIRA-56")
	if due == nil || due.Deadline != brief.DeadlineToday || due.Priority != brief.PriorityHigh {
		t.Errorf("due-today issue: %+v", due)
	}
	if !strings.Contains(strings.ToLower(due.Description), "in progress") {
		t.Errorf("in-progress status must be visible in text: %q", due.Description)
	}
	if late := findItem(f, "issue-tracker-JIRA-57"); late == nil || late.Deadline != "overdue" || late.Priority != brief.PriorityHigh {
		t.Errorf("overdue issue: %+v", late)
	}
	if findItem(f, "issue-tracker-JIRA-58") != nil {
		t.Error("done issues must be skipped")
	}
	if top := findItem(f, "issue-tracker-JIRA-59"); top == nil || top.Priority != brief.PriorityCritical {
		t.Errorf("highest maps to critical: %+v", top)
	}
	if a := findAction(f, "issue-tracker-JIRA-56-progress"); a == nil || a.Urgency != brief.UrgencyToday {
		t.Errorf("missing progress action: %+v", a)
	}
	if !hasInsight(f, "JIRA-56 has been in progress for over 7 days") {
		t.Errorf("missing stale insight: %v", f.Insights)
	}
}

func TestAnalyze_Messages(t *testing.T) {
	var msgs []Message
	for i := 0; i < 10; i++ {
		msgs = append(msgs, Message{ID: "n" + string(rune('0'+i)), From: "news", Subject: "Digest", Unread: true})
	}
	msgs = append(msgs,
		Message{ID: "u1", From: "boss", Subject: "URGENT: prod down", Unread: true},
		Message{ID: "q1", From: "alex", Subject: "Quick question", Body: "Can you look at this?", Unread: true},
		Message{ID: "t1", From: "sam", Subject: "Design thread", AwaitingReply: true},
		Message{ID: "r1", From: "old", Subject: "Read already"},
	)
	f := Analyze(brief.DomainMessaging, &Payload{Messages: msgs}, now)

	if it := findItem(f, "messaging-u1"); it == nil || it.Priority != brief.PriorityCritical {
		t.Errorf("urgent message: %+v", it)
	}
	if a := findAction(f, "messaging-q1-reply"); a == nil || a.Effort != brief.EffortQuick {
		t.Errorf("question should produce a reply action: %+v", a)
	}
	if it := findItem(f, "messaging-t1"); it == nil || !strings.Contains(it.Description, "awaiting") {
		t.Errorf("unresolved thread: %+v", it)
	}
	if findItem(f, "messaging-r1") != nil {
		t.Error("read messages must be skipped")
	}
	if !hasInsight(f, "12 unread messages") {
		t.Errorf("missing unread insight: %v", f.Insights)
	}
}

func TestAnalyze_Events(t *testing.T) {
	at := func(h, m int) time.Time { return time.Date(2026, 3, 2, h, m, 0, 0, time.UTC) }
	p := &Payload{Events: []Event{
		{ID: "e1", Title: "Standup", Start: at(9, 0), End: at(9, 15)},
		{ID: "e2", Title: "Planning", Description: "Agenda attached", Start: at(9, 15), End: at(10, 0)},
		{ID: "e3", Title: "1:1", Start: at(10, 0), End: at(10, 30)},
		{ID: "e4", Title: "Design review", Start: at(10, 30), End: at(11, 0)},
		{ID: "e5", Title: "Retro", Start: at(16, 0), End: at(17, 0)},
		{ID: "tomorrow", Title: "Later", Start: at(9, 0).Add(24 * time.Hour), End: at(10, 0).Add(24 * time.Hour)},
	}}
	f := Analyze(brief.DomainScheduling, p, now)

	if len(f.PriorityItems) != 5 {
		t.Errorf("got %d meetings, want 5", len(f.PriorityItems))
	}
	if a := findAction(f, "scheduling-e2-prep"); a == nil || !strings.HasPrefix(a.Title, "Prepare for") {
		t.Errorf("missing prep action: %+v", a)
	}
	if !hasInsight(f, "Meeting-heavy day: 5") {
		t.Errorf("missing density insight: %v", f.Insights)
	}
	if !hasInsight(f, "back-to-back") {
		t.Errorf("missing back-to-back insight: %v", f.Insights)
	}
	// 11:00-16:00 is the only gap of at least two hours.
	focus := findAction(f, "scheduling-focus-1100")
	if focus == nil || focus.Effort != brief.EffortLarge {
		t.Fatalf("missing focus block: %+v", f.ActionItems)
	}
	if focus.Title != "Focus block 11:00-16:00" {
		t.Errorf("got %q", focus.Title)
	}
}

func TestAnalyze_Deterministic(t *testing.T) {
	p := &Payload{Issues: []Issue{{ID: "A-1", Title: "x", Status: "Blocked"}}}
	a := Analyze(brief.DomainIssueTracker, p, now)
	b := Analyze(brief.DomainIssueTracker, p, now)
	if a.PriorityItems[0].ID != b.PriorityItems[0].ID || a.Summary != b.Summary {
		t.Error("fast analysis must be deterministic")
	}
}

func TestSpecialist_FastWritesFindings(t *testing.T) {
	st := store.NewMemoryStore()
	w := New(brief.DomainIssueTracker, staticFetcher(&Payload{Issues: []Issue{{ID: "A-1", Title: "x", Status: "Blocked"}}}), st, WithClock(clock))
	if err := w.Run(context.Background(), "s1", "u1"); err != nil {
		t.Fatal(err)
	}
	f, err := st.ReadFindings(context.Background(), "s1", brief.DomainIssueTracker)
	if err != nil {
		t.Fatal(err)
	}
	if !f.Timestamp.Equal(now) || len(f.PriorityItems) != 1 {
		t.Errorf("unexpected findings: %+v", f)
	}
}

func TestSpecialist_FetchFailure(t *testing.T) {
	st := store.NewMemoryStore()
	failing := FetcherFunc(func(ctx context.Context, user string) (*Payload, error) {
		return nil, errors.New("api unavailable")
	})
	w := New(brief.DomainMessaging, failing, st)
	err := w.Run(context.Background(), "s1", "u1")

	var wf *WorkerFailure
	if !errors.As(err, &wf) || wf.Domain != brief.DomainMessaging {
		t.Fatalf("expected WorkerFailure, got %v", err)
	}
	if _, err := st.ReadFindings(context.Background(), "s1", brief.DomainMessaging); !errors.Is(err, store.ErrNotFound) {
		t.Error("failed worker must not write findings")
	}
}

func TestSpecialist_FetcherPanic(t *testing.T) {
	st := store.NewMemoryStore()
	crashing := FetcherFunc(func(ctx context.Context, user string) (*Payload, error) {
		var seen map[string]bool
		seen[user] = true
		return &Payload{}, nil
	})
	err := New(brief.DomainMessaging, crashing, st).Run(context.Background(), "s1", "u1")

	var wf *WorkerFailure
	if !errors.As(err, &wf) || wf.Domain != brief.DomainMessaging {
		t.Fatalf("expected WorkerFailure, got %v", err)
	}
	if !strings.Contains(wf.Err.Error(), "panic") {
		t.Errorf("failure should name the panic: %v", wf.Err)
	}
}

func TestSpecialist_DeepWritesFindings(t *testing.T) {
	var calls int
	provider := llm.NewMockProvider()
	provider.ChatFunc = func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
		calls++
		switch calls {
		case 1:
			return &llm.ChatResponse{ToolCalls: []llm.ToolCallResponse{{ID: "1", Name: "fetch_issue_tracker_data"}}}, nil
		case 2:
			return &llm.ChatResponse{ToolCalls: []llm.ToolCallResponse{{ID: "2", Name: ToolWriteFindings, Args: map[string]interface{}{
				"findings": map[string]interface{}{
					"domain":  "messaging",
					"summary": "one blocked ticket",
					"priorityItems": []interface{}{
						map[string]interface{}{"id": "A-1", "title": "A-1 blocked", "description": "", "priority": "critical"},
					},
				},
			}}}}, nil
		}
		return &llm.ChatResponse{Content: "done"}, nil
	}

	st := store.NewMemoryStore()
	w := New(brief.DomainIssueTracker, staticFetcher(&Payload{}), st, WithDeep(provider, 5), WithClock(clock))
	if w.Mode() != ModeDeep {
		t.Fatalf("mode = %s", w.Mode())
	}
	if err := w.Run(context.Background(), "s1", "u1"); err != nil {
		t.Fatal(err)
	}
	f, err := st.ReadFindings(context.Background(), "s1", brief.DomainIssueTracker)
	if err != nil {
		t.Fatal(err)
	}
	if f.Domain != brief.DomainIssueTracker {
		t.Errorf("domain must be forced, got %s", f.Domain)
	}
	if f.Summary != "one blocked ticket" || f.Metadata["mode"] != "deep" || !f.Timestamp.Equal(now) {
		t.Errorf("unexpected findings: %+v", f)
	}
}

func TestSpecialist_DeepRejectsUnknownFields(t *testing.T) {
	var feedback string
	var calls int
	provider := llm.NewMockProvider()
	provider.ChatFunc = func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
		calls++
		if calls == 1 {
			return &llm.ChatResponse{ToolCalls: []llm.ToolCallResponse{{ID: "1", Name: ToolWriteFindings, Args: map[string]interface{}{
				"findings": map[string]interface{}{"summary": "x", "mood": "great"},
			}}}}, nil
		}
		for _, m := range req.Messages {
			if m.Role == "tool" {
				feedback = m.Content
			}
		}
		return &llm.ChatResponse{Content: "gave up"}, nil
	}

	st := store.NewMemoryStore()
	p := &Payload{Messages: []Message{{ID: "m1", Subject: "urgent", Unread: true}}}
	w := New(brief.DomainMessaging, staticFetcher(p), st, WithDeep(provider, 5), WithClock(clock))
	if err := w.Run(context.Background(), "s1", "u1"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(feedback, "mood") {
		t.Errorf("decode error should be fed back, got %q", feedback)
	}
	f, err := st.ReadFindings(context.Background(), "s1", brief.DomainMessaging)
	if err != nil {
		t.Fatal(err)
	}
	if f.Metadata["mode"] != "fast" {
		t.Errorf("expected fast fallback, got mode %q", f.Metadata["mode"])
	}
}

func TestSpecialist_DeepFallsBackOnIterationLimit(t *testing.T) {
	provider := llm.NewMockProvider()
	provider.ChatFunc = func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
		return &llm.ChatResponse{ToolCalls: []llm.ToolCallResponse{{ID: "x", Name: "fetch_scheduling_data"}}}, nil
	}
	fetches := 0
	fetcher := FetcherFunc(func(ctx context.Context, user string) (*Payload, error) {
		fetches++
		return &Payload{}, nil
	})

	st := store.NewMemoryStore()
	w := New(brief.DomainScheduling, fetcher, st, WithDeep(provider, 2), WithClock(clock))
	if err := w.Run(context.Background(), "s1", "u1"); err != nil {
		t.Fatal(err)
	}
	if fetches != 2 {
		t.Errorf("fallback should reuse the fetched payload, got %d fetches", fetches)
	}
	f, err := st.ReadFindings(context.Background(), "s1", brief.DomainScheduling)
	if err != nil {
		t.Fatal(err)
	}
	if f.Metadata["mode"] != "fast" {
		t.Errorf("expected fast fallback, got %q", f.Metadata["mode"])
	}
}

func TestSpecialist_DeepFallsBackOnProviderError(t *testing.T) {
	provider := llm.NewMockProvider()
	provider.SetError(errors.New("engine down"))

	st := store.NewMemoryStore()
	w := New(brief.DomainCodeReview, staticFetcher(&Payload{}), st, WithDeep(provider, 3), WithClock(clock))
	if err := w.Run(context.Background(), "s1", "u1"); err != nil {
		t.Fatal(err)
	}
	if _, err := st.ReadFindings(context.Background(), "s1", brief.DomainCodeReview); err != nil {
		t.Errorf("fallback should have written findings: %v", err)
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModeFast, "fast": ModeFast, "deep": ModeDeep} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q) = %s, %v", in, got, err)
		}
	}
	if _, err := ParseMode("turbo"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestFetchToolName(t *testing.T) {
	if got := FetchToolName(brief.DomainCodeReview); got != "fetch_code_review_data" {
		t.Errorf("got %s", got)
	}
	if got := FetchToolName(brief.DomainMessaging); got != "fetch_messaging_data" {
		t.Errorf("got %s", got)
	}
}
