package fetch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vinayprograms/workbrief/internal/brief"
)

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestFixture_YAML(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "issue-tracker.yaml"), `
issues:
  - id: JIRA-55
    title: Login fails for SSO users
    status: Blocked
    priority: High
    dueDate: 2026-03-02T17:00:00Z
    updatedAt: 2026-03-01T10:00:00Z
`)
	p, err := NewFixture(dir, brief.DomainIssueTracker).Fetch(context.Background(), "dana")
	if err != nil {
		t.Fatal(err)
	}
	if p.Domain != brief.DomainIssueTracker || p.User != "dana" {
		t.Errorf("domain/user = %s/%s", p.Domain, p.User)
	}
	if len(p.Issues) != 1 || p.Issues[0].ID != "JIRA-55" {
		t.Fatalf("issues = %+v", p.Issues)
	}
	want := time.Date(2026, 3, 2, 17, 0, 0, 0, time.UTC)
	if p.Issues[0].DueDate == nil || !p.Issues[0].DueDate.Equal(want) {
		t.Errorf("dueDate = %v, want %v", p.Issues[0].DueDate, want)
	}
}

func TestFixture_JSON(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "messaging.json"), `{"messages":[{"id":"m1","from":"Sam","subject":"Hi","unread":true,"receivedAt":"2026-03-02T08:00:00Z"}]}`)
	p, err := NewFixture(dir, brief.DomainMessaging).Fetch(context.Background(), "dana")
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Messages) != 1 || !p.Messages[0].Unread {
		t.Errorf("messages = %+v", p.Messages)
	}
}

func TestFixture_UserDirectoryWins(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "scheduling.yaml"), "events:\n  - id: shared\n    title: Shared\n")
	write(t, filepath.Join(dir, "alice", "scheduling.yaml"), "events:\n  - id: mine\n    title: Mine\n")

	p, err := NewFixture(dir, brief.DomainScheduling).Fetch(context.Background(), "alice")
	if err != nil {
		t.Fatal(err)
	}
	if p.Events[0].ID != "mine" {
		t.Errorf("alice should get her own fixture, got %s", p.Events[0].ID)
	}

	p, err = NewFixture(dir, brief.DomainScheduling).Fetch(context.Background(), "bob")
	if err != nil {
		t.Fatal(err)
	}
	if p.Events[0].ID != "shared" {
		t.Errorf("bob should get the shared fixture, got %s", p.Events[0].ID)
	}
}

func TestFixture_Missing(t *testing.T) {
	_, err := NewFixture(t.TempDir(), brief.DomainCodeReview).Fetch(context.Background(), "dana")
	if !errors.Is(err, ErrNoFixture) {
		t.Errorf("want ErrNoFixture, got %v", err)
	}
}

func TestFixture_DomainMismatch(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "code-review.yaml"), "domain: messaging\n")
	if _, err := NewFixture(dir, brief.DomainCodeReview).Fetch(context.Background(), ""); err == nil {
		t.Error("expected a domain mismatch error")
	}
}

func TestFixture_Malformed(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "code-review.json"), "{not json")
	if _, err := NewFixture(dir, brief.DomainCodeReview).Fetch(context.Background(), ""); err == nil {
		t.Error("expected a parse error")
	}
}

func TestFixture_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewFixture(t.TempDir(), brief.DomainCodeReview).Fetch(ctx, ""); !errors.Is(err, context.Canceled) {
		t.Errorf("want context.Canceled, got %v", err)
	}
}

func TestAll(t *testing.T) {
	fetchers := All(t.TempDir())
	if len(fetchers) != len(brief.Domains) {
		t.Errorf("got %d fetchers", len(fetchers))
	}
}
