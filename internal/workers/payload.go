package workers

import (
	"context"
	"time"

	"github.com/vinayprograms/workbrief/internal/brief"
)

// PullRequest is a code-review record.
type PullRequest struct {
	ID              string    `json:"id" yaml:"id"`
	Number          int       `json:"number" yaml:"number"`
	Title           string    `json:"title" yaml:"title"`
	Body            string    `json:"body,omitempty" yaml:"body"`
	URL             string    `json:"url,omitempty" yaml:"url"`
	Repository      string    `json:"repository,omitempty" yaml:"repository"`
	Author          string    `json:"author,omitempty" yaml:"author"`
	Labels          []string  `json:"labels,omitempty" yaml:"labels"`
	ReviewRequested bool      `json:"reviewRequested" yaml:"reviewRequested"`
	HasConflicts    bool      `json:"hasConflicts" yaml:"hasConflicts"`
	Draft           bool      `json:"draft,omitempty" yaml:"draft"`
	UpdatedAt       time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// Issue is an issue-tracker record. ID is the tracker key (e.g. PROJ-12).
type Issue struct {
	ID          string     `json:"id" yaml:"id"`
	Title       string     `json:"title" yaml:"title"`
	Description string     `json:"description,omitempty" yaml:"description"`
	Status      string     `json:"status" yaml:"status"`
	Priority    string     `json:"priority,omitempty" yaml:"priority"`
	URL         string     `json:"url,omitempty" yaml:"url"`
	Assignee    string     `json:"assignee,omitempty" yaml:"assignee"`
	DueDate     *time.Time `json:"dueDate,omitempty" yaml:"dueDate"`
	UpdatedAt   time.Time  `json:"updatedAt" yaml:"updatedAt"`
}

// Message is a messaging record (email or chat).
type Message struct {
	ID            string    `json:"id" yaml:"id"`
	ThreadID      string    `json:"threadId,omitempty" yaml:"threadId"`
	From          string    `json:"from" yaml:"from"`
	Subject       string    `json:"subject" yaml:"subject"`
	Body          string    `json:"body,omitempty" yaml:"body"`
	Channel       string    `json:"channel,omitempty" yaml:"channel"`
	URL           string    `json:"url,omitempty" yaml:"url"`
	Unread        bool      `json:"unread" yaml:"unread"`
	AwaitingReply bool      `json:"awaitingReply" yaml:"awaitingReply"`
	ReceivedAt    time.Time `json:"receivedAt" yaml:"receivedAt"`
}

// Event is a calendar record.
type Event struct {
	ID          string    `json:"id" yaml:"id"`
	Title       string    `json:"title" yaml:"title"`
	Description string    `json:"description,omitempty" yaml:"description"`
	Location    string    `json:"location,omitempty" yaml:"location"`
	URL         string    `json:"url,omitempty" yaml:"url"`
	Attendees   []string  `json:"attendees,omitempty" yaml:"attendees"`
	Start       time.Time `json:"start" yaml:"start"`
	End         time.Time `json:"end" yaml:"end"`
}

// Payload is the raw data a fetcher returns for one domain. Only the slice
// matching Domain is meaningful.
type Payload struct {
	Domain       brief.Domain  `json:"domain" yaml:"domain"`
	User         string        `json:"user,omitempty" yaml:"user"`
	PullRequests []PullRequest `json:"pullRequests,omitempty" yaml:"pullRequests"`
	Issues       []Issue       `json:"issues,omitempty" yaml:"issues"`
	Messages     []Message     `json:"messages,omitempty" yaml:"messages"`
	Events       []Event       `json:"events,omitempty" yaml:"events"`
}

// Fetcher retrieves one domain's payload for a user. Implementations are
// read-only.
type Fetcher interface {
	Fetch(ctx context.Context, user string) (*Payload, error)
}

// FetcherFunc adapts a function into a Fetcher.
type FetcherFunc func(ctx context.Context, user string) (*Payload, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, user string) (*Payload, error) {
	return f(ctx, user)
}
