package workers

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/vinayprograms/workbrief/internal/brief"
)

// Thresholds used by the deterministic analysers.
const (
	StalePRAge          = 3 * 24 * time.Hour
	StaleIssueAge       = 7 * 24 * time.Hour
	PendingReviewsNote  = 5
	UnreadMessagesNote  = 10
	MeetingDensityNote  = 5
	MinFocusGap         = 2 * time.Hour
	BackToBackTolerance = 5 * time.Minute
	WorkdayStartHour    = 9
	WorkdayEndHour      = 18
)

var (
	urgentLabels   = []string{"urgent", "hotfix", "blocker"}
	urgentKeywords = []string{"urgent", "asap", "blocked"}
	requestHints   = []string{"?", "can you", "please"}
	prepHints      = []string{"agenda", "prep", "prepare", "review the", "read before"}
)

func containsAny(text string, needles []string) bool {
	lower := strings.ToLower(text)
	for _, n := range needles {
		if strings.Contains(lower, n) {
			return true
		}
	}
	return false
}

func hasLabel(labels []string, want []string) bool {
	for _, l := range labels {
		for _, w := range want {
			if strings.EqualFold(strings.TrimSpace(l), w) {
				return true
			}
		}
	}
	return false
}

func itemID(d brief.Domain, recordID string) string {
	return string(d) + "-" + recordID
}

// Analyze derives findings from a payload without a reasoning engine. The
// result is a pure function of the payload and now.
func Analyze(d brief.Domain, p *Payload, now time.Time) *brief.Findings {
	if p == nil {
		p = &Payload{Domain: d}
	}
	f := &brief.Findings{
		Domain:    d,
		Timestamp: now,
		Metadata:  map[string]string{"mode": string(ModeFast)},
	}
	switch d {
	case brief.DomainCodeReview:
		analyzePullRequests(f, p.PullRequests, now)
	case brief.DomainIssueTracker:
		analyzeIssues(f, p.Issues, now)
	case brief.DomainMessaging:
		analyzeMessages(f, p.Messages, now)
	case brief.DomainScheduling:
		analyzeEvents(f, p.Events, now)
	}
	f.Normalize()
	return f
}

func analyzePullRequests(f *brief.Findings, prs []PullRequest, now time.Time) {
	var pending, stale, conflicts int
	for _, pr := range prs {
		if pr.Draft || pr.ID == "" {
			continue
		}
		text := pr.Title + " " + pr.Body
		isStale := !pr.UpdatedAt.IsZero() && now.Sub(pr.UpdatedAt) > StalePRAge
		urgent := hasLabel(pr.Labels, urgentLabels) || containsAny(text, urgentKeywords)
		if !pr.ReviewRequested && !isStale && !pr.HasConflicts && !urgent {
			continue
		}

		priority := brief.PriorityMedium
		switch {
		case urgent:
			priority = brief.PriorityCritical
		case pr.HasConflicts, pr.ReviewRequested:
			priority = brief.PriorityHigh
		}

		var notes []string
		if pr.ReviewRequested {
			pending++
			notes = append(notes, "review requested")
		}
		if isStale {
			stale++
			notes = append(notes, fmt.Sprintf("no update for %d days", int(now.Sub(pr.UpdatedAt).Hours()/24)))
		}
		if pr.HasConflicts {
			conflicts++
			notes = append(notes, "merge conflict")
		}
		if pr.Body != "" {
			notes = append(notes, pr.Body)
		}

		item := brief.PriorityItem{
			ID:          itemID(f.Domain, pr.ID),
			Title:       fmt.Sprintf("PR #%d: %s", pr.Number, pr.Title),
			Description: strings.Join(notes, "; "),
			Priority:    priority,
			Domain:      f.Domain,
			URL:         pr.URL,
		}
		if hasLabel(pr.Labels, []string{"blocker"}) {
			item.BlockingImpact = fmt.Sprintf("PR #%d is labelled as a blocker", pr.Number)
		}
		f.PriorityItems = append(f.PriorityItems, item)

		if pr.ReviewRequested {
			urgency := brief.UrgencyThisWeek
			switch priority {
			case brief.PriorityCritical:
				urgency = brief.UrgencyImmediate
			case brief.PriorityHigh:
				urgency = brief.UrgencyToday
			}
			f.ActionItems = append(f.ActionItems, brief.ActionItem{
				ID:          itemID(f.Domain, pr.ID) + "-review",
				Title:       fmt.Sprintf("Review PR #%d: %s", pr.Number, pr.Title),
				Description: pr.Body,
				Effort:      brief.EffortMedium,
				Urgency:     urgency,
			})
		}
		if pr.HasConflicts && !pr.ReviewRequested {
			f.ActionItems = append(f.ActionItems, brief.ActionItem{
				ID:      itemID(f.Domain, pr.ID) + "-conflict",
				Title:   fmt.Sprintf("Resolve merge conflict on PR #%d", pr.Number),
				Effort:  brief.EffortQuick,
				Urgency: brief.UrgencyToday,
			})
		}
	}

	if pending >= PendingReviewsNote {
		f.Insights = append(f.Insights, fmt.Sprintf("%d pull requests are waiting for your review", pending))
	}
	if stale > 0 {
		f.Insights = append(f.Insights, fmt.Sprintf("%d pull requests have not been updated in over 3 days", stale))
	}
	if conflicts > 0 {
		f.Insights = append(f.Insights, fmt.Sprintf("%d pull requests have merge conflicts", conflicts))
	}
	f.Summary = fmt.Sprintf("%d pull requests need attention, %d awaiting your review", len(f.PriorityItems), pending)
}

func mapIssuePriority(p string) brief.Priority {
	switch strings.ToLower(strings.TrimSpace(p)) {
	case "highest", "critical", "blocker", "p0", "urgent":
		return brief.PriorityCritical
	case "high", "p1", "major":
		return brief.PriorityHigh
	case "medium", "normal", "p2":
		return brief.PriorityMedium
	default:
		return brief.PriorityLow
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.In(a.Location()).Date()
	return ay == by && am == bm && ad == bd
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func analyzeIssues(f *brief.Findings, issues []Issue, now time.Time) {
	var blocked, inProgress int
	for _, is := range issues {
		if is.ID == "" {
			continue
		}
		status := strings.ToLower(strings.TrimSpace(is.Status))
		switch status {
		case "done", "closed", "resolved", "won't do", "cancelled":
			continue
		}

		priority := mapIssuePriority(is.Priority)
		item := brief.PriorityItem{
			ID:          itemID(f.Domain, is.ID),
			Title:       fmt.Sprintf("%s: %s", is.ID, is.Title),
			Description: fmt.Sprintf("Status: %s", is.Status),
			Domain:      f.Domain,
			URL:         is.URL,
		}
		if is.Description != "" {
			item.Description += ". " + is.Description
		}

		if is.DueDate != nil {
			switch {
			case sameDay(now, *is.DueDate):
				item.Deadline = brief.DeadlineToday
			case is.DueDate.Before(startOfDay(now)):
				item.Deadline = "overdue"
				if priority.Rank() > brief.PriorityHigh.Rank() {
					priority = brief.PriorityHigh
				}
			default:
				item.Deadline = is.DueDate.In(now.Location()).Format("2006-01-02")
			}
		}

		if status == "blocked" {
			blocked++
			priority = brief.PriorityCritical
			item.BlockingImpact = fmt.Sprintf("%s is blocked and cannot progress", is.ID)
		}
		item.Priority = priority
		f.PriorityItems = append(f.PriorityItems, item)

		if status == "in progress" {
			inProgress++
			urgency := brief.UrgencyThisWeek
			if item.Deadline == brief.DeadlineToday || item.Deadline == "overdue" {
				urgency = brief.UrgencyToday
			}
			f.ActionItems = append(f.ActionItems, brief.ActionItem{
				ID:          itemID(f.Domain, is.ID) + "-progress",
				Title:       fmt.Sprintf("Continue %s: %s", is.ID, is.Title),
				Description: "Ticket in progress",
				Effort:      brief.EffortMedium,
				Urgency:     urgency,
			})
			if !is.UpdatedAt.IsZero() && now.Sub(is.UpdatedAt) > StaleIssueAge {
				f.Insights = append(f.Insights, fmt.Sprintf("%s has been in progress for over 7 days without updates", is.ID))
			}
		}
	}

	if blocked > 0 {
		f.Insights = append(f.Insights, fmt.Sprintf("%d tickets are blocked", blocked))
	}
	f.Summary = fmt.Sprintf("%d open tickets, %d in progress, %d blocked", len(f.PriorityItems), inProgress, blocked)
}

func analyzeMessages(f *brief.Findings, msgs []Message, now time.Time) {
	var unread, awaiting int
	for _, m := range msgs {
		if m.Unread {
			unread++
		}
		if m.ID == "" || (!m.Unread && !m.AwaitingReply) {
			continue
		}
		if m.Subject == "" {
			m.Subject = "(no subject)"
		}
		text := m.Subject + " " + m.Body
		recordID := m.ID

		switch {
		case containsAny(text, urgentKeywords):
			f.PriorityItems = append(f.PriorityItems, brief.PriorityItem{
				ID:          itemID(f.Domain, recordID),
				Title:       m.Subject,
				Description: fmt.Sprintf("Urgent message from %s", m.From),
				Priority:    brief.PriorityCritical,
				Domain:      f.Domain,
				URL:         m.URL,
			})
		case m.AwaitingReply:
			awaiting++
			f.PriorityItems = append(f.PriorityItems, brief.PriorityItem{
				ID:          itemID(f.Domain, recordID),
				Title:       m.Subject,
				Description: fmt.Sprintf("Unresolved thread with %s awaiting your reply", m.From),
				Priority:    brief.PriorityHigh,
				Domain:      f.Domain,
				URL:         m.URL,
			})
		}

		if containsAny(text, requestHints) || m.AwaitingReply {
			urgency := brief.UrgencyToday
			if containsAny(text, urgentKeywords) {
				urgency = brief.UrgencyImmediate
			}
			f.ActionItems = append(f.ActionItems, brief.ActionItem{
				ID:          itemID(f.Domain, recordID) + "-reply",
				Title:       fmt.Sprintf("Reply to %s: %s", m.From, m.Subject),
				Description: m.Body,
				Effort:      brief.EffortQuick,
				Urgency:     urgency,
			})
		}
	}

	if unread >= UnreadMessagesNote {
		f.Insights = append(f.Insights, fmt.Sprintf("%d unread messages in your inbox", unread))
	}
	if awaiting > 0 {
		f.Insights = append(f.Insights, fmt.Sprintf("%d threads are awaiting your reply", awaiting))
	}
	f.Summary = fmt.Sprintf("%d unread messages, %d need a response", unread, len(f.ActionItems))
}

func analyzeEvents(f *brief.Findings, events []Event, now time.Time) {
	var today []Event
	for _, e := range events {
		if e.ID != "" && sameDay(now, e.Start) {
			if e.Title == "" {
				e.Title = "(untitled event)"
			}
			today = append(today, e)
		}
	}
	sort.SliceStable(today, func(i, j int) bool { return today[i].Start.Before(today[j].Start) })

	loc := now.Location()
	for _, e := range today {
		start, end := e.Start.In(loc), e.End.In(loc)
		desc := fmt.Sprintf("%s-%s", start.Format("15:04"), end.Format("15:04"))
		if len(e.Attendees) > 0 {
			desc += fmt.Sprintf(" with %d attendees", len(e.Attendees))
		}
		if e.Description != "" {
			desc += ". " + e.Description
		}
		priority := brief.PriorityMedium
		if len(e.Attendees) >= 8 {
			priority = brief.PriorityHigh
		}
		f.PriorityItems = append(f.PriorityItems, brief.PriorityItem{
			ID:          itemID(f.Domain, e.ID),
			Title:       e.Title,
			Description: desc,
			Priority:    priority,
			Domain:      f.Domain,
			URL:         e.URL,
		})

		if containsAny(e.Title+" "+e.Description, prepHints) && end.After(now) {
			urgency := brief.UrgencyToday
			if start.Sub(now) <= time.Hour {
				urgency = brief.UrgencyImmediate
			}
			f.ActionItems = append(f.ActionItems, brief.ActionItem{
				ID:          itemID(f.Domain, e.ID) + "-prep",
				Title:       "Prepare for " + e.Title,
				Description: e.Description,
				Effort:      brief.EffortQuick,
				Urgency:     urgency,
			})
		}
	}

	if len(today) >= MeetingDensityNote {
		f.Insights = append(f.Insights, fmt.Sprintf("Meeting-heavy day: %d meetings scheduled", len(today)))
	}

	backToBack := 0
	for i := 1; i < len(today); i++ {
		if today[i].Start.Sub(today[i-1].End) <= BackToBackTolerance {
			backToBack++
		}
	}
	if backToBack > 0 {
		f.Insights = append(f.Insights, fmt.Sprintf("%d back-to-back meetings with no break", backToBack))
	}

	for _, gap := range freeGaps(today, now) {
		f.ActionItems = append(f.ActionItems, brief.ActionItem{
			ID:          fmt.Sprintf("%s-focus-%s", f.Domain, gap[0].Format("1504")),
			Title:       fmt.Sprintf("Focus block %s-%s", gap[0].Format("15:04"), gap[1].Format("15:04")),
			Description: fmt.Sprintf("%d minutes free for deep work", int(gap[1].Sub(gap[0]).Minutes())),
			Effort:      brief.EffortLarge,
			Urgency:     brief.UrgencyToday,
		})
	}

	f.Summary = fmt.Sprintf("%d meetings today, %d need preparation", len(today), countPrep(f.ActionItems))
}

// freeGaps returns the gaps of at least MinFocusGap between now (or the
// start of the workday) and the end of the workday. events must be sorted.
func freeGaps(events []Event, now time.Time) [][2]time.Time {
	loc := now.Location()
	day := startOfDay(now)
	cursor := day.Add(WorkdayStartHour * time.Hour)
	if now.After(cursor) {
		cursor = now
	}
	end := day.Add(WorkdayEndHour * time.Hour)

	var gaps [][2]time.Time
	for _, e := range events {
		start, stop := e.Start.In(loc), e.End.In(loc)
		if start.After(end) {
			break
		}
		if start.Sub(cursor) >= MinFocusGap {
			gaps = append(gaps, [2]time.Time{cursor, start})
		}
		if stop.After(cursor) {
			cursor = stop
		}
	}
	if end.Sub(cursor) >= MinFocusGap {
		gaps = append(gaps, [2]time.Time{cursor, end})
	}
	return gaps
}

func countPrep(actions []brief.ActionItem) int {
	n := 0
	for _, a := range actions {
		if strings.HasSuffix(a.ID, "-prep") {
			n++
		}
	}
	return n
}
