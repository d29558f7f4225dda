package synth

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/vinayprograms/workbrief/internal/brief"
)

// Thresholds of the rule-based insights.
const (
	WorkloadThreshold          = 10
	CriticalCorrelationMin     = 0.8
	MaxCriticalCorrelations    = 5
	MeetingHeavyThreshold      = 5
	CriticalCompetingThreshold = 3
	MessageBacklogThreshold    = 5
)

// Recommendation texts.
const (
	RecommendWorkload    = "Workload is high: start with the critical section and defer low-priority items."
	RecommendBlockers    = "Resolve blockers first: %d items are holding up other work."
	RecommendFocus       = "Protect your focus blocks for deep work."
	RecommendUnavailable = "Analysis unavailable; please retry."
)

// Rules is the deterministic strategy. It never fails.
type Rules struct{}

// NewRules creates the rule-based strategy.
func NewRules() *Rules { return &Rules{} }

// Name returns "rules".
func (r *Rules) Name() string { return "rules" }

type classified struct {
	item     brief.Item
	priority int
	urgency  int
	domain   int
}

// classify returns the first section whose predicate matches ref.
func classify(ref brief.Ref) (brief.SectionType, bool) {
	title := strings.ToLower(ref.Title)
	p, a := ref.Priority, ref.Action
	largeAction := a != nil && a.Effort == brief.EffortLarge

	switch {
	case p != nil && (p.Priority == brief.PriorityCritical || p.Deadline == brief.DeadlineToday):
		return brief.SectionCritical, true
	case p != nil && p.BlockingImpact != "":
		return brief.SectionRisks, true
	case (ref.Domain == brief.DomainScheduling && !largeAction) || strings.Contains(title, "meeting"):
		return brief.SectionMeetings, true
	case a != nil && strings.Contains(title, "review"):
		return brief.SectionReviews, true
	case ref.Domain == brief.DomainMessaging:
		return brief.SectionEmails, true
	case ref.Domain == brief.DomainIssueTracker || ref.Domain == brief.DomainCodeReview:
		return brief.SectionProgress, true
	case largeAction:
		return brief.SectionFocusTime, true
	}
	return "", false
}

func toItem(ref brief.Ref, corrs []brief.CorrelationRef) classified {
	it := brief.Item{
		ID:           ref.ID,
		Title:        ref.Title,
		Description:  ref.Description,
		Domain:       ref.Domain,
		Correlations: corrs,
	}
	c := classified{priority: 4, urgency: 4, domain: ref.Domain.Rank()}
	if p := ref.Priority; p != nil {
		it.Priority = p.Priority
		it.URL = p.URL
		it.Deadline = p.Deadline
		it.BlockingImpact = p.BlockingImpact
		c.priority = p.Priority.Rank()
	}
	if a := ref.Action; a != nil {
		it.Effort = a.Effort
		it.Urgency = a.Urgency
		c.urgency = a.Urgency.Rank()
	}
	c.item = it
	return c
}

// correlationRefs indexes item-level correlations by item id. Temporal
// correlations over "multiple" items attach to nothing.
func correlationRefs(cs []brief.Correlation) map[string][]brief.CorrelationRef {
	out := make(map[string][]brief.CorrelationRef)
	for _, c := range cs {
		if c.SourceItem == brief.MultipleItems || c.TargetItem == brief.MultipleItems {
			continue
		}
		out[c.SourceItem] = append(out[c.SourceItem], brief.CorrelationRef{
			ID: c.ID, Type: c.Type, RelatedItem: c.TargetItem, RelatedDomain: c.TargetDomain,
			Confidence: c.Confidence, Reason: c.Reason,
		})
		out[c.TargetItem] = append(out[c.TargetItem], brief.CorrelationRef{
			ID: c.ID, Type: c.Type, RelatedItem: c.SourceItem, RelatedDomain: c.SourceDomain,
			Confidence: c.Confidence, Reason: c.Reason,
		})
	}
	return out
}

// Synthesize groups items into sections and derives overall insights.
func (r *Rules) Synthesize(ctx context.Context, in Input) (*brief.Brief, error) {
	return Build(in), nil
}

// Build is the pure rule-based synthesis.
func Build(in Input) *brief.Brief {
	set := in.Set
	if set == nil {
		set = brief.NewSet(nil)
	}
	b := brief.NewEmpty(in.BriefID, in.Session, in.At)
	corrs := correlationRefs(in.Correlations)

	grouped := make(map[brief.SectionType][]classified)
	for _, ref := range set.Items() {
		st, ok := classify(ref)
		if !ok {
			continue
		}
		grouped[st] = append(grouped[st], toItem(ref, corrs[ref.ID]))
	}
	for _, f := range set.Produced() {
		for i, insight := range f.Insights {
			if strings.TrimSpace(insight) == "" {
				continue
			}
			grouped[brief.SectionObservations] = append(grouped[brief.SectionObservations], classified{
				item: brief.Item{
					ID:     fmt.Sprintf("insight-%s-%d", f.Domain, i+1),
					Title:  insight,
					Domain: f.Domain,
				},
			})
		}
	}

	for _, st := range brief.SectionOrder {
		entries := grouped[st]
		if len(entries) == 0 {
			continue
		}
		if st != brief.SectionObservations {
			sort.SliceStable(entries, func(i, j int) bool {
				a, c := entries[i], entries[j]
				if a.priority != c.priority {
					return a.priority < c.priority
				}
				if a.urgency != c.urgency {
					return a.urgency < c.urgency
				}
				if a.domain != c.domain {
					return a.domain < c.domain
				}
				return a.item.ID < c.item.ID
			})
		}
		limit := st.Cap()
		section := brief.Section{
			ID:    "section-" + string(st),
			Type:  st,
			Title: st.Title(),
		}
		for i, e := range entries {
			if i == limit {
				break
			}
			section.Items = append(section.Items, e.item)
		}
		if len(entries) > limit {
			section.SectionInsight = fmt.Sprintf("Showing %d of %d items", limit, len(entries))
		}
		b.Sections = append(b.Sections, section)
	}

	b.OverallInsights = overallInsights(set, in.Correlations, grouped)
	b.Normalize()
	return b
}

func overallInsights(set brief.Set, cs []brief.Correlation, grouped map[brief.SectionType][]classified) brief.OverallInsights {
	oi := brief.OverallInsights{
		CriticalCorrelations: []string{},
		WorkPatterns:         []string{},
		Recommendations:      []string{},
	}
	for _, c := range cs {
		if c.Actionable {
			oi.HiddenTasksFound++
		}
		if c.Confidence >= CriticalCorrelationMin && len(oi.CriticalCorrelations) < MaxCriticalCorrelations {
			oi.CriticalCorrelations = append(oi.CriticalCorrelations, c.Reason)
		}
		if c.Type == brief.CorrelationTemporal {
			oi.WorkPatterns = append(oi.WorkPatterns, "Activity is clustered: "+c.Reason)
		}
	}

	if n := len(grouped[brief.SectionMeetings]); n >= MeetingHeavyThreshold {
		oi.WorkPatterns = append(oi.WorkPatterns, fmt.Sprintf("Meeting-heavy day with %d calendar items", n))
	}
	if n := len(grouped[brief.SectionCritical]); n >= CriticalCompetingThreshold {
		oi.WorkPatterns = append(oi.WorkPatterns, fmt.Sprintf("%d critical items compete for attention", n))
	}
	if n := len(grouped[brief.SectionEmails]); n >= MessageBacklogThreshold {
		oi.WorkPatterns = append(oi.WorkPatterns, fmt.Sprintf("Communication backlog of %d messages", n))
	}

	if set.PriorityCount() > WorkloadThreshold {
		oi.Recommendations = append(oi.Recommendations, RecommendWorkload)
	}
	blockers := 0
	for _, ref := range set.Items() {
		if ref.Priority != nil && ref.Priority.BlockingImpact != "" {
			blockers++
		}
	}
	if blockers > 0 {
		oi.Recommendations = append(oi.Recommendations, fmt.Sprintf(RecommendBlockers, blockers))
	}
	if len(grouped[brief.SectionFocusTime]) > 0 {
		oi.Recommendations = append(oi.Recommendations, RecommendFocus)
	}
	return oi
}

// Degraded returns the minimal brief used when no strategy succeeded.
func Degraded(in Input) *brief.Brief {
	b := brief.NewEmpty(in.BriefID, in.Session, in.At)
	b.Degraded = true
	b.OverallInsights.Recommendations = []string{RecommendUnavailable}
	return b
}
