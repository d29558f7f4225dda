// Package brief defines the records exchanged by the brief pipeline:
// per-domain findings, cross-domain correlations and the final brief.
package brief

import "time"

// Domain identifies the data domain a worker analyses.
type Domain string

const (
	DomainCodeReview   Domain = "code-review"
	DomainIssueTracker Domain = "issue-tracker"
	DomainMessaging    Domain = "messaging"
	DomainScheduling   Domain = "scheduling"
)

// Domains lists every domain in canonical order.
var Domains = []Domain{DomainCodeReview, DomainIssueTracker, DomainMessaging, DomainScheduling}

// Valid reports whether d is a known domain.
func (d Domain) Valid() bool {
	switch d {
	case DomainCodeReview, DomainIssueTracker, DomainMessaging, DomainScheduling:
		return true
	}
	return false
}

// Rank returns the canonical position of d, or len(Domains) when unknown.
func (d Domain) Rank() int {
	for i, known := range Domains {
		if known == d {
			return i
		}
	}
	return len(Domains)
}

// Priority of a priority item.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Rank orders priorities from most (0) to least urgent.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	}
	return 4
}

// Effort of an action item.
type Effort string

const (
	EffortQuick  Effort = "quick"
	EffortMedium Effort = "medium"
	EffortLarge  Effort = "large"
)

// Valid reports whether e is a known effort.
func (e Effort) Valid() bool {
	switch e {
	case EffortQuick, EffortMedium, EffortLarge:
		return true
	}
	return false
}

// Urgency of an action item.
type Urgency string

const (
	UrgencyImmediate Urgency = "immediate"
	UrgencyToday     Urgency = "today"
	UrgencyThisWeek  Urgency = "this_week"
	UrgencyLater     Urgency = "later"
)

// Valid reports whether u is a known urgency.
func (u Urgency) Valid() bool {
	switch u {
	case UrgencyImmediate, UrgencyToday, UrgencyThisWeek, UrgencyLater:
		return true
	}
	return false
}

// Rank orders urgencies from most (0) to least pressing.
func (u Urgency) Rank() int {
	switch u {
	case UrgencyImmediate:
		return 0
	case UrgencyToday:
		return 1
	case UrgencyThisWeek:
		return 2
	case UrgencyLater:
		return 3
	}
	return 4
}

// DeadlineToday is the deadline value workers use for items due today.
const DeadlineToday = "today"

// PriorityItem is a unit of work ranked by priority.
type PriorityItem struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Priority       Priority `json:"priority"`
	Domain         Domain   `json:"domain"`
	URL            string   `json:"url,omitempty"`
	Deadline       string   `json:"deadline,omitempty"`
	BlockingImpact string   `json:"blockingImpact,omitempty"`
}

// ActionItem is a concrete thing the user can do.
type ActionItem struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Effort      Effort  `json:"effort"`
	Urgency     Urgency `json:"urgency"`
}

// Findings is the output of one specialist worker for one domain.
type Findings struct {
	Domain        Domain            `json:"domain"`
	Timestamp     time.Time         `json:"timestamp"`
	Summary       string            `json:"summary"`
	PriorityItems []PriorityItem    `json:"priorityItems"`
	ActionItems   []ActionItem      `json:"actionItems"`
	Insights      []string          `json:"insights"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// Empty returns the placeholder findings used for a domain that produced
// nothing in a session.
func Empty(d Domain) *Findings {
	return &Findings{
		Domain:        d,
		PriorityItems: []PriorityItem{},
		ActionItems:   []ActionItem{},
		Insights:      []string{},
		Metadata:      map[string]string{"status": "unavailable"},
	}
}

// Produced reports whether the findings came from a worker rather than
// being an empty placeholder.
func (f *Findings) Produced() bool {
	return f != nil && !f.Timestamp.IsZero()
}

// ItemCount returns the number of priority and action items.
func (f *Findings) ItemCount() int {
	if f == nil {
		return 0
	}
	return len(f.PriorityItems) + len(f.ActionItems)
}

// Clone returns a copy of f that shares no slices or maps with it.
func (f *Findings) Clone() *Findings {
	c := *f
	if f.PriorityItems != nil {
		c.PriorityItems = append(make([]PriorityItem, 0, len(f.PriorityItems)), f.PriorityItems...)
	}
	if f.ActionItems != nil {
		c.ActionItems = append(make([]ActionItem, 0, len(f.ActionItems)), f.ActionItems...)
	}
	if f.Insights != nil {
		c.Insights = append(make([]string, 0, len(f.Insights)), f.Insights...)
	}
	if f.Metadata != nil {
		c.Metadata = make(map[string]string, len(f.Metadata))
		for k, v := range f.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// Normalize replaces nil slices with empty ones so the JSON shape is stable.
func (f *Findings) Normalize() {
	if f.PriorityItems == nil {
		f.PriorityItems = []PriorityItem{}
	}
	if f.ActionItems == nil {
		f.ActionItems = []ActionItem{}
	}
	if f.Insights == nil {
		f.Insights = []string{}
	}
	for i := range f.PriorityItems {
		if f.PriorityItems[i].Domain == "" {
			f.PriorityItems[i].Domain = f.Domain
		}
	}
}

// CorrelationType classifies how two items were linked.
type CorrelationType string

const (
	CorrelationExplicit CorrelationType = "explicit"
	CorrelationSemantic CorrelationType = "semantic"
	CorrelationTemporal CorrelationType = "temporal"
)

// Valid reports whether t is a known correlation type.
func (t CorrelationType) Valid() bool {
	switch t {
	case CorrelationExplicit, CorrelationSemantic, CorrelationTemporal:
		return true
	}
	return false
}

// MultipleItems is the placeholder item reference for correlations that
// describe a whole session rather than two items.
const MultipleItems = "multiple"

// Fixed confidences of explicit and temporal correlations.
const (
	ExplicitConfidence = 0.95
	TemporalConfidence = 0.6
)

// FixedConfidence returns the confidence every correlation of type t must
// carry, or false when t is scored.
func FixedConfidence(t CorrelationType) (float64, bool) {
	switch t {
	case CorrelationExplicit:
		return ExplicitConfidence, true
	case CorrelationTemporal:
		return TemporalConfidence, true
	}
	return 0, false
}

// Correlation is a scored relationship between two items.
type Correlation struct {
	ID           string          `json:"id"`
	Type         CorrelationType `json:"type"`
	SourceItem   string          `json:"sourceItem"`
	TargetItem   string          `json:"targetItem"`
	SourceDomain Domain          `json:"sourceDomain"`
	TargetDomain Domain          `json:"targetDomain"`
	Confidence   float64         `json:"confidence"`
	Reason       string          `json:"reason"`
	Actionable   bool            `json:"actionable"`
}

// ClampConfidence bounds c to [0,1].
func ClampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// SectionType is the fixed taxonomy of brief sections.
type SectionType string

const (
	SectionCritical     SectionType = "critical"
	SectionMeetings     SectionType = "meetings"
	SectionReviews      SectionType = "reviews"
	SectionEmails       SectionType = "emails"
	SectionProgress     SectionType = "progress"
	SectionRisks        SectionType = "risks"
	SectionObservations SectionType = "observations"
	SectionFocusTime    SectionType = "focus-time"
)

// SectionOrder is the order sections appear in a brief.
var SectionOrder = []SectionType{
	SectionCritical,
	SectionMeetings,
	SectionReviews,
	SectionEmails,
	SectionProgress,
	SectionRisks,
	SectionObservations,
	SectionFocusTime,
}

// Rank returns the position of t in SectionOrder, or -1 when unknown.
func (t SectionType) Rank() int {
	for i, s := range SectionOrder {
		if s == t {
			return i
		}
	}
	return -1
}

// sectionSpecs holds the title and item cap of each section type.
var sectionSpecs = map[SectionType]struct {
	title string
	cap   int
}{
	SectionCritical:     {"Critical Items", 5},
	SectionMeetings:     {"Meetings", 7},
	SectionReviews:      {"Code Reviews", 5},
	SectionEmails:       {"Messages", 7},
	SectionProgress:     {"Work In Progress", 7},
	SectionRisks:        {"Risks & Blockers", 5},
	SectionObservations: {"Observations", 5},
	SectionFocusTime:    {"Focus Time", 5},
}

// Title returns the display title of t.
func (t SectionType) Title() string {
	return sectionSpecs[t].title
}

// Cap returns the maximum number of items a section of type t may hold.
func (t SectionType) Cap() int {
	return sectionSpecs[t].cap
}

// MaxSectionItems bounds any section, whichever strategy produced it.
const MaxSectionItems = 7

// CorrelationRef summarises a correlation attached to a brief item.
type CorrelationRef struct {
	ID            string          `json:"id"`
	Type          CorrelationType `json:"type"`
	RelatedItem   string          `json:"relatedItem"`
	RelatedDomain Domain          `json:"relatedDomain"`
	Confidence    float64         `json:"confidence"`
	Reason        string          `json:"reason"`
}

// Item is one entry of a brief section.
type Item struct {
	ID             string           `json:"id"`
	Title          string           `json:"title"`
	Description    string           `json:"description,omitempty"`
	Domain         Domain           `json:"domain,omitempty"`
	Priority       Priority         `json:"priority,omitempty"`
	URL            string           `json:"url,omitempty"`
	Deadline       string           `json:"deadline,omitempty"`
	Effort         Effort           `json:"effort,omitempty"`
	Urgency        Urgency          `json:"urgency,omitempty"`
	BlockingImpact string           `json:"blockingImpact,omitempty"`
	Correlations   []CorrelationRef `json:"correlations,omitempty"`
}

// Section groups items of one type.
type Section struct {
	ID             string      `json:"id"`
	Type           SectionType `json:"type"`
	Title          string      `json:"title"`
	Items          []Item      `json:"items"`
	SectionInsight string      `json:"sectionInsight,omitempty"`
}

// OverallInsights summarises the whole brief.
type OverallInsights struct {
	HiddenTasksFound     int      `json:"hiddenTasksFound"`
	CriticalCorrelations []string `json:"criticalCorrelations"`
	WorkPatterns         []string `json:"workPatterns"`
	Recommendations      []string `json:"recommendations"`
}

// Brief is the synthesized report for a session.
type Brief struct {
	ID              string          `json:"id"`
	SessionID       string          `json:"sessionId,omitempty"`
	GeneratedAt     time.Time       `json:"generatedAt"`
	Sections        []Section       `json:"sections"`
	OverallInsights OverallInsights `json:"overallInsights"`
	Degraded        bool            `json:"degraded,omitempty"`
}

// NewEmpty returns a structurally valid brief with no sections.
func NewEmpty(id, sessionID string, at time.Time) *Brief {
	return &Brief{
		ID:          id,
		SessionID:   sessionID,
		GeneratedAt: at,
		Sections:    []Section{},
		OverallInsights: OverallInsights{
			CriticalCorrelations: []string{},
			WorkPatterns:         []string{},
			Recommendations:      []string{},
		},
	}
}
