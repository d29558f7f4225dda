package correlate

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/vinayprograms/workbrief/internal/brief"
	"github.com/vinayprograms/workbrief/internal/ids"
)

// Confidence levels of the fast rules.
const (
	ExplicitConfidence       = brief.ExplicitConfidence
	TemporalConfidence       = brief.TemporalConfidence
	SemanticBase             = 0.7
	SemanticStep             = 0.1
	MinSharedKeywords        = 2
	ThreadPrepConfidence     = 0.75
	ReviewProgressConfidence = 0.8
	TemporalWindow           = time.Hour
)

// Vocabulary is the controlled keyword list of the semantic rule.
var Vocabulary = []string{
	"authentication", "api", "database", "performance", "security",
	"deployment", "bug", "feature", "refactor", "test", "architecture",
	"design", "review", "merge", "conflict",
}

var (
	ticketRef = regexp.MustCompile(`\b[A-Z]+-\d+\b`)
	hashRef   = regexp.MustCompile(`#\d+\b`)
	wordSplit = regexp.MustCompile(`[^a-z0-9]+`)
)

var vocab = func() map[string]bool {
	m := make(map[string]bool, len(Vocabulary))
	for _, w := range Vocabulary {
		m[w] = true
	}
	return m
}()

// ReferenceTokens returns the ticket and hash references in text, sorted
// and de-duplicated.
func ReferenceTokens(text string) []string {
	set := make(map[string]bool)
	for _, t := range ticketRef.FindAllString(text, -1) {
		set[t] = true
	}
	for _, t := range hashRef.FindAllString(text, -1) {
		set[t] = true
	}
	return sortedKeys(set)
}

// Keywords returns the vocabulary words present in text, sorted. Simple
// plurals ("reviews", "tests") count as their singular.
func Keywords(text string) []string {
	set := make(map[string]bool)
	for _, w := range wordSplit.Split(strings.ToLower(text), -1) {
		switch {
		case vocab[w]:
			set[w] = true
		case strings.HasSuffix(w, "s") && vocab[strings.TrimSuffix(w, "s")]:
			set[strings.TrimSuffix(w, "s")] = true
		}
	}
	return sortedKeys(set)
}

// SemanticConfidence is min(1, 0.7 + 0.1*n), rounded to two decimals.
func SemanticConfidence(shared int) float64 {
	return round2(brief.ClampConfidence(SemanticBase + SemanticStep*float64(shared)))
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func intersect(a, b []string) []string {
	in := make(map[string]bool, len(a))
	for _, x := range a {
		in[x] = true
	}
	var out []string
	for _, y := range b {
		if in[y] {
			out = append(out, y)
		}
	}
	return out
}

type scannedItem struct {
	ref      brief.Ref
	tokens   []string
	keywords []string
	lower    string
}

func scan(set brief.Set) []scannedItem {
	refs := set.Items()
	out := make([]scannedItem, 0, len(refs))
	for _, r := range refs {
		text := r.Text()
		out = append(out, scannedItem{
			ref:      r,
			tokens:   ReferenceTokens(text),
			keywords: Keywords(text),
			lower:    strings.ToLower(text),
		})
	}
	return out
}

func pairCorrelation(t brief.CorrelationType, a, b brief.Ref, confidence float64, reason string, actionable bool) brief.Correlation {
	return brief.Correlation{
		Type:         t,
		SourceItem:   a.ID,
		TargetItem:   b.ID,
		SourceDomain: a.Domain,
		TargetDomain: b.Domain,
		Confidence:   confidence,
		Reason:       reason,
		Actionable:   actionable,
	}
}

func explicitRule(items []scannedItem) []brief.Correlation {
	var out []brief.Correlation
	for i := range items {
		for j := i + 1; j < len(items); j++ {
			a, b := items[i], items[j]
			if a.ref.Domain == b.ref.Domain {
				continue
			}
			shared := intersect(a.tokens, b.tokens)
			if len(shared) == 0 {
				continue
			}
			reason := fmt.Sprintf("Both reference %s", strings.Join(shared, ", "))
			out = append(out, pairCorrelation(brief.CorrelationExplicit, a.ref, b.ref, ExplicitConfidence, reason, true))
		}
	}
	return out
}

func semanticRule(items []scannedItem) []brief.Correlation {
	var out []brief.Correlation
	for i := range items {
		for j := i + 1; j < len(items); j++ {
			a, b := items[i], items[j]
			if a.ref.Domain == b.ref.Domain {
				continue
			}
			shared := intersect(a.keywords, b.keywords)
			if len(shared) < MinSharedKeywords {
				continue
			}
			actionable := false
			for _, k := range shared {
				if k == "review" || k == "merge" {
					actionable = true
				}
			}
			reason := fmt.Sprintf("Shared topics: %s", strings.Join(shared, ", "))
			out = append(out, pairCorrelation(brief.CorrelationSemantic, a.ref, b.ref, SemanticConfidence(len(shared)), reason, actionable))
		}
	}
	return out
}

func temporalRule(set brief.Set) []brief.Correlation {
	produced := set.Produced()
	if len(produced) < 2 {
		return nil
	}
	earliest, latest := produced[0], produced[0]
	for _, f := range produced[1:] {
		if f.Timestamp.Before(earliest.Timestamp) {
			earliest = f
		}
		if f.Timestamp.After(latest.Timestamp) {
			latest = f
		}
	}
	if earliest == latest {
		latest = produced[len(produced)-1]
	}
	span := latest.Timestamp.Sub(earliest.Timestamp)
	if span >= TemporalWindow {
		return nil
	}
	return []brief.Correlation{{
		Type:         brief.CorrelationTemporal,
		SourceItem:   brief.MultipleItems,
		TargetItem:   brief.MultipleItems,
		SourceDomain: earliest.Domain,
		TargetDomain: latest.Domain,
		Confidence:   TemporalConfidence,
		Reason:       fmt.Sprintf("%d domains reported activity within %d minutes", len(produced), int(span.Minutes())),
		Actionable:   false,
	}}
}

type workflowPattern struct {
	sourceDomain brief.Domain
	sourceHints  []string
	targetDomain brief.Domain
	targetHints  []string
	confidence   float64
	reason       string
}

var workflowPatterns = []workflowPattern{
	{
		sourceDomain: brief.DomainMessaging,
		sourceHints:  []string{"unresolved", "awaiting", "follow up", "follow-up", "thread"},
		targetDomain: brief.DomainScheduling,
		targetHints:  []string{"prep", "prepare", "agenda"},
		confidence:   ThreadPrepConfidence,
		reason:       "Unresolved message thread may need an answer before meeting %q",
	},
	{
		sourceDomain: brief.DomainCodeReview,
		sourceHints:  []string{"review"},
		targetDomain: brief.DomainIssueTracker,
		targetHints:  []string{"in progress"},
		confidence:   ReviewProgressConfidence,
		reason:       "Active code review likely relates to in-progress ticket %q",
	},
}

func matchesAny(lower string, hints []string) bool {
	for _, h := range hints {
		if strings.Contains(lower, h) {
			return true
		}
	}
	return false
}

// workflowRule pairs each matching source item with the first matching
// target item in canonical order.
func workflowRule(items []scannedItem) []brief.Correlation {
	var out []brief.Correlation
	for _, p := range workflowPatterns {
		var target *scannedItem
		for i := range items {
			if items[i].ref.Domain == p.targetDomain && matchesAny(items[i].lower, p.targetHints) {
				target = &items[i]
				break
			}
		}
		if target == nil {
			continue
		}
		for _, it := range items {
			if it.ref.Domain != p.sourceDomain || !matchesAny(it.lower, p.sourceHints) {
				continue
			}
			reason := fmt.Sprintf(p.reason, target.ref.Title)
			out = append(out, pairCorrelation(brief.CorrelationSemantic, it.ref, target.ref, p.confidence, reason, true))
		}
	}
	return out
}

// Detect runs every fast rule over set and returns the union, sorted by
// descending confidence. Within one rule a (type, source, target) triple
// is kept once with its highest confidence. Ids are assigned from idp
// after sorting.
func Detect(set brief.Set, idp ids.Provider) []brief.Correlation {
	items := scan(set)

	rules := []struct {
		name string
		cs   []brief.Correlation
	}{
		{"explicit", explicitRule(items)},
		{"semantic", semanticRule(items)},
		{"temporal", temporalRule(set)},
		{"workflow", workflowRule(items)},
	}

	type key struct {
		rule           string
		t              brief.CorrelationType
		source, target string
	}
	best := make(map[key]int)
	var out []brief.Correlation
	for _, r := range rules {
		for _, c := range r.cs {
			k := key{r.name, c.Type, c.SourceItem, c.TargetItem}
			if i, ok := best[k]; ok {
				if c.Confidence > out[i].Confidence {
					out[i] = c
				}
				continue
			}
			best[k] = len(out)
			out = append(out, c)
		}
	}

	Sort(out)
	for i := range out {
		out[i].ID = idp.New("corr")
	}
	if out == nil {
		out = []brief.Correlation{}
	}
	return out
}

// Sort orders correlations by descending confidence, then type, source id
// and target id.
func Sort(cs []brief.Correlation) {
	sort.SliceStable(cs, func(i, j int) bool {
		a, b := cs[i], cs[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		if a.SourceItem != b.SourceItem {
			return a.SourceItem < b.SourceItem
		}
		return a.TargetItem < b.TargetItem
	})
}

// Validate checks the range and reference invariants of cs against set.
func Validate(cs []brief.Correlation, set brief.Set) error {
	return brief.ValidateCorrelations(cs, set)
}
