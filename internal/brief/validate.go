package brief

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrParse marks output that could not be decoded against a schema.
var ErrParse = errors.New("parse error")

// ParseError describes why a payload failed to decode or validate.
type ParseError struct {
	Schema string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error: %s: %s", e.Schema, e.Reason)
}

// Is lets errors.Is(err, ErrParse) match any ParseError.
func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

func parseErr(schema, format string, args ...interface{}) error {
	return &ParseError{Schema: schema, Reason: fmt.Sprintf(format, args...)}
}

// DecodeStrict decodes exactly one JSON value into v, rejecting unknown
// fields and trailing content. Surrounding whitespace is allowed; prose or
// code fences are not.
func DecodeStrict(schema string, data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(bytes.TrimSpace(data)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return parseErr(schema, "%v", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return parseErr(schema, "unexpected content after JSON value")
	}
	return nil
}

// ValidateFindings checks enum fields and item identity.
func ValidateFindings(f *Findings) error {
	if f == nil {
		return parseErr("findings", "missing")
	}
	if !f.Domain.Valid() {
		return parseErr("findings", "unknown domain %q", f.Domain)
	}
	seen := make(map[string]bool)
	for i, p := range f.PriorityItems {
		if strings.TrimSpace(p.ID) == "" || strings.TrimSpace(p.Title) == "" {
			return parseErr("findings", "priorityItems[%d]: id and title are required", i)
		}
		if !p.Priority.Valid() {
			return parseErr("findings", "priorityItems[%d]: unknown priority %q", i, p.Priority)
		}
		if p.Domain != "" && p.Domain != f.Domain {
			return parseErr("findings", "priorityItems[%d]: domain %q does not match %q", i, p.Domain, f.Domain)
		}
		if seen[p.ID] {
			return parseErr("findings", "duplicate item id %q", p.ID)
		}
		seen[p.ID] = true
	}
	for i, a := range f.ActionItems {
		if strings.TrimSpace(a.ID) == "" || strings.TrimSpace(a.Title) == "" {
			return parseErr("findings", "actionItems[%d]: id and title are required", i)
		}
		if !a.Effort.Valid() {
			return parseErr("findings", "actionItems[%d]: unknown effort %q", i, a.Effort)
		}
		if !a.Urgency.Valid() {
			return parseErr("findings", "actionItems[%d]: unknown urgency %q", i, a.Urgency)
		}
		if seen[a.ID] {
			return parseErr("findings", "duplicate item id %q", a.ID)
		}
		seen[a.ID] = true
	}
	return nil
}

// ValidateCorrelations checks types, confidences and that every item
// reference resolves inside set. Linked items must come from different
// domains and the declared domains must be theirs.
func ValidateCorrelations(cs []Correlation, set Set) error {
	idx := set.Index()
	for i, c := range cs {
		if !c.Type.Valid() {
			return parseErr("correlations", "[%d]: unknown type %q", i, c.Type)
		}
		if c.Confidence < 0 || c.Confidence > 1 {
			return parseErr("correlations", "[%d]: confidence %v outside [0,1]", i, c.Confidence)
		}
		if want, ok := FixedConfidence(c.Type); ok && c.Confidence != want {
			return parseErr("correlations", "[%d]: %s confidence must be %v, got %v", i, c.Type, want, c.Confidence)
		}
		if c.Type == CorrelationTemporal && c.SourceItem == MultipleItems && c.TargetItem == MultipleItems {
			continue
		}
		src, ok := idx[c.SourceItem]
		if !ok {
			return parseErr("correlations", "[%d]: item %q not found in findings", i, c.SourceItem)
		}
		dst, ok := idx[c.TargetItem]
		if !ok {
			return parseErr("correlations", "[%d]: item %q not found in findings", i, c.TargetItem)
		}
		if src.Domain == dst.Domain {
			return parseErr("correlations", "[%d]: %q and %q are both in %s", i, c.SourceItem, c.TargetItem, src.Domain)
		}
		if c.SourceDomain != src.Domain || c.TargetDomain != dst.Domain {
			return parseErr("correlations", "[%d]: domains %s->%s do not match items (%s->%s)",
				i, c.SourceDomain, c.TargetDomain, src.Domain, dst.Domain)
		}
	}
	return nil
}

// ValidateBrief checks section taxonomy, ordering, caps and item ids.
// When set is non-nil, item ids must resolve inside it.
func ValidateBrief(b *Brief, set Set) error {
	if b == nil {
		return parseErr("brief", "missing")
	}
	var idx map[string]Ref
	if set != nil {
		idx = set.Index()
	}
	last := -1
	for i, s := range b.Sections {
		rank := s.Type.Rank()
		if rank < 0 {
			return parseErr("brief", "sections[%d]: unknown type %q", i, s.Type)
		}
		if rank <= last {
			return parseErr("brief", "sections[%d]: %q out of order or repeated", i, s.Type)
		}
		last = rank
		if len(s.Items) == 0 {
			return parseErr("brief", "sections[%d]: %q has no items", i, s.Type)
		}
		if len(s.Items) > MaxSectionItems {
			return parseErr("brief", "sections[%d]: %q has %d items, cap is %d", i, s.Type, len(s.Items), MaxSectionItems)
		}
		for j, it := range s.Items {
			if strings.TrimSpace(it.ID) == "" || strings.TrimSpace(it.Title) == "" {
				return parseErr("brief", "sections[%d].items[%d]: id and title are required", i, j)
			}
			if idx != nil && s.Type != SectionObservations {
				if _, ok := idx[it.ID]; !ok {
					return parseErr("brief", "sections[%d].items[%d]: item %q not found in findings", i, j, it.ID)
				}
			}
		}
	}
	if b.OverallInsights.HiddenTasksFound < 0 {
		return parseErr("brief", "hiddenTasksFound is negative")
	}
	return nil
}

// Normalize fills nil slices so a brief always serializes with the same shape.
func (b *Brief) Normalize() {
	if b.Sections == nil {
		b.Sections = []Section{}
	}
	for i := range b.Sections {
		if b.Sections[i].Title == "" {
			b.Sections[i].Title = b.Sections[i].Type.Title()
		}
		if b.Sections[i].Items == nil {
			b.Sections[i].Items = []Item{}
		}
	}
	oi := &b.OverallInsights
	if oi.CriticalCorrelations == nil {
		oi.CriticalCorrelations = []string{}
	}
	if oi.WorkPatterns == nil {
		oi.WorkPatterns = []string{}
	}
	if oi.Recommendations == nil {
		oi.Recommendations = []string{}
	}
}
