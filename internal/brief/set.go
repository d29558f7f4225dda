package brief

import "sort"

// Set holds the findings of one session, one entry per domain.
// Domains that produced nothing hold an Empty placeholder.
type Set map[Domain]*Findings

// NewSet builds a Set from whatever findings exist, filling the gaps.
// When two findings share a domain the later one wins.
func NewSet(findings []*Findings) Set {
	s := make(Set, len(Domains))
	for _, d := range Domains {
		s[d] = Empty(d)
	}
	for _, f := range findings {
		if f == nil {
			continue
		}
		c := f.Clone()
		c.Normalize()
		s[c.Domain] = c
	}
	return s
}

// Ordered returns the findings in canonical domain order, followed by any
// unknown domains sorted by name.
func (s Set) Ordered() []*Findings {
	out := make([]*Findings, 0, len(s))
	for _, d := range Domains {
		if f, ok := s[d]; ok {
			out = append(out, f)
		}
	}
	var extra []Domain
	for d := range s {
		if !d.Valid() {
			extra = append(extra, d)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	for _, d := range extra {
		out = append(out, s[d])
	}
	return out
}

// Produced returns the findings that came from a worker.
func (s Set) Produced() []*Findings {
	var out []*Findings
	for _, f := range s.Ordered() {
		if f.Produced() {
			out = append(out, f)
		}
	}
	return out
}

// Ref locates an item inside a set.
type Ref struct {
	ID          string
	Domain      Domain
	Title       string
	Description string
	Priority    *PriorityItem
	Action      *ActionItem
}

// Text returns title and description joined for text matching.
func (r Ref) Text() string {
	if r.Description == "" {
		return r.Title
	}
	return r.Title + " " + r.Description
}

// Items flattens every priority and action item in canonical order.
func (s Set) Items() []Ref {
	var refs []Ref
	for _, f := range s.Ordered() {
		for i := range f.PriorityItems {
			p := &f.PriorityItems[i]
			refs = append(refs, Ref{ID: p.ID, Domain: f.Domain, Title: p.Title, Description: p.Description, Priority: p})
		}
		for i := range f.ActionItems {
			a := &f.ActionItems[i]
			refs = append(refs, Ref{ID: a.ID, Domain: f.Domain, Title: a.Title, Description: a.Description, Action: a})
		}
	}
	return refs
}

// Index maps item ids to their location. The first occurrence wins.
func (s Set) Index() map[string]Ref {
	idx := make(map[string]Ref)
	for _, r := range s.Items() {
		if _, ok := idx[r.ID]; !ok {
			idx[r.ID] = r
		}
	}
	return idx
}

// PriorityCount returns the number of priority items across all domains.
func (s Set) PriorityCount() int {
	n := 0
	for _, f := range s {
		n += len(f.PriorityItems)
	}
	return n
}
