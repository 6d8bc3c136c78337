package featdeps

import "slices"

// SatisfactionSet is the set of facts known true in a run: the detected
// platform and every feature resolved so far. It only grows.
type SatisfactionSet struct {
	facts map[string]struct{}
	order []string
}

// NewSatisfactionSet returns a set holding the given facts.
func NewSatisfactionSet(facts ...string) *SatisfactionSet {
	s := &SatisfactionSet{facts: make(map[string]struct{}, len(facts))}
	for _, f := range facts {
		s.add(f)
	}
	return s
}

// add inserts a fact and reports whether it was new.
func (s *SatisfactionSet) add(fact string) bool {
	if _, ok := s.facts[fact]; ok {
		return false
	}
	s.facts[fact] = struct{}{}
	s.order = append(s.order, fact)
	return true
}

// Has reports whether fact is satisfied.
func (s *SatisfactionSet) Has(fact string) bool {
	if s == nil {
		return false
	}
	_, ok := s.facts[fact]
	return ok
}

// Len returns the number of satisfied facts.
func (s *SatisfactionSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// Facts returns the satisfied facts in insertion order.
func (s *SatisfactionSet) Facts() []string {
	if s == nil {
		return nil
	}
	return slices.Clone(s.order)
}

// Intersect returns the members of ids that are satisfied, in ids order
// and without duplicates.
func (s *SatisfactionSet) Intersect(ids []string) []string {
	return s.filter(ids, true)
}

// Missing returns the members of ids that are not satisfied, in ids order
// and without duplicates.
func (s *SatisfactionSet) Missing(ids []string) []string {
	return s.filter(ids, false)
}

// ContainsAll reports whether every member of ids is satisfied.
func (s *SatisfactionSet) ContainsAll(ids []string) bool {
	for _, id := range ids {
		if !s.Has(id) {
			return false
		}
	}
	return true
}

func (s *SatisfactionSet) filter(ids []string, want bool) []string {
	var out []string
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if s.Has(id) == want {
			out = append(out, id)
		}
	}
	return out
}
