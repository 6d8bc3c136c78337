package featdeps

import "strings"

// NegationMarker prefixes a source dependency that must not be satisfied.
const NegationMarker = "!"

// Source is a conditionally included source reference.
type Source struct {
	Path string
	// Dep is empty for sources that are always included, a fact
	// identifier, or a fact identifier prefixed with [NegationMarker].
	Dep string
}

// Included reports whether the source is selected by facts.
func (s Source) Included(facts *SatisfactionSet) bool {
	if s.Dep == "" {
		return true
	}
	if dep, negated := strings.CutPrefix(s.Dep, NegationMarker); negated {
		return !facts.Has(dep)
	}
	return facts.Has(s.Dep)
}

// FilterSources returns the paths of the included sources in input order.
// The input is not modified.
func FilterSources(facts *SatisfactionSet, sources []Source) []string {
	paths := make([]string, 0, len(sources))
	for _, s := range sources {
		if s.Included(facts) {
			paths = append(paths, s.Path)
		}
	}
	return paths
}

// Uselib returns the storage keys of all satisfied facts, in satisfaction order.
func (r *Run) Uselib() []string {
	facts := r.satisfied.Facts()
	keys := make([]string, 0, len(facts))
	for _, f := range facts {
		keys = append(keys, StorageKey(f))
	}
	return keys
}

// Includes returns the include paths recorded for satisfied facts.
func (r *Run) Includes() []string {
	var paths []string
	for _, f := range r.satisfied.Facts() {
		if v, ok := r.env.Get(envVar("INCLUDES", f)); ok {
			paths = append(paths, v...)
		}
	}
	return paths
}
