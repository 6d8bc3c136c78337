package featdeps

import (
	"maps"
	"slices"
)

// Environment holds the auxiliary values recorded by probes and platform
// detection, such as include paths or linker flags of a feature.
// Keys follow the PREFIX_STORAGE convention (e.g. INCLUDES_LIBASS).
type Environment struct {
	vars map[string][]string
}

// NewEnvironment returns an environment seeded with vars. The input is copied.
func NewEnvironment(vars map[string][]string) *Environment {
	e := &Environment{vars: make(map[string][]string, len(vars))}
	for k, v := range vars {
		e.vars[k] = slices.Clone(v)
	}
	return e
}

// Get returns the values of key and whether it is present.
func (e *Environment) Get(key string) ([]string, bool) {
	v, ok := e.vars[key]
	return slices.Clone(v), ok
}

// Has reports whether key is present.
func (e *Environment) Has(key string) bool {
	_, ok := e.vars[key]
	return ok
}

// Set replaces the values of key.
func (e *Environment) Set(key string, values ...string) {
	e.vars[key] = slices.Clone(values)
}

// Append adds values to key, creating it if needed.
func (e *Environment) Append(key string, values ...string) {
	e.vars[key] = append(e.vars[key], values...)
}

// Keys returns all keys in sorted order.
func (e *Environment) Keys() []string {
	return slices.Sorted(maps.Keys(e.vars))
}
