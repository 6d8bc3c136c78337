package featdeps

import (
	"fmt"
	"io"
	"slices"
)

// DefineState is the state of a preprocessor symbol in a [Defines] table.
type DefineState int

const (
	// DefineUnset means nothing was recorded for the key.
	DefineUnset DefineState = iota
	// DefineSet means the key is defined to a value.
	DefineSet
	// DefineCleared means the key was explicitly undefined.
	DefineCleared
)

type defineEntry struct {
	state DefineState
	value string
}

// Defines is the ordered table of preprocessor symbols produced by a run.
// Keys keep the position of their first write.
type Defines struct {
	entries map[string]defineEntry
	order   []string
}

func newDefines() *Defines {
	return &Defines{entries: make(map[string]defineEntry)}
}

// Define sets key to value.
func (d *Defines) Define(key, value string) {
	d.put(key, defineEntry{state: DefineSet, value: value})
}

// Undefine explicitly clears key.
func (d *Defines) Undefine(key string) {
	d.put(key, defineEntry{state: DefineCleared})
}

func (d *Defines) put(key string, e defineEntry) {
	if _, ok := d.entries[key]; !ok {
		d.order = append(d.order, key)
	}
	d.entries[key] = e
}

// Lookup returns the state and value of key.
func (d *Defines) Lookup(key string) (DefineState, string) {
	e, ok := d.entries[key]
	if !ok {
		return DefineUnset, ""
	}
	return e.state, e.value
}

// IsDefined reports whether key is currently defined.
func (d *Defines) IsDefined(key string) bool {
	state, _ := d.Lookup(key)
	return state == DefineSet
}

// Keys returns all recorded keys in first-write order.
func (d *Defines) Keys() []string {
	return slices.Clone(d.order)
}

// WriteHeader writes the table as C preprocessor lines. Cleared keys are
// written as "#define KEY 0".
func (d *Defines) WriteHeader(w io.Writer) error {
	for _, key := range d.order {
		e := d.entries[key]
		value := e.value
		if e.state == DefineCleared {
			value = "0"
		}
		if _, err := fmt.Fprintf(w, "#define %s %s\n", key, value); err != nil {
			return err
		}
	}
	return nil
}

// Map returns the table as key to value, with cleared keys mapped to "0".
func (d *Defines) Map() map[string]string {
	m := make(map[string]string, len(d.order))
	for _, key := range d.order {
		e := d.entries[key]
		if e.state == DefineCleared {
			m[key] = "0"
			continue
		}
		m[key] = e.value
	}
	return m
}
