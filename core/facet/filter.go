// Package facet tracks which option values are selected per filter dimension ("facet")
// of the listing views, and turns the selection into repeated-key query parameters.
package facet

import (
	"net/url"
	"sort"

	"github.com/maraakiz/portal/core"
)

// Option is a selectable value of a named facet.
type Option struct {
	Key   string `json:"key" yaml:"-"`
	Value string `json:"value" yaml:"value"`
}

// State maps a facet key to its selected values.
// A key is present only while it has at least one value.
type State map[string][]string

// Filter is the selection of one listing view. It is not safe for concurrent use:
// each view owns its own Filter.
type Filter struct {
	sets     map[string]map[string]struct{}
	keys     []string            // first-selected order
	values   map[string][]string // selection order per key
	listener func(State)
}

func New() *Filter {
	return &Filter{
		sets:   make(map[string]map[string]struct{}),
		values: make(map[string][]string),
	}
}

// FromQuery builds a Filter from repeated query parameters, toggling each distinct value once.
// Keys are taken in lexical order so the resulting QueryPairs are stable.
// Keys listed in `ignore` (pagination etc.) are skipped.
func FromQuery(q url.Values, ignore ...string) *Filter {
	skip := make(map[string]bool, len(ignore))
	for _, k := range ignore {
		skip[k] = true
	}

	keys := make([]string, 0, len(q))
	for key := range q {
		if !skip[key] {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	f := New()
	for _, key := range keys {
		for _, v := range q[key] {
			if key == "" || v == "" {
				continue
			}
			if !f.IsSelected(key, v) {
				f.toggle(key, v)
			}
		}
	}
	return f
}

// OnChange registers the listener called with a snapshot after every Toggle and Reset.
// Passing nil removes it.
func (f *Filter) OnChange(listener func(State)) {
	f.listener = listener
}

// Toggle selects `value` for `key` if it is not selected, and unselects it otherwise.
// Empty keys or values are ignored and do not notify.
func (f *Filter) Toggle(key, value string) {
	if key == "" || value == "" {
		return
	}
	f.toggle(key, value)
	f.notify()
}

func (f *Filter) toggle(key, value string) {
	set, ok := f.sets[key]
	if !ok {
		set = make(map[string]struct{})
		f.sets[key] = set
		f.keys = append(f.keys, key)
	}

	if _, selected := set[value]; selected {
		delete(set, value)
		f.values[key] = remove(f.values[key], value)
		if len(set) == 0 {
			delete(f.sets, key)
			delete(f.values, key)
			f.keys = remove(f.keys, key)
		}
		return
	}
	set[value] = struct{}{}
	f.values[key] = append(f.values[key], value)
}

// Reset clears every facet.
func (f *Filter) Reset() {
	f.sets = make(map[string]map[string]struct{})
	f.values = make(map[string][]string)
	f.keys = nil
	f.notify()
}

func (f *Filter) IsSelected(key, value string) bool {
	_, ok := f.sets[key][value]
	return ok
}

// Empty reports whether no facet has a selected value.
func (f *Filter) Empty() bool {
	return len(f.keys) == 0
}

// State returns a copy of the current selection.
func (f *Filter) State() State {
	st := make(State, len(f.keys))
	for _, k := range f.keys {
		vals := make([]string, len(f.values[k]))
		copy(vals, f.values[k])
		st[k] = vals
	}
	return st
}

// QueryPairs returns one pair per selected value, keys in the order they were first
// selected and values in selection order.
func (f *Filter) QueryPairs() []core.QueryPair {
	pairs := make([]core.QueryPair, 0, len(f.keys))
	for _, k := range f.keys {
		for _, v := range f.values[k] {
			pairs = append(pairs, core.QueryPair{Key: k, Value: v})
		}
	}
	return pairs
}

func (f *Filter) notify() {
	if f.listener != nil {
		f.listener(f.State())
	}
}

func remove(s []string, v string) []string {
	for i := range s {
		if s[i] == v {
			return append(s[:i:i], s[i+1:]...)
		}
	}
	return s
}
