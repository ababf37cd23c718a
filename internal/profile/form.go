package profile

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownField is returned when editing a field the form does not have.
var ErrUnknownField = errors.New("profile: unknown field")

// EditFunc is called after a user edit with the field name and its new value.
type EditFunc func(name, value string)

// Form holds the raw, operator-editable value of every configuration field.
// User edits notify listeners; programmatic writes through Apply do not.
type Form struct {
	mu         sync.RWMutex
	values     map[string]string
	strategies []string
	listeners  []EditFunc
}

// NewForm creates a form populated with the default record.
func NewForm() *Form {
	def := DefaultRecord()
	return &Form{values: def.values()}
}

// Value returns the raw value of a field.
func (f *Form) Value(name string) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.values[name]
	return v, ok
}

// Values returns a copy of every field.
func (f *Form) Values() map[string]string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[string]string, len(f.values))
	for k, v := range f.values {
		out[k] = v
	}
	return out
}

// Edit sets a field as the operator would and notifies the edit listeners.
func (f *Form) Edit(name, value string) error {
	f.mu.Lock()
	if _, ok := f.values[name]; !ok {
		f.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	f.values[name] = value
	listeners := append([]EditFunc(nil), f.listeners...)
	f.mu.Unlock()

	for _, fn := range listeners {
		fn(name, value)
	}
	return nil
}

// Seed sets initial values without notifying listeners. Unknown names are
// ignored.
func (f *Form) Seed(values map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, v := range values {
		if _, ok := f.values[k]; ok {
			f.values[k] = v
		}
	}
}

// setAll replaces field values without notifying listeners.
func (f *Form) setAll(values map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, v := range values {
		f.values[k] = v
	}
}

// OnEdit registers fn to run after every user edit.
func (f *Form) OnEdit(fn EditFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, fn)
}

// SetStrategyOptions replaces the selectable strategy names.
func (f *Form) SetStrategyOptions(names []string) {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.strategies = sorted
}

// StrategyOptions returns the selectable strategy names.
func (f *Form) StrategyOptions() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]string(nil), f.strategies...)
}
