package parameter

import (
	"math/rand"
	"sort"

	"github.com/PieterjanRobbe/ftxctl/internal/errdefs"
)

// Set maps parameter names to parameters. It owns its parameters.
type Set map[string]*Parameter

// Add inserts or replaces a parameter under its own name.
func (s Set) Add(p *Parameter) {
	s[p.Name] = p
}

// Get returns the named parameter or a ValidationError.
func (s Set) Get(name string) (*Parameter, error) {
	p, ok := s[name]
	if !ok || p == nil {
		return nil, errdefs.Validation(name, "unknown parameter")
	}
	return p, nil
}

// SetValue assigns a numeric value to the named parameter.
func (s Set) SetValue(name string, value float64) error {
	p, err := s.Get(name)
	if err != nil {
		return err
	}
	return p.SetValue(value)
}

// SetText assigns a symbolic value to the named parameter.
func (s Set) SetText(name, value string) error {
	p, err := s.Get(name)
	if err != nil {
		return err
	}
	return p.SetText(value)
}

// Bind forces name to a text value, replacing any existing parameter.
func (s Set) Bind(name, value string) {
	s[name] = NewText(name, value)
}

// Names returns the parameter names in sorted order.
func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SampleAll samples every non-deterministic parameter, in name order so a
// seeded source gives reproducible sets.
func (s Set) SampleAll(r *rand.Rand) {
	for _, name := range s.Names() {
		s[name].Sample(r)
	}
}

// Clone deep-copies the set.
func (s Set) Clone() Set {
	c := make(Set, len(s))
	for name, p := range s {
		c[name] = p.Clone()
	}
	return c
}
