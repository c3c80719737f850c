// Package parameter models the named, bounded scalar values that drive a simulation's input files.
package parameter

import (
	"math"
	"math/rand"
	"strconv"

	"github.com/PieterjanRobbe/ftxctl/internal/errdefs"
)

// Kind distinguishes numeric parameters from symbolic ones (START_MODE, SIM_ROOT).
type Kind string

const (
	KindNumber Kind = "number"
	KindText   Kind = "text"
)

// Parameter is a named scalar with bounds. When Lower == Upper the parameter is
// deterministic and its bounds follow every assigned value.
type Parameter struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description,omitempty"`
	Kind        Kind    `yaml:"kind"`
	Nominal     float64 `yaml:"nominal"`
	Lower       float64 `yaml:"lower"`
	Upper       float64 `yaml:"upper"`
	LogScale    bool    `yaml:"log_scale,omitempty"`
	Value       float64 `yaml:"value"`
	Text        string  `yaml:"text,omitempty"`
}

// Option customizes a numeric Parameter at construction.
type Option func(*Parameter)

// WithBounds sets the sampling interval.
func WithBounds(lower, upper float64) Option {
	return func(p *Parameter) {
		p.Lower = lower
		p.Upper = upper
	}
}

// WithLogScale makes Sample draw uniformly in log10 space.
func WithLogScale() Option {
	return func(p *Parameter) {
		p.LogScale = true
	}
}

// WithDescription attaches a description.
func WithDescription(description string) Option {
	return func(p *Parameter) {
		p.Description = description
	}
}

// New creates a numeric parameter whose value starts at nominal.
// Without WithBounds the parameter is deterministic (lower == upper == nominal).
func New(name string, nominal float64, opts ...Option) (*Parameter, error) {
	p := &Parameter{
		Name:    name,
		Kind:    KindNumber,
		Nominal: nominal,
		Lower:   nominal,
		Upper:   nominal,
		Value:   nominal,
	}
	for _, opt := range opts {
		opt(p)
	}
	if err := p.checkBounds(nominal); err != nil {
		return nil, err
	}
	if p.LogScale && p.Lower <= 0 {
		return nil, errdefs.Validation(name, "log-scaled parameter needs a positive lower bound, got %v", p.Lower)
	}
	return p, nil
}

// NewText creates a symbolic parameter.
func NewText(name, value string) *Parameter {
	return &Parameter{
		Name: name,
		Kind: KindText,
		Text: value,
	}
}

// IsDeterministic reports whether the parameter has collapsed bounds.
func (p *Parameter) IsDeterministic() bool {
	return p.Kind == KindText || p.Lower == p.Upper
}

func (p *Parameter) checkBounds(value float64) error {
	if p.Lower > p.Upper {
		return errdefs.Validation(p.Name, "lower bound (%v) > upper bound (%v)", p.Lower, p.Upper)
	}
	if math.IsNaN(value) || value < p.Lower || value > p.Upper {
		return errdefs.Validation(p.Name, "expected value between %v and %v, got %v", p.Lower, p.Upper, value)
	}
	return nil
}

// SetValue assigns a numeric value. Values outside [Lower, Upper] are rejected
// and leave the parameter untouched, unless the parameter is deterministic.
func (p *Parameter) SetValue(value float64) error {
	if p.Kind == KindText {
		return errdefs.Validation(p.Name, "cannot assign number %v to a text parameter", value)
	}
	if math.IsNaN(value) {
		return errdefs.Validation(p.Name, "value is NaN")
	}
	if p.Lower == p.Upper {
		p.Lower = value
		p.Upper = value
		p.Value = value
		return nil
	}
	if err := p.checkBounds(value); err != nil {
		return err
	}
	p.Value = value
	return nil
}

// SetText assigns a symbolic value.
func (p *Parameter) SetText(value string) error {
	if p.Kind != KindText {
		return errdefs.Validation(p.Name, "cannot assign text %q to a numeric parameter", value)
	}
	p.Text = value
	return nil
}

// Sample draws a new value uniformly from [Lower, Upper], in log10 space when
// LogScale is set. Deterministic parameters are left unchanged.
func (p *Parameter) Sample(r *rand.Rand) {
	if p.IsDeterministic() {
		return
	}
	a, b := p.Lower, p.Upper
	if p.LogScale {
		a, b = math.Log10(a), math.Log10(b)
	}
	value := a + r.Float64()*(b-a)
	if p.LogScale {
		value = math.Pow(10, value)
	}
	// Rounding in Pow can step a hair outside the interval.
	p.Value = math.Min(math.Max(value, p.Lower), p.Upper)
}

// String renders the value as it is substituted into input files.
func (p *Parameter) String() string {
	if p.Kind == KindText {
		return p.Text
	}
	return formatValue(p.Value)
}

// maxExactInt is the largest magnitude at which every integer is exact.
const maxExactInt = 1 << 53

// formatValue writes integral values as plain digits, since input decks
// expect integer tokens for counts such as nImpacts.
func formatValue(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < maxExactInt {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Clone returns an independent copy.
func (p *Parameter) Clone() *Parameter {
	c := *p
	return &c
}
