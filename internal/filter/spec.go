// Package filter implements the cascaded image filter chain: declarative
// filter specs with typed, bounded parameters and a stateless cascade that
// applies them to frames in order.
package filter

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Type identifies a filter kind in the cascade.
type Type string

// Supported filter types. Adding a type means adding a case to the cascade,
// a schema entry, and a default-targets entry in the quality package.
const (
	TypeGrayscale       Type = "grayscale"
	TypeBilateral       Type = "bilateral"
	TypeGaussian        Type = "gaussian"
	TypeMedian          Type = "median"
	TypeMorphological   Type = "morphological"
	TypeNoiseReduction  Type = "noise_reduction"
	TypeContrastEnhance Type = "contrast_enhance"
	TypeEdgeEnhance     Type = "edge_enhance"
	TypeCLAHE           Type = "clahe"
	TypeSharpen         Type = "sharpen"
)

// ErrUnsupportedFilterType is returned when a cascade references a filter
// type with no implementation.
var ErrUnsupportedFilterType = errors.New("unsupported filter type")

// ErrInvalidParameterRange is returned for parameter schema violations that
// cannot be resolved by clamping, such as an unknown parameter name.
var ErrInvalidParameterRange = errors.New("invalid parameter range")

// Morphological operation codes for the "operation" parameter.
const (
	MorphOpErode = iota
	MorphOpDilate
	MorphOpOpen
	MorphOpClose
	MorphOpGradient
	MorphOpTophat
	MorphOpBlackhat
)

// Structuring element codes for the "kernel_type" parameter.
const (
	KernelEllipse = iota
	KernelRect
	KernelCross
)

// ParamSpec declares the bounds and default of a single filter parameter.
// Integer parameters are rounded after clamping.
type ParamSpec struct {
	Min     float64
	Max     float64
	Default float64
	Integer bool
}

// Schema maps parameter names to their declared bounds.
type Schema map[string]ParamSpec

var schemas = map[Type]Schema{
	TypeGrayscale: {},
	TypeBilateral: {
		"d":           {Min: 5, Max: 25, Default: 12, Integer: true},
		"sigma_color": {Min: 25, Max: 150, Default: 75},
		"sigma_space": {Min: 25, Max: 150, Default: 75},
	},
	TypeGaussian: {
		"kernel_size": {Min: 3, Max: 15, Default: 7, Integer: true},
		"sigma":       {Min: 0.5, Max: 3.0, Default: 1.5},
	},
	TypeMedian: {
		"kernel_size": {Min: 3, Max: 11, Default: 5, Integer: true},
	},
	TypeMorphological: {
		"operation":   {Min: MorphOpErode, Max: MorphOpBlackhat, Default: MorphOpClose, Integer: true},
		"kernel_size": {Min: 3, Max: 9, Default: 3, Integer: true},
		"kernel_type": {Min: KernelEllipse, Max: KernelCross, Default: KernelEllipse, Integer: true},
	},
	TypeNoiseReduction: {
		"h": {Min: 5, Max: 20, Default: 10, Integer: true},
	},
	TypeContrastEnhance: {
		"alpha": {Min: 0.5, Max: 2.0, Default: 1.3},
		"beta":  {Min: -50, Max: 50, Default: 20, Integer: true},
	},
	TypeEdgeEnhance: {
		"strength": {Min: 0.1, Max: 1.0, Default: 0.5},
	},
	TypeCLAHE: {
		"clip_limit":     {Min: 1.0, Max: 4.0, Default: 2.0},
		"tile_grid_size": {Min: 4, Max: 16, Default: 8, Integer: true},
	},
	TypeSharpen: {
		"strength": {Min: 0.1, Max: 1.0, Default: 0.5},
	},
}

// SchemaFor returns the parameter schema for a filter type.
func SchemaFor(t Type) (Schema, error) {
	s, ok := schemas[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFilterType, t)
	}
	return s, nil
}

// Clamp forces v into the declared bounds of the named parameter and rounds
// integer parameters. Unknown names report ErrInvalidParameterRange.
func (s Schema) Clamp(name string, v float64) (float64, error) {
	p, ok := s[name]
	if !ok {
		return 0, fmt.Errorf("%w: unknown parameter %q", ErrInvalidParameterRange, name)
	}
	if v < p.Min {
		v = p.Min
	}
	if v > p.Max {
		v = p.Max
	}
	if p.Integer {
		v = math.Round(v)
	}
	return v, nil
}

// Names returns the parameter names in sorted order. Candidate generation
// iterates in this order so that seeded searches are reproducible.
func (s Schema) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Defaults returns a fresh parameter map populated with schema defaults.
func (s Schema) Defaults() map[string]float64 {
	params := make(map[string]float64, len(s))
	for name, p := range s {
		params[name] = p.Default
	}
	return params
}

// Spec describes one filter stage in a cascade.
type Spec struct {
	ID      string             `json:"id"`
	Type    Type               `json:"type"`
	Enabled bool               `json:"enabled"`
	Order   int                `json:"order"`
	Params  map[string]float64 `json:"params"`
}

// Param returns the named parameter, falling back to the schema default
// when the spec does not carry a value.
func (sp *Spec) Param(name string) float64 {
	if v, ok := sp.Params[name]; ok {
		return v
	}
	schema, err := SchemaFor(sp.Type)
	if err != nil {
		return 0
	}
	return schema[name].Default
}

// SetParam stores a parameter value, clamping it into the declared bounds.
// Values are never stored out of range.
func (sp *Spec) SetParam(name string, v float64) error {
	schema, err := SchemaFor(sp.Type)
	if err != nil {
		return err
	}
	clamped, err := schema.Clamp(name, v)
	if err != nil {
		return err
	}
	if sp.Params == nil {
		sp.Params = make(map[string]float64)
	}
	sp.Params[name] = clamped
	return nil
}

// Validate clamps every stored parameter into its declared bounds and
// rejects parameters the schema does not declare.
func (sp *Spec) Validate() error {
	schema, err := SchemaFor(sp.Type)
	if err != nil {
		return err
	}
	for name, v := range sp.Params {
		clamped, err := schema.Clamp(name, v)
		if err != nil {
			return err
		}
		sp.Params[name] = clamped
	}
	return nil
}

// clone returns a deep copy of the spec.
func (sp Spec) clone() Spec {
	params := make(map[string]float64, len(sp.Params))
	for k, v := range sp.Params {
		params[k] = v
	}
	sp.Params = params
	return sp
}

// NewSpec creates a spec of the given type with schema-default parameters.
func NewSpec(id string, t Type, order int) (Spec, error) {
	schema, err := SchemaFor(t)
	if err != nil {
		return Spec{}, err
	}
	return Spec{
		ID:      id,
		Type:    t,
		Enabled: true,
		Order:   order,
		Params:  schema.Defaults(),
	}, nil
}

// CascadeConfig is an ordered set of filter specs keyed by ID.
type CascadeConfig struct {
	Specs []Spec `json:"cascade_filters"`
}

// NewCascadeConfig validates every spec, sorts by order and reassigns
// consecutive order values starting at 1.
func NewCascadeConfig(specs ...Spec) (*CascadeConfig, error) {
	seen := make(map[string]bool, len(specs))
	for i := range specs {
		if specs[i].ID == "" {
			return nil, fmt.Errorf("filter spec %d has no id", i)
		}
		if seen[specs[i].ID] {
			return nil, fmt.Errorf("duplicate filter id %q", specs[i].ID)
		}
		seen[specs[i].ID] = true
		if err := specs[i].Validate(); err != nil {
			return nil, fmt.Errorf("filter %q: %w", specs[i].ID, err)
		}
	}
	c := &CascadeConfig{Specs: specs}
	c.normalize()
	return c, nil
}

// normalize keeps order values unique and consecutive.
func (c *CascadeConfig) normalize() {
	sort.SliceStable(c.Specs, func(i, j int) bool {
		return c.Specs[i].Order < c.Specs[j].Order
	})
	for i := range c.Specs {
		c.Specs[i].Order = i + 1
	}
}

// Get returns the spec with the given ID.
func (c *CascadeConfig) Get(id string) (*Spec, bool) {
	for i := range c.Specs {
		if c.Specs[i].ID == id {
			return &c.Specs[i], true
		}
	}
	return nil, false
}

// Update replaces the type and parameters of an existing spec. Parameters
// out of range are clamped on write.
func (c *CascadeConfig) Update(id string, t Type, params map[string]float64) error {
	sp, ok := c.Get(id)
	if !ok {
		return fmt.Errorf("filter %q not found", id)
	}
	schema, err := SchemaFor(t)
	if err != nil {
		return err
	}
	next := schema.Defaults()
	for name, v := range params {
		clamped, err := schema.Clamp(name, v)
		if err != nil {
			return err
		}
		next[name] = clamped
	}
	sp.Type = t
	sp.Params = next
	return nil
}

// Enable toggles a spec without removing it from its order slot.
func (c *CascadeConfig) Enable(id string, enabled bool) error {
	sp, ok := c.Get(id)
	if !ok {
		return fmt.Errorf("filter %q not found", id)
	}
	sp.Enabled = enabled
	return nil
}

// Append adds a spec at the end of the cascade.
func (c *CascadeConfig) Append(sp Spec) error {
	if err := sp.Validate(); err != nil {
		return err
	}
	if _, ok := c.Get(sp.ID); ok {
		return fmt.Errorf("duplicate filter id %q", sp.ID)
	}
	sp.Order = len(c.Specs) + 1
	c.Specs = append(c.Specs, sp)
	return nil
}

// Clone returns a deep copy. Optimizer candidates operate on clones and
// never mutate the live configuration.
func (c *CascadeConfig) Clone() *CascadeConfig {
	specs := make([]Spec, len(c.Specs))
	for i := range c.Specs {
		specs[i] = c.Specs[i].clone()
	}
	return &CascadeConfig{Specs: specs}
}

// DefaultCascade returns the stock detection chain: grayscale, bilateral,
// gaussian, median and a closing morphological pass.
func DefaultCascade() *CascadeConfig {
	cfg := &CascadeConfig{Specs: []Spec{
		{ID: "f1", Type: TypeGrayscale, Enabled: true, Order: 1, Params: map[string]float64{}},
		{ID: "f2", Type: TypeBilateral, Enabled: true, Order: 2, Params: map[string]float64{
			"d": 12, "sigma_color": 75, "sigma_space": 75,
		}},
		{ID: "f3", Type: TypeGaussian, Enabled: true, Order: 3, Params: map[string]float64{
			"kernel_size": 7, "sigma": 1.5,
		}},
		{ID: "f4", Type: TypeMedian, Enabled: true, Order: 4, Params: map[string]float64{
			"kernel_size": 5,
		}},
		{ID: "f5", Type: TypeMorphological, Enabled: true, Order: 5, Params: map[string]float64{
			"operation": MorphOpClose, "kernel_size": 3, "kernel_type": KernelEllipse,
		}},
	}}
	return cfg
}
