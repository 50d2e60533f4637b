// Package module provides the declarative API deployment descriptors are
// written against. A descriptor asks a Builder for parameters and declares the
// contracts to instantiate; Build turns it into a Plan the deployer executes.
package module

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
)

// Sentinel errors
var (
	ErrUnknownModule      = errors.New("module: unknown module")
	ErrDuplicateFuture    = errors.New("module: duplicate future")
	ErrDuplicateParameter = errors.New("module: duplicate parameter")
	ErrEmptyModule        = errors.New("module: module declares no contracts")
	ErrUnknownParameter   = errors.New("module: unknown parameter")
)

// Descriptor is a named deployment unit.
type Descriptor struct {
	ID          string
	Description string
	Build       func(m *Builder) Result
}

// Result maps the names a descriptor exposes to its futures.
type Result map[string]*ContractFuture

// Parameters holds caller overrides keyed by module id, then parameter name.
type Parameters map[string]map[string]any

// Set stores an override for one module parameter.
func (p Parameters) Set(moduleID, name string, value any) {
	if p[moduleID] == nil {
		p[moduleID] = make(map[string]any)
	}
	p[moduleID][name] = value
}

// Parameter is a named value resolved at build time.
type Parameter struct {
	Module     string
	Name       string
	Default    any
	Value      any
	Overridden bool
}

// ArgumentKind tells literals and parameters apart.
type ArgumentKind int

const (
	ArgLiteral ArgumentKind = iota
	ArgParameter
)

// Argument is one constructor argument of a future.
type Argument struct {
	Kind      ArgumentKind
	Value     any
	Parameter *Parameter
}

// Resolved returns the value that will be passed to the constructor.
func (a Argument) Resolved() any {
	if a.Kind == ArgParameter {
		return a.Parameter.Value
	}
	return a.Value
}

// ContractFuture is a request to instantiate one contract.
type ContractFuture struct {
	ID       string
	Module   string
	Contract string
	Args     []Argument
}

// ResolvedArgs returns the constructor arguments in order.
func (f *ContractFuture) ResolvedArgs() []any {
	out := make([]any, len(f.Args))
	for i, a := range f.Args {
		out[i] = a.Resolved()
	}
	return out
}

// Plan is the evaluated form of a descriptor.
type Plan struct {
	ModuleID   string
	Futures    []*ContractFuture
	Parameters []*Parameter
	Results    Result
}

// FutureSummary is the printable form of a future.
type FutureSummary struct {
	ID       string `json:"id" yaml:"id"`
	Contract string `json:"contract" yaml:"contract"`
	Args     []any  `json:"args" yaml:"args"`
}

// ParameterSummary is the printable form of a parameter.
type ParameterSummary struct {
	Name       string `json:"name" yaml:"name"`
	Value      any    `json:"value" yaml:"value"`
	Default    any    `json:"default" yaml:"default"`
	Overridden bool   `json:"overridden" yaml:"overridden"`
}

// PlanSummary is the printable form of a plan.
type PlanSummary struct {
	Module     string             `json:"module" yaml:"module"`
	Parameters []ParameterSummary `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Futures    []FutureSummary    `json:"futures" yaml:"futures"`
}

// Describe returns the resolved arguments of every future.
func (p *Plan) Describe() PlanSummary {
	s := PlanSummary{Module: p.ModuleID}
	for _, param := range p.Parameters {
		s.Parameters = append(s.Parameters, ParameterSummary{
			Name:       param.Name,
			Value:      param.Value,
			Default:    param.Default,
			Overridden: param.Overridden,
		})
	}
	for _, f := range p.Futures {
		s.Futures = append(s.Futures, FutureSummary{ID: f.ID, Contract: f.Contract, Args: f.ResolvedArgs()})
	}
	return s
}

// Builder collects the declarations of one descriptor evaluation.
type Builder struct {
	moduleID  string
	overrides map[string]any
	futures   []*ContractFuture
	params    []*Parameter
	err       error
}

// GetParameter returns a parameter bound to the caller override when one
// was supplied, otherwise to defaultValue. No validation is performed.
func (m *Builder) GetParameter(name string, defaultValue any) *Parameter {
	for _, p := range m.params {
		if p.Name == name {
			m.fail(fmt.Errorf("%w: %s#%s", ErrDuplicateParameter, m.moduleID, name))
			return p
		}
	}

	p := &Parameter{Module: m.moduleID, Name: name, Default: defaultValue, Value: defaultValue}
	if v, ok := m.overrides[name]; ok {
		p.Value = v
		p.Overridden = true
	}
	m.params = append(m.params, p)
	return p
}

// Contract declares an instantiation of the named contract. Arguments may be
// literals or parameters returned by GetParameter.
func (m *Builder) Contract(name string, args ...any) *ContractFuture {
	f := &ContractFuture{
		ID:       m.moduleID + "#" + name,
		Module:   m.moduleID,
		Contract: name,
		Args:     make([]Argument, 0, len(args)),
	}
	for _, a := range args {
		if p, ok := a.(*Parameter); ok {
			f.Args = append(f.Args, Argument{Kind: ArgParameter, Parameter: p})
			continue
		}
		f.Args = append(f.Args, Argument{Kind: ArgLiteral, Value: a})
	}

	for _, existing := range m.futures {
		if existing.ID == f.ID {
			m.fail(fmt.Errorf("%w: %s", ErrDuplicateFuture, f.ID))
			return existing
		}
	}
	m.futures = append(m.futures, f)
	return f
}

func (m *Builder) checkOverrides() error {
	var unknown []string
	for name := range m.overrides {
		if !slices.ContainsFunc(m.params, func(p *Parameter) bool { return p.Name == name }) {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	known := make([]string, len(m.params))
	for i, p := range m.params {
		known[i] = p.Name
	}
	accepted := "none"
	if len(known) > 0 {
		accepted = strings.Join(known, ", ")
	}
	return fmt.Errorf("%w: %s has no parameter %s (accepts: %s)",
		ErrUnknownParameter, m.moduleID, strings.Join(unknown, ", "), accepted)
}

func (m *Builder) fail(err error) {
	if m.err == nil {
		m.err = err
	}
}

// Build evaluates d once against params. Overrides for d.ID must name
// parameters the descriptor asks for; entries of other modules are ignored.
func Build(d Descriptor, params Parameters) (*Plan, error) {
	b := &Builder{moduleID: d.ID, overrides: params[d.ID]}
	results := d.Build(b)
	if b.err != nil {
		return nil, b.err
	}
	if len(b.futures) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyModule, d.ID)
	}
	if err := b.checkOverrides(); err != nil {
		return nil, err
	}
	return &Plan{
		ModuleID:   d.ID,
		Futures:    b.futures,
		Parameters: b.params,
		Results:    results,
	}, nil
}

// Registry indexes descriptors by id.
type Registry struct {
	byID    map[string]Descriptor
	aliases map[string]string
}

// NewRegistry creates a registry holding descriptors.
func NewRegistry(descriptors ...Descriptor) *Registry {
	r := &Registry{byID: make(map[string]Descriptor), aliases: make(map[string]string)}
	for _, d := range descriptors {
		r.byID[d.ID] = d
	}
	return r
}

// Alias registers an alternative name for a descriptor id.
func (r *Registry) Alias(alias, id string) {
	r.aliases[alias] = id
}

// Lookup returns the descriptor registered as id or alias.
func (r *Registry) Lookup(id string) (Descriptor, error) {
	if d, ok := r.byID[id]; ok {
		return d, nil
	}
	if target, ok := r.aliases[id]; ok {
		if d, ok := r.byID[target]; ok {
			return d, nil
		}
	}
	return Descriptor{}, fmt.Errorf("%w: %q", ErrUnknownModule, id)
}

// Canonicalize returns params with every module key replaced by the id it
// resolves to, so aliases reach the descriptor they name. Unknown module keys
// fail, as does a parameter set under both an alias and its id.
func (r *Registry) Canonicalize(params Parameters) (Parameters, error) {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(Parameters, len(params))
	for _, key := range keys {
		d, err := r.Lookup(key)
		if err != nil {
			return nil, fmt.Errorf("parameters for %q: %w", key, err)
		}
		for name, value := range params[key] {
			if _, dup := out[d.ID][name]; dup {
				return nil, fmt.Errorf("%w: %s#%s set more than once", ErrDuplicateParameter, d.ID, name)
			}
			out.Set(d.ID, name, value)
		}
	}
	return out, nil
}

// All returns the registered descriptors ordered by id.
func (r *Registry) All() []Descriptor {
	out := make([]Descriptor, 0, len(r.byID))
	for _, d := range r.byID {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
