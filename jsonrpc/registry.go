package jsonrpc

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/invopop/jsonschema"
)

// ReservedPrefix marks method names handled by the engine itself.
const ReservedPrefix = "rpc."

// HandlerFunc implements a method. args has one slot per declared parameter.
//
// Returning a *JSONRPCError reports that error to the caller unchanged.
// Any other error is reported as CodeInternalError.
type HandlerFunc func(ctx context.Context, args Args) (interface{}, error)

// Param declares one method parameter.
type Param struct {
	Name     string
	Summary  string
	Required bool
	Schema   *jsonschema.Schema
}

// ResultSpec describes a method's result for discovery.
type ResultSpec struct {
	Name    string
	Summary string
	Schema  *jsonschema.Schema
}

// ErrorSpec documents an application error a method may return.
type ErrorSpec struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Descriptor is a registered method.
type Descriptor struct {
	Name        string
	Summary     string
	Description string
	Params      []Param
	Result      *ResultSpec
	Errors      []ErrorSpec
	Handler     HandlerFunc
}

// Registry maps method names to descriptors.
//
// Methods are registered during startup. Freeze ends registration; after
// that the registry is read-only and lookups take no locks.
type Registry struct {
	mu      sync.Mutex
	frozen  atomic.Bool
	methods map[string]*Descriptor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		methods: make(map[string]*Descriptor),
	}
}

// Register adds a method. Names are unique: registering a name twice fails
// with ErrDuplicateMethod.
func (r *Registry) Register(d Descriptor) error {
	if err := validateDescriptor(&d); err != nil {
		return err
	}

	d.Params = append([]Param(nil), d.Params...)
	d.Errors = append([]ErrorSpec(nil), d.Errors...)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen.Load() {
		return fmt.Errorf("%w: cannot register %q", ErrRegistryFrozen, d.Name)
	}
	if _, exists := r.methods[d.Name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateMethod, d.Name)
	}
	r.methods[d.Name] = &d
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(d Descriptor) {
	if err := r.Register(d); err != nil {
		panic(err)
	}
}

func validateDescriptor(d *Descriptor) error {
	if d.Name == "" {
		return fmt.Errorf("%w: empty method name", ErrInvalidDescriptor)
	}
	if strings.HasPrefix(d.Name, ReservedPrefix) {
		return fmt.Errorf("%w: %q", ErrReservedMethod, d.Name)
	}
	if d.Handler == nil {
		return fmt.Errorf("%w: %q has no handler", ErrInvalidDescriptor, d.Name)
	}
	seen := make(map[string]bool, len(d.Params))
	optional := false
	for _, p := range d.Params {
		if p.Name == "" {
			return fmt.Errorf("%w: %q has an unnamed param", ErrInvalidDescriptor, d.Name)
		}
		if seen[p.Name] {
			return fmt.Errorf("%w: %q declares param %q twice", ErrInvalidDescriptor, d.Name, p.Name)
		}
		seen[p.Name] = true
		if !p.Required {
			optional = true
		} else if optional {
			return fmt.Errorf("%w: %q: required param %q follows an optional one", ErrInvalidDescriptor, d.Name, p.Name)
		}
	}
	return nil
}

// Freeze ends registration. It is safe to call more than once.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen.Store(true)
	r.mu.Unlock()
}

// Frozen reports whether Freeze has been called.
func (r *Registry) Frozen() bool {
	return r.frozen.Load()
}

// Lookup returns the descriptor registered under name.
func (r *Registry) Lookup(name string) (*Descriptor, bool) {
	if !r.frozen.Load() {
		r.mu.Lock()
		defer r.mu.Unlock()
	}
	d, ok := r.methods[name]
	return d, ok
}

// Methods returns all descriptors sorted by name.
func (r *Registry) Methods() []*Descriptor {
	if !r.frozen.Load() {
		r.mu.Lock()
		defer r.mu.Unlock()
	}
	out := make([]*Descriptor, 0, len(r.methods))
	for _, d := range r.methods {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Method starts a builder for a method named name.
func (r *Registry) Method(name string) *MethodBuilder {
	return &MethodBuilder{registry: r, desc: Descriptor{Name: name}}
}

// Namespace returns a view of r that prefixes method names with prefix and
// an underscore, e.g. "calc" + "add" -> "calc_add".
func (r *Registry) Namespace(prefix string) Namespace {
	return Namespace{registry: r, prefix: prefix}
}

// Namespace registers methods under a common name prefix.
type Namespace struct {
	registry *Registry
	prefix   string
}

// Method starts a builder for the prefixed method name.
func (n Namespace) Method(name string) *MethodBuilder {
	if n.prefix == "" {
		return n.registry.Method(name)
	}
	return n.registry.Method(n.prefix + "_" + name)
}

// MethodBuilder assembles a Descriptor.
type MethodBuilder struct {
	registry *Registry
	desc     Descriptor
	err      error
}

func (b *MethodBuilder) Summary(summary string) *MethodBuilder {
	b.desc.Summary = summary
	return b
}

func (b *MethodBuilder) Description(description string) *MethodBuilder {
	b.desc.Description = description
	return b
}

// Param appends a parameter declaration.
func (b *MethodBuilder) Param(p Param) *MethodBuilder {
	b.desc.Params = append(b.desc.Params, p)
	return b
}

// Returns sets the result description, replacing one derived by Handle.
func (b *MethodBuilder) Returns(name string, schema *jsonschema.Schema) *MethodBuilder {
	b.desc.Result = &ResultSpec{Name: name, Schema: schema}
	return b
}

// Error documents an application error code.
func (b *MethodBuilder) Error(code int, message string) *MethodBuilder {
	b.desc.Errors = append(b.desc.Errors, ErrorSpec{Code: code, Message: message})
	return b
}

// HandlerFunc sets an untyped handler. Parameters must be declared with Param.
func (b *MethodBuilder) HandlerFunc(h HandlerFunc) *MethodBuilder {
	b.desc.Handler = h
	return b
}

// Handle sets a typed handler built with Func, taking its parameter list and
// result description. A result set earlier with Returns is kept.
func (b *MethodBuilder) Handle(h TypedHandler) *MethodBuilder {
	if h.err != nil {
		b.err = h.err
		return b
	}
	b.desc.Params = h.Params
	if b.desc.Result == nil {
		b.desc.Result = h.Result
	}
	b.desc.Handler = h.Handler
	return b
}

// Register adds the built method to the registry.
func (b *MethodBuilder) Register() error {
	if b.err != nil {
		return fmt.Errorf("%q: %w", b.desc.Name, b.err)
	}
	return b.registry.Register(b.desc)
}

// MustRegister is like Register but panics on error.
func (b *MethodBuilder) MustRegister() {
	if err := b.Register(); err != nil {
		panic(err)
	}
}
