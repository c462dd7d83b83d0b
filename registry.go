package modreg

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Registry holds module instances keyed by capability type.
//
// Lookups never lock. Registrations are serialized by one write lock held for
// a whole top-level registration, including every dependency it loads.
type Registry struct {
	index     capabilityIndex
	hierarchy *hierarchy
	factory   Factory
	logger    zerolog.Logger

	chainMu      sync.Mutex
	discoveries  atomic.Pointer[[]PropertyDiscovery]
	initializers atomic.Pointer[[]Initializer]

	mu      sync.Mutex
	active  atomic.Pointer[writeToken]
	journal []*moduleWrapper
	closed  bool

	// valid wrappers in validation order, copy-on-write
	order atomic.Pointer[[]*moduleWrapper]

	sf singleflight.Group
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// WithFactory sets the factory used by RegisterType.
func WithFactory(f Factory) Option {
	return func(r *Registry) {
		if f != nil {
			r.factory = f
		}
	}
}

// WithDiscovery replaces the property discovery chain.
func WithDiscovery(ds ...PropertyDiscovery) Option {
	return func(r *Registry) {
		chain := slices.Clone(ds)
		r.discoveries.Store(&chain)
	}
}

// WithInitializers replaces the initializer chain.
func WithInitializers(is ...Initializer) Option {
	return func(r *Registry) {
		chain := slices.Clone(is)
		r.initializers.Store(&chain)
	}
}

// WithCapabilities declares capability interfaces up front.
func WithCapabilities(types ...reflect.Type) Option {
	return func(r *Registry) {
		for _, t := range types {
			r.hierarchy.declare(t)
		}
	}
}

func New(opts ...Option) *Registry {
	r := &Registry{
		hierarchy: newHierarchy(),
		factory:   NewFactory(),
		logger:    zerolog.Nop(),
	}
	r.discoveries.Store(&[]PropertyDiscovery{TagDiscovery, DescriberDiscovery})
	r.initializers.Store(&[]Initializer{FieldInjector, InterfaceInitializer})
	r.order.Store(&[]*moduleWrapper{})
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AddDiscovery puts d in front of the discovery chain.
func (r *Registry) AddDiscovery(d PropertyDiscovery) {
	r.chainMu.Lock()
	defer r.chainMu.Unlock()
	next := append([]PropertyDiscovery{d}, *r.discoveries.Load()...)
	r.discoveries.Store(&next)
}

// AddInitializer appends i to the initializer chain.
func (r *Registry) AddInitializer(i Initializer) {
	r.chainMu.Lock()
	defer r.chainMu.Unlock()
	next := append(slices.Clone(*r.initializers.Load()), i)
	r.initializers.Store(&next)
}

// Get returns a valid module registered under t.
func (r *Registry) Get(t reflect.Type) (any, error) {
	if m, ok := r.Optional(t); ok {
		return m, nil
	}
	return nil, NotFoundError{Type: t}
}

// Optional returns a valid module registered under t, if any.
func (r *Registry) Optional(t reflect.Type) (any, bool) {
	for _, w := range r.index.lookupAll(t) {
		if w.valid() {
			return w.module(), true
		}
	}
	return nil, false
}

// Has reports whether a valid module is registered under t.
func (r *Registry) Has(t reflect.Type) bool {
	_, ok := r.Optional(t)
	return ok
}

// HasOrLoading reports whether any module, valid or still loading, is
// registered under t.
func (r *Registry) HasOrLoading(t reflect.Type) bool {
	return len(r.index.lookupAll(t)) > 0
}

// HasOrLoadingExact is HasOrLoading restricted to modules whose own type is t.
func (r *Registry) HasOrLoadingExact(t reflect.Type) bool {
	for _, w := range r.index.lookupAll(t) {
		if w.baseType == t || w.runtimeType() == t {
			return true
		}
	}
	return false
}

// All returns the valid modules registered under t in registration order.
func (r *Registry) All(t reflect.Type) []any {
	return r.index.lookupValid(t)
}

// Modules returns every valid module.
func (r *Registry) Modules() []any {
	return r.All(anyType)
}

// ForEach calls fn for each valid module under t and stops at the first error.
func (r *Registry) ForEach(t reflect.Type, fn func(module any) error) error {
	for _, m := range r.All(t) {
		if err := fn(m); err != nil {
			return err
		}
	}
	return nil
}

// instanceOrLoading prefers a valid module and falls back to one that is
// constructed but still loading, which is what a cycle leaves behind.
func (r *Registry) instanceOrLoading(t reflect.Type) (any, bool) {
	if m, ok := r.Optional(t); ok {
		return m, true
	}
	for _, w := range r.index.lookupAll(t) {
		if m := w.module(); m != nil {
			return m, true
		}
	}
	return nil, false
}

// GetAs is a typed wrapper around Get.
func GetAs[T any](r *Registry) (T, error) {
	var zero T
	t := TypeOf[T]()
	m, err := r.Get(t)
	if err != nil {
		return zero, err
	}
	typed, ok := m.(T)
	if !ok {
		return zero, TypeMismatchError{
			Type:     t,
			Expected: typeName(t),
			Actual:   fmt.Sprintf("%T", m),
		}
	}
	return typed, nil
}

// AllAs is a typed wrapper around All.
func AllAs[T any](r *Registry) ([]T, error) {
	t := TypeOf[T]()
	all := r.All(t)
	out := make([]T, 0, len(all))
	for _, m := range all {
		typed, ok := m.(T)
		if !ok {
			return nil, TypeMismatchError{
				Type:     t,
				Expected: typeName(t),
				Actual:   fmt.Sprintf("%T", m),
			}
		}
		out = append(out, typed)
	}
	return out, nil
}

// Register is a typed wrapper around RegisterType.
func Register[T any](ctx context.Context, r *Registry, p Policy) error {
	return r.RegisterType(ctx, TypeOf[T](), p)
}

// MustRegister panics on registration error; intended for bootstrap code paths.
func MustRegister[T any](ctx context.Context, r *Registry, p Policy) {
	if err := Register[T](ctx, r, p); err != nil {
		panic(err)
	}
}
