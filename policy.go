package modreg

import (
	"context"
	"reflect"
)

// Policy bundles the duplicate and dependency strategies of one registration.
// It is passed down the whole recursive load chain. The zero Policy behaves
// as DefaultPolicy.
type Policy struct {
	duplicates DuplicateFinder
	resolver   DependencyResolver
}

// NewPolicy returns a Policy. Nil strategies fall back to the defaults.
func NewPolicy(duplicates DuplicateFinder, resolver DependencyResolver) Policy {
	return Policy{duplicates: duplicates, resolver: resolver}
}

// DefaultPolicy skips types already present, fails on duplicate instances and
// auto-registers missing dependencies.
func DefaultPolicy() Policy {
	return Policy{duplicates: StrictByType, resolver: AutoRegister}
}

// AnonymousPolicy is DefaultPolicy allowing duplicate instances.
func AnonymousPolicy() Policy {
	return Policy{duplicates: PermissiveDirect, resolver: AutoRegister}
}

func (p Policy) DuplicateFinder() DuplicateFinder {
	if p.duplicates == nil {
		return StrictByType
	}
	return p.duplicates
}

func (p Policy) DependencyResolver() DependencyResolver {
	if p.resolver == nil {
		return AutoRegister
	}
	return p.resolver
}

func (p Policy) WithDuplicateFinder(d DuplicateFinder) Policy {
	p.duplicates = d
	return p
}

func (p Policy) WithDependencyResolver(r DependencyResolver) Policy {
	p.resolver = r
	return p
}

// RegistryView is the read-only registry view duplicate finders decide on.
type RegistryView interface {
	HasOrLoading(t reflect.Type) bool
	HasOrLoadingExact(t reflect.Type) bool
}

// DuplicateFinder decides whether a registration proceeds. It is consulted
// before anything is reserved. Returning an error aborts the registration.
type DuplicateFinder interface {
	ShouldRegisterType(s RegistryView, t reflect.Type) (bool, error)
	ShouldRegisterInstance(s RegistryView, module any) (bool, error)
}

var (
	// StrictByType skips a type that is present or loading, and rejects an
	// instance whose exact type is present or loading.
	StrictByType DuplicateFinder = strictByType{}
	// PermissiveDirect skips a type that is present or loading, and always
	// accepts instances.
	PermissiveDirect DuplicateFinder = permissiveDirect{}
)

type strictByType struct{}

func (strictByType) ShouldRegisterType(s RegistryView, t reflect.Type) (bool, error) {
	return !s.HasOrLoading(t), nil
}

func (strictByType) ShouldRegisterInstance(s RegistryView, module any) (bool, error) {
	t := reflect.TypeOf(module)
	if s.HasOrLoadingExact(t) {
		return false, DuplicateRegistrationError{Type: t}
	}
	return true, nil
}

type permissiveDirect struct{}

func (permissiveDirect) ShouldRegisterType(s RegistryView, t reflect.Type) (bool, error) {
	return !s.HasOrLoading(t), nil
}

func (permissiveDirect) ShouldRegisterInstance(RegistryView, any) (bool, error) {
	return true, nil
}

// DependencyResolver satisfies one dependency of a module being loaded. It
// runs inside the registration's critical section; ctx must be passed on to
// any registry call.
type DependencyResolver interface {
	Load(ctx context.Context, r *Registry, dep reflect.Type, p Policy) error
}

// DependencyResolverFunc adapts a function to DependencyResolver.
type DependencyResolverFunc func(ctx context.Context, r *Registry, dep reflect.Type, p Policy) error

func (f DependencyResolverFunc) Load(ctx context.Context, r *Registry, dep reflect.Type, p Policy) error {
	return f(ctx, r, dep, p)
}

var (
	// AutoRegister registers missing dependencies by type. Transitive loads
	// always use StrictByType: a type that is still loading is skipped, which
	// is what ends dependency cycles.
	AutoRegister DependencyResolver = autoRegister{}
	// FailFast never registers anything; a missing dependency is an
	// UnsatisfiedDependencyError.
	FailFast DependencyResolver = failFast{}
)

type autoRegister struct{}

func (autoRegister) Load(ctx context.Context, r *Registry, dep reflect.Type, p Policy) error {
	return r.RegisterType(ctx, dep, p.WithDuplicateFinder(StrictByType))
}

type failFast struct{}

func (failFast) Load(ctx context.Context, r *Registry, dep reflect.Type, _ Policy) error {
	if r.HasOrLoading(dep) {
		return nil
	}
	return UnsatisfiedDependencyError{Dependency: dep, Chain: loadChain(ctx)}
}
