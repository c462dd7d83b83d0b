package modreg

import (
	"context"
	"fmt"
	"reflect"
	"slices"
)

// RegisterType constructs a module of type t with the factory and registers it.
// It is a no-op when the policy's duplicate finder declines.
func (r *Registry) RegisterType(ctx context.Context, t reflect.Type, p Policy) error {
	if t == nil {
		return fmt.Errorf("register module: type is nil")
	}
	return r.write(ctx, func(ctx context.Context) error {
		return r.loadType(ctx, t, p)
	})
}

// RegisterInstance registers an already constructed module.
func (r *Registry) RegisterInstance(ctx context.Context, module any, p Policy) error {
	if module == nil {
		return fmt.Errorf("register module: instance is nil")
	}
	return r.write(ctx, func(ctx context.Context) error {
		return r.loadInstance(ctx, module, p, nil)
	})
}

// RegisterAnonymous registers module with AnonymousPolicy and empty
// properties, bypassing discovery. Duplicates are always accepted.
func (r *Registry) RegisterAnonymous(ctx context.Context, module any) error {
	if module == nil {
		return fmt.Errorf("register module: instance is nil")
	}
	return r.write(ctx, func(ctx context.Context) error {
		return r.loadInstance(ctx, module, AnonymousPolicy(), &Properties{})
	})
}

// Declare declares capability interfaces. Modules registered before the
// declaration that implement an interface become visible under it.
func (r *Registry) Declare(ctx context.Context, types ...reflect.Type) error {
	for _, t := range types {
		if t == nil || t.Kind() != reflect.Interface {
			return fmt.Errorf("declare capability %s: not an interface type", typeName(t))
		}
	}
	return r.write(ctx, func(context.Context) error {
		for _, t := range types {
			r.declare(t)
		}
		return nil
	})
}

// writeToken identifies one critical section. A context carrying the token
// of the section currently in progress may re-enter it.
type writeToken struct{ r *Registry }

type writeTokenKey struct{ r *Registry }

type loadChainKey struct{}

// write runs fn under the write lock. A context derived from the one passed
// to fn runs nested calls directly while that critical section lasts; once
// it ends, such a context takes the lock like any other.
func (r *Registry) write(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if r.holdsLock(ctx) {
		return fn(ctx)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	tok := &writeToken{r: r}
	r.active.Store(tok)
	defer func() {
		r.active.Store(nil)
		r.journal = nil
	}()
	return fn(context.WithValue(ctx, writeTokenKey{r: r}, tok))
}

func (r *Registry) holdsLock(ctx context.Context) bool {
	tok, _ := ctx.Value(writeTokenKey{r: r}).(*writeToken)
	return tok != nil && r.active.Load() == tok
}

func pushLoadChain(ctx context.Context, t reflect.Type) context.Context {
	chain := loadChain(ctx)
	next := make([]reflect.Type, 0, len(chain)+1)
	next = append(next, chain...)
	next = append(next, t)
	return context.WithValue(ctx, loadChainKey{}, next)
}

// loadChain returns the types being loaded in ctx, outermost first.
func loadChain(ctx context.Context) []reflect.Type {
	if ctx == nil {
		return nil
	}
	chain, _ := ctx.Value(loadChainKey{}).([]reflect.Type)
	return chain
}

func (r *Registry) loadType(ctx context.Context, t reflect.Type, p Policy) error {
	if t.Kind() == reflect.Interface {
		r.declare(t)
	}
	proceed, err := p.DuplicateFinder().ShouldRegisterType(r, t)
	if err != nil {
		return fmt.Errorf("register module %s: %w", typeName(t), err)
	}
	if !proceed {
		r.logger.Debug().Str("module", typeName(t)).Msg("Module present or loading, skipped")
		return nil
	}

	mark := len(r.journal)
	w := r.reserve(t, nil)
	ctx = pushLoadChain(ctx, t)

	instance, err := r.construct(ctx, t)
	if err != nil {
		r.rollbackTo(mark)
		return err
	}
	w.attach(instance)
	if rt := reflect.TypeOf(instance); rt != t {
		r.index.reserve(w, r.hierarchy.closure(rt))
	}
	return r.load(ctx, w, p, nil, mark)
}

func (r *Registry) construct(ctx context.Context, t reflect.Type) (instance any, err error) {
	defer func() {
		if p := recover(); p != nil {
			instance = nil
			err = InstantiationError{Type: t, Reason: "constructor panicked", Err: panicError(p)}
		}
	}()
	return r.factory.Construct(ctx, t)
}

func (r *Registry) loadInstance(ctx context.Context, module any, p Policy, props *Properties) error {
	t := reflect.TypeOf(module)
	proceed, err := p.DuplicateFinder().ShouldRegisterInstance(r, module)
	if err != nil {
		return err
	}
	if !proceed {
		r.logger.Debug().Str("module", typeName(t)).Msg("Module instance declined")
		return nil
	}

	mark := len(r.journal)
	w := r.reserve(t, module)
	return r.load(pushLoadChain(ctx, t), w, p, props, mark)
}

// reserve creates a wrapper for t, records it in the journal and makes it
// visible under the closure of t. instance may be nil.
func (r *Registry) reserve(t reflect.Type, instance any) *moduleWrapper {
	w := newWrapper(t)
	if instance != nil {
		w.attach(instance)
	}
	r.journal = append(r.journal, w)
	r.index.reserve(w, r.hierarchy.closure(t))
	r.logger.Debug().Str("module", typeName(t)).Int("types", len(w.reserved)).Msg("Module reserved")
	return w
}

// load discovers properties, loads hard dependencies, runs initializers and
// marks w valid, then loads soft dependencies. Any failure before w is valid
// rolls back every wrapper created since mark.
func (r *Registry) load(ctx context.Context, w *moduleWrapper, p Policy, props *Properties, mark int) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("load module %s: %w", typeName(w.baseType), panicError(rec))
		}
		if err != nil {
			r.rollbackTo(mark)
		}
	}()

	module := w.module()
	if props == nil {
		found, err := r.discover(module)
		if err != nil {
			return err
		}
		props = &found
	}
	w.properties = props
	w.setState(StatePropertiesKnown)
	r.applyExclusions(w)

	for _, dep := range append(slices.Clone(props.dependencies), props.softDependencies...) {
		if dep.Kind() == reflect.Interface {
			r.declare(dep)
		}
	}

	w.setState(StateDependenciesLoading)
	resolver := p.DependencyResolver()
	for _, dep := range props.dependencies {
		if err := resolve(ctx, r, resolver, dep, p); err != nil {
			return fmt.Errorf("load dependency %s for %s: %w", typeName(dep), typeName(w.baseType), err)
		}
	}
	for _, ini := range *r.initializers.Load() {
		if err := ini.Initialize(ctx, r, module); err != nil {
			return fmt.Errorf("initialize module %s: %w", typeName(w.baseType), err)
		}
	}

	w.setState(StateValid)
	r.appendOrder(w)
	r.logger.Info().
		Str("module", typeName(w.runtimeType())).
		Int("dependencies", len(props.dependencies)).
		Msg("Module registered")

	r.loadSoft(ctx, w, p)
	return nil
}

// loadSoft loads soft dependencies best-effort. A failed soft dependency is
// rolled back on its own and never affects w.
func (r *Registry) loadSoft(ctx context.Context, w *moduleWrapper, p Policy) {
	resolver := p.DependencyResolver()
	for _, dep := range w.properties.softDependencies {
		mark := len(r.journal)
		if err := resolve(ctx, r, resolver, dep, p); err != nil {
			r.rollbackTo(mark)
			r.logger.Warn().
				Err(err).
				Str("module", typeName(w.baseType)).
				Str("dependency", typeName(dep)).
				Msg("Soft dependency failed")
		}
	}
}

// resolve runs one resolver call, turning a panic into an error.
func resolve(ctx context.Context, r *Registry, resolver DependencyResolver, dep reflect.Type, p Policy) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = panicError(rec)
		}
	}()
	return resolver.Load(ctx, r, dep, p)
}

func panicError(rec any) error {
	if err, ok := rec.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", rec)
}

func (r *Registry) discover(module any) (Properties, error) {
	for _, d := range *r.discoveries.Load() {
		props, ok, err := d.Discover(module)
		if err != nil {
			return Properties{}, fmt.Errorf("discover module %T: %w", module, err)
		}
		if ok {
			return props, nil
		}
	}
	return Properties{}, UnrecognizedModuleError{Type: reflect.TypeOf(module)}
}

// applyExclusions removes w from its excluded types. The runtime type and
// the root type are never excluded.
func (r *Registry) applyExclusions(w *moduleWrapper) {
	rt := w.runtimeType()
	for _, ex := range w.properties.excludedTypes {
		if ex == rt || ex == anyType || !w.isReservedUnder(ex) {
			continue
		}
		r.index.unregister(w, ex)
	}
}

// declare adds a capability interface and backfills wrappers implementing it.
// Must hold the write lock.
func (r *Registry) declare(t reflect.Type) {
	if !r.hierarchy.declare(t) {
		return
	}
	for _, w := range r.index.lookupAll(anyType) {
		if !w.runtimeType().Implements(t) {
			continue
		}
		if w.properties != nil && w.properties.excludes(t) {
			continue
		}
		r.index.reserve(w, []reflect.Type{t})
	}
}

// rollbackTo removes every wrapper journaled at or after mark from the index.
func (r *Registry) rollbackTo(mark int) {
	for i := len(r.journal) - 1; i >= mark; i-- {
		w := r.journal[i]
		if w.currentState() == StateRolledBack {
			continue
		}
		wasValid := w.valid()
		r.index.unregisterAll(w)
		w.setState(StateRolledBack)
		if wasValid {
			r.removeOrder(w)
		}
		r.logger.Debug().Str("module", typeName(w.baseType)).Msg("Module rolled back")
	}
	r.journal = r.journal[:mark]
}

func (r *Registry) appendOrder(w *moduleWrapper) {
	next := append(slices.Clone(*r.order.Load()), w)
	r.order.Store(&next)
}

func (r *Registry) removeOrder(w *moduleWrapper) {
	cur := *r.order.Load()
	i := slices.Index(cur, w)
	if i < 0 {
		return
	}
	next := slices.Delete(slices.Clone(cur), i, i+1)
	r.order.Store(&next)
}
