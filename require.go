package modreg

import (
	"context"
	"fmt"
	"reflect"
)

// Require returns a valid module registered under t, registering one by type
// with DefaultPolicy if there is none. Concurrent first requests for the same
// type share one registration.
func (r *Registry) Require(ctx context.Context, t reflect.Type) (any, error) {
	if t == nil {
		return nil, fmt.Errorf("require module: type is nil")
	}
	if m, ok := r.Optional(t); ok {
		return m, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	// Inside a registration the caller already owns the write lock; joining a
	// flight led by another goroutine that waits for that lock would deadlock.
	if r.holdsLock(ctx) {
		return r.require(ctx, t)
	}

	v, err, _ := r.sf.Do(flightKey(t), func() (any, error) {
		return r.require(ctx, t)
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// RequireAs is a typed wrapper around Require.
func RequireAs[T any](ctx context.Context, r *Registry) (T, error) {
	var zero T
	t := TypeOf[T]()
	m, err := r.Require(ctx, t)
	if err != nil {
		return zero, err
	}
	typed, ok := m.(T)
	if !ok {
		return zero, TypeMismatchError{Type: t, Expected: typeName(t), Actual: fmt.Sprintf("%T", m)}
	}
	return typed, nil
}

func (r *Registry) require(ctx context.Context, t reflect.Type) (any, error) {
	if err := r.RegisterType(ctx, t, DefaultPolicy()); err != nil {
		return nil, fmt.Errorf("require module %s: %w", typeName(t), err)
	}
	if m, ok := r.instanceOrLoading(t); ok {
		return m, nil
	}
	return nil, NotFoundError{Type: t}
}

// flightKey identifies t for singleflight; type names alone are not unique
// across packages.
func flightKey(t reflect.Type) string {
	return fmt.Sprintf("%s@%p", t.String(), t)
}
