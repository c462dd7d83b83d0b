package modreg

import (
	"context"
	"fmt"
	"reflect"
	"sync"
)

// Factory builds a module instance for a type.
type Factory interface {
	Construct(ctx context.Context, t reflect.Type) (any, error)
}

// Constructor builds one module instance.
type Constructor func(ctx context.Context) (any, error)

// ConstructorFactory uses explicitly provided constructors first and falls
// back to zero values for struct and pointer-to-struct types.
type ConstructorFactory struct {
	mu    sync.RWMutex
	ctors map[reflect.Type]Constructor
}

func NewFactory() *ConstructorFactory {
	return &ConstructorFactory{
		ctors: make(map[reflect.Type]Constructor),
	}
}

// Provide binds a constructor to t. The constructor's result must be
// assignable to t; binding an interface type lets dependencies on it be
// auto-registered.
func (f *ConstructorFactory) Provide(t reflect.Type, ctor Constructor) error {
	if t == nil {
		return fmt.Errorf("provide constructor: type is nil")
	}
	if ctor == nil {
		return fmt.Errorf("provide constructor: constructor is nil for %s", typeName(t))
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.ctors[t]; exists {
		return fmt.Errorf("provide constructor: duplicate constructor for %s", typeName(t))
	}
	f.ctors[t] = ctor
	return nil
}

// ProvideFunc is a typed wrapper around Provide.
func ProvideFunc[T any](f *ConstructorFactory, ctor func(ctx context.Context) (T, error)) error {
	if ctor == nil {
		return fmt.Errorf("provide constructor: constructor is nil for %s", typeName(TypeOf[T]()))
	}
	return f.Provide(TypeOf[T](), func(ctx context.Context) (any, error) {
		return ctor(ctx)
	})
}

// MustProvide panics on error; intended for bootstrap code paths.
func MustProvide[T any](f *ConstructorFactory, ctor func(ctx context.Context) (T, error)) {
	if err := ProvideFunc(f, ctor); err != nil {
		panic(err)
	}
}

func (f *ConstructorFactory) Construct(ctx context.Context, t reflect.Type) (any, error) {
	f.mu.RLock()
	ctor, ok := f.ctors[t]
	f.mu.RUnlock()
	if ok {
		instance, err := ctor(ctx)
		if err != nil {
			return nil, InstantiationError{Type: t, Err: err}
		}
		if instance == nil {
			return nil, InstantiationError{Type: t, Reason: "constructor returned nil"}
		}
		if !reflect.TypeOf(instance).AssignableTo(t) {
			return nil, InstantiationError{
				Type:   t,
				Reason: fmt.Sprintf("constructor returned %T", instance),
			}
		}
		return instance, nil
	}

	switch {
	case t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Struct:
		return reflect.New(t.Elem()).Interface(), nil
	case t.Kind() == reflect.Struct:
		return reflect.New(t).Elem().Interface(), nil
	default:
		return nil, InstantiationError{Type: t, Reason: "no constructor provided"}
	}
}
