package modreg

import (
	"context"
	"fmt"
	"reflect"
)

// Initializer runs setup logic on a module after its hard dependencies are
// present. Initializers run inside the registration's critical section; ctx
// must be passed on to any registry call and must not escape the call.
type Initializer interface {
	Initialize(ctx context.Context, r *Registry, module any) error
}

// InitializerFunc adapts a function to Initializer.
type InitializerFunc func(ctx context.Context, r *Registry, module any) error

func (f InitializerFunc) Initialize(ctx context.Context, r *Registry, module any) error {
	return f(ctx, r, module)
}

var (
	// InterfaceInitializer calls Init on modules implementing Initializable.
	InterfaceInitializer Initializer = InitializerFunc(func(ctx context.Context, r *Registry, module any) error {
		if m, ok := module.(Initializable); ok {
			return m.Init(ctx, r)
		}
		return nil
	})

	// FieldInjector fills exported fields tagged `modreg:"require"`,
	// `modreg:"soft"` and `modreg:"registry"` on pointer-to-struct modules.
	// A required module reached through a cycle may still be loading when it
	// is injected. Soft fields are only set if the module is already present.
	FieldInjector Initializer = InitializerFunc(injectFields)
)

var registryPtrType = TypeOf[*Registry]()

func injectFields(_ context.Context, r *Registry, module any) error {
	v := reflect.ValueOf(module)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return nil
	}
	return injectStruct(r, reflect.TypeOf(module), v.Elem(), map[reflect.Type]bool{})
}

func injectStruct(r *Registry, moduleType reflect.Type, v reflect.Value, seen map[reflect.Type]bool) error {
	st := v.Type()
	if seen[st] {
		return nil
	}
	seen[st] = true

	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		tag := f.Tag.Get(TagKey)
		fv := v.Field(i)

		if f.Anonymous && tag == "" && f.Type != annotatedType {
			inner := fv
			if inner.Kind() == reflect.Pointer {
				if inner.IsNil() {
					continue
				}
				inner = inner.Elem()
			}
			if inner.Kind() == reflect.Struct {
				if err := injectStruct(r, moduleType, inner, seen); err != nil {
					return err
				}
			}
			continue
		}

		if tag == "" || !f.IsExported() || !fv.CanSet() {
			continue
		}

		switch tag {
		case tagRequire:
			instance, ok := r.instanceOrLoading(f.Type)
			if !ok {
				return InvalidModuleError{
					Type:   moduleType,
					Reason: fmt.Sprintf("required field %s: no %s instance registered", f.Name, typeName(f.Type)),
				}
			}
			fv.Set(reflect.ValueOf(instance))
		case tagSoft:
			if instance, ok := r.instanceOrLoading(f.Type); ok {
				fv.Set(reflect.ValueOf(instance))
			}
		case tagRegistry:
			if f.Type != registryPtrType {
				return InvalidModuleError{
					Type:   moduleType,
					Reason: fmt.Sprintf("field %s is tagged %q but is %s", f.Name, tagRegistry, typeName(f.Type)),
				}
			}
			fv.Set(reflect.ValueOf(r))
		}
	}
	return nil
}
