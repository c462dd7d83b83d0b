package modreg

import (
	"context"
	"reflect"
	"slices"
)

// TypeOf returns the capability type of T. Interface types are kept as is.
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// anyType is the root capability type every module satisfies.
var anyType = TypeOf[any]()

// Properties is the immutable meta-information of a module.
//
// Dependencies must be present before the module becomes valid.
// Soft dependencies are loaded after the module is valid, best-effort.
// Excluded types are capability types the module is not registered under.
type Properties struct {
	dependencies     []reflect.Type
	softDependencies []reflect.Type
	excludedTypes    []reflect.Type
}

// NewProperties builds Properties. Each list is deduplicated, keeping the first occurrence.
func NewProperties(dependencies, softDependencies, excludedTypes []reflect.Type) Properties {
	return Properties{
		dependencies:     dedupTypes(dependencies),
		softDependencies: dedupTypes(softDependencies),
		excludedTypes:    dedupTypes(excludedTypes),
	}
}

func (p Properties) Dependencies() []reflect.Type     { return slices.Clone(p.dependencies) }
func (p Properties) SoftDependencies() []reflect.Type { return slices.Clone(p.softDependencies) }
func (p Properties) ExcludedTypes() []reflect.Type    { return slices.Clone(p.excludedTypes) }

func (p Properties) excludes(t reflect.Type) bool {
	return slices.Contains(p.excludedTypes, t)
}

// Describer is implemented by modules that declare their properties in code.
type Describer interface {
	Describe() Properties
}

// Initializable is implemented by modules that need setup after their
// hard dependencies are present.
type Initializable interface {
	Init(ctx context.Context, r *Registry) error
}

// Annotated marks a struct module whose properties come from `modreg` field tags.
//
//	type Service struct {
//		modreg.Annotated
//		Store   Store   `modreg:"require"`
//		Metrics Metrics `modreg:"soft"`
//		_       io.Closer `modreg:"exclude"`
//	}
type Annotated struct{}

func dedupTypes(types []reflect.Type) []reflect.Type {
	if len(types) == 0 {
		return nil
	}
	out := make([]reflect.Type, 0, len(types))
	for _, t := range types {
		if t == nil || slices.Contains(out, t) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}
