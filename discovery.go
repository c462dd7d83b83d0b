package modreg

import (
	"fmt"
	"reflect"
)

// TagKey is the struct tag read by TagDiscovery and FieldInjector.
const TagKey = "modreg"

const (
	tagRequire  = "require"
	tagSoft     = "soft"
	tagExclude  = "exclude"
	tagRegistry = "registry"
)

// PropertyDiscovery extracts the properties of a module. ok is false when the
// strategy does not recognize the module and the next one should be tried.
type PropertyDiscovery interface {
	Discover(module any) (props Properties, ok bool, err error)
}

// DiscoveryFunc adapts a function to PropertyDiscovery.
type DiscoveryFunc func(module any) (Properties, bool, error)

func (f DiscoveryFunc) Discover(module any) (Properties, bool, error) { return f(module) }

var (
	// DescriberDiscovery recognizes modules implementing Describer.
	DescriberDiscovery PropertyDiscovery = DiscoveryFunc(func(module any) (Properties, bool, error) {
		d, ok := module.(Describer)
		if !ok {
			return Properties{}, false, nil
		}
		return d.Describe(), true, nil
	})

	// TagDiscovery recognizes struct modules embedding Annotated and reads
	// their `modreg` field tags, including those of embedded structs.
	TagDiscovery PropertyDiscovery = DiscoveryFunc(discoverTags)
)

var annotatedType = TypeOf[Annotated]()

func discoverTags(module any) (Properties, bool, error) {
	moduleType := reflect.TypeOf(module)
	st := structType(moduleType)
	if st == nil {
		return Properties{}, false, nil
	}

	if !embedsAnnotated(st) {
		return Properties{}, false, nil
	}

	var deps, soft, excluded []reflect.Type
	err := walkTaggedFields(st, map[reflect.Type]bool{}, func(f reflect.StructField, tag string) error {
		if f.Anonymous && f.Type == annotatedType {
			return nil
		}
		switch tag {
		case "":
			return nil
		case tagRequire:
			deps = append(deps, f.Type)
		case tagSoft:
			soft = append(soft, f.Type)
		case tagExclude:
			if !implementsOrIs(moduleType, f.Type) {
				return InvalidModuleError{
					Type:   moduleType,
					Reason: fmt.Sprintf("field %s excludes %s, which the module does not implement", f.Name, typeName(f.Type)),
				}
			}
			excluded = append(excluded, f.Type)
		case tagRegistry:
		default:
			return InvalidModuleError{
				Type:   moduleType,
				Reason: fmt.Sprintf("field %s has unknown %s tag %q", f.Name, TagKey, tag),
			}
		}
		return nil
	})
	if err != nil {
		return Properties{}, false, err
	}
	return NewProperties(deps, soft, excluded), true, nil
}

func embedsAnnotated(st reflect.Type) bool {
	found := false
	_ = walkTaggedFields(st, map[reflect.Type]bool{}, func(f reflect.StructField, _ string) error {
		if f.Anonymous && f.Type == annotatedType {
			found = true
		}
		return nil
	})
	return found
}

// walkTaggedFields visits the fields of st depth-first, descending into
// embedded structs that carry no tag of their own.
func walkTaggedFields(st reflect.Type, seen map[reflect.Type]bool, visit func(f reflect.StructField, tag string) error) error {
	if seen[st] {
		return nil
	}
	seen[st] = true
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		tag := f.Tag.Get(TagKey)
		if err := visit(f, tag); err != nil {
			return err
		}
		if f.Anonymous && tag == "" && f.Type != annotatedType {
			if inner := structType(f.Type); inner != nil {
				if err := walkTaggedFields(inner, seen, visit); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func structType(t reflect.Type) reflect.Type {
	if t == nil {
		return nil
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	return t
}

func implementsOrIs(t, target reflect.Type) bool {
	if t == target {
		return true
	}
	return target.Kind() == reflect.Interface && t.Implements(target)
}
