package modreg

import (
	"reflect"
	"slices"
	"sync/atomic"
)

// hierarchy holds the declared capability interfaces. Go types have no
// supertypes, so "implements" edges are only known for interfaces someone
// declared.
type hierarchy struct {
	// copy-on-write; replaced under the registry write lock
	declared atomic.Pointer[[]reflect.Type]
}

func newHierarchy() *hierarchy {
	h := &hierarchy{}
	h.declared.Store(&[]reflect.Type{})
	return h
}

func (h *hierarchy) interfaces() []reflect.Type {
	return *h.declared.Load()
}

func (h *hierarchy) isDeclared(t reflect.Type) bool {
	return slices.Contains(h.interfaces(), t)
}

// declare adds t and reports whether it was new. Only interface types other
// than the root type can be declared.
func (h *hierarchy) declare(t reflect.Type) bool {
	if t == nil || t.Kind() != reflect.Interface || t == anyType || h.isDeclared(t) {
		return false
	}
	next := append(slices.Clone(h.interfaces()), t)
	h.declared.Store(&next)
	return true
}

// closure returns t, every declared interface t implements, and the root
// type, without duplicates.
func (h *hierarchy) closure(t reflect.Type) []reflect.Type {
	out := []reflect.Type{t}
	for _, itf := range h.interfaces() {
		if itf != t && t.Implements(itf) {
			out = append(out, itf)
		}
	}
	if t != anyType {
		out = append(out, anyType)
	}
	return out
}
