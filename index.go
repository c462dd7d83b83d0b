package modreg

import (
	"fmt"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"
)

// capabilityIndex maps capability types to the wrappers registered (or
// reserved) under them, in insertion order.
//
// Each per-type list is copy-on-write: mutations publish a new slice, so
// readers never lock and never see a list mid-mutation. Mutations must be
// serialized by the caller (the registry write lock).
type capabilityIndex struct {
	entries sync.Map // reflect.Type -> *atomic.Pointer[[]*moduleWrapper]
}

func (x *capabilityIndex) slot(t reflect.Type) *atomic.Pointer[[]*moduleWrapper] {
	if v, ok := x.entries.Load(t); ok {
		return v.(*atomic.Pointer[[]*moduleWrapper])
	}
	v, _ := x.entries.LoadOrStore(t, new(atomic.Pointer[[]*moduleWrapper]))
	return v.(*atomic.Pointer[[]*moduleWrapper])
}

// reserve inserts w under every type in types. No closure is computed here.
func (x *capabilityIndex) reserve(w *moduleWrapper, types []reflect.Type) {
	for _, t := range types {
		if w.isReservedUnder(t) {
			continue
		}
		slot := x.slot(t)
		var next []*moduleWrapper
		if cur := slot.Load(); cur != nil {
			next = make([]*moduleWrapper, 0, len(*cur)+1)
			next = append(next, *cur...)
		}
		next = append(next, w)
		slot.Store(&next)
		w.reserved = append(w.reserved, t)
	}
}

// unregister removes w from the list of t. w must be present.
func (x *capabilityIndex) unregister(w *moduleWrapper, t reflect.Type) {
	v, ok := x.entries.Load(t)
	if !ok {
		panic(fmt.Sprintf("modreg: unregister %s: no entry for %s", typeName(w.baseType), typeName(t)))
	}
	slot := v.(*atomic.Pointer[[]*moduleWrapper])
	cur := slot.Load()
	if cur == nil {
		panic(fmt.Sprintf("modreg: unregister %s: empty entry for %s", typeName(w.baseType), typeName(t)))
	}
	i := slices.Index(*cur, w)
	if i < 0 {
		panic(fmt.Sprintf("modreg: unregister %s: not registered as %s", typeName(w.baseType), typeName(t)))
	}
	next := make([]*moduleWrapper, 0, len(*cur)-1)
	next = append(next, (*cur)[:i]...)
	next = append(next, (*cur)[i+1:]...)
	slot.Store(&next)

	if j := slices.Index(w.reserved, t); j >= 0 {
		w.reserved = slices.Delete(w.reserved, j, j+1)
	}
}

// unregisterAll removes w from every type it is reserved under.
func (x *capabilityIndex) unregisterAll(w *moduleWrapper) {
	for _, t := range slices.Clone(w.reserved) {
		x.unregister(w, t)
	}
}

// lookupAll returns a snapshot of every wrapper under t, loading or valid.
func (x *capabilityIndex) lookupAll(t reflect.Type) []*moduleWrapper {
	v, ok := x.entries.Load(t)
	if !ok {
		return nil
	}
	cur := v.(*atomic.Pointer[[]*moduleWrapper]).Load()
	if cur == nil {
		return nil
	}
	return *cur
}

// lookupValid returns the instances of the valid wrappers under t.
func (x *capabilityIndex) lookupValid(t reflect.Type) []any {
	var out []any
	for _, w := range x.lookupAll(t) {
		if w.valid() {
			out = append(out, w.module())
		}
	}
	return out
}
