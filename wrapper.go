package modreg

import (
	"reflect"
	"slices"
	"sync/atomic"
)

// State is the registration progress of one module.
type State int32

const (
	StateReserved State = iota
	StateInstantiated
	StatePropertiesKnown
	StateDependenciesLoading
	StateValid
	StateRolledBack
)

func (s State) String() string {
	switch s {
	case StateReserved:
		return "reserved"
	case StateInstantiated:
		return "instantiated"
	case StatePropertiesKnown:
		return "properties-known"
	case StateDependenciesLoading:
		return "dependencies-loading"
	case StateValid:
		return "valid"
	case StateRolledBack:
		return "rolled-back"
	default:
		return "unknown"
	}
}

// moduleWrapper tracks one in-flight or completed registration. The same
// wrapper is shared by every capability type it is reserved under.
//
// instance and state are read by lock-free lookups; everything else is only
// touched under the registry write lock.
type moduleWrapper struct {
	baseType reflect.Type
	instance atomic.Pointer[any]
	state    atomic.Int32

	properties *Properties
	reserved   []reflect.Type
}

func newWrapper(baseType reflect.Type) *moduleWrapper {
	return &moduleWrapper{baseType: baseType}
}

func (w *moduleWrapper) currentState() State { return State(w.state.Load()) }

func (w *moduleWrapper) setState(s State) { w.state.Store(int32(s)) }

func (w *moduleWrapper) valid() bool { return w.currentState() == StateValid }

// module returns the instance, or nil while the wrapper is only reserved.
func (w *moduleWrapper) module() any {
	p := w.instance.Load()
	if p == nil {
		return nil
	}
	return *p
}

func (w *moduleWrapper) attach(instance any) {
	w.instance.Store(&instance)
	w.setState(StateInstantiated)
}

// runtimeType is the most-derived type: the instance's type once attached,
// the base type before.
func (w *moduleWrapper) runtimeType() reflect.Type {
	if m := w.module(); m != nil {
		return reflect.TypeOf(m)
	}
	return w.baseType
}

func (w *moduleWrapper) isReservedUnder(t reflect.Type) bool {
	return slices.Contains(w.reserved, t)
}
