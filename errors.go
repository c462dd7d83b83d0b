package modreg

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// ErrClosed is returned by registrations attempted after Close.
var ErrClosed = errors.New("module registry is closed")

// DuplicateRegistrationError means a module of the exact same type is already
// registered or loading.
type DuplicateRegistrationError struct {
	Type reflect.Type
}

func (e DuplicateRegistrationError) Error() string {
	return fmt.Sprintf("module already registered: %s", typeName(e.Type))
}

// UnrecognizedModuleError means no discovery strategy produced properties.
type UnrecognizedModuleError struct {
	Type reflect.Type
}

func (e UnrecognizedModuleError) Error() string {
	return fmt.Sprintf("unrecognized module %s: embed modreg.Annotated or implement modreg.Describer",
		typeName(e.Type))
}

// UnsatisfiedDependencyError means a dependency is missing and the resolver
// does not load it.
type UnsatisfiedDependencyError struct {
	Dependency reflect.Type
	// Chain lists the types being loaded when the dependency was requested, outermost first.
	Chain []reflect.Type
}

func (e UnsatisfiedDependencyError) Error() string {
	if len(e.Chain) == 0 {
		return fmt.Sprintf("unsatisfied dependency: %s", typeName(e.Dependency))
	}
	return fmt.Sprintf("unsatisfied dependency: %s -> %s", formatChain(e.Chain), typeName(e.Dependency))
}

// InstantiationError means the factory could not build a module of Type.
type InstantiationError struct {
	Type   reflect.Type
	Reason string
	Err    error
}

func (e InstantiationError) Error() string {
	msg := fmt.Sprintf("instantiate module %s", typeName(e.Type))
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e InstantiationError) Unwrap() error { return e.Err }

// NotFoundError means no valid module is registered under Type.
type NotFoundError struct {
	Type reflect.Type
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("no such module: %s", typeName(e.Type))
}

// InvalidModuleError means a module declares inconsistent properties.
type InvalidModuleError struct {
	Type   reflect.Type
	Reason string
}

func (e InvalidModuleError) Error() string {
	return fmt.Sprintf("invalid module %s: %s", typeName(e.Type), e.Reason)
}

// TypeMismatchError means GetAs[T] or AllAs[T] found a module that is not a T.
type TypeMismatchError struct {
	Type     reflect.Type
	Expected string
	Actual   string
}

func (e TypeMismatchError) Error() string {
	return fmt.Sprintf("module type mismatch for %s: expected=%s actual=%s",
		typeName(e.Type), e.Expected, e.Actual)
}

func formatChain(chain []reflect.Type) string {
	parts := make([]string, len(chain))
	for i := range chain {
		parts[i] = typeName(chain[i])
	}
	return strings.Join(parts, " -> ")
}
