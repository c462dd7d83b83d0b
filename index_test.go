package modreg

import (
	"io"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapabilityIndex(t *testing.T) {
	var x capabilityIndex
	typ := TypeOf[*correctModule]()
	a, b := newWrapper(typ), newWrapper(typ)

	x.reserve(a, []reflect.Type{typ, anyType})
	x.reserve(b, []reflect.Type{typ, anyType, typ})
	assert.Equal(t, []*moduleWrapper{a, b}, x.lookupAll(typ))
	assert.Equal(t, []reflect.Type{typ, anyType}, b.reserved)
	assert.Empty(t, x.lookupValid(typ))

	module := &correctModule{}
	b.attach(module)
	b.setState(StateValid)
	assert.Equal(t, []any{module}, x.lookupValid(typ))

	snapshot := x.lookupAll(typ)
	x.unregister(a, typ)
	assert.Len(t, snapshot, 2, "snapshots are not mutated")
	assert.Equal(t, []*moduleWrapper{b}, x.lookupAll(typ))
	assert.Equal(t, []reflect.Type{anyType}, a.reserved)

	x.unregisterAll(b)
	assert.Empty(t, x.lookupAll(typ))
	assert.Equal(t, []*moduleWrapper{a}, x.lookupAll(anyType))
	assert.Empty(t, b.reserved)
}

func TestCapabilityIndexUnregisterAbsent(t *testing.T) {
	var x capabilityIndex
	w := newWrapper(TypeOf[*correctModule]())
	assert.Panics(t, func() { x.unregister(w, anyType) })

	x.reserve(newWrapper(anyType), []reflect.Type{anyType})
	assert.Panics(t, func() { x.unregister(w, anyType) })
}

func TestWrapperState(t *testing.T) {
	w := newWrapper(TypeOf[provider]())
	assert.Equal(t, StateReserved, w.currentState())
	assert.Nil(t, w.module())
	assert.Equal(t, TypeOf[provider](), w.runtimeType())

	w.attach(&implementation{})
	assert.Equal(t, StateInstantiated, w.currentState())
	assert.Equal(t, TypeOf[*implementation](), w.runtimeType())
	assert.Equal(t, "instantiated", w.currentState().String())
	assert.Equal(t, "unknown", State(42).String())
}

func TestHierarchyClosure(t *testing.T) {
	h := newHierarchy()
	impl := TypeOf[*implementation]()
	assert.Equal(t, []reflect.Type{impl, anyType}, h.closure(impl))

	assert.True(t, h.declare(TypeOf[provider]()))
	assert.False(t, h.declare(TypeOf[provider]()))
	assert.False(t, h.declare(anyType))
	assert.False(t, h.declare(impl))
	assert.True(t, h.declare(TypeOf[io.Closer]()))

	assert.Equal(t, []reflect.Type{impl, TypeOf[provider](), anyType}, h.closure(impl))
	assert.Equal(t, []reflect.Type{TypeOf[provider](), anyType}, h.closure(TypeOf[provider]()))
	assert.Equal(t, []reflect.Type{anyType}, h.closure(anyType))
}

type fakeState struct {
	loading map[reflect.Type]bool
}

func (s fakeState) HasOrLoading(t reflect.Type) bool      { return s.loading[t] }
func (s fakeState) HasOrLoadingExact(t reflect.Type) bool { return s.loading[t] }

func TestDuplicateFinders(t *testing.T) {
	typ := TypeOf[*correctModule]()
	empty := fakeState{}
	present := fakeState{loading: map[reflect.Type]bool{typ: true}}

	for _, finder := range []DuplicateFinder{StrictByType, PermissiveDirect} {
		ok, err := finder.ShouldRegisterType(empty, typ)
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = finder.ShouldRegisterType(present, typ)
		require.NoError(t, err)
		assert.False(t, ok)
	}

	ok, err := StrictByType.ShouldRegisterInstance(present, &correctModule{})
	assert.False(t, ok)
	var dup DuplicateRegistrationError
	assert.ErrorAs(t, err, &dup)

	ok, err = PermissiveDirect.ShouldRegisterInstance(present, &correctModule{})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPolicyDefaults(t *testing.T) {
	var p Policy
	assert.Equal(t, StrictByType, p.DuplicateFinder())
	assert.NotNil(t, p.DependencyResolver())

	p = NewPolicy(PermissiveDirect, FailFast).WithDuplicateFinder(nil)
	assert.Equal(t, StrictByType, p.DuplicateFinder())
	assert.Equal(t, AnonymousPolicy().DuplicateFinder(), PermissiveDirect)
}
