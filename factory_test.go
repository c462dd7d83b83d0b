package modreg

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactoryZeroValues(t *testing.T) {
	f := NewFactory()
	ctx := context.Background()

	v, err := f.Construct(ctx, TypeOf[*correctModule]())
	require.NoError(t, err)
	assert.IsType(t, &correctModule{}, v)

	v, err = f.Construct(ctx, TypeOf[bare]())
	require.NoError(t, err)
	assert.Equal(t, bare{}, v)

	_, err = f.Construct(ctx, TypeOf[provider]())
	var instErr InstantiationError
	require.ErrorAs(t, err, &instErr)
	assert.Equal(t, "no constructor provided", instErr.Reason)
}

func TestFactoryConstructors(t *testing.T) {
	f := NewFactory()
	ctx := context.Background()
	MustProvide(f, func(context.Context) (*bare, error) { return &bare{n: 3}, nil })

	v, err := f.Construct(ctx, TypeOf[*bare]())
	require.NoError(t, err)
	assert.Equal(t, 3, v.(*bare).n)

	assert.Error(t, ProvideFunc(f, func(context.Context) (*bare, error) { return nil, nil }), "duplicate constructor")
	assert.Error(t, f.Provide(nil, func(context.Context) (any, error) { return nil, nil }))
	assert.Error(t, f.Provide(TypeOf[int](), nil))
	assert.Panics(t, func() { MustProvide[*bare](f, nil) })
}

func TestFactoryConstructorErrors(t *testing.T) {
	f := NewFactory()
	ctx := context.Background()
	require.NoError(t, f.Provide(TypeOf[*correctModule](), func(context.Context) (any, error) { return nil, errBoom }))
	require.NoError(t, f.Provide(TypeOf[*metrics](), func(context.Context) (any, error) { return nil, nil }))
	require.NoError(t, f.Provide(TypeOf[*bare](), func(context.Context) (any, error) { return "bare", nil }))

	_, err := f.Construct(ctx, TypeOf[*correctModule]())
	assert.True(t, errors.Is(err, errBoom))

	_, err = f.Construct(ctx, TypeOf[*metrics]())
	assert.ErrorContains(t, err, "constructor returned nil")

	_, err = f.Construct(ctx, TypeOf[*bare]())
	assert.ErrorContains(t, err, "constructor returned string")

	reg := New(WithFactory(f))
	err = Register[*correctModule](ctx, reg, DefaultPolicy())
	assert.True(t, errors.Is(err, errBoom))
	assert.False(t, reg.HasOrLoading(TypeOf[*correctModule]()))
}
