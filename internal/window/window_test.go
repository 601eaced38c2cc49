package window

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetCreatesDataProperty(t *testing.T) {
	obj := New("test")

	require.NoError(t, obj.Set("color", "red"))

	v, ok := obj.Get("color")
	assert.True(t, ok)
	assert.Equal(t, "red", v)

	desc, ok := obj.Descriptor("color")
	require.True(t, ok)
	assert.True(t, desc.Writable)
	assert.True(t, desc.Enumerable)
	assert.True(t, desc.Configurable)
}

func TestSetReadOnly(t *testing.T) {
	obj := New("test")
	require.NoError(t, obj.Define("frozen", &Descriptor{Value: 1, Configurable: true}))

	err := obj.Set("frozen", 2)
	assert.ErrorIs(t, err, ErrReadOnly)

	v, _ := obj.Get("frozen")
	assert.Equal(t, 1, v)
}

func TestDefineNonConfigurable(t *testing.T) {
	obj := New("test")
	require.NoError(t, obj.Define("locked", &Descriptor{Value: 1, Writable: true}))

	// Value change on a writable data property keeps the shape.
	err := obj.Define("locked", &Descriptor{Value: 2, Writable: true})
	require.NoError(t, err)
	v, _ := obj.Get("locked")
	assert.Equal(t, 2, v)

	// Any shape change is rejected.
	err = obj.Define("locked", &Descriptor{Value: 3, Writable: true, Enumerable: true})
	assert.ErrorIs(t, err, ErrNotConfigurable)

	err = obj.Define("locked", &Descriptor{Getter: NewFunc("get", func(any, ...any) (any, error) {
		return 9, nil
	})})
	assert.ErrorIs(t, err, ErrNotConfigurable)
}

func TestDelete(t *testing.T) {
	obj := New("test")
	require.NoError(t, obj.Set("temp", 1))
	require.NoError(t, obj.Define("perm", &Descriptor{Value: 2}))

	assert.True(t, obj.Delete("temp"))
	assert.False(t, obj.HasOwn("temp"))

	assert.False(t, obj.Delete("perm"))
	assert.True(t, obj.HasOwn("perm"))

	// Deleting an absent key succeeds.
	assert.True(t, obj.Delete("missing"))
}

func TestAccessorProperty(t *testing.T) {
	obj := New("test")
	stored := "initial"

	require.NoError(t, obj.Define("value", &Descriptor{
		Getter: NewFunc("get value", func(any, ...any) (any, error) {
			return stored, nil
		}),
		Setter: NewFunc("set value", func(_ any, args ...any) (any, error) {
			stored = args[0].(string)
			return nil, nil
		}),
		Configurable: true,
	}))

	v, ok := obj.Get("value")
	assert.True(t, ok)
	assert.Equal(t, "initial", v)

	require.NoError(t, obj.Set("value", "updated"))
	assert.Equal(t, "updated", stored)
}

func TestGetterOnlyRejectsWrites(t *testing.T) {
	obj := New("test")
	require.NoError(t, obj.Define("ro", &Descriptor{
		Getter:       NewFunc("get ro", func(any, ...any) (any, error) { return 1, nil }),
		Configurable: true,
	}))

	err := obj.Set("ro", 2)
	assert.ErrorIs(t, err, ErrReadOnly)
}

func TestGetterFailureYieldsUndefined(t *testing.T) {
	obj := New("test")
	require.NoError(t, obj.Define("broken", &Descriptor{
		Getter: NewFunc("get broken", func(any, ...any) (any, error) {
			return nil, errors.New("boom")
		}),
		Configurable: true,
	}))

	v, ok := obj.Get("broken")
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestPrototypeChain(t *testing.T) {
	proto := New("proto")
	require.NoError(t, proto.Set("inherited", "base"))

	obj := New("test")
	obj.SetProto(proto)

	v, ok := obj.Get("inherited")
	assert.True(t, ok)
	assert.Equal(t, "base", v)

	assert.True(t, obj.Has("inherited"))
	assert.False(t, obj.HasOwn("inherited"))

	// Writing shadows instead of mutating the prototype.
	require.NoError(t, obj.Set("inherited", "own"))
	v, _ = obj.Get("inherited")
	assert.Equal(t, "own", v)
	v, _ = proto.Get("inherited")
	assert.Equal(t, "base", v)
}

func TestInheritedSetterInterceptsWrite(t *testing.T) {
	var received any
	proto := New("proto")
	require.NoError(t, proto.Define("hooked", &Descriptor{
		Setter: NewFunc("set hooked", func(_ any, args ...any) (any, error) {
			received = args[0]
			return nil, nil
		}),
		Configurable: true,
	}))

	obj := New("test")
	obj.SetProto(proto)

	require.NoError(t, obj.Set("hooked", 42))
	assert.Equal(t, 42, received)
	assert.False(t, obj.HasOwn("hooked"))
}

func TestOwnKeysOrder(t *testing.T) {
	obj := New("test")
	for _, k := range []string{"c", "a", "b"} {
		require.NoError(t, obj.Set(k, k))
	}
	assert.Equal(t, []string{"c", "a", "b"}, obj.OwnKeys())

	obj.Delete("a")
	assert.Equal(t, []string{"c", "b"}, obj.OwnKeys())
}

func TestDescriptorReturnsClone(t *testing.T) {
	obj := New("test")
	require.NoError(t, obj.Set("x", 1))

	desc, ok := obj.Descriptor("x")
	require.True(t, ok)
	desc.Value = 99

	v, _ := obj.Get("x")
	assert.Equal(t, 1, v)
}
