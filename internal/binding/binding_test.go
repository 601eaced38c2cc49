package binding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallgy/qiankun/internal/window"
)

func TestRebindCachesWrapper(t *testing.T) {
	host := window.New("window")
	fn := window.NewNative("fetch", host, func(this any, args ...any) (any, error) {
		return this, nil
	})

	b := New()
	first := b.Rebind(fn, host)
	second := b.Rebind(fn, host)

	// Repeated reads must observe the identical wrapper.
	assert.Same(t, first, second)
	assert.Equal(t, 1, b.Size())

	bound, ok := first.(*window.Func)
	require.True(t, ok)
	assert.True(t, bound.IsBound())

	// The wrapper never rejects a foreign receiver.
	res, err := bound.Call(window.New("proxy"))
	require.NoError(t, err)
	assert.Same(t, host, res)
}

func TestRebindPassThrough(t *testing.T) {
	b := New()
	host := window.New("window")

	userFn := window.NewFunc("appCode", func(any, ...any) (any, error) { return nil, nil })
	ctor := window.NewConstructor("Widget", func(any, ...any) (any, error) { return nil, nil })
	capitalized := window.NewNative("XMLHttpRequest", host, func(any, ...any) (any, error) { return nil, nil })
	already := window.NewNative("fetch", host, func(any, ...any) (any, error) { return nil, nil }).Bind(host)

	tests := []struct {
		name  string
		value any
	}{
		{"non-callable", "plain"},
		{"nil", nil},
		{"user-defined function", userFn},
		{"constructor", ctor},
		{"capitalized native", capitalized},
		{"already bound", already},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := b.Rebind(tt.value, host)
			assert.Equal(t, tt.value, out)
		})
	}
	assert.Equal(t, 0, b.Size())
}

func TestRebindCopiesSurface(t *testing.T) {
	host := window.New("window")
	fn := window.NewNative("fetch", host, func(any, ...any) (any, error) { return nil, nil })
	fn.Props().Set("version", "1")
	fn.Props().Define("internal", &window.Descriptor{Value: "hidden", Configurable: true})
	proto := window.New("fetchProto")
	fn.SetPrototype(proto)

	b := New()
	bound := b.Rebind(fn, host).(*window.Func)

	// Enumerable own properties come along.
	v, ok := bound.Props().Get("version")
	assert.True(t, ok)
	assert.Equal(t, "1", v)

	// Non-enumerable ones do not.
	assert.False(t, bound.Props().HasOwn("internal"))

	// prototype and source survive for instanceof and feature detection.
	p, ok := bound.Prototype()
	require.True(t, ok)
	assert.Same(t, proto, p)
	assert.Equal(t, fn.String(), bound.String())
}

func TestRebindable(t *testing.T) {
	host := window.New("window")

	assert.True(t, Rebindable(window.NewNative("fetch", host, nil)))
	assert.False(t, Rebindable(window.NewFunc("user", nil)))
	assert.False(t, Rebindable(window.NewConstructor("Widget", nil)))
	assert.False(t, Rebindable(window.NewNative("EventSource", host, nil)))
	// Capitalization is decided on the first rune, not the first byte.
	assert.False(t, Rebindable(window.NewNative("Überfetch", host, nil)))
	assert.True(t, Rebindable(window.NewNative("überfetch", host, nil)))
	assert.False(t, Rebindable(window.NewNative("fetch", host, func(any, ...any) (any, error) { return nil, nil }).Bind(host)))
}
