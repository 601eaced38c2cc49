package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallgy/qiankun/internal/window"
)

// newHostGlobal mirrors the seeded host page shape: non-configurable
// self-references plus a few ordinary globals.
func newHostGlobal(t *testing.T) *window.Object {
	t.Helper()
	g := window.New("window")
	for _, key := range []string{"window", "self", "globalThis", "top", "parent"} {
		require.NoError(t, g.Define(key, &window.Descriptor{Value: g}))
	}
	require.NoError(t, g.Set("shared", "host"))
	require.NoError(t, g.Set("version", int64(1)))
	return g
}

func TestMultiplexedIsolation(t *testing.T) {
	realm := NewRealm(newHostGlobal(t))
	a := realm.NewMultiplexed("app-a")
	b := realm.NewMultiplexed("app-b")
	a.Activate()
	b.Activate()

	require.NoError(t, a.Set("color", "red"))
	require.NoError(t, b.Set("color", "blue"))

	va, err := a.Get("color")
	require.NoError(t, err)
	vb, err := b.Get("color")
	require.NoError(t, err)
	assert.Equal(t, "red", va)
	assert.Equal(t, "blue", vb)

	// The host never saw either write.
	assert.False(t, realm.Global().HasOwn("color"))
}

func TestMultiplexedShadowsHost(t *testing.T) {
	realm := NewRealm(newHostGlobal(t))
	sb := realm.NewMultiplexed("app-a")
	sb.Activate()

	// Untouched keys fall through to the host.
	v, err := sb.Get("shared")
	require.NoError(t, err)
	assert.Equal(t, "host", v)

	// A write shadows without mutating the host.
	require.NoError(t, sb.Set("shared", "mine"))
	v, err = sb.Get("shared")
	require.NoError(t, err)
	assert.Equal(t, "mine", v)

	hv, _ := realm.Global().Get("shared")
	assert.Equal(t, "host", hv)
}

func TestMultiplexedSelfReferences(t *testing.T) {
	realm := NewRealm(newHostGlobal(t))
	sb := realm.NewMultiplexed("app-a")
	sb.Activate()

	for _, key := range []string{"window", "self", "globalThis", "top", "parent"} {
		v, err := sb.Get(key)
		require.NoError(t, err)
		assert.Same(t, sb, v, key)
	}
}

func TestMultiplexedInactiveWriteIsNoOp(t *testing.T) {
	realm := NewRealm(newHostGlobal(t))
	sb := realm.NewMultiplexed("app-a")

	require.NoError(t, sb.Set("late", "value"))

	v, err := sb.Get("late")
	require.NoError(t, err)
	assert.Nil(t, v)
	assert.False(t, realm.Global().HasOwn("late"))
}

func TestMultiplexedDelete(t *testing.T) {
	realm := NewRealm(newHostGlobal(t))
	sb := realm.NewMultiplexed("app-a")
	sb.Activate()

	require.NoError(t, sb.Set("mine", 1))
	assert.True(t, sb.Delete("mine"))
	v, err := sb.Get("mine")
	require.NoError(t, err)
	assert.Nil(t, v)

	// Host keys are untouchable through the membrane, yet the delete
	// still reports success.
	assert.True(t, sb.Delete("shared"))
	assert.True(t, realm.Global().HasOwn("shared"))

	assert.True(t, sb.Delete("never-existed"))
}

func TestMultiplexedHas(t *testing.T) {
	realm := NewRealm(newHostGlobal(t))
	sb := realm.NewMultiplexed("app-a")
	sb.Activate()

	assert.True(t, sb.Has("shared"))
	assert.False(t, sb.Has("missing"))

	require.NoError(t, sb.Set("mine", 1))
	assert.True(t, sb.Has("mine"))

	// Escape probes always see the boundary keys.
	for _, key := range []string{"document", "System", "__cjsWrapper"} {
		assert.True(t, sb.Has(key), key)
	}
}

func TestMultiplexedKeysUnion(t *testing.T) {
	realm := NewRealm(newHostGlobal(t))
	sb := realm.NewMultiplexed("app-a")
	sb.Activate()

	require.NoError(t, sb.Set("mine", 1))
	require.NoError(t, sb.Set("shared", "shadow"))

	keys := sb.Keys()
	seen := make(map[string]int)
	for _, key := range keys {
		seen[key]++
	}
	assert.Equal(t, 1, seen["shared"])
	assert.Equal(t, 1, seen["mine"])
	assert.Equal(t, 1, seen["version"])
}

func TestMultiplexedLatestSetProp(t *testing.T) {
	realm := NewRealm(newHostGlobal(t))
	sb := realm.NewMultiplexed("app-a")
	sb.Activate()

	_, ok := sb.LatestSetProp()
	assert.False(t, ok)

	require.NoError(t, sb.Set("first", 1))
	require.NoError(t, sb.Set("second", 2))

	key, ok := sb.LatestSetProp()
	assert.True(t, ok)
	assert.Equal(t, "second", key)
}

func TestMultiplexedWhitelistEscapes(t *testing.T) {
	realm := NewRealm(newHostGlobal(t))
	a := realm.NewMultiplexed("app-a")
	b := realm.NewMultiplexed("app-b")
	a.Activate()
	b.Activate()

	require.NoError(t, a.Set("System", "loader"))

	// The write escaped to the host, so the sibling sees it too.
	hv, _ := realm.Global().Get("System")
	assert.Equal(t, "loader", hv)
	bv, err := b.Get("System")
	require.NoError(t, err)
	assert.Equal(t, "loader", bv)

	// First deactivation leaves the shared value in place.
	a.Deactivate()
	assert.True(t, realm.Global().HasOwn("System"))

	// The last one out restores the host: System did not exist before,
	// so it disappears.
	b.Deactivate()
	assert.False(t, realm.Global().HasOwn("System"))
}

func TestWhitelistRestoreOutOfOrder(t *testing.T) {
	host := newHostGlobal(t)
	require.NoError(t, host.Set("System", "original"))

	realm := NewRealm(host)
	a := realm.NewMultiplexed("app-a")
	b := realm.NewMultiplexed("app-b")
	a.Activate()
	b.Activate()

	require.NoError(t, a.Set("System", "from-a"))
	require.NoError(t, b.Set("System", "from-b"))

	// The writer deactivates first; restoration still happens when the
	// counter reaches zero, regardless of who wrote.
	a.Deactivate()
	hv, _ := host.Get("System")
	assert.Equal(t, "from-b", hv)

	b.Deactivate()
	hv, _ = host.Get("System")
	assert.Equal(t, "original", hv)
}

func TestEagerRestore(t *testing.T) {
	realm := NewRealm(newHostGlobal(t), WithEagerRestore(true))
	a := realm.NewMultiplexed("app-a")
	b := realm.NewMultiplexed("app-b")
	a.Activate()
	b.Activate()

	require.NoError(t, a.Set("System", "loader"))

	a.Deactivate()
	assert.False(t, realm.Global().HasOwn("System"))
}

func TestMultiplexedNativeBinding(t *testing.T) {
	host := newHostGlobal(t)
	var receiver any
	fetch := window.NewNative("fetch", host, func(this any, args ...any) (any, error) {
		receiver = this
		return "response", nil
	})
	require.NoError(t, host.Set("fetch", fetch))

	realm := NewRealm(host)
	sb := realm.NewMultiplexed("app-a")
	sb.Activate()

	// Direct invocation on a foreign receiver fails.
	_, err := fetch.Call(sb)
	assert.ErrorIs(t, err, window.ErrIllegalInvocation)

	// Through the membrane the value arrives pre-bound.
	v1, err := sb.Get("fetch")
	require.NoError(t, err)
	bound, ok := v1.(*window.Func)
	require.True(t, ok)
	assert.True(t, bound.IsBound())

	res, err := bound.Call(sb)
	require.NoError(t, err)
	assert.Equal(t, "response", res)
	assert.Same(t, host, receiver)

	// Identity is stable across reads.
	v2, err := sb.Get("fetch")
	require.NoError(t, err)
	assert.Same(t, v1, v2)
}

func TestMultiplexedDescribeDefineRouting(t *testing.T) {
	realm := NewRealm(newHostGlobal(t))
	sb := realm.NewMultiplexed("app-a")
	sb.Activate()

	// Describing a host-owned key routes a later define to the host.
	desc, ok := sb.Describe("shared")
	require.True(t, ok)
	assert.Equal(t, "host", desc.Value)

	require.NoError(t, sb.Define("shared", &window.Descriptor{
		Value: "redefined", Writable: true, Enumerable: true, Configurable: true,
	}))
	hv, _ := realm.Global().Get("shared")
	assert.Equal(t, "redefined", hv)

	// A fresh key defines onto the virtual object.
	require.NoError(t, sb.Define("private", &window.Descriptor{
		Value: "mine", Writable: true, Enumerable: true, Configurable: true,
	}))
	assert.False(t, realm.Global().HasOwn("private"))
	v, err := sb.Get("private")
	require.NoError(t, err)
	assert.Equal(t, "mine", v)
}

func TestMultiplexedSeedFidelity(t *testing.T) {
	host := newHostGlobal(t)
	require.NoError(t, host.Define("locked", &window.Descriptor{Value: "fixed"}))

	realm := NewRealm(host)
	sb := realm.NewMultiplexed("app-a")
	sb.Activate()

	// Ordinary non-configurable host descriptors keep their shape on the
	// fresh virtual global.
	desc, ok := sb.Describe("locked")
	require.True(t, ok)
	assert.False(t, desc.Configurable)
	assert.False(t, desc.Writable)
	assert.Equal(t, "fixed", desc.Value)

	// Identity-sensitive keys are normalized so the membrane can keep
	// intercepting them.
	desc, ok = sb.Describe("window")
	require.True(t, ok)
	assert.True(t, desc.Configurable)
}

func TestMultiplexedHostAccessorShadowsSeed(t *testing.T) {
	host := newHostGlobal(t)
	live := "v1"
	require.NoError(t, host.Define("dynamic", &window.Descriptor{
		Getter: window.NewFunc("get dynamic", func(any, ...any) (any, error) {
			return live, nil
		}),
	}))

	realm := NewRealm(host)
	sb := realm.NewMultiplexed("app-a")
	sb.Activate()

	// The live host getter stays authoritative over the seeded copy.
	live = "v2"
	v, err := sb.Get("dynamic")
	require.NoError(t, err)
	assert.Equal(t, "v2", v)
}

func TestMultiplexedPatchDocument(t *testing.T) {
	realm := NewRealm(newHostGlobal(t))
	sb := realm.NewMultiplexed("app-a")
	sb.Activate()

	v, err := sb.Get("document")
	require.NoError(t, err)
	assert.Same(t, realm.Document(), v)

	patched := window.New("patched-document")
	sb.PatchDocument(patched)
	v, err = sb.Get("document")
	require.NoError(t, err)
	assert.Same(t, patched, v)

	// Resetting with nil falls back to the realm document.
	sb.PatchDocument(nil)
	v, err = sb.Get("document")
	require.NoError(t, err)
	assert.Same(t, realm.Document(), v)
}

func TestMultiplexedStatePersistsAcrossRemount(t *testing.T) {
	realm := NewRealm(newHostGlobal(t))
	sb := realm.NewMultiplexed("app-a")

	sb.Activate()
	require.NoError(t, sb.Set("counter", int64(1)))
	sb.Deactivate()

	sb.Activate()
	v, err := sb.Get("counter")
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
}

func TestActiveCounter(t *testing.T) {
	realm := NewRealm(newHostGlobal(t))
	a := realm.NewMultiplexed("app-a")
	b := realm.NewMultiplexed("app-b")

	a.Activate()
	a.Activate() // idempotent
	assert.Equal(t, 1, realm.ActiveCount())

	b.Activate()
	assert.Equal(t, 2, realm.ActiveCount())

	a.Deactivate()
	a.Deactivate() // idempotent
	assert.Equal(t, 1, realm.ActiveCount())

	b.Deactivate()
	assert.Equal(t, 0, realm.ActiveCount())
}
