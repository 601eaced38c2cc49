package lifecycle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tallgy/qiankun/internal/engine"
	"github.com/tallgy/qiankun/internal/sandbox"
)

func newController(t *testing.T, opts ...ControllerOption) *Controller {
	t.Helper()
	realm, eng := engine.NewBrowserRealm(engine.DefaultConfig(), zap.NewNop())
	return New(realm, eng, opts...)
}

const hookScript = `
	window.mounts = (window.mounts || 0);
	return {
		bootstrap: function() { window.booted = (window.booted || 0) + 1; },
		mount: function() { window.mounts = window.mounts + 1; },
		unmount: function() { window.unmounts = (window.unmounts || 0) + 1; }
	};
`

func globalInt(t *testing.T, app *App, key string) int64 {
	t.Helper()
	v, err := app.Sandbox().Global().Get(key)
	require.NoError(t, err)
	n, ok := v.(int64)
	if !ok {
		t.Fatalf("global %q is %T, not int64", key, v)
	}
	return n
}

func TestMountRunsLifecycle(t *testing.T) {
	c := newController(t)
	app, err := c.Register("app-a", hookScript, sandbox.KindMultiplexed)
	require.NoError(t, err)
	assert.Equal(t, StatusRegistered, app.Status)
	assert.NotEmpty(t, app.ID)

	require.NoError(t, c.Mount(context.Background(), "app-a"))
	assert.Equal(t, StatusMounted, app.Status)
	assert.Equal(t, int64(1), globalInt(t, app, "booted"))
	assert.Equal(t, int64(1), globalInt(t, app, "mounts"))

	require.NoError(t, c.Unmount("app-a"))
	assert.Equal(t, StatusRegistered, app.Status)
	assert.Equal(t, int64(1), globalInt(t, app, "unmounts"))
	assert.False(t, app.Sandbox().Running())
}

func TestRemountBootstrapsOnce(t *testing.T) {
	c := newController(t)
	app, err := c.Register("app-a", hookScript, sandbox.KindMultiplexed)
	require.NoError(t, err)

	require.NoError(t, c.Mount(context.Background(), "app-a"))
	require.NoError(t, c.Unmount("app-a"))
	require.NoError(t, c.Mount(context.Background(), "app-a"))

	// bootstrap fires once per instance; mount fires per activation. The
	// sandbox state survived the unmount, so the counters accumulated.
	assert.Equal(t, int64(1), globalInt(t, app, "booted"))
	assert.Equal(t, int64(2), globalInt(t, app, "mounts"))
}

func TestHooksFromNamedGlobalExport(t *testing.T) {
	c := newController(t)
	script := `
		window["app-a"] = {
			mount: function() { window.mounted = true; }
		};
	`
	app, err := c.Register("app-a", script, sandbox.KindMultiplexed)
	require.NoError(t, err)

	require.NoError(t, c.Mount(context.Background(), "app-a"))
	v, err := app.Sandbox().Global().Get("mounted")
	require.NoError(t, err)
	assert.Equal(t, true, v)
}

func TestHooksFromLatestAssignment(t *testing.T) {
	c := newController(t)
	// Bundles that pick their own export name are found through the most
	// recent bare global assignment.
	script := `
		window.someBundleExport = {
			mount: function() { window.mounted = true; }
		};
	`
	app, err := c.Register("app-a", script, sandbox.KindMultiplexed)
	require.NoError(t, err)

	require.NoError(t, c.Mount(context.Background(), "app-a"))
	v, err := app.Sandbox().Global().Get("mounted")
	require.NoError(t, err)
	assert.Equal(t, true, v)
}

func TestMountWithoutHooks(t *testing.T) {
	c := newController(t)
	_, err := c.Register("app-a", `window.plain = 1;`, sandbox.KindMultiplexed)
	require.NoError(t, err)

	// An app exporting nothing still mounts.
	require.NoError(t, c.Mount(context.Background(), "app-a"))
}

func TestDiffingRequiresSingular(t *testing.T) {
	c := newController(t)
	_, err := c.Register("app-a", hookScript, sandbox.KindDiffing)
	assert.ErrorIs(t, err, ErrIncompatibleIsolation)

	singular := newController(t, WithSingular(true))
	_, err = singular.Register("app-a", hookScript, sandbox.KindDiffing)
	assert.NoError(t, err)
}

func TestSingularMountWaitsForUnmount(t *testing.T) {
	c := newController(t, WithSingular(true))
	_, err := c.Register("app-a", hookScript, sandbox.KindMultiplexed)
	require.NoError(t, err)
	_, err = c.Register("app-b", hookScript, sandbox.KindMultiplexed)
	require.NoError(t, err)

	require.NoError(t, c.Mount(context.Background(), "app-a"))

	// While app-a holds the slot, a bounded mount of app-b times out.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = c.Mount(ctx, "app-b")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// A waiting mount completes once the previous app unmounts.
	done := make(chan error, 1)
	go func() {
		done <- c.Mount(context.Background(), "app-b")
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, c.Unmount("app-a"))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("waiting mount never completed")
	}
}

func TestDoubleMountRejected(t *testing.T) {
	c := newController(t)
	_, err := c.Register("app-a", hookScript, sandbox.KindMultiplexed)
	require.NoError(t, err)

	require.NoError(t, c.Mount(context.Background(), "app-a"))
	err = c.Mount(context.Background(), "app-a")
	assert.ErrorIs(t, err, ErrAlreadyMounted)
}

func TestConcurrentMountSameApp(t *testing.T) {
	c := newController(t)
	_, err := c.Register("app-a", hookScript, sandbox.KindMultiplexed)
	require.NoError(t, err)

	// Both mounts pass registration checks; exactly one may claim the
	// app, the other fails before executing the script a second time.
	results := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- c.Mount(context.Background(), "app-a")
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, rejected int
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrAlreadyMounted)
			rejected++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)

	app, ok := c.Get("app-a")
	require.True(t, ok)
	assert.Equal(t, int64(1), globalInt(t, app, "mounts"))
}

func TestPeek(t *testing.T) {
	c := newController(t)
	app, err := c.Register("app-a", `window.state = "ready";`, sandbox.KindMultiplexed)
	require.NoError(t, err)
	require.NoError(t, c.Mount(context.Background(), "app-a"))

	v, present, err := c.Peek(app, "state")
	require.NoError(t, err)
	assert.True(t, present)
	assert.Equal(t, "ready", v)

	_, present, err = c.Peek(app, "missing")
	require.NoError(t, err)
	assert.False(t, present)
}

func TestUnknownAppOperations(t *testing.T) {
	c := newController(t)

	assert.ErrorIs(t, c.Mount(context.Background(), "ghost"), ErrNotRegistered)
	assert.ErrorIs(t, c.Unmount("ghost"), ErrNotRegistered)
	assert.ErrorIs(t, c.Unload("ghost"), ErrNotRegistered)
}

func TestDuplicateRegistration(t *testing.T) {
	c := newController(t)
	_, err := c.Register("app-a", hookScript, sandbox.KindMultiplexed)
	require.NoError(t, err)
	_, err = c.Register("app-a", hookScript, sandbox.KindMultiplexed)
	assert.Error(t, err)
}

func TestUnloadMountedApp(t *testing.T) {
	c := newController(t)
	app, err := c.Register("app-a", hookScript, sandbox.KindMultiplexed)
	require.NoError(t, err)
	require.NoError(t, c.Mount(context.Background(), "app-a"))

	require.NoError(t, c.Unload("app-a"))
	_, ok := c.Get("app-a")
	assert.False(t, ok)
	assert.False(t, app.Sandbox().Running())
}

func TestMountScriptErrorReleasesSlot(t *testing.T) {
	c := newController(t, WithSingular(true))
	_, err := c.Register("broken", `throw new Error("boom");`, sandbox.KindMultiplexed)
	require.NoError(t, err)
	_, err = c.Register("app-b", hookScript, sandbox.KindMultiplexed)
	require.NoError(t, err)

	require.Error(t, c.Mount(context.Background(), "broken"))

	// The failed mount must not leave the exclusive slot held.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.Mount(ctx, "app-b"))
}

func TestExecuteInMountedSandbox(t *testing.T) {
	c := newController(t)
	app, err := c.Register("app-a", `window.state = "ready";`, sandbox.KindMultiplexed)
	require.NoError(t, err)
	require.NoError(t, c.Mount(context.Background(), "app-a"))

	res, err := c.Execute(app, `return window.state;`)
	require.NoError(t, err)
	assert.Equal(t, "ready", res)
}
