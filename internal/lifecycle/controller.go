// Package lifecycle drives micro-app sandboxes through their mount
// cycle: one sandbox per loaded app instance, activated before the app's
// code runs and deactivated after it unmounts, with lifecycle hooks
// recovered from whatever export channel the app used.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dop251/goja"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tallgy/qiankun/internal/engine"
	"github.com/tallgy/qiankun/internal/sandbox"
)

var (
	// ErrIncompatibleIsolation marks a setup that requests isolation
	// features that cannot work together; surfaced at registration, not
	// degraded silently.
	ErrIncompatibleIsolation = errors.New("incompatible isolation setup")

	// ErrNotRegistered marks operations against an unknown app.
	ErrNotRegistered = errors.New("micro-app not registered")

	// ErrAlreadyMounted marks a mount of an app that is already mounted.
	ErrAlreadyMounted = errors.New("micro-app already mounted")
)

// Status is a micro-app's lifecycle state.
type Status string

const (
	StatusRegistered Status = "registered"
	StatusMounted    Status = "mounted"
)

// hook is a recovered lifecycle callback.
type hook func() error

// App is one loaded micro-app instance. The sandbox is created at
// registration and reused across remounts; it is discarded only on
// unload.
type App struct {
	ID     string
	Name   string
	Script string
	Kind   sandbox.Kind
	Status Status

	sb           sandbox.Sandbox
	bootstrapped bool
	bootstrap    hook
	mount        hook
	unmount      hook
}

// Sandbox returns the app's isolation instance.
func (a *App) Sandbox() sandbox.Sandbox { return a.sb }

// Controller owns micro-app registration and the mount/unmount
// sequencing around sandbox activation.
type Controller struct {
	realm    *sandbox.Realm
	engine   *engine.Engine
	log      *zap.Logger
	singular bool

	mu      sync.Mutex
	apps    map[string]*App
	mounted map[string]struct{}
	// turnstile is closed and replaced whenever a mounted app unmounts,
	// waking singular-mode mounts waiting for exclusivity.
	turnstile chan struct{}
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithSingular restricts the controller to one mounted app at a time;
// further mounts wait for the previous app's unmount to complete.
func WithSingular(singular bool) ControllerOption {
	return func(c *Controller) { c.singular = singular }
}

// WithLogger sets the controller logger.
func WithLogger(log *zap.Logger) ControllerOption {
	return func(c *Controller) { c.log = log }
}

// New creates a controller over a realm and its engine.
func New(realm *sandbox.Realm, eng *engine.Engine, opts ...ControllerOption) *Controller {
	c := &Controller{
		realm:     realm,
		engine:    eng,
		log:       zap.NewNop(),
		apps:      make(map[string]*App),
		mounted:   make(map[string]struct{}),
		turnstile: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register loads a micro-app: allocates its instance identity and builds
// its sandbox. The diffing kind mutates the shared host global in place,
// so it is only constructible under singular orchestration; any other
// combination fails fast here.
func (c *Controller) Register(name, script string, kind sandbox.Kind) (*App, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.apps[name]; exists {
		return nil, fmt.Errorf("register %q: already registered", name)
	}

	var sb sandbox.Sandbox
	switch kind {
	case sandbox.KindMultiplexed:
		sb = c.realm.NewMultiplexed(name)
	case sandbox.KindDiffing:
		if !c.singular {
			return nil, fmt.Errorf("register %q: %w: diffing isolation requires singular mode", name, ErrIncompatibleIsolation)
		}
		sb = c.realm.NewSnapshot(name)
	default:
		return nil, fmt.Errorf("register %q: unknown isolation kind %q", name, kind)
	}

	app := &App{
		ID:     uuid.New().String(),
		Name:   name,
		Script: script,
		Kind:   kind,
		Status: StatusRegistered,
		sb:     sb,
	}
	c.apps[name] = app
	c.log.Info("micro-app registered",
		zap.String("app", name), zap.String("id", app.ID), zap.String("kind", string(kind)))
	return app, nil
}

// Get returns a registered app.
func (c *Controller) Get(name string) (*App, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	app, ok := c.apps[name]
	return app, ok
}

// List returns all registered apps.
func (c *Controller) List() []*App {
	c.mu.Lock()
	defer c.mu.Unlock()
	apps := make([]*App, 0, len(c.apps))
	for _, app := range c.apps {
		apps = append(apps, app)
	}
	return apps
}

// Mount activates the app's sandbox, executes its script against the
// virtual global, recovers its lifecycle hooks, and invokes bootstrap
// (once per instance) and mount. In singular mode it waits until no
// other app is mounted, bounded by ctx.
func (c *Controller) Mount(ctx context.Context, name string) error {
	app, err := c.claim(ctx, name)
	if err != nil {
		return err
	}

	app.sb.Activate()
	res, err := c.engine.Execute(app.sb, app.Script)
	if err != nil {
		app.sb.Deactivate()
		c.release(app)
		return fmt.Errorf("mount %q: %w", name, err)
	}

	c.engine.Do(func() { c.recoverHooks(app, res) })

	if !app.bootstrapped && app.bootstrap != nil {
		if err := app.bootstrap(); err != nil {
			app.sb.Deactivate()
			c.release(app)
			return fmt.Errorf("bootstrap %q: %w", name, err)
		}
	}
	app.bootstrapped = true

	if app.mount != nil {
		if err := app.mount(); err != nil {
			app.sb.Deactivate()
			c.release(app)
			return fmt.Errorf("mount hook %q: %w", name, err)
		}
	}

	c.mu.Lock()
	app.Status = StatusMounted
	c.mu.Unlock()
	c.log.Info("micro-app mounted", zap.String("app", name))
	return nil
}

// claim reserves the right to mount: registration check, double-mount
// check, and the singular-mode waiting handshake.
func (c *Controller) claim(ctx context.Context, name string) (*App, error) {
	for {
		c.mu.Lock()
		app, ok := c.apps[name]
		if !ok {
			c.mu.Unlock()
			return nil, fmt.Errorf("mount %q: %w", name, ErrNotRegistered)
		}
		// The mounted set covers mounts still in flight, whose status has
		// not flipped yet.
		if _, held := c.mounted[name]; held || app.Status == StatusMounted {
			c.mu.Unlock()
			return nil, fmt.Errorf("mount %q: %w", name, ErrAlreadyMounted)
		}
		if !c.singular || len(c.mounted) == 0 {
			c.mounted[name] = struct{}{}
			c.mu.Unlock()
			return app, nil
		}
		wait := c.turnstile
		c.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return nil, fmt.Errorf("mount %q: waiting for exclusive slot: %w", name, ctx.Err())
		}
	}
}

func (c *Controller) release(app *App) {
	c.mu.Lock()
	delete(c.mounted, app.Name)
	close(c.turnstile)
	c.turnstile = make(chan struct{})
	c.mu.Unlock()
}

// Unmount invokes the app's unmount hook and deactivates its sandbox.
// The sandbox (and its accumulated state) survives for remounts.
func (c *Controller) Unmount(name string) error {
	c.mu.Lock()
	app, ok := c.apps[name]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("unmount %q: %w", name, ErrNotRegistered)
	}
	if app.Status != StatusMounted {
		c.mu.Unlock()
		return fmt.Errorf("unmount %q: not mounted", name)
	}
	c.mu.Unlock()

	if app.unmount != nil {
		if err := app.unmount(); err != nil {
			c.log.Warn("unmount hook failed", zap.String("app", name), zap.Error(err))
		}
	}
	app.sb.Deactivate()

	c.mu.Lock()
	app.Status = StatusRegistered
	c.mu.Unlock()
	c.release(app)
	c.log.Info("micro-app unmounted", zap.String("app", name))
	return nil
}

// Unload tears the app down entirely, unmounting first if needed. The
// sandbox is discarded with it.
func (c *Controller) Unload(name string) error {
	c.mu.Lock()
	app, ok := c.apps[name]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("unload %q: %w", name, ErrNotRegistered)
	}
	if app.Status == StatusMounted {
		if err := c.Unmount(name); err != nil {
			return fmt.Errorf("unload %q: %w", name, err)
		}
	}
	c.mu.Lock()
	delete(c.apps, name)
	c.mu.Unlock()
	c.log.Info("micro-app unloaded", zap.String("app", name))
	return nil
}

// Execute runs an ad-hoc script inside the app's sandbox, observing the
// same membrane its mount script saw. The exported completion value is
// flattened for transport.
func (c *Controller) Execute(app *App, src string) (any, error) {
	res, err := c.engine.Execute(app.sb, src)
	if err != nil {
		return nil, err
	}
	if res == nil || goja.IsUndefined(res) || goja.IsNull(res) {
		return nil, nil
	}
	var out any
	c.engine.Do(func() { out = res.Export() })
	return out, nil
}

// Peek reads a key through the app's membrane under the runtime lock,
// so administrative reads never interleave with an executing script.
func (c *Controller) Peek(app *App, key string) (value any, present bool, err error) {
	c.engine.Do(func() {
		value, err = app.sb.Global().Get(key)
		present = app.sb.Global().Has(key)
	})
	return value, present, err
}

// recoverHooks locates the app's lifecycle exports. Channels, most
// specific first: the script's completion value, a module-style global
// export named after the app, and finally the key of the most recent
// bare-global assignment. Loaders hit that last path when a bundle
// assigns its exports to an arbitrary global instead of returning them.
func (c *Controller) recoverHooks(app *App, res goja.Value) {
	if c.adoptHooks(app, res) {
		return
	}
	if v, err := app.sb.Global().Get(app.Name); err == nil && c.adoptHooks(app, v) {
		return
	}
	if key, ok := app.sb.LatestSetProp(); ok {
		if v, err := app.sb.Global().Get(key); err == nil && c.adoptHooks(app, v) {
			c.log.Debug("lifecycle exports recovered from latest global assignment",
				zap.String("app", app.Name), zap.String("key", key))
			return
		}
	}
	c.log.Debug("no lifecycle exports found", zap.String("app", app.Name))
}

// adoptHooks extracts bootstrap/mount/unmount callables from a candidate
// export value. Only a candidate providing at least a mount hook counts.
func (c *Controller) adoptHooks(app *App, candidate any) bool {
	obj := c.asObject(candidate)
	if obj == nil {
		return false
	}
	mount := c.asHook(obj.Get("mount"))
	if mount == nil {
		return false
	}
	app.mount = mount
	app.bootstrap = c.asHook(obj.Get("bootstrap"))
	app.unmount = c.asHook(obj.Get("unmount"))
	return true
}

func (c *Controller) asObject(v any) *goja.Object {
	gv, ok := v.(goja.Value)
	if !ok || gv == nil || goja.IsUndefined(gv) || goja.IsNull(gv) {
		return nil
	}
	obj, ok := gv.(*goja.Object)
	if !ok {
		return nil
	}
	return obj
}

func (c *Controller) asHook(v goja.Value) hook {
	if v == nil {
		return nil
	}
	fn, ok := goja.AssertFunction(v)
	if !ok {
		return nil
	}
	return func() error {
		var err error
		c.engine.Do(func() {
			defer c.realm.Tasks().Flush()
			_, err = fn(goja.Undefined())
		})
		return err
	}
}
