package sandbox

import (
	"sync"

	"go.uber.org/zap"

	"github.com/tallgy/qiankun/internal/binding"
	"github.com/tallgy/qiankun/internal/registry"
	"github.com/tallgy/qiankun/internal/window"
)

// defaultWhitelist names globals that module-loader runtimes evaluate
// indirectly and therefore cannot be scoped: writes to them escape to the
// host global object by design.
var defaultWhitelist = []string{"System", "__cjsWrapper"}

// Realm is the shared execution context all sandboxes multiplex: the host
// global object, the binding layer, the running-app registry, and the
// cross-sandbox mutable state the isolation strategies coordinate
// through (active-sandbox counter, whitelist descriptor snapshot).
//
// Every sandbox fronts the same real global object, so that state is
// inherent to the problem. It lives here explicitly with a documented
// lifecycle (Reset on full teardown) instead of in hidden singletons.
type Realm struct {
	global       *window.Object
	nativeGlobal *window.Object
	document     *window.Object
	binder       *binding.Binder
	registry     *registry.Registry
	tasks        *registry.TaskQueue
	log          *zap.Logger
	recorder     Recorder
	whitelist    map[string]struct{}
	eagerRestore bool

	mu            sync.Mutex
	active        int
	whitelistPrev map[string]*window.Descriptor
}

// Option configures a Realm.
type Option func(*Realm)

// WithLogger sets the realm logger.
func WithLogger(log *zap.Logger) Option {
	return func(r *Realm) { r.log = log }
}

// WithWhitelist adds names to the global whitelist.
func WithWhitelist(names ...string) Option {
	return func(r *Realm) {
		for _, name := range names {
			r.whitelist[name] = struct{}{}
		}
	}
}

// WithEagerRestore makes every multiplexed deactivation restore the
// whitelist snapshot, not just the last one.
func WithEagerRestore(eager bool) Option {
	return func(r *Realm) { r.eagerRestore = eager }
}

// WithNativeGlobal sets the true native global object used as the binding
// receiver for natives that reject wrapped receivers. Defaults to the
// host global itself.
func WithNativeGlobal(obj *window.Object) Option {
	return func(r *Realm) { r.nativeGlobal = obj }
}

// WithDocument sets the default document reference.
func WithDocument(doc *window.Object) Option {
	return func(r *Realm) { r.document = doc }
}

// WithRegistry supplies an externally built running-app registry and its
// tick queue.
func WithRegistry(reg *registry.Registry, tasks *registry.TaskQueue) Option {
	return func(r *Realm) {
		r.registry = reg
		r.tasks = tasks
	}
}

// WithRecorder attaches an operational metrics recorder.
func WithRecorder(rec Recorder) Option {
	return func(r *Realm) { r.recorder = rec }
}

// NewRealm creates a realm over the given host global object.
func NewRealm(global *window.Object, opts ...Option) *Realm {
	r := &Realm{
		global:        global,
		binder:        binding.New(),
		log:           zap.NewNop(),
		whitelist:     make(map[string]struct{}),
		whitelistPrev: make(map[string]*window.Descriptor),
	}
	for _, name := range defaultWhitelist {
		r.whitelist[name] = struct{}{}
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.tasks == nil {
		r.tasks = registry.NewTaskQueue()
	}
	if r.registry == nil {
		r.registry = registry.New(r.tasks)
	}
	if r.nativeGlobal == nil {
		r.nativeGlobal = global
	}
	if r.document == nil {
		r.document = window.New("document")
	}
	return r
}

// Global returns the host global object.
func (r *Realm) Global() *window.Object { return r.global }

// NativeGlobal returns the binding receiver for always-native properties.
func (r *Realm) NativeGlobal() *window.Object { return r.nativeGlobal }

// Document returns the default document reference.
func (r *Realm) Document() *window.Object { return r.document }

// Registry returns the running-app registry.
func (r *Realm) Registry() *registry.Registry { return r.registry }

// Tasks returns the tick queue the registry clears through.
func (r *Realm) Tasks() *registry.TaskQueue { return r.tasks }

// Binder returns the native value binding layer.
func (r *Realm) Binder() *binding.Binder { return r.binder }

// Whitelisted reports whether writes to name escape to the host global.
func (r *Realm) Whitelisted(name string) bool {
	_, ok := r.whitelist[name]
	return ok
}

// ActiveCount returns the number of currently active multiplexed
// sandboxes.
func (r *Realm) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// NewMultiplexed creates a multiplexed sandbox for the named micro-app.
func (r *Realm) NewMultiplexed(name string) *Multiplexed {
	return newMultiplexed(name, r)
}

// NewSnapshot creates a diffing sandbox for the named micro-app.
func (r *Realm) NewSnapshot(name string) *Snapshot {
	return newSnapshot(name, r)
}

// Reset drops all cross-sandbox shared state: the active counter, the
// whitelist snapshot, and the running-app slot. Call only after every
// sandbox has been torn down.
func (r *Realm) Reset() {
	r.mu.Lock()
	r.active = 0
	r.whitelistPrev = make(map[string]*window.Descriptor)
	r.mu.Unlock()
	r.registry.Reset()
}

func (r *Realm) incActive() {
	r.mu.Lock()
	r.active++
	n := r.active
	r.mu.Unlock()
	if r.recorder != nil {
		r.recorder.SetActiveSandboxes(n)
	}
}

func (r *Realm) decActive() int {
	r.mu.Lock()
	if r.active > 0 {
		r.active--
	}
	n := r.active
	r.mu.Unlock()
	if r.recorder != nil {
		r.recorder.SetActiveSandboxes(n)
	}
	return n
}

// recordWhitelistPrev snapshots the host descriptor for a whitelisted
// name before its first write-through. The snapshot is realm-wide and
// the first writer wins, so restoration does not depend on which sandbox
// happens to deactivate last.
func (r *Realm) recordWhitelistPrev(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, recorded := r.whitelistPrev[key]; recorded {
		return
	}
	if desc, ok := r.global.Descriptor(key); ok {
		r.whitelistPrev[key] = desc
	} else {
		r.whitelistPrev[key] = nil
	}
}

// restoreWhitelist reinstates every recorded whitelisted descriptor on
// the host global, deleting names that did not exist before, then clears
// the snapshot.
func (r *Realm) restoreWhitelist() {
	r.mu.Lock()
	prev := r.whitelistPrev
	r.whitelistPrev = make(map[string]*window.Descriptor)
	r.mu.Unlock()

	for key, desc := range prev {
		if desc == nil {
			r.global.Delete(key)
			continue
		}
		if err := r.global.Define(key, desc); err != nil {
			r.log.Warn("failed to restore whitelisted global",
				zap.String("key", key), zap.Error(err))
		}
	}
	if len(prev) > 0 {
		if r.recorder != nil {
			r.recorder.RecordWhitelistRestore()
		}
		r.log.Debug("restored whitelisted globals", zap.Int("count", len(prev)))
	}
}

func (r *Realm) touch(name string) {
	r.registry.MarkRunning(name)
}

func (r *Realm) record(name, op string) {
	if r.recorder != nil {
		r.recorder.RecordTrap(name, op)
	}
}
