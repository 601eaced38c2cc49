package engine

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/tallgy/qiankun/internal/sandbox"
	"github.com/tallgy/qiankun/internal/window"
)

// Engine executes micro-app scripts against sandbox membranes. One goja
// runtime per realm plays the host page; every script runs inside it, but
// with a bridged virtual global shadowing the real one, so all global
// traffic resolves through the owning sandbox's traps.
//
// The runtime, the property tables behind it, and the bridging memo maps
// are not goroutine-safe; mu serializes every turn that touches them.
type Engine struct {
	mu    sync.Mutex
	vm    *goja.Runtime
	realm *sandbox.Realm
	log   *zap.Logger

	bridges   map[sandbox.Membrane]*goja.Object
	objWraps  map[*window.Object]*goja.Object
	funcWraps map[*window.Func]goja.Value
	reverse   map[*goja.Object]any
}

// New creates an engine over an existing realm.
func New(realm *sandbox.Realm, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		vm:        goja.New(),
		realm:     realm,
		log:       log,
		bridges:   make(map[sandbox.Membrane]*goja.Object),
		objWraps:  make(map[*window.Object]*goja.Object),
		funcWraps: make(map[*window.Func]goja.Value),
		reverse:   make(map[*goja.Object]any),
	}
}

// Realm returns the realm this engine executes against.
func (e *Engine) Realm() *sandbox.Realm { return e.realm }

// Runtime exposes the underlying goja runtime.
func (e *Engine) Runtime() *goja.Runtime { return e.vm }

// Do runs fn while holding the runtime lock. Callers that touch
// membranes, model objects, or bridged values outside a script turn go
// through here so they never interleave with an executing script.
func (e *Engine) Do(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn()
}

// Execute runs a micro-app script with the sandbox's virtual global
// standing in for the host global object. Free identifiers resolve
// through the membrane first (a with-scope over the bridged global) and
// fall back to engine built-ins; window, self, globalThis and document
// are shadowed explicitly. The tick queue flushes when the turn ends,
// which is when the running-app slot clears.
func (e *Engine) Execute(sb sandbox.Sandbox, src string) (goja.Value, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.realm.Tasks().Flush()

	global := e.bridge(sb.Global())

	wrapper := "(function(window, self, globalThis, document){\nwith (window) {\n" + src + "\n}\n})"
	v, err := e.vm.RunString(wrapper)
	if err != nil {
		return nil, fmt.Errorf("compile script for %q: %w", sb.Name(), err)
	}
	fn, ok := goja.AssertFunction(v)
	if !ok {
		return nil, errors.New("script wrapper did not evaluate to a function")
	}

	doc, err := sb.Global().Get("document")
	if err != nil {
		return nil, fmt.Errorf("resolve document for %q: %w", sb.Name(), err)
	}

	res, err := fn(goja.Undefined(), global, global, global, e.toJS(doc))
	if err != nil {
		return nil, fmt.Errorf("execute script for %q: %w", sb.Name(), err)
	}
	return res, nil
}
