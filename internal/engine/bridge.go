package engine

import (
	"github.com/dop251/goja"

	"github.com/tallgy/qiankun/internal/sandbox"
	"github.com/tallgy/qiankun/internal/window"
)

// membraneObject adapts a sandbox membrane to goja's dynamic object
// protocol, so property traffic from scripts lands on the traps.
type membraneObject struct {
	eng *Engine
	m   sandbox.Membrane
}

func (d *membraneObject) Get(key string) goja.Value {
	v, err := d.m.Get(key)
	if err != nil {
		panic(d.eng.vm.NewTypeError(err.Error()))
	}
	return d.eng.toJS(v)
}

func (d *membraneObject) Set(key string, val goja.Value) bool {
	return d.m.Set(key, d.eng.fromJS(val)) == nil
}

func (d *membraneObject) Has(key string) bool    { return d.m.Has(key) }
func (d *membraneObject) Delete(key string) bool { return d.m.Delete(key) }
func (d *membraneObject) Keys() []string         { return d.m.Keys() }

// modelObject adapts a plain window.Object (document, elements,
// responses) to goja.
type modelObject struct {
	eng *Engine
	obj *window.Object
}

func (d *modelObject) Get(key string) goja.Value {
	v, ok := d.obj.Get(key)
	if !ok {
		return goja.Undefined()
	}
	return d.eng.toJS(v)
}

func (d *modelObject) Set(key string, val goja.Value) bool {
	return d.obj.Set(key, d.eng.fromJS(val)) == nil
}

func (d *modelObject) Has(key string) bool    { return d.obj.Has(key) }
func (d *modelObject) Delete(key string) bool { return d.obj.Delete(key) }
func (d *modelObject) Keys() []string         { return d.obj.OwnKeys() }

// bridge returns the memoized goja object fronting a membrane. Memoizing
// matters: scripts compare window references by identity.
func (e *Engine) bridge(m sandbox.Membrane) *goja.Object {
	if obj, ok := e.bridges[m]; ok {
		return obj
	}
	obj := e.vm.NewDynamicObject(&membraneObject{eng: e, m: m})
	e.bridges[m] = obj
	e.reverse[obj] = m
	return obj
}

func (e *Engine) bridgeObject(o *window.Object) *goja.Object {
	if obj, ok := e.objWraps[o]; ok {
		return obj
	}
	obj := e.vm.NewDynamicObject(&modelObject{eng: e, obj: o})
	e.objWraps[o] = obj
	e.reverse[obj] = o
	return obj
}

func (e *Engine) bridgeFunc(f *window.Func) goja.Value {
	if v, ok := e.funcWraps[f]; ok {
		return v
	}
	call := func(fc goja.FunctionCall) goja.Value {
		args := make([]any, len(fc.Arguments))
		for i, a := range fc.Arguments {
			args[i] = e.fromJS(a)
		}
		res, err := f.Call(e.fromJS(fc.This), args...)
		if err != nil {
			panic(e.vm.NewTypeError(err.Error()))
		}
		return e.toJS(res)
	}
	v := e.vm.ToValue(call)
	e.funcWraps[f] = v
	return v
}

// toJS converts a model-level value for script consumption. Membranes and
// model objects wrap lazily and memoize so identity equality survives
// repeated reads; values that already came from the VM pass through
// untouched.
func (e *Engine) toJS(v any) goja.Value {
	switch t := v.(type) {
	case nil:
		return goja.Undefined()
	case goja.Value:
		return t
	case sandbox.Membrane:
		return e.bridge(t)
	case *window.Object:
		return e.bridgeObject(t)
	case *window.Func:
		return e.bridgeFunc(t)
	default:
		return e.vm.ToValue(v)
	}
}

// fromJS converts a script value for model-level storage. Bridged
// wrappers unwrap back to their model counterpart; primitives export to
// plain Go values; everything else stays a goja value and round-trips
// through toJS unchanged.
func (e *Engine) fromJS(val goja.Value) any {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil
	}
	if obj, ok := val.(*goja.Object); ok {
		if model, ok := e.reverse[obj]; ok {
			return model
		}
		return val
	}
	switch exported := val.Export().(type) {
	case string, bool, int64, float64:
		return exported
	default:
		return val
	}
}
