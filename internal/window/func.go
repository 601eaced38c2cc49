package window

import (
	"fmt"
)

// CallFunc is the Go implementation behind a Func. The receiver the
// callable was invoked on arrives as this.
type CallFunc func(this any, args ...any) (any, error)

// Func is a callable value with identity. Native functions may declare an
// owner: a receiver they must be invoked on, mirroring platform functions
// that reject foreign receivers. Bound functions ignore their call-time
// receiver entirely.
type Func struct {
	name   string
	src    string
	native bool
	bound  bool
	ctor   bool
	owner  any
	call   CallFunc
	props  *Object
}

// NewFunc creates a plain (user-defined) function.
func NewFunc(name string, call CallFunc) *Func {
	return &Func{name: name, call: call}
}

// NewNative creates a native function. A non-nil owner makes the function
// receiver-sensitive: Call fails with ErrIllegalInvocation unless invoked
// on exactly that owner.
func NewNative(name string, owner any, call CallFunc) *Func {
	return &Func{name: name, native: true, owner: owner, call: call}
}

// NewConstructor creates a constructor function. Constructors are never
// rebound.
func NewConstructor(name string, call CallFunc) *Func {
	return &Func{name: name, native: true, ctor: true, call: call}
}

// Name returns the function name.
func (f *Func) Name() string { return f.name }

// IsNative reports whether the function is platform-provided.
func (f *Func) IsNative() bool { return f.native }

// IsBound reports whether the function was produced by Bind.
func (f *Func) IsBound() bool { return f.bound }

// IsConstructor reports whether the function is a constructor.
func (f *Func) IsConstructor() bool { return f.ctor }

// Owner returns the required receiver, or nil when any receiver is
// accepted.
func (f *Func) Owner() any { return f.owner }

// String returns the function source text. Natives render the usual
// opaque form unless an explicit source was set.
func (f *Func) String() string {
	if f.src != "" {
		return f.src
	}
	if f.native {
		return fmt.Sprintf("function %s() { [native code] }", f.name)
	}
	return fmt.Sprintf("function %s() { }", f.name)
}

// SetSource overrides the String output.
func (f *Func) SetSource(src string) { f.src = src }

// Props returns the function's own property table, creating it on first
// use.
func (f *Func) Props() *Object {
	if f.props == nil {
		f.props = New("function " + f.name)
	}
	return f.props
}

// Prototype returns the function's prototype property, if present. It is
// stored among the own properties but, like the real thing, is not
// enumerable.
func (f *Func) Prototype() (any, bool) {
	if f.props == nil {
		return nil, false
	}
	return f.props.Get("prototype")
}

// SetPrototype installs a non-enumerable prototype property.
func (f *Func) SetPrototype(proto any) {
	f.Props().Define("prototype", &Descriptor{
		Value:    proto,
		Writable: true,
	})
}

// Call invokes the function. Receiver-sensitive natives reject any
// receiver other than their owner unless the function is bound.
func (f *Func) Call(this any, args ...any) (any, error) {
	if f.owner != nil && !f.bound && this != f.owner {
		return nil, fmt.Errorf("%s: %w", f.name, ErrIllegalInvocation)
	}
	return f.call(this, args...)
}

// Bind returns a function permanently bound to receiver. Matching the
// standard binding primitive, the result carries none of the original's
// own properties, including prototype.
func (f *Func) Bind(receiver any) *Func {
	orig := f
	return &Func{
		name:   "bound " + f.name,
		native: f.native,
		bound:  true,
		call: func(_ any, args ...any) (any, error) {
			return orig.call(receiver, args...)
		},
	}
}
