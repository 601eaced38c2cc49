// Package binding rebinds receiver-sensitive native callables read off a
// foreign receiver, memoizing one bound wrapper per original so repeated
// reads preserve reference equality.
package binding

import (
	"unicode"
	"unicode/utf8"

	"github.com/tallgy/qiankun/internal/window"
)

// Binder lazily creates and caches bound wrappers for native callables.
// The cache is keyed by callable identity, not value equality: two reads
// of the same native yield the identical wrapper.
//
// The binder is confined to a single realm's execution turns and is not
// goroutine-safe.
type Binder struct {
	cache map[*window.Func]*window.Func
}

// New creates an empty binder.
func New() *Binder {
	return &Binder{cache: make(map[*window.Func]*window.Func)}
}

// Rebind routes a value read off a virtual global toward isolated code.
// Ineligible values pass through unchanged: non-callables, user-defined
// functions, already-bound functions, and constructors. Eligible natives
// come back as a cached wrapper bound to receiver that still exposes the
// original's enumerable own properties, its prototype, and its source
// text.
func (b *Binder) Rebind(value, receiver any) any {
	fn, ok := value.(*window.Func)
	if !ok || !Rebindable(fn) {
		return value
	}
	if bound, ok := b.cache[fn]; ok {
		return bound
	}

	bound := fn.Bind(receiver)
	for _, key := range fn.Props().OwnKeys() {
		desc, ok := fn.Props().Descriptor(key)
		if !ok || !desc.Enumerable {
			continue
		}
		bound.Props().Define(key, desc)
	}
	// prototype is non-enumerable, so the loop above missed it; copy it
	// explicitly or instanceof checks break against the wrapper.
	if proto, ok := fn.Prototype(); ok {
		bound.SetPrototype(proto)
	}
	// feature detection stringifies functions; keep the original text.
	bound.SetSource(fn.String())

	b.cache[fn] = bound
	return bound
}

// Size returns the number of cached wrappers.
func (b *Binder) Size() int { return len(b.cache) }

// Rebindable reports whether a callable is eligible for receiver
// rebinding: native, not already bound, and not a constructor. A
// capitalized name marks an untagged constructor and is left alone, since
// rebinding one breaks new-expressions over it.
func Rebindable(fn *window.Func) bool {
	if !fn.IsNative() || fn.IsBound() || fn.IsConstructor() {
		return false
	}
	name := fn.Name()
	if name != "" {
		first, _ := utf8.DecodeRuneInString(name)
		if unicode.IsUpper(first) {
			return false
		}
	}
	return true
}
