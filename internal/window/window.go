package window

import (
	"fmt"
)

// Descriptor describes one property of an Object. A descriptor is either a
// data property (Value/Writable) or an accessor property (Getter/Setter);
// Accessor() reports which form applies.
type Descriptor struct {
	Value        any
	Getter       *Func
	Setter       *Func
	Writable     bool
	Enumerable   bool
	Configurable bool
}

// Accessor reports whether the descriptor is an accessor property.
func (d *Descriptor) Accessor() bool {
	return d.Getter != nil || d.Setter != nil
}

// Clone returns a detached copy of the descriptor.
func (d *Descriptor) Clone() *Descriptor {
	c := *d
	return &c
}

// Object is a property table with descriptor semantics and an optional
// prototype link. Own keys preserve insertion order.
type Object struct {
	name  string
	props map[string]*Descriptor
	order []string
	proto *Object
}

// New creates an empty object. The name is diagnostic only.
func New(name string) *Object {
	return &Object{
		name:  name,
		props: make(map[string]*Descriptor),
	}
}

// Name returns the diagnostic name of the object.
func (o *Object) Name() string { return o.name }

// Proto returns the prototype object, or nil.
func (o *Object) Proto() *Object { return o.proto }

// SetProto replaces the prototype link.
func (o *Object) SetProto(proto *Object) { o.proto = proto }

// Define installs or replaces an own property. Redefining a
// non-configurable property fails with ErrNotConfigurable, except for the
// value of a writable data property, which may change without a shape
// change.
func (o *Object) Define(key string, desc *Descriptor) error {
	if existing, ok := o.props[key]; ok && !existing.Configurable {
		if !compatibleRedefine(existing, desc) {
			return fmt.Errorf("define %s.%s: %w", o.name, key, ErrNotConfigurable)
		}
		existing.Value = desc.Value
		return nil
	}
	if _, ok := o.props[key]; !ok {
		o.order = append(o.order, key)
	}
	o.props[key] = desc.Clone()
	return nil
}

// compatibleRedefine reports whether desc may replace a non-configurable
// existing descriptor: only a value update on a writable data property
// with identical flags qualifies.
func compatibleRedefine(existing, desc *Descriptor) bool {
	if existing.Accessor() || desc.Accessor() {
		return false
	}
	if !existing.Writable {
		return false
	}
	return existing.Writable == desc.Writable &&
		existing.Enumerable == desc.Enumerable &&
		existing.Configurable == desc.Configurable
}

// Delete removes an own property. It reports false only for
// non-configurable own properties; deleting an absent key succeeds.
func (o *Object) Delete(key string) bool {
	desc, ok := o.props[key]
	if !ok {
		return true
	}
	if !desc.Configurable {
		return false
	}
	delete(o.props, key)
	for i, k := range o.order {
		if k == key {
			o.order = append(o.order[:i], o.order[i+1:]...)
			break
		}
	}
	return true
}

// Get reads a property through the prototype chain with the object itself
// as the accessor receiver.
func (o *Object) Get(key string) (any, bool) {
	return o.GetWith(key, o)
}

// GetWith reads a property through the prototype chain, invoking getters
// with the supplied receiver. A getter failure yields undefined (nil).
func (o *Object) GetWith(key string, receiver any) (any, bool) {
	for cur := o; cur != nil; cur = cur.proto {
		desc, ok := cur.props[key]
		if !ok {
			continue
		}
		if desc.Accessor() {
			if desc.Getter == nil {
				return nil, true
			}
			v, err := desc.Getter.Call(receiver)
			if err != nil {
				return nil, true
			}
			return v, true
		}
		return desc.Value, true
	}
	return nil, false
}

// Set writes a property. Own accessor setters are invoked with the object
// as receiver; own read-only data properties fail with ErrReadOnly. When
// the key is absent a writable, enumerable, configurable data property is
// created, unless an inherited setter intercepts the write first.
func (o *Object) Set(key string, value any) error {
	if desc, ok := o.props[key]; ok {
		return o.apply(key, desc, value)
	}
	for cur := o.proto; cur != nil; cur = cur.proto {
		if desc, ok := cur.props[key]; ok {
			if desc.Accessor() {
				return o.apply(key, desc, value)
			}
			break
		}
	}
	return o.Define(key, &Descriptor{
		Value:        value,
		Writable:     true,
		Enumerable:   true,
		Configurable: true,
	})
}

func (o *Object) apply(key string, desc *Descriptor, value any) error {
	if desc.Accessor() {
		if desc.Setter == nil {
			return fmt.Errorf("set %s.%s: %w", o.name, key, ErrReadOnly)
		}
		_, err := desc.Setter.Call(o, value)
		return err
	}
	if !desc.Writable {
		return fmt.Errorf("set %s.%s: %w", o.name, key, ErrReadOnly)
	}
	desc.Value = value
	return nil
}

// HasOwn reports whether the object owns the key.
func (o *Object) HasOwn(key string) bool {
	_, ok := o.props[key]
	return ok
}

// Has reports whether the key exists on the object or its prototype chain.
func (o *Object) Has(key string) bool {
	for cur := o; cur != nil; cur = cur.proto {
		if _, ok := cur.props[key]; ok {
			return true
		}
	}
	return false
}

// OwnKeys returns the own property keys in insertion order.
func (o *Object) OwnKeys() []string {
	keys := make([]string, len(o.order))
	copy(keys, o.order)
	return keys
}

// Descriptor returns a copy of the own descriptor for key.
func (o *Object) Descriptor(key string) (*Descriptor, bool) {
	desc, ok := o.props[key]
	if !ok {
		return nil, false
	}
	return desc.Clone(), true
}
