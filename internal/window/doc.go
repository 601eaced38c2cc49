/*
Package window models global objects the way a browser page sees them:
property tables with full descriptor semantics (writable, enumerable,
configurable, accessor pairs), a prototype chain, ordered enumeration,
and callable values that may be receiver-sensitive.

The isolation engines in internal/sandbox need to reproduce global-object
behavior through an interception layer, so the behaviors that matter
there are modeled explicitly here rather than borrowed from a VM:

  - Object: named property table. Define rejects reshaping a
    non-configurable property, Delete refuses non-configurable own
    properties, Set honors read-only data properties and inherited
    setters, OwnKeys preserves insertion order.
  - Descriptor: data or accessor form, cloneable so snapshots detach
    from live state.
  - Func: a callable with identity. Natives can demand a specific
    receiver (ErrIllegalInvocation otherwise); Bind produces a wrapper
    that fixes the receiver but deliberately drops own properties and
    prototype, matching the standard binding primitive. The binding
    layer compensates for that on top of this package.

Values held in descriptors are opaque (any); the execution adapter in
internal/engine stores engine-level values here directly.
*/
package window
