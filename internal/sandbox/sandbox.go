package sandbox

import (
	"github.com/tallgy/qiankun/internal/window"
)

// Kind selects an isolation strategy.
type Kind string

const (
	// KindMultiplexed gives every micro-app its own always-available
	// virtual global object; many sandboxes may be active at once.
	KindMultiplexed Kind = "multiplexed"

	// KindDiffing mutates the host global object in place and restores it
	// from recorded diffs on deactivation; only one sandbox may be active.
	KindDiffing Kind = "diffing"
)

// Membrane is the interception layer a virtual global object exposes.
// Every operation isolated code can perform against its global resolves
// through exactly one of these traps.
type Membrane interface {
	// Get reads a property. Callables come back through the binding
	// layer; self-references come back as the membrane itself.
	Get(key string) (any, error)

	// Set writes a property. Never fails for boundary reasons: writes on
	// an inactive sandbox succeed without effect.
	Set(key string, value any) error

	// Has reports property existence as seen by isolated code.
	Has(key string) bool

	// Delete removes a property from the isolated view. Always reports
	// true.
	Delete(key string) bool

	// Describe returns the property descriptor, remembering which object
	// supplied it so a later Define routes to the same place.
	Describe(key string) (*window.Descriptor, bool)

	// Define installs a descriptor on whichever object owns the key. An
	// incompatible redefinition is a structural misuse and returns a
	// fatal error.
	Define(key string, desc *window.Descriptor) error

	// Keys enumerates the de-duplicated visible key set.
	Keys() []string

	// Prototype returns the prototype of the isolated global view.
	Prototype() *window.Object
}

// Sandbox is one micro-app's isolation instance. The lifecycle controller
// creates one per loaded app instance, toggles it around mount/unmount,
// and discards it on teardown.
type Sandbox interface {
	// Name identifies the owning micro-app.
	Name() string

	// Type reports the isolation strategy.
	Type() Kind

	// Global is the virtual global reference isolated code executes
	// against.
	Global() Membrane

	// Running reports whether the sandbox is active.
	Running() bool

	// Activate marks the sandbox active. For the multiplexed kind this
	// joins the shared active set; for the diffing kind it re-applies the
	// recorded diff state onto the host global.
	Activate()

	// Deactivate marks the sandbox inactive, restoring host state per
	// strategy.
	Deactivate()

	// PatchDocument substitutes the document reference isolated code
	// reads. A nil doc restores the realm default.
	PatchDocument(doc *window.Object)

	// LatestSetProp returns the most recently written property key, used
	// by loaders to recover lifecycle exports assigned as bare globals.
	LatestSetProp() (string, bool)
}

// Recorder receives operational events from the isolation engines.
// Implemented by internal/monitoring; a nil recorder disables recording.
type Recorder interface {
	RecordTrap(sandbox string, op string)
	SetActiveSandboxes(n int)
	RecordWhitelistRestore()
}

// Trap operation labels reported to the Recorder.
const (
	opGet      = "get"
	opSet      = "set"
	opHas      = "has"
	opDelete   = "delete"
	opDescribe = "describe"
	opDefine   = "define"
	opKeys     = "keys"
)
