package sandbox

import (
	"go.uber.org/zap"

	"github.com/tallgy/qiankun/internal/window"
)

// selfRefKeys are identity-sensitive self-references: reading any of them
// must return the virtual global itself so recursive self-access never
// escapes to the host object. top and parent resolve to the sandbox as
// well, reflecting a standalone (non-nested) page.
var selfRefKeys = map[string]struct{}{
	"window":     {},
	"self":       {},
	"globalThis": {},
	"top":        {},
	"parent":     {},
}

// identitySensitive keys get their seeded descriptors normalized to
// configurable (and writable, for data properties) so the membrane can
// intercept them faithfully.
var identitySensitive = map[string]struct{}{
	"window":     {},
	"self":       {},
	"globalThis": {},
	"top":        {},
	"parent":     {},
	"document":   {},
}

// alwaysVisible keys answer true to existence checks regardless of where
// they live, so in-based escape probes cannot detect the boundary.
var alwaysVisible = map[string]struct{}{
	"window":       {},
	"self":         {},
	"globalThis":   {},
	"top":          {},
	"parent":       {},
	"document":     {},
	"System":       {},
	"__cjsWrapper": {},
}

// nativeBound properties must be bound to the true native global rather
// than any wrapped receiver: their implementations reject non-native
// receivers outright.
var nativeBound = map[string]struct{}{
	"fetch":          {},
	"XMLHttpRequest": {},
	"EventSource":    {},
}

// descTarget remembers which object most recently reported a descriptor
// for a key, because a non-configurable descriptor can only be redefined
// on the object that already owns it.
type descTarget int

const (
	targetVirtual descTarget = iota
	targetHost
)

// Multiplexed isolates one micro-app behind a private virtual global
// object while any number of sibling sandboxes stay active against the
// same host global. Reads fall through to the host for untouched keys;
// writes land on the virtual object except for whitelisted names, which
// escape by design.
type Multiplexed struct {
	name     string
	realm    *Realm
	virtual  *window.Object
	document *window.Object
	running  bool

	updated     map[string]struct{}
	latest      string
	hasLatest   bool
	descTargets map[string]descTarget
}

var _ Sandbox = (*Multiplexed)(nil)
var _ Membrane = (*Multiplexed)(nil)

func newMultiplexed(name string, realm *Realm) *Multiplexed {
	s := &Multiplexed{
		name:        name,
		realm:       realm,
		virtual:     window.New("proxy:" + name),
		document:    realm.Document(),
		updated:     make(map[string]struct{}),
		descTargets: make(map[string]descTarget),
	}
	s.seed()
	return s
}

// seed copies every non-configurable own descriptor of the host global
// onto the virtual object, normalizing identity-sensitive keys first so
// they stay interceptable. Configurable host properties are left to the
// fall-through read path.
func (s *Multiplexed) seed() {
	host := s.realm.Global()
	for _, key := range host.OwnKeys() {
		desc, ok := host.Descriptor(key)
		if !ok || desc.Configurable {
			continue
		}
		if _, sensitive := identitySensitive[key]; sensitive {
			desc.Configurable = true
			if !desc.Accessor() {
				desc.Writable = true
			}
		}
		if err := s.virtual.Define(key, desc); err != nil {
			s.realm.log.Warn("failed to seed virtual global",
				zap.String("sandbox", s.name), zap.String("key", key), zap.Error(err))
		}
	}
}

// Name implements Sandbox.
func (s *Multiplexed) Name() string { return s.name }

// Type implements Sandbox.
func (s *Multiplexed) Type() Kind { return KindMultiplexed }

// Global implements Sandbox; the sandbox is its own membrane.
func (s *Multiplexed) Global() Membrane { return s }

// Running implements Sandbox.
func (s *Multiplexed) Running() bool { return s.running }

// Activate joins the shared active set on the first transition.
func (s *Multiplexed) Activate() {
	if !s.running {
		s.realm.incActive()
	}
	s.running = true
	s.realm.log.Debug("sandbox activated", zap.String("sandbox", s.name))
}

// Deactivate leaves the shared active set. When the last active
// multiplexed sandbox exits (or eager restore is configured) the host
// global's whitelisted descriptors are restored: whitelisted globals are
// shared mutable state across all concurrently active sandboxes and may
// only be rolled back once nobody is left relying on them.
func (s *Multiplexed) Deactivate() {
	if s.running {
		if s.realm.decActive() == 0 || s.realm.eagerRestore {
			s.realm.restoreWhitelist()
		}
	}
	s.running = false
	s.realm.log.Debug("sandbox deactivated",
		zap.String("sandbox", s.name), zap.Int("modified_keys", len(s.updated)))
}

// PatchDocument implements Sandbox.
func (s *Multiplexed) PatchDocument(doc *window.Object) {
	if doc == nil {
		doc = s.realm.Document()
	}
	s.document = doc
}

// LatestSetProp implements Sandbox.
func (s *Multiplexed) LatestSetProp() (string, bool) {
	return s.latest, s.hasLatest
}

// UpdatedKeys returns the set of keys written while active. Diagnostic
// only.
func (s *Multiplexed) UpdatedKeys() []string {
	keys := make([]string, 0, len(s.updated))
	for key := range s.updated {
		keys = append(keys, key)
	}
	return keys
}

func (s *Multiplexed) touch(op string) {
	s.realm.touch(s.name)
	s.realm.record(s.name, op)
}

// Get implements Membrane.
func (s *Multiplexed) Get(key string) (any, error) {
	s.touch(opGet)

	if _, ok := selfRefKeys[key]; ok {
		return s, nil
	}
	if key == "document" {
		return s.document, nil
	}

	host := s.realm.Global()
	hostDesc, hostOwns := host.Descriptor(key)

	var value any
	switch {
	// A host accessor shadows the virtual copy: the live getter is
	// authoritative even when a seeded value exists locally.
	case s.virtual.HasOwn(key) && !(hostOwns && hostDesc.Accessor()):
		value, _ = s.virtual.Get(key)
	case host.Has(key):
		value, _ = host.GetWith(key, host)
	default:
		return nil, nil
	}

	receiver := any(host)
	if _, ok := nativeBound[key]; ok {
		receiver = s.realm.NativeGlobal()
	}
	return s.realm.Binder().Rebind(value, receiver), nil
}

// Set implements Membrane.
func (s *Multiplexed) Set(key string, value any) error {
	s.touch(opSet)

	if !s.running {
		// Returning an error here would crash strict-mode callers hit by
		// teardown timing races; swallow and diagnose instead.
		s.realm.log.Warn("global written while sandbox inactive",
			zap.String("sandbox", s.name), zap.String("key", key))
		return nil
	}

	host := s.realm.Global()

	if s.realm.Whitelisted(key) {
		s.realm.recordWhitelistPrev(key)
		if err := host.Set(key, value); err != nil {
			s.realm.log.Warn("whitelisted write-through failed",
				zap.String("sandbox", s.name), zap.String("key", key), zap.Error(err))
		}
		s.noteWrite(key)
		return nil
	}

	hostDesc, hostOwns := host.Descriptor(key)
	if hostOwns && !s.virtual.HasOwn(key) {
		// First shadowing write: carry the host descriptor shape over so
		// later reads and writes behave consistently with the host's.
		writable := true
		if !hostDesc.Accessor() {
			writable = hostDesc.Writable
		}
		err := s.virtual.Define(key, &window.Descriptor{
			Value:        value,
			Writable:     writable,
			Enumerable:   hostDesc.Enumerable,
			Configurable: hostDesc.Configurable,
		})
		if err != nil {
			s.realm.log.Warn("write rejected by property shape",
				zap.String("sandbox", s.name), zap.String("key", key), zap.Error(err))
			return nil
		}
		s.noteWrite(key)
		return nil
	}

	if err := s.virtual.Set(key, value); err != nil {
		s.realm.log.Warn("write rejected by property shape",
			zap.String("sandbox", s.name), zap.String("key", key), zap.Error(err))
		return nil
	}
	s.noteWrite(key)
	return nil
}

func (s *Multiplexed) noteWrite(key string) {
	s.updated[key] = struct{}{}
	s.latest = key
	s.hasLatest = true
}

// Has implements Membrane.
func (s *Multiplexed) Has(key string) bool {
	s.touch(opHas)
	if _, ok := alwaysVisible[key]; ok {
		return true
	}
	return s.virtual.HasOwn(key) || s.realm.Global().Has(key)
}

// Delete implements Membrane. Host properties are never deleted through a
// micro-app; only the virtual object's own storage is touched, and the
// operation reports success either way.
func (s *Multiplexed) Delete(key string) bool {
	s.touch(opDelete)
	if s.virtual.HasOwn(key) {
		s.virtual.Delete(key)
		delete(s.descTargets, key)
	}
	return true
}

// Keys implements Membrane: the de-duplicated union of host and virtual
// own keys, host order first.
func (s *Multiplexed) Keys() []string {
	s.touch(opKeys)
	host := s.realm.Global().OwnKeys()
	seen := make(map[string]struct{}, len(host))
	keys := make([]string, 0, len(host))
	for _, key := range host {
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	for _, key := range s.virtual.OwnKeys() {
		if _, dup := seen[key]; !dup {
			keys = append(keys, key)
		}
	}
	return keys
}

// Describe implements Membrane, recording which object supplied the
// descriptor so a later Define lands on the owner. Defining a
// non-configurable descriptor anywhere else is rejected by the ambient
// environment.
func (s *Multiplexed) Describe(key string) (*window.Descriptor, bool) {
	s.touch(opDescribe)
	if desc, ok := s.virtual.Descriptor(key); ok {
		s.descTargets[key] = targetVirtual
		return desc, true
	}
	if desc, ok := s.realm.Global().Descriptor(key); ok {
		s.descTargets[key] = targetHost
		return desc, true
	}
	return nil, false
}

// Define implements Membrane. Errors are fatal to the caller: they
// indicate structural misuse of the interception contract, not a
// recoverable condition.
func (s *Multiplexed) Define(key string, desc *window.Descriptor) error {
	s.touch(opDefine)
	target := s.virtual
	if t, ok := s.descTargets[key]; ok {
		if t == targetHost {
			target = s.realm.Global()
		}
	} else if !s.virtual.HasOwn(key) && s.realm.Global().HasOwn(key) {
		target = s.realm.Global()
	}
	return target.Define(key, desc)
}

// Prototype implements Membrane: the virtual global shares the host
// global's prototype chain.
func (s *Multiplexed) Prototype() *window.Object {
	return s.realm.Global().Proto()
}
