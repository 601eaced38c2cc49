package sandbox

import (
	"go.uber.org/zap"

	"github.com/tallgy/qiankun/internal/window"
)

// Snapshot isolates one micro-app by mutating the host global object in
// place while recording diffs, and rolling the host back on deactivation.
// Exactly one diffing sandbox may be live at a time; the orchestration
// contract (singular mode) enforces that. Used where true virtual
// globals are unavailable or undesired.
type Snapshot struct {
	name     string
	realm    *Realm
	document *window.Object
	running  bool

	// added holds keys the sandbox introduced to the host global; they
	// are removed again on deactivation.
	added map[string]any
	// modified holds the original host value of every overwritten
	// pre-existing key, recorded once per key; restored on deactivation.
	modified map[string]any
	// current merges the latest value of every touched key so a later
	// reactivation replays accumulated state without re-execution.
	current map[string]any

	latest    string
	hasLatest bool
}

var _ Sandbox = (*Snapshot)(nil)
var _ Membrane = (*Snapshot)(nil)

func newSnapshot(name string, realm *Realm) *Snapshot {
	return &Snapshot{
		name:     name,
		realm:    realm,
		added:    make(map[string]any),
		modified: make(map[string]any),
		current:  make(map[string]any),
	}
}

// Name implements Sandbox.
func (s *Snapshot) Name() string { return s.name }

// Type implements Sandbox.
func (s *Snapshot) Type() Kind { return KindDiffing }

// Global implements Sandbox; reads pass straight through to the host.
func (s *Snapshot) Global() Membrane { return s }

// Running implements Sandbox.
func (s *Snapshot) Running() bool { return s.running }

// Activate re-applies every touched key's latest value onto the host
// global, so state accumulated during a previous activation survives a
// deactivate/reactivate cycle without re-executing the app.
func (s *Snapshot) Activate() {
	if !s.running {
		host := s.realm.Global()
		for key, value := range s.current {
			if err := host.Set(key, value); err != nil {
				s.realm.log.Warn("failed to replay global",
					zap.String("sandbox", s.name), zap.String("key", key), zap.Error(err))
			}
		}
	}
	s.running = true
	s.realm.log.Debug("sandbox activated", zap.String("sandbox", s.name))
}

// Deactivate restores every overwritten key to its original value and
// deletes every key this sandbox introduced, returning the host global to
// its pre-activation shape. The diff maps keep their history for the next
// activation.
func (s *Snapshot) Deactivate() {
	if s.running {
		host := s.realm.Global()
		for key, orig := range s.modified {
			if err := host.Set(key, orig); err != nil {
				s.realm.log.Warn("failed to restore global",
					zap.String("sandbox", s.name), zap.String("key", key), zap.Error(err))
			}
		}
		for key := range s.added {
			host.Delete(key)
		}
	}
	s.running = false
	s.realm.log.Debug("sandbox deactivated",
		zap.String("sandbox", s.name),
		zap.Int("added", len(s.added)), zap.Int("modified", len(s.modified)))
}

// PatchDocument implements Sandbox.
func (s *Snapshot) PatchDocument(doc *window.Object) {
	s.document = doc
}

// LatestSetProp implements Sandbox.
func (s *Snapshot) LatestSetProp() (string, bool) {
	return s.latest, s.hasLatest
}

func (s *Snapshot) touch(op string) {
	s.realm.touch(s.name)
	s.realm.record(s.name, op)
}

// Get implements Membrane: a pass-through to the host global.
// Self-references resolve to the membrane so writes routed through them
// stay inside the diff bookkeeping, and the document read honors a
// patched document.
func (s *Snapshot) Get(key string) (any, error) {
	s.touch(opGet)
	if _, ok := selfRefKeys[key]; ok {
		return s, nil
	}
	if key == "document" {
		if s.document != nil {
			return s.document, nil
		}
		return s.realm.Document(), nil
	}
	v, _ := s.realm.Global().Get(key)
	return v, nil
}

// Set implements Membrane: records the diff, then writes through to the
// host global so host-level reads observe the value immediately. Writes
// while inactive are silent no-ops.
func (s *Snapshot) Set(key string, value any) error {
	s.touch(opSet)
	if !s.running {
		return nil
	}

	host := s.realm.Global()
	if _, isAdded := s.added[key]; isAdded {
		s.added[key] = value
	} else if !host.HasOwn(key) {
		s.added[key] = value
	} else if _, recorded := s.modified[key]; !recorded {
		orig, _ := host.Get(key)
		s.modified[key] = orig
	}
	s.current[key] = value

	if err := host.Set(key, value); err != nil {
		s.realm.log.Warn("write rejected by host property shape",
			zap.String("sandbox", s.name), zap.String("key", key), zap.Error(err))
	}
	s.noteWrite(key)
	return nil
}

func (s *Snapshot) noteWrite(key string) {
	s.latest = key
	s.hasLatest = true
}

// Has implements Membrane.
func (s *Snapshot) Has(key string) bool {
	s.touch(opHas)
	return s.realm.Global().Has(key)
}

// Delete implements Membrane: passes through to the host with the same
// diff bookkeeping as a write, so deactivation still restores
// pre-existing keys. Always reports success.
func (s *Snapshot) Delete(key string) bool {
	s.touch(opDelete)
	if !s.running {
		return true
	}
	host := s.realm.Global()
	if host.HasOwn(key) {
		if _, isAdded := s.added[key]; isAdded {
			delete(s.added, key)
		} else if _, recorded := s.modified[key]; !recorded {
			orig, _ := host.Get(key)
			s.modified[key] = orig
		}
		delete(s.current, key)
		host.Delete(key)
	}
	return true
}

// Keys implements Membrane.
func (s *Snapshot) Keys() []string {
	s.touch(opKeys)
	return s.realm.Global().OwnKeys()
}

// Describe implements Membrane.
func (s *Snapshot) Describe(key string) (*window.Descriptor, bool) {
	s.touch(opDescribe)
	return s.realm.Global().Descriptor(key)
}

// Define implements Membrane: applies to the host global with write-style
// diff bookkeeping for data descriptors.
func (s *Snapshot) Define(key string, desc *window.Descriptor) error {
	s.touch(opDefine)
	if !s.running {
		return nil
	}
	host := s.realm.Global()
	if !desc.Accessor() {
		if _, isAdded := s.added[key]; isAdded {
			s.added[key] = desc.Value
		} else if !host.HasOwn(key) {
			s.added[key] = desc.Value
		} else if _, recorded := s.modified[key]; !recorded {
			orig, _ := host.Get(key)
			s.modified[key] = orig
		}
		s.current[key] = desc.Value
	}
	return host.Define(key, desc)
}

// Prototype implements Membrane.
func (s *Snapshot) Prototype() *window.Object {
	return s.realm.Global().Proto()
}
