/*
Package sandbox provides global-scope isolation for micro-apps sharing a
single host page.

# Overview

Independently built front-end applications loaded into one host page all
expect to own the one true global object. The sandbox gives each of them
that illusion: a micro-app's code executes against a virtual global
reference, every property access resolves through an interception layer
(the Membrane), and the layer decides whether the operation touches the
virtual object's own storage, the shared host global, or a per-app
override.

Two isolation strategies exist, selected by Kind:

  - Multiplexed: every micro-app gets its own always-available virtual
    global pre-seeded with the host's non-configurable properties. Any
    number of multiplexed sandboxes stay active at once; the only state
    they share is the host global itself, the active-sandbox counter,
    and the whitelisted loader globals that write through by design.
  - Diffing: the host global is mutated in place and rolled back from
    recorded diffs on deactivation. Only one diffing sandbox may be live
    at a time (singular orchestration); the trade is simplicity and
    legacy compatibility against exclusivity.

The Realm holds everything the strategies coordinate through: host
global, binding layer, running-app registry, whitelist snapshot, and the
active counter. All of it is cooperative, same-privilege isolation:
code is trusted not to attack the membrane, and the membrane keeps it
from corrupting its neighbors by accident.

# Concurrency

Execution is single-threaded and cooperative. Traps are synchronous and
run to completion; activation toggles happen only at lifecycle
boundaries, never mid-turn. The few mutexes here guard administrative
peeks from other goroutines, not trap traffic.
*/
package sandbox
