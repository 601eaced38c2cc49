// Package registry tracks which micro-app's code is currently executing,
// so collaborators that patch side-effecting globals (DOM node creation
// and friends) can attribute work to the right app.
package registry

import "sync"

// TaskQueue defers functions to the end of the current execution turn.
// The execution adapter flushes it after every script turn, which is the
// scheduling boundary the registry clears on.
type TaskQueue struct {
	mu    sync.Mutex
	tasks []func()
}

// NewTaskQueue creates an empty queue.
func NewTaskQueue() *TaskQueue {
	return &TaskQueue{}
}

// Schedule appends fn for the next flush.
func (q *TaskQueue) Schedule(fn func()) {
	q.mu.Lock()
	q.tasks = append(q.tasks, fn)
	q.mu.Unlock()
}

// Flush runs and clears all scheduled functions. Functions scheduled
// during a flush run in the same flush.
func (q *TaskQueue) Flush() {
	for {
		q.mu.Lock()
		tasks := q.tasks
		q.tasks = nil
		q.mu.Unlock()
		if len(tasks) == 0 {
			return
		}
		for _, fn := range tasks {
			fn()
		}
	}
}

// Len returns the number of pending functions.
func (q *TaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Registry is the process-wide single slot naming the sandbox most
// recently touched by an interception trap. Setting the slot overwrites;
// execution is single-threaded and non-preemptive, so at most one entry
// exists at any instant. The slot clears on the next tick after being
// set, so code running outside any sandbox turn is never misattributed.
//
// The mutex exists only because administrative surfaces may peek from
// other goroutines; trap traffic itself stays on one thread.
type Registry struct {
	mu      sync.Mutex
	queue   *TaskQueue
	current string
	active  bool
	pending bool
}

// New creates a registry clearing itself through queue.
func New(queue *TaskQueue) *Registry {
	return &Registry{queue: queue}
}

// MarkRunning records name as the currently executing app and schedules
// the slot to clear on the next tick. Marks within one turn coalesce into
// a single scheduled clear.
func (r *Registry) MarkRunning(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = name
	r.active = true
	if !r.pending {
		r.pending = true
		r.queue.Schedule(r.clear)
	}
}

func (r *Registry) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = ""
	r.active = false
	r.pending = false
}

// Current returns the currently executing app, if any.
func (r *Registry) Current() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current, r.active
}

// Reset clears the slot immediately. Part of full-teardown lifecycle.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = ""
	r.active = false
	r.pending = false
}
