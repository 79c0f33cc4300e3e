// Package threads implements the backend's thread registry: a live map
// of target thread ids to OS handles, with free-list reuse for node
// records (SPEC_FULL.md §4.3).
package threads

// Handle is an opaque per-thread OS resource (e.g. a ptrace-attached
// thread id on Linux); Close releases it.
type Handle interface {
	Close() error
}

// Events receives ThreadAdd/ThreadRemove notifications in registry
// order, matching the wire protocol's ordering guarantee that ThreadAdd
// precedes any StackSamples referencing the same thread id.
type Events interface {
	ThreadAdd(id uint32, entry uint64)
	ThreadRemove(id uint32)
}

type node struct {
	id     uint32
	entry  uint64
	handle Handle
	next   *node
}

// Registry is a linked list of live threads with a free-list for node
// reuse. It is not safe for concurrent use; only the sampler thread
// mutates it.
type Registry struct {
	events   Events
	head     *node
	tail     *node
	freelist *node
}

// New constructs an empty Registry.
func New(events Events) *Registry {
	return &Registry{events: events}
}

// Add registers a new thread, appending it to the registry (iteration
// order is registry/insertion order) and emitting ThreadAdd.
func (r *Registry) Add(id uint32, entry uint64, handle Handle) {
	var n *node
	if r.freelist != nil {
		n = r.freelist
		r.freelist = n.next
	} else {
		n = &node{}
	}
	n.id, n.entry, n.handle, n.next = id, entry, handle, nil

	if r.tail == nil {
		r.head = n
	} else {
		r.tail.next = n
	}
	r.tail = n

	r.events.ThreadAdd(id, entry)
}

// Remove unregisters the thread with the given id, closing its handle
// and returning the node to the free-list. It is a no-op if the id is
// not present.
func (r *Registry) Remove(id uint32) {
	var prev *node
	for n := r.head; n != nil; n = n.next {
		if n.id != id {
			prev = n
			continue
		}

		if prev == nil {
			r.head = n.next
		} else {
			prev.next = n.next
		}
		if r.tail == n {
			r.tail = prev
		}

		r.events.ThreadRemove(id)
		if n.handle != nil {
			n.handle.Close()
		}

		n.handle = nil
		n.next = r.freelist
		r.freelist = n
		return
	}
}

// Handle returns the handle registered for id, or nil if not present.
func (r *Registry) Handle(id uint32) Handle {
	for n := r.head; n != nil; n = n.next {
		if n.id == id {
			return n.handle
		}
	}
	return nil
}

// Len reports the number of live threads.
func (r *Registry) Len() int {
	n := 0
	for cur := r.head; cur != nil; cur = cur.next {
		n++
	}
	return n
}

// Each calls fn for every live thread, in registry order, stopping early
// if fn returns false.
func (r *Registry) Each(fn func(id uint32, handle Handle) bool) {
	for n := r.head; n != nil; n = n.next {
		if !fn(n.id, n.handle) {
			return
		}
	}
}
