package threads

import "testing"

type recordingEvents struct {
	added   []uint32
	removed []uint32
}

func (r *recordingEvents) ThreadAdd(id uint32, entry uint64) { r.added = append(r.added, id) }
func (r *recordingEvents) ThreadRemove(id uint32)            { r.removed = append(r.removed, id) }

type fakeHandle struct{ closed bool }

func (h *fakeHandle) Close() error { h.closed = true; return nil }

func TestAddEmitsEventAndOrdersIteration(t *testing.T) {
	events := &recordingEvents{}
	r := New(events)

	r.Add(1, 0x1000, &fakeHandle{})
	r.Add(2, 0x2000, &fakeHandle{})
	r.Add(3, 0x3000, &fakeHandle{})

	if got := events.added; len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Fatalf("unexpected ThreadAdd events: %v", got)
	}

	var order []uint32
	r.Each(func(id uint32, _ Handle) bool {
		order = append(order, id)
		return true
	})
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("iteration order should match registry order, got %v", order)
	}
}

func TestRemoveClosesHandleAndEmitsEvent(t *testing.T) {
	events := &recordingEvents{}
	r := New(events)

	h := &fakeHandle{}
	r.Add(1, 0, h)
	r.Remove(1)

	if !h.closed {
		t.Fatalf("removing a thread must close its handle")
	}
	if len(events.removed) != 1 || events.removed[0] != 1 {
		t.Fatalf("expected a ThreadRemove(1) event, got %v", events.removed)
	}
	if r.Len() != 0 {
		t.Fatalf("expected an empty registry after removing the only thread")
	}
}

func TestFreelistReuse(t *testing.T) {
	r := New(&recordingEvents{})

	r.Add(1, 0, &fakeHandle{})
	r.Remove(1)
	r.Add(2, 0, &fakeHandle{})

	if r.Len() != 1 {
		t.Fatalf("expected exactly one live thread, got %d", r.Len())
	}
	if r.Handle(2) == nil {
		t.Fatalf("expected thread 2 to be present after reusing a free-list node")
	}
}

func TestRemoveMiddlePreservesOrder(t *testing.T) {
	r := New(&recordingEvents{})
	r.Add(1, 0, &fakeHandle{})
	r.Add(2, 0, &fakeHandle{})
	r.Add(3, 0, &fakeHandle{})

	r.Remove(2)

	var order []uint32
	r.Each(func(id uint32, _ Handle) bool {
		order = append(order, id)
		return true
	})
	if len(order) != 2 || order[0] != 1 || order[1] != 3 {
		t.Fatalf("unexpected order after removing the middle element: %v", order)
	}
}
