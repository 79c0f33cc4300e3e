// Package strtab implements the backend's string interner.
//
// Strings flowing through the wire protocol (symbol names, file paths,
// module names) are deduplicated and assigned dense monotonic integer
// ids so that later references only need to carry a uint32. Id 0 is
// reserved for the empty string and is never emitted as a "new string"
// event, since readers pre-seed it.
package strtab

import "hash/fnv"

// maxLoadFactor mirrors the open-addressing discipline described for the
// backend's string table: once the table reaches 75% full, it is
// doubled and rehashed.
const maxLoadFactor = 0.75

// entry is a single slot in the open-addressed table.
type entry struct {
	used bool
	hash uint64
	id   uint32
}

// Table interns UTF-8 strings and assigns them dense, monotonically
// increasing ids. Equal byte sequences always map to the same id.
//
// A Table is not safe for concurrent use; the backend only ever touches
// it from the sampler thread (see the single-writer discussion in
// SPEC_FULL.md's concurrency section).
type Table struct {
	slots   []entry
	strings []string // id -> bytes, strings[0] == ""
	count   int      // number of occupied slots
}

// New returns an empty Table with id 0 pre-seeded as the empty string.
func New() *Table {
	t := &Table{
		slots:   make([]entry, 16),
		strings: make([]string, 1),
	}
	return t
}

// Len returns the number of distinct strings interned so far, including
// the reserved empty string at id 0.
func (t *Table) Len() int { return len(t.strings) }

// String returns the bytes associated with id, or "" if the id is out of
// range. The reserved id 0 maps to "".
func (t *Table) String(id uint32) string {
	if int(id) >= len(t.strings) {
		return ""
	}
	return t.strings[id]
}

// Intern returns the id for s, interning it if it has not been seen
// before. isNew reports whether this call assigned a fresh id; the
// caller must emit a NewString reply for it before the id is used in
// any other reply (see the ordering guarantees in SPEC_FULL.md).
func (t *Table) Intern(s string) (id uint32, isNew bool) {
	if s == "" {
		return 0, false
	}

	h := hashString(s)
	i := t.find(h, s)
	if e := &t.slots[i]; e.used {
		return e.id, false
	}

	id = uint32(len(t.strings))
	t.strings = append(t.strings, s)
	t.slots[i] = entry{used: true, hash: h, id: id}
	t.count++
	if float64(t.count) >= maxLoadFactor*float64(len(t.slots)) {
		t.grow()
	}
	return id, true
}

// find walks the open-addressed table from the home slot of h, linear
// probing past any slot whose hash collides with h but whose string
// differs, until it finds either the matching string or the first empty
// slot (the insertion point).
func (t *Table) find(h uint64, s string) int {
	mask := uint64(len(t.slots) - 1)
	i := h & mask
	for {
		e := &t.slots[i]
		if !e.used {
			return int(i)
		}
		if e.hash == h && t.strings[e.id] == s {
			return int(i)
		}
		i = (i + 1) & mask
	}
}

func (t *Table) grow() {
	old := t.slots
	t.slots = make([]entry, len(old)*2)
	mask := uint64(len(t.slots) - 1)
	for _, e := range old {
		if !e.used {
			continue
		}
		i := e.hash & mask
		for t.slots[i].used {
			i = (i + 1) & mask
		}
		t.slots[i] = e
	}
}

func hashString(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}
