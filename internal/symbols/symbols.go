// Package symbols implements the backend's per-module symbol cache: an
// address-keyed AVL tree over arena memory, lazy platform resolution,
// and the module registry that owns it.
package symbols

import (
	"unsafe"

	"github.com/nativeprof/profiler/internal/arena"
)

// Symbol is a contiguous instruction range with an associated name and
// optional source location. Id 0 is never assigned to a real symbol; it
// is reserved as the "no symbol" sentinel, matching the wire protocol's
// use of 0 as a null element (see SPEC_FULL.md's Data model section).
type Symbol struct {
	ID       uint32
	Address  uint64
	Size     uint32
	Name     uint32 // string id
	File     uint32 // string id
	Module   uint32 // string id
	Line     uint32
	LineLast uint32
}

// Contains reports whether addr falls within [Address, Address+Size).
// A zero-size symbol is only ever considered to contain its own exact
// address (the platform API's "no size information" special case).
func (s Symbol) Contains(addr uint64) bool {
	if s.Size == 0 {
		return addr == s.Address
	}
	return addr >= s.Address && addr < s.Address+uint64(s.Size)
}

// Module is a loaded image: its address range, its owned arena, and the
// AVL tree of symbols resolved so far within it. Module address ranges
// never overlap within a live Store.
type Module struct {
	Handle uintptr
	Base   uint64
	Size   uint32
	Name   uint32 // string id

	arena    *arena.Arena
	root     *node
	resolver Resolver
	next     *Module // free-list / live-list link, owned by Store
}

// Contains reports whether addr falls within the module's address range.
func (m *Module) Contains(addr uint64) bool {
	return addr >= m.Base && addr < m.Base+uint64(m.Size)
}

// newSymbolNode carves a node out of m's arena and copies sym into it.
// Allocation (rather than a plain Go heap allocation) keeps every symbol
// for a module alive exactly as long as the module itself, released in
// one shot on unload (see Store.Unload).
func (m *Module) newSymbolNode(sym Symbol) *node {
	buf := m.arena.Alloc(int(unsafe.Sizeof(node{})))
	n := (*node)(unsafe.Pointer(unsafe.SliceData(buf)))
	n.sym = sym
	n.left, n.right = nil, nil
	n.height = 1
	return n
}

// insert adds sym to the module's tree, rebalancing as needed.
func (m *Module) insert(sym Symbol) {
	m.root = insert(m.root, m.newSymbolNode(sym))
}

// floor returns the symbol with the largest address <= addr in this
// module, if any.
func (m *Module) floor(addr uint64) (Symbol, bool) {
	n := floor(m.root, addr)
	if n == nil {
		return Symbol{}, false
	}
	return n.sym, true
}

// Symbols returns every symbol currently cached for the module, in
// increasing address order. Used by tests and by the AVL invariant
// checks; not on the sampling hot path.
func (m *Module) Symbols() []Symbol {
	return inorder(m.root, nil)
}
