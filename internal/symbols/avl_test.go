package symbols

import (
	"math/rand"
	"testing"

	"github.com/nativeprof/profiler/internal/arena"
)

func newTestModule() *Module {
	return &Module{arena: arena.New()}
}

func TestAVLBalancedAfterInsertions(t *testing.T) {
	m := newTestModule()
	addrs := rand.New(rand.NewSource(1)).Perm(500)
	for _, a := range addrs {
		m.insert(Symbol{ID: uint32(a) + 1, Address: uint64(a) * 16, Size: 16})
	}

	assertBalanced(t, m.root)
	assertInOrder(t, m)
}

func TestAVLInsertSorted(t *testing.T) {
	// Inserting in already-sorted order is the worst case for an
	// unbalanced BST; the AVL discipline must still keep it shallow.
	m := newTestModule()
	const n = 1000
	for i := 0; i < n; i++ {
		m.insert(Symbol{ID: uint32(i) + 1, Address: uint64(i) * 16, Size: 16})
	}

	assertBalanced(t, m.root)
	assertInOrder(t, m)

	h := int(height(m.root))
	// A perfectly balanced binary tree of n nodes has height
	// ceil(log2(n+1)); AVL guarantees height stays within a small
	// constant factor of that bound.
	if h > 2*explog2(n+1) {
		t.Fatalf("tree height %d grew too large for %d nodes (unbalanced?)", h, n)
	}
}

func TestAVLFloor(t *testing.T) {
	m := newTestModule()
	for _, a := range []uint64{0x1000, 0x2000, 0x3000, 0x5000} {
		m.insert(Symbol{Address: a, Size: 0x100})
	}

	sym, ok := m.floor(0x2050)
	if !ok || sym.Address != 0x2000 {
		t.Fatalf("floor(0x2050) = %#x, %v, want 0x2000, true", sym.Address, ok)
	}

	if _, ok := m.floor(0x0FFF); ok {
		t.Fatalf("floor below every address should fail")
	}

	sym, ok = m.floor(0x5100)
	if !ok || sym.Address != 0x5000 {
		t.Fatalf("floor past the last symbol should return it, got %#x, %v", sym.Address, ok)
	}
}

func assertBalanced(t *testing.T, n *node) {
	t.Helper()
	var walk func(*node) int8
	walk = func(n *node) int8 {
		if n == nil {
			return 0
		}
		lh := walk(n.left)
		rh := walk(n.right)
		diff := lh - rh
		if diff < -1 || diff > 1 {
			t.Fatalf("AVL invariant violated at address %#x: |height(left)-height(right)| = %d", n.sym.Address, diff)
		}
		return 1 + max(lh, rh)
	}
	walk(n)
}

func assertInOrder(t *testing.T, m *Module) {
	t.Helper()
	syms := m.Symbols()
	for i := 1; i < len(syms); i++ {
		if syms[i-1].Address >= syms[i].Address {
			t.Fatalf("in-order traversal not strictly increasing at index %d: %#x >= %#x", i, syms[i-1].Address, syms[i].Address)
		}
	}
}

func explog2(n int) int {
	l := 0
	for (1 << l) < n {
		l++
	}
	return l
}
