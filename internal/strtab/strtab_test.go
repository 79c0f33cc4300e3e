package strtab

import "testing"

func TestInternIdempotent(t *testing.T) {
	tab := New()

	id1, isNew1 := tab.Intern("hello")
	if !isNew1 {
		t.Fatalf("first intern of a new string must report isNew")
	}
	id2, isNew2 := tab.Intern("hello")
	if isNew2 {
		t.Fatalf("second intern of the same string must not report isNew")
	}
	if id1 != id2 {
		t.Fatalf("equal strings must map to the same id: %d != %d", id1, id2)
	}
}

func TestInternDistinct(t *testing.T) {
	tab := New()

	a, _ := tab.Intern("a")
	b, _ := tab.Intern("b")
	if a == b {
		t.Fatalf("distinct strings must not share an id")
	}
}

func TestInternEmptyStringIsZero(t *testing.T) {
	tab := New()

	id, isNew := tab.Intern("")
	if id != 0 {
		t.Fatalf("empty string must intern to id 0, got %d", id)
	}
	if isNew {
		t.Fatalf("empty string is pre-seeded, must never be reported as new")
	}
}

func TestInternDenseMonotonic(t *testing.T) {
	tab := New()

	words := []string{"alpha", "beta", "gamma", "delta", "epsilon"}
	for i, w := range words {
		id, isNew := tab.Intern(w)
		if !isNew {
			t.Fatalf("%q should be new", w)
		}
		if int(id) != i+1 {
			t.Fatalf("ids should be dense and monotonic starting at 1: want %d got %d", i+1, id)
		}
	}
}

func TestInternRehash(t *testing.T) {
	tab := New()

	const n = 5000
	ids := make(map[string]uint32, n)
	for i := 0; i < n; i++ {
		s := randLikeString(i)
		id, _ := tab.Intern(s)
		ids[s] = id
	}
	for s, want := range ids {
		got, isNew := tab.Intern(s)
		if isNew {
			t.Fatalf("%q should already be interned after rehashing", s)
		}
		if got != want {
			t.Fatalf("id for %q changed across rehashes: want %d got %d", s, want, got)
		}
	}
}

func TestStringRoundTrip(t *testing.T) {
	tab := New()

	id, _ := tab.Intern("round-trip")
	if got := tab.String(id); got != "round-trip" {
		t.Fatalf("String(%d) = %q, want %q", id, got, "round-trip")
	}
	if got := tab.String(0); got != "" {
		t.Fatalf("String(0) = %q, want empty", got)
	}
	if got := tab.String(999999); got != "" {
		t.Fatalf("String of an out-of-range id should be empty, got %q", got)
	}
}

func randLikeString(i int) string {
	buf := make([]byte, 0, 8)
	for i > 0 || len(buf) == 0 {
		buf = append(buf, byte('a'+i%13))
		i /= 13
	}
	return string(buf)
}
