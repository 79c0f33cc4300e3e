package symbols

import (
	"github.com/nativeprof/profiler/internal/arena"
	"github.com/nativeprof/profiler/internal/strtab"
)

// Resolver abstracts "the platform symbol API" (SPEC_FULL.md §4.2): given
// an address inside a module, return the symbol that covers it along
// with its first/last source line. A Resolver implementation owns
// whatever per-module state it needs (e.g. a parsed ELF/DWARF image) and
// is constructed once per loaded module.
type Resolver interface {
	// Resolve looks up the symbol covering addr. ok is false if the
	// platform has no symbol information for addr.
	Resolve(addr uint64) (name string, base uint64, size uint32, ok bool)
	// Line returns the source file and line number for addr, if known.
	Line(addr uint64) (file string, line uint32, ok bool)
	// Close releases any resources held by the resolver (open file
	// descriptors, mapped sections).
	Close() error
}

// ResolverFactory constructs the Resolver for a newly loaded module,
// given its on-disk path as recovered from the target's memory map.
type ResolverFactory func(path string, base uint64) (Resolver, error)

// Events receives the notifications the Store must emit, in the order
// required by the wire protocol's ordering guarantees (ModuleLoad before
// any symbol from that module, NewSymbol before any reference to its
// id, ModuleUnload after all of a module's symbols have been emitted).
// The sampler's wire writer implements this.
type Events interface {
	NewSymbol(sym Symbol)
	ModuleLoad(base uint64, name string)
	ModuleUnload(base uint64)
}

// Store owns the live module list, a free-list of retired module
// records, and the string table used to intern symbol/module/file
// names. It is the single consumer of the platform Resolver.
type Store struct {
	strings  *strtab.Table
	events   Events
	resolver ResolverFactory

	modules  *Module // live list head
	freelist *Module // retired records available for reuse
	nextID   uint32  // next symbol id to assign; 0 is the sentinel
}

// NewStore constructs an empty Store. strings is the session's shared
// string table (see SPEC_FULL.md: strings, symbols, modules and threads
// share one session-lifetime string table).
func NewStore(strings *strtab.Table, events Events, resolver ResolverFactory) *Store {
	return &Store{
		strings:  strings,
		events:   events,
		resolver: resolver,
		nextID:   1,
	}
}

// Load registers a newly loaded module. handle is an opaque target
// handle (a memory-mapped file descriptor, or similar); base/size/path
// come from the target's memory map entry for the image.
func (s *Store) Load(handle uintptr, path string, base uint64, size uint32) (*Module, error) {
	name := moduleName(path)
	s.events.ModuleLoad(base, name)

	nameID, _ := s.strings.Intern(name)

	var m *Module
	if s.freelist != nil {
		m = s.freelist
		s.freelist = m.next
		*m = Module{}
	} else {
		m = &Module{}
	}

	m.Handle = handle
	m.Base = base
	m.Size = size
	m.Name = nameID
	m.arena = arena.New()
	m.root = nil

	m.next = s.modules
	s.modules = m

	if s.resolver != nil {
		r, err := s.resolver(path, base)
		if err != nil {
			return m, err
		}
		m.resolver = r
	}
	return m, nil
}

// Unload retires the module whose base address is base: its arena and
// resolver are released and the record returns to the free-list.
func (s *Store) Unload(base uint64) {
	var prev *Module
	cur := s.modules
	for cur != nil {
		if cur.Base == base {
			if prev == nil {
				s.modules = cur.next
			} else {
				prev.next = cur.next
			}
			s.events.ModuleUnload(base)
			if cur.resolver != nil {
				cur.resolver.Close()
			}
			cur.arena = nil
			cur.root = nil
			cur.resolver = nil
			cur.next = s.freelist
			s.freelist = cur
			return
		}
		prev = cur
		cur = cur.next
	}
}

// moduleFor returns the live module whose range contains addr, using a
// linear scan: modules are few and load order is stable, so this is
// cheaper and simpler than maintaining a second index (see
// SPEC_FULL.md's Symbol Store lookup algorithm).
func (s *Store) moduleFor(addr uint64) *Module {
	for m := s.modules; m != nil; m = m.next {
		if m.Contains(addr) {
			return m
		}
	}
	return nil
}

// Get looks up the symbol covering addr, resolving and caching it via
// the platform Resolver on a cache miss. ok is false if no module
// contains addr, or if the platform has no symbol information for it.
func (s *Store) Get(addr uint64) (Symbol, bool) {
	m := s.moduleFor(addr)
	if m == nil {
		return Symbol{}, false
	}

	if sym, ok := m.floor(addr); ok && sym.Contains(addr) {
		return sym, true
	}

	if m.resolver == nil {
		return Symbol{}, false
	}

	name, base, size, ok := m.resolver.Resolve(addr)
	if !ok {
		return Symbol{}, false
	}

	if size == 0 {
		// Special case from SPEC_FULL.md §4.2: a zero-size result is
		// only usable if we already have a cached symbol at the exact
		// returned address.
		if cached, ok := m.floor(base); ok && cached.Address == base {
			return cached, true
		}
		if base != addr {
			return Symbol{}, false
		}
	}

	sym := Symbol{
		ID:      s.nextID,
		Address: base,
		Size:    size,
	}
	if !sym.Contains(addr) {
		return Symbol{}, false
	}

	nameID, _ := s.strings.Intern(name)
	sym.Name = nameID
	sym.Module = m.Name

	file, line, ok := m.resolver.Line(base)
	if ok {
		fileID, _ := s.strings.Intern(file)
		sym.File = fileID
		sym.Line = line
	}

	lastAddr := base
	if size > 0 {
		lastAddr = base + uint64(size) - 1
	}
	if _, lineLast, ok := m.resolver.Line(lastAddr); ok {
		sym.LineLast = lineLast
	} else {
		sym.LineLast = sym.Line
	}

	s.nextID++
	m.insert(sym)
	s.events.NewSymbol(sym)
	return sym, true
}

// LineAt returns the source line covering addr by asking the owning
// module's resolver directly, rather than returning a cached symbol's
// definition line. Each sampled PC needs its own lookup (SPEC_FULL.md
// §4.5 point 6: "line" is lookup_line(pc), not the enclosing symbol's
// first line) so that two call sites inside the same function produce
// different call-graph keys.
func (s *Store) LineAt(addr uint64) (uint32, bool) {
	m := s.moduleFor(addr)
	if m == nil || m.resolver == nil {
		return 0, false
	}
	_, line, ok := m.resolver.Line(addr)
	return line, ok
}

func moduleName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}
