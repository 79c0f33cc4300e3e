//go:build linux

package symbols

import (
	"debug/dwarf"
	"debug/elf"
	"fmt"
	"sort"
)

// elfResolver is the Linux Resolver implementation: it parses the ELF
// symbol table and, when present, the DWARF line-number program of a
// module's on-disk image. It is the Linux analogue of the platform
// symbol API the original backend calls into (SymFromAddr/SymGetLineFromAddr
// on Windows); see SPEC_FULL.md's DOMAIN STACK section for the grounding
// of this approach in debug/elf and debug/dwarf.
type elfResolver struct {
	file *elf.File
	base uint64
	// loadBias is the difference between a runtime address and the
	// address recorded in the ELF symbol/line tables: 0 for
	// non-PIE/statically-based executables, and base for position
	// independent ones (ET_DYN).
	loadBias uint64

	symbols []elf.Symbol // sorted by Value, functions only
	dwarf   *dwarf.Data
}

// NewELFResolverFactory returns a ResolverFactory that parses the ELF
// image at the given path on each module load.
func NewELFResolverFactory() ResolverFactory {
	return func(path string, base uint64) (Resolver, error) {
		return newELFResolver(path, base)
	}
}

func newELFResolver(path string, base uint64) (Resolver, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("symbols: open %s: %w", path, err)
	}

	r := &elfResolver{file: f, base: base}
	if f.Type == elf.ET_DYN {
		r.loadBias = base
	}

	syms, err := f.Symbols()
	if err != nil {
		syms = nil // static binaries may be stripped; this is not fatal
	}
	dynsyms, _ := f.DynamicSymbols()
	syms = append(syms, dynsyms...)

	for _, s := range syms {
		if elf.ST_TYPE(s.Info) != elf.STT_FUNC || s.Value == 0 {
			continue
		}
		r.symbols = append(r.symbols, s)
	}
	sort.Slice(r.symbols, func(i, j int) bool { return r.symbols[i].Value < r.symbols[j].Value })

	if d, err := f.DWARF(); err == nil {
		r.dwarf = d
	}

	return r, nil
}

// Resolve implements Resolver.
func (r *elfResolver) Resolve(addr uint64) (name string, base uint64, size uint32, ok bool) {
	fileAddr := addr - r.loadBias

	i := sort.Search(len(r.symbols), func(i int) bool { return r.symbols[i].Value > fileAddr }) - 1
	if i < 0 || i >= len(r.symbols) {
		return "", 0, 0, false
	}

	sym := r.symbols[i]
	if sym.Size != 0 && fileAddr >= sym.Value+sym.Size {
		return "", 0, 0, false
	}

	return sym.Name, sym.Value + r.loadBias, uint32(sym.Size), true
}

// Line implements Resolver.
func (r *elfResolver) Line(addr uint64) (file string, line uint32, ok bool) {
	if r.dwarf == nil {
		return "", 0, false
	}
	fileAddr := addr - r.loadBias

	reader := r.dwarf.Reader()
	for {
		entry, err := reader.Next()
		if err != nil || entry == nil {
			return "", 0, false
		}
		if entry.Tag != dwarf.TagCompileUnit {
			continue
		}

		lr, err := r.dwarf.LineReader(entry)
		if err != nil || lr == nil {
			continue
		}

		var le dwarf.LineEntry
		if err := lr.SeekPC(fileAddr, &le); err != nil {
			continue
		}
		return le.File.Name, uint32(le.Line), true
	}
}

// Close implements Resolver.
func (r *elfResolver) Close() error {
	return r.file.Close()
}
