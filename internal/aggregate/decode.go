package aggregate

import "fmt"

// Decode parses the serialized profile byte stream described in
// SPEC_FULL.md §6: a string table, a symbol table (addresses encoded at
// ptrSize bytes), then one entry stream per thread. Within a thread's
// stream, a symbol id of 0 is a sentinel marking the end of one
// completed stack; the thread's declared entry count may span several
// such stacks back to back.
func Decode(ptrSize int, data []byte) (*Decoded, error) {
	if ptrSize != 4 && ptrSize != 8 {
		return nil, fmt.Errorf("aggregate: unsupported ptrSize %d", ptrSize)
	}

	r := &reader{buf: data}

	stringCount, err := r.u32()
	if err != nil {
		return nil, fmt.Errorf("aggregate: string count: %w", err)
	}
	strings := make(map[uint32]string, stringCount)
	for i := uint32(0); i < stringCount; i++ {
		id, err := r.u32()
		if err != nil {
			return nil, fmt.Errorf("aggregate: string %d id: %w", i, err)
		}
		s, err := r.str()
		if err != nil {
			return nil, fmt.Errorf("aggregate: string %d body: %w", i, err)
		}
		strings[id] = s
	}

	symbolCount, err := r.u32()
	if err != nil {
		return nil, fmt.Errorf("aggregate: symbol count: %w", err)
	}
	symbols := make(map[uint32]Symbol, symbolCount)
	for i := uint32(0); i < symbolCount; i++ {
		sym, err := r.symbol(ptrSize)
		if err != nil {
			return nil, fmt.Errorf("aggregate: symbol %d: %w", i, err)
		}
		symbols[sym.ID] = sym
	}

	threadCount, err := r.u32()
	if err != nil {
		return nil, fmt.Errorf("aggregate: thread count: %w", err)
	}
	threads := make([][][]Entry, threadCount)
	for i := uint32(0); i < threadCount; i++ {
		entryCount, err := r.u32()
		if err != nil {
			return nil, fmt.Errorf("aggregate: thread %d entry count: %w", i, err)
		}
		var stacks [][]Entry
		var cur []Entry
		for j := uint32(0); j < entryCount; j++ {
			e, err := r.entry()
			if err != nil {
				return nil, fmt.Errorf("aggregate: thread %d entry %d: %w", i, j, err)
			}
			if e.SymbolID == 0 {
				if len(cur) > 0 {
					stacks = append(stacks, cur)
				}
				cur = nil
				continue
			}
			cur = append(cur, e)
		}
		threads[i] = stacks
	}

	if !r.done() {
		return nil, fmt.Errorf("aggregate: %d trailing bytes after decoding", len(r.buf)-r.off)
	}

	return &Decoded{Strings: strings, Symbols: symbols, Threads: threads}, nil
}

type reader struct {
	buf []byte
	off int
}

func (r *reader) done() bool { return r.off == len(r.buf) }

func (r *reader) need(n int) error {
	if len(r.buf)-r.off < n {
		return fmt.Errorf("aggregate: truncated input, need %d bytes, have %d", n, len(r.buf)-r.off)
	}
	return nil
}

func (r *reader) u32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := getUint32(r.buf[r.off:])
	r.off += 4
	return v, nil
}

func (r *reader) u64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := getUint64(r.buf[r.off:])
	r.off += 8
	return v, nil
}

func (r *reader) addr(ptrSize int) (uint64, error) {
	if ptrSize == 4 {
		v, err := r.u32()
		return uint64(v), err
	}
	return r.u64()
}

func (r *reader) str() (string, error) {
	n, err := r.u32()
	if err != nil {
		return "", err
	}
	if err := r.need(int(n)); err != nil {
		return "", err
	}
	s := string(r.buf[r.off : r.off+int(n)])
	r.off += int(n)
	return s, nil
}

func (r *reader) symbol(ptrSize int) (Symbol, error) {
	id, err := r.u32()
	if err != nil {
		return Symbol{}, err
	}
	name, err := r.str()
	if err != nil {
		return Symbol{}, err
	}
	addr, err := r.addr(ptrSize)
	if err != nil {
		return Symbol{}, err
	}
	size, err := r.u32()
	if err != nil {
		return Symbol{}, err
	}
	module, err := r.u32()
	if err != nil {
		return Symbol{}, err
	}
	file, err := r.u32()
	if err != nil {
		return Symbol{}, err
	}
	line, err := r.u32()
	if err != nil {
		return Symbol{}, err
	}
	lineLast, err := r.u32()
	if err != nil {
		return Symbol{}, err
	}
	return Symbol{
		ID: id, Name: name, Address: addr, Size: size,
		Module: module, File: file, Line: line, LineLast: lineLast,
	}, nil
}

func (r *reader) entry() (Entry, error) {
	sym, err := r.u32()
	if err != nil {
		return Entry{}, err
	}
	line, err := r.u32()
	if err != nil {
		return Entry{}, err
	}
	offset, err := r.u32()
	if err != nil {
		return Entry{}, err
	}
	return Entry{SymbolID: sym, Line: line, Offset: offset}, nil
}

func getUint32(b []byte) uint32 {
	_ = b[3]
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func getUint64(b []byte) uint64 {
	_ = b[7]
	return uint64(getUint32(b)) | uint64(getUint32(b[4:]))<<32
}

func putUint32(b []byte, v uint32) {
	_ = b[3]
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func putUint64(b []byte, v uint64) {
	_ = b[7]
	putUint32(b[0:4], uint32(v))
	putUint32(b[4:8], uint32(v>>32))
}
