package aggregate

import "golang.org/x/exp/slices"

// CreateProfile builds the flat profile, call graph and file profile for
// a decoded stream of sampled stacks (spec.md §4.7).
//
// When showEmptyFileFrames is false, each stack's trailing run of
// empty-file frames (the ones closest to the bottom of the stack, i.e.
// most recently pushed while the stack was being assembled) is trimmed.
// If more than one frame was trimmed, the frame adjacent to the kept
// portion is re-injected as a synthetic outermost caller, preserving one
// frame of context about where the real code was entered from; a single
// trimmed frame is dropped outright with no replacement.
func CreateProfile(ptrSize int, showEmptyFileFrames bool, data []byte) (*Flat, *CallGraph, *FileProfile, int, error) {
	decoded, err := Decode(ptrSize, data)
	if err != nil {
		return nil, nil, nil, 0, err
	}

	flat := &Flat{Threads: make([]ThreadFlat, len(decoded.Threads))}
	graph := &CallGraph{Threads: make([]ThreadCallGraph, len(decoded.Threads))}
	files := make(FileProfile)
	total := 0

	for ti, stacks := range decoded.Threads {
		tf := ThreadFlat{Name: threadName(ti), Symbols: make(map[uint32]*FlatSymbol)}
		tg := ThreadCallGraph{Name: threadName(ti), Root: newCallGraphNode()}

		for _, raw := range stacks {
			stack := raw
			if !showEmptyFileFrames {
				stack = trimEmptyFileFrames(decoded, raw)
			}
			if len(stack) == 0 {
				continue
			}
			total++

			addFlat(decoded, tf.Symbols, stack)
			addCallGraph(decoded, tg.Root, stack)
			addFileSamples(decoded, files, stack)
		}

		flat.Threads[ti] = tf
		graph.Threads[ti] = tg
	}

	populateDefLines(decoded, files)

	return flat, graph, &files, total, nil
}

func isEmptyFile(d *Decoded, e Entry) bool {
	sym, ok := d.symbol(e.SymbolID)
	if !ok {
		return true
	}
	return d.str(sym.File) == ""
}

// trimEmptyFileFrames implements the bottom-up commit rule described in
// SPEC_FULL.md's open-question resolution for §9.
func trimEmptyFileFrames(d *Decoded, entries []Entry) []Entry {
	cut := len(entries)
	for cut > 0 && isEmptyFile(d, entries[cut-1]) {
		cut--
	}
	if cut == 0 {
		// The entire stack is empty-file; nothing survives.
		return nil
	}

	committed := slices.Clone(entries[:cut])

	removed := len(entries) - cut
	if removed > 1 {
		committed = append(committed, entries[cut])
	}
	return committed
}

func addFlat(d *Decoded, symbols map[uint32]*FlatSymbol, stack []Entry) {
	seen := make(map[uint32]bool, len(stack))
	for i, e := range stack {
		fs := symbols[e.SymbolID]
		if fs == nil {
			fs = &FlatSymbol{}
			symbols[e.SymbolID] = fs
		}
		if i == 0 {
			fs.Self++
		}
		if !seen[e.SymbolID] {
			fs.Total++
			seen[e.SymbolID] = true
		}
	}
}

// addCallGraph descends from the outermost (bottom) frame toward the
// top, so the root's direct children are the stack's outermost frames.
func addCallGraph(d *Decoded, root *CallGraphNode, stack []Entry) {
	node := root
	node.Total++
	for i := len(stack) - 1; i >= 0; i-- {
		e := stack[i]
		callerLine := uint32(0)
		if i+1 < len(stack) {
			callerLine = stack[i+1].Line
		}
		node = node.child(CallGraphKey{Symbol: e.SymbolID, CallerLine: callerLine})
		node.Total++
		if i == 0 {
			node.Self++
		}
	}
}

// addFileSamples implements spec.md §4.7's per-file rules: perLine and
// perAddress are keyed directly off each entry's own fields, while
// lineToSymbol is keyed off the *caller's* file/line for each
// consecutive (caller, callee) pair, bottom-up, mapping to the callee
// observed at that call site. stack[i+1] is the caller of stack[i],
// matching addCallGraph's frame ordering.
func addFileSamples(d *Decoded, files FileProfile, stack []Entry) {
	for i, e := range stack {
		sym, ok := d.symbol(e.SymbolID)
		if ok {
			if file := d.str(sym.File); file != "" {
				fs := files.of(file)
				if e.Line != 0 {
					fs.PerLine[e.Line]++
				}
				fs.PerAddress[e.Offset]++
			}
		}

		if !ok || i+1 >= len(stack) {
			continue
		}
		caller := stack[i+1]
		callerSym, callerOk := d.symbol(caller.SymbolID)
		if !callerOk {
			continue
		}
		if callerFile := d.str(callerSym.File); callerFile != "" {
			files.of(callerFile).LineToSymbol[caller.Line] = sym
		}
	}
}

// populateDefLines implements spec.md §4.7's final file-profile rule:
// for every known symbol with a non-empty file, regardless of whether
// it was sampled as a caller or a callee, record its definition line.
func populateDefLines(d *Decoded, files FileProfile) {
	for _, sym := range d.Symbols {
		if file := d.str(sym.File); file != "" {
			files.of(file).DefLineToSymbol[sym.Line] = sym
		}
	}
}
