package aggregate

import (
	"github.com/google/pprof/profile"
)

// ToPprof exports a call graph as a pprof profile, one sample per
// observed leaf-to-root path, with the "samples" value type. The
// location/function caching here follows the same pattern as
// wzprof.go's buildProfile/locationForCall: functions are deduplicated
// by a stable key and locations are interned so that repeated call
// paths share pprof IDs.
func ToPprof(decoded *Decoded, graph *CallGraph) *profile.Profile {
	prof := &profile.Profile{
		SampleType: []*profile.ValueType{{Type: "samples", Unit: "count"}},
	}

	locationID := uint64(1)
	functionID := uint64(1)
	locationCache := make(map[uint32]*profile.Location) // keyed by symbol id
	functionCache := make(map[uint32]*profile.Function)  // keyed by symbol id

	locationFor := func(symbolID uint32) *profile.Location {
		if loc := locationCache[symbolID]; loc != nil {
			return loc
		}
		sym, _ := decoded.symbol(symbolID)
		fn := functionCache[symbolID]
		if fn == nil {
			fn = &profile.Function{
				ID:         functionID,
				Name:       sym.Name,
				SystemName: sym.Name,
				Filename:   decoded.str(sym.File),
			}
			functionID++
			functionCache[symbolID] = fn
		}
		loc := &profile.Location{
			ID:      locationID,
			Address: sym.Address,
			Line:    []profile.Line{{Function: fn, Line: int64(sym.Line)}},
		}
		locationID++
		locationCache[symbolID] = loc
		return loc
	}

	for _, thread := range graph.Threads {
		var walk func(node *CallGraphNode, path []*profile.Location)
		walk = func(node *CallGraphNode, path []*profile.Location) {
			if node.Self > 0 {
				// pprof expects the leaf (innermost) frame first.
				location := make([]*profile.Location, len(path))
				for i, l := range path {
					location[len(path)-1-i] = l
				}
				prof.Sample = append(prof.Sample, &profile.Sample{
					Location: location,
					Value:    []int64{int64(node.Self)},
				})
			}
			for key, child := range node.Children {
				walk(child, append(path, locationFor(key.Symbol)))
			}
		}
		walk(thread.Root, nil)
	}

	prof.Location = make([]*profile.Location, len(locationCache))
	for _, loc := range locationCache {
		prof.Location[loc.ID-1] = loc
	}
	prof.Function = make([]*profile.Function, len(functionCache))
	for _, fn := range functionCache {
		prof.Function[fn.ID-1] = fn
	}

	return prof
}
