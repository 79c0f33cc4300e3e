//go:build linux

package sampler

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// mapping is one line of /proc/<pid>/maps: a file-backed address range.
type mapping struct {
	start, end uint64
	path       string
}

// readMaps parses the file-backed entries of the target's memory map.
// Anonymous mappings (stack, heap, bare "rw-p" anonymous regions) carry
// no pathname and are skipped; they have no ELF image to symbolize.
func readMaps(pid int) ([]mapping, error) {
	f, err := os.Open(fmt.Sprintf("/proc/%d/maps", pid))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []mapping
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 6 {
			continue
		}
		path := fields[5]
		if !strings.HasPrefix(path, "/") {
			continue
		}
		bounds := strings.SplitN(fields[0], "-", 2)
		if len(bounds) != 2 {
			continue
		}
		start, err1 := strconv.ParseUint(bounds[0], 16, 64)
		end, err2 := strconv.ParseUint(bounds[1], 16, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		out = append(out, mapping{start: start, end: end, path: path})
	}
	return out, sc.Err()
}

// scanModules reads the traced process's current memory map and
// registers every file-backed image not already known as a module
// (spec.md §4.5's process-create/attach contract: "load the image as a
// module", repeated on every sampling tick so libraries opened after
// attach — dlopen, or a dynamic linker still resolving at attach time —
// are picked up too). A file mapped across several segments (its
// separate read-only/executable/data ranges) is merged into a single
// module spanning their full address range.
func (s *Session) scanModules() {
	mappings, err := readMaps(s.pid)
	if err != nil {
		s.logger.Warn().Err(err).Int("pid", s.pid).Msg("failed to read process memory map")
		return
	}

	type bounds struct{ start, end uint64 }
	ranges := make(map[string]bounds, len(mappings))
	for _, m := range mappings {
		b, ok := ranges[m.path]
		if !ok {
			ranges[m.path] = bounds{m.start, m.end}
			continue
		}
		if m.start < b.start {
			b.start = m.start
		}
		if m.end > b.end {
			b.end = m.end
		}
		ranges[m.path] = b
	}

	for path, b := range ranges {
		if s.knownModules[path] {
			continue
		}
		s.knownModules[path] = true
		if _, err := s.symbols.Load(0, path, b.start, uint32(b.end-b.start)); err != nil {
			s.logger.Warn().Err(err).Str("module", path).Msg("failed to load module symbols")
		}
	}
}
