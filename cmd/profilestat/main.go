// Command profilestat reads a serialized profile file in the format
// aggregate.WriteFile produces (SPEC_FULL.md §6 format) and prints a flat
// profile, or exports it as a .pprof file for use with `go tool pprof` —
// exercising the google/pprof/profile dependency end to end without
// requiring the GUI front end this spec explicitly excludes.
package main

import (
	"fmt"
	"os"
	"sort"

	flag "github.com/spf13/pflag"

	"github.com/nativeprof/profiler/internal/aggregate"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("profilestat", flag.ContinueOnError)
	pprofOut := fs.String("pprof", "", "write a .pprof export to this path instead of printing text")
	showEmpty := fs.Bool("show-empty-file-frames", false, "keep frames with no known source file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: profilestat [--pprof out.pprof] <profile-file>")
	}

	f, err := os.Open(fs.Arg(0))
	if err != nil {
		return err
	}
	defer f.Close()

	ptrSize, blob, err := aggregate.ReadFile(f)
	if err != nil {
		return fmt.Errorf("reading %s: %w", fs.Arg(0), err)
	}

	flat, graph, _, total, err := aggregate.CreateProfile(ptrSize, *showEmpty, blob)
	if err != nil {
		return fmt.Errorf("aggregating profile: %w", err)
	}

	if *pprofOut != "" {
		decoded, err := aggregate.Decode(ptrSize, blob)
		if err != nil {
			return err
		}
		prof := aggregate.ToPprof(decoded, graph)
		out, err := os.Create(*pprofOut)
		if err != nil {
			return err
		}
		defer out.Close()
		return prof.Write(out)
	}

	printFlat(flat, total)
	return nil
}

func printFlat(flat *aggregate.Flat, total int) {
	fmt.Printf("%d samples total\n", total)
	for _, thread := range flat.Threads {
		if len(thread.Symbols) == 0 {
			continue
		}
		fmt.Printf("\n%s\n", thread.Name)

		type row struct {
			symbol uint32
			self   uint32
			total  uint32
		}
		rows := make([]row, 0, len(thread.Symbols))
		for id, fs := range thread.Symbols {
			rows = append(rows, row{id, fs.Self, fs.Total})
		}
		sort.Slice(rows, func(i, j int) bool { return rows[i].self > rows[j].self })

		fmt.Printf("%10s %10s  %s\n", "self", "total", "symbol")
		for _, r := range rows {
			fmt.Printf("%10d %10d  #%d\n", r.self, r.total, r.symbol)
		}
	}
}
