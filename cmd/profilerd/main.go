package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"

	"github.com/nativeprof/profiler/internal/router"
	"github.com/nativeprof/profiler/internal/sampler"
	"github.com/nativeprof/profiler/internal/symbols"
	"github.com/nativeprof/profiler/internal/wire"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type program struct {
	controlPipe string
	attachPid   int
	spawn       string
	spawnArgs   string
	spawnFolder string
	verbose     bool
}

func parseFlags(args []string) (*program, error) {
	fs := flag.NewFlagSet("profilerd", flag.ContinueOnError)
	p := &program{}
	fs.StringVar(&p.controlPipe, "control-pipe", "", "path to the control FIFO (required)")
	fs.IntVar(&p.attachPid, "attach", 0, "pid of an already-running process to attach to")
	fs.StringVar(&p.spawn, "spawn", "", "path of a new process to create and trace")
	fs.StringVar(&p.spawnArgs, "spawn-args", "", "arguments for --spawn")
	fs.StringVar(&p.spawnFolder, "spawn-folder", "", "working directory for --spawn")
	fs.BoolVar(&p.verbose, "verbose", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if p.controlPipe == "" && fs.NArg() > 0 {
		p.controlPipe = fs.Arg(0)
	}
	if p.controlPipe == "" {
		return nil, fmt.Errorf("a control pipe path (--control-pipe or positional argument) is required")
	}
	if p.attachPid == 0 && p.spawn == "" {
		return nil, fmt.Errorf("one of --attach or --spawn is required")
	}
	return p, nil
}

func run(ctx context.Context) error {
	prog, err := parseFlags(os.Args[1:])
	if err != nil {
		return err
	}

	level := zerolog.InfoLevel
	if prog.verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()

	pipe, err := os.OpenFile(prog.controlPipe, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("opening control pipe %q: %w", prog.controlPipe, err)
	}
	defer pipe.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts := sampler.DefaultOptions()
	var sess *sampler.Session
	ptrSize := 8

	startSession := func(pid int) error {
		sess = sampler.NewSession(pid, ptrSize, pipe, symbols.NewELFResolverFactory(), opts, logger)
		go func() {
			if err := sess.Run(ctx); err != nil {
				logger.Error().Err(err).Int("pid", pid).Msg("sampler session ended with an error")
			}
		}()
		return nil
	}

	r := router.New(router.Handlers{
		SetOptions: func(cmd wire.SetOptionsCommand) {
			opts = opts.WithCommand(cmd)
			if sess != nil {
				sess.SetOptions(opts)
			}
		},
		Stop: func() {
			logger.Info().Msg("STOP command received")
			cancel()
		},
		CreateProcess: func(cmd wire.CreateProcessCommand) {
			pid, err := spawnTraced(cmd)
			if err != nil {
				logger.Error().Err(err).Str("command", cmd.Command).Msg("failed to create process")
				return
			}
			if err := startSession(pid); err != nil {
				logger.Error().Err(err).Msg("failed to start sampler session")
			}
		},
		AttachProcess: func(pid uint32) {
			if err := startSession(int(pid)); err != nil {
				logger.Error().Err(err).Msg("failed to start sampler session")
			}
		},
	}, logger)

	if prog.attachPid != 0 {
		if err := startSession(prog.attachPid); err != nil {
			return err
		}
	} else if prog.spawn != "" {
		pid, err := spawnTraced(wire.CreateProcessCommand{
			Command: prog.spawn, Args: prog.spawnArgs, Folder: prog.spawnFolder,
		})
		if err != nil {
			return err
		}
		if err := startSession(pid); err != nil {
			return err
		}
	}

	return readLoop(ctx, pipe, r)
}

func readLoop(ctx context.Context, pipe *os.File, r *router.Router) error {
	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)
	done := make(chan error, 1)

	go func() {
		for {
			n, err := pipe.Read(chunk)
			if n > 0 {
				buf = append(buf, chunk[:n]...)
				consumed, ferr := r.Feed(buf)
				buf = append(buf[:0], buf[consumed:]...)
				if ferr != nil {
					done <- ferr
					return
				}
			}
			if err != nil {
				done <- err
				return
			}
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-done:
		return err
	}
}
