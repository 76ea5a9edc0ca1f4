package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/adam-ii/dos-int21h/common"
	"github.com/adam-ii/dos-int21h/internal/config"
	"github.com/adam-ii/dos-int21h/internal/dos"
	"github.com/adam-ii/dos-int21h/internal/ivt"
	"github.com/adam-ii/dos-int21h/internal/machine"
	"github.com/adam-ii/dos-int21h/internal/tracer"
	"github.com/adam-ii/dos-int21h/internal/workload"
)

// runCmd implements subcommands.Command for the "run" command.
type runCmd struct{}

// Name implements subcommands.Command.
func (*runCmd) Name() string {
	return "run"
}

// Synopsis implements subcommands.Command.
func (*runCmd) Synopsis() string {
	return "trace the io.h and stdio.h demo programs reading a file"
}

// Usage implements subcommands.Command.
func (*runCmd) Usage() string {
	return `run [file] - open, read, tell and close file through both runtime layers
with the DOS gate traced. file defaults to this executable.
`
}

// SetFlags implements subcommands.Command.
func (*runCmd) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command. The demo always exits with
// success; problems are logged.
func (*runCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() > 1 {
		fmt.Fprintf(os.Stderr, "unexpected arguments: %s\n", f.Args()[1:])
		return subcommands.ExitUsageError
	}
	cfg, log, err := setup()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}

	name := f.Arg(0)
	if name == "" {
		name = self()
	}
	if err := run(cfg, log, name); err != nil {
		log.Error(err)
	}
	return subcommands.ExitSuccess
}

func self() string {
	if exe, err := os.Executable(); err == nil {
		return exe
	}
	return os.Args[0]
}

func run(cfg *config.Config, log common.FieldLogger, name string) error {
	m, err := machine.New(log.WithField("component", "machine"))
	if err != nil {
		return err
	}
	defer m.Close()
	for _, img := range cfg.Memory {
		if err := m.LoadImage(img.Path, uint64(img.Base)); err != nil {
			return err
		}
	}

	kernel := dos.New(m, cfg.Root, log.WithField("component", "dos"))
	defer kernel.Close()
	kernel.Install(cfg.Gate)

	var vectors ivt.Vectors = machine.NewDOSVectors(m, cfg.Gate)
	if cfg.DirectVectors {
		vectors = m.IVT
	}
	sess := tracer.New(m, vectors, tracer.Options{
		Gate:       cfg.Gate,
		BufferSize: cfg.BufferSize,
		MaxString:  cfg.MaxString,
		Output:     os.Stdout,
	}, log.WithField("gate", fmt.Sprintf("%02xh", cfg.Gate)))

	lowLevel := workload.NewLowLevel(m, cfg.Gate)
	if err := workload.RunIO(sess, lowLevel, name); err != nil {
		return fmt.Errorf("io.h demo: %w", err)
	}
	if err := workload.RunStdio(sess, workload.NewStdio(lowLevel), name); err != nil {
		return fmt.Errorf("stdio.h demo: %w", err)
	}
	log.Logf(common.SeverityDebug, "%d traps taken", sess.Shim().Traps())
	return nil
}
