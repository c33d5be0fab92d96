// Copyright 2024 The Viua Authors
// This file is part of Viua.
//
// Viua is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Viua is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Viua. If not, see <http://www.gnu.org/licenses/>.

// Command viua loads a compiled image and runs it, disassembles it, or
// lists the processes a run spawns. Subcommand plumbing follows
// cmd/devp2p's gopkg.in/urfave/cli.v1 idiom; argument handling otherwise
// keeps probe-lang/cmd/probec's directness (one positional file argument,
// a handful of flags, no interactive prompts).
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/urfave/cli.v1"

	"github.com/viua-lang/viua/internal/viua/bytecode"
	"github.com/viua-lang/viua/internal/viua/diag"
	"github.com/viua-lang/viua/internal/viua/exec"
	"github.com/viua-lang/viua/internal/viua/kernel"
)

const version = "0.1.0"

func main() {
	app := cli.NewApp()
	app.Name = "viua"
	app.Usage = "the Viua register VM loader"
	app.Version = version
	app.Commands = []cli.Command{
		runCommand,
		disasmCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "viua: %v\n", err)
		os.Exit(1)
	}
}

var entryFlag = cli.StringFlag{
	Name:  "entry",
	Value: "main/0",
	Usage: "function to spawn as the entry process",
}

var workersFlag = cli.IntFlag{
	Name:  "workers",
	Value: 0,
	Usage: "scheduler worker goroutines (0: kernel default)",
}

var ffiWorkersFlag = cli.IntFlag{
	Name:  "ffi-workers",
	Value: 0,
	Usage: "foreign-call worker goroutines (0: kernel default)",
}

var quantumFlag = cli.IntFlag{
	Name:  "quantum",
	Value: 0,
	Usage: "instructions executed per process before yielding (0: kernel default)",
}

var psFlag = cli.BoolFlag{
	Name:  "ps",
	Usage: "print a process table snapshot every --ps-interval while the program runs",
}

var psIntervalFlag = cli.DurationFlag{
	Name:  "ps-interval",
	Value: 200 * time.Millisecond,
	Usage: "polling interval for --ps",
}

var runCommand = cli.Command{
	Name:      "run",
	Usage:     "load and execute a compiled image",
	ArgsUsage: "<image.out>",
	Flags:     []cli.Flag{entryFlag, workersFlag, ffiWorkersFlag, quantumFlag, psFlag, psIntervalFlag},
	Action:    runAction,
}

var disasmCommand = cli.Command{
	Name:      "disasm",
	Usage:     "decode a compiled image's instruction stream",
	ArgsUsage: "<image.out>",
	Action:    disasmAction,
}

func readImage(ctx *cli.Context) (string, []byte, error) {
	if ctx.NArg() < 1 {
		return "", nil, fmt.Errorf("usage: viua %s [flags] <image.out>", ctx.Command.Name)
	}
	path := ctx.Args().First()
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return path, raw, nil
}

func runAction(ctx *cli.Context) error {
	path, raw, err := readImage(ctx)
	if err != nil {
		return err
	}

	printer := diag.NewPrinter(os.Stdout)
	k, err := kernel.Load(raw, kernel.Config{
		Workers:    ctx.Int(workersFlag.Name),
		FFIWorkers: ctx.Int(ffiWorkersFlag.Name),
		Quantum:    ctx.Int(quantumFlag.Name),
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
	})
	if err != nil {
		printer.Error(path, err)
		os.Exit(1)
	}
	defer k.Close()

	runCtx := context.Background()
	stopPS := func() {}
	if ctx.Bool(psFlag.Name) {
		runCtx, stopPS = watchProcesses(runCtx, k, ctx.Duration(psIntervalFlag.Name))
	}

	outcome, err := k.Run(runCtx, ctx.String(entryFlag.Name), nil)
	stopPS()
	if err != nil {
		printer.Error(path, err)
		os.Exit(1)
	}
	printer.Outcome(ctx.String(entryFlag.Name), outcome)
	if outcome.Exception != nil {
		os.Exit(1)
	}
	return nil
}

// watchProcesses prints a Snapshot table on every tick until the returned
// stop func runs, piggybacking the run's own context for cancellation
// (SPEC_FULL.md domain stack item 9's `--ps` process listing).
func watchProcesses(parent context.Context, k *kernel.Kernel, interval time.Duration) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				printSnapshot(k.Snapshot())
			}
		}
	}()
	return ctx, func() {
		cancel()
		<-done
	}
}

// printSnapshot renders the processes Snapshot returns, which already
// excludes hidden watchdog processes (SPEC_FULL.md's supplemented
// watchdog-visibility rule).
func printSnapshot(procs []kernel.ProcessInfo) {
	table := tablewriter.NewWriter(os.Stderr)
	table.SetHeader([]string{"PID", "STATE", "DISOWNED"})
	for _, p := range procs {
		table.Append([]string{
			fmt.Sprintf("%d", p.PID),
			p.State.String(),
			fmt.Sprintf("%t", p.Disowned),
		})
	}
	table.Render()
}

func disasmAction(ctx *cli.Context) error {
	path, raw, err := readImage(ctx)
	if err != nil {
		return err
	}

	img, err := bytecode.Decode(raw)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}

	instrs, err := exec.Disassemble(img.Code)
	if err != nil {
		return fmt.Errorf("disassembling %s: %w", path, err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"OFFSET", "INSTRUCTION"})
	table.SetAutoWrapText(false)
	for _, in := range instrs {
		table.Append([]string{fmt.Sprintf("%06d", in.Offset), in.String()})
	}
	table.Render()
	return nil
}
