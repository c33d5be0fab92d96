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

// Package diag renders the outcome of a run for a terminal: a colorized
// "ok"/"exception" line plus, for an exception, its type and message. Color
// is only ever written to a real TTY, the way cmd/probec's plain
// fmt.Fprintf(os.Stderr, ...) error reporting is adapted here with
// isatty-gated color instead of always-on escape codes.
package diag

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/viua-lang/viua/internal/viua/process"
	"github.com/viua-lang/viua/internal/viua/value"
)

// Printer renders run outcomes and load/run errors to an io.Writer,
// colorizing only when that writer is a TTY.
type Printer struct {
	w       io.Writer
	ok      *color.Color
	warn    *color.Color
	failure *color.Color
	bold    *color.Color
}

// NewPrinter builds a Printer writing to w. isTerminal is evaluated against
// w's file descriptor when w is an *os.File; callers writing to a buffer
// (tests, a log file) get plain, uncolored text.
func NewPrinter(w io.Writer) *Printer {
	tty := false
	if f, ok := w.(*os.File); ok {
		tty = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	mk := func(attrs ...color.Attribute) *color.Color {
		c := color.New(attrs...)
		if !tty {
			c.DisableColor()
		}
		return c
	}
	return &Printer{
		w:       w,
		ok:      mk(color.FgGreen, color.Bold),
		warn:    mk(color.FgYellow),
		failure: mk(color.FgRed, color.Bold),
		bold:    mk(color.Bold),
	}
}

// Error reports a load/run error that aborted before any process outcome
// existed (a malformed image, an unresolved entry function).
func (p *Printer) Error(context string, err error) {
	p.failure.Fprintf(p.w, "error: ")
	fmt.Fprintf(p.w, "%s: %v\n", context, err)
}

// Outcome reports a terminated process's result: its returned value, or an
// uncaught exception's type and message (spec.md 8's "uncaught exception
// terminates the process" law).
func (p *Printer) Outcome(entryFn string, outcome process.Outcome) {
	if outcome.Exception != nil {
		p.failure.Fprintf(p.w, "exception: ")
		fmt.Fprintf(p.w, "%s in %s: %s\n", outcome.Exception.TypeName(), entryFn, outcome.Exception.ToText())
		return
	}
	p.ok.Fprintf(p.w, "ok: ")
	fmt.Fprintf(p.w, "%s returned %s\n", entryFn, describe(outcome.Value))
}

// Warn reports a non-fatal condition (e.g. a watchdog itself raising).
func (p *Printer) Warn(format string, args ...interface{}) {
	p.warn.Fprintf(p.w, "warning: ")
	fmt.Fprintf(p.w, format+"\n", args...)
}

func describe(v value.Value) string {
	if v == nil {
		return "void"
	}
	return fmt.Sprintf("%s(%s)", v.TypeName(), v.ToText())
}
