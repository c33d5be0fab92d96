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

package diag

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/viua-lang/viua/internal/viua/process"
	"github.com/viua-lang/viua/internal/viua/proto"
	"github.com/viua-lang/viua/internal/viua/value"
)

// A *bytes.Buffer is never a TTY, so NewPrinter writing to one emits plain
// text regardless of the host terminal — tests don't need isatty stubbing.

func TestOutcomeReportsReturnValue(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	p.Outcome("main/0", process.Outcome{Value: value.Integer(42)})
	out := buf.String()
	require.Contains(t, out, "main/0")
	require.Contains(t, out, "Integer(42)")
}

func TestOutcomeReportsException(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	exc := proto.NewException("DivideByZero", "division by zero")
	p.Outcome("main/0", process.Outcome{Exception: exc})
	out := buf.String()
	require.Contains(t, out, "DivideByZero")
	require.Contains(t, out, "division by zero")
}

func TestErrorReportsContext(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	p.Error("prog.out", errors.New("checksum mismatch"))
	require.True(t, strings.Contains(buf.String(), "prog.out"))
	require.True(t, strings.Contains(buf.String(), "checksum mismatch"))
}
