// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lmlovo

import (
	"fmt"
	"io"
	"os"
)

// LogLevel controls the frequency and type of logger output
type LogLevel int

const (
	// LogNoop no output is generated (level < 0)
	LogNoop LogLevel = -1
	// LogLast print only one line at the last iteration
	LogLast LogLevel = 0
	// LogEval print also f and ‖g‖ every `level` iterations for any (0 < level < 99)
	LogEval LogLevel = 1
	// LogTrace print details of every iteration including rejected damped steps
	LogTrace LogLevel = 99
	// LogVerbose print also θ and g of every iteration (level > 100)
	LogVerbose LogLevel = 101
)

// Logger handles logging output for the solver and the multistart driver.
// Note the writer must be thread-safe when runs are executed concurrently.
type Logger struct {
	Level LogLevel
	Msg   io.Writer // Writer to output log messages.
}

// Enable reports whether messages of the given level are written.
func (l *Logger) Enable(level LogLevel) bool {
	return l != nil && l.Level >= level
}

// Log writes a formatted message.
func (l *Logger) Log(format string, a ...any) {
	if len(a) > 0 {
		_, _ = fmt.Fprintf(l.Msg, format, a...)
	} else {
		_, _ = fmt.Fprint(l.Msg, format)
	}
}

// Normalize returns a usable copy of the logger:
// nil discards every message and a nil Msg writes to stdout.
func (l *Logger) Normalize() Logger {
	if l == nil {
		return Logger{Level: LogNoop, Msg: io.Discard}
	}
	c := *l
	if c.Msg == nil {
		c.Msg = os.Stdout
	}
	return c
}

func (l *Logger) vector(name string, v []float64) {
	l.Log("\n %s =", name)
	for i, x := range v {
		l.Log(" %.2e", x)
		if (i+1)%6 == 0 {
			l.Log("\n     ")
		}
	}
	l.Log("\n")
}
