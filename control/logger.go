// control/logger.go
// Author: momentics <momentics@gmail.com>
//
// Minimal diagnostic logger. No component in this repository's corpus
// reaches for a structured-logging library; this wraps the standard
// log.Logger the same way DebugProbes wraps a plain function map —
// just enough structure to prefix every line with a component tag.

package control

import (
	"log"
	"os"
)

// Logger prefixes every line with a component tag, for the runtime's
// own diagnostic output (fatal aborts, VM reservation retries, cache
// eviction stalls) — never for request/response application logging,
// which is out of scope for a shared-memory engine.
type Logger struct {
	std *log.Logger
}

// NewLogger returns a Logger writing to stderr, tagging every line
// with component.
func NewLogger(component string) *Logger {
	return &Logger{std: log.New(os.Stderr, "["+component+"] ", log.LstdFlags)}
}

// Printf logs a formatted diagnostic line.
func (l *Logger) Printf(format string, args ...any) {
	l.std.Printf(format, args...)
}

// Fatalf logs a formatted diagnostic line and then calls os.Exit(1),
// for the dispositions spec.md §7 calls unrecoverable aborts.
func (l *Logger) Fatalf(format string, args ...any) {
	l.std.Fatalf(format, args...)
}
