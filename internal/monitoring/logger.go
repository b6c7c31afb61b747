// Package monitoring carries the daemon's diagnostic logger and the admin
// debug routes for inspecting and tuning a running tracker.
package monitoring

import (
	"io"
	"log"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil mutes it.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// SetLogWriter sends admin messages to w with an "[admin] " prefix, in the
// same format as the pipeline log streams. A nil writer mutes them.
func SetLogWriter(w io.Writer) {
	if w == nil {
		SetLogger(nil)
		return
	}
	SetLogger(log.New(w, "[admin] ", log.LstdFlags|log.Lmicroseconds).Printf)
}
