// Package monitoring holds the diagnostic logger shared by the gridfill
// internal packages.
package monitoring

import (
	"fmt"
	"log"
)

// Logf is the package-level diagnostic logger used by the loader, writer,
// interpolator and run history. It defaults to log.Printf; the CLI mutes it
// with SetLogger(nil) when -quiet is given.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Capture redirects Logf into the returned slice until restore is called.
// Tests use it to assert on loader and interpolator diagnostics.
func Capture() (lines *[]string, restore func()) {
	original := Logf
	captured := []string{}
	Logf = func(format string, v ...interface{}) {
		captured = append(captured, fmt.Sprintf(format, v...))
	}
	return &captured, func() { Logf = original }
}
