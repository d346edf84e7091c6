package config

import (
	"fmt"
	"io"
	"os"
)

// Exitf writes a formatted error message to stderr and exits with code 1.
// It provides a consistent fatal-exit pattern for CLI entry points.
func Exitf(format string, args ...any) {
	ExitWithCode(1, format, args...)
}

// ExitWithCode writes a formatted error message to stderr and exits with code.
func ExitWithCode(code int, format string, args ...any) {
	writeLine(os.Stderr, format, args...)
	os.Exit(code)
}

func writeLine(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, format+"\n", args...)
}
