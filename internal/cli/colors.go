// Package cli holds the terminal output helpers shared by the command line
// and the interactive wizard.
package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
)

// Expiry warning window.
const expiringSoon = 30 * 24 * time.Hour

var (
	green  = color.New(color.FgGreen)
	red    = color.New(color.FgRed)
	yellow = color.New(color.FgYellow)
	blue   = color.New(color.FgBlue)
	bold   = color.New(color.Bold)
)

// FormatKind returns a colored CA kind ("root", "sub", "not-a-ca").
func FormatKind(kind string) string {
	switch kind {
	case "root":
		return green.Sprint(kind)
	case "sub":
		return blue.Sprint(kind)
	case "not-a-ca", "error":
		return red.Sprint(kind)
	default:
		return kind
	}
}

// FormatExpiry returns notAfter as a date, colored by how close it is.
func FormatExpiry(notAfter, now time.Time) string {
	date := notAfter.UTC().Format("2006-01-02")
	switch {
	case !now.Before(notAfter):
		return red.Sprint(date + " (expired)")
	case notAfter.Sub(now) < expiringSoon:
		return yellow.Sprint(date)
	default:
		return date
	}
}

// Successf prints a green line.
func Successf(w io.Writer, format string, args ...any) {
	_, _ = green.Fprintf(w, format+"\n", args...)
}

// Warnf prints a yellow line.
func Warnf(w io.Writer, format string, args ...any) {
	_, _ = yellow.Fprintf(w, format+"\n", args...)
}

// Errorf prints a red line.
func Errorf(w io.Writer, format string, args ...any) {
	_, _ = red.Fprintf(w, format+"\n", args...)
}

// Heading prints a bold line.
func Heading(w io.Writer, text string) {
	_, _ = bold.Fprintln(w, text)
}

// Infof prints an uncolored line.
func Infof(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format+"\n", args...)
}
