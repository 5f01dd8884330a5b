package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the weft banner followed by the version.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	p := out.ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{" __      __   ___  ___  _____", "#818cf8"},
		{" \\ \\ /\\ / /  / _ \\| __||_   _|", "#a78bfa"},
		{"  \\ V  V /  |  __/| _|   | |", "#c084fc"},
		{"   \\_/\\_/    \\___||_|    |_|", "#e879f9"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w, out.String("   workflow engine "+version).Faint())
	fmt.Fprintln(w)
}
