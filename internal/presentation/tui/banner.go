package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the aris banner and version to w.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	p := out.ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{"    __ _ _ __(_)___", "#818cf8"},
		{"   / _` | '__| / __|", "#a78bfa"},
		{"  | (_| | |  | \\__ \\", "#c084fc"},
		{"   \\__,_|_|  |_|___/", "#e879f9"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w, out.String("   v"+version).Faint())
	fmt.Fprintln(w)
}
