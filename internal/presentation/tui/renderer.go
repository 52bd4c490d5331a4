// Package tui renders answers and status lines for terminal users.
package tui

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Width returns the terminal width of f, or fallback when unknown.
func Width(f *os.File, fallback int) int {
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil || w <= 0 {
		return fallback
	}
	return w
}

// NewRenderer returns a function that renders markdown using glamour,
// word-wrapped at width. The style follows the terminal background.
func NewRenderer(width int) func(string) (string, error) {
	opts := []glamour.TermRendererOption{glamour.WithAutoStyle()}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return func(markdown string) (string, error) { return markdown, nil }
	}
	return r.Render
}

// Printer writes answers to an output, pretty when it is a terminal and
// verbatim otherwise so pipes get clean markdown.
type Printer struct {
	w      io.Writer
	out    *termenv.Output
	render func(string) (string, error)
}

// NewPrinter creates a printer for f.
func NewPrinter(f *os.File) *Printer {
	p := &Printer{w: f, out: termenv.NewOutput(f)}
	if IsTerminal(f) {
		p.render = NewRenderer(min(Width(f, 100), 120) - 4)
	}
	return p
}

// NewPlainPrinter writes to w without any styling.
func NewPlainPrinter(w io.Writer) *Printer {
	return &Printer{w: w, out: termenv.NewOutput(w, termenv.WithProfile(termenv.Ascii))}
}

// Answer prints the final generation.
func (p *Printer) Answer(markdown string) error {
	if p.render != nil {
		if rendered, err := p.render(markdown); err == nil {
			_, err = io.WriteString(p.w, rendered)
			return err
		}
	}
	_, err := io.WriteString(p.w, strings.TrimRight(markdown, "\n")+"\n")
	return err
}

// Status prints a system line such as ">>> Task abc ended".
func (p *Printer) Status(msg string) {
	io.WriteString(p.w, p.out.String(">>> "+msg).Faint().String()+"\n")
}

// Error prints a failure line.
func (p *Printer) Error(msg string) {
	io.WriteString(p.w, p.out.String(">>> "+msg).Foreground(p.out.Color("#fb7185")).String()+"\n")
}
