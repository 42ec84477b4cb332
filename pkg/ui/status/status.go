// Package status prints human-facing status lines for secopsctl commands.
package status

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorGreen  = lipgloss.Color("#22c55e")
	colorRed    = lipgloss.Color("#ef4444")
	colorYellow = lipgloss.Color("#eab308")
	colorBlue   = lipgloss.Color("#3b82f6")
	colorDim    = lipgloss.Color("#6b7280")
)

// Printer writes styled status lines to a writer.
// Styling is derived from the writer, so plain buffers receive plain text.
type Printer struct {
	w        io.Writer
	success  lipgloss.Style
	failure  lipgloss.Style
	warning  lipgloss.Style
	header   lipgloss.Style
	hint     lipgloss.Style
	indented lipgloss.Style
}

// NewPrinter creates a new [Printer] writing to w.
func NewPrinter(w io.Writer) *Printer {
	r := lipgloss.NewRenderer(w)

	return &Printer{
		w:        w,
		success:  r.NewStyle().Foreground(colorGreen),
		failure:  r.NewStyle().Foreground(colorRed),
		warning:  r.NewStyle().Foreground(colorYellow),
		header:   r.NewStyle().Bold(true).Foreground(colorBlue),
		hint:     r.NewStyle().Foreground(colorDim),
		indented: r.NewStyle().PaddingLeft(2),
	}
}

// Writer returns the underlying writer.
func (p *Printer) Writer() io.Writer {
	return p.w
}

// Success prints a green line.
func (p *Printer) Success(format string, a ...any) {
	p.println(p.success.Render(fmt.Sprintf(format, a...)))
}

// Failure prints a red line.
func (p *Printer) Failure(format string, a ...any) {
	p.println(p.failure.Render(fmt.Sprintf(format, a...)))
}

// Warning prints a yellow line.
func (p *Printer) Warning(format string, a ...any) {
	p.println(p.warning.Render(fmt.Sprintf(format, a...)))
}

// Header prints a bold section header.
func (p *Printer) Header(format string, a ...any) {
	p.println(p.header.Render(fmt.Sprintf(format, a...)))
}

// Hint prints a dimmed line, e.g. a command the user can run.
func (p *Printer) Hint(format string, a ...any) {
	p.println(p.hint.Render(fmt.Sprintf(format, a...)))
}

// Detail prints an indented line.
func (p *Printer) Detail(format string, a ...any) {
	p.println(p.indented.Render(fmt.Sprintf(format, a...)))
}

// Printf prints an unstyled formatted line.
func (p *Printer) Printf(format string, a ...any) {
	p.println(fmt.Sprintf(format, a...))
}

// Println prints its operands as an unstyled line.
func (p *Printer) Println(a ...any) {
	p.println(fmt.Sprint(a...))
}

// println ignores write errors; status output is best effort.
func (p *Printer) println(s string) {
	_, _ = fmt.Fprintln(p.w, s) //nolint:errcheck // Best effort.
}
