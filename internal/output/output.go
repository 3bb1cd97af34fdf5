// Package output renders command results as text or a single JSON object
// per invocation.
package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Format selects the rendering mode.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Valid reports whether the format is recognized.
func (f Format) Valid() bool {
	return f == FormatText || f == FormatJSON
}

var (
	headerStyle  = lipgloss.NewStyle().Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle     = lipgloss.NewStyle().Faint(true)
)

// Writer renders results to out in the configured format. Styling applies
// only when out is a terminal.
type Writer struct {
	out    io.Writer
	format Format
	color  bool
}

// New creates a Writer. Color is enabled when out is a TTY.
func New(out io.Writer, format Format) *Writer {
	color := false
	if f, ok := out.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Writer{out: out, format: format, color: color}
}

// JSONMode reports whether JSON output is selected.
func (w *Writer) JSONMode() bool { return w.format == FormatJSON }

// JSON writes v as a single JSON document. In text mode it is a no-op so
// command handlers can call it unconditionally after text rendering.
func (w *Writer) JSON(v any) error {
	if w.format != FormatJSON {
		return nil
	}
	enc := json.NewEncoder(w.out)
	enc.SetEscapeHTML(false)
	return ignoreBrokenPipe(enc.Encode(v))
}

// Line writes a plain text line (text mode only).
func (w *Writer) Line(format string, args ...any) {
	if w.format != FormatText {
		return
	}
	_, _ = fmt.Fprintf(w.out, format+"\n", args...)
}

// Header writes a bold section header.
func (w *Writer) Header(text string) {
	w.styled(headerStyle, text)
}

// Success writes a success line.
func (w *Writer) Success(format string, args ...any) {
	w.styled(successStyle, "✓ "+fmt.Sprintf(format, args...))
}

// Warning writes a warning line.
func (w *Writer) Warning(format string, args ...any) {
	w.styled(warningStyle, "⚠ "+fmt.Sprintf(format, args...))
}

// Dim writes a de-emphasized line.
func (w *Writer) Dim(format string, args ...any) {
	w.styled(dimStyle, fmt.Sprintf(format, args...))
}

// Field writes an aligned "key: value" line.
func (w *Writer) Field(key string, value any) {
	w.Line("  %-20s %v", key+":", value)
}

func (w *Writer) styled(style lipgloss.Style, text string) {
	if w.format != FormatText {
		return
	}
	if w.color {
		text = style.Render(text)
	}
	_, _ = fmt.Fprintln(w.out, text)
}

// Error renders a failure: a single line with suggestion in text mode, an
// ErrorEnvelope in JSON mode.
func (w *Writer) Error(kind, message, suggestion string) {
	if w.format == FormatJSON {
		_ = w.forceJSON(NewErrorEnvelope(kind, message, suggestion))
		return
	}
	line := "✗ " + message
	if suggestion != "" {
		line += " (hint: " + suggestion + ")"
	}
	if w.color {
		line = errorStyle.Render(line)
	}
	_, _ = fmt.Fprintln(w.out, line)
}

// forceJSON encodes even though Error is also used from JSON mode.
func (w *Writer) forceJSON(v any) error {
	enc := json.NewEncoder(w.out)
	enc.SetEscapeHTML(false)
	return ignoreBrokenPipe(enc.Encode(v))
}

// FormatScore renders a relevance score compactly; magnitudes at or below
// 1e-4 switch to scientific notation.
func FormatScore(score float64) string {
	if score != 0 && score <= 1e-4 && score >= -1e-4 {
		return strconv.FormatFloat(score, 'e', 4, 64)
	}
	return strconv.FormatFloat(score, 'f', 4, 64)
}

// ignoreBrokenPipe maps EPIPE to nil: a closed stdout reader is not an
// error for CLI output.
func ignoreBrokenPipe(err error) error {
	if err == nil || errors.Is(err, syscall.EPIPE) {
		return nil
	}
	return err
}
