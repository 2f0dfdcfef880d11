package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/atikulmunna/strand/internal/model"
	"github.com/charmbracelet/lipgloss"
	"github.com/goccy/go-yaml"
	"github.com/mattn/go-isatty"
)

// Output formats accepted by New.
const (
	FormatAuto = "auto"
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Renderer writes LogEntry values to an output stream.
type Renderer interface {
	Render(entry model.LogEntry) error
}

// New returns the renderer for format. "auto" picks text on a terminal and
// JSON lines otherwise.
func New(format string, w io.Writer) (Renderer, error) {
	switch strings.ToLower(format) {
	case "", FormatAuto:
		if IsTerminal(w) {
			return NewTextRenderer(w), nil
		}
		return NewJSONRenderer(w), nil
	case FormatText:
		return NewTextRenderer(w), nil
	case FormatJSON:
		return NewJSONRenderer(w), nil
	case FormatYAML:
		return NewYAMLRenderer(w), nil
	}
	return nil, fmt.Errorf("unknown output format %q (want auto, text, json or yaml)", format)
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// ---------------------------------------------------------------------------
// Text Renderer (colorized terminal output)
// ---------------------------------------------------------------------------

// Styles holds the level palette. The TUI and the text renderer share it.
type Styles struct {
	Info  lipgloss.Style
	Debug lipgloss.Style
	Warn  lipgloss.Style
	Error lipgloss.Style
	Time  lipgloss.Style
}

// NewStyles builds the palette for a lipgloss renderer, which decides the
// color profile.
func NewStyles(r *lipgloss.Renderer) Styles {
	return Styles{
		Info:  r.NewStyle().Foreground(lipgloss.Color("39")),               // blue
		Debug: r.NewStyle().Foreground(lipgloss.Color("141")),              // purple
		Warn:  r.NewStyle().Foreground(lipgloss.Color("220")),              // yellow
		Error: r.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),   // red bold
		Time:  r.NewStyle().Foreground(lipgloss.Color("245")).Faint(true), // gray
	}
}

// Level returns the style for a severity.
func (s Styles) Level(level model.Level) lipgloss.Style {
	switch level {
	case model.LevelDebug:
		return s.Debug
	case model.LevelWarn:
		return s.Warn
	case model.LevelError:
		return s.Error
	default:
		return s.Info
	}
}

// LevelTag renders the padded, upper-case severity tag.
func (s Styles) LevelTag(level model.Level) string {
	return s.Level(level).Render(fmt.Sprintf("%-5s", strings.ToUpper(string(level))))
}

// TextRenderer prints logs with severity-based colors.
type TextRenderer struct {
	w      io.Writer
	styles Styles
}

// NewTextRenderer returns a Renderer that writes colorized text to w.
// Colors are dropped when w is not a terminal.
func NewTextRenderer(w io.Writer) *TextRenderer {
	return &TextRenderer{w: w, styles: NewStyles(lipgloss.NewRenderer(w))}
}

func (r *TextRenderer) Render(entry model.LogEntry) error {
	ts := r.styles.Time.Render(entry.Timestamp.Local().Format("15:04:05.000"))
	tag := r.styles.LevelTag(entry.Level)

	_, err := fmt.Fprintf(r.w, "%s %s %s\n", ts, tag, entry.Message)
	return err
}

// ---------------------------------------------------------------------------
// JSON Renderer (structured output for piping)
// ---------------------------------------------------------------------------

// JSONRenderer prints each log entry as a single JSON object per line.
type JSONRenderer struct {
	enc *json.Encoder
}

// NewJSONRenderer returns a Renderer that writes JSON lines to w.
func NewJSONRenderer(w io.Writer) *JSONRenderer {
	return &JSONRenderer{enc: json.NewEncoder(w)}
}

func (r *JSONRenderer) Render(entry model.LogEntry) error {
	return r.enc.Encode(entry)
}

// ---------------------------------------------------------------------------
// YAML Renderer (one document per entry)
// ---------------------------------------------------------------------------

// YAMLRenderer prints each log entry as its own YAML document.
type YAMLRenderer struct {
	w io.Writer
}

// NewYAMLRenderer returns a Renderer that writes YAML documents to w.
func NewYAMLRenderer(w io.Writer) *YAMLRenderer {
	return &YAMLRenderer{w: w}
}

func (r *YAMLRenderer) Render(entry model.LogEntry) error {
	doc := struct {
		ID        string `yaml:"id"`
		Timestamp string `yaml:"timestamp"`
		Level     string `yaml:"level"`
		Message   string `yaml:"message"`
	}{
		ID:        entry.ID,
		Timestamp: entry.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		Level:     string(entry.Level),
		Message:   entry.Message,
	}
	b, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding entry as yaml: %w", err)
	}
	if _, err := io.WriteString(r.w, "---\n"); err != nil {
		return err
	}
	_, err = r.w.Write(b)
	return err
}
