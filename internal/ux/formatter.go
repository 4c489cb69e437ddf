package ux

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Formatter writes command output in one format.
type Formatter interface {
	Format(data any) error
}

// TextRenderer is implemented by values with a styled human-readable form.
type TextRenderer interface {
	RenderText(styles Styles) string
}

// FormatterOptions configures NewFormatter. A zero value writes indented
// output to stdout.
type FormatterOptions struct {
	Writer  io.Writer
	NoColor bool
	// Compact drops indentation from json and yaml.
	Compact bool
}

// Formats lists the accepted --format values.
var Formats = []string{"text", "json", "yaml"}

// FormatFunc adapts a function to Formatter.
type FormatFunc func(data any) error

// Format calls f(data).
func (f FormatFunc) Format(data any) error { return f(data) }

// NewFormatter returns the formatter for format; "" means text.
func NewFormatter(format string, opts *FormatterOptions) (Formatter, error) {
	o := FormatterOptions{Writer: os.Stdout}
	if opts != nil {
		o = *opts
		if o.Writer == nil {
			o.Writer = os.Stdout
		}
	}

	switch format {
	case "json":
		return FormatFunc(func(data any) error { return writeJSON(o, data) }), nil
	case "yaml":
		return FormatFunc(func(data any) error { return writeYAML(o, data) }), nil
	case "text", "":
		styles := NewStyles(o.Writer, o.NoColor)
		return FormatFunc(func(data any) error { return writeText(o.Writer, styles, data) }), nil
	}
	return nil, fmt.Errorf("unknown format: %s (supported: text, json, yaml)", format)
}

func writeJSON(o FormatterOptions, data any) error {
	enc := json.NewEncoder(o.Writer)
	if !o.Compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(data)
}

func writeYAML(o FormatterOptions, data any) error {
	enc := yaml.NewEncoder(o.Writer)
	if !o.Compact {
		enc.SetIndent(2)
	}
	if err := enc.Encode(data); err != nil {
		return err
	}
	return enc.Close()
}

// writeText prefers a styled rendering, then a plain string form.
func writeText(w io.Writer, styles Styles, data any) error {
	var text string
	switch v := data.(type) {
	case TextRenderer:
		text = v.RenderText(styles)
	case string:
		text = v
	case fmt.Stringer:
		text = v.String()
	default:
		return fmt.Errorf("text output is not supported for %T; use --format json or yaml", data)
	}
	_, err := fmt.Fprintln(w, text)
	return err
}
