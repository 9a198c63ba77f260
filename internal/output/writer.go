// Package output renders lookup results for the CLI.
package output

import (
	"fmt"
	"io"
	"time"

	"github.com/jmylchreest/livegate/pkg/live"
)

// Format represents output format types.
type Format string

const (
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatYAML  Format = "yaml"
	FormatText  Format = "text"
)

// Formats lists the supported formats.
var Formats = []Format{FormatJSON, FormatJSONL, FormatYAML, FormatText}

// Record is one lookup result as written by the CLI.
type Record struct {
	URL      string        `json:"url" yaml:"url"`
	Info     *live.Info    `json:"info,omitempty" yaml:"info,omitempty"`
	Live     bool          `json:"live" yaml:"live"`
	Error    string        `json:"error,omitempty" yaml:"error,omitempty"`
	Duration time.Duration `json:"-" yaml:"-"`
	Elapsed  string        `json:"elapsed" yaml:"elapsed"`
}

// NewRecord builds a record from a lookup outcome.
func NewRecord(url string, info *live.Info, err error, d time.Duration) Record {
	r := Record{
		URL:      url,
		Info:     info,
		Duration: d,
		Elapsed:  d.Round(time.Millisecond).String(),
	}
	if info != nil {
		r.Live = info.IsLive()
	}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// Writer handles output serialization.
type Writer interface {
	// Write outputs a single record. Buffered formats emit on Flush.
	Write(r Record) error

	// Flush ensures all data is written.
	Flush() error

	// Close flushes the writer.
	Close() error
}

// WriterOption configures a writer.
type WriterOption func(*writerConfig)

type writerConfig struct {
	pretty bool
	indent string
}

// WithPretty enables pretty-printing.
func WithPretty(enabled bool) WriterOption {
	return func(c *writerConfig) {
		c.pretty = enabled
	}
}

// WithIndent sets the indentation string.
func WithIndent(indent string) WriterOption {
	return func(c *writerConfig) {
		c.indent = indent
	}
}

// NewWriter creates a writer for the specified format.
func NewWriter(w io.Writer, format Format, opts ...WriterOption) (Writer, error) {
	cfg := &writerConfig{
		pretty: true,
		indent: "  ",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	switch format {
	case FormatJSON:
		return NewJSONWriter(w, cfg.pretty, cfg.indent), nil
	case FormatJSONL:
		return NewJSONLWriter(w), nil
	case FormatYAML:
		return NewYAMLWriter(w), nil
	case FormatText:
		return NewTextWriter(w), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s (use json, jsonl, yaml or text)", format)
	}
}
