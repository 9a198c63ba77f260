package output

import (
	"bufio"
	"io"

	"gopkg.in/yaml.v3"
)

// YAMLWriter writes records as a YAML document.
type YAMLWriter struct {
	w       *bufio.Writer
	records []Record
}

// NewYAMLWriter creates a YAML writer.
func NewYAMLWriter(w io.Writer) *YAMLWriter {
	return &YAMLWriter{w: bufio.NewWriter(w)}
}

// Write buffers a record.
func (w *YAMLWriter) Write(r Record) error {
	w.records = append(w.records, r)
	return nil
}

// Flush writes the buffered records and clears the buffer.
func (w *YAMLWriter) Flush() error {
	if len(w.records) == 0 {
		return w.w.Flush()
	}

	enc := yaml.NewEncoder(w.w)
	enc.SetIndent(2)

	var err error
	if len(w.records) == 1 {
		err = enc.Encode(w.records[0])
	} else {
		err = enc.Encode(w.records)
	}
	if err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	w.records = w.records[:0]
	return w.w.Flush()
}

// Close flushes the writer.
func (w *YAMLWriter) Close() error {
	return w.Flush()
}
