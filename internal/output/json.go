package output

import (
	"bufio"
	"encoding/json"
	"io"
)

// JSONWriter writes a single record as an object and several as an array.
type JSONWriter struct {
	w       *bufio.Writer
	pretty  bool
	indent  string
	records []Record
}

// NewJSONWriter creates a JSON writer.
func NewJSONWriter(w io.Writer, pretty bool, indent string) *JSONWriter {
	return &JSONWriter{
		w:      bufio.NewWriter(w),
		pretty: pretty,
		indent: indent,
	}
}

// Write buffers a record.
func (w *JSONWriter) Write(r Record) error {
	w.records = append(w.records, r)
	return nil
}

// Flush writes the buffered records and clears the buffer.
func (w *JSONWriter) Flush() error {
	if len(w.records) == 0 {
		return w.w.Flush()
	}

	var v any = w.records
	if len(w.records) == 1 {
		v = w.records[0]
	}

	var out []byte
	var err error
	if w.pretty {
		out, err = json.MarshalIndent(v, "", w.indent)
	} else {
		out, err = json.Marshal(v)
	}
	if err != nil {
		return err
	}
	w.records = w.records[:0]

	if _, err := w.w.Write(append(out, '\n')); err != nil {
		return err
	}
	return w.w.Flush()
}

// Close flushes the writer.
func (w *JSONWriter) Close() error {
	return w.Flush()
}

// JSONLWriter writes one JSON object per line as records arrive.
type JSONLWriter struct {
	w *bufio.Writer
}

// NewJSONLWriter creates a JSONL writer.
func NewJSONLWriter(w io.Writer) *JSONLWriter {
	return &JSONLWriter{w: bufio.NewWriter(w)}
}

// Write writes r as a JSON line.
func (w *JSONLWriter) Write(r Record) error {
	out, err := json.Marshal(r)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(append(out, '\n')); err != nil {
		return err
	}
	return w.w.Flush()
}

// Flush flushes the buffer.
func (w *JSONLWriter) Flush() error {
	return w.w.Flush()
}

// Close flushes the writer.
func (w *JSONLWriter) Close() error {
	return w.Flush()
}
