package output

import (
	"bufio"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
)

// TextWriter writes a human readable block per record.
type TextWriter struct {
	w *bufio.Writer
}

// NewTextWriter creates a text writer.
func NewTextWriter(w io.Writer) *TextWriter {
	return &TextWriter{w: bufio.NewWriter(w)}
}

// Write writes r immediately.
func (w *TextWriter) Write(r Record) error {
	var b strings.Builder
	if r.Error != "" || r.Info == nil {
		fmt.Fprintf(&b, "%s\n  error: %s\n", r.URL, r.Error)
	} else {
		info := r.Info
		fmt.Fprintf(&b, "%s [%s]\n", info.Title, info.StatusText())
		field(&b, "url", r.URL)
		field(&b, "owner", info.Owner)
		field(&b, "room", info.RoomID)
		field(&b, "viewers", info.Viewers)
		streams(&b, "flv", info.StreamURLs)
		streams(&b, "hls", info.HLSURLs)
	}
	if r.Duration > 0 {
		fmt.Fprintf(&b, "  took %s\n", humanize.FtoaWithDigits(r.Duration.Seconds(), 2)+"s")
	}

	if _, err := w.w.WriteString(b.String()); err != nil {
		return err
	}
	return w.w.Flush()
}

func field(b *strings.Builder, name, value string) {
	if value != "" {
		fmt.Fprintf(b, "  %-8s %s\n", name+":", value)
	}
}

func streams(b *strings.Builder, kind string, urls map[string]string) {
	keys := make([]string, 0, len(urls))
	for k := range urls {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(b, "  %s %-9s %s\n", kind, k, urls[k])
	}
}

// Flush flushes the buffer.
func (w *TextWriter) Flush() error {
	return w.w.Flush()
}

// Close flushes the writer.
func (w *TextWriter) Close() error {
	return w.Flush()
}
