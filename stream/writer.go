package stream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Writer frames server-sent events as "data: <payload>\n\n" and flushes after
// every record so tokens reach the client as they are produced.
type Writer struct {
	w       io.Writer
	flusher http.Flusher
	buf     bytes.Buffer
}

// NewWriter wraps w. Flushing happens when w implements http.Flusher.
func NewWriter(w io.Writer) *Writer {
	sw := &Writer{w: w}
	if f, ok := w.(http.Flusher); ok {
		sw.flusher = f
	}
	return sw
}

// SetHeaders marks an HTTP response as an event stream. Call it before the
// first write.
func SetHeaders(h http.Header) {
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
}

// WriteData writes one data record.
func (sw *Writer) WriteData(payload []byte) error {
	sw.buf.Reset()
	sw.buf.WriteString("data: ")
	sw.buf.Write(payload)
	sw.buf.WriteString("\n\n")
	return sw.write(sw.buf.Bytes())
}

// WriteJSON marshals v, without HTML escaping, and writes it as a data record.
func (sw *Writer) WriteJSON(v any) error {
	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	return sw.WriteData(bytes.TrimSuffix(b.Bytes(), []byte("\n")))
}

// WriteDone writes the terminal sentinel.
func (sw *Writer) WriteDone() error {
	return sw.write([]byte(doneSentinel + "\n\n"))
}

// WriteRaw forwards a line that is not a data record, newline-terminated.
func (sw *Writer) WriteRaw(line string) error {
	return sw.write([]byte(line + "\n"))
}

func (sw *Writer) write(b []byte) error {
	if _, err := sw.w.Write(b); err != nil {
		return err
	}
	if sw.flusher != nil {
		sw.flusher.Flush()
	}
	return nil
}
