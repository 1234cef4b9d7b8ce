package middleware

import (
	"bytes"
	"fmt"
	"net/http"
)

// statusWriter is a wrapper around http.ResponseWriter that captures the status code
// and the number of bytes written.
type statusWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
	wroteHeader  bool
}

func newStatusWriter(w http.ResponseWriter) *statusWriter {
	return &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

// WriteHeader captures the first status code and calls the underlying ResponseWriter.WriteHeader
func (sw *statusWriter) WriteHeader(statusCode int) {
	if !sw.wroteHeader {
		sw.statusCode = statusCode
		sw.wroteHeader = true
	}
	sw.ResponseWriter.WriteHeader(statusCode)
}

// Write counts the bytes and calls the underlying ResponseWriter.Write
func (sw *statusWriter) Write(b []byte) (int, error) {
	sw.wroteHeader = true
	n, err := sw.ResponseWriter.Write(b)
	sw.bytesWritten += int64(n)
	return n, err
}

// Flush calls the underlying ResponseWriter.Flush if it implements http.Flusher
func (sw *statusWriter) Flush() {
	if f, ok := sw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap returns the wrapped writer for http.ResponseController.
func (sw *statusWriter) Unwrap() http.ResponseWriter {
	return sw.ResponseWriter
}

// timingWriter holds the status code and body written by downstream handlers until commit
// is called. The header map is shared with the underlying writer and stays mutable until
// the response is committed. The headers present at creation are kept so an aborted
// response can be rolled back with discard.
type timingWriter struct {
	http.ResponseWriter
	status    int
	buf       bytes.Buffer
	committed bool
	initial   http.Header
}

func newTimingWriter(w http.ResponseWriter) *timingWriter {
	return &timingWriter{ResponseWriter: w, initial: w.Header().Clone()}
}

// WriteHeader records the first final status code. Informational (1xx) codes are sent
// immediately since they do not end the header phase.
func (tw *timingWriter) WriteHeader(statusCode int) {
	if statusCode >= 100 && statusCode < 200 && statusCode != http.StatusSwitchingProtocols {
		tw.ResponseWriter.WriteHeader(statusCode)
		return
	}
	if tw.committed || tw.status != 0 {
		return
	}
	tw.status = statusCode
}

// Write buffers b until commit. After commit it writes straight through.
func (tw *timingWriter) Write(b []byte) (int, error) {
	if tw.committed {
		return tw.ResponseWriter.Write(b)
	}
	if tw.status == 0 {
		tw.status = http.StatusOK
	}
	return tw.buf.Write(b)
}

// Flush commits the response early and flushes the underlying writer.
func (tw *timingWriter) Flush() {
	if err := tw.commit(); err != nil {
		return
	}
	if f, ok := tw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap returns the wrapped writer for http.ResponseController.
func (tw *timingWriter) Unwrap() http.ResponseWriter {
	return tw.ResponseWriter
}

// Status returns the status code the response has or will have.
func (tw *timingWriter) Status() int {
	if tw.status == 0 {
		return http.StatusOK
	}
	return tw.status
}

// Committed reports whether the status line and headers have been written.
func (tw *timingWriter) Committed() bool {
	return tw.committed
}

// SetHeader sets a response header, failing with ErrResponseCommitted once the headers
// have been sent.
func (tw *timingWriter) SetHeader(key, value string) error {
	if tw.committed {
		return fmt.Errorf("set header %s: %w", key, ErrResponseCommitted)
	}
	tw.Header().Set(key, value)
	return nil
}

// commit writes the status code and any buffered body to the underlying writer.
// It is a no-op after the first call.
func (tw *timingWriter) commit() error {
	if tw.committed {
		return nil
	}
	tw.committed = true
	tw.ResponseWriter.WriteHeader(tw.Status())
	if tw.buf.Len() == 0 {
		return nil
	}
	_, err := tw.ResponseWriter.Write(tw.buf.Bytes())
	tw.buf.Reset()
	return err
}

// discard drops the buffered status and body and restores the header map to the state it
// had when the writer was created. It does nothing once the response is committed.
func (tw *timingWriter) discard() {
	if tw.committed {
		return
	}
	tw.status = 0
	tw.buf.Reset()

	h := tw.Header()
	for key := range h {
		delete(h, key)
	}
	for key, values := range tw.initial {
		h[key] = values
	}
}
