package zip

import (
	"archive/zip"
	"compress/flate"
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrClosed is returned by Append after the archive has been finalized or aborted.
var ErrClosed = errors.New("zip: archive closed")

type flusher interface {
	Flush()
}

// Writer streams named byte buffers into a zip container as they arrive.
// Entries are forwarded to the destination writer per append, so memory
// stays bounded by the compressor's window rather than the archive size.
// Appends may come from concurrent goroutines; the writer serializes them.
type Writer struct {
	mu     sync.Mutex
	zw     *zip.Writer
	dst    io.Writer
	closed bool
}

// NewWriter wraps dst in a streaming zip writer. level is a flate
// compression level; the service default trades ratio for speed since
// archives are produced inside a request.
func NewWriter(dst io.Writer, level int) *Writer {
	zw := zip.NewWriter(dst)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, level)
	})
	return &Writer{zw: zw, dst: dst}
}

// Append adds one complete entry and flushes it to the destination.
func (w *Writer) Append(name string, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	entry, err := w.zw.Create(name)
	if err != nil {
		return fmt.Errorf("zip: create entry %q: %w", name, err)
	}
	if _, err := entry.Write(data); err != nil {
		return fmt.Errorf("zip: write entry %q: %w", name, err)
	}
	if err := w.zw.Flush(); err != nil {
		return fmt.Errorf("zip: flush entry %q: %w", name, err)
	}
	if f, ok := w.dst.(flusher); ok {
		f.Flush()
	}
	return nil
}

// Close writes the central directory so the stream reaches a well-formed
// end. It must be called exactly once after all appends have settled.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	w.closed = true
	if err := w.zw.Close(); err != nil {
		return fmt.Errorf("zip: finalize: %w", err)
	}
	if f, ok := w.dst.(flusher); ok {
		f.Flush()
	}
	return nil
}

// Abort marks the archive unusable without writing an end marker. Used when
// the consumer disappears mid-stream; the truncated output is intentionally
// left without a central directory.
func (w *Writer) Abort() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
}
