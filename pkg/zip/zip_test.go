package zip

import (
	"archive/zip"
	"bytes"
	"compress/flate"
	"io"
	"strings"
	"sync"
	"testing"
)

func readEntries(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	entries := make(map[string]string, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open entry %q: %v", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read entry %q: %v", f.Name, err)
		}
		entries[f.Name] = string(content)
	}
	return entries
}

func TestWriterProducesReadableArchive(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, flate.DefaultCompression)

	if err := w.Append("a.jpg", []byte("first")); err != nil {
		t.Fatalf("Append a.jpg: %v", err)
	}
	if err := w.Append("b.jpg", []byte("second")); err != nil {
		t.Fatalf("Append b.jpg: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	entries := readEntries(t, buf.Bytes())
	if len(entries) != 2 {
		t.Fatalf("entry count = %d, want 2", len(entries))
	}
	if entries["a.jpg"] != "first" || entries["b.jpg"] != "second" {
		t.Fatalf("unexpected entries: %#v", entries)
	}
}

func TestWriterStreamsPerEntry(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, flate.BestSpeed)

	if err := w.Append("a.jpg", bytes.Repeat([]byte("x"), 4096)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	// Entry bytes must reach the destination before finalize.
	if buf.Len() == 0 {
		t.Fatal("no bytes forwarded after append")
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestWriterSerializesConcurrentAppends(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, flate.BestSpeed)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := "asset-" + strings.Repeat("x", i) + ".jpg"
			if err := w.Append(name, []byte("payload")); err != nil {
				t.Errorf("Append %q: %v", name, err)
			}
		}(i)
	}
	wg.Wait()
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	entries := readEntries(t, buf.Bytes())
	if len(entries) != 20 {
		t.Fatalf("entry count = %d, want 20", len(entries))
	}
}

func TestWriterRejectsAppendAfterClose(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, flate.DefaultCompression)
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := w.Append("late.jpg", []byte("x")); err != ErrClosed {
		t.Fatalf("Append after close = %v, want ErrClosed", err)
	}
}

func TestWriterAbortLeavesNoEndMarker(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, flate.DefaultCompression)
	if err := w.Append("a.jpg", []byte("first")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	w.Abort()
	if err := w.Append("b.jpg", []byte("second")); err != ErrClosed {
		t.Fatalf("Append after abort = %v, want ErrClosed", err)
	}
	if _, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len())); err == nil {
		t.Fatal("aborted archive unexpectedly well-formed")
	}
}
