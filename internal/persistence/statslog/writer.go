// Package statslog archives computed stats runs as hourly zstd-compressed
// JSONL files and reads them back.
package statslog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

// ArchiveWriter appends JSON lines to <dir>/<prefix>-YYYY-MM-DD-HH.jsonl.zst.
// Every line is written as its own zstd frame, so a file can be read while
// the writer still holds it open.
type ArchiveWriter struct {
	dir    string
	prefix string
	now    func() time.Time

	mu   sync.Mutex
	hour string
	f    *os.File
	enc  *zstd.Encoder
	buf  []byte
}

func NewArchiveWriter(dir, prefix string) *ArchiveWriter {
	return &ArchiveWriter{dir: dir, prefix: prefix, now: time.Now}
}

// Write appends v as one line in the file for the current hour.
func (w *ArchiveWriter) Write(v any) error {
	line, err := json.Marshal(v)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.enc == nil {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest), zstd.WithEncoderConcurrency(1))
		if err != nil {
			return err
		}
		w.enc = enc
	}
	if hour := w.now().UTC().Format("2006-01-02-15"); hour != w.hour || w.f == nil {
		if err := w.openLocked(hour); err != nil {
			return err
		}
	}

	w.buf = w.enc.EncodeAll(line, w.buf[:0])
	if _, err := w.f.Write(w.buf); err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(w.f.Name()), err)
	}
	return nil
}

func (w *ArchiveWriter) openLocked(hour string) error {
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.path(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	w.f = f
	w.hour = hour
	return nil
}

func (w *ArchiveWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var err error
	if w.f != nil {
		err = w.f.Close()
		w.f = nil
	}
	if w.enc != nil {
		_ = w.enc.Close()
		w.enc = nil
	}
	w.hour = ""
	return err
}

func (w *ArchiveWriter) path(hour string) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}
