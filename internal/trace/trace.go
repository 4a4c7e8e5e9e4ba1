// Package trace writes emitted paths as zstd-compressed JSON lines, one
// file per simulated day, for consumption by the network simulator.
package trace

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/talgya/relief-mobility/internal/engine"
)

// Writer rotates to a new file whenever the simulated day changes.
type Writer struct {
	dir string

	mu     sync.Mutex
	curDay int
	f      *os.File
	enc    *zstd.Encoder
	w      *bufio.Writer
	lines  int
	opened map[int]bool
}

// NewWriter creates a writer below dir. Files are created lazily.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir, curDay: -1, opened: make(map[int]bool)}
}

// Record implements engine.PathSink.
func (w *Writer) Record(ev engine.PathEvent) error {
	return w.Write(ev.Day, ev)
}

// Write appends v as one JSON line to the file of day.
func (w *Writer) Write(day int, v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if day != w.curDay {
		if err := w.rotateLocked(day); err != nil {
			return fmt.Errorf("trace day %d: %w", day, err)
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	w.lines++
	return w.w.WriteByte('\n')
}

// Lines returns the number of lines written.
func (w *Writer) Lines() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lines
}

// Close flushes and closes the current file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *Writer) rotateLocked(day int) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	// A day file left by an earlier run is replaced; reopening within this
	// writer appends another frame.
	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if !w.opened[day] {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(DayPath(w.dir, day), flags, 0o644)
	if err != nil {
		return err
	}
	w.opened[day] = true
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curDay = day
	return nil
}

func (w *Writer) closeLocked() error {
	var err1 error
	if w.w != nil {
		err1 = w.w.Flush()
	}
	if w.enc != nil {
		if err := w.enc.Close(); err1 == nil {
			err1 = err
		}
		w.enc = nil
	}
	if w.f != nil {
		if err := w.f.Close(); err1 == nil {
			err1 = err
		}
		w.f = nil
	}
	w.w = nil
	w.curDay = -1
	return err1
}

// DayPath is the file that holds the paths of one simulated day.
func DayPath(dir string, day int) string {
	return filepath.Join(dir, fmt.Sprintf("paths-day%03d.jsonl.zst", day))
}

// Files lists the day files in dir in day order.
func Files(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "paths-day*.jsonl.zst"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// ReadFile decodes every path of one day file.
func ReadFile(path string) ([]engine.PathEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []engine.PathEvent
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		var ev engine.PathEvent
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		out = append(out, ev)
	}
	return out, sc.Err()
}
