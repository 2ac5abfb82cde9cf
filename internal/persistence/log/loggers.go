package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/Abhipanda4/Agent-Based-Modelling/internal/sim/world"
)

const hourlyLayout = "2006-01-02-15"

// Options tune a JSONLZstdWriter. The zero value rotates hourly and
// flushes after every line.
type Options struct {
	// Layout is the time layout that names a segment. A new segment starts
	// whenever the formatted UTC time changes.
	Layout string
	// FlushEvery is the number of lines buffered before a flush into the
	// encoder. Values below 2 flush every line.
	FlushEvery int
	// OnClose runs after a segment is closed, with its path and line count.
	OnClose func(path string, lines int)
}

// segment is one open <prefix>-<stamp>.jsonl.zst file.
type segment struct {
	stamp string
	path  string
	f     *os.File
	enc   *zstd.Encoder
	buf   *bufio.Writer
	lines int
}

func (s *segment) close() error {
	flushErr := s.buf.Flush()
	encErr := s.enc.Close()
	fileErr := s.f.Close()
	return errors.Join(flushErr, encErr, fileErr)
}

// JSONLZstdWriter appends JSON lines to zstd segments named
// <prefix>-<stamp>.jsonl.zst under baseDir.
type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	opts    Options
	now     func() time.Time

	mu      sync.Mutex
	cur     *segment
	pending int
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return NewJSONLZstdWriterWithOptions(baseDir, prefix, Options{})
}

func NewJSONLZstdWriterWithOptions(baseDir, prefix string, opts Options) *JSONLZstdWriter {
	if opts.Layout == "" {
		opts.Layout = hourlyLayout
	}
	return &JSONLZstdWriter{baseDir: baseDir, prefix: prefix, opts: opts, now: time.Now}
}

func (w *JSONLZstdWriter) Write(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	b = append(b, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()

	stamp := w.now().UTC().Format(w.opts.Layout)
	if w.cur == nil || w.cur.stamp != stamp {
		if err := w.closeLocked(); err != nil {
			return err
		}
		seg, err := w.open(stamp)
		if err != nil {
			return err
		}
		w.cur = seg
	}
	if _, err := w.cur.buf.Write(b); err != nil {
		return err
	}
	w.cur.lines++
	w.pending++
	if w.pending >= w.opts.FlushEvery {
		w.pending = 0
		return w.cur.buf.Flush()
	}
	return nil
}

// Flush pushes buffered lines into the encoder. The bytes reach the file
// once the encoder fills a block or the segment closes.
func (w *JSONLZstdWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cur == nil {
		return nil
	}
	w.pending = 0
	return w.cur.buf.Flush()
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) open(stamp string) (*segment, error) {
	if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, stamp))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &segment{stamp: stamp, path: path, f: f, enc: enc, buf: bufio.NewWriterSize(enc, 128*1024)}, nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	seg := w.cur
	if seg == nil {
		return nil
	}
	w.cur = nil
	w.pending = 0
	err := seg.close()
	if w.opts.OnClose != nil {
		w.opts.OnClose(seg.path, seg.lines)
	}
	return err
}

// TickLogger writes one JSONL entry per tick under <runDir>/events.
type TickLogger struct{ w *JSONLZstdWriter }

func NewTickLogger(runDir string) *TickLogger {
	return NewTickLoggerWithOptions(runDir, Options{})
}

func NewTickLoggerWithOptions(runDir string, opts Options) *TickLogger {
	return &TickLogger{w: NewJSONLZstdWriterWithOptions(filepath.Join(runDir, "events"), "events", opts)}
}

func (l *TickLogger) WriteTick(v world.TickLogEntry) error { return l.w.Write(v) }
func (l *TickLogger) Flush() error                         { return l.w.Flush() }
func (l *TickLogger) Close() error                         { return l.w.Close() }

// ReadTickLog decodes every events file under runDir/events in name order,
// which is chronological.
func ReadTickLog(runDir string) ([]world.TickLogEntry, error) {
	paths, err := filepath.Glob(filepath.Join(runDir, "events", "events-*.jsonl.zst"))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no tick log under %s", runDir)
	}
	sort.Strings(paths)
	var out []world.TickLogEntry
	for _, p := range paths {
		entries, err := readTickFile(p)
		if err != nil {
			return out, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		out = append(out, entries...)
	}
	return out, nil
}

func readTickFile(path string) ([]world.TickLogEntry, error) {
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

	var out []world.TickLogEntry
	jd := json.NewDecoder(dec)
	for {
		var e world.TickLogEntry
		if err := jd.Decode(&e); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			// A file still being written may end mid-frame.
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return out, nil
			}
			return out, err
		}
		out = append(out, e)
	}
}
