package predlog

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"io/fs"
	"os"
	"slices"
	"sync"

	"go.uber.org/zap"
)

var errClosed = errors.New("log is closed")

type Options struct {
	// Sync forces an fsync after every row.
	Sync   bool
	Logger *zap.Logger
}

// CSVLog appends one CSV row per prediction. The file is opened in append
// mode and every row goes out in a single write under mu, so concurrent
// appends never interleave and prior content is never rewritten.
type CSVLog struct {
	path   string
	opts   Options
	logger *zap.Logger

	mu           sync.Mutex
	file         *os.File
	needsNewline bool
	closed       bool
}

// OpenCSV checks an existing log at path without creating one. A missing file
// is normal on first run; it is created with a header on the first Append.
func OpenCSV(path string, opts Options) (*CSVLog, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &CSVLog{path: path, opts: opts, logger: logger}
	if err := l.inspect(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *CSVLog) Path() string { return l.path }

func (l *CSVLog) inspect() error {
	f, err := os.Open(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		l.logger.Info("prediction log absent, will create on first write", zap.String("path", l.path))
		return nil
	}
	if err != nil {
		return &CorruptLogError{Path: l.path, Reason: "unreadable", Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return &CorruptLogError{Path: l.path, Reason: "stat failed", Err: err}
	}
	if info.IsDir() {
		return &CorruptLogError{Path: l.path, Reason: "is a directory"}
	}
	if info.Size() == 0 {
		return nil
	}

	header, err := csv.NewReader(f).Read()
	if err != nil {
		return &CorruptLogError{Path: l.path, Reason: "header unreadable", Err: err}
	}
	if !slices.Equal(header, Header) {
		return &CorruptLogError{Path: l.path, Reason: "unexpected header"}
	}

	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil && err != io.EOF {
		return &CorruptLogError{Path: l.path, Reason: "tail unreadable", Err: err}
	}
	if last[0] != '\n' {
		l.logger.Warn("prediction log ends with a partial row, terminating it before next append",
			zap.String("path", l.path))
		l.needsNewline = true
	}
	return nil
}

func (l *CSVLog) Append(ctx context.Context, entry LogEntry) error {
	record, err := entry.Record()
	if err != nil {
		return &LogWriteError{Path: l.path, Err: err}
	}
	row, err := encodeRows(record)
	if err != nil {
		return &LogWriteError{Path: l.path, Err: err}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return &LogWriteError{Path: l.path, Err: errClosed}
	}
	if err := l.ensureOpen(); err != nil {
		return &LogWriteError{Path: l.path, Err: err}
	}

	payload := row
	if l.needsNewline {
		payload = append([]byte{'\n'}, row...)
	}
	n, err := l.file.Write(payload)
	if err != nil {
		// a short write leaves a torn row; terminate it on the next append
		if n > 0 {
			l.needsNewline = true
		}
		l.closeFile()
		return &LogWriteError{Path: l.path, Err: err}
	}
	l.needsNewline = false

	if l.opts.Sync {
		if err := l.file.Sync(); err != nil {
			return &LogWriteError{Path: l.path, Err: err}
		}
	}
	return nil
}

// ensureOpen opens the log in append mode, writing the header when the file
// is new or empty. An open descriptor whose file was removed or replaced at
// path is dropped first. Caller holds mu.
func (l *CSVLog) ensureOpen() error {
	if l.file != nil {
		if !l.stale() {
			return nil
		}
		l.logger.Warn("prediction log was moved or removed, reopening", zap.String("path", l.path))
		if err := l.closeFile(); err != nil {
			l.logger.Warn("close prediction log", zap.String("path", l.path), zap.Error(err))
		}
		l.needsNewline = false
	}
	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	if info.Size() == 0 {
		header, err := encodeRows(Header)
		if err != nil {
			f.Close()
			return err
		}
		if _, err := f.Write(header); err != nil {
			f.Close()
			return err
		}
		l.needsNewline = false
		l.logger.Info("created prediction log", zap.String("path", l.path))
	}
	l.file = f
	return nil
}

// stale reports whether the open descriptor no longer refers to the file at
// path. Caller holds mu.
func (l *CSVLog) stale() bool {
	open, err := l.file.Stat()
	if err != nil {
		return true
	}
	current, err := os.Stat(l.path)
	if err != nil {
		return true
	}
	return !os.SameFile(open, current)
}

func (l *CSVLog) closeFile() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// reset drops the open descriptor so the next Append recreates the file.
func (l *CSVLog) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.closeFile(); err != nil {
		l.logger.Warn("close prediction log", zap.String("path", l.path), zap.Error(err))
	}
	l.needsNewline = false
}

func (l *CSVLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return l.closeFile()
}

func encodeRows(records ...[]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
