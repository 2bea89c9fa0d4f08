package predlog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
)

// RowError describes a data row that could not be parsed. Reading can
// continue past it.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// Reader streams entries from a CSV prediction log one row at a time.
type Reader struct {
	csv    *csv.Reader
	header bool
}

func NewReader(r io.Reader) *Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	return &Reader{csv: cr}
}

// Next returns the next entry, io.EOF at the end of the log, a *RowError for a
// malformed row, or a *CorruptLogError when the header is wrong.
func (r *Reader) Next() (LogEntry, error) {
	if !r.header {
		header, err := r.csv.Read()
		if err == io.EOF {
			return LogEntry{}, io.EOF
		}
		if err != nil {
			return LogEntry{}, &CorruptLogError{Reason: "header unreadable", Err: err}
		}
		if !slices.Equal(header, Header) {
			return LogEntry{}, &CorruptLogError{Reason: "unexpected header"}
		}
		r.header = true
	}

	record, err := r.csv.Read()
	if err == io.EOF {
		return LogEntry{}, io.EOF
	}
	if err != nil {
		line := 0
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			line = parseErr.StartLine
		}
		return LogEntry{}, &RowError{Line: line, Err: err}
	}
	line, _ := r.csv.FieldPos(0)
	entry, err := ParseRecord(record)
	if err != nil {
		return LogEntry{}, &RowError{Line: line, Err: err}
	}
	return entry, nil
}

// ReadFile loads every entry of the log at path. It stops at the first
// malformed row.
func ReadFile(path string) ([]LogEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := NewReader(f)
	var entries []LogEntry
	for {
		entry, err := r.Next()
		if err == io.EOF {
			return entries, nil
		}
		if err != nil {
			var corrupt *CorruptLogError
			if errors.As(err, &corrupt) {
				corrupt.Path = path
			}
			return entries, err
		}
		entries = append(entries, entry)
	}
}
