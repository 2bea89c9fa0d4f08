package predlog

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func TestReaderSkipsPastMalformedRows(t *testing.T) {
	content := strings.Join([]string{
		"timestamp,inputs,prediction,probability",
		`2026-10-19T10:00:00Z,"[1,2,3]",1,0.9`,
		`not-a-time,"[1]",0,0.1`,
		`2026-10-19T10:00:02Z,"[4,5]",0,0.25`,
		`2026-10-19T10:00:03Z,"[6]",0`,
	}, "\n") + "\n"

	r := NewReader(strings.NewReader(content))
	var good, bad int
	var badLines []int
	for {
		_, err := r.Next()
		if err == io.EOF {
			break
		}
		var rowErr *RowError
		if errors.As(err, &rowErr) {
			bad++
			badLines = append(badLines, rowErr.Line)
			continue
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		good++
	}
	if good != 2 || bad != 2 {
		t.Fatalf("expected 2 good and 2 bad rows, got %d/%d", good, bad)
	}
	if badLines[0] != 3 || badLines[1] != 5 {
		t.Fatalf("unexpected bad line numbers: %v", badLines)
	}
}

func TestReaderRejectsWrongHeader(t *testing.T) {
	r := NewReader(strings.NewReader("a,b,c,d\n"))
	if _, err := r.Next(); !errors.Is(err, ErrCorruptLog) {
		t.Fatalf("expected ErrCorruptLog, got %v", err)
	}
}

func TestReaderEmptyLog(t *testing.T) {
	r := NewReader(strings.NewReader(""))
	if _, err := r.Next(); err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}
