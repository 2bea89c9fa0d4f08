package predlog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"heartrisk/ml"
)

var scenarioInputs = ml.FeatureVector{63, 1, 3, 145, 233, 1, 0, 150, 0, 2.3, 0, 0, 1, 0, 0, 27.5}

func newTestLog(t *testing.T) (*CSVLog, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prediction_logs.csv")
	l, err := OpenCSV(path, Options{})
	if err != nil {
		t.Fatalf("OpenCSV failed: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l, path
}

func testEntry(i int) LogEntry {
	inputs := scenarioInputs.Clone()
	inputs[0] = float64(30 + i%60)
	return LogEntry{
		Timestamp:   time.Date(2026, 10, 19, 12, 0, i%60, 123456789, time.UTC),
		Inputs:      inputs,
		Prediction:  i % 2,
		Probability: 0.1 + float64(i%80)/100,
	}
}

func TestOpenCSVDoesNotCreateFile(t *testing.T) {
	_, path := newTestLog(t)
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected log to be absent before first append, stat err=%v", err)
	}
}

func TestAppendCreatesHeaderAndRoundTrips(t *testing.T) {
	l, path := newTestLog(t)
	want := LogEntry{
		Timestamp:   time.Date(2026, 10, 19, 8, 30, 0, 5, time.UTC),
		Inputs:      scenarioInputs,
		Prediction:  1,
		Probability: 0.7312345678901234,
	}
	if err := l.Append(context.Background(), want); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %d lines: %q", len(lines), data)
	}
	if lines[0] != "timestamp,inputs,prediction,probability" {
		t.Fatalf("unexpected header: %q", lines[0])
	}

	entries, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	got := entries[0]
	if !got.Timestamp.Equal(want.Timestamp) {
		t.Fatalf("timestamp: got %v want %v", got.Timestamp, want.Timestamp)
	}
	if got.Prediction != want.Prediction || got.Probability != want.Probability {
		t.Fatalf("got %d/%v want %d/%v", got.Prediction, got.Probability, want.Prediction, want.Probability)
	}
	if len(got.Inputs) != len(want.Inputs) {
		t.Fatalf("expected %d inputs, got %d", len(want.Inputs), len(got.Inputs))
	}
	for i := range want.Inputs {
		if got.Inputs[i] != want.Inputs[i] {
			t.Fatalf("input %d: got %v want %v", i, got.Inputs[i], want.Inputs[i])
		}
	}
}

func TestAppendPreservesExistingContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prediction_logs.csv")
	first, err := OpenCSV(path, Options{})
	if err != nil {
		t.Fatalf("OpenCSV failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := first.Append(context.Background(), testEntry(i)); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	first.Close()
	before, _ := os.ReadFile(path)

	second, err := OpenCSV(path, Options{Sync: true})
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer second.Close()
	if err := second.Append(context.Background(), testEntry(3)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	after, _ := os.ReadFile(path)
	if !strings.HasPrefix(string(after), string(before)) {
		t.Fatal("existing rows were rewritten")
	}

	entries, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}
	if strings.Count(string(after), "timestamp,inputs") != 1 {
		t.Fatal("header written more than once")
	}
}

func TestOpenCSVRejectsForeignFile(t *testing.T) {
	tests := map[string]string{
		"wrong header": "when,what\n1,2\n",
		"bad quoting":  "\"timestamp,inputs\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "prediction_logs.csv")
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				t.Fatal(err)
			}
			_, err := OpenCSV(path, Options{})
			var corrupt *CorruptLogError
			if !errors.As(err, &corrupt) {
				t.Fatalf("expected *CorruptLogError, got %v", err)
			}
			if !errors.Is(err, ErrCorruptLog) {
				t.Fatal("expected errors.Is(err, ErrCorruptLog)")
			}
		})
	}
}

func TestOpenCSVRejectsDirectory(t *testing.T) {
	_, err := OpenCSV(t.TempDir(), Options{})
	if !errors.Is(err, ErrCorruptLog) {
		t.Fatalf("expected ErrCorruptLog, got %v", err)
	}
}

func TestAppendTerminatesTornRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prediction_logs.csv")
	content := "timestamp,inputs,prediction,probability\n2026-10-19T00:00:00Z,\"[1,2"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	l, err := OpenCSV(path, Options{})
	if err != nil {
		t.Fatalf("OpenCSV failed: %v", err)
	}
	defer l.Close()
	if err := l.Append(context.Background(), testEntry(1)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	data, _ := os.ReadFile(path)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected torn row on its own line, got %q", data)
	}
	if !strings.HasPrefix(lines[2], "2026-10-19T12:00:01") {
		t.Fatalf("new row not on its own line: %q", lines[2])
	}
}

func TestConcurrentAppendsDoNotInterleave(t *testing.T) {
	l, path := newTestLog(t)
	const writers, perWriter = 16, 25

	var wg sync.WaitGroup
	errs := make(chan error, writers*perWriter)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				if err := l.Append(context.Background(), testEntry(w*perWriter+i)); err != nil {
					errs <- err
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("Append failed: %v", err)
	}

	entries, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if len(entries) != writers*perWriter {
		t.Fatalf("expected %d entries, got %d", writers*perWriter, len(entries))
	}
	for i, e := range entries {
		if len(e.Inputs) != ml.FeatureCount {
			t.Fatalf("entry %d has %d inputs", i, len(e.Inputs))
		}
	}
}

func TestAppendUnwritableLocation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing-dir", "prediction_logs.csv")
	l, err := OpenCSV(path, Options{})
	if err != nil {
		t.Fatalf("OpenCSV failed: %v", err)
	}
	err = l.Append(context.Background(), testEntry(0))
	var writeErr *LogWriteError
	if !errors.As(err, &writeErr) {
		t.Fatalf("expected *LogWriteError, got %v", err)
	}
	if !errors.Is(err, ErrLogWrite) {
		t.Fatal("expected errors.Is(err, ErrLogWrite)")
	}
}

func TestAppendAfterClose(t *testing.T) {
	l, _ := newTestLog(t)
	l.Close()
	if err := l.Append(context.Background(), testEntry(0)); !errors.Is(err, ErrLogWrite) {
		t.Fatalf("expected ErrLogWrite after close, got %v", err)
	}
}

func TestResetRecreatesRemovedLog(t *testing.T) {
	l, path := newTestLog(t)
	if err := l.Append(context.Background(), testEntry(0)); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	l.reset()
	if err := l.Append(context.Background(), testEntry(1)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	entries, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry in recreated log, got %d", len(entries))
	}
}

func TestAppendReopensRemovedLogWithoutWatcher(t *testing.T) {
	l, path := newTestLog(t)
	if err := l.Append(context.Background(), testEntry(0)); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	if err := l.Append(context.Background(), testEntry(1)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	entries, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Prediction != testEntry(1).Prediction {
		t.Fatalf("expected the row in the recreated log, got %+v", entries)
	}
}

func TestAppendFollowsReplacedLog(t *testing.T) {
	l, path := newTestLog(t)
	if err := l.Append(context.Background(), testEntry(0)); err != nil {
		t.Fatal(err)
	}
	archived := path + ".1"
	if err := os.Rename(path, archived); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := l.Append(context.Background(), testEntry(1)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	current, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	old, err := ReadFile(archived)
	if err != nil {
		t.Fatalf("ReadFile archived failed: %v", err)
	}
	if len(current) != 1 || len(old) != 1 {
		t.Fatalf("expected one row in each file, got %d current and %d archived", len(current), len(old))
	}
}

func TestWatcherResetsOnRemove(t *testing.T) {
	l, path := newTestLog(t)
	if err := l.Append(context.Background(), testEntry(0)); err != nil {
		t.Fatal(err)
	}
	w, err := Watch(l, nil)
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	defer w.Close()

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(3 * time.Second)
	for {
		l.mu.Lock()
		released := l.file == nil
		l.mu.Unlock()
		if released {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("watcher did not release removed log")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := l.Append(context.Background(), testEntry(1)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected log to be recreated: %v", err)
	}
}

type failingStore struct{ closed bool }

func (f *failingStore) Append(context.Context, LogEntry) error {
	return &LogWriteError{Path: "mirror", Err: fmt.Errorf("disk full")}
}

func (f *failingStore) Close() error {
	f.closed = true
	return nil
}

func TestTeeAttemptsEveryStore(t *testing.T) {
	l, path := newTestLog(t)
	bad := &failingStore{}
	store := Tee(bad, l)

	err := store.Append(context.Background(), testEntry(0))
	if !errors.Is(err, ErrLogWrite) {
		t.Fatalf("expected combined ErrLogWrite, got %v", err)
	}
	entries, readErr := ReadFile(path)
	if readErr != nil {
		t.Fatalf("ReadFile failed: %v", readErr)
	}
	if len(entries) != 1 {
		t.Fatalf("healthy store should still get the row, got %d", len(entries))
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !bad.closed {
		t.Fatal("expected every store to be closed")
	}
}
