package activity

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestLogRecordsEvents(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "activity.jsonl")

	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	l.Record(KindTodoAdded, 1, 42, nil)
	l.Record(KindTodoCompleted, 1, 42, map[string]string{"commit": "abc1234"})
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("unmarshal %q: %v", scanner.Text(), err)
		}
		events = append(events, e)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Kind != KindTodoAdded || events[0].EntityID != 42 {
		t.Errorf("first event = %+v", events[0])
	}
	if events[1].Kind != KindTodoCompleted || events[1].Timestamp.IsZero() {
		t.Errorf("second event = %+v", events[1])
	}
}

func TestLogAppends(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "activity.jsonl")

	for i := 0; i < 2; i++ {
		l, err := Open(path)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		l.Record(KindRecalculated, 1, 0, nil)
		l.Close()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	lines := 0
	for _, b := range data {
		if b == '\n' {
			lines++
		}
	}
	if lines != 2 {
		t.Errorf("log has %d lines, want 2 (reopen must append)", lines)
	}
}

func TestNilLogIsSafe(t *testing.T) {
	t.Parallel()
	var l *Log
	l.Record(KindTodoAdded, 1, 2, nil)
	if err := l.Close(); err != nil {
		t.Errorf("nil Close = %v", err)
	}
}
