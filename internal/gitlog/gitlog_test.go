package gitlog

import (
	"strings"
	"testing"
	"time"
)

func record(hash, author, ts, body string) string {
	return recordSep + hash + unitSep + author + unitSep + ts + unitSep + body
}

func TestParseLog(t *testing.T) {
	t.Parallel()

	t.Run("single commit with numstat", func(t *testing.T) {
		t.Parallel()
		out := record("abc123", "dev <dev@example.com>", "2025-04-01T10:00:00+02:00",
			"fixes #42\n\nlonger body line\n\n3\t1\tmain.go\n10\t0\tstore/db.go\n")
		recs, err := parseLog(out)
		if err != nil {
			t.Fatalf("parseLog: %v", err)
		}
		if len(recs) != 1 {
			t.Fatalf("got %d records, want 1", len(recs))
		}
		r := recs[0]
		if r.Hash != "abc123" || r.Author != "dev <dev@example.com>" {
			t.Errorf("identity = %q / %q", r.Hash, r.Author)
		}
		if r.Message != "fixes #42\n\nlonger body line" {
			t.Errorf("message = %q", r.Message)
		}
		if r.FilesChanged != 2 || r.Insertions != 13 || r.Deletions != 1 {
			t.Errorf("stats = %d files +%d -%d", r.FilesChanged, r.Insertions, r.Deletions)
		}
		want := time.Date(2025, 4, 1, 10, 0, 0, 0, time.FixedZone("", 2*3600))
		if !r.CommittedAt.Equal(want) {
			t.Errorf("CommittedAt = %v, want %v", r.CommittedAt, want)
		}
	})

	t.Run("multiple commits newest first", func(t *testing.T) {
		t.Parallel()
		out := record("bbb", "a <a@x>", "2025-04-02T09:00:00Z", "second\n\n1\t1\tf.go\n") +
			record("aaa", "a <a@x>", "2025-04-01T09:00:00Z", "first\n")
		recs, err := parseLog(out)
		if err != nil {
			t.Fatalf("parseLog: %v", err)
		}
		if len(recs) != 2 || recs[0].Hash != "bbb" || recs[1].Hash != "aaa" {
			t.Errorf("records = %+v", recs)
		}
	})

	t.Run("binary numstat counts as zero", func(t *testing.T) {
		t.Parallel()
		out := record("ccc", "a <a@x>", "2025-04-01T09:00:00Z", "add icon\n\n-\t-\ticon.png\n")
		recs, err := parseLog(out)
		if err != nil {
			t.Fatalf("parseLog: %v", err)
		}
		r := recs[0]
		if r.FilesChanged != 1 || r.Insertions != 0 || r.Deletions != 0 {
			t.Errorf("stats = %d files +%d -%d", r.FilesChanged, r.Insertions, r.Deletions)
		}
	})

	t.Run("empty output", func(t *testing.T) {
		t.Parallel()
		recs, err := parseLog("")
		if err != nil || len(recs) != 0 {
			t.Errorf("parseLog(empty) = %v, %v", recs, err)
		}
	})

	t.Run("malformed record", func(t *testing.T) {
		t.Parallel()
		if _, err := parseLog(recordSep + "justahash"); err == nil {
			t.Error("parseLog accepted a record without field separators")
		}
	})

	t.Run("bad timestamp", func(t *testing.T) {
		t.Parallel()
		out := record("ddd", "a <a@x>", "yesterday", "msg\n")
		if _, err := parseLog(out); err == nil {
			t.Error("parseLog accepted a non-RFC3339 timestamp")
		}
	})
}

func TestParseNumstat(t *testing.T) {
	t.Parallel()
	cases := []struct {
		line    string
		added   int
		deleted int
		ok      bool
	}{
		{"3\t1\tmain.go", 3, 1, true},
		{"-\t-\tbin.dat", 0, 0, true},
		{"0\t12\tpath with spaces.go", 0, 12, true},
		{"not a numstat line", 0, 0, false},
		{"x\t1\tf.go", 0, 0, false},
		{"", 0, 0, false},
	}
	for _, tc := range cases {
		added, deleted, ok := parseNumstat(tc.line)
		if added != tc.added || deleted != tc.deleted || ok != tc.ok {
			t.Errorf("parseNumstat(%q) = %d, %d, %v; want %d, %d, %v",
				tc.line, added, deleted, ok, tc.added, tc.deleted, tc.ok)
		}
	}
}

func TestMessageSurvivesTabLookalikes(t *testing.T) {
	t.Parallel()
	// A message line that merely contains digits must not be mistaken for
	// a numstat line.
	out := record("eee", "a <a@x>", "2025-04-01T09:00:00Z", "bump to 1.2.3\n\n5\t2\tversion.go\n")
	recs, err := parseLog(out)
	if err != nil {
		t.Fatalf("parseLog: %v", err)
	}
	if !strings.Contains(recs[0].Message, "bump to 1.2.3") {
		t.Errorf("message = %q", recs[0].Message)
	}
	if recs[0].FilesChanged != 1 {
		t.Errorf("FilesChanged = %d, want 1", recs[0].FilesChanged)
	}
}
