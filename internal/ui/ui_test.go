package ui

import (
	"strings"
	"testing"
	"time"
)

func TestRelativeTime(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		at   time.Time
		want string
	}{
		{time.Time{}, "never"},
		{now.Add(-30 * time.Second), "just now"},
		{now.Add(-5 * time.Minute), "5m ago"},
		{now.Add(-3 * time.Hour), "3h ago"},
		{now.AddDate(0, 0, -2), "2d ago"},
	}
	for _, tc := range cases {
		if got := RelativeTime(tc.at, now); got != tc.want {
			t.Errorf("RelativeTime(%v) = %q, want %q", tc.at, got, tc.want)
		}
	}
}

func TestProgressBar(t *testing.T) {
	t.Parallel()
	half := progressBar(5, 10)
	if strings.Count(half, "▰") != 5 || strings.Count(half, "▱") != 5 {
		t.Errorf("progressBar(5, 10) = %q", half)
	}
	empty := progressBar(0, 0)
	if strings.Count(empty, "▱") != 10 {
		t.Errorf("progressBar(0, 0) = %q", empty)
	}
	full := progressBar(3, 3)
	if strings.Count(full, "▰") != 10 {
		t.Errorf("progressBar(3, 3) = %q", full)
	}
}

func TestSparkline(t *testing.T) {
	t.Parallel()
	flat := sparkline([]float64{0, 0, 0, 0})
	if strings.Count(flat, "▁") != 4 {
		t.Errorf("sparkline(flat) = %q", flat)
	}
	rising := sparkline([]float64{0, 1, 2, 4})
	if !strings.HasSuffix(strings.TrimSuffix(rising, reset), "█") {
		t.Errorf("sparkline(rising) = %q, want full block last", rising)
	}
}

func TestClip(t *testing.T) {
	t.Parallel()
	if got := clip("short", 10); got != "short" {
		t.Errorf("clip(short) = %q", got)
	}
	if got := clip("a very long title indeed", 10); len([]rune(got)) != 10 {
		t.Errorf("clip long = %q (%d runes)", got, len([]rune(got)))
	}
}
