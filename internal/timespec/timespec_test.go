package timespec

import (
	"testing"
	"time"
)

func TestParseInterval(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"30s", 30},
		{"10m", 600},
		{"1h", 3600},
		{"2", 7200}, // bare integer defaults to hours
		{" 5M ", 300},
	}
	for _, tt := range tests {
		got, err := ParseInterval(tt.in)
		if err != nil {
			t.Errorf("ParseInterval(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseInterval(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseInterval_Invalid(t *testing.T) {
	for _, in := range []string{"", "0s", "abc", "10x", "-5m", "1h30m"} {
		if _, err := ParseInterval(in); err == nil {
			t.Errorf("ParseInterval(%q) succeeded, want error", in)
		}
	}
}

func TestParseTimeArg(t *testing.T) {
	now := time.Date(2026, 1, 27, 14, 30, 0, 0, time.Local)

	abs, err := ParseTimeArg("2026-01-27 09:00", now)
	if err != nil {
		t.Fatalf("absolute: %v", err)
	}
	want := float64(time.Date(2026, 1, 27, 9, 0, 0, 0, time.Local).Unix())
	if abs != want {
		t.Errorf("absolute = %v, want %v", abs, want)
	}

	clock, err := ParseTimeArg("09:15:30", now)
	if err != nil {
		t.Fatalf("time-only: %v", err)
	}
	want = float64(time.Date(2026, 1, 27, 9, 15, 30, 0, time.Local).Unix())
	if clock != want {
		t.Errorf("time-only = %v, want %v", clock, want)
	}

	day, err := ParseTimeArg("2026-01-27", now)
	if err != nil {
		t.Fatalf("date-only: %v", err)
	}
	want = float64(time.Date(2026, 1, 27, 0, 0, 0, 0, time.Local).Unix())
	if day != want {
		t.Errorf("date-only = %v, want %v", day, want)
	}

	if _, err := ParseTimeArg("not a time", now); err == nil {
		t.Error("invalid time accepted")
	}
}

func TestBucketStart_BoundaryStraddling(t *testing.T) {
	const interval = int64(600) // 10m

	// 61 seconds apart, straddling a 10-minute boundary: two buckets.
	a := float64(1706312399) // :59:59 within its slot
	b := a + 61
	if BucketStart(a, interval) == BucketStart(b, interval) {
		t.Errorf("timestamps straddling a boundary landed in one bucket (start=%d)",
			BucketStart(a, interval))
	}

	// 61 seconds apart within one slot: one bucket.
	c := float64(1706312400) // exactly on a boundary
	d := c + 61
	if BucketStart(c, interval) != BucketStart(d, interval) {
		t.Errorf("timestamps in one slot landed in two buckets: %d vs %d",
			BucketStart(c, interval), BucketStart(d, interval))
	}
}

func TestBucketStart_Alignment(t *testing.T) {
	if got := BucketStart(1706312345.9, 600); got%600 != 0 {
		t.Errorf("bucket start %d not aligned to interval", got)
	}
}

func TestFormatInterval(t *testing.T) {
	tests := []struct {
		sec  int64
		want string
	}{
		{3600, "1h"}, {600, "10m"}, {30, "30s"}, {90, "90s"},
	}
	for _, tt := range tests {
		if got := FormatInterval(tt.sec); got != tt.want {
			t.Errorf("FormatInterval(%d) = %q, want %q", tt.sec, got, tt.want)
		}
	}
}
