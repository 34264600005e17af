// Package timespec parses the interval and time-range grammars used by the
// analyzer configuration and maps timestamps onto interval-aligned buckets.
package timespec

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var reInterval = regexp.MustCompile(`^(\d+)([hms]?)$`)

// ParseInterval converts an interval string such as "30s", "10m", or "1h"
// into seconds. A bare integer defaults to hours. Invalid or non-positive
// intervals are a configuration error.
func ParseInterval(s string) (int64, error) {
	raw := s
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, fmt.Errorf("interval must be a positive duration like '10m', '30s', or '1h'")
	}

	m := reInterval.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid interval %q; expected <int>[h|m|s] like '10m', '30s', '1h'", raw)
	}

	value, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("invalid interval %q; value must be > 0 (example: '1m')", raw)
	}

	switch m[2] {
	case "s":
		return value, nil
	case "m":
		return value * 60, nil
	default: // "h" or bare integer
		return value * 3600, nil
	}
}

var absoluteLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

var clockLayouts = []string{
	"15:04:05",
	"15:04",
}

// ParseTimeArg parses a user-provided time bound into epoch seconds.
// Absolute forms ("2026-01-27", "2026-01-27 09:00[:00]") are taken as-is;
// time-only forms ("09:00[:00]") are interpreted against now's date.
func ParseTimeArg(s string, now time.Time) (float64, error) {
	s = strings.TrimSpace(s)

	for _, layout := range absoluteLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return float64(ts.UnixNano()) / 1e9, nil
		}
	}

	for _, layout := range clockLayouts {
		if clock, err := time.Parse(layout, s); err == nil {
			ts := time.Date(now.Year(), now.Month(), now.Day(),
				clock.Hour(), clock.Minute(), clock.Second(), 0, time.Local)
			return float64(ts.UnixNano()) / 1e9, nil
		}
	}

	return 0, fmt.Errorf("unrecognized time format %q; supported: 2026-01-27, 2026-01-27 09:00, 2026-01-27 09:00:00, 09:00, 09:00:00", s)
}

// BucketStart aligns a timestamp down to the interval grid.
func BucketStart(ts float64, intervalSec int64) int64 {
	return int64(math.Floor(ts/float64(intervalSec))) * intervalSec
}

// BucketLabel formats a bucket start for display, with granularity matched
// to the interval width.
func BucketLabel(start, intervalSec int64) string {
	t := time.Unix(start, 0)
	switch {
	case intervalSec >= 3600:
		return t.Format("2006-01-02 15:00")
	case intervalSec >= 60:
		return t.Format("2006-01-02 15:04")
	default:
		return t.Format("2006-01-02 15:04:05")
	}
}

// FormatInterval renders an interval in its most compact unit.
func FormatInterval(sec int64) string {
	switch {
	case sec >= 3600 && sec%3600 == 0:
		return fmt.Sprintf("%dh", sec/3600)
	case sec >= 60 && sec%60 == 0:
		return fmt.Sprintf("%dm", sec/60)
	default:
		return fmt.Sprintf("%ds", sec)
	}
}
