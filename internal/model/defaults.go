package model

import (
	"time"
	"unicode/utf8"
)

// Shared defaults used by the CLI and the live monitor.
const (
	DefaultInterval = "1h"
	DefaultWindow   = "5m"
	DefaultRefresh  = 2 * time.Second
	DefaultTail     = 5000
	DefaultTopNodes = 10

	// MaxSampleErrors bounds the per-bucket alert samples. Earlier samples
	// are kept in preference to later ones.
	MaxSampleErrors = 8

	// MaxSampleMessageLen bounds the stored length of sample and example
	// messages.
	MaxSampleMessageLen = 200

	// MaxRecentAlerts bounds the live dashboard's recent-alert list.
	MaxRecentAlerts = 20
)

// TruncateMessage caps a message at max bytes without splitting a rune, so
// stored samples stay valid UTF-8 through checkpoint round trips.
func TruncateMessage(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
