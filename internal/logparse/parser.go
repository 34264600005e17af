// Package logparse turns raw launch-log lines into structured records.
//
// Three line shapes are recognized, tried strictest first:
//
//  1. launch supervisor: "TIMESTAMP [LEVEL] [node-pid] message"
//  2. node logging:      "TIMESTAMP [node-pid] [LEVEL] [ts] [name]: message"
//  3. raw node stdout:   "TIMESTAMP [node-pid] text" (level inferred from
//     ANSI color escapes when present)
//
// Lines matching none of the shapes are reported as unparseable and skipped
// by callers; parsing is never fatal.
package logparse

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/agvlabs/launchstat/internal/model"
)

var (
	reLaunch = regexp.MustCompile(
		`^(\d+\.\d+)\s+\[(INFO|ERROR|WARN|DEBUG|FATAL)\]\s+\[([^\]]+)\]:?\s*(.*)$`)

	reNodeLog = regexp.MustCompile(
		`^(\d+\.\d+)\s+\[([^\]]+)\]\s+\[(INFO|ERROR|WARN|DEBUG|FATAL)\]\s*(.*)$`)

	reNodeRaw = regexp.MustCompile(
		`^(\d+\.\d+)\s+\[([^\]]+)\]\s*(.*)$`)

	// Inner "[ros_ts] [short_name]:" prefix of the node-logging shape.
	reNodeLogPrefix = regexp.MustCompile(`^\[[\d.]+\]\s*\[[^\]]+\]:?\s*`)

	reANSI = regexp.MustCompile(`\x1b\[[0-9;]*m`)

	// Color escapes carry the level for raw stdout lines. Both plain and
	// bold forms appear in the wild.
	reColorLevel = regexp.MustCompile(`\x1b\[(?:1;)?(3[0-9])m`)

	rePIDSuffix = regexp.MustCompile(`-\d+$`)
)

var colorLevels = map[string]model.Level{
	"31": model.LevelError, // red
	"33": model.LevelWarn,  // yellow
	"37": model.LevelInfo,  // white
	"32": model.LevelDebug, // green
	"35": model.LevelFatal, // magenta
}

// Parse parses one log line. ok is false when the line matches none of the
// known shapes (blank lines, stack-trace continuations, binary garbage).
func Parse(line string) (rec model.LogRecord, ok bool) {
	if m := reLaunch.FindStringSubmatch(line); m != nil {
		ts, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return model.LogRecord{}, false
		}
		node := strings.TrimSuffix(m[3], ":")
		return newRecord(ts, m[2], node, m[4], line), true
	}

	if m := reNodeLog.FindStringSubmatch(line); m != nil {
		ts, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return model.LogRecord{}, false
		}
		msg := reNodeLogPrefix.ReplaceAllString(m[4], "")
		return newRecord(ts, m[3], m[2], msg, line), true
	}

	if m := reNodeRaw.FindStringSubmatch(line); m != nil {
		ts, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return model.LogRecord{}, false
		}
		level := model.LevelInfo
		if cm := reColorLevel.FindStringSubmatch(line); cm != nil {
			if lvl, found := colorLevels[cm[1]]; found {
				level = lvl
			}
		}
		return newRecord(ts, string(level), m[2], m[3], line), true
	}

	return model.LogRecord{}, false
}

func newRecord(ts float64, level, node, msg, raw string) model.LogRecord {
	return model.LogRecord{
		Timestamp: ts,
		Level:     NormalizeLevel(level),
		Node:      node,
		NodeBase:  NormalizeNode(node),
		Message:   strings.TrimSpace(StripANSI(msg)),
		Raw:       raw,
	}
}

// NormalizeNode strips the trailing "-<pid>" instance suffix so counts for
// restarted processes group under one name. The full identifier stays on
// the record for exact filtering.
func NormalizeNode(node string) string {
	return rePIDSuffix.ReplaceAllString(node, "")
}

// NormalizeLevel maps level token variants onto the canonical set.
func NormalizeLevel(level string) model.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "FATAL", "CRITICAL":
		return model.LevelFatal
	case "ERROR", "ERR":
		return model.LevelError
	case "WARN", "WARNING":
		return model.LevelWarn
	case "INFO":
		return model.LevelInfo
	case "DEBUG":
		return model.LevelDebug
	default:
		return model.LevelUnknown
	}
}

// StripANSI removes terminal color escape sequences.
func StripANSI(s string) string {
	if !strings.Contains(s, "\x1b") {
		return s
	}
	return reANSI.ReplaceAllString(s, "")
}
