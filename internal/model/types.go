package model

// Level classifies the severity of one log line. Values mirror the level
// tokens that appear in launch logs; UNKNOWN covers lines whose level could
// not be determined.
type Level string

const (
	LevelFatal   Level = "FATAL"
	LevelError   Level = "ERROR"
	LevelWarn    Level = "WARN"
	LevelInfo    Level = "INFO"
	LevelDebug   Level = "DEBUG"
	LevelUnknown Level = "UNKNOWN"
)

// Levels lists the known levels in display order, most severe first.
var Levels = []Level{LevelFatal, LevelError, LevelWarn, LevelInfo, LevelDebug}

// IsAlert reports whether the level is FATAL, ERROR, or WARN.
func (l Level) IsAlert() bool {
	return l == LevelFatal || l == LevelError || l == LevelWarn
}

// LogRecord is one parsed launch-log line. It is immutable once produced by
// the parser; aggregation never retains it past the current line.
type LogRecord struct {
	Timestamp float64 // seconds since epoch
	Level     Level
	Node      string // full identifier as logged, e.g. "motor_driver_node-11"
	NodeBase  string // identifier with the trailing -<pid> suffix stripped
	Message   string // message text with ANSI escapes removed
	Raw       string
}

// TimeBucket aggregates counts for one interval-aligned time slot.
type TimeBucket struct {
	Start        int64            `json:"start"`
	End          int64            `json:"end"`
	Total        int64            `json:"total"`
	LevelCounts  map[Level]int64  `json:"level_counts"`
	NodeCounts   map[string]int64 `json:"node_counts"`
	SampleErrors []string         `json:"sample_errors,omitempty"`

	// Spike is derived on read from the trailing bucket average and is not
	// part of the persisted state.
	Spike bool `json:"-"`
}

// AlertCount returns the bucket's combined ERROR+FATAL count.
func (b *TimeBucket) AlertCount() int64 {
	return b.LevelCounts[LevelError] + b.LevelCounts[LevelFatal]
}

// NodeStat aggregates lifetime counts for one node.
type NodeStat struct {
	Node        string          `json:"node"`
	Total       int64           `json:"total"`
	LevelCounts map[Level]int64 `json:"level_counts"`
	FirstSeen   float64         `json:"first_seen"`
	LastSeen    float64         `json:"last_seen"`
}

// MessagePattern is a cluster of structurally similar alert messages.
// Example holds the first message observed for the template and is never
// replaced, so reports stay stable across incremental reruns.
type MessagePattern struct {
	Template string `json:"template"`
	Count    int64  `json:"count"`
	Example  string `json:"example"`
}

// Summary holds run-wide totals.
type Summary struct {
	TotalLines   int64
	ParsedLines  int64
	MatchedLines int64
	LevelTotals  map[Level]int64
	From         float64 // earliest accepted timestamp, 0 when no lines matched
	To           float64 // latest accepted timestamp, 0 when no lines matched
	RunSeconds   float64 // wall-clock duration of the current run
}
