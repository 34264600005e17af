package aggregate

import (
	"fmt"

	"github.com/agvlabs/launchstat/internal/model"
)

// SnapshotSchemaVersion guards restores across incompatible layout changes.
const SnapshotSchemaVersion = 1

// Snapshot is the serializable form of an Aggregator, embedded in
// checkpoints so a resumed run continues from accumulated state instead of
// rescanning.
type Snapshot struct {
	SchemaVersion int `json:"schema_version"`

	TotalLines   int64 `json:"total_lines"`
	ParsedLines  int64 `json:"parsed_lines"`
	MatchedLines int64 `json:"matched_lines"`

	LevelTotals map[model.Level]int64 `json:"level_totals"`
	TsMin       float64               `json:"ts_min"`
	TsMax       float64               `json:"ts_max"`

	Buckets  []model.TimeBucket     `json:"buckets"`
	Nodes    []model.NodeStat       `json:"nodes"`
	Patterns []model.MessagePattern `json:"patterns"`
}

// Snapshot captures the current state, including buckets that have aged
// out of a rolling window, so a checkpoint written from a follow session
// seeds a later full-history run completely. Bucket spike flags are
// derived at report time and are not persisted.
func (a *Aggregator) Snapshot() Snapshot {
	return Snapshot{
		SchemaVersion: SnapshotSchemaVersion,
		TotalLines:    a.totalLines,
		ParsedLines:   a.parsedLines,
		MatchedLines:  a.matchedLines,
		LevelTotals:   a.Summary().LevelTotals,
		TsMin:         a.tsMin,
		TsMax:         a.tsMax,
		Buckets:       a.AllBuckets(),
		Nodes:         a.NodeStats(0),
		Patterns:      a.MessagePatterns(),
	}
}

// Restore replaces the aggregator state with a snapshot. The caller is
// responsible for having validated the snapshot's provenance; Restore only
// rejects structurally unusable input.
func (a *Aggregator) Restore(s Snapshot) error {
	if s.SchemaVersion != SnapshotSchemaVersion {
		return fmt.Errorf("unsupported snapshot schema version %d", s.SchemaVersion)
	}
	a.totalLines = s.TotalLines
	a.parsedLines = s.ParsedLines
	a.matchedLines = s.MatchedLines
	a.tsMin = s.TsMin
	a.tsMax = s.TsMax
	a.latest = s.TsMax

	a.levelTotals = make(map[model.Level]int64, len(s.LevelTotals))
	for lvl, c := range s.LevelTotals {
		a.levelTotals[lvl] = c
	}

	a.buckets = make(map[int64]*model.TimeBucket, len(s.Buckets))
	a.history = make(map[int64]*model.TimeBucket)
	a.order = a.order[:0]
	for i := range s.Buckets {
		b := s.Buckets[i]
		b.Spike = false
		if b.LevelCounts == nil {
			b.LevelCounts = make(map[model.Level]int64)
		}
		if b.NodeCounts == nil {
			b.NodeCounts = make(map[string]int64)
		}
		a.buckets[b.Start] = &b
		a.insertOrdered(b.Start)
	}
	// In window mode, buckets older than the window move straight to
	// history so the live view starts correctly scoped.
	if a.cfg.WindowSec > 0 {
		a.evictExpired()
	}

	a.nodes = make(map[string]*model.NodeStat, len(s.Nodes))
	for i := range s.Nodes {
		n := s.Nodes[i]
		if n.LevelCounts == nil {
			n.LevelCounts = make(map[model.Level]int64)
		}
		a.nodes[n.Node] = &n
	}

	a.grouper.Restore(s.Patterns)
	return nil
}
