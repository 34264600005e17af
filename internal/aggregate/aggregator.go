// Package aggregate maintains bounded-memory statistics over parsed launch
// log records: lazily created interval buckets, lifetime node counters, and
// alert message patterns. Memory grows with the time span of the log, not
// its line count.
package aggregate

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/agvlabs/launchstat/internal/model"
	"github.com/agvlabs/launchstat/internal/pattern"
	"github.com/agvlabs/launchstat/internal/timespec"
)

// Spike detection: a bucket is flagged when its total exceeds the mean of
// the previous spikeBaseline buckets by spikeFactor. The first spikeBaseline
// buckets of a run carry no baseline and are never flagged.
const (
	spikeBaseline = 5
	spikeFactor   = 2.0
)

// Config is the immutable per-run aggregation configuration.
type Config struct {
	IntervalSec int64
	WindowSec   int64  // rolling-window width; 0 = full-history mode
	NodeFilter  string // substring match against the full node identifier
	ErrorsOnly  bool
	From, To    float64 // accepted timestamp bounds, 0 = unbounded
}

// Fingerprint identifies the aggregation parameters a summary was built
// with. Checkpoints store it so a resumed run never mixes populations
// aggregated under different filters or a different bucket width. The
// window width is deliberately absent: it only scopes the live view, and
// snapshots always carry the full bucket history, so a follow session's
// checkpoint can seed a later static run and vice versa.
func (c Config) Fingerprint() string {
	return fmt.Sprintf("i=%d;n=%s;e=%t;from=%.3f;to=%.3f",
		c.IntervalSec, c.NodeFilter, c.ErrorsOnly, c.From, c.To)
}

// Aggregator accumulates records into time buckets and node counters. It is
// owned by a single goroutine; no internal locking.
type Aggregator struct {
	cfg Config

	buckets map[int64]*model.TimeBucket
	order   []int64 // bucket starts, kept sorted
	// history holds buckets that aged out of the rolling window. They leave
	// the live view but stay part of snapshots, so a checkpoint written
	// from a follow session restores the complete bucket record.
	history map[int64]*model.TimeBucket
	nodes   map[string]*model.NodeStat
	grouper *pattern.Grouper

	levelTotals  map[model.Level]int64
	totalLines   int64
	parsedLines  int64
	matchedLines int64
	tsMin, tsMax float64
	latest       float64 // highest accepted timestamp, drives window eviction

	started time.Time
}

func New(cfg Config) *Aggregator {
	if cfg.IntervalSec <= 0 {
		cfg.IntervalSec = 3600
	}
	return &Aggregator{
		cfg:         cfg,
		buckets:     make(map[int64]*model.TimeBucket),
		history:     make(map[int64]*model.TimeBucket),
		nodes:       make(map[string]*model.NodeStat),
		grouper:     pattern.NewGrouper(),
		levelTotals: make(map[model.Level]int64),
		started:     time.Now(),
	}
}

// Config returns the aggregation configuration.
func (a *Aggregator) Config() Config { return a.cfg }

// SkipLine accounts for a line the parser rejected. Unparseable lines are
// dropped silently; only the raw line counter moves.
func (a *Aggregator) SkipLine() { a.totalLines++ }

// Ingest folds one parsed record into the aggregate state.
func (a *Aggregator) Ingest(rec model.LogRecord) {
	a.totalLines++
	a.parsedLines++

	ts := rec.Timestamp
	if a.cfg.From != 0 && ts < a.cfg.From {
		return
	}
	if a.cfg.To != 0 && ts > a.cfg.To {
		return
	}
	if a.cfg.NodeFilter != "" && !strings.Contains(rec.Node, a.cfg.NodeFilter) {
		return
	}
	if a.cfg.ErrorsOnly && !rec.Level.IsAlert() {
		return
	}

	a.matchedLines++
	if a.matchedLines == 1 || ts < a.tsMin {
		a.tsMin = ts
	}
	if ts > a.tsMax {
		a.tsMax = ts
	}
	if ts > a.latest {
		a.latest = ts
	}

	b := a.BucketFor(ts)
	b.Total++
	b.LevelCounts[rec.Level]++
	b.NodeCounts[rec.NodeBase]++

	a.levelTotals[rec.Level]++
	a.ingestNode(rec, ts)

	if rec.Level.IsAlert() {
		a.grouper.Observe(rec.Message)
		if len(b.SampleErrors) < model.MaxSampleErrors {
			b.SampleErrors = append(b.SampleErrors,
				model.TruncateMessage(rec.Message, model.MaxSampleMessageLen))
		}
	}

	if a.cfg.WindowSec > 0 {
		a.evictExpired()
	}
}

// BucketFor returns the bucket owning ts, creating it lazily.
func (a *Aggregator) BucketFor(ts float64) *model.TimeBucket {
	start := timespec.BucketStart(ts, a.cfg.IntervalSec)
	if b, found := a.buckets[start]; found {
		return b
	}
	b := &model.TimeBucket{
		Start:       start,
		End:         start + a.cfg.IntervalSec,
		LevelCounts: make(map[model.Level]int64),
		NodeCounts:  make(map[string]int64),
	}
	a.buckets[start] = b
	a.insertOrdered(start)
	return b
}

func (a *Aggregator) ingestNode(rec model.LogRecord, ts float64) {
	n, found := a.nodes[rec.NodeBase]
	if !found {
		n = &model.NodeStat{
			Node:        rec.NodeBase,
			LevelCounts: make(map[model.Level]int64),
			FirstSeen:   ts,
			LastSeen:    ts,
		}
		a.nodes[rec.NodeBase] = n
	}
	n.Total++
	n.LevelCounts[rec.Level]++
	if ts < n.FirstSeen {
		n.FirstSeen = ts
	}
	if ts > n.LastSeen {
		n.LastSeen = ts
	}
}

// insertOrdered keeps the bucket start index sorted. Appends dominate since
// log time mostly advances; out-of-order starts take the insertion path.
func (a *Aggregator) insertOrdered(start int64) {
	if n := len(a.order); n == 0 || a.order[n-1] < start {
		a.order = append(a.order, start)
		return
	}
	i := sort.Search(len(a.order), func(i int) bool { return a.order[i] >= start })
	a.order = append(a.order, 0)
	copy(a.order[i+1:], a.order[i:])
	a.order[i] = start
}

// evictExpired moves window buckets whose slot ended at or before the
// window cutoff (latest accepted timestamp minus the window width) into
// history. Evicted buckets leave the live view only; lifetime node and
// level counters, and the snapshot record, are unaffected.
func (a *Aggregator) evictExpired() {
	cutoff := a.latest - float64(a.cfg.WindowSec)
	for len(a.order) > 0 && float64(a.order[0]+a.cfg.IntervalSec) < cutoff {
		a.retire(a.order[0])
		a.order = a.order[1:]
	}
}

// retire moves one bucket from the window into history, merging if an
// out-of-order record already recreated that slot once before.
func (a *Aggregator) retire(start int64) {
	b := a.buckets[start]
	delete(a.buckets, start)
	prev, found := a.history[start]
	if !found {
		a.history[start] = b
		return
	}
	prev.Total += b.Total
	for lvl, c := range b.LevelCounts {
		prev.LevelCounts[lvl] += c
	}
	for n, c := range b.NodeCounts {
		prev.NodeCounts[n] += c
	}
	for _, s := range b.SampleErrors {
		if len(prev.SampleErrors) >= model.MaxSampleErrors {
			break
		}
		prev.SampleErrors = append(prev.SampleErrors, s)
	}
}

// ResetWindow retires all window buckets after a file rotation, preserving
// lifetime node and level counters and the snapshot bucket record.
func (a *Aggregator) ResetWindow() {
	for _, start := range a.order {
		a.retire(start)
	}
	a.order = nil
}

// TimeBuckets returns copies of the current window buckets in start order,
// with spike flags derived from the trailing-average baseline. In
// full-history mode the window is everything.
func (a *Aggregator) TimeBuckets() []model.TimeBucket {
	out := make([]model.TimeBucket, 0, len(a.order))
	for _, start := range a.order {
		out = append(out, copyBucket(a.buckets[start]))
	}
	markSpikes(out)
	return out
}

// AllBuckets returns every bucket seen this run, retired and live, in
// start order. This is the serialization surface: a snapshot must cover
// the full record regardless of window eviction.
func (a *Aggregator) AllBuckets() []model.TimeBucket {
	out := make([]model.TimeBucket, 0, len(a.history)+len(a.buckets))
	for _, b := range a.history {
		out = append(out, copyBucket(b))
	}
	for _, b := range a.buckets {
		out = append(out, copyBucket(b))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	markSpikes(out)
	return out
}

func markSpikes(buckets []model.TimeBucket) {
	for i := spikeBaseline; i < len(buckets); i++ {
		var sum int64
		for j := i - spikeBaseline; j < i; j++ {
			sum += buckets[j].Total
		}
		avg := float64(sum) / float64(spikeBaseline)
		if avg > 0 && float64(buckets[i].Total) > avg*spikeFactor {
			buckets[i].Spike = true
		}
	}
}

// NodeStats returns the topN nodes by total count. Ties break by earliest
// first-seen, then node name ascending, so reports are reproducible.
// topN <= 0 returns all nodes.
func (a *Aggregator) NodeStats(topN int) []model.NodeStat {
	out := make([]model.NodeStat, 0, len(a.nodes))
	for _, n := range a.nodes {
		out = append(out, copyNodeStat(n))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		if out[i].FirstSeen != out[j].FirstSeen {
			return out[i].FirstSeen < out[j].FirstSeen
		}
		return out[i].Node < out[j].Node
	})
	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out
}

// NodeCount returns the number of distinct nodes seen.
func (a *Aggregator) NodeCount() int { return len(a.nodes) }

// MessagePatterns returns alert templates sorted by count descending.
func (a *Aggregator) MessagePatterns() []model.MessagePattern {
	return a.grouper.Patterns()
}

// Summary returns run-wide totals.
func (a *Aggregator) Summary() model.Summary {
	totals := make(map[model.Level]int64, len(a.levelTotals))
	for lvl, c := range a.levelTotals {
		totals[lvl] = c
	}
	return model.Summary{
		TotalLines:   a.totalLines,
		ParsedLines:  a.parsedLines,
		MatchedLines: a.matchedLines,
		LevelTotals:  totals,
		From:         a.tsMin,
		To:           a.tsMax,
		RunSeconds:   time.Since(a.started).Seconds(),
	}
}

func copyBucket(b *model.TimeBucket) model.TimeBucket {
	out := *b
	out.LevelCounts = make(map[model.Level]int64, len(b.LevelCounts))
	for lvl, c := range b.LevelCounts {
		out.LevelCounts[lvl] = c
	}
	out.NodeCounts = make(map[string]int64, len(b.NodeCounts))
	for n, c := range b.NodeCounts {
		out.NodeCounts[n] = c
	}
	out.SampleErrors = append([]string(nil), b.SampleErrors...)
	return out
}

func copyNodeStat(n *model.NodeStat) model.NodeStat {
	out := *n
	out.LevelCounts = make(map[model.Level]int64, len(n.LevelCounts))
	for lvl, c := range n.LevelCounts {
		out.LevelCounts[lvl] = c
	}
	return out
}
