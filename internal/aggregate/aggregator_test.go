package aggregate

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/agvlabs/launchstat/internal/logparse"
	"github.com/agvlabs/launchstat/internal/model"
)

func rec(ts float64, level model.Level, node, msg string) model.LogRecord {
	return model.LogRecord{
		Timestamp: ts,
		Level:     level,
		Node:      node,
		NodeBase:  logparse.NormalizeNode(node),
		Message:   msg,
	}
}

func TestBucketAssignment(t *testing.T) {
	a := New(Config{IntervalSec: 600})
	a.Ingest(rec(1706312399.5, model.LevelInfo, "talker", "a"))
	a.Ingest(rec(1706312400.0, model.LevelInfo, "talker", "b"))
	a.Ingest(rec(1706312401.0, model.LevelInfo, "talker", "c"))

	buckets := a.TimeBuckets()
	if len(buckets) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(buckets))
	}
	if buckets[0].Start != 1706311800 || buckets[0].Total != 1 {
		t.Errorf("first bucket = start %d total %d", buckets[0].Start, buckets[0].Total)
	}
	if buckets[1].Start != 1706312400 || buckets[1].Total != 2 {
		t.Errorf("second bucket = start %d total %d", buckets[1].Start, buckets[1].Total)
	}
}

func TestNodeCountsStripPIDButFilterDoesNot(t *testing.T) {
	a := New(Config{IntervalSec: 3600, NodeFilter: "talker-12"})
	a.Ingest(rec(100, model.LevelInfo, "talker-12", "x"))
	a.Ingest(rec(101, model.LevelInfo, "talker-13", "y"))

	s := a.Summary()
	if s.MatchedLines != 1 {
		t.Fatalf("matched = %d, want 1 (filter matches full node id)", s.MatchedLines)
	}
	nodes := a.NodeStats(0)
	if len(nodes) != 1 || nodes[0].Node != "talker" {
		t.Errorf("nodes = %+v, want single pid-stripped entry", nodes)
	}
}

func TestErrorsOnlyFilter(t *testing.T) {
	a := New(Config{IntervalSec: 3600, ErrorsOnly: true})
	a.Ingest(rec(10, model.LevelInfo, "n", "fine"))
	a.Ingest(rec(11, model.LevelError, "n", "bad"))
	a.Ingest(rec(12, model.LevelWarn, "n", "iffy"))
	a.Ingest(rec(13, model.LevelFatal, "n", "dead"))

	s := a.Summary()
	if s.ParsedLines != 4 || s.MatchedLines != 3 {
		t.Errorf("parsed=%d matched=%d, want 4/3", s.ParsedLines, s.MatchedLines)
	}
}

func TestTimeRangeFilter(t *testing.T) {
	a := New(Config{IntervalSec: 3600, From: 100, To: 200})
	a.Ingest(rec(99.9, model.LevelInfo, "n", "early"))
	a.Ingest(rec(100, model.LevelInfo, "n", "on from bound"))
	a.Ingest(rec(200, model.LevelInfo, "n", "on to bound"))
	a.Ingest(rec(200.1, model.LevelInfo, "n", "late"))

	if got := a.Summary().MatchedLines; got != 2 {
		t.Errorf("matched = %d, want 2 (bounds inclusive)", got)
	}
}

func TestSampleErrorsBounded(t *testing.T) {
	a := New(Config{IntervalSec: 3600})
	for i := 0; i < 20; i++ {
		a.Ingest(rec(10, model.LevelError, "n", fmt.Sprintf("boom %d", i)))
	}
	b := a.TimeBuckets()[0]
	if len(b.SampleErrors) != model.MaxSampleErrors {
		t.Fatalf("samples = %d, want %d", len(b.SampleErrors), model.MaxSampleErrors)
	}
	if b.SampleErrors[0] != "boom 0" {
		t.Errorf("oldest sample = %q, want first observed kept", b.SampleErrors[0])
	}
}

func TestSampleErrorTruncationKeepsValidUTF8(t *testing.T) {
	a := New(Config{IntervalSec: 3600})
	msg := "x" + strings.Repeat("µ", model.MaxSampleMessageLen)
	a.Ingest(rec(10, model.LevelError, "n", msg))

	sample := a.TimeBuckets()[0].SampleErrors[0]
	if len(sample) > model.MaxSampleMessageLen {
		t.Fatalf("sample length = %d, want <= %d", len(sample), model.MaxSampleMessageLen)
	}
	if !utf8.ValidString(sample) {
		t.Errorf("sample truncated mid-rune: %q", sample[len(sample)-4:])
	}
}

func TestSpikeDetection(t *testing.T) {
	a := New(Config{IntervalSec: 60})
	// Five quiet minutes, then a burst.
	for minute := 0; minute < 5; minute++ {
		for i := 0; i < 10; i++ {
			a.Ingest(rec(float64(minute*60+i), model.LevelInfo, "n", "steady"))
		}
	}
	for i := 0; i < 30; i++ {
		a.Ingest(rec(float64(300+i), model.LevelInfo, "n", "burst"))
	}

	buckets := a.TimeBuckets()
	if len(buckets) != 6 {
		t.Fatalf("buckets = %d, want 6", len(buckets))
	}
	for i := 0; i < 5; i++ {
		if buckets[i].Spike {
			t.Errorf("bucket %d flagged without a full baseline", i)
		}
	}
	if !buckets[5].Spike {
		t.Errorf("burst bucket not flagged (total=%d vs baseline 10)", buckets[5].Total)
	}
}

func TestWindowEvictionPreservesLifetimeCounters(t *testing.T) {
	a := New(Config{IntervalSec: 60, WindowSec: 120})
	a.Ingest(rec(0, model.LevelError, "nav", "old"))
	a.Ingest(rec(600, model.LevelInfo, "nav", "new"))

	buckets := a.TimeBuckets()
	if len(buckets) != 1 || buckets[0].Start != 600 {
		t.Fatalf("expected only the recent bucket, got %+v", buckets)
	}
	// Lifetime stats survive eviction.
	if got := a.Summary().LevelTotals[model.LevelError]; got != 1 {
		t.Errorf("lifetime error total = %d, want 1", got)
	}
	nodes := a.NodeStats(0)
	if len(nodes) != 1 || nodes[0].Total != 2 {
		t.Errorf("node stats after eviction = %+v", nodes)
	}
}

func TestSnapshotRetainsEvictedBuckets(t *testing.T) {
	windowed := New(Config{IntervalSec: 60, WindowSec: 120})
	for i := 0; i < 20; i++ {
		windowed.Ingest(rec(float64(i*60), model.LevelInfo, "nav", "tick"))
	}
	if live := len(windowed.TimeBuckets()); live >= 20 {
		t.Fatalf("window did not evict (%d live buckets)", live)
	}

	// A full-history run seeded from the windowed snapshot must see every
	// bucket, not just the surviving window.
	restored := New(Config{IntervalSec: 60})
	if err := restored.Restore(windowed.Snapshot()); err != nil {
		t.Fatalf("restore: %v", err)
	}
	buckets := restored.TimeBuckets()
	if len(buckets) != 20 {
		t.Fatalf("restored %d buckets, want all 20", len(buckets))
	}
	var sum int64
	for _, b := range buckets {
		sum += b.Total
	}
	if sum != restored.Summary().MatchedLines {
		t.Errorf("bucket sum %d != matched %d after restore", sum, restored.Summary().MatchedLines)
	}
}

func TestFingerprintIgnoresWindow(t *testing.T) {
	follow := Config{IntervalSec: 60, WindowSec: 300}
	static := Config{IntervalSec: 60}
	if follow.Fingerprint() != static.Fingerprint() {
		t.Errorf("window width leaked into fingerprint: %q vs %q",
			follow.Fingerprint(), static.Fingerprint())
	}
	filtered := Config{IntervalSec: 60, ErrorsOnly: true}
	if filtered.Fingerprint() == static.Fingerprint() {
		t.Error("filter change did not change fingerprint")
	}
}

func TestEvictionKeepsStraddlingSlot(t *testing.T) {
	a := New(Config{IntervalSec: 60, WindowSec: 120})
	a.Ingest(rec(360, model.LevelInfo, "n", "old slot"))
	a.Ingest(rec(425, model.LevelInfo, "n", "straddling slot"))
	a.Ingest(rec(600, model.LevelInfo, "n", "now"))

	// cutoff = 600-120 = 480: the slot [360,420) ended before it and goes,
	// the slot [420,480) ends exactly on it and stays.
	buckets := a.TimeBuckets()
	if len(buckets) != 2 || buckets[0].Start != 420 || buckets[1].Start != 600 {
		t.Errorf("window buckets = %+v, want slots 420 and 600", buckets)
	}
	if all := a.AllBuckets(); len(all) != 3 {
		t.Errorf("AllBuckets = %d, want evicted slot retained", len(all))
	}
}

func TestResetWindowKeepsNodes(t *testing.T) {
	a := New(Config{IntervalSec: 60, WindowSec: 300})
	a.Ingest(rec(10, model.LevelInfo, "lidar", "x"))
	a.ResetWindow()

	if len(a.TimeBuckets()) != 0 {
		t.Error("buckets survived ResetWindow")
	}
	if a.NodeCount() != 1 {
		t.Errorf("node count = %d, want 1", a.NodeCount())
	}
}

func TestNodeStatsOrdering(t *testing.T) {
	a := New(Config{IntervalSec: 3600})
	a.Ingest(rec(5, model.LevelInfo, "beta", "x"))
	a.Ingest(rec(6, model.LevelInfo, "beta", "x"))
	a.Ingest(rec(1, model.LevelInfo, "alpha", "x"))
	a.Ingest(rec(2, model.LevelInfo, "gamma", "x"))

	nodes := a.NodeStats(2)
	if len(nodes) != 2 {
		t.Fatalf("topN not applied: %d nodes", len(nodes))
	}
	if nodes[0].Node != "beta" || nodes[1].Node != "alpha" {
		t.Errorf("order = [%s %s], want count desc then first-seen asc", nodes[0].Node, nodes[1].Node)
	}
}

func TestOutOfOrderTimestamps(t *testing.T) {
	a := New(Config{IntervalSec: 60})
	a.Ingest(rec(120, model.LevelInfo, "n", "later"))
	a.Ingest(rec(30, model.LevelInfo, "n", "earlier"))

	buckets := a.TimeBuckets()
	if len(buckets) != 2 || buckets[0].Start != 0 || buckets[1].Start != 120 {
		t.Errorf("buckets not sorted by start: %+v", buckets)
	}
	s := a.Summary()
	if s.From != 30 || s.To != 120 {
		t.Errorf("range = [%v %v], want [30 120]", s.From, s.To)
	}
}

func TestTalliesAgree(t *testing.T) {
	a := New(Config{IntervalSec: 60})
	levels := []model.Level{model.LevelInfo, model.LevelError, model.LevelWarn, model.LevelDebug, model.LevelFatal}
	nodes := []string{"nav-1", "lidar-2", "planner-3"}
	for i := 0; i < 137; i++ {
		a.Ingest(rec(float64(1706312400+i*7), levels[i%len(levels)], nodes[i%len(nodes)], fmt.Sprintf("m %d", i)))
	}

	var bucketSum, nodeSum, levelSum int64
	for _, b := range a.TimeBuckets() {
		bucketSum += b.Total
	}
	for _, n := range a.NodeStats(0) {
		nodeSum += n.Total
	}
	for _, c := range a.Summary().LevelTotals {
		levelSum += c
	}
	matched := a.Summary().MatchedLines
	if bucketSum != matched || nodeSum != matched || levelSum != matched {
		t.Errorf("tallies disagree: buckets=%d nodes=%d levels=%d matched=%d",
			bucketSum, nodeSum, levelSum, matched)
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	a := New(Config{IntervalSec: 600})
	a.SkipLine()
	a.Ingest(rec(1706312401, model.LevelError, "nav-12", "planner failed after 3 retries"))
	a.Ingest(rec(1706312402, model.LevelInfo, "lidar", "scan ok"))

	snap := a.Snapshot()

	b := New(Config{IntervalSec: 600})
	if err := b.Restore(snap); err != nil {
		t.Fatalf("restore: %v", err)
	}
	b.Ingest(rec(1706312403, model.LevelError, "nav-12", "planner failed after 5 retries"))

	s := b.Summary()
	if s.TotalLines != 4 || s.ParsedLines != 3 || s.MatchedLines != 3 {
		t.Errorf("counters = %d/%d/%d, want 4/3/3", s.TotalLines, s.ParsedLines, s.MatchedLines)
	}
	pats := b.MessagePatterns()
	if len(pats) != 1 || pats[0].Count != 2 {
		t.Fatalf("patterns after restore = %+v, want merged template", pats)
	}
	nodes := b.NodeStats(0)
	if len(nodes) != 2 || nodes[0].Node != "nav" || nodes[0].Total != 2 {
		t.Errorf("nodes after restore = %+v", nodes)
	}
}

func TestRestoreRejectsWrongSchema(t *testing.T) {
	a := New(Config{IntervalSec: 600})
	err := a.Restore(Snapshot{SchemaVersion: 99})
	if err == nil {
		t.Fatal("expected schema version error")
	}
}
