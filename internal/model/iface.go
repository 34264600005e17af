package model

// Reporter is the read-side contract exposed to report and export consumers.
// Implementations return copies ordered deterministically: buckets by start
// time, node stats by total (ties by first-seen then name), patterns by
// count descending.
type Reporter interface {
	TimeBuckets() []TimeBucket
	NodeStats(topN int) []NodeStat
	MessagePatterns() []MessagePattern
	Summary() Summary
}
