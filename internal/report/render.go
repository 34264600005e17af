// Package report renders a static terminal summary of an analyzed launch
// log: run totals, severity distribution, per-bucket volume with spike
// markers, node activity, and recurring alert templates.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/agvlabs/launchstat/internal/model"
	"github.com/agvlabs/launchstat/internal/timespec"
)

var levelColors = map[model.Level]lipgloss.Color{
	model.LevelFatal:   lipgloss.Color("13"),
	model.LevelError:   lipgloss.Color("9"),
	model.LevelWarn:    lipgloss.Color("214"),
	model.LevelInfo:    lipgloss.Color("12"),
	model.LevelDebug:   lipgloss.Color("42"),
	model.LevelUnknown: lipgloss.Color("240"),
}

// Options control report layout.
type Options struct {
	IntervalSec int64
	TopNodes    int
	Width       int // bar column width; <= 0 uses a default
}

// Render produces the full report from any Reporter. The output ends with
// a newline.
func Render(r model.Reporter, opts Options) string {
	if opts.Width <= 0 {
		opts.Width = 40
	}
	if opts.TopNodes <= 0 {
		opts.TopNodes = 10
	}

	var b strings.Builder
	writeSummary(&b, r.Summary())
	writeLevels(&b, r.Summary(), opts)
	writeBuckets(&b, r.TimeBuckets(), opts)
	writeNodes(&b, r.NodeStats(opts.TopNodes), opts)
	writePatterns(&b, r.MessagePatterns(), opts)
	return b.String()
}

func heading(s string) string {
	return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).Render(s)
}

func dim(s string) string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Render(s)
}

func bar(count, max int64, width int) string {
	if max <= 0 {
		return strings.Repeat("░", width)
	}
	fill := int(float64(count) * float64(width) / float64(max))
	if fill == 0 && count > 0 {
		fill = 1
	}
	if fill > width {
		fill = width
	}
	return strings.Repeat("█", fill) + strings.Repeat("░", width-fill)
}

func fmtTS(ts float64) string {
	if ts == 0 {
		return "-"
	}
	return time.Unix(int64(ts), 0).Format("2006-01-02 15:04:05")
}

func writeSummary(b *strings.Builder, s model.Summary) {
	b.WriteString(heading("Launch Log Summary") + "\n\n")
	fmt.Fprintf(b, "  Lines read      %d\n", s.TotalLines)
	fmt.Fprintf(b, "  Lines parsed    %d\n", s.ParsedLines)
	fmt.Fprintf(b, "  Lines matched   %d\n", s.MatchedLines)
	if s.MatchedLines > 0 {
		fmt.Fprintf(b, "  Time range      %s %s %s\n", fmtTS(s.From), dim("to"), fmtTS(s.To))
	}
	fmt.Fprintf(b, "  Analyzed in     %.2fs\n", s.RunSeconds)
	b.WriteString("\n")
}

func writeLevels(b *strings.Builder, s model.Summary, opts Options) {
	b.WriteString(heading("Severity Distribution") + "\n\n")
	var max int64
	for _, lvl := range model.Levels {
		if c := s.LevelTotals[lvl]; c > max {
			max = c
		}
	}
	for _, lvl := range model.Levels {
		count := s.LevelTotals[lvl]
		if count == 0 {
			continue
		}
		style := lipgloss.NewStyle().Foreground(levelColors[lvl])
		fmt.Fprintf(b, "  %-7s %s %d\n", lvl, style.Render(bar(count, max, opts.Width)), count)
	}
	b.WriteString("\n")
}

func writeBuckets(b *strings.Builder, buckets []model.TimeBucket, opts Options) {
	b.WriteString(heading("Volume Over Time") + "\n\n")
	if len(buckets) == 0 {
		b.WriteString(dim("  no matched records") + "\n\n")
		return
	}
	var max int64
	for _, bk := range buckets {
		if bk.Total > max {
			max = bk.Total
		}
	}
	spikeStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	for _, bk := range buckets {
		label := timespec.BucketLabel(bk.Start, opts.IntervalSec)
		line := fmt.Sprintf("  %s %s %d", label, bar(bk.Total, max, opts.Width), bk.Total)
		line += levelBreakdown(bk.LevelCounts)
		if bk.Spike {
			line += " " + spikeStyle.Render("SPIKE")
		}
		b.WriteString(line + "\n")
		if tops := topBucketNodes(bk, 3); tops != "" {
			b.WriteString(dim("           "+tops) + "\n")
		}
	}
	b.WriteString("\n")
}

// levelBreakdown formats nonzero per-level counts as compact suffixes, the
// alert levels colored, the rest dimmed.
func levelBreakdown(counts map[model.Level]int64) string {
	out := ""
	for _, lvl := range model.Levels {
		c := counts[lvl]
		if c == 0 {
			continue
		}
		tag := fmt.Sprintf("%c:%d", lvl[0], c)
		switch lvl {
		case model.LevelFatal, model.LevelError:
			tag = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Render(tag)
		case model.LevelWarn:
			tag = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Render(tag)
		default:
			tag = dim(tag)
		}
		out += " " + tag
	}
	return out
}

// topBucketNodes names the busiest nodes of one bucket, up to n.
func topBucketNodes(bk model.TimeBucket, n int) string {
	if len(bk.NodeCounts) == 0 {
		return ""
	}
	type nc struct {
		node  string
		count int64
	}
	pairs := make([]nc, 0, len(bk.NodeCounts))
	for node, count := range bk.NodeCounts {
		pairs = append(pairs, nc{node, count})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].count != pairs[j].count {
			return pairs[i].count > pairs[j].count
		}
		return pairs[i].node < pairs[j].node
	})
	if len(pairs) > n {
		pairs = pairs[:n]
	}
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = fmt.Sprintf("%s(%d)", p.node, p.count)
	}
	return strings.Join(parts, " ")
}

func writeNodes(b *strings.Builder, nodes []model.NodeStat, opts Options) {
	fmt.Fprintf(b, "%s\n\n", heading(fmt.Sprintf("Top Nodes (%d)", len(nodes))))
	if len(nodes) == 0 {
		b.WriteString(dim("  no nodes observed") + "\n\n")
		return
	}
	nameWidth := 0
	for _, n := range nodes {
		if len(n.Node) > nameWidth {
			nameWidth = len(n.Node)
		}
	}
	max := nodes[0].Total
	for _, n := range nodes {
		line := fmt.Sprintf("  %-*s %s %d", nameWidth, n.Node, bar(n.Total, max, opts.Width/2), n.Total)
		if e := n.LevelCounts[model.LevelError] + n.LevelCounts[model.LevelFatal]; e > 0 {
			line += " " + lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Render(fmt.Sprintf("E:%d", e))
		}
		if w := n.LevelCounts[model.LevelWarn]; w > 0 {
			line += " " + lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Render(fmt.Sprintf("W:%d", w))
		}
		b.WriteString(line + "\n")
	}
	b.WriteString("\n")
}

func writePatterns(b *strings.Builder, patterns []model.MessagePattern, opts Options) {
	b.WriteString(heading("Recurring Alerts") + "\n\n")
	if len(patterns) == 0 {
		b.WriteString(dim("  no errors or warnings") + "\n\n")
		return
	}
	max := patterns[0].Count
	shown := patterns
	if len(shown) > 15 {
		shown = shown[:15]
	}
	for _, p := range shown {
		fmt.Fprintf(b, "  %s %4d  %s\n",
			lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Render(bar(p.Count, max, 12)),
			p.Count, p.Template)
		if p.Example != "" && p.Example != p.Template {
			b.WriteString(dim("                   e.g. "+p.Example) + "\n")
		}
	}
	b.WriteString("\n")
}
