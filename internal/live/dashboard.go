package live

import (
	"fmt"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/lipgloss"

	"github.com/agvlabs/launchstat/internal/model"
	"github.com/agvlabs/launchstat/internal/timespec"
)

const (
	chartHeight  = 8
	defaultWidth = 100
)

var severityStyles = map[model.Level]lipgloss.Style{
	model.LevelFatal:   lipgloss.NewStyle().Foreground(lipgloss.Color("201")).Background(lipgloss.Color("201")),
	model.LevelError:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Background(lipgloss.Color("196")),
	model.LevelWarn:    lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Background(lipgloss.Color("208")),
	model.LevelInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Background(lipgloss.Color("39")),
	model.LevelDebug:   lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Background(lipgloss.Color("244")),
	model.LevelUnknown: lipgloss.NewStyle().Foreground(lipgloss.Color("250")).Background(lipgloss.Color("250")),
}

// Dashboard renders the periodic live view. It holds only layout state; the
// numbers come from the driver's aggregator on every redraw.
type Dashboard struct {
	Width       int
	IntervalSec int64
	WindowSec   int64
}

func (d *Dashboard) windowSec() int64 {
	if d.WindowSec > 0 {
		return d.WindowSec
	}
	return 300
}

// frame is everything one redraw needs, captured by the driver between
// reads so rendering never touches mutable state.
type frame struct {
	path         string
	state        State
	buckets      []model.TimeBucket
	nodes        []model.NodeStat
	summary      model.Summary
	recentAlerts []string
	rate         float64
	rotations    int
	now          time.Time
}

func (d *Dashboard) width() int {
	if d.Width > 0 {
		return d.Width
	}
	return defaultWidth
}

// Render composes the full dashboard screen.
func (d *Dashboard) Render(f frame) string {
	var sections []string
	sections = append(sections, d.header(f))
	sections = append(sections, d.chart(f))
	sections = append(sections, d.nodesPane(f))
	sections = append(sections, d.alertsPane(f))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (d *Dashboard) header(f frame) string {
	bold := lipgloss.NewStyle().Bold(true)
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))

	left := bold.Render("launchstat") + "  " + dim.Render(f.path)
	logClock := "-"
	if f.summary.To > 0 {
		logClock = time.Unix(int64(f.summary.To), 0).Format("15:04:05")
	}
	right := fmt.Sprintf("window %s  log %s  %s  %.1f lines/s  %s",
		timespec.FormatInterval(d.windowSec()),
		logClock,
		green.Render(f.state.String()),
		f.rate,
		f.now.Format("15:04:05"))
	if f.rotations > 0 {
		right = fmt.Sprintf("rotations: %d  ", f.rotations) + right
	}

	spacer := d.width() - lipgloss.Width(left) - lipgloss.Width(right)
	if spacer < 1 {
		spacer = 1
	}
	line := left + strings.Repeat(" ", spacer) + right
	rule := dim.Render(strings.Repeat("─", d.width()))
	return line + "\n" + rule
}

// chart draws one stacked severity bar per window bucket, most recent on
// the right, padded on the left so the chart fills its width from the
// first frame.
func (d *Dashboard) chart(f frame) string {
	chartWidth := d.width() - 22
	if chartWidth < 20 {
		chartWidth = 20
	}
	maxBars := chartWidth / 2

	buckets := f.buckets
	padding := 0
	if len(buckets) > maxBars {
		buckets = buckets[len(buckets)-maxBars:]
	} else {
		padding = maxBars - len(buckets)
	}

	bc := barchart.New(chartWidth, chartHeight,
		barchart.WithBarGap(1),
		barchart.WithBarWidth(1),
		barchart.WithNoAxis(),
	)

	for i := 0; i < padding; i++ {
		bc.Push(barchart.BarData{
			Label: "",
			Values: []barchart.BarValue{
				{Name: "EMPTY", Value: 0, Style: severityStyles[model.LevelUnknown]},
			},
		})
	}
	for _, b := range buckets {
		var values []barchart.BarValue
		for _, lvl := range model.Levels {
			if c := b.LevelCounts[lvl]; c > 0 {
				values = append(values, barchart.BarValue{
					Name:  string(lvl),
					Value: float64(c),
					Style: severityStyles[lvl],
				})
			}
		}
		if len(values) == 0 {
			values = append(values, barchart.BarValue{Name: "EMPTY", Value: 0, Style: severityStyles[model.LevelUnknown]})
		}
		bc.Push(barchart.BarData{Label: "", Values: values})
	}
	bc.Draw()

	legend := d.legend(f)
	title := lipgloss.NewStyle().Bold(true).Render(
		fmt.Sprintf("Volume per %s", timespec.FormatInterval(d.IntervalSec)))
	body := lipgloss.JoinHorizontal(lipgloss.Top, bc.View(), "  ", legend)
	return title + "\n" + body
}

func (d *Dashboard) legend(f frame) string {
	rows := []struct {
		lvl   model.Level
		color string
	}{
		{model.LevelFatal, "201"},
		{model.LevelError, "196"},
		{model.LevelWarn, "208"},
		{model.LevelInfo, "39"},
		{model.LevelDebug, "244"},
	}
	// Window-scoped counts, with the lifetime total underneath so a long
	// session still shows how much it has seen overall.
	window := make(map[model.Level]int64)
	for _, b := range f.buckets {
		for lvl, c := range b.LevelCounts {
			window[lvl] += c
		}
	}
	var lines []string
	for _, row := range rows {
		sw := lipgloss.NewStyle().Foreground(lipgloss.Color(row.color)).Render("■")
		lines = append(lines, fmt.Sprintf("%s %-5s %6d", sw, row.lvl, window[row.lvl]))
	}
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	lines = append(lines, dim.Render("─────────────"))
	lines = append(lines, dim.Render(fmt.Sprintf(" TOTAL %7d", f.summary.MatchedLines)))
	return strings.Join(lines, "\n")
}

func (d *Dashboard) nodesPane(f frame) string {
	title := lipgloss.NewStyle().Bold(true).Render("Active Nodes")
	if len(f.nodes) == 0 {
		return title + "\n" + lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Render("  none yet")
	}
	nameWidth := 0
	for _, n := range f.nodes {
		if len(n.Node) > nameWidth {
			nameWidth = len(n.Node)
		}
	}
	errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	var lines []string
	for _, n := range f.nodes {
		line := fmt.Sprintf("  %-*s %6d", nameWidth, n.Node, n.Total)
		if e := n.LevelCounts[model.LevelError] + n.LevelCounts[model.LevelFatal]; e > 0 {
			line += "  " + errStyle.Render(fmt.Sprintf("E:%d", e))
		}
		lines = append(lines, line)
	}
	return title + "\n" + strings.Join(lines, "\n")
}

func (d *Dashboard) alertsPane(f frame) string {
	title := lipgloss.NewStyle().Bold(true).Render("Recent Alerts")
	if len(f.recentAlerts) == 0 {
		return title + "\n" + lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Render("  none")
	}
	width := d.width() - 4
	var lines []string
	for _, a := range f.recentAlerts {
		if len(a) > width {
			a = a[:width-3] + "..."
		}
		lines = append(lines, "  "+a)
	}
	return title + "\n" + strings.Join(lines, "\n")
}
