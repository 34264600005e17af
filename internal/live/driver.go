// Package live follows a growing launch log and redraws a terminal
// dashboard as records arrive. The loop is a plain polling state machine:
// drain whatever the file holds, redraw, sleep, check for rotation, repeat.
package live

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/agvlabs/launchstat/internal/aggregate"
	"github.com/agvlabs/launchstat/internal/logparse"
	"github.com/agvlabs/launchstat/internal/model"
	"github.com/agvlabs/launchstat/internal/stream"
)

// State names the phase the follow loop is in.
type State int

const (
	StatePreloading State = iota
	StateReading
	StateIdle
	StateStopping
)

func (s State) String() string {
	switch s {
	case StatePreloading:
		return "PRELOADING"
	case StateReading:
		return "READING"
	case StateIdle:
		return "IDLE"
	case StateStopping:
		return "STOPPING"
	}
	return "UNKNOWN"
}

const (
	rotationCheckEvery = time.Second
	rateWindow         = 10 * time.Second
)

// Options configure a follow session.
type Options struct {
	Path      string
	TailLines int           // preload depth; <= 0 starts at end of file
	Refresh   time.Duration // redraw and poll cadence
	TopNodes  int
	Out       io.Writer
	Dashboard *Dashboard
}

// Driver runs the follow loop. Single goroutine; the reader, aggregator,
// and dashboard are owned exclusively by Run.
type Driver struct {
	opts   Options
	reader *stream.Reader
	agg    *aggregate.Aggregator

	state        State
	recentAlerts []string
	rateSamples  []rateSample
	rotations    int
}

type rateSample struct {
	at    time.Time
	lines int
}

// NewDriver opens the log positioned for the requested tail preload.
func NewDriver(opts Options, agg *aggregate.Aggregator) (*Driver, error) {
	if opts.Refresh <= 0 {
		opts.Refresh = model.DefaultRefresh
	}
	offset := int64(0)
	if opts.TailLines > 0 {
		var err error
		offset, err = stream.TailOffset(opts.Path, opts.TailLines)
		if err != nil {
			return nil, err
		}
	}
	reader, err := stream.Open(opts.Path, offset)
	if err != nil {
		return nil, err
	}
	if opts.TailLines <= 0 {
		if err := reader.SeekEnd(); err != nil {
			reader.Close()
			return nil, err
		}
	}
	return &Driver{opts: opts, reader: reader, agg: agg, state: StatePreloading}, nil
}

// Offset exposes the reader position for checkpointing after Run returns.
func (d *Driver) Offset() int64 { return d.reader.Offset() }

// Rotations reports how many file rotations the session survived.
func (d *Driver) Rotations() int { return d.rotations }

// Close releases the underlying file.
func (d *Driver) Close() error { return d.reader.Close() }

// Run drives the follow loop until ctx is cancelled. Cancellation is the
// normal exit: the loop drains once more, redraws a final frame, and
// returns nil.
func (d *Driver) Run(ctx context.Context) error {
	// Preload pass: anything already in the file counts but is drained in
	// one shot before the first redraw.
	if _, err := d.drain(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	d.redraw()

	lastRotationCheck := time.Now()
	ticker := time.NewTicker(d.opts.Refresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.state = StateStopping
			// Final drain with a fresh context so shutdown still collects
			// lines written during the last sleep.
			flushCtx, cancel := context.WithTimeout(context.Background(), d.opts.Refresh)
			if _, err := d.drain(flushCtx); err != nil {
				log.Printf("follow: final drain: %v", err)
			}
			cancel()
			d.redraw()
			return nil
		case <-ticker.C:
		}

		d.state = StateReading
		n, err := d.drain(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				continue // the ctx.Done branch runs the shutdown drain
			}
			return err
		}
		if n == 0 {
			d.state = StateIdle
		}

		if time.Since(lastRotationCheck) >= rotationCheckEvery {
			lastRotationCheck = time.Now()
			rotated, err := d.reader.CheckRotation()
			if err != nil {
				return err
			}
			if rotated {
				d.rotations++
				d.agg.ResetWindow()
				log.Printf("follow: %s rotated, window reset", d.opts.Path)
			}
		}

		d.redraw()
	}
}

func (d *Driver) drain(ctx context.Context) (int, error) {
	n, err := d.reader.ReadAvailable(ctx, d.ingestLine)
	if n > 0 {
		d.rateSamples = append(d.rateSamples, rateSample{at: time.Now(), lines: n})
	}
	return n, err
}

func (d *Driver) ingestLine(line string) {
	rec, ok := logparse.Parse(line)
	if !ok {
		d.agg.SkipLine()
		return
	}
	d.agg.Ingest(rec)
	if rec.Level.IsAlert() {
		d.pushAlert(rec)
	}
}

func (d *Driver) pushAlert(rec model.LogRecord) {
	entry := fmt.Sprintf("%s [%s] %s: %s",
		time.Unix(int64(rec.Timestamp), 0).Format("15:04:05"),
		rec.Level, rec.NodeBase, rec.Message)
	d.recentAlerts = append(d.recentAlerts, entry)
	if len(d.recentAlerts) > model.MaxRecentAlerts {
		d.recentAlerts = d.recentAlerts[len(d.recentAlerts)-model.MaxRecentAlerts:]
	}
}

// rate returns lines per second over the trailing window.
func (d *Driver) rate(now time.Time) float64 {
	cutoff := now.Add(-rateWindow)
	kept := d.rateSamples[:0]
	total := 0
	for _, s := range d.rateSamples {
		if s.at.After(cutoff) {
			kept = append(kept, s)
			total += s.lines
		}
	}
	d.rateSamples = kept
	return float64(total) / rateWindow.Seconds()
}

func (d *Driver) redraw() {
	if d.opts.Out == nil || d.opts.Dashboard == nil {
		return
	}
	now := time.Now()
	f := frame{
		path:         d.opts.Path,
		state:        d.state,
		buckets:      d.agg.TimeBuckets(),
		nodes:        d.agg.NodeStats(d.opts.TopNodes),
		summary:      d.agg.Summary(),
		recentAlerts: d.recentAlerts,
		rate:         d.rate(now),
		rotations:    d.rotations,
		now:          now,
	}
	fmt.Fprint(d.opts.Out, "\x1b[2J\x1b[H"+d.opts.Dashboard.Render(f))
}
