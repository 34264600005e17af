// Package export writes analysis results in machine-readable form.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/agvlabs/launchstat/internal/model"
	"github.com/agvlabs/launchstat/internal/timespec"
)

// WriteCSV emits time buckets, node statistics, and message patterns as
// three labeled sections in one CSV stream.
func WriteCSV(w io.Writer, r model.Reporter, intervalSec int64) error {
	cw := csv.NewWriter(w)

	section := func(name string, header []string) error {
		if err := cw.Write([]string{"[" + name + "]"}); err != nil {
			return err
		}
		return cw.Write(header)
	}

	if err := section("time buckets", []string{"bucket_start", "bucket_label", "total", "fatal", "error", "warn", "info", "debug", "spike"}); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	for _, b := range r.TimeBuckets() {
		row := []string{
			strconv.FormatInt(b.Start, 10),
			timespec.BucketLabel(b.Start, intervalSec),
			strconv.FormatInt(b.Total, 10),
			strconv.FormatInt(b.LevelCounts[model.LevelFatal], 10),
			strconv.FormatInt(b.LevelCounts[model.LevelError], 10),
			strconv.FormatInt(b.LevelCounts[model.LevelWarn], 10),
			strconv.FormatInt(b.LevelCounts[model.LevelInfo], 10),
			strconv.FormatInt(b.LevelCounts[model.LevelDebug], 10),
			strconv.FormatBool(b.Spike),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
	}

	if err := section("node statistics", []string{"node", "total", "errors", "warnings", "first_seen", "last_seen"}); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	for _, n := range r.NodeStats(0) {
		row := []string{
			n.Node,
			strconv.FormatInt(n.Total, 10),
			strconv.FormatInt(n.LevelCounts[model.LevelError]+n.LevelCounts[model.LevelFatal], 10),
			strconv.FormatInt(n.LevelCounts[model.LevelWarn], 10),
			strconv.FormatFloat(n.FirstSeen, 'f', 3, 64),
			strconv.FormatFloat(n.LastSeen, 'f', 3, 64),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
	}

	if err := section("message patterns", []string{"template", "count", "example"}); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	for _, p := range r.MessagePatterns() {
		if err := cw.Write([]string{p.Template, strconv.FormatInt(p.Count, 10), p.Example}); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// WriteCSVFile writes the CSV report to path, creating or truncating it.
func WriteCSVFile(path string, r model.Reporter, intervalSec int64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	if err := WriteCSV(f, r, intervalSec); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close csv: %w", err)
	}
	return nil
}
