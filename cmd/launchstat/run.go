package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/agvlabs/launchstat/internal/aggregate"
	"github.com/agvlabs/launchstat/internal/checkpoint"
	"github.com/agvlabs/launchstat/internal/export"
	"github.com/agvlabs/launchstat/internal/live"
	"github.com/agvlabs/launchstat/internal/logparse"
	"github.com/agvlabs/launchstat/internal/report"
	"github.com/agvlabs/launchstat/internal/stream"
)

func run(cfg appConfig, logPath string) error {
	abs, err := filepath.Abs(logPath)
	if err != nil {
		return fmt.Errorf("resolve log path: %w", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Follow {
		return runFollow(ctx, cfg, abs)
	}
	return runStatic(ctx, cfg, abs)
}

func checkpointPath(cfg appConfig, logPath string) string {
	if cfg.CheckpointPath != "" {
		return cfg.CheckpointPath
	}
	return checkpoint.DefaultPath(logPath)
}

func runStatic(ctx context.Context, cfg appConfig, logPath string) error {
	aggCfg := aggregate.Config{
		IntervalSec: cfg.IntervalSec,
		NodeFilter:  cfg.Node,
		ErrorsOnly:  cfg.ErrorsOnly,
		From:        cfg.FromTS,
		To:          cfg.ToTS,
	}
	agg := aggregate.New(aggCfg)

	info, err := os.Stat(logPath)
	if err != nil {
		return fmt.Errorf("stat log: %w", err)
	}

	cpPath := checkpointPath(cfg, logPath)
	var offset int64
	if !cfg.FullRescan {
		cp, err := checkpoint.Load(cpPath)
		if err != nil {
			return err
		}
		if checkpoint.Validate(cp, logPath, info.Size(), aggCfg.Fingerprint()) == checkpoint.Resume {
			if err := agg.Restore(cp.Summary); err != nil {
				log.Printf("checkpoint: %v, rescanning from start", err)
				agg = aggregate.New(aggCfg)
			} else {
				offset = cp.ByteOffset
			}
		}
	}

	reader, err := stream.Open(logPath, offset)
	if err != nil {
		return err
	}
	defer reader.Close()

	_, err = reader.ReadAvailable(ctx, func(line string) {
		if rec, ok := logparse.Parse(line); ok {
			agg.Ingest(rec)
		} else {
			agg.SkipLine()
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	saveCheckpoint(cpPath, logPath, reader.Offset(), aggCfg.Fingerprint(), agg)

	fmt.Print(report.Render(agg, report.Options{
		IntervalSec: cfg.IntervalSec,
		TopNodes:    cfg.TopNodes,
		Width:       cfg.Width,
	}))

	return writeCSVIfAsked(cfg, agg)
}

func runFollow(ctx context.Context, cfg appConfig, logPath string) error {
	aggCfg := aggregate.Config{
		IntervalSec: cfg.IntervalSec,
		WindowSec:   cfg.WindowSec,
		NodeFilter:  cfg.Node,
		ErrorsOnly:  cfg.ErrorsOnly,
		From:        cfg.FromTS,
		To:          cfg.ToTS,
	}
	agg := aggregate.New(aggCfg)

	driver, err := live.NewDriver(live.Options{
		Path:      logPath,
		TailLines: cfg.Tail,
		Refresh:   cfg.Refresh,
		TopNodes:  cfg.TopNodes,
		Out:       os.Stdout,
		Dashboard: &live.Dashboard{Width: cfg.Width, IntervalSec: cfg.IntervalSec, WindowSec: cfg.WindowSec},
	}, agg)
	if err != nil {
		return err
	}
	defer driver.Close()

	if err := driver.Run(ctx); err != nil {
		return err
	}

	// Leave the terminal with a plain post-session summary under the last
	// dashboard frame.
	fmt.Println()
	fmt.Print(report.Render(agg, report.Options{
		IntervalSec: cfg.IntervalSec,
		TopNodes:    cfg.TopNodes,
		Width:       cfg.Width,
	}))

	saveCheckpoint(checkpointPath(cfg, logPath), logPath, driver.Offset(), aggCfg.Fingerprint(), agg)
	return writeCSVIfAsked(cfg, agg)
}

// saveCheckpoint persists progress on a best-effort basis. Analysis output
// already happened; a failed save costs the next run a rescan, not data.
func saveCheckpoint(cpPath, logPath string, offset int64, fingerprint string, agg *aggregate.Aggregator) {
	info, err := os.Stat(logPath)
	if err != nil {
		log.Printf("checkpoint: stat log: %v", err)
		return
	}
	cp := checkpoint.Checkpoint{
		FilePath:   logPath,
		FileSize:   info.Size(),
		FileMtime:  float64(info.ModTime().UnixNano()) / 1e9,
		ByteOffset: offset,
		Filters:    fingerprint,
		Summary:    agg.Snapshot(),
	}
	if err := checkpoint.Save(cpPath, cp); err != nil {
		log.Printf("checkpoint: %v", err)
	}
}

func writeCSVIfAsked(cfg appConfig, agg *aggregate.Aggregator) error {
	if cfg.CSVPath == "" {
		return nil
	}
	if err := export.WriteCSVFile(cfg.CSVPath, agg, cfg.IntervalSec); err != nil {
		return err
	}
	log.Printf("wrote %s", cfg.CSVPath)
	return nil
}
