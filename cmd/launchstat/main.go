// Command launchstat summarizes robot launch logs: severity and node
// breakdowns, per-interval volume with spike markers, and grouped recurring
// alerts. Repeated runs resume from a checkpoint; -follow keeps a live
// dashboard on a growing log.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"
)

// Build variables - set by ldflags during build.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	var configPath string
	var showVersion bool

	flag.StringVar(&configPath, "config", "", "config file (default is $HOME/.config/launchstat/config.yml)")
	flag.BoolVar(&showVersion, "version", false, "print version information")

	var flags appConfig
	flag.StringVar(&flags.Interval, "interval", "", "bucket width, e.g. 30m, 2h, or a bare hour count")
	flag.StringVar(&flags.Window, "window", "", "rolling window kept in -follow mode, e.g. 5m")
	flag.DurationVar(&flags.Refresh, "refresh", 0, "dashboard redraw cadence in -follow mode")
	flag.IntVar(&flags.Tail, "tail", -1, "lines preloaded before following; 0 starts at end of file")
	flag.IntVar(&flags.TopNodes, "top-nodes", 0, "node rows shown in reports")
	flag.IntVar(&flags.Width, "width", 0, "report column width; 0 picks a default")
	flag.StringVar(&flags.Node, "node", "", "only count nodes whose identifier contains this substring")
	flag.BoolVar(&flags.ErrorsOnly, "errors-only", false, "only count ERROR, WARN, and FATAL records")
	flag.StringVar(&flags.From, "from", "", "ignore records before this time (2006-01-02, 15:04, or 2006-01-02 15:04:05)")
	flag.StringVar(&flags.To, "to", "", "ignore records after this time")
	flag.StringVar(&flags.CSVPath, "csv", "", "also write results to this CSV file")
	flag.StringVar(&flags.CheckpointPath, "checkpoint", "", "checkpoint file (default is a dotfile next to the log)")
	flag.BoolVar(&flags.Follow, "follow", false, "keep reading and redraw a live dashboard")
	flag.BoolVar(&flags.FullRescan, "full", false, "ignore any existing checkpoint and rescan from the start")
	flag.Parse()

	if showVersion {
		fmt.Printf("launchstat - Launch Log Analyzer\n")
		fmt.Printf("  Version: %s\n", version)
		fmt.Printf("  Commit:  %s\n", commit)
		fmt.Printf("  Built:   %s\n", buildTime)
		return
	}

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: launchstat [flags] <logfile>")
		flag.PrintDefaults()
		os.Exit(2)
	}
	logPath := flag.Arg(0)

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	applyFlagOverrides(&cfg, &flags)
	if err := cfg.finalize(time.Now()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// applyFlagOverrides copies values for flags the user actually set on top
// of the config-file/env layer, so precedence is flags > env > file >
// defaults.
func applyFlagOverrides(cfg, flags *appConfig) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "interval":
			cfg.Interval = flags.Interval
		case "window":
			cfg.Window = flags.Window
		case "refresh":
			cfg.Refresh = flags.Refresh
		case "tail":
			cfg.Tail = flags.Tail
		case "top-nodes":
			cfg.TopNodes = flags.TopNodes
		case "width":
			cfg.Width = flags.Width
		case "node":
			cfg.Node = flags.Node
		case "errors-only":
			cfg.ErrorsOnly = flags.ErrorsOnly
		case "from":
			cfg.From = flags.From
		case "to":
			cfg.To = flags.To
		case "csv":
			cfg.CSVPath = flags.CSVPath
		case "checkpoint":
			cfg.CheckpointPath = flags.CheckpointPath
		case "follow":
			cfg.Follow = flags.Follow
		case "full":
			cfg.FullRescan = flags.FullRescan
		}
	})
}
