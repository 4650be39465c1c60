package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
	"pkg.jsn.cam/topreduce/internal/config"
	"pkg.jsn.cam/topreduce/internal/report"
	"pkg.jsn.cam/topreduce/internal/store"
	"pkg.jsn.cam/topreduce/pkg/topreduce"
)

const timeLayout = "2006-01-02 15:04:05"

func runCommand(ctx context.Context, log *logrus.Logger, args []string) error {
	cfg, err := config.ParseRun(args, os.Stderr)
	if err != nil {
		return err
	}
	log.SetLevel(cfg.LogLevel)

	runID := uuid.New().String()
	entry := log.WithField("run", runID)

	var bar *progressbar.ProgressBar
	var onMerge func(topreduce.MergeProgress)
	if cfg.Progress {
		bar = progressbar.Default(-1, "merging batches")
		onMerge = func(topreduce.MergeProgress) { _ = bar.Add(1) }
	}

	started := time.Now()
	rep, stats, err := topreduce.Run(ctx, topreduce.Config{
		InputDir:  cfg.InputDir,
		Workers:   cfg.Workers,
		BatchSize: cfg.BatchSize,
		Schema:    cfg.Schema,
		Logger:    entry,
		OnMerge:   onMerge,
	})
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		return err
	}

	path, err := report.WriteFormat(cfg.OutputDir, cfg.OutputName, rep, cfg.Format, cfg.ReportID)
	if err != nil {
		return err
	}
	completed := time.Now()

	if cfg.HistoryPath != "" {
		saveHistory(entry, cfg.HistoryPath, &store.Run{
			ID:          runID,
			InputDir:    cfg.InputDir,
			Workers:     cfg.Workers,
			BatchSize:   cfg.BatchSize,
			OutputPath:  path,
			StartedAt:   started,
			CompletedAt: completed,
			Stats:       stats,
			Report:      rep,
		})
	}

	fmt.Printf("Run completed!\n")
	fmt.Printf("  Run ID:    %s\n", runID)
	fmt.Printf("  Report:    %s\n", path)
	fmt.Printf("  Duration:  %v\n", completed.Sub(started).Round(time.Millisecond))
	printStats(stats)

	return nil
}

// saveHistory records a run. A failure here does not fail the run since the
// report has already been written.
func saveHistory(log logrus.FieldLogger, dbPath string, run *store.Run) {
	st, err := store.NewStorage(dbPath, log)
	if err != nil {
		log.WithError(err).Warn("[CLI] Could not open run history")
		return
	}
	defer st.Close()

	if err := st.SaveRun(run); err != nil {
		log.WithError(err).Warn("[CLI] Could not save run history")
	}
}

func openHistory(log *logrus.Logger, args []string, name string, idFlag config.RunIDFlag) (*config.History, *store.Storage, error) {
	cfg, err := config.ParseHistory(name, args, idFlag, os.Stderr)
	if err != nil {
		return nil, nil, err
	}
	log.SetLevel(cfg.LogLevel)

	st, err := store.NewStorage(cfg.HistoryPath, log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, st, nil
}

func historyCommand(_ context.Context, log *logrus.Logger, args []string) error {
	cfg, st, err := openHistory(log, args, "history", config.NoRunID)
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.ListRuns()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("No runs found")
		return nil
	}
	if cfg.Limit > 0 && len(runs) > cfg.Limit {
		runs = runs[:cfg.Limit]
	}

	fmt.Printf("%-36s %-16s %-10s %-12s %s\n", "RUN ID", "STARTED", "DURATION", "RECORDS", "INPUT")
	fmt.Println(strings.Repeat("─", 96))
	for _, run := range runs {
		fmt.Printf("%-36s %-16s %-10v %-12s %s\n",
			run.ID,
			humanize.Time(run.StartedAt),
			run.Duration().Round(time.Millisecond),
			humanize.Comma(int64(run.Stats.RowsDecoded)),
			run.InputDir)
	}

	return nil
}

func showCommand(_ context.Context, log *logrus.Logger, args []string) error {
	cfg, st, err := openHistory(log, args, "show", config.LatestRunID)
	if err != nil {
		return err
	}
	defer st.Close()

	run, err := st.GetRun(cfg.RunID)
	if err != nil {
		return err
	}

	fmt.Printf("Run Details:\n")
	fmt.Printf("  ID:          %s\n", run.ID)
	fmt.Printf("  Version:     %s\n", run.Version)
	fmt.Printf("  Input Path:  %s\n", run.InputDir)
	fmt.Printf("  Workers:     %d\n", run.Workers)
	fmt.Printf("  Batch Size:  %s records\n", humanize.Comma(int64(run.BatchSize)))
	fmt.Printf("  Report:      %s\n", run.OutputPath)
	fmt.Printf("  Started:     %s\n", run.StartedAt.Format(timeLayout))
	fmt.Printf("  Completed:   %s\n", run.CompletedAt.Format(timeLayout))
	fmt.Printf("  Duration:    %v\n", run.Duration().Round(time.Millisecond))
	printStats(run.Stats)

	if run.Report != nil {
		printReport(run.Report)
	}
	return nil
}

func deleteCommand(_ context.Context, log *logrus.Logger, args []string) error {
	cfg, st, err := openHistory(log, args, "delete", config.RequiredRunID)
	if err != nil {
		return err
	}
	defer st.Close()

	// Resolve the latest alias before deleting.
	run, err := st.GetRun(cfg.RunID)
	if err != nil {
		return err
	}
	if err := st.DeleteRun(run.ID); err != nil {
		return err
	}

	fmt.Printf("Run deleted: %s\n", run.ID)
	return nil
}

func printStats(stats topreduce.RunStats) {
	fmt.Printf("\nInput:\n")
	fmt.Printf("  Files:     %d scanned (%s), %d skipped\n",
		stats.FilesScanned, humanize.Bytes(uint64(stats.BytesScanned)), stats.FilesSkipped+stats.EntriesSkipped)
	fmt.Printf("  Records:   %s aggregated\n", humanize.Comma(int64(stats.RowsDecoded)))
	fmt.Printf("  Filtered:  %s invalid weights, %s malformed rows\n",
		humanize.Comma(int64(stats.RowsFiltered)), humanize.Comma(int64(stats.RowsMalformed)))
	fmt.Printf("  Batches:   %d/%d merged\n", stats.BatchesMerged, stats.Batches)
}

func printReport(r *topreduce.Report) {
	fmt.Printf("\nTop Entities:\n")
	fmt.Println(strings.Repeat("─", 57))
	for _, e := range r.TopEntities {
		fmt.Printf("%-40s %s\n", e.Entity, humanize.Comma(int64(e.Count)))
		for _, c := range e.Categories {
			fmt.Printf("  %-20s %-10s weight %-8d %q\n", c.Category, humanize.Comma(int64(c.Count)), c.TopWeight, c.TopText)
		}
	}

	fmt.Printf("\nTop Categories:\n")
	fmt.Println(strings.Repeat("─", 57))
	for _, c := range r.TopCategories {
		fmt.Printf("%-40s %s\n", c.Category, humanize.Comma(int64(c.Count)))
		for _, rec := range c.TopRecords {
			fmt.Printf("  %-8d %q\n", rec.Weight, rec.Text)
		}
	}
}
