// Package config validates command-line arguments for the topreduce CLI.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"runtime"
	"slices"
	"strconv"

	"github.com/sirupsen/logrus"
	"pkg.jsn.cam/topreduce/internal/report"
	"pkg.jsn.cam/topreduce/pkg/topreduce"
)

// WorkerMultiplier bounds the worker count to this many workers per logical
// CPU. Oversubscription is allowed so edge cases can be exercised.
const WorkerMultiplier = 10

// DefaultHistoryPath is the run history database used unless -history says
// otherwise.
const DefaultHistoryPath = "var/topreduce/history.db"

var (
	ErrMissingInputPath = errors.New("input path is required")
	ErrMissingOutput    = errors.New("output name is required")
	ErrInvalidWorkers   = errors.New("workers must be a positive integer")
	ErrTooManyWorkers   = errors.New("too many workers requested")
	ErrInvalidBatchSize = errors.New("batch size must be a positive integer")
	ErrMissingRunID     = errors.New("run ID is required")
)

// Run holds the validated arguments of the run command.
type Run struct {
	InputDir    string
	Workers     int
	OutputName  string // always carries report.Extension
	OutputDir   string
	BatchSize   int
	HistoryPath string // empty disables run history
	Progress    bool
	LogLevel    logrus.Level
	Schema      topreduce.Schema
	Format      report.Format
	ReportID    uint32 // only written by report.FormatReviews
}

// History holds the arguments of the history and show commands.
type History struct {
	HistoryPath string
	RunID       string
	Limit       int
	LogLevel    logrus.Level
}

// ParseRun parses run arguments. Besides flags it accepts the positional
// form `<input-dir> <workers> <output-name>`.
func ParseRun(args []string, stderr io.Writer) (*Run, error) {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)

	schema := topreduce.DefaultSchema()
	var (
		path      = fs.String("path", "", "Directory of CSV files to process")
		workers   = fs.String("workers", strconv.Itoa(runtime.NumCPU()), "Number of aggregation workers")
		out       = fs.String("out", "", "Report file name (.json is appended if missing)")
		outDir    = fs.String("out-dir", report.DefaultDir, "Directory reports are written to")
		batchSize = fs.Int("batch-size", topreduce.DefaultBatchSize, "Records per batch")
		history   = fs.String("history", DefaultHistoryPath, "Run history database (empty to disable)")
		progress  = fs.Bool("progress", false, "Show a progress spinner while merging")
		logLevel  = fs.String("log-level", "info", "Log level (debug, info, warn, error)")
		format    = fs.String("format", string(report.FormatStandard), "Report layout (standard, reviews)")
		reportID  = fs.Uint("report-id", 0, "Submitter ID written by the reviews layout")
	)
	fs.StringVar(&schema.Entity, "entity-col", schema.Entity, "Column holding the entity name")
	fs.StringVar(&schema.Category, "category-col", schema.Category, "Column holding the category")
	fs.StringVar(&schema.Text, "text-col", schema.Text, "Column holding the record text")
	fs.StringVar(&schema.Weight, "weight-col", schema.Weight, "Column holding the record weight")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if rest := fs.Args(); len(rest) > 0 {
		if len(rest) < 3 {
			return nil, fmt.Errorf("expected <input-dir> <workers> <output-name>, got %d arguments", len(rest))
		}
		positional := slices.Clone(rest[:3])

		// flag stops at the first positional argument; pick up the flags
		// that follow the three positionals.
		if err := fs.Parse(rest[3:]); err != nil {
			return nil, err
		}
		if extra := fs.Args(); len(extra) > 0 {
			return nil, fmt.Errorf("unexpected argument %q after <input-dir> <workers> <output-name>", extra[0])
		}
		*path, *workers, *out = positional[0], positional[1], positional[2]
	}

	if *path == "" {
		return nil, ErrMissingInputPath
	}
	if *out == "" {
		return nil, ErrMissingOutput
	}

	n, err := ParseWorkers(*workers, runtime.NumCPU())
	if err != nil {
		return nil, err
	}
	if *batchSize < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBatchSize, *batchSize)
	}

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		return nil, err
	}

	f, err := report.ParseFormat(*format)
	if err != nil {
		return nil, err
	}
	if *reportID > math.MaxUint32 {
		return nil, fmt.Errorf("report ID %d does not fit in 32 bits", *reportID)
	}

	return &Run{
		InputDir:    *path,
		Workers:     n,
		OutputName:  report.FileName(*out),
		OutputDir:   *outDir,
		BatchSize:   *batchSize,
		HistoryPath: *history,
		Progress:    *progress,
		LogLevel:    level,
		Schema:      schema,
		Format:      f,
		ReportID:    uint32(*reportID),
	}, nil
}

// ParseWorkers parses a worker count and bounds it to WorkerMultiplier
// workers per logical CPU.
func ParseWorkers(s string, cpus int) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidWorkers, s)
	}

	if limit := cpus * WorkerMultiplier; n > limit {
		return 0, fmt.Errorf("%w: requested %d, this machine has %d logical CPUs so the maximum is %d",
			ErrTooManyWorkers, n, cpus, limit)
	}

	return n, nil
}

// RunIDFlag selects how a history command treats the -id flag.
type RunIDFlag int

const (
	NoRunID       RunIDFlag = iota // no -id flag
	LatestRunID                    // -id defaults to latest
	RequiredRunID                  // -id must be given
)

// ParseHistory parses arguments for the history, show and delete commands.
func ParseHistory(name string, args []string, idFlag RunIDFlag, stderr io.Writer) (*History, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		history  = fs.String("history", DefaultHistoryPath, "Run history database")
		limit    = fs.Int("limit", 20, "Maximum number of runs to list")
		logLevel = fs.String("log-level", "warn", "Log level (debug, info, warn, error)")
		runID    string
	)
	switch idFlag {
	case LatestRunID:
		fs.StringVar(&runID, "id", "latest", "Run ID, or latest")
	case RequiredRunID:
		fs.StringVar(&runID, "id", "", "Run ID, or latest (required)")
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if extra := fs.Args(); len(extra) > 0 {
		return nil, fmt.Errorf("unexpected argument %q", extra[0])
	}

	if idFlag != NoRunID && runID == "" {
		return nil, ErrMissingRunID
	}

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		return nil, err
	}

	return &History{
		HistoryPath: *history,
		RunID:       runID,
		Limit:       *limit,
		LogLevel:    level,
	}, nil
}
