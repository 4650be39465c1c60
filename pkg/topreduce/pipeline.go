package topreduce

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Run scans cfg.InputDir, aggregates every valid record and ranks the result.
func Run(ctx context.Context, cfg Config) (*Report, RunStats, error) {
	acc, stats, err := Collect(ctx, cfg)
	if err != nil {
		return nil, stats, err
	}
	return Rank(acc), stats, nil
}

// Collect runs the scan → aggregate → merge pipeline and returns the global
// accumulator.
//
// One goroutine scans and publishes batches on a queue bounded to the worker
// count, cfg.Workers goroutines aggregate batches into partials, and the
// calling goroutine is the only one that merges partials into the global
// accumulator. Partials are merged in completion order; the result does not
// depend on it because every tie is broken by Entry.Outranks.
func Collect(ctx context.Context, cfg Config) (*Accumulator, RunStats, error) {
	cfg, err := normalize(cfg)
	if err != nil {
		return nil, RunStats{}, err
	}
	if err := ValidateInputDir(cfg.InputDir); err != nil {
		return nil, RunStats{}, err
	}

	log := cfg.Logger
	log.WithFields(logrus.Fields{
		"dir":        cfg.InputDir,
		"workers":    cfg.Workers,
		"batch_size": cfg.BatchSize,
	}).Info("[PIPELINE] Starting run")

	batches := make(chan Batch, cfg.Workers)
	partials := make(chan partial, cfg.Workers)

	scanner := NewScanner(cfg)
	scanErr := make(chan error, 1)
	go func() {
		scanErr <- scanner.Scan(ctx, batches)
	}()

	var wg sync.WaitGroup
	for range cfg.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for b := range batches {
				p := partial{seq: b.Seq, source: b.Source, records: len(b.Records), acc: Aggregate(b)}
				select {
				case partials <- p:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(partials)
	}()

	global := NewAccumulator()
	merged := 0
	for p := range partials {
		p.acc.MergeInto(global)
		merged++

		log.WithFields(logrus.Fields{
			"batch":   p.seq,
			"file":    p.source,
			"records": p.records,
		}).Debug("[PIPELINE] Merged partial")

		if cfg.OnMerge != nil {
			cfg.OnMerge(MergeProgress{
				Batch:    p.seq,
				Source:   p.source,
				Records:  p.records,
				Merged:   merged,
				Entities: len(global.Entities),
			})
		}
	}

	// partials is only closed once every worker has returned, and workers
	// only return once batches is closed, so the scanner has finished.
	if err := <-scanErr; err != nil {
		return nil, scanner.Stats(), fmt.Errorf("scan %s: %w", cfg.InputDir, err)
	}
	// Workers drop their partials once ctx is done, even after a clean scan.
	if err := ctx.Err(); err != nil {
		return nil, scanner.Stats(), err
	}

	stats := scanner.Stats()
	stats.BatchesMerged = merged

	log.WithFields(logrus.Fields{
		"batches":    stats.BatchesMerged,
		"rows":       stats.RowsDecoded,
		"filtered":   stats.RowsFiltered,
		"malformed":  stats.RowsMalformed,
		"entities":   len(global.Entities),
		"categories": len(global.Categories),
	}).Info("[PIPELINE] Run completed")

	return global, stats, nil
}

type partial struct {
	seq     int
	source  string
	records int
	acc     *Accumulator
}

func normalize(cfg Config) (Config, error) {
	if cfg.Workers < 1 {
		return cfg, fmt.Errorf("%w: %d", ErrInvalidWorkerCount, cfg.Workers)
	}
	if cfg.BatchSize < 0 {
		return cfg, fmt.Errorf("%w: %d", ErrInvalidBatchSize, cfg.BatchSize)
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Extension == "" {
		cfg.Extension = ".csv"
	}
	if cfg.Schema == (Schema{}) {
		cfg.Schema = DefaultSchema()
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	return cfg, nil
}
