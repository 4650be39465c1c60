package integration

import (
	"bytes"
	"context"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"pkg.jsn.cam/topreduce/cmd/testdata/generator"
	"pkg.jsn.cam/topreduce/internal/report"
	"pkg.jsn.cam/topreduce/internal/store"
	"pkg.jsn.cam/topreduce/pkg/topreduce"
)

func quietLogger() logrus.FieldLogger {
	log, _ := logtest.NewNullLogger()
	return log
}

func generate(t *testing.T, name string, files int, rows int64) string {
	t.Helper()

	g, err := generator.Get(name)
	if err != nil {
		t.Fatal(err)
	}
	g.Init(rand.New(rand.NewPCG(42, 42)))

	dir := filepath.Join(t.TempDir(), "input")
	if _, err := generator.WriteFiles(dir, g, files, rows, nil); err != nil {
		t.Fatalf("WriteFiles() error = %v", err)
	}
	return dir
}

func run(t *testing.T, dir string, workers, batchSize int) (*topreduce.Report, topreduce.RunStats) {
	t.Helper()

	rep, stats, err := topreduce.Run(context.Background(), topreduce.Config{
		InputDir:  dir,
		Workers:   workers,
		BatchSize: batchSize,
		Logger:    quietLogger(),
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	return rep, stats
}

// TestBasicPipeline runs generated data end to end: aggregate, write the
// report, and record the run in history.
func TestBasicPipeline(t *testing.T) {
	t.Parallel()

	const rows = 5000
	dir := generate(t, "reviews", 4, rows)

	started := time.Now()
	rep, stats := run(t, dir, 4, 256)

	if got := stats.RowsDecoded + stats.RowsFiltered + stats.RowsMalformed; got != rows {
		t.Errorf("decoded+filtered+malformed = %d, want %d", got, rows)
	}
	if stats.FilesScanned != 4 {
		t.Errorf("FilesScanned = %d, want 4", stats.FilesScanned)
	}
	if stats.BatchesMerged != stats.Batches {
		t.Errorf("BatchesMerged = %d, Batches = %d", stats.BatchesMerged, stats.Batches)
	}
	if len(rep.TopEntities) != topreduce.TopEntities {
		t.Fatalf("len(TopEntities) = %d, want %d", len(rep.TopEntities), topreduce.TopEntities)
	}
	if len(rep.TopCategories) != topreduce.TopCategories {
		t.Fatalf("len(TopCategories) = %d, want %d", len(rep.TopCategories), topreduce.TopCategories)
	}

	outDir := filepath.Join(t.TempDir(), "output")
	path, err := report.Write(outDir, "reviews", rep)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if filepath.Base(path) != "reviews.json" {
		t.Errorf("report path = %s", path)
	}

	read, err := report.Read(path)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if read.TopEntities[0].Entity != rep.TopEntities[0].Entity {
		t.Errorf("read back entity %q, want %q", read.TopEntities[0].Entity, rep.TopEntities[0].Entity)
	}

	st, err := store.NewStorage(filepath.Join(t.TempDir(), "history.db"), quietLogger())
	if err != nil {
		t.Fatalf("NewStorage() error = %v", err)
	}
	defer st.Close()

	if err := st.SaveRun(&store.Run{
		ID:          "integration",
		InputDir:    dir,
		Workers:     4,
		BatchSize:   256,
		OutputPath:  path,
		StartedAt:   started,
		CompletedAt: time.Now(),
		Stats:       stats,
		Report:      rep,
	}); err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}

	saved, err := st.GetRun(store.LatestRunID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if saved.Stats != stats {
		t.Errorf("saved stats = %+v, want %+v", saved.Stats, stats)
	}
	if saved.Report.TopCategories[0].Category != rep.TopCategories[0].Category {
		t.Errorf("saved report differs from the run's report")
	}
}

// TestEmptyDirectory checks that a directory without CSV files still yields
// a well-formed report.
func TestEmptyDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not csv"), 0644); err != nil {
		t.Fatal(err)
	}

	rep, stats := run(t, dir, 2, 10)
	if len(rep.TopEntities) != 0 || len(rep.TopCategories) != 0 {
		t.Errorf("report = %+v, want empty", rep)
	}
	if stats.FilesScanned != 0 {
		t.Errorf("FilesScanned = %d, want 0", stats.FilesScanned)
	}

	path, err := report.Write(t.TempDir(), "empty", rep)
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(data, []byte(`"top_categories": []`)) {
		t.Errorf("report = %s, want empty arrays", data)
	}
}

// TestSingleRow checks the smallest non-empty input.
func TestSingleRow(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	data := "app_name,language,review,votes_helpful\nPortal,english,\"Short, but perfect\",12\n"
	if err := os.WriteFile(filepath.Join(dir, "one.csv"), []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	rep, _ := run(t, dir, 1, 1)
	if len(rep.TopEntities) != 1 {
		t.Fatalf("TopEntities = %+v, want one entry", rep.TopEntities)
	}

	e := rep.TopEntities[0]
	if e.Entity != "Portal" || e.Count != 1 || len(e.Categories) != 1 {
		t.Fatalf("entity = %+v", e)
	}
	if c := e.Categories[0]; c.Category != "english" || c.TopText != "Short, but perfect" || c.TopWeight != 12 {
		t.Errorf("category = %+v", c)
	}

	if len(rep.TopCategories) != 1 || len(rep.TopCategories[0].TopRecords) != 1 {
		t.Errorf("TopCategories = %+v", rep.TopCategories)
	}
}

// TestLargeInput checks that the written report does not depend on the
// worker count or batch size.
func TestLargeInput(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping large input test in short mode")
	}
	t.Parallel()

	dir := generate(t, "skewed", 8, 50_000)

	var want []byte
	for _, tc := range []struct {
		workers, batchSize int
	}{
		{1, topreduce.DefaultBatchSize},
		{4, 1000},
		{16, 37},
	} {
		rep, _ := run(t, dir, tc.workers, tc.batchSize)

		path, err := report.Write(t.TempDir(), "large", rep)
		if err != nil {
			t.Fatal(err)
		}
		got, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}

		if want == nil {
			want = got
			continue
		}
		if !bytes.Equal(got, want) {
			t.Errorf("workers=%d batch=%d: report differs from the single worker run", tc.workers, tc.batchSize)
		}
	}
}
