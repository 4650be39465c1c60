package main

import (
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
	"pkg.jsn.cam/topreduce/cmd/testdata/generator"
)

/*generates directories of CSV app reviews for topreduce*/

var (
	Generator  = flag.String("generator", "reviews", "Generator to use ("+strings.Join(generator.List(), ", ")+")")
	AppCount   = flag.Int("app_count", 0, "Number of distinct apps (0 keeps the generator default)")
	TotalCount = flag.Int64("total_count", 0, "Total number of rows (0 keeps the generator default)")
	FileCount  = flag.Int("files", 8, "Number of CSV files to spread rows across")
	Seed       = flag.Uint64("seed", 1, "Random seed")
	OutputDir  = flag.String("output", "var/testdata", "Output directory")
)

func main() {
	flag.Parse()

	if *AppCount > 0 {
		generator.SetAppCount(*Generator, *AppCount)
	}

	g, err := generator.Get(*Generator)
	if err != nil {
		logrus.Fatalf("[TESTDATA] %v", err)
	}
	g.Init(rand.New(rand.NewPCG(*Seed, *Seed)))

	rows := *TotalCount
	if rows <= 0 {
		rows = g.DefaultCount()
	}

	logrus.WithFields(logrus.Fields{
		"generator": *Generator,
		"rows":      rows,
		"files":     *FileCount,
	}).Infof("[TESTDATA] %s", g.Description())

	bar := progressbar.Default(int64(*FileCount), "writing files")
	var written uint64
	paths, err := generator.WriteFiles(*OutputDir, g, *FileCount, rows, func(path string) {
		if info, err := os.Stat(path); err == nil {
			written += uint64(info.Size())
		}
		_ = bar.Add(1)
	})
	_ = bar.Finish()
	if err != nil {
		logrus.Fatalf("[TESTDATA] %v", err)
	}

	fmt.Printf("Wrote %s rows (%s) to %d files in %s\n",
		humanize.Comma(rows), humanize.Bytes(written), len(paths), *OutputDir)
}
