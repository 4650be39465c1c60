package generator

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
)

// FileName returns the name of the i-th generated file.
func FileName(i int) string {
	return fmt.Sprintf("part-%04d.csv", i)
}

// WriteFiles spreads rows across files CSV files in dir, each starting with
// g's header. done, if non-nil, is called after each file is closed.
func WriteFiles(dir string, g Generator, files int, rows int64, done func(path string)) ([]string, error) {
	if files < 1 {
		return nil, fmt.Errorf("file count must be positive, got %d", files)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	paths := make([]string, 0, files)
	per, extra := rows/int64(files), rows%int64(files)
	for i := range files {
		n := per
		if int64(i) < extra {
			n++
		}

		path := filepath.Join(dir, FileName(i))
		if err := writeFile(path, g, n); err != nil {
			return paths, fmt.Errorf("write %s: %w", path, err)
		}
		paths = append(paths, path)

		if done != nil {
			done(path)
		}
	}

	return paths, nil
}

func writeFile(path string, g Generator, rows int64) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	buf := bufio.NewWriterSize(file, 1<<20)
	w := csv.NewWriter(buf)
	if err := w.Write(g.Header()); err != nil {
		return err
	}
	for range rows {
		if err := w.Write(g.Row()); err != nil {
			return err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return err
	}
	return file.Close()
}
