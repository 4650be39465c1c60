package topreduce

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

const (
	readBufferSize  = 1 << 20
	dirReadBatch    = 256
	initialBatchCap = 4096
)

// ValidateInputDir fails with ErrInvalidInputPath unless path is an existing
// directory.
func ValidateInputDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidInputPath, path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrInvalidInputPath, path)
	}
	return nil
}

// Scanner walks one directory (non-recursively), decodes every eligible file
// and publishes fixed-size batches of records.
type Scanner struct {
	dir       string
	batchSize int
	ext       string
	schema    Schema
	log       logrus.FieldLogger

	seq   int
	stats RunStats
}

// NewScanner creates a scanner for cfg. cfg is expected to be normalized.
func NewScanner(cfg Config) *Scanner {
	return &Scanner{
		dir:       cfg.InputDir,
		batchSize: cfg.BatchSize,
		ext:       cfg.Extension,
		schema:    cfg.Schema,
		log:       cfg.Logger,
	}
}

// Stats returns the scanner counters. Only valid once Scan has returned.
func (s *Scanner) Stats() RunStats {
	return s.stats
}

// Scan enumerates the directory and sends batches to out, closing out when it
// is done. Unreadable entries, unopenable files and bad rows are logged and
// skipped; only an invalid directory or a cancelled context is returned as an
// error.
func (s *Scanner) Scan(ctx context.Context, out chan<- Batch) error {
	defer close(out)

	if err := ValidateInputDir(s.dir); err != nil {
		return err
	}

	dir, err := os.Open(s.dir)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInputPath, err)
	}
	defer dir.Close()

	for {
		entries, err := dir.ReadDir(dirReadBatch)
		for _, entry := range entries {
			if err := s.scanEntry(ctx, entry, out); err != nil {
				return err
			}
		}

		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.stats.EntriesSkipped++
			s.log.WithError(err).WithField("dir", s.dir).Warn("[SCANNER] Error reading directory entries")
			break
		}
		if len(entries) == 0 {
			break
		}
	}

	s.log.WithFields(logrus.Fields{
		"files":   s.stats.FilesScanned,
		"batches": s.stats.Batches,
		"rows":    s.stats.RowsDecoded,
	}).Info("[SCANNER] Directory scan finished")

	return nil
}

func (s *Scanner) scanEntry(ctx context.Context, entry os.DirEntry, out chan<- Batch) error {
	path := filepath.Join(s.dir, entry.Name())

	// Stat follows symlinks, so a link to a regular file is scanned too.
	info, err := os.Stat(path)
	if err != nil {
		s.stats.EntriesSkipped++
		s.log.WithError(err).WithField("entry", path).Warn("[SCANNER] Error reading directory entry")
		return nil
	}

	if !info.Mode().IsRegular() || filepath.Ext(path) != s.ext {
		return nil
	}

	return s.scanFile(ctx, path, info.Size(), out)
}

func (s *Scanner) scanFile(ctx context.Context, path string, size int64, out chan<- Batch) error {
	log := s.log.WithField("file", path)

	file, err := os.Open(path)
	if err != nil {
		s.stats.FilesSkipped++
		log.WithError(err).Warn("[SCANNER] Error opening file")
		return nil
	}
	defer file.Close()

	buf := bufio.NewReaderSize(file, readBufferSize)
	if err := skipBOM(buf); err != nil {
		s.stats.FilesSkipped++
		log.WithError(err).Warn("[SCANNER] Error reading header")
		return nil
	}

	reader := csv.NewReader(buf)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true
	// Free-text fields often carry bare quotes.
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		s.stats.FilesScanned++
		s.stats.BytesScanned += size
		return nil
	}
	if err != nil {
		s.stats.FilesSkipped++
		log.WithError(err).Warn("[SCANNER] Error reading header")
		return nil
	}

	// The header slice is reused by the reader; the decoder only keeps indexes.
	decoder, err := NewDecoder(header, s.schema)
	if err != nil {
		s.stats.FilesSkipped++
		log.WithError(err).Warn("[SCANNER] Header does not match schema")
		return nil
	}

	s.stats.FilesScanned++
	s.stats.BytesScanned += size

	batch := s.newBatch()
	line := 1
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++

		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				s.stats.RowsMalformed++
				log.WithError(err).WithField("line", line).Debug("[SCANNER] Skipping unparsable row")
				continue
			}
			log.WithError(err).Warn("[SCANNER] Error reading file, keeping rows read so far")
			break
		}

		rec, err := decoder.Decode(row)
		if err != nil {
			if errors.Is(err, ErrInvalidWeight) {
				s.stats.RowsFiltered++
			} else {
				s.stats.RowsMalformed++
				log.WithError(err).WithField("line", line).Debug("[SCANNER] Skipping malformed row")
			}
			continue
		}

		s.stats.RowsDecoded++
		batch = append(batch, rec)
		if len(batch) == s.batchSize {
			if err := s.publish(ctx, path, batch, out); err != nil {
				return err
			}
			batch = s.newBatch()
		}
	}

	if len(batch) > 0 {
		return s.publish(ctx, path, batch, out)
	}

	return nil
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// skipBOM drops a leading UTF-8 byte order mark.
func skipBOM(r *bufio.Reader) error {
	prefix, err := r.Peek(len(utf8BOM))
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	if bytes.Equal(prefix, utf8BOM) {
		_, err = r.Discard(len(utf8BOM))
		return err
	}
	return nil
}

func (s *Scanner) newBatch() []Record {
	return make([]Record, 0, min(s.batchSize, initialBatchCap))
}

func (s *Scanner) publish(ctx context.Context, path string, records []Record, out chan<- Batch) error {
	b := Batch{Seq: s.seq, Source: path, Records: records}
	select {
	case out <- b:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.seq++
	s.stats.Batches++
	return nil
}
