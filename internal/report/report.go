// Package report writes ranked reports to disk.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"pkg.jsn.cam/topreduce/pkg/topreduce"
)

const (
	// DefaultDir is where reports are written unless told otherwise.
	DefaultDir = "output"

	Extension = ".json"
)

var (
	ErrEmptyName     = errors.New("empty report name")
	ErrUnknownFormat = errors.New("unknown report format")
)

// FileName appends Extension to name unless it already ends with it.
func FileName(name string) string {
	if strings.HasSuffix(name, Extension) {
		return name
	}
	return name + Extension
}

// Write encodes r as indented JSON into dir/FileName(name), creating dir if
// needed, and returns the path written.
func Write(dir, name string, r *topreduce.Report) (string, error) {
	return writeJSON(dir, name, r)
}

func writeJSON(dir, name string, v any) (string, error) {
	if name == "" {
		return "", ErrEmptyName
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create output directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, FileName(name))
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return "", fmt.Errorf("write report %s: %w", path, err)
	}

	return path, nil
}

// Read decodes a report previously written by Write.
func Read(path string) (*topreduce.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report %s: %w", path, err)
	}

	var r topreduce.Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", path, err)
	}

	return &r, nil
}
