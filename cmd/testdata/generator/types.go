package generator

import (
	"math/rand/v2"
)

// Generator produces CSV test data for the pipeline.
type Generator interface {
	// Init initializes the generator with a per-instance random source.
	Init(r *rand.Rand)

	// Header returns the header row written at the top of every file.
	Header() []string

	// Row returns the next data row. The slice is only valid until the
	// next call.
	Row() []string

	// Description returns a human-readable description of the data format
	Description() string

	// DefaultCount returns the suggested default number of rows to generate
	DefaultCount() int64
}
