package topreduce

import (
	"fmt"
	"strconv"
	"strings"
)

// Decoder turns raw delimited rows into Records using column positions
// resolved once from the file header.
type Decoder struct {
	entity, category, text, weight int
	width                          int
}

// NewDecoder resolves schema columns against a header row.
func NewDecoder(header []string, schema Schema) (*Decoder, error) {
	pos := make(map[string]int, len(header))
	for i, name := range header {
		if _, dup := pos[name]; !dup {
			pos[name] = i
		}
	}

	lookup := func(name string) (int, error) {
		i, ok := pos[name]
		if !ok {
			return 0, fmt.Errorf("%w: %q", ErrMissingColumn, name)
		}
		return i, nil
	}

	d := &Decoder{}
	var err error
	if d.entity, err = lookup(schema.Entity); err != nil {
		return nil, err
	}
	if d.category, err = lookup(schema.Category); err != nil {
		return nil, err
	}
	if d.text, err = lookup(schema.Text); err != nil {
		return nil, err
	}
	if d.weight, err = lookup(schema.Weight); err != nil {
		return nil, err
	}

	d.width = max(d.entity, d.category, d.text, d.weight) + 1

	return d, nil
}

// Decode converts one row. Rows too short to hold every schema column fail
// with ErrMalformedRow; rows whose weight is not a non-negative integer fail
// with ErrInvalidWeight. A single leading '+' is accepted.
func (d *Decoder) Decode(row []string) (Record, error) {
	if len(row) < d.width {
		return Record{}, fmt.Errorf("%w: %d fields, need %d", ErrMalformedRow, len(row), d.width)
	}

	w, err := strconv.ParseUint(strings.TrimPrefix(row[d.weight], "+"), 10, 32)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %q", ErrInvalidWeight, row[d.weight])
	}

	return Record{
		Entity:   row[d.entity],
		Category: row[d.category],
		Text:     row[d.text],
		Weight:   uint32(w),
	}, nil
}
