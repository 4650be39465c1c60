package topreduce

import "github.com/sirupsen/logrus"

const (
	// DefaultBatchSize is the number of records the scanner groups into one batch.
	DefaultBatchSize = 100_000

	// MaxTopRecords bounds every category's top list.
	MaxTopRecords = 10

	TopEntities         = 3
	TopEntityCategories = 3
	TopCategories       = 3
)

// Record is one decoded input row.
type Record struct {
	Entity   string
	Category string
	Text     string
	Weight   uint32
}

// Batch is a group of decoded records handed to one aggregator invocation.
type Batch struct {
	Seq     int
	Source  string
	Records []Record
}

// Entry is a (text, weight) pair kept as a best or top record.
type Entry struct {
	Text   string `json:"text"`
	Weight uint32 `json:"weight"`
}

// Outranks reports whether e sorts before o: higher weight first, and the
// lexicographically smaller text on equal weight. The order is total, so
// "best" and "top N" never depend on the order entries were seen in.
func (e Entry) Outranks(o Entry) bool {
	if e.Weight != o.Weight {
		return e.Weight > o.Weight
	}
	return e.Text < o.Text
}

// EntityStats holds the statistics for one entity.
type EntityStats struct {
	Total      int              `json:"total_count"`
	ByCategory map[string]int   `json:"count_by_category"`
	Best       map[string]Entry `json:"best_by_category"`
}

func newEntityStats() *EntityStats {
	return &EntityStats{
		ByCategory: make(map[string]int),
		Best:       make(map[string]Entry),
	}
}

// CategoryStats holds the statistics for one category across all entities.
// Top is ordered by Entry.Outranks and holds at most MaxTopRecords entries
// once capped.
type CategoryStats struct {
	Total int     `json:"total_count"`
	Top   []Entry `json:"top_records"`
}

// Accumulator is used both as the per-batch partial result and as the global
// result of a run. A partial is owned by the aggregator invocation that built
// it until it is merged; the global one is only mutated by the merging
// goroutine.
type Accumulator struct {
	Entities   map[string]*EntityStats   `json:"entities"`
	Categories map[string]*CategoryStats `json:"categories"`
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{
		Entities:   make(map[string]*EntityStats),
		Categories: make(map[string]*CategoryStats),
	}
}

// Report is the ranked projection of an Accumulator.
type Report struct {
	TopEntities   []EntitySummary   `json:"top_entities"`
	TopCategories []CategorySummary `json:"top_categories"`
}

type EntitySummary struct {
	Entity     string           `json:"entity"`
	Count      int              `json:"count"`
	Categories []EntityCategory `json:"categories"`
}

type EntityCategory struct {
	Category  string `json:"category"`
	Count     int    `json:"count"`
	TopText   string `json:"top_text"`
	TopWeight uint32 `json:"top_weight"`
}

type CategorySummary struct {
	Category   string  `json:"category"`
	Count      int     `json:"count"`
	TopRecords []Entry `json:"top_records"`
}

// Schema maps raw column names to record fields.
type Schema struct {
	Entity   string `json:"entity"`
	Category string `json:"category"`
	Text     string `json:"text"`
	Weight   string `json:"weight"`
}

// DefaultSchema matches the review dumps this tool was written for.
func DefaultSchema() Schema {
	return Schema{
		Entity:   "app_name",
		Category: "language",
		Text:     "review",
		Weight:   "votes_helpful",
	}
}

// Config configures one pipeline run.
type Config struct {
	InputDir  string
	Workers   int
	BatchSize int    // 0 means DefaultBatchSize
	Extension string // "" means ".csv"
	Schema    Schema // zero value means DefaultSchema()
	Logger    logrus.FieldLogger

	// OnMerge, if set, is called by the merging goroutine after each partial
	// has been folded into the global accumulator.
	OnMerge func(MergeProgress)
}

// MergeProgress describes the state of the fold after one merge.
type MergeProgress struct {
	Batch    int
	Source   string
	Records  int
	Merged   int
	Entities int
}

// RunStats counts what the scanner and the merger saw during a run.
type RunStats struct {
	FilesScanned   int   `json:"files_scanned"`
	BytesScanned   int64 `json:"bytes_scanned"`
	FilesSkipped   int   `json:"files_skipped"`
	EntriesSkipped int   `json:"entries_skipped"`
	RowsDecoded    int   `json:"rows_decoded"`
	RowsMalformed  int   `json:"rows_malformed"`
	RowsFiltered   int   `json:"rows_filtered"`
	Batches        int   `json:"batches"`
	BatchesMerged  int   `json:"batches_merged"`
}
