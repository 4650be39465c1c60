package topreduce

import (
	"cmp"
	"fmt"
	"slices"

	"golang.org/x/exp/maps"
)

// Rank projects a fully merged accumulator into a Report. Ties on count are
// broken by name, ascending, so the report never depends on map iteration
// order.
//
// Rank panics if acc violates its invariants: that is a bug in whatever built
// the accumulator, not a property of the input.
func Rank(acc *Accumulator) *Report {
	if err := acc.Validate(); err != nil {
		panic(err)
	}

	report := &Report{
		TopEntities:   make([]EntitySummary, 0, TopEntities),
		TopCategories: make([]CategorySummary, 0, TopCategories),
	}

	entities := topKeys(acc.Entities, TopEntities, func(es *EntityStats) int { return es.Total })
	for _, name := range entities {
		report.TopEntities = append(report.TopEntities, summarizeEntity(name, acc.Entities[name]))
	}

	categories := topKeys(acc.Categories, TopCategories, func(cs *CategoryStats) int { return cs.Total })
	for _, name := range categories {
		cs := acc.Categories[name]
		top := make([]Entry, 0, min(len(cs.Top), MaxTopRecords))
		top = append(top, cs.Top[:min(len(cs.Top), MaxTopRecords)]...)

		report.TopCategories = append(report.TopCategories, CategorySummary{
			Category:   name,
			Count:      cs.Total,
			TopRecords: top,
		})
	}

	return report
}

func summarizeEntity(name string, es *EntityStats) EntitySummary {
	summary := EntitySummary{
		Entity:     name,
		Count:      es.Total,
		Categories: make([]EntityCategory, 0, TopEntityCategories),
	}

	cats := topKeys(es.ByCategory, TopEntityCategories, func(n int) int { return n })
	for _, cat := range cats {
		// A category with no recorded best yields an empty text and zero weight.
		best := es.Best[cat]
		summary.Categories = append(summary.Categories, EntityCategory{
			Category:  cat,
			Count:     es.ByCategory[cat],
			TopText:   best.Text,
			TopWeight: best.Weight,
		})
	}

	return summary
}

// topKeys returns up to k keys of m ordered by count descending, then key
// ascending.
func topKeys[V any](m map[string]V, k int, count func(V) int) []string {
	keys := maps.Keys(m)
	slices.SortFunc(keys, func(a, b string) int {
		if c := cmp.Compare(count(m[b]), count(m[a])); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return keys[:min(len(keys), k)]
}

// Validate checks the accumulator invariants: every entity total equals the
// sum of its per-category counts, every category total equals the sum of the
// entity counts for that category, and every top list is ordered and capped.
func (a *Accumulator) Validate() error {
	perCategory := make(map[string]int, len(a.Categories))

	for name, es := range a.Entities {
		sum := 0
		for cat, n := range es.ByCategory {
			sum += n
			perCategory[cat] += n
		}
		if sum != es.Total {
			return fmt.Errorf("%w: entity %q total %d, categories sum to %d",
				ErrInvariantViolation, name, es.Total, sum)
		}
		for cat := range es.Best {
			if _, ok := es.ByCategory[cat]; !ok {
				return fmt.Errorf("%w: entity %q has a best record for uncounted category %q",
					ErrInvariantViolation, name, cat)
			}
		}
	}

	for name, cs := range a.Categories {
		if perCategory[name] != cs.Total {
			return fmt.Errorf("%w: category %q total %d, entities sum to %d",
				ErrInvariantViolation, name, cs.Total, perCategory[name])
		}
		if len(cs.Top) > MaxTopRecords {
			return fmt.Errorf("%w: category %q holds %d top records",
				ErrInvariantViolation, name, len(cs.Top))
		}
		if !slices.IsSortedFunc(cs.Top, compareEntries) {
			return fmt.Errorf("%w: category %q top records out of order",
				ErrInvariantViolation, name)
		}
		delete(perCategory, name)
	}

	for name, n := range perCategory {
		if n > 0 {
			return fmt.Errorf("%w: category %q counted by entities but missing", ErrInvariantViolation, name)
		}
	}

	return nil
}
