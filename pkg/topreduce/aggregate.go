package topreduce

// Aggregate builds the partial statistics for one batch. It touches no shared
// state, so any number of invocations may run in parallel.
//
// Category lists are capped to MaxTopRecords before returning; capping is
// idempotent and commutes with later merges, so the merged result is the same
// as if every record had been kept until the end.
func Aggregate(batch Batch) *Accumulator {
	acc := NewAccumulator()

	for _, rec := range batch.Records {
		entry := Entry{Text: rec.Text, Weight: rec.Weight}

		es, ok := acc.Entities[rec.Entity]
		if !ok {
			es = newEntityStats()
			acc.Entities[rec.Entity] = es
		}
		es.Total++
		es.ByCategory[rec.Category]++
		if best, ok := es.Best[rec.Category]; !ok || entry.Outranks(best) {
			es.Best[rec.Category] = entry
		}

		cs, ok := acc.Categories[rec.Category]
		if !ok {
			cs = &CategoryStats{}
			acc.Categories[rec.Category] = cs
		}
		cs.Total++
		cs.Top = append(cs.Top, entry)
	}

	for _, cs := range acc.Categories {
		cs.Top = capTop(cs.Top)
	}

	return acc
}
