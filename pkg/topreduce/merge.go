package topreduce

import "slices"

// MergeInto folds a into dst and leaves a empty.
//
// Entity and category entries that dst does not have yet are moved, not
// copied, so a must not be used afterwards. dst must not be merged into
// concurrently.
func (a *Accumulator) MergeInto(dst *Accumulator) {
	for name, src := range a.Entities {
		es, ok := dst.Entities[name]
		if !ok {
			dst.Entities[name] = src
			continue
		}

		es.Total += src.Total
		for cat, n := range src.ByCategory {
			es.ByCategory[cat] += n
		}
		for cat, e := range src.Best {
			if best, ok := es.Best[cat]; !ok || e.Outranks(best) {
				es.Best[cat] = e
			}
		}
	}

	for name, src := range a.Categories {
		cs, ok := dst.Categories[name]
		if !ok {
			src.Top = capTop(src.Top)
			dst.Categories[name] = src
			continue
		}

		cs.Total += src.Total
		cs.Top = mergeTop(cs.Top, src.Top)
	}

	a.Entities = nil
	a.Categories = nil
}

// mergeTop concatenates two top lists and re-caps the result.
func mergeTop(a, b []Entry) []Entry {
	merged := make([]Entry, 0, len(a)+len(b))
	merged = append(merged, a...)
	merged = append(merged, b...)
	return capTop(merged)
}

// capTop sorts top by Entry.Outranks and truncates it to MaxTopRecords.
func capTop(top []Entry) []Entry {
	slices.SortFunc(top, compareEntries)
	if len(top) > MaxTopRecords {
		// Clone so the batch-sized backing array can be released.
		top = slices.Clone(top[:MaxTopRecords])
	}
	return top
}

func compareEntries(a, b Entry) int {
	switch {
	case a.Outranks(b):
		return -1
	case b.Outranks(a):
		return 1
	default:
		return 0
	}
}
