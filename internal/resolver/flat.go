package resolver

// FlatDeduplicator folds a joined row stream, where each root repeats once per
// leaf, back into one accumulator per root.
type FlatDeduplicator[K comparable, R any, A any] struct {
	// Key extracts the root identifier from a row.
	Key func(R) K
	// NewRoot builds the accumulator for the first row of a root.
	NewRoot func(R) A
	// AddLeaf appends the row's leaf to the accumulator. It must ignore rows
	// whose leaf columns are NULL so childless roots keep an empty list.
	AddLeaf func(acc *A, row R)
}

// Apply groups rows by root in first-seen order. It also returns how many rows
// repeated an already seen root.
func (d FlatDeduplicator[K, R, A]) Apply(rows []R) ([]A, int) {
	index := make(map[K]int, len(rows))
	out := make([]A, 0, len(rows))
	duplicates := 0

	for _, row := range rows {
		key := d.Key(row)
		pos, seen := index[key]
		if !seen {
			pos = len(out)
			index[key] = pos
			out = append(out, d.NewRoot(row))
		} else {
			duplicates++
		}
		d.AddLeaf(&out[pos], row)
	}
	return out, duplicates
}
