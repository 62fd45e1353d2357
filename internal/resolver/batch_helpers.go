package resolver

func uniqueKeys[K comparable](keys []K) []K {
	var zero K
	seen := make(map[K]struct{}, len(keys))
	out := make([]K, 0, len(keys))
	for _, key := range keys {
		if key == zero {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}

func chunkKeys[K any](keys []K, max int) [][]K {
	if len(keys) == 0 {
		return nil
	}
	if max <= 0 || len(keys) <= max {
		return [][]K{keys}
	}
	chunks := make([][]K, 0, (len(keys)+max-1)/max)
	for start := 0; start < len(keys); start += max {
		end := start + max
		if end > len(keys) {
			end = len(keys)
		}
		chunks = append(chunks, keys[start:end])
	}
	return chunks
}
