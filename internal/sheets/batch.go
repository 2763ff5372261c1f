package sheets

// chunk splits items into consecutive slices of at most size elements,
// preserving order. The returned slices alias items.
func chunk[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}

	out := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end])
	}

	return out
}

// clampBatch clamps a caller-supplied size to (0, limit]. Zero or negative
// means "use the limit".
func clampBatch(requested, limit int) int {
	if requested <= 0 || requested > limit {
		return limit
	}

	return requested
}
