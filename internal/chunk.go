package internal

import (
	"iter"
	"slices"
)

// Chunks yields consecutive sub-slices of s holding at most size elements.
// The last chunk may be shorter. A size below one yields s whole.
func Chunks[T any](s []T, size int) iter.Seq[[]T] {
	if size < 1 {
		size = max(len(s), 1)
	}
	return slices.Chunk(s, size)
}
