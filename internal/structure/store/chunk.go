// Package store persists serialized structure artifacts as fixed-size chunks
// keyed by structure id. Artifacts are immutable once written; writes only
// ever append, so concurrent writers can at worst duplicate a chunk set.
package store

import (
	pkgerrors "github.com/sjando/jolecule/pkg/errors"
)

// Chunk is one stored slice of an artifact. Index positions the slice within
// the artifact and Count is the total number of chunks the artifact was
// split into.
type Chunk struct {
	Index   int
	Count   int
	Content string
}

// Split cuts text into ceil(len/blockSize) chunks of blockSize bytes each,
// the last possibly shorter. Empty text yields no chunks.
func Split(text string, blockSize int) []Chunk {
	if len(text) == 0 {
		return nil
	}
	count := (len(text) + blockSize - 1) / blockSize
	chunks := make([]Chunk, 0, count)
	for i := 0; i < count; i++ {
		start := i * blockSize
		end := start + blockSize
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, Chunk{Index: i, Count: count, Content: text[start:end]})
	}
	return chunks
}

// Assemble validates a chunk set and concatenates it in index order. The
// input must be ordered by index with duplicates ordered oldest first; the
// first occurrence of each index wins, so a duplicated set from concurrent
// writers reassembles to the first completed write. Any inconsistency in
// counts, indices, or sizes is a data-integrity failure, never repaired.
func Assemble(chunks []Chunk, blockSize int) (string, error) {
	if len(chunks) == 0 {
		return "", nil
	}

	kept := make([]Chunk, 0, len(chunks))
	seen := make(map[int]bool, len(chunks))
	for _, c := range chunks {
		if seen[c.Index] {
			continue
		}
		seen[c.Index] = true
		kept = append(kept, c)
	}

	count := kept[0].Count
	if count < 1 {
		return "", pkgerrors.Newf(pkgerrors.ErrStoreIntegrity, 500,
			"chunk count %d is not positive", count)
	}
	for _, c := range kept {
		if c.Count != count {
			return "", pkgerrors.Newf(pkgerrors.ErrStoreIntegrity, 500,
				"chunk counts disagree: %d vs %d", count, c.Count)
		}
	}
	if len(kept) != count {
		return "", pkgerrors.Newf(pkgerrors.ErrStoreIntegrity, 500,
			"expected %d chunks, found %d", count, len(kept))
	}

	size := 0
	for i, c := range kept {
		if c.Index != i {
			return "", pkgerrors.Newf(pkgerrors.ErrStoreIntegrity, 500,
				"chunk index %d out of sequence at position %d", c.Index, i)
		}
		if i < count-1 && len(c.Content) != blockSize {
			return "", pkgerrors.Newf(pkgerrors.ErrStoreIntegrity, 500,
				"chunk %d has %d bytes, expected %d", i, len(c.Content), blockSize)
		}
		if i == count-1 && (len(c.Content) == 0 || len(c.Content) > blockSize) {
			return "", pkgerrors.Newf(pkgerrors.ErrStoreIntegrity, 500,
				"final chunk has %d bytes, expected 1..%d", len(c.Content), blockSize)
		}
		size += len(c.Content)
	}

	var b = make([]byte, 0, size)
	for _, c := range kept {
		b = append(b, c.Content...)
	}
	return string(b), nil
}
