package vecindex

import "sort"

// candidate is an internal (position, similarity) pair during search.
type candidate struct {
	pos int
	sim float64
}

// ranksBefore orders candidates by similarity descending with insertion
// order (smaller position) as the tie-break.
func ranksBefore(a, b candidate) bool {
	if a.sim != b.sim {
		return a.sim > b.sim
	}
	return a.pos < b.pos
}

// selectTop returns the k best candidates in rank order. When k is smaller
// than the candidate count it partitions with quickselect (expected O(n))
// and only sorts the selected slice, so a top-10 query over a large corpus
// never pays for a full sort. The input slice is reordered in place.
func selectTop(cands []candidate, k int) []candidate {
	if k >= len(cands) {
		sort.Slice(cands, func(i, j int) bool { return ranksBefore(cands[i], cands[j]) })
		return cands
	}
	quickselect(cands, k)
	top := cands[:k]
	sort.Slice(top, func(i, j int) bool { return ranksBefore(top[i], top[j]) })
	return top
}

// quickselect partitions cands so the k best by ranksBefore occupy the
// first k slots, in arbitrary order.
func quickselect(cands []candidate, k int) {
	lo, hi := 0, len(cands)-1
	for lo < hi {
		p := partition(cands, lo, hi)
		switch {
		case p == k-1:
			return
		case p < k-1:
			lo = p + 1
		default:
			hi = p - 1
		}
	}
}

// partition uses a median-of-three pivot to avoid quadratic behavior on
// already-ordered similarity runs.
func partition(cands []candidate, lo, hi int) int {
	mid := lo + (hi-lo)/2
	if ranksBefore(cands[mid], cands[lo]) {
		cands[lo], cands[mid] = cands[mid], cands[lo]
	}
	if ranksBefore(cands[hi], cands[lo]) {
		cands[lo], cands[hi] = cands[hi], cands[lo]
	}
	if ranksBefore(cands[hi], cands[mid]) {
		cands[mid], cands[hi] = cands[hi], cands[mid]
	}
	pivot := cands[mid]
	cands[mid], cands[hi] = cands[hi], cands[mid]

	i := lo
	for j := lo; j < hi; j++ {
		if ranksBefore(cands[j], pivot) {
			cands[i], cands[j] = cands[j], cands[i]
			i++
		}
	}
	cands[i], cands[hi] = cands[hi], cands[i]
	return i
}
