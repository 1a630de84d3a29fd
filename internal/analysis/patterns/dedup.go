package patterns

import (
	"sort"

	"chart-patterns/internal/analysis"
)

// mergeOverlap is the overlap/shorter-range ratio above which two candidates
// of the same type describe the same structure.
const mergeOverlap = 0.5

// Dedup clusters same-type candidates whose ranges overlap by at least half of
// the shorter range and keeps one representative per cluster: latest end, then
// highest completion, then highest confidence, then earliest start. Clusters
// are connected components, so the result does not depend on input order.
// Different types are never merged. The output is sorted by start, end, type.
func Dedup(candidates []analysis.Candidate) []analysis.Candidate {
	n := len(candidates)
	if n == 0 {
		return nil
	}

	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if sameStructure(&candidates[i], &candidates[j]) {
				if ri, rj := find(i), find(j); ri != rj {
					parent[rj] = ri
				}
			}
		}
	}

	best := make(map[int]int, n)
	for i := 0; i < n; i++ {
		root := find(i)
		cur, ok := best[root]
		if !ok || preferred(&candidates[i], &candidates[cur]) {
			best[root] = i
		}
	}

	out := make([]analysis.Candidate, 0, len(best))
	for _, i := range best {
		out = append(out, candidates[i])
	}
	sortByRange(out)
	return out
}

func sameStructure(a, b *analysis.Candidate) bool {
	if a.Type != b.Type {
		return false
	}
	shorter := min(a.Range.Bars(), b.Range.Bars())
	if shorter <= 0 {
		return false
	}
	return float64(a.Range.Overlap(b.Range))/float64(shorter) >= mergeOverlap
}

// preferred reports whether a beats b as a cluster representative.
func preferred(a, b *analysis.Candidate) bool {
	if a.Range.EndIndex != b.Range.EndIndex {
		return a.Range.EndIndex > b.Range.EndIndex
	}
	if a.Completion != b.Completion {
		return a.Completion > b.Completion
	}
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	return a.Range.StartIndex < b.Range.StartIndex
}

func sortByRange(cs []analysis.Candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		a, b := cs[i].Range, cs[j].Range
		if a.StartIndex != b.StartIndex {
			return a.StartIndex < b.StartIndex
		}
		if a.EndIndex != b.EndIndex {
			return a.EndIndex < b.EndIndex
		}
		return cs[i].Type < cs[j].Type
	})
}
