package search

import "sort"

// Fused carries a document's combined RRF score.
type Fused struct {
	ChunkID int64
	Score   float64
}

// ReciprocalRankFusion combines ranked chunk-id lists into a single fused
// ranking:
//
//	rrf(d) = Σ_s 1 / (k + rank_s(d))
//
// Ranks are 1-based; a document absent from a source contributes nothing
// for it. Results are ordered by descending fused score with ties broken by
// ascending chunk id.
func ReciprocalRankFusion(lists [][]int64, k int) []Fused {
	if k <= 0 {
		k = DefaultRRFK
	}

	scores := make(map[int64]float64)
	for _, list := range lists {
		for rank, id := range list {
			scores[id] += 1.0 / float64(k+rank+1)
		}
	}

	fused := make([]Fused, 0, len(scores))
	for id, score := range scores {
		fused = append(fused, Fused{ChunkID: id, Score: score})
	}
	sort.Slice(fused, func(i, j int) bool {
		if fused[i].Score != fused[j].Score {
			return fused[i].Score > fused[j].Score
		}
		return fused[i].ChunkID < fused[j].ChunkID
	})
	return fused
}
