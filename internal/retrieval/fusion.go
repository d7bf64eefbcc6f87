package retrieval

import (
	"sort"

	"github.com/hyperjump/kotae/internal/keyword"
	"github.com/hyperjump/kotae/internal/vector"
)

// FusedResult holds a chunk ID and its fused keyword/semantic scores.
type FusedResult struct {
	ChunkID       int
	Score         float64
	KeywordScore  float64
	SemanticScore float64
}

// NormalizeKeywordScores scales BM25 scores to [0,1] by the maximum.
func NormalizeKeywordScores(hits []keyword.Hit) map[int]float64 {
	normalized := make(map[int]float64, len(hits))
	var maxScore float64
	for _, h := range hits {
		if h.Score > maxScore {
			maxScore = h.Score
		}
	}
	for _, h := range hits {
		if maxScore > 0 {
			normalized[h.ChunkID] = h.Score / maxScore
		} else {
			normalized[h.ChunkID] = 0
		}
	}
	return normalized
}

// NormalizeSemanticScores clamps cosine similarities to [0,1]; opposing vectors count as unrelated.
func NormalizeSemanticScores(hits []vector.Hit) map[int]float64 {
	normalized := make(map[int]float64, len(hits))
	for _, h := range hits {
		s := h.Score
		if s < 0 {
			s = 0
		}
		normalized[h.Chunk.ID] = s
	}
	return normalized
}

// Fuse merges keyword and semantic score maps with weights, sorted by
// descending fused score and then ascending chunk ID.
func Fuse(keywordScores, semanticScores map[int]float64, keywordWeight, semanticWeight float64) []FusedResult {
	byID := make(map[int]*FusedResult, len(keywordScores)+len(semanticScores))
	for id, score := range keywordScores {
		byID[id] = &FusedResult{ChunkID: id, KeywordScore: score}
	}
	for id, score := range semanticScores {
		if r, ok := byID[id]; ok {
			r.SemanticScore = score
		} else {
			byID[id] = &FusedResult{ChunkID: id, SemanticScore: score}
		}
	}
	results := make([]FusedResult, 0, len(byID))
	for _, r := range byID {
		r.Score = keywordWeight*r.KeywordScore + semanticWeight*r.SemanticScore
		results = append(results, *r)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkID < results[j].ChunkID
	})
	return results
}
