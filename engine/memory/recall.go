package memory

import (
	"math"
	"sort"
)

// Scored pairs a memory with its similarity to the query embedding.
type Scored struct {
	Entry MemoryEntry
	Score float64
}

// Recall ranks entries against a query embedding by cosine similarity,
// weighted by salience so a stale-but-similar memory loses to a fresher
// one. Entries without an embedding are skipped — they can't be compared
// semantically and the caller's profile/tag search covers them instead.
// Returns at most topK entries, highest score first.
func Recall(entries []MemoryEntry, queryEmbedding []float32, topK int) []Scored {
	var scored []Scored
	for _, e := range entries {
		if len(e.Embedding) == 0 || len(e.Embedding) != len(queryEmbedding) {
			continue
		}
		sim := cosineSimilarity(e.Embedding, queryEmbedding)
		scored = append(scored, Scored{Entry: e, Score: sim * e.SalienceScore})
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	if topK > 0 && len(scored) > topK {
		scored = scored[:topK]
	}
	return scored
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
