package retriever

import (
	"math"
	"sort"
	"strings"
)

const (
	// DefaultTopK is the candidate count considered per query.
	DefaultTopK = 10

	// DefaultFillRatio is the opportunistic-fill threshold: when a
	// candidate would overflow the budget but accepted tokens are still
	// below this fraction of it, the candidate is skipped and lower-ranked
	// ones are still considered. A behavioral tunable, not an invariant.
	DefaultFillRatio = 0.8
)

// Tokenizer measures text in model tokens. Only the sequence length is
// used here.
type Tokenizer interface {
	Encode(text string) ([]int, error)
}

// Scored pairs an index into the chunk list with its similarity score.
type Scored struct {
	Index int
	Score float64
}

// Policy holds the tunable selection knobs.
type Policy struct {
	FillRatio float64
}

// DefaultPolicy returns the standard selection policy.
func DefaultPolicy() Policy {
	return Policy{FillRatio: DefaultFillRatio}
}

// Cosine computes the cosine similarity between two vectors. Mismatched
// lengths or zero vectors score 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

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

// Rank scores every indexed vector against the query by linear scan.
// Corpus sizes are assumed small enough that no approximate index is
// needed.
func Rank(query []float32, vectors [][]float32) []Scored {
	scored := make([]Scored, len(vectors))
	for i, vec := range vectors {
		scored[i] = Scored{Index: i, Score: Cosine(query, vec)}
	}
	return scored
}

// TopK returns the k highest-scoring entries in descending score order.
// Ties keep original index order (stable sort).
func TopK(scored []Scored, k int) []Scored {
	if k <= 0 {
		k = DefaultTopK
	}

	ranked := make([]Scored, len(scored))
	copy(ranked, scored)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	if k < len(ranked) {
		ranked = ranked[:k]
	}
	return ranked
}

// Select walks candidates in descending-similarity order, accepting each
// whose token cost fits the remaining budget. A candidate that would
// overflow is skipped, and scanning continues, while accepted tokens are
// still below FillRatio of the budget; otherwise selection stops. Returns
// the accepted chunk texts joined by blank lines plus the total token
// count consumed.
func Select(candidates []Scored, chunks []string, tok Tokenizer, maxTokens int, policy Policy) (string, int, error) {
	if maxTokens <= 0 || len(candidates) == 0 {
		return "", 0, nil
	}
	fill := policy.FillRatio
	if fill <= 0 || fill > 1 {
		fill = DefaultFillRatio
	}

	var selected []string
	totalTokens := 0

	for _, cand := range candidates {
		if cand.Index < 0 || cand.Index >= len(chunks) {
			continue
		}
		chunk := chunks[cand.Index]

		ids, err := tok.Encode(chunk)
		if err != nil {
			return "", 0, err
		}
		cost := len(ids)

		if totalTokens+cost > maxTokens {
			if float64(totalTokens) < float64(maxTokens)*fill {
				// Budget headroom remains; try lower-ranked candidates.
				continue
			}
			break
		}

		selected = append(selected, chunk)
		totalTokens += cost
	}

	return strings.Join(selected, "\n\n"), totalTokens, nil
}
