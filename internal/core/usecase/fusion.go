package usecase

import (
	"sort"

	"github.com/mkaretu/nz-tax-assistant/internal/core/domain"
)

type fusedCandidate struct {
	result domain.RetrievalResult
	score  float64
	seq    int
}

// fuseResultsRRF merges ranked lists with reciprocal rank fusion. A chunk
// appearing in several lists accumulates 1/(k+rank+1) per appearance and the
// payload comes from the first list that produced it. Ties keep first-seen
// order, so repeated runs over the same lists give the same output.
func fuseResultsRRF(lists [][]domain.RetrievalResult, rrfK, topK int) []domain.RetrievalResult {
	if rrfK <= 0 {
		rrfK = 60
	}

	acc := make(map[string]*fusedCandidate)
	seq := 0
	for _, list := range lists {
		for rank, result := range list {
			key := retrievalKey(result)
			candidate, ok := acc[key]
			if !ok {
				candidate = &fusedCandidate{result: result, seq: seq}
				seq++
				acc[key] = candidate
			}
			candidate.score += 1.0 / float64(rrfK+rank+1)
		}
	}

	ranked := make([]*fusedCandidate, 0, len(acc))
	for _, c := range acc {
		ranked = append(ranked, c)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].seq < ranked[j].seq
	})

	if topK > 0 && len(ranked) > topK {
		ranked = ranked[:topK]
	}

	fused := make([]domain.RetrievalResult, len(ranked))
	for i, c := range ranked {
		r := c.result
		r.Score = c.score
		fused[i] = r
	}
	return fused
}

// retrievalKey dedups chunks across lists. The content prefix keeps the key
// short while still telling apart chunks that share a URL and section.
func retrievalKey(r domain.RetrievalResult) string {
	content := r.Content
	if len(content) > 100 {
		content = content[:100]
	}
	return r.SourceURL + "|" + r.SectionTitle + "|" + content
}
