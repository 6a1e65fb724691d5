package fusion

import (
	"github.com/kailas-cloud/rankfuse/internal/domain"
	domfusion "github.com/kailas-cloud/rankfuse/internal/domain/fusion"
)

// combineResults turns reranked candidates into final result rows.
// Rank follows relevance-descending order. With CombineScores on, the
// final score blends the min-max-normalized native score with the
// relevance score; off, the raw relevance score is used unmodified.
// The normalization comparison set is the native scores of the candidates
// that were sent to the scorer, not the full retrieved set.
func combineResults(
	scored []domain.ScoredCandidate,
	sent []domain.Candidate,
	cfg domfusion.Config,
) ([]domfusion.Result, error) {
	comparison := make([]float64, len(sent))
	for i := range sent {
		native, _ := sent[i].NativeScore()
		comparison[i] = native
	}

	results := make([]domfusion.Result, 0, len(scored))
	for i := range scored {
		candidate := scored[i].Candidate()
		relevance := scored[i].Relevance()
		native, hasNative := candidate.NativeScore()

		score := relevance
		if cfg.CombineScores() {
			normalized := normalizeScore(native, comparison)
			// The relevance score is contract-assumed pre-normalized and
			// enters the blend unscaled.
			score = cfg.IndexWeight()*normalized + cfg.RelevanceWeight()*relevance
		}

		var nativePtr *float64
		if hasNative {
			n := native
			nativePtr = &n
		}
		rel := relevance

		result, err := domfusion.NewResult(candidate.Document(), score, i+1, nativePtr, &rel)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}

	return results, nil
}

// resultsFromRetrieval emits results in retrieval order when reranking
// was skipped: score = native score (0.0 when absent), no relevance score.
func resultsFromRetrieval(candidates []domain.Candidate) ([]domfusion.Result, error) {
	results := make([]domfusion.Result, 0, len(candidates))
	for i := range candidates {
		native, hasNative := candidates[i].NativeScore()

		var nativePtr *float64
		score := 0.0
		if hasNative {
			n := native
			nativePtr = &n
			score = native
		}

		result, err := domfusion.NewResult(candidates[i].Document(), score, i+1, nativePtr, nil)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}

// normalizeScore min-max-normalizes a score against a comparison set.
// Empty set -> 0.0; degenerate set (max == min, including a single
// element) -> 1.0.
func normalizeScore(score float64, all []float64) float64 {
	if len(all) == 0 {
		return 0.0
	}

	minScore, maxScore := all[0], all[0]
	for _, s := range all[1:] {
		if s < minScore {
			minScore = s
		}
		if s > maxScore {
			maxScore = s
		}
	}

	if maxScore == minScore {
		return 1.0
	}
	return (score - minScore) / (maxScore - minScore)
}
