package matching

import (
	"github.com/MincaAI/MVP-underwriting-sub000/internal/config"
	"github.com/MincaAI/MVP-underwriting-sub000/internal/model"
)

// Decide maps the top candidate's confidence to the tri-state outcome.
// This is the single place thresholds are compared; every call site
// consumes its output instead of re-implementing the comparison.
//
// No candidates at all is no_match with a nil code, independent of the
// threshold values.
func Decide(candidates []model.MatchCandidate, cfg config.MatchingConfig) (decision string, confidence float64, code *string) {
	if len(candidates) == 0 {
		return model.DecisionNoMatch, 0, nil
	}

	top := candidates[0]
	confidence = top.CombinedScore
	switch {
	case confidence >= cfg.THigh:
		c := top.Code
		return model.DecisionAutoAccept, confidence, &c
	case confidence >= cfg.TLow:
		c := top.Code
		return model.DecisionNeedsReview, confidence, &c
	default:
		return model.DecisionNoMatch, confidence, nil
	}
}
