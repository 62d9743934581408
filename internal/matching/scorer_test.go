package matching

import (
	"context"
	"errors"
	"testing"

	"github.com/MincaAI/MVP-underwriting-sub000/internal/config"
	"github.com/MincaAI/MVP-underwriting-sub000/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubArbiter struct {
	pick  int
	err   error
	calls int
}

func (s *stubArbiter) Prefer(ctx context.Context, queryDescription, labelA, labelB string) (int, error) {
	s.calls++
	if s.err != nil {
		return 0, s.err
	}
	return s.pick, nil
}

func scoringConfig() config.MatchingConfig {
	cfg := config.DefaultMatching()
	cfg.TieEpsilon = 0.02
	cfg.AttributeDelta = 0.05
	return cfg
}

func TestScoreCombinesWeightedSignals(t *testing.T) {
	s := NewScorer(scoringConfig(), nil)
	candidates := []model.MatchCandidate{
		{Code: "A", Label: "modelo=2020 | marca=toyota", EmbeddingScore: 0.9, FuzzyScore: 0.6},
	}

	scored, flags := s.Score(context.Background(), "toyota yaris", model.Attributes{}, candidates, false)
	require.Len(t, scored, 1)
	assert.Empty(t, flags)
	// No known attributes, so no adjustment: 0.7*0.9 + 0.3*0.6 = 0.81.
	assert.InDelta(t, 0.81, scored[0].CombinedScore, 1e-9)
	assert.Zero(t, scored[0].AttributeAdjustment)
}

func TestScoreFuzzyOnlyDropsEmbeddingWeight(t *testing.T) {
	s := NewScorer(scoringConfig(), nil)
	candidates := []model.MatchCandidate{
		{Code: "A", Label: "marca=toyota", EmbeddingScore: 0.9, FuzzyScore: 0.6},
	}

	scored, _ := s.Score(context.Background(), "toyota yaris", model.Attributes{}, candidates, true)
	assert.InDelta(t, 0.6, scored[0].CombinedScore, 1e-9)
}

func TestScoreAttributeAdjustment(t *testing.T) {
	s := NewScorer(scoringConfig(), nil)
	attrs := model.Attributes{
		Brand: model.AttributeField{Value: "toyota", Confidence: 1.0, Source: "structured"},
		Year:  model.AttributeField{Value: "2020", Confidence: 1.0, Source: "structured"},
	}
	candidates := []model.MatchCandidate{
		{Code: "MATCH", Label: "modelo=2020 | marca=toyota | submarca=yaris", FuzzyScore: 0.5},
		{Code: "CONFLICT", Label: "modelo=2015 | marca=nissan | submarca=versa", FuzzyScore: 0.5},
		{Code: "NEUTRAL", Label: "submarca=yaris", FuzzyScore: 0.5},
	}

	scored, _ := s.Score(context.Background(), "toyota yaris 2020", attrs, candidates, true)
	byCode := make(map[string]model.MatchCandidate)
	for _, c := range scored {
		byCode[c.Code] = c
	}
	// Both attributes agree: +delta. Both conflict: -delta. Absent: 0.
	assert.InDelta(t, 0.05, byCode["MATCH"].AttributeAdjustment, 1e-9)
	assert.InDelta(t, -0.05, byCode["CONFLICT"].AttributeAdjustment, 1e-9)
	assert.Zero(t, byCode["NEUTRAL"].AttributeAdjustment)
	assert.Equal(t, "MATCH", scored[0].Code)
}

func TestScoreClampsToUnitInterval(t *testing.T) {
	s := NewScorer(scoringConfig(), nil)
	attrs := model.Attributes{
		Brand: model.AttributeField{Value: "toyota", Confidence: 1.0, Source: "structured"},
		Year:  model.AttributeField{Value: "2020", Confidence: 1.0, Source: "structured"},
	}
	candidates := []model.MatchCandidate{
		{Code: "HI", Label: "modelo=2020 | marca=toyota", EmbeddingScore: 1.0, FuzzyScore: 1.0},
		{Code: "LO", Label: "modelo=1999 | marca=nissan", EmbeddingScore: 0.0, FuzzyScore: 0.0},
	}

	scored, _ := s.Score(context.Background(), "toyota 2020", attrs, candidates, false)
	for _, c := range scored {
		assert.GreaterOrEqual(t, c.CombinedScore, 0.0)
		assert.LessOrEqual(t, c.CombinedScore, 1.0)
	}
}

func TestScoreTieBreakSwapsTopTwo(t *testing.T) {
	arbiter := &stubArbiter{pick: 1}
	s := NewScorer(scoringConfig(), arbiter)
	candidates := []model.MatchCandidate{
		{Code: "A", Label: "la", FuzzyScore: 0.80},
		{Code: "B", Label: "lb", FuzzyScore: 0.79},
		{Code: "C", Label: "lc", FuzzyScore: 0.50},
	}

	scored, flags := s.Score(context.Background(), "q", model.Attributes{}, candidates, true)
	assert.Empty(t, flags)
	require.Equal(t, 1, arbiter.calls)
	// The arbiter preferred the runner-up; only the top two swap.
	assert.Equal(t, "B", scored[0].Code)
	assert.Equal(t, "A", scored[1].Code)
	assert.Equal(t, "C", scored[2].Code)
}

func TestScoreNoArbitrationOutsideEpsilon(t *testing.T) {
	arbiter := &stubArbiter{pick: 1}
	s := NewScorer(scoringConfig(), arbiter)
	candidates := []model.MatchCandidate{
		{Code: "A", Label: "la", FuzzyScore: 0.90},
		{Code: "B", Label: "lb", FuzzyScore: 0.60},
	}

	scored, _ := s.Score(context.Background(), "q", model.Attributes{}, candidates, true)
	assert.Equal(t, 0, arbiter.calls)
	assert.Equal(t, "A", scored[0].Code)
}

func TestScoreArbitrationFailureKeepsOrder(t *testing.T) {
	arbiter := &stubArbiter{err: errors.New("model timeout")}
	s := NewScorer(scoringConfig(), arbiter)
	candidates := []model.MatchCandidate{
		{Code: "A", Label: "la", FuzzyScore: 0.80},
		{Code: "B", Label: "lb", FuzzyScore: 0.79},
	}

	scored, flags := s.Score(context.Background(), "q", model.Attributes{}, candidates, true)
	require.Len(t, flags, 1)
	assert.Equal(t, model.FlagArbitrationFailed, flags[0])
	assert.Equal(t, "A", scored[0].Code)
}
