package matching

import (
	"context"
	"sort"

	"github.com/MincaAI/MVP-underwriting-sub000/internal/config"
	"github.com/MincaAI/MVP-underwriting-sub000/internal/model"
	"github.com/MincaAI/MVP-underwriting-sub000/pkg/log"
)

// Scorer combines the retrieval signals into one confidence value per
// candidate and orders the list.
type Scorer struct {
	cfg     config.MatchingConfig
	arbiter Arbiter
}

// NewScorer creates a scorer. A nil arbiter disables tie-break escalation;
// near-ties then keep their score order.
func NewScorer(cfg config.MatchingConfig, arbiter Arbiter) *Scorer {
	return &Scorer{cfg: cfg, arbiter: arbiter}
}

// Score enriches candidates with combined scores and sorts them descending.
// With fuzzyOnly set (embeddings unavailable for this query) the embedding
// weight is dropped and the fuzzy signal carries the whole similarity term.
// If the top two scores differ by less than tie_epsilon, one arbitration
// call may re-order exactly those two candidates.
func (s *Scorer) Score(ctx context.Context, queryDescription string, attrs model.Attributes, candidates []model.MatchCandidate, fuzzyOnly bool) ([]model.MatchCandidate, []string) {
	wEmbed, wFuzzy := s.cfg.WEmbed, s.cfg.WFuzzy
	if fuzzyOnly {
		wEmbed, wFuzzy = 0, 1
	}

	scored := make([]model.MatchCandidate, len(candidates))
	copy(scored, candidates)
	for i := range scored {
		scored[i].AttributeAdjustment = s.attributeAdjustment(attrs, scored[i].Label)
		combined := wEmbed*scored[i].EmbeddingScore + wFuzzy*scored[i].FuzzyScore + scored[i].AttributeAdjustment
		scored[i].CombinedScore = clamp01(combined)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].CombinedScore != scored[j].CombinedScore {
			return scored[i].CombinedScore > scored[j].CombinedScore
		}
		return scored[i].Code < scored[j].Code
	})

	var flags []string
	if len(scored) >= 2 && s.arbiter != nil {
		diff := scored[0].CombinedScore - scored[1].CombinedScore
		if diff < s.cfg.TieEpsilon {
			pick, err := s.arbiter.Prefer(ctx, queryDescription, scored[0].Label, scored[1].Label)
			if err != nil {
				log.Warnf("[Scorer] tie-break arbitration failed, keeping score order: %v", err)
				flags = append(flags, model.FlagArbitrationFailed)
			} else if pick == 1 {
				scored[0], scored[1] = scored[1], scored[0]
			}
		}
	}
	return scored, flags
}

// attributeAdjustment nudges the ranking by the agreement between extracted
// brand/year and the candidate's attributes: each attribute contributes
// +delta/2 on an exact match, -delta/2 on a conflict, 0 when either side is
// unknown. The total stays within [-delta, +delta] so it never overwhelms
// the similarity signal.
func (s *Scorer) attributeAdjustment(attrs model.Attributes, label string) float64 {
	half := s.cfg.AttributeDelta / 2
	entryAttrs := parseLabel(label)

	var adj float64
	if attrs.Brand.Known() && entryAttrs.Marca != "" {
		if attrs.Brand.Value == entryAttrs.Marca {
			adj += half
		} else {
			adj -= half
		}
	}
	if attrs.Year.Known() && entryAttrs.Modelo != "" {
		if attrs.Year.Value == entryAttrs.Modelo {
			adj += half
		} else {
			adj -= half
		}
	}
	return adj
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
