package matching

import (
	"context"
	"fmt"
	"time"

	"github.com/MincaAI/MVP-underwriting-sub000/internal/config"
	"github.com/MincaAI/MVP-underwriting-sub000/internal/model"
	"github.com/MincaAI/MVP-underwriting-sub000/pkg/normalizer"
)

// maxStoredCandidates bounds the candidate list persisted on a result.
const maxStoredCandidates = 10

// ErrVersionNotActive is returned when a query pins a catalog version that
// is not the currently active one. The engine never silently matches
// against a different version than the caller asked for.
var ErrVersionNotActive = fmt.Errorf("requested catalog version is not the active version")

// Matcher runs the per-query codification pipeline:
// normalize -> extract -> retrieve -> score -> decide.
type Matcher struct {
	extractor *Extractor
	retriever *Retriever
	scorer    *Scorer
	cfg       config.MatchingConfig
}

// NewMatcher wires the pipeline stages together.
func NewMatcher(extractor *Extractor, retriever *Retriever, scorer *Scorer, cfg config.MatchingConfig) *Matcher {
	return &Matcher{
		extractor: extractor,
		retriever: retriever,
		scorer:    scorer,
		cfg:       cfg,
	}
}

// Match codifies one vehicle query against the active catalog version and
// returns an immutable MatchResult. Degraded signals (LLM or embeddings
// unavailable) are flagged on the result; only catalog access errors and a
// version mismatch are returned as errors.
func (m *Matcher) Match(ctx context.Context, query model.VehicleQuery) (*model.MatchResult, error) {
	started := time.Now()

	normalized := normalizer.Normalize(query.Description)
	attrs, flags := m.extractor.Extract(ctx, query)

	versionID, candidates, retrievalFlags, err := m.retriever.Retrieve(ctx, normalized, attrs)
	if err != nil {
		return nil, err
	}
	flags = append(flags, retrievalFlags...)

	if query.CatalogVersionID != "" && query.CatalogVersionID != versionID {
		return nil, fmt.Errorf("%w: requested %s, active %s", ErrVersionNotActive, query.CatalogVersionID, versionID)
	}

	fuzzyOnly := containsFlag(flags, model.FlagEmbeddingUnavailable)
	scored, scoreFlags := m.scorer.Score(ctx, normalized, attrs, candidates, fuzzyOnly)
	flags = append(flags, scoreFlags...)

	decision, confidence, code := Decide(scored, m.cfg)

	if len(scored) > maxStoredCandidates {
		scored = scored[:maxStoredCandidates]
	}

	result := &model.MatchResult{
		QueryDescription: query.Description,
		CatalogVersionID: versionID,
		ChosenCode:       code,
		Confidence:       confidence,
		Decision:         decision,
		LatencyMs:        time.Since(started).Milliseconds(),
		Candidates:       scored,
		Attributes:       attrs,
		Flags:            flags,
	}
	if err := result.MarshalDetails(); err != nil {
		return nil, err
	}
	return result, nil
}

func containsFlag(flags []string, flag string) bool {
	for _, f := range flags {
		if f == flag {
			return true
		}
	}
	return false
}
