package matching

import (
	"context"
	"sort"

	"github.com/MincaAI/MVP-underwriting-sub000/internal/config"
	"github.com/MincaAI/MVP-underwriting-sub000/internal/model"
	"github.com/MincaAI/MVP-underwriting-sub000/pkg/embedding"
	"github.com/MincaAI/MVP-underwriting-sub000/pkg/es"
	"github.com/MincaAI/MVP-underwriting-sub000/pkg/log"
	"github.com/MincaAI/MVP-underwriting-sub000/pkg/normalizer"
	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

// VectorSearcher is the kNN retrieval port, satisfied by es.Searcher.
type VectorSearcher interface {
	Search(ctx context.Context, versionID string, vector []float32, k int) ([]es.Hit, error)
}

// EntrySource exposes the active catalog version's cached entries,
// satisfied by catalog.Store.
type EntrySource interface {
	ActiveEntries() (string, []model.CatalogEntry, error)
}

// Retriever produces match candidates by two parallel strategies: embedding
// kNN against the catalog index and a fuzzy ratio over the cached entries.
// The union is merged by code, keeping the best sub-score from each path.
type Retriever struct {
	embedder embedding.Client
	searcher VectorSearcher
	entries  EntrySource
	cfg      config.MatchingConfig
	lev      *metrics.Levenshtein
}

// NewRetriever creates a retriever.
func NewRetriever(embedder embedding.Client, searcher VectorSearcher, entries EntrySource, cfg config.MatchingConfig) *Retriever {
	lev := metrics.NewLevenshtein()
	lev.CaseSensitive = false
	return &Retriever{
		embedder: embedder,
		searcher: searcher,
		entries:  entries,
		cfg:      cfg,
		lev:      lev,
	}
}

// Retrieve returns the active version ID and up to top_k candidates for the
// normalized query. If the embedding path is unavailable it degrades to the
// lexical path alone and reports a degradation flag; only the catalog read
// itself is fatal.
func (r *Retriever) Retrieve(ctx context.Context, normalizedQuery string, attrs model.Attributes) (string, []model.MatchCandidate, []string, error) {
	versionID, entries, err := r.entries.ActiveEntries()
	if err != nil {
		return "", nil, nil, err
	}

	var flags []string

	// Lexical path: token-sorted Levenshtein ratio between the query text
	// and every entry label. Candidates missing a queried year or brand are
	// retained here; the scorer penalizes them instead.
	querySorted := normalizer.TokenSort(normalizedQuery)
	fuzzyByCode := make(map[string]float64, len(entries))
	labelByCode := make(map[string]string, len(entries))
	for _, e := range entries {
		ratio := strutil.Similarity(querySorted, normalizer.TokenSort(labelText(e.Label)), r.lev)
		fuzzyByCode[e.Code] = ratio
		labelByCode[e.Code] = e.Label
	}

	merged := make(map[string]*model.MatchCandidate)
	for code, ratio := range fuzzyByCode {
		if ratio < r.cfg.FuzzyMatchThreshold {
			continue
		}
		merged[code] = &model.MatchCandidate{
			Code:       code,
			Label:      labelByCode[code],
			FuzzyScore: ratio,
		}
	}

	// Vector path: embed the query the same way catalog labels were
	// embedded, then kNN over the active version only.
	embedText := buildQueryLabel(attrs, normalizedQuery)
	vector, err := r.embedder.CreateEmbedding(ctx, embedText)
	if err != nil {
		log.Warnf("[Retriever] query embedding unavailable, fuzzy path only: %v", err)
		flags = append(flags, model.FlagEmbeddingUnavailable)
	} else {
		hits, err := r.searcher.Search(ctx, versionID, vector, r.cfg.TopK)
		if err != nil {
			log.Warnf("[Retriever] vector search unavailable, fuzzy path only: %v", err)
			flags = append(flags, model.FlagEmbeddingUnavailable)
		} else {
			for _, hit := range hits {
				if hit.Score < r.cfg.SimilarityThreshold {
					continue
				}
				if c, ok := merged[hit.Code]; ok {
					if hit.Score > c.EmbeddingScore {
						c.EmbeddingScore = hit.Score
					}
					continue
				}
				merged[hit.Code] = &model.MatchCandidate{
					Code:           hit.Code,
					Label:          hit.Label,
					EmbeddingScore: hit.Score,
					FuzzyScore:     fuzzyByCode[hit.Code],
				}
			}
		}
	}

	candidates := make([]model.MatchCandidate, 0, len(merged))
	for _, c := range merged {
		candidates = append(candidates, *c)
	}
	// Preliminary order by best sub-score; ties broken by code so the
	// result is deterministic for identical inputs.
	sort.Slice(candidates, func(i, j int) bool {
		si := maxScore(candidates[i])
		sj := maxScore(candidates[j])
		if si != sj {
			return si > sj
		}
		return candidates[i].Code < candidates[j].Code
	})
	if len(candidates) > r.cfg.TopK {
		candidates = candidates[:r.cfg.TopK]
	}

	log.Infof("[Retriever] version=%s, query=%q: %d candidates (of %d entries)", versionID, normalizedQuery, len(candidates), len(entries))
	return versionID, candidates, flags, nil
}

func maxScore(c model.MatchCandidate) float64 {
	if c.EmbeddingScore > c.FuzzyScore {
		return c.EmbeddingScore
	}
	return c.FuzzyScore
}
