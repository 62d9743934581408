package matching

import (
	"context"
	"errors"
	"testing"

	"github.com/MincaAI/MVP-underwriting-sub000/internal/config"
	"github.com/MincaAI/MVP-underwriting-sub000/internal/model"
	"github.com/MincaAI/MVP-underwriting-sub000/pkg/es"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMatcher(searcher VectorSearcher, source EntrySource, embedder *stubEmbedder) *Matcher {
	cfg := config.DefaultMatching()
	extractor := NewExtractor(nil)
	retriever := NewRetriever(embedder, searcher, source, cfg)
	scorer := NewScorer(cfg, nil)
	return NewMatcher(extractor, retriever, scorer, cfg)
}

func TestMatchAutoAccept(t *testing.T) {
	entry := testEntry("AMIS-100", "Toyota", "Yaris", 2020)
	searcher := &stubSearcher{hits: []es.Hit{{Code: "AMIS-100", Label: entry.Label, Score: 0.96}}}
	source := &stubEntrySource{versionID: "v1", entries: []model.CatalogEntry{entry}}
	m := newTestMatcher(searcher, source, &stubEmbedder{vector: []float32{0.1}})

	result, err := m.Match(context.Background(), model.VehicleQuery{
		Description: "Toyota Yaris 2020",
		Brand:       "Toyota",
		Model:       "Yaris",
		Year:        2020,
	})
	require.NoError(t, err)

	assert.Equal(t, model.DecisionAutoAccept, result.Decision)
	require.NotNil(t, result.ChosenCode)
	assert.Equal(t, "AMIS-100", *result.ChosenCode)
	assert.GreaterOrEqual(t, result.Confidence, 0.90)
	assert.Equal(t, "v1", result.CatalogVersionID)
	assert.Empty(t, result.Flags)
	assert.NotEmpty(t, result.CandidatesJSON, "details must be serialized for persistence")
}

func TestMatchNoMatch(t *testing.T) {
	entry := testEntry("AMIS-100", "Toyota", "Yaris", 2020)
	source := &stubEntrySource{versionID: "v1", entries: []model.CatalogEntry{entry}}
	m := newTestMatcher(&stubSearcher{}, source, &stubEmbedder{vector: []float32{0.1}})

	result, err := m.Match(context.Background(), model.VehicleQuery{
		Description: "maquinaria agricola industrial xz-9000",
	})
	require.NoError(t, err)

	assert.Equal(t, model.DecisionNoMatch, result.Decision)
	assert.Nil(t, result.ChosenCode)
}

func TestMatchPinnedVersionMismatch(t *testing.T) {
	entry := testEntry("AMIS-100", "Toyota", "Yaris", 2020)
	source := &stubEntrySource{versionID: "v2", entries: []model.CatalogEntry{entry}}
	m := newTestMatcher(&stubSearcher{}, source, &stubEmbedder{vector: []float32{0.1}})

	_, err := m.Match(context.Background(), model.VehicleQuery{
		Description:      "Toyota Yaris 2020",
		CatalogVersionID: "v1",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrVersionNotActive)
}

func TestMatchDegradedStillDecides(t *testing.T) {
	entry := testEntry("AMIS-100", "Toyota", "Yaris", 2020)
	source := &stubEntrySource{versionID: "v1", entries: []model.CatalogEntry{entry}}
	m := newTestMatcher(&stubSearcher{}, source, &stubEmbedder{err: errors.New("api down")})

	result, err := m.Match(context.Background(), model.VehicleQuery{
		Description: "Toyota Yaris 2020",
		Brand:       "Toyota",
		Year:        2020,
	})
	require.NoError(t, err)
	assert.Contains(t, result.Flags, model.FlagEmbeddingUnavailable)
	// The fuzzy path alone still codifies an exact description.
	require.NotNil(t, result.ChosenCode)
	assert.Equal(t, "AMIS-100", *result.ChosenCode)
}

func TestMatchCandidateListBounded(t *testing.T) {
	entries := make([]model.CatalogEntry, 30)
	for i := range entries {
		entries[i] = testEntry(code30(i), "Toyota", "Yaris", 2020)
	}
	source := &stubEntrySource{versionID: "v1", entries: entries}
	m := newTestMatcher(&stubSearcher{}, source, &stubEmbedder{err: errors.New("down")})

	result, err := m.Match(context.Background(), model.VehicleQuery{Description: "Toyota Yaris 2020"})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(result.Candidates), maxStoredCandidates)
}

func code30(i int) string {
	return string(rune('A'+i/10)) + string(rune('0'+i%10))
}
