package matching

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/MincaAI/MVP-underwriting-sub000/internal/config"
	"github.com/MincaAI/MVP-underwriting-sub000/internal/model"
	"github.com/MincaAI/MVP-underwriting-sub000/pkg/es"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEmbedder struct {
	vector []float32
	err    error
}

func (s *stubEmbedder) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.vector, nil
}

func (s *stubEmbedder) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = s.vector
	}
	return out, nil
}

type stubSearcher struct {
	hits []es.Hit
	err  error
}

func (s *stubSearcher) Search(ctx context.Context, versionID string, vector []float32, k int) ([]es.Hit, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.hits, nil
}

type stubEntrySource struct {
	versionID string
	entries   []model.CatalogEntry
	err       error
}

func (s *stubEntrySource) ActiveEntries() (string, []model.CatalogEntry, error) {
	if s.err != nil {
		return "", nil, s.err
	}
	return s.versionID, s.entries, nil
}

func testEntry(code, marca, submarca string, modelo int) model.CatalogEntry {
	e := model.CatalogEntry{Code: code, Marca: marca, Submarca: submarca, Modelo: modelo}
	e.Label = e.BuildLabel()
	return e
}

func TestRetrieveMergesBothPaths(t *testing.T) {
	entries := []model.CatalogEntry{
		testEntry("AMIS-1", "Toyota", "Yaris", 2020),
		testEntry("AMIS-2", "Nissan", "Versa", 2019),
	}
	searcher := &stubSearcher{hits: []es.Hit{
		{Code: "AMIS-1", Label: entries[0].Label, Score: 0.95},
		{Code: "AMIS-3", Label: "modelo=2021 | marca=kia | submarca=rio | segmento= | carroceria= | descripcion=", Score: 0.55},
	}}
	r := NewRetriever(&stubEmbedder{vector: []float32{0.1, 0.2}}, searcher, &stubEntrySource{versionID: "v1", entries: entries}, config.DefaultMatching())

	versionID, candidates, flags, err := r.Retrieve(context.Background(), "toyota yaris 2020", model.Attributes{})
	require.NoError(t, err)
	assert.Equal(t, "v1", versionID)
	assert.Empty(t, flags)

	byCode := make(map[string]model.MatchCandidate)
	for _, c := range candidates {
		byCode[c.Code] = c
	}
	// AMIS-1 came through both paths: it keeps the kNN score and its fuzzy
	// ratio against the query.
	require.Contains(t, byCode, "AMIS-1")
	assert.Equal(t, 0.95, byCode["AMIS-1"].EmbeddingScore)
	assert.Greater(t, byCode["AMIS-1"].FuzzyScore, 0.5)
	// AMIS-3 is vector-only.
	require.Contains(t, byCode, "AMIS-3")
	assert.Equal(t, 0.55, byCode["AMIS-3"].EmbeddingScore)
}

func TestRetrieveDegradesWhenEmbeddingFails(t *testing.T) {
	entries := []model.CatalogEntry{testEntry("AMIS-1", "Toyota", "Yaris", 2020)}
	r := NewRetriever(&stubEmbedder{err: errors.New("api down")}, &stubSearcher{}, &stubEntrySource{versionID: "v1", entries: entries}, config.DefaultMatching())

	_, candidates, flags, err := r.Retrieve(context.Background(), "toyota yaris 2020", model.Attributes{})
	require.NoError(t, err)
	require.Len(t, flags, 1)
	assert.Equal(t, model.FlagEmbeddingUnavailable, flags[0])
	// The lexical path still produces the close match.
	require.NotEmpty(t, candidates)
	assert.Equal(t, "AMIS-1", candidates[0].Code)
	assert.Zero(t, candidates[0].EmbeddingScore)
}

func TestRetrieveDegradesWhenSearchFails(t *testing.T) {
	entries := []model.CatalogEntry{testEntry("AMIS-1", "Toyota", "Yaris", 2020)}
	r := NewRetriever(&stubEmbedder{vector: []float32{0.1}}, &stubSearcher{err: errors.New("index unavailable")}, &stubEntrySource{versionID: "v1", entries: entries}, config.DefaultMatching())

	_, _, flags, err := r.Retrieve(context.Background(), "toyota yaris", model.Attributes{})
	require.NoError(t, err)
	require.Len(t, flags, 1)
	assert.Equal(t, model.FlagEmbeddingUnavailable, flags[0])
}

func TestRetrieveCatalogErrorIsFatal(t *testing.T) {
	r := NewRetriever(&stubEmbedder{}, &stubSearcher{}, &stubEntrySource{err: errors.New("no active version")}, config.DefaultMatching())
	_, _, _, err := r.Retrieve(context.Background(), "toyota yaris", model.Attributes{})
	assert.Error(t, err)
}

func TestRetrieveTruncatesToTopK(t *testing.T) {
	cfg := config.DefaultMatching()
	cfg.TopK = 3
	cfg.FuzzyMatchThreshold = 0 // keep every entry in play

	entries := make([]model.CatalogEntry, 10)
	for i := range entries {
		entries[i] = testEntry(fmt.Sprintf("AMIS-%02d", i), "Toyota", "Yaris", 2010+i)
	}
	r := NewRetriever(&stubEmbedder{err: errors.New("down")}, &stubSearcher{}, &stubEntrySource{versionID: "v1", entries: entries}, cfg)

	_, candidates, _, err := r.Retrieve(context.Background(), "toyota yaris", model.Attributes{})
	require.NoError(t, err)
	assert.Len(t, candidates, 3)
}

func TestRetrieveIsDeterministic(t *testing.T) {
	entries := []model.CatalogEntry{
		testEntry("AMIS-2", "Toyota", "Yaris", 2020),
		testEntry("AMIS-1", "Toyota", "Yaris", 2020),
	}
	r := NewRetriever(&stubEmbedder{err: errors.New("down")}, &stubSearcher{}, &stubEntrySource{versionID: "v1", entries: entries}, config.DefaultMatching())

	_, first, _, err := r.Retrieve(context.Background(), "toyota yaris 2020", model.Attributes{})
	require.NoError(t, err)
	_, second, _, err := r.Retrieve(context.Background(), "toyota yaris 2020", model.Attributes{})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	// Identical scores order by code.
	require.Len(t, first, 2)
	assert.Equal(t, "AMIS-1", first[0].Code)
}
