package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMatchingIsValid(t *testing.T) {
	cfg := DefaultMatching()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 0.7, cfg.WEmbed)
	assert.Equal(t, 0.3, cfg.WFuzzy)
	assert.Equal(t, 0.90, cfg.THigh)
	assert.Equal(t, 0.70, cfg.TLow)
	assert.Equal(t, 50, cfg.TopK)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*MatchingConfig)
	}{
		{"negative weight", func(m *MatchingConfig) { m.WEmbed = -0.1 }},
		{"both weights zero", func(m *MatchingConfig) { m.WEmbed, m.WFuzzy = 0, 0 }},
		{"t_high below t_low", func(m *MatchingConfig) { m.THigh = 0.5 }},
		{"t_high above one", func(m *MatchingConfig) { m.THigh = 1.5 }},
		{"negative t_low", func(m *MatchingConfig) { m.TLow = -0.1 }},
		{"negative epsilon", func(m *MatchingConfig) { m.TieEpsilon = -0.01 }},
		{"negative delta", func(m *MatchingConfig) { m.AttributeDelta = -0.01 }},
		{"zero top_k", func(m *MatchingConfig) { m.TopK = 0 }},
		{"zero chunk_size", func(m *MatchingConfig) { m.ChunkSize = 0 }},
		{"zero concurrency", func(m *MatchingConfig) { m.MaxConcurrency = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultMatching()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateAllowsFuzzyOnlyWeights(t *testing.T) {
	cfg := DefaultMatching()
	cfg.WEmbed, cfg.WFuzzy = 0, 1
	assert.NoError(t, cfg.Validate())
}

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const baseConfigYAML = `
server:
  port: ":8080"
  mode: "debug"
embedding:
  model: "text-embedding-3-small"
  dimensions: 1536
`

func TestInitAppliesMatchingOverrides(t *testing.T) {
	path := writeConfigFile(t, baseConfigYAML+`
matching:
  t_high: 0.95
  top_k: 10
`)
	Init(path)
	assert.Equal(t, 0.95, Conf.Matching.THigh)
	assert.Equal(t, 10, Conf.Matching.TopK)
	// Keys absent from the file keep their defaults.
	assert.Equal(t, 0.7, Conf.Matching.WEmbed)
	assert.Equal(t, 20, Conf.Matching.ChunkSize)
	assert.Equal(t, 1536, Conf.Embedding.Dimensions)
}

func TestInitRejectsUnknownMatchingKey(t *testing.T) {
	path := writeConfigFile(t, baseConfigYAML+`
matching:
  w_embedd: 0.5
`)
	assert.Panics(t, func() { Init(path) })
}

func TestInitRejectsInvalidMatchingValues(t *testing.T) {
	path := writeConfigFile(t, baseConfigYAML+`
matching:
  t_high: 0.5
  t_low: 0.7
`)
	assert.Panics(t, func() { Init(path) })
}

func TestInitRejectsZeroEmbeddingDimensions(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: ":8080"
embedding:
  model: "text-embedding-3-small"
  dimensions: 0
`)
	assert.Panics(t, func() { Init(path) })
}
