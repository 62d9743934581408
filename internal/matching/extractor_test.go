package matching

import (
	"context"
	"errors"
	"testing"

	"github.com/MincaAI/MVP-underwriting-sub000/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubParser struct {
	parsed *ParsedAttributes
	err    error
	calls  int
}

func (s *stubParser) ParseAttributes(ctx context.Context, description string) (*ParsedAttributes, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.parsed, nil
}

func TestExtractStructuredFieldsPassThrough(t *testing.T) {
	parser := &stubParser{parsed: &ParsedAttributes{
		Brand: ParsedField{Value: "nissan", Confidence: 0.8},
	}}
	e := NewExtractor(parser)

	attrs, flags := e.Extract(context.Background(), model.VehicleQuery{
		Description: "Toyota Yaris 2020",
		Brand:       "Toyota",
		Model:       "Yaris",
		Year:        2020,
	})

	assert.Empty(t, flags)
	assert.Equal(t, "toyota", attrs.Brand.Value)
	assert.Equal(t, "yaris", attrs.Model.Value)
	assert.Equal(t, "2020", attrs.Year.Value)
	assert.Equal(t, 1.0, attrs.Brand.Confidence)
	assert.Equal(t, "structured", attrs.Brand.Source)
	// Every catalog-relevant field was structured, so no LLM call happens
	// and its conflicting brand is discarded.
	assert.Equal(t, 0, parser.calls)
}

func TestExtractLLMFillsUnknownFieldsOnly(t *testing.T) {
	parser := &stubParser{parsed: &ParsedAttributes{
		Brand:     ParsedField{Value: "honda", Confidence: 0.9},
		Model:     ParsedField{Value: "civic", Confidence: 0.85},
		Year:      ParsedField{Value: "2018", Confidence: 0.7},
		BodyStyle: ParsedField{Value: "sedan", Confidence: 0.6},
	}}
	e := NewExtractor(parser)

	attrs, flags := e.Extract(context.Background(), model.VehicleQuery{
		Description: "Honda Civic 2018 sedan",
		Brand:       "Toyota", // structured wins over the LLM's honda
	})

	assert.Empty(t, flags)
	require.Equal(t, 1, parser.calls)
	assert.Equal(t, "toyota", attrs.Brand.Value)
	assert.Equal(t, "structured", attrs.Brand.Source)
	assert.Equal(t, "civic", attrs.Model.Value)
	assert.Equal(t, "llm", attrs.Model.Source)
	assert.Equal(t, 0.85, attrs.Model.Confidence)
	assert.Equal(t, "2018", attrs.Year.Value)
	assert.Equal(t, "sedan", attrs.BodyStyle.Value)
}

func TestExtractDegradesWhenParserFails(t *testing.T) {
	parser := &stubParser{err: errors.New("model timeout")}
	e := NewExtractor(parser)

	attrs, flags := e.Extract(context.Background(), model.VehicleQuery{
		Description: "Honda Civic 2018",
		Brand:       "Honda",
	})

	require.Len(t, flags, 1)
	assert.Equal(t, model.FlagExtractionUnavailable, flags[0])
	assert.Equal(t, "honda", attrs.Brand.Value)
	assert.False(t, attrs.Model.Known())
}

func TestExtractNilParserIsStructuredOnly(t *testing.T) {
	e := NewExtractor(nil)
	attrs, flags := e.Extract(context.Background(), model.VehicleQuery{
		Description: "Honda Civic 2018",
	})
	assert.Empty(t, flags)
	assert.False(t, attrs.Brand.Known())
	assert.False(t, attrs.Year.Known())
}
