// Package matching implements the vehicle codification engine: attribute
// extraction, candidate retrieval, scoring and the decision policy.
package matching

import (
	"context"
	"strconv"

	"github.com/MincaAI/MVP-underwriting-sub000/internal/model"
	"github.com/MincaAI/MVP-underwriting-sub000/pkg/log"
	"github.com/MincaAI/MVP-underwriting-sub000/pkg/normalizer"
)

// Attribute sources.
const (
	sourceStructured = "structured"
	sourceLLM        = "llm"
)

// ParsedField is one attribute inferred from free text by the language model.
type ParsedField struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// ParsedAttributes is the fixed schema the language model returns.
type ParsedAttributes struct {
	Brand     ParsedField `json:"brand"`
	Model     ParsedField `json:"model"`
	Year      ParsedField `json:"year"`
	FuelType  ParsedField `json:"fuel_type"`
	BodyStyle ParsedField `json:"body_style"`
}

// AttributeParser infers vehicle attributes from a free-text description.
// Implemented by the LLM-backed parser; tests substitute a stub.
type AttributeParser interface {
	ParseAttributes(ctx context.Context, description string) (*ParsedAttributes, error)
}

// Extractor merges structured query fields with LLM-derived attributes.
// Structured fields are ground truth: on conflict the LLM value is
// discarded, not merged.
type Extractor struct {
	parser AttributeParser
}

// NewExtractor creates an extractor. A nil parser disables LLM inference
// entirely; extraction then yields structured fields only.
func NewExtractor(parser AttributeParser) *Extractor {
	return &Extractor{parser: parser}
}

// Extract produces the merged attribute set for a query. If the language
// model call fails, extraction proceeds with structured-only attributes and
// reports a degradation flag instead of failing the query.
func (e *Extractor) Extract(ctx context.Context, query model.VehicleQuery) (model.Attributes, []string) {
	attrs := model.Attributes{}
	var flags []string

	// Structured fields pass through unchanged with confidence 1.0.
	if query.Brand != "" {
		attrs.Brand = model.AttributeField{Value: normalizer.Normalize(query.Brand), Confidence: 1.0, Source: sourceStructured}
	}
	if query.Model != "" {
		attrs.Model = model.AttributeField{Value: normalizer.Normalize(query.Model), Confidence: 1.0, Source: sourceStructured}
	}
	if query.Year != 0 {
		attrs.Year = model.AttributeField{Value: strconv.Itoa(query.Year), Confidence: 1.0, Source: sourceStructured}
	}

	if e.parser == nil || e.allStructured(attrs) {
		return attrs, flags
	}

	parsed, err := e.parser.ParseAttributes(ctx, normalizer.Normalize(query.Description))
	if err != nil {
		log.Warnf("[Extractor] attribute inference failed, proceeding structured-only: %v", err)
		return attrs, append(flags, model.FlagExtractionUnavailable)
	}

	// Only fill fields the structured input left unknown.
	if !attrs.Brand.Known() && parsed.Brand.Value != "" {
		attrs.Brand = llmField(parsed.Brand)
	}
	if !attrs.Model.Known() && parsed.Model.Value != "" {
		attrs.Model = llmField(parsed.Model)
	}
	if !attrs.Year.Known() && parsed.Year.Value != "" {
		attrs.Year = llmField(parsed.Year)
	}
	if parsed.FuelType.Value != "" {
		attrs.FuelType = llmField(parsed.FuelType)
	}
	if parsed.BodyStyle.Value != "" {
		attrs.BodyStyle = llmField(parsed.BodyStyle)
	}
	return attrs, flags
}

// allStructured reports whether every catalog-relevant field already came
// from structured input, making the LLM call unnecessary.
func (e *Extractor) allStructured(attrs model.Attributes) bool {
	return attrs.Brand.Known() && attrs.Model.Known() && attrs.Year.Known()
}

func llmField(f ParsedField) model.AttributeField {
	return model.AttributeField{
		Value:      normalizer.Normalize(f.Value),
		Confidence: f.Confidence,
		Source:     sourceLLM,
	}
}
