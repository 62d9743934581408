package model

import (
	"encoding/json"
	"time"
)

// Decision outcomes of the threshold policy.
const (
	DecisionAutoAccept  = "auto_accept"
	DecisionNeedsReview = "needs_review"
	DecisionNoMatch     = "no_match"
)

// Degradation flags recorded on a MatchResult when the engine fell back to
// a reduced signal.
const (
	FlagEmbeddingUnavailable  = "embedding_unavailable: fuzzy_only"
	FlagExtractionUnavailable = "extraction_unavailable: structured_only"
	FlagArbitrationFailed     = "arbitration_unavailable: score_order_kept"
)

// VehicleQuery is one vehicle to codify. Immutable once created.
type VehicleQuery struct {
	Description      string  `json:"description" binding:"required"`
	Brand            string  `json:"brand,omitempty"`
	Model            string  `json:"model,omitempty"`
	Year             int     `json:"year,omitempty"`
	VIN              string  `json:"vin,omitempty"`
	InsuredValue     float64 `json:"insuredValue,omitempty"`
	CoveragePackage  string  `json:"coveragePackage,omitempty"`
	InsurerID        string  `json:"insurerId,omitempty"`
	CatalogVersionID string  `json:"catalogVersionId,omitempty"` // empty means "the active version"
}

// AttributeField is one extracted attribute with its confidence and origin.
// Source is "structured" (spreadsheet column, confidence 1.0) or "llm".
type AttributeField struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

// Known returns whether the field carries a value.
func (f AttributeField) Known() bool {
	return f.Value != ""
}

// Attributes is the merged attribute set for a query. Structured fields win
// over LLM-derived values on conflict.
type Attributes struct {
	Brand     AttributeField `json:"brand"`
	Model     AttributeField `json:"model"`
	Year      AttributeField `json:"year"`
	FuelType  AttributeField `json:"fuelType"`
	BodyStyle AttributeField `json:"bodyStyle"`
}

// Empty returns whether no attribute carries a value.
func (a Attributes) Empty() bool {
	return !a.Brand.Known() && !a.Model.Known() && !a.Year.Known() &&
		!a.FuelType.Known() && !a.BodyStyle.Known()
}

// MatchCandidate is one scored catalog entry for a query. Ephemeral; lives
// only inside a MatchResult's candidate list.
type MatchCandidate struct {
	Code                string  `json:"code"`
	Label               string  `json:"label"`
	EmbeddingScore      float64 `json:"embeddingScore"`
	FuzzyScore          float64 `json:"fuzzyScore"`
	AttributeAdjustment float64 `json:"attributeAdjustment"`
	CombinedScore       float64 `json:"combinedScore"`
}

// MatchResult is the decision outcome for one VehicleQuery. Created once;
// corrections are modeled as a new result, never an edit.
type MatchResult struct {
	ID               uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	RunID            string    `gorm:"type:varchar(36);index;column:run_id" json:"runId,omitempty"`
	QueryDescription string    `gorm:"type:varchar(1000);not null;column:query_description" json:"queryDescription"`
	CatalogVersionID string    `gorm:"type:varchar(64);not null;column:catalog_version_id" json:"catalogVersionId"`
	ChosenCode       *string   `gorm:"type:varchar(32);column:chosen_code" json:"chosenCode"`
	Confidence       float64   `gorm:"not null;column:confidence" json:"confidence"`
	Decision         string    `gorm:"type:varchar(16);not null;index;column:decision" json:"decision"`
	CandidatesJSON   string    `gorm:"type:text;column:candidates_json" json:"-"`
	AttributesJSON   string    `gorm:"type:text;column:attributes_json" json:"-"`
	FlagsJSON        string    `gorm:"type:varchar(500);column:flags_json" json:"-"`
	ErrorNote        string    `gorm:"type:varchar(500);column:error_note" json:"errorNote,omitempty"`
	LatencyMs        int64     `gorm:"not null;column:latency_ms" json:"latencyMs"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"createdAt"`

	// Hydrated views of the JSON columns for API responses.
	Candidates []MatchCandidate `gorm:"-" json:"candidates"`
	Attributes Attributes       `gorm:"-" json:"extractedAttributes"`
	Flags      []string         `gorm:"-" json:"degradationFlags"`
}

// TableName maps the model to its table.
func (MatchResult) TableName() string {
	return "match_results"
}

// MarshalDetails serializes the hydrated candidate list, attributes and
// flags into their JSON columns before persistence.
func (r *MatchResult) MarshalDetails() error {
	candidates, err := json.Marshal(r.Candidates)
	if err != nil {
		return err
	}
	attrs, err := json.Marshal(r.Attributes)
	if err != nil {
		return err
	}
	flags, err := json.Marshal(r.Flags)
	if err != nil {
		return err
	}
	r.CandidatesJSON = string(candidates)
	r.AttributesJSON = string(attrs)
	r.FlagsJSON = string(flags)
	return nil
}

// UnmarshalDetails hydrates the candidate list, attributes and flags from
// their JSON columns after a read.
func (r *MatchResult) UnmarshalDetails() error {
	if r.CandidatesJSON != "" {
		if err := json.Unmarshal([]byte(r.CandidatesJSON), &r.Candidates); err != nil {
			return err
		}
	}
	if r.AttributesJSON != "" {
		if err := json.Unmarshal([]byte(r.AttributesJSON), &r.Attributes); err != nil {
			return err
		}
	}
	if r.FlagsJSON != "" {
		if err := json.Unmarshal([]byte(r.FlagsJSON), &r.Flags); err != nil {
			return err
		}
	}
	return nil
}
