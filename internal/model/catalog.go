// Package model defines the database models and DTOs of the codification engine.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/MincaAI/MVP-underwriting-sub000/pkg/normalizer"
)

// Catalog version lifecycle states. Transitions only move forward
// (UPLOADED → LOADED → EMBEDDED → ACTIVE), FAILED is a sink reachable from
// any non-terminal state, and deactivation steps an ACTIVE version back to
// EMBEDDED.
const (
	VersionStateUploaded = "UPLOADED"
	VersionStateLoaded   = "LOADED"
	VersionStateEmbedded = "EMBEDDED"
	VersionStateActive   = "ACTIVE"
	VersionStateFailed   = "FAILED"
)

// CatalogVersion is a named, checksummed snapshot of the AMIS/CVEGS
// reference table.
type CatalogVersion struct {
	VersionID        string     `gorm:"type:varchar(64);primaryKey;column:version_id" json:"versionId"`
	State            string     `gorm:"type:varchar(16);not null;index;column:state" json:"state"`
	SourceObject     string     `gorm:"type:varchar(255);not null;column:source_object" json:"sourceObject"`
	DeclaredChecksum string     `gorm:"type:varchar(64);not null;column:declared_checksum" json:"declaredChecksum"`
	Checksum         string     `gorm:"type:varchar(64);column:checksum" json:"checksum"`
	EntryCount       int        `gorm:"not null;default:0;column:entry_count" json:"entryCount"`
	EmbeddingModel   string     `gorm:"type:varchar(100);column:embedding_model" json:"embeddingModel"`
	EmbeddingDim     int        `gorm:"column:embedding_dim" json:"embeddingDim"`
	FailureReason    string     `gorm:"type:varchar(500);column:failure_reason" json:"failureReason,omitempty"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
	ActivatedAt      *time.Time `gorm:"default:null" json:"activatedAt,omitempty"`
}

// TableName maps the model to its table.
func (CatalogVersion) TableName() string {
	return "catalog_versions"
}

// CatalogEntry is one row of a specific catalog version. The embedding
// vector itself lives in the Elasticsearch catalog index; MySQL keeps the
// structured attributes and the label the vector was computed from.
type CatalogEntry struct {
	ID          uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	VersionID   string `gorm:"type:varchar(64);not null;index;column:version_id" json:"versionId"`
	Code        string `gorm:"type:varchar(32);not null;index;column:code" json:"code"`
	Marca       string `gorm:"type:varchar(100);not null;column:marca" json:"marca"`
	Submarca    string `gorm:"type:varchar(100);column:submarca" json:"submarca"`
	Modelo      int    `gorm:"not null;column:modelo" json:"modelo"`
	Segmento    string `gorm:"type:varchar(100);column:segmento" json:"segmento"`
	Carroceria  string `gorm:"type:varchar(100);column:carroceria" json:"carroceria"`
	Descripcion string `gorm:"type:varchar(500);column:descripcion" json:"descripcion"`
	Label       string `gorm:"type:varchar(1000);not null;column:label" json:"label"`
}

// TableName maps the model to its table.
func (CatalogEntry) TableName() string {
	return "catalog_entries"
}

// BuildLabel produces the structured label for an entry: a fixed-order
// concatenation of its attributes. The order and the normalization must be
// identical for every entry of a version, and for the query-side label, or
// the embeddings are not comparable.
func (e *CatalogEntry) BuildLabel() string {
	parts := []string{
		fmt.Sprintf("modelo=%d", e.Modelo),
		"marca=" + normalizer.Normalize(e.Marca),
		"submarca=" + normalizer.Normalize(e.Submarca),
		"segmento=" + normalizer.Normalize(e.Segmento),
		"carroceria=" + normalizer.Normalize(e.Carroceria),
		"descripcion=" + normalizer.Normalize(e.Descripcion),
	}
	return strings.Join(parts, " | ")
}

// CatalogEvent is the state-transition event published to Kafka whenever a
// version changes state.
type CatalogEvent struct {
	VersionID string    `json:"version_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Reason    string    `json:"reason,omitempty"`
	At        time.Time `json:"at"`
}
