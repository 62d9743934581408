package model

import "time"

// BatchRun terminal statuses. A run is RUNNING until the orchestrator marks
// it terminal; once terminal it is never mutated again.
const (
	RunStatusRunning = "RUNNING"
	RunStatusSuccess = "SUCCESS"
	RunStatusPartial = "PARTIAL"
	RunStatusFailed  = "FAILED"
)

// BatchRun groups many VehicleQueries processed together.
type BatchRun struct {
	RunID            string     `gorm:"type:varchar(36);primaryKey;column:run_id" json:"runId"`
	CatalogVersionID string     `gorm:"type:varchar(64);not null;column:catalog_version_id" json:"catalogVersionId"`
	Status           string     `gorm:"type:varchar(16);not null;index;column:status" json:"status"`
	TotalQueries     int        `gorm:"not null;column:total_queries" json:"totalQueries"`
	ChunkSize        int        `gorm:"not null;column:chunk_size" json:"chunkSize"`
	MaxConcurrency   int        `gorm:"not null;column:max_concurrency" json:"maxConcurrency"`
	AutoAcceptCount  int        `gorm:"not null;default:0;column:auto_accept_count" json:"autoAcceptCount"`
	NeedsReviewCount int        `gorm:"not null;default:0;column:needs_review_count" json:"needsReviewCount"`
	NoMatchCount     int        `gorm:"not null;default:0;column:no_match_count" json:"noMatchCount"`
	ErrorCount       int        `gorm:"not null;default:0;column:error_count" json:"errorCount"`
	SkippedCount     int        `gorm:"not null;default:0;column:skipped_count" json:"skippedCount"`
	Cancelled        bool       `gorm:"not null;default:false;column:cancelled" json:"cancelled"`
	StartedAt        time.Time  `gorm:"autoCreateTime" json:"startedAt"`
	FinishedAt       *time.Time `gorm:"default:null" json:"finishedAt,omitempty"`
}

// TableName maps the model to its table.
func (BatchRun) TableName() string {
	return "batch_runs"
}
