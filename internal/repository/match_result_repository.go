package repository

import (
	"github.com/MincaAI/MVP-underwriting-sub000/internal/model"
	"gorm.io/gorm"
)

// MatchResultRepository defines the data operations on match results.
type MatchResultRepository interface {
	BatchCreate(results []*model.MatchResult) error
	FindByRunID(runID string) ([]model.MatchResult, error)
}

type matchResultRepository struct {
	db *gorm.DB
}

// NewMatchResultRepository creates a new MatchResultRepository instance.
func NewMatchResultRepository(db *gorm.DB) MatchResultRepository {
	return &matchResultRepository{db: db}
}

// BatchCreate persists a chunk of results in one batch.
func (r *matchResultRepository) BatchCreate(results []*model.MatchResult) error {
	if len(results) == 0 {
		return nil
	}
	return r.db.CreateInBatches(results, 100).Error
}

// FindByRunID returns every result of a run in creation order.
func (r *matchResultRepository) FindByRunID(runID string) ([]model.MatchResult, error) {
	var results []model.MatchResult
	err := r.db.Where("run_id = ?", runID).Order("id ASC").Find(&results).Error
	return results, err
}
