package repository

import (
	"errors"

	"github.com/MincaAI/MVP-underwriting-sub000/internal/model"
	"gorm.io/gorm"
)

// ErrRunNotFound is returned when a batch run ID is unknown.
var ErrRunNotFound = errors.New("batch run not found")

// BatchRunRepository defines the data operations on batch runs.
type BatchRunRepository interface {
	Create(run *model.BatchRun) error
	Update(run *model.BatchRun) error
	FindByID(runID string) (*model.BatchRun, error)
	FindRecent(limit int) ([]model.BatchRun, error)
}

type batchRunRepository struct {
	db *gorm.DB
}

// NewBatchRunRepository creates a new BatchRunRepository instance.
func NewBatchRunRepository(db *gorm.DB) BatchRunRepository {
	return &batchRunRepository{db: db}
}

// Create inserts a new batch run record.
func (r *batchRunRepository) Create(run *model.BatchRun) error {
	return r.db.Create(run).Error
}

// Update saves the run's counters and status.
func (r *batchRunRepository) Update(run *model.BatchRun) error {
	return r.db.Save(run).Error
}

// FindByID retrieves a run by its identifier.
func (r *batchRunRepository) FindByID(runID string) (*model.BatchRun, error) {
	var run model.BatchRun
	err := r.db.Where("run_id = ?", runID).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// FindRecent lists the most recent runs for the status endpoint.
func (r *batchRunRepository) FindRecent(limit int) ([]model.BatchRun, error) {
	var runs []model.BatchRun
	err := r.db.Order("started_at DESC").Limit(limit).Find(&runs).Error
	return runs, err
}
