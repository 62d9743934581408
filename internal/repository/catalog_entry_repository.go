package repository

import (
	"github.com/MincaAI/MVP-underwriting-sub000/internal/model"
	"gorm.io/gorm"
)

// CatalogEntryRepository defines the data operations on catalog entries.
type CatalogEntryRepository interface {
	BatchCreate(entries []*model.CatalogEntry) error
	FindByVersion(versionID string) ([]model.CatalogEntry, error)
	DeleteByVersion(versionID string) error
	CountByVersion(versionID string) (int64, error)
}

type catalogEntryRepository struct {
	db *gorm.DB
}

// NewCatalogEntryRepository creates a new CatalogEntryRepository instance.
func NewCatalogEntryRepository(db *gorm.DB) CatalogEntryRepository {
	return &catalogEntryRepository{db: db}
}

// BatchCreate bulk-inserts catalog entries, 500 rows per statement.
func (r *catalogEntryRepository) BatchCreate(entries []*model.CatalogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.CreateInBatches(entries, 500).Error
}

// FindByVersion returns every entry of a version, in insertion order.
func (r *catalogEntryRepository) FindByVersion(versionID string) ([]model.CatalogEntry, error) {
	var entries []model.CatalogEntry
	err := r.db.Where("version_id = ?", versionID).Order("id ASC").Find(&entries).Error
	return entries, err
}

// DeleteByVersion removes every entry of a version. Used when a failed load
// is retried so a half-loaded version never survives.
func (r *catalogEntryRepository) DeleteByVersion(versionID string) error {
	return r.db.Where("version_id = ?", versionID).Delete(&model.CatalogEntry{}).Error
}

// CountByVersion counts the entries of a version.
func (r *catalogEntryRepository) CountByVersion(versionID string) (int64, error) {
	var count int64
	err := r.db.Model(&model.CatalogEntry{}).Where("version_id = ?", versionID).Count(&count).Error
	return count, err
}
