package repository

import (
	"errors"
	"time"

	"github.com/MincaAI/MVP-underwriting-sub000/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CatalogVersionRepository defines the persistence operations on catalog
// versions, including the transactional single-active-version swap.
type CatalogVersionRepository interface {
	Create(version *model.CatalogVersion) error
	FindByID(versionID string) (*model.CatalogVersion, error)
	FindAll() ([]model.CatalogVersion, error)
	FindActive() (*model.CatalogVersion, error)
	// Transition moves a version from one state to another, applying the
	// column updates in the same statement. Returns ErrInvalidTransition if
	// the version is not in the expected state.
	Transition(versionID, fromState, toState string, updates map[string]interface{}) error
	// MarkFailed moves a version to FAILED from any non-terminal state.
	MarkFailed(versionID, reason string) error
	// Activate atomically deactivates the current ACTIVE version (if any)
	// and activates versionID. The whole swap runs in one transaction with
	// row locks, so a concurrent reader observes either the old or the new
	// active version, never zero or two. Returns the previously active
	// version ID, or "" if none was active.
	Activate(versionID string) (string, error)
}

type catalogVersionRepository struct {
	db *gorm.DB
}

// NewCatalogVersionRepository creates a new CatalogVersionRepository instance.
func NewCatalogVersionRepository(db *gorm.DB) CatalogVersionRepository {
	return &catalogVersionRepository{db: db}
}

// Create inserts a new version record in UPLOADED state.
func (r *catalogVersionRepository) Create(version *model.CatalogVersion) error {
	return r.db.Create(version).Error
}

// FindByID retrieves a version by its ID.
func (r *catalogVersionRepository) FindByID(versionID string) (*model.CatalogVersion, error) {
	var version model.CatalogVersion
	err := r.db.Where("version_id = ?", versionID).First(&version).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrVersionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &version, nil
}

// FindAll lists every version, newest first.
func (r *catalogVersionRepository) FindAll() ([]model.CatalogVersion, error) {
	var versions []model.CatalogVersion
	err := r.db.Order("created_at DESC").Find(&versions).Error
	return versions, err
}

// FindActive returns the single ACTIVE version, or ErrNoActiveVersion.
func (r *catalogVersionRepository) FindActive() (*model.CatalogVersion, error) {
	var version model.CatalogVersion
	err := r.db.Where("state = ?", model.VersionStateActive).First(&version).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoActiveVersion
	}
	if err != nil {
		return nil, err
	}
	return &version, nil
}

// Transition performs a guarded state change: the UPDATE only matches when
// the version is still in fromState, so concurrent transitions cannot both
// succeed.
func (r *catalogVersionRepository) Transition(versionID, fromState, toState string, updates map[string]interface{}) error {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["state"] = toState

	res := r.db.Model(&model.CatalogVersion{}).
		Where("version_id = ? AND state = ?", versionID, fromState).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.FindByID(versionID); err != nil {
			return err
		}
		return ErrInvalidTransition
	}
	return nil
}

// MarkFailed moves a version into the FAILED sink unless it is ACTIVE or
// already FAILED.
func (r *catalogVersionRepository) MarkFailed(versionID, reason string) error {
	res := r.db.Model(&model.CatalogVersion{}).
		Where("version_id = ? AND state NOT IN ?", versionID, []string{model.VersionStateActive, model.VersionStateFailed}).
		Updates(map[string]interface{}{"state": model.VersionStateFailed, "failure_reason": reason})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.FindByID(versionID); err != nil {
			return err
		}
		return ErrInvalidTransition
	}
	return nil
}

// Activate swaps the active version in a single transaction. The candidate
// row is locked with SELECT ... FOR UPDATE before validation so two
// concurrent activations serialize; validation failures roll back with no
// state change.
func (r *catalogVersionRepository) Activate(versionID string) (string, error) {
	var previous string

	err := r.db.Transaction(func(tx *gorm.DB) error {
		var candidate model.CatalogVersion
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("version_id = ?", versionID).
			First(&candidate).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrVersionNotFound
		}
		if err != nil {
			return err
		}

		if candidate.State != model.VersionStateEmbedded {
			return ErrInvalidTransition
		}
		if candidate.Checksum != candidate.DeclaredChecksum {
			return ErrChecksumMismatch
		}

		var current model.CatalogVersion
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("state = ?", model.VersionStateActive).
			First(&current).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err == nil {
			previous = current.VersionID
			// Deactivation is a step back to EMBEDDED, not a deletion.
			demote := tx.Model(&model.CatalogVersion{}).
				Where("version_id = ? AND state = ?", current.VersionID, model.VersionStateActive).
				Updates(map[string]interface{}{"state": model.VersionStateEmbedded, "activated_at": nil})
			if demote.Error != nil {
				return demote.Error
			}
		}

		now := time.Now()
		promote := tx.Model(&model.CatalogVersion{}).
			Where("version_id = ? AND state = ?", versionID, model.VersionStateEmbedded).
			Updates(map[string]interface{}{"state": model.VersionStateActive, "activated_at": now})
		if promote.Error != nil {
			return promote.Error
		}
		if promote.RowsAffected == 0 {
			return ErrInvalidTransition
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return previous, nil
}
