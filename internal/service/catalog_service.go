// Package service provides the business logic on top of the catalog store
// and the matching engine.
package service

import (
	"context"
	"fmt"

	"github.com/MincaAI/MVP-underwriting-sub000/internal/catalog"
	"github.com/MincaAI/MVP-underwriting-sub000/internal/model"
	"github.com/MincaAI/MVP-underwriting-sub000/pkg/log"
	"github.com/MincaAI/MVP-underwriting-sub000/pkg/tasks"
)

// ObjectChecker reports whether a raw catalog object exists in the bucket.
type ObjectChecker func(ctx context.Context, objectName string) (bool, error)

// TaskEnqueuer sends a catalog ingestion task to the queue.
type TaskEnqueuer func(task tasks.CatalogIngestTask) error

// CatalogService exposes the administrative catalog operations.
type CatalogService interface {
	Ingest(ctx context.Context, versionID, objectName, declaredChecksum string) (*model.CatalogVersion, error)
	Activate(versionID string) error
	Versions() ([]model.CatalogVersion, error)
	Version(versionID string) (*model.CatalogVersion, error)
	Active() (*model.CatalogVersion, error)
}

type catalogService struct {
	store       *catalog.Store
	objectExist ObjectChecker
	enqueue     TaskEnqueuer
}

// NewCatalogService creates a new CatalogService instance.
func NewCatalogService(store *catalog.Store, objectExist ObjectChecker, enqueue TaskEnqueuer) CatalogService {
	return &catalogService{
		store:       store,
		objectExist: objectExist,
		enqueue:     enqueue,
	}
}

// Ingest registers a new catalog version for an object already uploaded to
// the bucket and enqueues the ingestion task that will load and embed it.
func (s *catalogService) Ingest(ctx context.Context, versionID, objectName, declaredChecksum string) (*model.CatalogVersion, error) {
	log.Infof("[CatalogService] ingest request: version=%s, object=%s", versionID, objectName)

	exists, err := s.objectExist(ctx, objectName)
	if err != nil {
		return nil, fmt.Errorf("failed to check catalog object %s: %w", objectName, err)
	}
	if !exists {
		return nil, fmt.Errorf("catalog object %s not found in bucket", objectName)
	}

	version, err := s.store.Register(versionID, objectName, declaredChecksum)
	if err != nil {
		return nil, err
	}

	task := tasks.CatalogIngestTask{
		VersionID:        versionID,
		ObjectName:       objectName,
		DeclaredChecksum: declaredChecksum,
	}
	if err := s.enqueue(task); err != nil {
		return nil, fmt.Errorf("failed to enqueue ingest task for version %s: %w", versionID, err)
	}

	log.Infof("[CatalogService] version %s registered and queued for ingestion", versionID)
	return version, nil
}

// Activate promotes an EMBEDDED version to ACTIVE.
func (s *catalogService) Activate(versionID string) error {
	return s.store.Activate(versionID)
}

// Versions lists every known version.
func (s *catalogService) Versions() ([]model.CatalogVersion, error) {
	return s.store.Versions()
}

// Version returns one version by ID.
func (s *catalogService) Version(versionID string) (*model.CatalogVersion, error) {
	return s.store.Version(versionID)
}

// Active returns the currently active version.
func (s *catalogService) Active() (*model.CatalogVersion, error) {
	return s.store.GetActive()
}
