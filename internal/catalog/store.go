// Package catalog implements the versioned catalog store: it owns the
// version state machine, the single-active-version invariant and the
// in-memory entry cache the retriever reads from.
package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MincaAI/MVP-underwriting-sub000/internal/model"
	"github.com/MincaAI/MVP-underwriting-sub000/internal/repository"
	"github.com/MincaAI/MVP-underwriting-sub000/pkg/embedding"
	"github.com/MincaAI/MVP-underwriting-sub000/pkg/log"
	"golang.org/x/sync/errgroup"
)

// embedBatchSize is the number of labels sent per embedding API call.
const embedBatchSize = 64

// embedConcurrency bounds parallel embedding calls during an embed pass.
const embedConcurrency = 4

// VectorIndexer writes embedding vectors to the catalog vector index.
type VectorIndexer interface {
	BulkIndex(ctx context.Context, docs []model.EsCatalogDocument) error
	DeleteVersion(ctx context.Context, versionID string) error
}

// EventPublisher emits a catalog state-transition event. Publishing is
// fire-and-forget; the transition has already been committed.
type EventPublisher func(event model.CatalogEvent)

// Store is the catalog version store. All mutations run through it so the
// state machine and the active-version cache stay consistent.
type Store struct {
	versionRepo repository.CatalogVersionRepository
	entryRepo   repository.CatalogEntryRepository
	embedder    embedding.Client
	indexer     VectorIndexer
	publish     EventPublisher

	embeddingModel string
	embeddingDim   int

	// Active-version entry cache. Invalidated and reloaded wholesale on
	// activation, never patched incrementally.
	mu            sync.RWMutex
	cachedVersion string
	cachedEntries []model.CatalogEntry
}

// NewStore creates a catalog store.
func NewStore(
	versionRepo repository.CatalogVersionRepository,
	entryRepo repository.CatalogEntryRepository,
	embedder embedding.Client,
	indexer VectorIndexer,
	publish EventPublisher,
	embeddingModel string,
	embeddingDim int,
) *Store {
	if publish == nil {
		publish = func(model.CatalogEvent) {}
	}
	return &Store{
		versionRepo:    versionRepo,
		entryRepo:      entryRepo,
		embedder:       embedder,
		indexer:        indexer,
		publish:        publish,
		embeddingModel: embeddingModel,
		embeddingDim:   embeddingDim,
	}
}

// Register records a new version in UPLOADED state.
func (s *Store) Register(versionID, sourceObject, declaredChecksum string) (*model.CatalogVersion, error) {
	version := &model.CatalogVersion{
		VersionID:        versionID,
		State:            model.VersionStateUploaded,
		SourceObject:     sourceObject,
		DeclaredChecksum: declaredChecksum,
	}
	if err := s.versionRepo.Create(version); err != nil {
		return nil, fmt.Errorf("failed to register catalog version %s: %w", versionID, err)
	}
	log.Infof("[CatalogStore] registered version %s (object=%s)", versionID, sourceObject)
	return version, nil
}

// Load bulk-inserts the parsed entries of a version and transitions
// UPLOADED -> LOADED. Validation failures leave the version FAILED with no
// entries, never half-loaded.
func (s *Store) Load(ctx context.Context, versionID string, entries []*model.CatalogEntry, checksum string) error {
	log.Infof("[CatalogStore] loading version %s: %d entries", versionID, len(entries))

	version, err := s.versionRepo.FindByID(versionID)
	if err != nil {
		return err
	}
	if version.State != model.VersionStateUploaded {
		return repository.ErrInvalidTransition
	}

	if err := validateEntries(entries); err != nil {
		s.fail(versionID, version.State, err.Error())
		return err
	}
	for _, e := range entries {
		e.VersionID = versionID
		e.Label = e.BuildLabel()
	}

	// A retried load starts from a clean slate, in MySQL and in the vector
	// index; embed overwrites by document ID but cannot remove codes that
	// vanished between attempts.
	if err := s.entryRepo.DeleteByVersion(versionID); err != nil {
		return fmt.Errorf("failed to clear previous entries of version %s: %w", versionID, err)
	}
	if err := s.indexer.DeleteVersion(ctx, versionID); err != nil {
		return fmt.Errorf("failed to clear previous vectors of version %s: %w", versionID, err)
	}
	if err := s.entryRepo.BatchCreate(entries); err != nil {
		s.fail(versionID, version.State, "bulk insert failed: "+err.Error())
		return fmt.Errorf("failed to load entries of version %s: %w", versionID, err)
	}

	err = s.versionRepo.Transition(versionID, model.VersionStateUploaded, model.VersionStateLoaded,
		map[string]interface{}{"checksum": checksum, "entry_count": len(entries)})
	if err != nil {
		return err
	}
	s.event(versionID, model.VersionStateUploaded, model.VersionStateLoaded, "")
	log.Infof("[CatalogStore] version %s loaded: %d entries, checksum=%s", versionID, len(entries), checksum)
	return nil
}

// Embed computes embeddings for every entry's structured label and
// transitions LOADED -> EMBEDDED. Re-running on an already-EMBEDDED version
// is idempotent: vectors are overwritten in place, the entry count does not
// change. Any other state is rejected.
func (s *Store) Embed(ctx context.Context, versionID string) error {
	version, err := s.versionRepo.FindByID(versionID)
	if err != nil {
		return err
	}
	if version.State != model.VersionStateLoaded && version.State != model.VersionStateEmbedded {
		return repository.ErrInvalidTransition
	}

	entries, err := s.entryRepo.FindByVersion(versionID)
	if err != nil {
		return fmt.Errorf("failed to read entries of version %s: %w", versionID, err)
	}
	log.Infof("[CatalogStore] embedding version %s: %d labels, model=%s", versionID, len(entries), s.embeddingModel)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)
	for start := 0; start < len(entries); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(entries) {
			end = len(entries)
		}
		batch := entries[start:end]
		g.Go(func() error {
			labels := make([]string, len(batch))
			for i, e := range batch {
				labels[i] = e.Label
			}
			vectors, err := s.embedder.CreateEmbeddings(gctx, labels)
			if err != nil {
				return fmt.Errorf("embedding batch failed: %w", err)
			}
			docs := make([]model.EsCatalogDocument, len(batch))
			for i, e := range batch {
				docs[i] = model.EsCatalogDocument{
					VersionID: versionID,
					Code:      e.Code,
					Label:     e.Label,
					Vector:    vectors[i],
				}
			}
			return s.indexer.BulkIndex(gctx, docs)
		})
	}
	if err := g.Wait(); err != nil {
		if version.State == model.VersionStateLoaded {
			s.fail(versionID, version.State, "embedding failed: "+err.Error())
		}
		return err
	}

	if version.State == model.VersionStateLoaded {
		err = s.versionRepo.Transition(versionID, model.VersionStateLoaded, model.VersionStateEmbedded,
			map[string]interface{}{"embedding_model": s.embeddingModel, "embedding_dim": s.embeddingDim})
		if err != nil {
			return err
		}
		s.event(versionID, model.VersionStateLoaded, model.VersionStateEmbedded, "")
	}
	log.Infof("[CatalogStore] version %s embedded: %d vectors of dim %d", versionID, len(entries), s.embeddingDim)
	return nil
}

// Activate swaps the active version atomically and reloads the entry cache.
// Rejected before any state mutation if the version is not EMBEDDED or its
// checksum does not match the declared content hash.
func (s *Store) Activate(versionID string) error {
	previous, err := s.versionRepo.Activate(versionID)
	if err != nil {
		return err
	}

	if previous != "" {
		s.event(previous, model.VersionStateActive, model.VersionStateEmbedded, "superseded by "+versionID)
	}
	s.event(versionID, model.VersionStateEmbedded, model.VersionStateActive, "")
	log.Infof("[CatalogStore] version %s activated (previous: %q)", versionID, previous)

	// The cache is dropped, not patched; the next read reloads it.
	s.mu.Lock()
	s.cachedVersion = ""
	s.cachedEntries = nil
	s.mu.Unlock()
	return nil
}

// GetActive returns the single ACTIVE version.
func (s *Store) GetActive() (*model.CatalogVersion, error) {
	return s.versionRepo.FindActive()
}

// Versions lists every version, newest first.
func (s *Store) Versions() ([]model.CatalogVersion, error) {
	return s.versionRepo.FindAll()
}

// Version returns one version by ID.
func (s *Store) Version(versionID string) (*model.CatalogVersion, error) {
	return s.versionRepo.FindByID(versionID)
}

// ActiveEntries returns the active version's ID and its cached entries,
// loading the cache on first use after an activation.
func (s *Store) ActiveEntries() (string, []model.CatalogEntry, error) {
	active, err := s.versionRepo.FindActive()
	if err != nil {
		return "", nil, err
	}

	s.mu.RLock()
	if s.cachedVersion == active.VersionID {
		entries := s.cachedEntries
		s.mu.RUnlock()
		return active.VersionID, entries, nil
	}
	s.mu.RUnlock()

	entries, err := s.entryRepo.FindByVersion(active.VersionID)
	if err != nil {
		return "", nil, fmt.Errorf("failed to load entries of active version %s: %w", active.VersionID, err)
	}

	s.mu.Lock()
	s.cachedVersion = active.VersionID
	s.cachedEntries = entries
	s.mu.Unlock()
	log.Infof("[CatalogStore] entry cache reloaded for version %s: %d entries", active.VersionID, len(entries))
	return active.VersionID, entries, nil
}

// Fail moves a version into the FAILED sink with the given reason. Used by
// the ingestion pipeline when the raw object cannot even be parsed into
// entries.
func (s *Store) Fail(versionID, reason string) {
	version, err := s.versionRepo.FindByID(versionID)
	if err != nil {
		log.Errorf("[CatalogStore] cannot fail unknown version %s: %v", versionID, err)
		return
	}
	s.fail(versionID, version.State, reason)
}

// fail moves a version to FAILED and emits the event.
func (s *Store) fail(versionID, fromState, reason string) {
	if err := s.versionRepo.MarkFailed(versionID, reason); err != nil {
		log.Errorf("[CatalogStore] failed to mark version %s FAILED: %v", versionID, err)
		return
	}
	s.event(versionID, fromState, model.VersionStateFailed, reason)
}

func (s *Store) event(versionID, from, to, reason string) {
	s.publish(model.CatalogEvent{
		VersionID: versionID,
		From:      from,
		To:        to,
		Reason:    reason,
		At:        time.Now(),
	})
}

// validateEntries rejects rows missing the attributes the structured label
// is built from. A version with invalid rows is failed outright rather than
// partially loaded.
func validateEntries(entries []*model.CatalogEntry) error {
	if len(entries) == 0 {
		return fmt.Errorf("catalog version has no entries")
	}
	seen := make(map[string]struct{}, len(entries))
	for i, e := range entries {
		if e.Code == "" {
			return fmt.Errorf("entry %d: missing AMIS/CVEGS code", i)
		}
		if e.Marca == "" {
			return fmt.Errorf("entry %d (%s): missing marca", i, e.Code)
		}
		if e.Modelo < 1900 || e.Modelo > 2100 {
			return fmt.Errorf("entry %d (%s): modelo year %d out of range", i, e.Code, e.Modelo)
		}
		if _, dup := seen[e.Code]; dup {
			return fmt.Errorf("entry %d: duplicate code %s", i, e.Code)
		}
		seen[e.Code] = struct{}{}
	}
	return nil
}
