package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MincaAI/MVP-underwriting-sub000/internal/config"
	"github.com/MincaAI/MVP-underwriting-sub000/internal/model"
	"github.com/MincaAI/MVP-underwriting-sub000/internal/repository"
	"github.com/MincaAI/MVP-underwriting-sub000/pkg/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// QueryMatcher runs the per-query codification pipeline. Satisfied by
// matching.Matcher.
type QueryMatcher interface {
	Match(ctx context.Context, query model.VehicleQuery) (*model.MatchResult, error)
}

// ActiveVersionReader reads the active catalog version. Satisfied by
// catalog.Store.
type ActiveVersionReader interface {
	GetActive() (*model.CatalogVersion, error)
}

// BatchService is the fan-out/fan-in batch orchestrator.
type BatchService interface {
	Submit(ctx context.Context, queries []model.VehicleQuery) (*model.BatchRun, error)
	GetRun(runID string) (*model.BatchRun, error)
	GetResults(runID string) ([]model.MatchResult, error)
	Cancel(ctx context.Context, runID string) error
	ListRecent(limit int) ([]model.BatchRun, error)
}

type batchService struct {
	matcher    QueryMatcher
	active     ActiveVersionReader
	runRepo    repository.BatchRunRepository
	resultRepo repository.MatchResultRepository
	cancel     CancelFlag
	cfg        config.MatchingConfig
}

// NewBatchService creates a new BatchService instance.
func NewBatchService(
	matcher QueryMatcher,
	active ActiveVersionReader,
	runRepo repository.BatchRunRepository,
	resultRepo repository.MatchResultRepository,
	cancel CancelFlag,
	cfg config.MatchingConfig,
) BatchService {
	return &batchService{
		matcher:    matcher,
		active:     active,
		runRepo:    runRepo,
		resultRepo: resultRepo,
		cancel:     cancel,
		cfg:        cfg,
	}
}

// Submit creates a BatchRun and processes it in the background. If no
// catalog version is active the run is recorded FAILED without starting.
func (s *batchService) Submit(ctx context.Context, queries []model.VehicleQuery) (*model.BatchRun, error) {
	run := &model.BatchRun{
		RunID:          uuid.NewString(),
		Status:         model.RunStatusRunning,
		TotalQueries:   len(queries),
		ChunkSize:      s.cfg.ChunkSize,
		MaxConcurrency: s.cfg.MaxConcurrency,
	}

	activeVersion, err := s.active.GetActive()
	if err != nil {
		run.Status = model.RunStatusFailed
		now := time.Now()
		run.FinishedAt = &now
		if createErr := s.runRepo.Create(run); createErr != nil {
			return nil, createErr
		}
		log.Warnf("[BatchService] run %s failed to start: %v", run.RunID, err)
		return run, nil
	}
	run.CatalogVersionID = activeVersion.VersionID

	if err := s.runRepo.Create(run); err != nil {
		return nil, err
	}
	log.Infof("[BatchService] run %s submitted: %d queries, chunk_size=%d, max_concurrency=%d",
		run.RunID, len(queries), run.ChunkSize, run.MaxConcurrency)

	// The run outlives the HTTP request that submitted it.
	go s.processRun(context.Background(), run, queries)

	return run, nil
}

// processRun partitions the queries into chunks, processed sequentially;
// within a chunk the per-query pipeline runs concurrently up to the
// configured limit. Chunk N's results are recorded before chunk N+1 begins.
func (s *batchService) processRun(ctx context.Context, run *model.BatchRun, queries []model.VehicleQuery) {
	for start := 0; start < len(queries); start += run.ChunkSize {
		if s.isCancelled(ctx, run.RunID) {
			run.Cancelled = true
			run.SkippedCount += len(queries) - start
			log.Infof("[BatchService] run %s cancelled, skipping %d remaining queries", run.RunID, len(queries)-start)
			break
		}

		end := start + run.ChunkSize
		if end > len(queries) {
			end = len(queries)
		}
		chunk := queries[start:end]

		results := s.processChunk(ctx, run, chunk)

		for _, r := range results {
			if r == nil {
				run.SkippedCount++
				continue
			}
			switch r.Decision {
			case model.DecisionAutoAccept:
				run.AutoAcceptCount++
			case model.DecisionNeedsReview:
				run.NeedsReviewCount++
			default:
				run.NoMatchCount++
			}
			if r.ErrorNote != "" {
				run.ErrorCount++
			}
		}

		persisted := make([]*model.MatchResult, 0, len(results))
		for _, r := range results {
			if r != nil {
				persisted = append(persisted, r)
			}
		}
		if err := s.resultRepo.BatchCreate(persisted); err != nil {
			log.Errorf("[BatchService] run %s: failed to persist chunk results: %v", run.RunID, err)
		}
		if err := s.runRepo.Update(run); err != nil {
			log.Errorf("[BatchService] run %s: failed to update counters: %v", run.RunID, err)
		}
	}

	switch {
	case run.Cancelled || run.ErrorCount > 0 || run.SkippedCount > 0:
		run.Status = model.RunStatusPartial
	default:
		run.Status = model.RunStatusSuccess
	}
	now := time.Now()
	run.FinishedAt = &now
	if err := s.runRepo.Update(run); err != nil {
		log.Errorf("[BatchService] run %s: failed to finalize: %v", run.RunID, err)
	}
	log.Infof("[BatchService] run %s finished: status=%s, auto_accept=%d, needs_review=%d, no_match=%d, errors=%d, skipped=%d",
		run.RunID, run.Status, run.AutoAcceptCount, run.NeedsReviewCount, run.NoMatchCount, run.ErrorCount, run.SkippedCount)
}

// processChunk dispatches one chunk under the concurrency gate. A nil slot
// in the returned slice marks a query skipped by cancellation. A single
// query's failure is converted into a no_match result with an error note;
// it never aborts the run.
func (s *batchService) processChunk(ctx context.Context, run *model.BatchRun, chunk []model.VehicleQuery) []*model.MatchResult {
	results := make([]*model.MatchResult, len(chunk))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(run.MaxConcurrency)
	for i, query := range chunk {
		// Cancellation drains in-flight queries but stops new dispatches.
		if s.isCancelled(ctx, run.RunID) {
			break
		}
		g.Go(func() error {
			result, err := s.matcher.Match(gctx, query)
			if err != nil {
				log.Warnf("[BatchService] run %s: query failed, recording no_match: %v", run.RunID, err)
				result = &model.MatchResult{
					QueryDescription: query.Description,
					CatalogVersionID: run.CatalogVersionID,
					Decision:         model.DecisionNoMatch,
					ErrorNote:        err.Error(),
				}
				if mErr := result.MarshalDetails(); mErr != nil {
					log.Errorf("[BatchService] run %s: failed to marshal error result: %v", run.RunID, mErr)
				}
			}
			result.RunID = run.RunID
			mu.Lock()
			results[i] = result
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// GetRun returns a batch run by identifier.
func (s *batchService) GetRun(runID string) (*model.BatchRun, error) {
	return s.runRepo.FindByID(runID)
}

// GetResults returns the hydrated match results of a run.
func (s *batchService) GetResults(runID string) ([]model.MatchResult, error) {
	if _, err := s.runRepo.FindByID(runID); err != nil {
		return nil, err
	}
	results, err := s.resultRepo.FindByRunID(runID)
	if err != nil {
		return nil, err
	}
	for i := range results {
		if err := results[i].UnmarshalDetails(); err != nil {
			return nil, fmt.Errorf("failed to hydrate result %d of run %s: %w", results[i].ID, runID, err)
		}
	}
	return results, nil
}

// Cancel flags a run for cancellation. In-flight queries drain; queries not
// yet dispatched are skipped and counted as not processed.
func (s *batchService) Cancel(ctx context.Context, runID string) error {
	run, err := s.runRepo.FindByID(runID)
	if err != nil {
		return err
	}
	if run.Status != model.RunStatusRunning {
		return fmt.Errorf("run %s is already terminal (%s)", runID, run.Status)
	}
	if err := s.cancel.Set(ctx, runID); err != nil {
		return fmt.Errorf("failed to set cancellation flag for run %s: %w", runID, err)
	}
	log.Infof("[BatchService] run %s flagged for cancellation", runID)
	return nil
}

// ListRecent lists the most recent runs.
func (s *batchService) ListRecent(limit int) ([]model.BatchRun, error) {
	return s.runRepo.FindRecent(limit)
}

func (s *batchService) isCancelled(ctx context.Context, runID string) bool {
	if s.cancel == nil {
		return false
	}
	return s.cancel.IsSet(ctx, runID)
}
