package syncer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/sparkprog/go-crmsync-backend/internal/config"
	"github.com/sparkprog/go-crmsync-backend/internal/crm"
	"github.com/sparkprog/go-crmsync-backend/internal/model"
)

// Service owns the reconciliation pipeline: watermark → fetch → resolve →
// diff → upsert → ledger. One run per entity type executes as a single
// sequential worker; independent entity types may run concurrently.
type Service struct {
	store    Store
	fetcher  *Fetcher
	resolver *Resolver
	coord    *Coordinator
	auditor  *Auditor
	log      zerolog.Logger

	mu       sync.Mutex
	inflight map[model.EntityType]context.CancelFunc
}

func New(store Store, client crm.Client, cfg *config.Config, log zerolog.Logger) *Service {
	thresholds := map[model.EntityType]float64{
		model.EntityVolunteer: cfg.FuzzyThresholdVolunteer,
		model.EntityTeacher:   cfg.FuzzyThresholdTeacher,
		model.EntityStudent:   cfg.FuzzyThresholdStudent,
	}
	return &Service{
		store:    store,
		fetcher:  NewFetcher(client, cfg.SyncPageSize, cfg.SyncMaxRetries, cfg.SyncRetryInterval, cfg.SyncMaxRetryWait, log),
		resolver: NewResolver(store, thresholds, log),
		coord:    NewCoordinator(store, log),
		auditor:  NewAuditor(store, log),
		log:      log.With().Str("component", "syncer").Logger(),
		inflight: map[model.EntityType]context.CancelFunc{},
	}
}

// RunSync executes one sync run for an entity type. With delta set, only
// records modified at or after the current watermark are fetched. The next
// page fetch overlaps processing of the previous page through a bounded
// channel; processing order within a page stays fetch order. Returns
// ErrSyncInProgress when a run for the type is already in flight.
func (s *Service) RunSync(ctx context.Context, t model.EntityType, delta bool) (*model.SyncRun, error) {
	if !t.Valid() {
		return nil, &ValidationError{Field: "entity_type", Message: "unknown entity type " + string(t)}
	}

	// fetchCtx governs page fetches only. Cancel stops new pages while the
	// in-flight page finishes under the caller's context, each record
	// committing or rolling back independently.
	fetchCtx, cancelFetch := context.WithCancel(ctx)
	if !s.acquire(t, cancelFetch) {
		cancelFetch()
		return nil, ErrSyncInProgress
	}
	defer s.release(t)
	defer cancelFetch()

	ledger := NewRunLedger(t, delta)
	runLog := s.log.With().
		Str("run_id", ledger.Run().ID.String()).
		Str("entity_type", string(t)).
		Bool("delta", delta).
		Logger()

	var since *time.Time
	if delta {
		wm, err := s.store.GetWatermark(ctx, t)
		if err != nil {
			return nil, err
		}
		since = wm
	}
	if err := s.store.CreateSyncRun(ctx, ledger.Run()); err != nil {
		return nil, err
	}
	runLog.Info().Msg("sync run started")

	pages := make(chan *crm.Page, 1)
	var fetchErr error

	g := new(errgroup.Group)
	g.Go(func() error {
		defer close(pages)
		_, err := s.fetcher.Stream(fetchCtx, t, since, pages)
		if err != nil && !errors.Is(err, context.Canceled) {
			fetchErr = err
		}
		return nil
	})
	g.Go(func() error {
		for page := range pages {
			ledger.Begin()
			s.processPage(ctx, t, page, ledger, runLog)
		}
		return nil
	})
	_ = g.Wait()

	cancelled := fetchCtx.Err() != nil && ctx.Err() == nil
	if fetchErr == nil && !cancelled && ctx.Err() == nil {
		// An empty feed is still a successful, complete stream. A run whose
		// own context died never begins and finalizes as failed.
		ledger.Begin()
	}

	run := ledger.Finalize(cancelled, fetchErr)
	if run.Status == model.SyncSuccess {
		if err := s.store.SetWatermark(ctx, t, run.StartedAt); err != nil {
			runLog.Error().Err(err).Msg("watermark advance failed")
			run.Status = model.SyncPartial
			run.Watermark = nil
		}
	}
	if err := s.store.FinishSyncRun(ctx, run); err != nil {
		runLog.Error().Err(err).Msg("sync run persist failed")
	}

	runLog.Info().
		Str("status", string(run.Status)).
		Int("processed", run.Processed).
		Int("created", run.Created).
		Int("updated", run.Updated).
		Int("unchanged", run.Unchanged).
		Int("skipped", run.Skipped).
		Int("failed", run.Failed).
		Int("ambiguous", run.Ambiguous).
		Msg("sync run finished")
	return run, nil
}

// processPage applies a page's records in fetch order (ascending external
// ID) so a crash mid-page can resume deterministically from the last
// committed external ID.
func (s *Service) processPage(ctx context.Context, t model.EntityType, page *crm.Page, ledger *RunLedger, runLog zerolog.Logger) {
	for _, rec := range page.Records {
		candidates, err := s.resolver.Resolve(ctx, rec, t)
		if err != nil {
			ledger.Record(OutcomeFailed, rec.ExternalID(), err)
			runLog.Warn().Str("external_id", rec.ExternalID()).Err(err).Msg("resolve failed")
			continue
		}
		outcome, applyErr := s.coord.Apply(ctx, rec, candidates, t)
		ledger.Record(outcome, rec.ExternalID(), applyErr)
		if applyErr != nil {
			runLog.Warn().Str("external_id", rec.ExternalID()).Err(applyErr).Msg("record not applied")
		}
	}
}

// syncPhases orders SyncAll: contact kinds and events first, then the
// activity kinds that reference them by external ID.
var syncPhases = [][]model.EntityType{
	{model.EntityVolunteer, model.EntityTeacher, model.EntityStudent, model.EntityEvent},
	{model.EntityParticipation, model.EntityHistory},
}

// SyncAll runs every entity type, each phase's types as concurrent workers
// (they touch disjoint tables). Types with a run already in flight are
// skipped, not queued.
func (s *Service) SyncAll(ctx context.Context, delta bool) ([]*model.SyncRun, error) {
	var mu sync.Mutex
	var runs []*model.SyncRun
	for _, phase := range syncPhases {
		g := new(errgroup.Group)
		for _, t := range phase {
			t := t
			g.Go(func() error {
				run, err := s.RunSync(ctx, t, delta)
				if err != nil {
					if errors.Is(err, ErrSyncInProgress) {
						s.log.Warn().Str("entity_type", string(t)).Msg("sync already in flight, skipping")
						return nil
					}
					return err
				}
				mu.Lock()
				runs = append(runs, run)
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return runs, err
		}
	}
	return runs, nil
}

// Cancel stops new page fetches for an in-flight run. The current page
// finishes and the run finalizes as CANCELLED (no watermark advance).
// Returns false when no run is in flight for the type.
func (s *Service) Cancel(t model.EntityType) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cancel, ok := s.inflight[t]
	if ok {
		cancel()
	}
	return ok
}

// RunFuzzyAudit matches an external name list against local contacts.
func (s *Service) RunFuzzyAudit(ctx context.Context, names []model.NamePair, minScore float64) ([]model.AuditResult, error) {
	return s.auditor.Run(ctx, names, minScore)
}

func (s *Service) acquire(t model.EntityType, cancel context.CancelFunc) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.inflight[t]; ok {
		return false
	}
	s.inflight[t] = cancel
	return true
}

func (s *Service) release(t model.EntityType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, t)
}
