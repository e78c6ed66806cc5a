package planning

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/manufacturing/internal/domain/planning"
	"github.com/erp/manufacturing/internal/domain/shared"
	"github.com/erp/manufacturing/internal/infrastructure/logger"
	"github.com/erp/manufacturing/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ServiceConfig holds the run limits
type ServiceConfig struct {
	DefaultHorizonDays int
	MaxHorizonDays     int
}

// DefaultServiceConfig returns the limits used when none are configured
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		DefaultHorizonDays: planning.DefaultPlanningHorizonDays,
		MaxHorizonDays:     365,
	}
}

const staleRunSweepLimit = 100

// MRPService records calculator invocations as numbered runs and serves the
// run read side.
type MRPService struct {
	txScope        TransactionScope
	calculator     *RequirementCalculator
	generator      *ProcurementGenerator
	lock           *RunLock
	archiver       *RunArchiver
	config         ServiceConfig
	logger         *zap.Logger
	eventPublisher shared.EventPublisher
	metrics        *telemetry.BusinessMetrics
	now            func() time.Time
}

// NewMRPService creates a new MRPService
func NewMRPService(
	txScope TransactionScope,
	calculator *RequirementCalculator,
	generator *ProcurementGenerator,
	lock *RunLock,
	cfg ServiceConfig,
	log *zap.Logger,
) *MRPService {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.DefaultHorizonDays <= 0 {
		cfg.DefaultHorizonDays = planning.DefaultPlanningHorizonDays
	}
	if cfg.MaxHorizonDays <= 0 {
		cfg.MaxHorizonDays = DefaultServiceConfig().MaxHorizonDays
	}
	return &MRPService{
		txScope:    txScope,
		calculator: calculator,
		generator:  generator,
		lock:       lock,
		config:     cfg,
		logger:     log.Named("mrp"),
		now:        time.Now,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *MRPService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
	s.generator.SetEventPublisher(publisher)
}

// SetBusinessMetrics sets the metrics recorder
func (s *MRPService) SetBusinessMetrics(bm *telemetry.BusinessMetrics) {
	s.metrics = bm
	s.generator.SetBusinessMetrics(bm)
}

// SetArchiver enables run snapshots on completion
func (s *MRPService) SetArchiver(a *RunArchiver) {
	s.archiver = a
}

func (s *MRPService) publishDomainEvents(ctx context.Context, run *planning.MRPRun) {
	if s.eventPublisher == nil {
		return
	}
	events := run.GetDomainEvents()
	if len(events) == 0 {
		return
	}
	_ = s.eventPublisher.Publish(ctx, events...)
	run.ClearDomainEvents()
}

// ExecuteMRP runs the netting pass as a new numbered run.
//
// The run row is committed in running status before netting starts. Netting,
// totals and completion share one transaction. If that transaction fails, the
// run is marked failed in a separate transaction and the original error is
// returned.
func (s *MRPService) ExecuteMRP(ctx context.Context, req ExecuteMRPRequest) (_ *RunResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "mrp", "execute")
	defer func() { telemetry.EndSpan(span, err) }()

	horizon := req.PlanningHorizonDays
	if horizon == 0 {
		horizon = s.config.DefaultHorizonDays
	}
	if horizon < 1 || horizon > s.config.MaxHorizonDays {
		return nil, shared.NewDomainError(shared.CodeValidation,
			fmt.Sprintf("Planning horizon must be between 1 and %d days", s.config.MaxHorizonDays))
	}

	release, err := s.lock.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	s.failStaleRuns(ctx)

	started := s.now()
	run, err := s.startRun(ctx, horizon, req.Notes, started)
	if err != nil {
		return nil, err
	}
	log := logger.WithTraceContext(ctx, s.logger).With(
		zap.String("run_id", run.ID.String()),
		zap.String("run_number", run.RunNumber),
		zap.Int("horizon_days", horizon),
	)
	span.SetAttributes(
		attribute.String(telemetry.SpanAttrRunID, run.ID.String()),
		attribute.Int(telemetry.SpanAttrHorizonDays, horizon),
	)
	log.Info("MRP run started")

	var calc *CalculationResult
	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		calc, err = s.calculator.Calculate(ctx, repos, run)
		if err != nil {
			return err
		}
		if err := run.Complete(calc.TotalRequirements, calc.TotalShortages); err != nil {
			return err
		}
		return repos.RunRepo().SaveWithLock(ctx, run)
	})
	if err != nil {
		log.Error("MRP run failed", zap.Error(err))
		s.failRun(ctx, run.ID, err, log)
		if s.metrics != nil {
			s.metrics.RecordMRPRun(ctx, string(planning.RunStatusFailed), s.now().Sub(started))
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordMRPRun(ctx, string(planning.RunStatusCompleted), s.now().Sub(started))
	}
	s.publishDomainEvents(ctx, run)
	log.Info("MRP run completed",
		zap.Int("total_requirements", run.TotalRequirements),
		zap.Int("total_shortages", run.TotalShortages),
		zap.Duration("duration", s.now().Sub(started)),
	)

	span.SetAttributes(
		attribute.Int(telemetry.SpanAttrRequirements, run.TotalRequirements),
		attribute.Int(telemetry.SpanAttrShortages, run.TotalShortages),
	)
	s.archive(ctx, run, calc, log)

	resp := ToRunResponse(run)
	return &resp, nil
}

func (s *MRPService) startRun(ctx context.Context, horizon int, notes string, started time.Time) (*planning.MRPRun, error) {
	var run *planning.MRPRun
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		day := started.UTC()
		seq, err := repos.RunRepo().NextSequence(ctx, day)
		if err != nil {
			return err
		}
		run, err = planning.NewMRPRun(planning.FormatDocumentNumber(planning.RunNumberPrefix, day, seq), horizon, started)
		if err != nil {
			return err
		}
		run.Notes = notes
		return repos.RunRepo().Create(ctx, run)
	})
	if err != nil {
		return nil, fmt.Errorf("start MRP run: %w", err)
	}
	return run, nil
}

// failRun reloads the run so the in-memory copy touched by the failed
// transaction is not written back.
func (s *MRPService) failRun(ctx context.Context, runID uuid.UUID, cause error, log *zap.Logger) {
	ctx = context.WithoutCancel(ctx)
	var failed *planning.MRPRun
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		run, err := repos.RunRepo().FindByID(ctx, runID)
		if err != nil {
			return err
		}
		if err := run.Fail(cause.Error()); err != nil {
			return err
		}
		if err := repos.RunRepo().SaveWithLock(ctx, run); err != nil {
			return err
		}
		failed = run
		return nil
	})
	if err != nil {
		log.Error("Could not mark MRP run failed", zap.NamedError("cause", cause), zap.Error(err))
		return
	}
	s.publishDomainEvents(ctx, failed)
}

// staleRunAfter is the run lock TTL: once it lapses the lock no longer
// protects a run, so a run older than that has lost its executor.
func (s *MRPService) staleRunAfter() time.Duration {
	if s.lock != nil && s.lock.ttl > 0 {
		return s.lock.ttl
	}
	return DefaultRunLockTTL
}

// failStaleRuns marks runs orphaned in running status as failed. Callers hold
// the run lock. Errors are logged and do not block the new run.
func (s *MRPService) failStaleRuns(ctx context.Context) {
	log := logger.WithTraceContext(ctx, s.logger)
	now, after := s.now(), s.staleRunAfter()
	var failed []*planning.MRPRun
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		failed = nil
		runs, _, err := repos.RunRepo().FindAll(ctx, planning.RunFilter{
			Filter: shared.Filter{Page: 1, PageSize: staleRunSweepLimit, OrderBy: "run_date", OrderDir: "asc"},
			Status: planning.RunStatusRunning,
		})
		if err != nil {
			return err
		}
		for i := range runs {
			run := &runs[i]
			if !run.IsStale(now, after) {
				continue
			}
			if err := run.Fail(fmt.Sprintf("abandoned: still running after %s", after)); err != nil {
				return err
			}
			if err := repos.RunRepo().SaveWithLock(ctx, run); err != nil {
				return err
			}
			failed = append(failed, run)
		}
		return nil
	})
	if err != nil {
		log.Warn("Could not fail stale MRP runs", zap.Error(err))
		return
	}
	for _, run := range failed {
		log.Warn("Stale MRP run marked failed",
			zap.String("run_id", run.ID.String()),
			zap.String("run_number", run.RunNumber),
			zap.Time("run_date", run.RunDate),
		)
		s.publishDomainEvents(ctx, run)
	}
}

func (s *MRPService) archive(ctx context.Context, run *planning.MRPRun, calc *CalculationResult, log *zap.Logger) {
	if s.archiver == nil {
		return
	}
	snapshot := RunSnapshot{
		Run:          ToRunResponse(run),
		Requirements: make([]RequirementResponse, len(calc.Requirements)),
		ArchivedAt:   s.now().UTC(),
	}
	for i, r := range calc.Requirements {
		snapshot.Requirements[i] = ToRequirementResponse(r)
	}
	key, err := s.archiver.Archive(ctx, snapshot)
	if err != nil {
		log.Warn("Failed to archive MRP run", zap.Error(err))
		return
	}
	log.Info("MRP run archived", zap.String("key", key))
}

// GeneratePurchaseRequests turns the open shortages of a completed run into
// purchase requests
func (s *MRPService) GeneratePurchaseRequests(ctx context.Context, runID uuid.UUID, req GeneratePurchaseRequestsRequest) (*GenerationResult, error) {
	return s.generator.Generate(ctx, runID, req.RequestedBy)
}

// DeleteMRPRun removes a run and its requirements. Runs still running and
// runs with requirements already covered by a purchase request are kept. A
// run left running longer than the run lock TTL counts as abandoned and may
// be removed.
func (s *MRPService) DeleteMRPRun(ctx context.Context, runID uuid.UUID) error {
	return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		run, err := repos.RunRepo().FindByID(ctx, runID)
		if err != nil {
			return err
		}
		if run.Status == planning.RunStatusRunning && !run.IsStale(s.now(), s.staleRunAfter()) {
			return shared.NewDomainError(shared.CodeStateConflict,
				fmt.Sprintf("MRP run %s is still running", run.RunNumber))
		}
		linked, err := repos.RequirementRepo().CountWithPR(ctx, runID)
		if err != nil {
			return err
		}
		if linked > 0 {
			return shared.NewDomainError(shared.CodeStateConflict,
				fmt.Sprintf("MRP run %s has %d requirement(s) linked to purchase requests", run.RunNumber, linked))
		}
		if err := repos.RequirementRepo().DeleteByRun(ctx, runID); err != nil {
			return err
		}
		return repos.RunRepo().Delete(ctx, runID)
	})
}

// GetMRPRun returns one run
func (s *MRPService) GetMRPRun(ctx context.Context, runID uuid.UUID) (*RunResponse, error) {
	var resp RunResponse
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		run, err := repos.RunRepo().FindByID(ctx, runID)
		if err != nil {
			return err
		}
		resp = ToRunResponse(run)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListMRPRuns returns a page of runs, newest first
func (s *MRPService) ListMRPRuns(ctx context.Context, filter RunListFilter) (*shared.Paginated[RunResponse], error) {
	domainFilter := filter.ToDomainFilter()
	var (
		runs  []planning.MRPRun
		total int64
	)
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		runs, total, err = repos.RunRepo().FindAll(ctx, domainFilter)
		return err
	})
	if err != nil {
		return nil, err
	}
	items := make([]RunResponse, len(runs))
	for i := range runs {
		items[i] = ToRunResponse(&runs[i])
	}
	page := shared.NewPaginated(items, total, domainFilter.Page, domainFilter.PageSize)
	return &page, nil
}

// ListRequirements returns the rows of a run, optionally limited to some statuses
func (s *MRPService) ListRequirements(ctx context.Context, runID uuid.UUID, statuses ...planning.RequirementStatus) ([]RequirementResponse, error) {
	for _, st := range statuses {
		if !st.IsValid() {
			return nil, shared.NewDomainError(shared.CodeValidation, fmt.Sprintf("unknown requirement status %q", st))
		}
	}
	var rows []planning.MRPRequirement
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		if _, err := repos.RunRepo().FindByID(ctx, runID); err != nil {
			return err
		}
		var err error
		rows, err = repos.RequirementRepo().FindByRun(ctx, runID, statuses...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ToRequirementResponses(rows), nil
}

// GetRunSummary returns status counts and the per-item shortages still
// waiting for a purchase request
func (s *MRPService) GetRunSummary(ctx context.Context, runID uuid.UUID) (*RunSummary, error) {
	var (
		run  *planning.MRPRun
		rows []planning.MRPRequirement
	)
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		run, err = repos.RunRepo().FindByID(ctx, runID)
		if err != nil {
			return err
		}
		rows, err = repos.RequirementRepo().FindByRun(ctx, runID)
		return err
	})
	if err != nil {
		return nil, err
	}

	summary := &RunSummary{Run: ToRunResponse(run), UnresolvedShortages: []ItemShortage{}}
	for i := range rows {
		switch rows[i].Status {
		case planning.RequirementStatusSufficient:
			summary.SufficientCount++
		case planning.RequirementStatusShortage:
			summary.ShortageCount++
		case planning.RequirementStatusPRCreated:
			summary.PRCreatedCount++
		}
	}
	for _, g := range planning.GroupShortages(rows) {
		summary.UnresolvedShortages = append(summary.UnresolvedShortages, ItemShortage{
			ItemID:           g.ItemID,
			TotalShortage:    g.TotalShortage,
			RequiredByDate:   g.RequiredByDate,
			RequirementCount: len(g.RequirementIDs),
		})
	}
	return summary, nil
}
