package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	jobmetrics "github.com/hazo-app/hazo-auth/internal/jobs"
)

// ScopeIntegrityJob scans for referential drift in the scope tree. The
// ancestor walk tolerates a dangling parent pointer at read time; this
// job is where such rows actually get reported.
type ScopeIntegrityJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewScopeIntegrityJob initialises the integrity scan handler.
func NewScopeIntegrityJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *ScopeIntegrityJob {
	return &ScopeIntegrityJob{Pool: pool, Logger: logger, Metrics: metrics}
}

// Handle executes the integrity scan.
func (j *ScopeIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("scope integrity: handler not configured")
	}
	var payload ScopeIntegrityPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Limit <= 0 {
		payload.Limit = 100
	}

	tracker := j.Metrics.Track(TaskTypeScopeIntegrity)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	logger.Info("starting scope integrity scan", slog.Int("limit", payload.Limit))

	var orphanScopes, orphanAssignments []string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		orphanScopes, err = j.danglingParents(gctx, payload.Limit)
		return err
	})
	g.Go(func() error {
		var err error
		orphanAssignments, err = j.danglingAssignments(gctx, payload.Limit)
		return err
	})
	if err := g.Wait(); err != nil {
		resultErr = err
		logger.Error("scope integrity scan failed", slog.Any("error", err))
		return resultErr
	}

	j.Metrics.SetOrphanScopes(len(orphanScopes))
	for _, id := range orphanScopes {
		logger.Warn("scope has dangling parent", slog.String("scope_id", id))
	}
	for _, key := range orphanAssignments {
		logger.Warn("assignment references missing scope", slog.String("assignment", key))
	}
	logger.Info("scope integrity scan finished",
		slog.Int("orphan_scopes", len(orphanScopes)),
		slog.Int("orphan_assignments", len(orphanAssignments)))
	return nil
}

func (j *ScopeIntegrityJob) danglingParents(ctx context.Context, limit int) ([]string, error) {
	rows, err := j.Pool.Query(ctx, `
		SELECT s.id
		FROM scopes s
		LEFT JOIN scopes p ON p.id = s.parent_id
		WHERE s.parent_id IS NOT NULL AND p.id IS NULL
		ORDER BY s.id
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectStrings(rows.Next, rows.Scan, rows.Err)
}

func (j *ScopeIntegrityJob) danglingAssignments(ctx context.Context, limit int) ([]string, error) {
	rows, err := j.Pool.Query(ctx, `
		SELECT a.user_id || ':' || a.scope_id
		FROM user_scope_assignments a
		LEFT JOIN scopes s ON s.id = a.scope_id
		WHERE s.id IS NULL
		ORDER BY a.user_id, a.scope_id
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectStrings(rows.Next, rows.Scan, rows.Err)
}

func collectStrings(next func() bool, scan func(...any) error, rowErr func() error) ([]string, error) {
	var out []string
	for next() {
		var v string
		if err := scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rowErr()
}

func (j *ScopeIntegrityJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
