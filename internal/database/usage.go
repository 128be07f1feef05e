package database

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"resumeboost/internal/errors"
	"resumeboost/internal/types"
)

var _ UsageRepo = (*PostgresUsageRepo)(nil)

// UsageRepo is the append-only audit log of user actions. It is never
// consulted for quota decisions.
type UsageRepo interface {
	Record(ctx context.Context, event *types.UsageEvent) error
	CountByAction(ctx context.Context, userID uuid.UUID, action string) (int, error)
}

type PostgresUsageRepo struct {
	logger *slog.Logger
	pgpool DB
}

func NewPostgresUsageRepo(pool DB, logger *slog.Logger) *PostgresUsageRepo {
	return &PostgresUsageRepo{logger: logger, pgpool: pool}
}

func (r *PostgresUsageRepo) Record(ctx context.Context, event *types.UsageEvent) error {
	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}
	err := r.pgpool.QueryRow(ctx, `
		INSERT INTO usage_events (id, user_id, action_type, metadata)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		event.ID, event.UserID, event.ActionType, event.Metadata,
	).Scan(&event.CreatedAt)
	if err != nil {
		return errors.NewPersistenceError(errors.ErrCodeDatabaseFailed, "failed to record usage event", err)
	}
	return nil
}

func (r *PostgresUsageRepo) CountByAction(ctx context.Context, userID uuid.UUID, action string) (int, error) {
	var count int
	err := r.pgpool.QueryRow(ctx, `
		SELECT COUNT(*) FROM usage_events WHERE user_id = $1 AND action_type = $2`,
		userID, action).Scan(&count)
	if err != nil {
		return 0, errors.NewPersistenceError(errors.ErrCodeDatabaseFailed, "failed to count usage events", err)
	}
	return count, nil
}
