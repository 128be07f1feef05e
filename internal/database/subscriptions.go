package database

import (
	"context"
	stderrors "errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"resumeboost/internal/errors"
	"resumeboost/internal/types"
)

var _ SubscriptionRepo = (*PostgresSubscriptionRepo)(nil)

// SubscriptionRepo persists the per-user billing state mirrored from Stripe.
type SubscriptionRepo interface {
	// Get returns the subscription row for a user, or nil when the user
	// has never touched billing. Absence means the free plan.
	Get(ctx context.Context, userID uuid.UUID) (*types.Subscription, error)

	// EnsureCustomer records the Stripe customer ID for a user, creating
	// a free-plan row when none exists.
	EnsureCustomer(ctx context.Context, userID uuid.UUID, customerID string) error

	// GetByCustomerID resolves a Stripe customer back to a subscription.
	GetByCustomerID(ctx context.Context, customerID string) (*types.Subscription, error)

	// ApplySubscription upserts plan, status and period bounds from a
	// subscription created/updated webhook.
	ApplySubscription(ctx context.Context, sub *types.Subscription) error

	// Downgrade resets a customer to the free plan and clears the Stripe
	// subscription reference. Used on subscription deletion.
	Downgrade(ctx context.Context, customerID string) error

	// MarkActive flips the status to active after a successful payment.
	MarkActive(ctx context.Context, customerID string) error
}

type PostgresSubscriptionRepo struct {
	logger *slog.Logger
	pgpool DB
}

func NewPostgresSubscriptionRepo(pool DB, logger *slog.Logger) *PostgresSubscriptionRepo {
	return &PostgresSubscriptionRepo{logger: logger, pgpool: pool}
}

const subscriptionColumns = `user_id, plan, status, stripe_customer_id, stripe_subscription_id,
	current_period_start, current_period_end, cancel_at_period_end, created_at, updated_at`

func scanSubscription(row pgx.Row) (*types.Subscription, error) {
	var sub types.Subscription
	err := row.Scan(
		&sub.UserID,
		&sub.Plan,
		&sub.Status,
		&sub.StripeCustomerID,
		&sub.StripeSubscriptionID,
		&sub.CurrentPeriodStart,
		&sub.CurrentPeriodEnd,
		&sub.CancelAtPeriodEnd,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *PostgresSubscriptionRepo) Get(ctx context.Context, userID uuid.UUID) (*types.Subscription, error) {
	row := r.pgpool.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE user_id = $1`, userID)
	sub, err := scanSubscription(row)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewPersistenceError(errors.ErrCodeDatabaseFailed, "failed to load subscription", err)
	}
	return sub, nil
}

func (r *PostgresSubscriptionRepo) EnsureCustomer(ctx context.Context, userID uuid.UUID, customerID string) error {
	_, err := r.pgpool.Exec(ctx, `
		INSERT INTO subscriptions (user_id, stripe_customer_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id)
		DO UPDATE SET stripe_customer_id = EXCLUDED.stripe_customer_id, updated_at = now()`,
		userID, customerID)
	if err != nil {
		return errors.NewPersistenceError(errors.ErrCodeDatabaseFailed, "failed to record stripe customer", err)
	}
	return nil
}

func (r *PostgresSubscriptionRepo) GetByCustomerID(ctx context.Context, customerID string) (*types.Subscription, error) {
	row := r.pgpool.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE stripe_customer_id = $1`, customerID)
	sub, err := scanSubscription(row)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NewPersistenceError(errors.ErrCodeNotFound, "unknown stripe customer", err)
	}
	if err != nil {
		return nil, errors.NewPersistenceError(errors.ErrCodeDatabaseFailed, "failed to load subscription by customer", err)
	}
	return sub, nil
}

func (r *PostgresSubscriptionRepo) ApplySubscription(ctx context.Context, sub *types.Subscription) error {
	_, err := r.pgpool.Exec(ctx, `
		INSERT INTO subscriptions (user_id, plan, status, stripe_customer_id, stripe_subscription_id,
			current_period_start, current_period_end, cancel_at_period_end)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id)
		DO UPDATE SET
			plan = EXCLUDED.plan,
			status = EXCLUDED.status,
			stripe_customer_id = EXCLUDED.stripe_customer_id,
			stripe_subscription_id = EXCLUDED.stripe_subscription_id,
			current_period_start = EXCLUDED.current_period_start,
			current_period_end = EXCLUDED.current_period_end,
			cancel_at_period_end = EXCLUDED.cancel_at_period_end,
			updated_at = now()`,
		sub.UserID, sub.Plan, sub.Status, sub.StripeCustomerID, sub.StripeSubscriptionID,
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.CancelAtPeriodEnd)
	if err != nil {
		return errors.NewPersistenceError(errors.ErrCodeDatabaseFailed, "failed to apply subscription", err)
	}
	return nil
}

func (r *PostgresSubscriptionRepo) Downgrade(ctx context.Context, customerID string) error {
	tag, err := r.pgpool.Exec(ctx, `
		UPDATE subscriptions
		SET plan = $1, status = 'canceled', stripe_subscription_id = '',
			current_period_start = NULL, current_period_end = NULL,
			cancel_at_period_end = FALSE, updated_at = now()
		WHERE stripe_customer_id = $2`,
		types.PlanFree, customerID)
	if err != nil {
		return errors.NewPersistenceError(errors.ErrCodeDatabaseFailed, "failed to downgrade subscription", err)
	}
	if tag.RowsAffected() == 0 {
		r.logger.WarnContext(ctx, "downgrade for unknown stripe customer", slog.String("customer_id", customerID))
	}
	return nil
}

func (r *PostgresSubscriptionRepo) MarkActive(ctx context.Context, customerID string) error {
	_, err := r.pgpool.Exec(ctx, `
		UPDATE subscriptions SET status = 'active', updated_at = now()
		WHERE stripe_customer_id = $1`, customerID)
	if err != nil {
		return errors.NewPersistenceError(errors.ErrCodeDatabaseFailed, "failed to mark subscription active", err)
	}
	return nil
}
