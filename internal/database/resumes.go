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

var _ ResumeRepo = (*PostgresResumeRepo)(nil)

// ResumeRepo persists uploaded resume documents. Rows are immutable; a
// re-upload creates a new row.
type ResumeRepo interface {
	Create(ctx context.Context, resume *types.Resume) error
	GetByID(ctx context.Context, userID, resumeID uuid.UUID) (*types.Resume, error)
	CountByUser(ctx context.Context, userID uuid.UUID) (int, error)
}

type PostgresResumeRepo struct {
	logger *slog.Logger
	pgpool DB
}

func NewPostgresResumeRepo(pool DB, logger *slog.Logger) *PostgresResumeRepo {
	return &PostgresResumeRepo{logger: logger, pgpool: pool}
}

func (r *PostgresResumeRepo) Create(ctx context.Context, resume *types.Resume) error {
	err := r.pgpool.QueryRow(ctx, `
		INSERT INTO resumes (id, user_id, original_filename, mime_type, storage_bucket, storage_path,
			extracted_text, normalized_text)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`,
		resume.ID, resume.UserID, resume.OriginalFilename, resume.MimeType,
		resume.StorageBucket, resume.StoragePath, resume.ExtractedText, resume.NormalizedText,
	).Scan(&resume.CreatedAt)
	if err != nil {
		return errors.NewPersistenceError(errors.ErrCodeDatabaseFailed, "failed to insert resume", err)
	}
	return nil
}

func (r *PostgresResumeRepo) GetByID(ctx context.Context, userID, resumeID uuid.UUID) (*types.Resume, error) {
	var resume types.Resume
	err := r.pgpool.QueryRow(ctx, `
		SELECT id, user_id, original_filename, mime_type, storage_bucket, storage_path,
			extracted_text, normalized_text, created_at
		FROM resumes WHERE id = $1 AND user_id = $2`,
		resumeID, userID,
	).Scan(
		&resume.ID,
		&resume.UserID,
		&resume.OriginalFilename,
		&resume.MimeType,
		&resume.StorageBucket,
		&resume.StoragePath,
		&resume.ExtractedText,
		&resume.NormalizedText,
		&resume.CreatedAt,
	)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NewPersistenceError(errors.ErrCodeNotFound, "resume not found", err)
	}
	if err != nil {
		return nil, errors.NewPersistenceError(errors.ErrCodeDatabaseFailed, "failed to load resume", err)
	}
	return &resume, nil
}

func (r *PostgresResumeRepo) CountByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := r.pgpool.QueryRow(ctx,
		`SELECT COUNT(*) FROM resumes WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		return 0, errors.NewPersistenceError(errors.ErrCodeDatabaseFailed, "failed to count resumes", err)
	}
	return count, nil
}
