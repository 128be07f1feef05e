package database

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"resumeboost/internal/errors"
	"resumeboost/internal/types"
)

var _ AnalysisRepo = (*PostgresAnalysisRepo)(nil)

// AnalysisRepo persists analysis rows through their pending -> terminal
// lifecycle and serves the dashboard's aggregate reads.
type AnalysisRepo interface {
	Create(ctx context.Context, analysis *types.Analysis) error

	// MarkCompleted transitions a pending analysis to completed. Returns
	// types.ErrIllegalTransition when the row is already terminal.
	MarkCompleted(ctx context.Context, analysisID uuid.UUID, params types.CompletionParams) error

	// MarkFailed transitions a pending analysis to failed, recording the
	// failure reason. Same transition guard as MarkCompleted.
	MarkFailed(ctx context.Context, analysisID uuid.UUID, reason, model string) error

	GetByID(ctx context.Context, userID, analysisID uuid.UUID) (*types.Analysis, error)
	ListByUser(ctx context.Context, userID uuid.UUID, page, pageSize int) (*types.AnalysisHistory, error)

	CountCompletedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)
	CountByUser(ctx context.Context, userID uuid.UUID) (int, error)
	AverageATSScore(ctx context.Context, userID uuid.UUID) (int, error)
	RecentActivity(ctx context.Context, userID uuid.UUID, limit int) ([]types.ActivityItem, error)
}

type PostgresAnalysisRepo struct {
	logger *slog.Logger
	pgpool DB
}

func NewPostgresAnalysisRepo(pool DB, logger *slog.Logger) *PostgresAnalysisRepo {
	return &PostgresAnalysisRepo{logger: logger, pgpool: pool}
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func (r *PostgresAnalysisRepo) Create(ctx context.Context, analysis *types.Analysis) error {
	err := r.pgpool.QueryRow(ctx, `
		INSERT INTO analyses (id, user_id, resume_id, job_description, normalized_job_description,
			status, resume_tokens_estimate, job_tokens_estimate)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`,
		analysis.ID, analysis.UserID, analysis.ResumeID, analysis.JobDescription,
		analysis.NormalizedJobDescription, analysis.Status,
		analysis.ResumeTokensEstimate, analysis.JobTokensEstimate,
	).Scan(&analysis.CreatedAt, &analysis.UpdatedAt)
	if err != nil {
		return errors.NewPersistenceError(errors.ErrCodeDatabaseFailed, "failed to insert analysis", err)
	}
	return nil
}

func (r *PostgresAnalysisRepo) MarkCompleted(ctx context.Context, analysisID uuid.UUID, params types.CompletionParams) error {
	tag, err := r.pgpool.Exec(ctx, `
		UPDATE analyses
		SET status = $1, ats_score = $2, summary = $3, missing_keywords = $4, recommendations = $5,
			optimized_resume_text = $6, cover_letter = $7, optimized_pdf_bucket = $8,
			optimized_pdf_path = $9, model = $10, prompt_tokens = $11, completion_tokens = $12,
			total_tokens = $13, updated_at = now()
		WHERE id = $14 AND status = $15`,
		types.StatusCompleted, params.ATSScore, params.Summary,
		params.MissingKeywords, params.Recommendations,
		params.OptimizedResumeText, params.CoverLetter,
		params.OptimizedPDFBucket, params.OptimizedPDFPath,
		params.Model, params.PromptTokens, params.CompletionTokens, params.TotalTokens,
		analysisID, types.StatusPending)
	if err != nil {
		return errors.NewPersistenceError(errors.ErrCodeDatabaseFailed, "failed to complete analysis", err)
	}
	if tag.RowsAffected() == 0 {
		return r.transitionConflict(ctx, analysisID, types.StatusCompleted)
	}
	return nil
}

func (r *PostgresAnalysisRepo) MarkFailed(ctx context.Context, analysisID uuid.UUID, reason, model string) error {
	tag, err := r.pgpool.Exec(ctx, `
		UPDATE analyses
		SET status = $1, error_message = $2, model = $3, updated_at = now()
		WHERE id = $4 AND status = $5`,
		types.StatusFailed, reason, model, analysisID, types.StatusPending)
	if err != nil {
		return errors.NewPersistenceError(errors.ErrCodeDatabaseFailed, "failed to mark analysis failed", err)
	}
	if tag.RowsAffected() == 0 {
		return r.transitionConflict(ctx, analysisID, types.StatusFailed)
	}
	return nil
}

// transitionConflict distinguishes a missing row from an illegal double
// transition after a guarded update matched nothing.
func (r *PostgresAnalysisRepo) transitionConflict(ctx context.Context, analysisID uuid.UUID, to types.AnalysisStatus) error {
	var current types.AnalysisStatus
	err := r.pgpool.QueryRow(ctx,
		`SELECT status FROM analyses WHERE id = $1`, analysisID).Scan(&current)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return errors.NewPersistenceError(errors.ErrCodeNotFound, "analysis not found", err)
	}
	if err != nil {
		return errors.NewPersistenceError(errors.ErrCodeDatabaseFailed, "failed to read analysis status", err)
	}
	return &types.ErrIllegalTransition{From: current, To: to}
}

func (r *PostgresAnalysisRepo) GetByID(ctx context.Context, userID, analysisID uuid.UUID) (*types.Analysis, error) {
	var a types.Analysis
	err := r.pgpool.QueryRow(ctx, `
		SELECT id, user_id, resume_id, job_description, normalized_job_description, status,
			ats_score, summary, missing_keywords, recommendations, optimized_resume_text,
			cover_letter, optimized_pdf_bucket, optimized_pdf_path, error_message, model,
			prompt_tokens, completion_tokens, total_tokens,
			resume_tokens_estimate, job_tokens_estimate, created_at, updated_at
		FROM analyses WHERE id = $1 AND user_id = $2`,
		analysisID, userID,
	).Scan(
		&a.ID, &a.UserID, &a.ResumeID, &a.JobDescription, &a.NormalizedJobDescription, &a.Status,
		&a.ATSScore, &a.Summary, &a.MissingKeywords, &a.Recommendations, &a.OptimizedResumeText,
		&a.CoverLetter, &a.OptimizedPDFBucket, &a.OptimizedPDFPath, &a.ErrorMessage, &a.Model,
		&a.PromptTokens, &a.CompletionTokens, &a.TotalTokens,
		&a.ResumeTokensEstimate, &a.JobTokensEstimate, &a.CreatedAt, &a.UpdatedAt,
	)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NewPersistenceError(errors.ErrCodeNotFound, "analysis not found", err)
	}
	if err != nil {
		return nil, errors.NewPersistenceError(errors.ErrCodeDatabaseFailed, "failed to load analysis", err)
	}
	return &a, nil
}

func (r *PostgresAnalysisRepo) ListByUser(ctx context.Context, userID uuid.UUID, page, pageSize int) (*types.AnalysisHistory, error) {
	if page < 1 {
		page = 1
	}
	offset := uint64((page - 1) * pageSize)

	query, args, err := psql.
		Select("a.id", "a.resume_id", "a.job_description", "a.status", "a.ats_score",
			"r.original_filename", "r.mime_type", "a.created_at", "a.updated_at").
		From("analyses a").
		Join("resumes r ON r.id = a.resume_id").
		Where(sq.Eq{"a.user_id": userID}).
		OrderBy("a.created_at DESC").
		Limit(uint64(pageSize)).
		Offset(offset).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build history query: %w", err)
	}

	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.NewPersistenceError(errors.ErrCodeDatabaseFailed, "failed to list analyses", err)
	}
	defer rows.Close()

	items := make([]types.AnalysisListItem, 0, pageSize)
	for rows.Next() {
		var item types.AnalysisListItem
		if err := rows.Scan(
			&item.ID, &item.ResumeID, &item.JobDescription, &item.Status, &item.ATSScore,
			&item.OriginalFilename, &item.MimeType, &item.CreatedAt, &item.UpdatedAt,
		); err != nil {
			return nil, errors.NewPersistenceError(errors.ErrCodeDatabaseFailed, "failed to scan analysis row", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewPersistenceError(errors.ErrCodeDatabaseFailed, "failed reading analysis rows", err)
	}

	total, err := r.CountByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	totalPages := (total + pageSize - 1) / pageSize
	return &types.AnalysisHistory{
		Items: items,
		Pagination: types.Pagination{
			Page:       page,
			Limit:      pageSize,
			Total:      total,
			TotalPages: totalPages,
		},
	}, nil
}

func (r *PostgresAnalysisRepo) CountCompletedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	var count int
	err := r.pgpool.QueryRow(ctx, `
		SELECT COUNT(*) FROM analyses
		WHERE user_id = $1 AND status = $2 AND created_at >= $3`,
		userID, types.StatusCompleted, since).Scan(&count)
	if err != nil {
		return 0, errors.NewPersistenceError(errors.ErrCodeDatabaseFailed, "failed to count completed analyses", err)
	}
	return count, nil
}

func (r *PostgresAnalysisRepo) CountByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := r.pgpool.QueryRow(ctx,
		`SELECT COUNT(*) FROM analyses WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		return 0, errors.NewPersistenceError(errors.ErrCodeDatabaseFailed, "failed to count analyses", err)
	}
	return count, nil
}

func (r *PostgresAnalysisRepo) AverageATSScore(ctx context.Context, userID uuid.UUID) (int, error) {
	var avg *float64
	err := r.pgpool.QueryRow(ctx, `
		SELECT AVG(ats_score) FROM analyses
		WHERE user_id = $1 AND status = $2 AND ats_score IS NOT NULL`,
		userID, types.StatusCompleted).Scan(&avg)
	if err != nil {
		return 0, errors.NewPersistenceError(errors.ErrCodeDatabaseFailed, "failed to average ats score", err)
	}
	if avg == nil {
		return 0, nil
	}
	return int(*avg + 0.5), nil
}

func (r *PostgresAnalysisRepo) RecentActivity(ctx context.Context, userID uuid.UUID, limit int) ([]types.ActivityItem, error) {
	rows, err := r.pgpool.Query(ctx, `
		SELECT a.id, a.status, r.original_filename, a.created_at
		FROM analyses a
		JOIN resumes r ON r.id = a.resume_id
		WHERE a.user_id = $1
		ORDER BY a.created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, errors.NewPersistenceError(errors.ErrCodeDatabaseFailed, "failed to load recent activity", err)
	}
	defer rows.Close()

	items := make([]types.ActivityItem, 0, limit)
	for rows.Next() {
		var (
			id       uuid.UUID
			status   types.AnalysisStatus
			filename string
			created  time.Time
		)
		if err := rows.Scan(&id, &status, &filename, &created); err != nil {
			return nil, errors.NewPersistenceError(errors.ErrCodeDatabaseFailed, "failed to scan activity row", err)
		}
		items = append(items, types.ActivityItem{
			ID:          id,
			Type:        "analysis",
			Title:       fmt.Sprintf("Resume analysis (%s)", status),
			Description: filename,
			Timestamp:   created,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewPersistenceError(errors.ErrCodeDatabaseFailed, "failed reading activity rows", err)
	}
	return items, nil
}
