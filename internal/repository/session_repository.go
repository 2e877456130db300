package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/susumicapital/investor-portal/internal/domain"
)

type SessionRepository interface {
	Create(ctx context.Context, userID, email string) (*domain.ViewerSession, error)
	GetByID(ctx context.Context, id string) (*domain.ViewerSession, error)
	List(ctx context.Context, limit, offset int) ([]domain.ViewerSession, error)
	// RecordActivity bumps last_active_at, adds dwell time and refreshes the
	// completion rate after an engagement event lands.
	RecordActivity(ctx context.Context, id string, dwellMS int64, completionRate float32) error
	Touch(ctx context.Context, id string) error
	CloseByUser(ctx context.Context, userID string) (int64, error)
	CloseIdle(ctx context.Context, idleFor time.Duration) (int64, error)
}

type sessionRepository struct {
	pool *pgxpool.Pool
}

func NewSessionRepository(pool *pgxpool.Pool) SessionRepository {
	return &sessionRepository{pool: pool}
}

const sessionCols = `id, user_id, email, started_at, last_active_at, closed_at, total_dwell_time_ms, completion_rate`

func (r *sessionRepository) Create(ctx context.Context, userID, email string) (*domain.ViewerSession, error) {
	const q = `
		INSERT INTO viewer_sessions (user_id, email)
		VALUES ($1, $2)
		RETURNING ` + sessionCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var s domain.ViewerSession
	err := r.pool.QueryRow(ctx, q, userID, email).Scan(
		&s.ID, &s.UserID, &s.Email, &s.StartedAt, &s.LastActiveAt,
		&s.ClosedAt, &s.TotalDwellTimeMS, &s.CompletionRate,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *sessionRepository) GetByID(ctx context.Context, id string) (*domain.ViewerSession, error) {
	const q = `SELECT ` + sessionCols + ` FROM viewer_sessions WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var s domain.ViewerSession
	err := r.pool.QueryRow(ctx, q, id).Scan(
		&s.ID, &s.UserID, &s.Email, &s.StartedAt, &s.LastActiveAt,
		&s.ClosedAt, &s.TotalDwellTimeMS, &s.CompletionRate,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *sessionRepository) List(ctx context.Context, limit, offset int) ([]domain.ViewerSession, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	const q = `SELECT ` + sessionCols + ` FROM viewer_sessions ORDER BY started_at DESC LIMIT $1 OFFSET $2`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []domain.ViewerSession
	for rows.Next() {
		var s domain.ViewerSession
		if err := rows.Scan(
			&s.ID, &s.UserID, &s.Email, &s.StartedAt, &s.LastActiveAt,
			&s.ClosedAt, &s.TotalDwellTimeMS, &s.CompletionRate,
		); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (r *sessionRepository) RecordActivity(ctx context.Context, id string, dwellMS int64, completionRate float32) error {
	const q = `
		UPDATE viewer_sessions
		SET last_active_at = now(),
		    total_dwell_time_ms = total_dwell_time_ms + $2,
		    completion_rate = $3
		WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, id, dwellMS, completionRate)
	return err
}

func (r *sessionRepository) Touch(ctx context.Context, id string) error {
	const q = `UPDATE viewer_sessions SET last_active_at = now() WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, id)
	return err
}

func (r *sessionRepository) CloseByUser(ctx context.Context, userID string) (int64, error) {
	const q = `
		UPDATE viewer_sessions
		SET closed_at = now()
		WHERE user_id = $1 AND closed_at IS NULL`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tag, err := r.pool.Exec(ctx, q, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *sessionRepository) CloseIdle(ctx context.Context, idleFor time.Duration) (int64, error) {
	const q = `
		UPDATE viewer_sessions
		SET closed_at = last_active_at
		WHERE closed_at IS NULL AND last_active_at < now() - make_interval(secs => $1)`

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tag, err := r.pool.Exec(ctx, q, idleFor.Seconds())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
