package repository

import (
	"context"
	"net"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/susumicapital/investor-portal/internal/domain"
)

type LoginRepository interface {
	// Create stores a fresh login artifact and supersedes any live one for
	// the same email.
	Create(ctx context.Context, email, codeHash, tokenHash, redirectTo string, expiresAt time.Time, ip net.IP) error
	// ConsumeCode verifies a 6-digit code against the latest live artifact
	// and marks it used on success. Wrong codes burn an attempt.
	ConsumeCode(ctx context.Context, email, code string) (bool, error)
	// ConsumeTokenHash verifies a magic-link token hash and marks the
	// artifact used on success.
	ConsumeTokenHash(ctx context.Context, tokenHash, email string) (bool, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

type loginRepository struct {
	pool *pgxpool.Pool
}

func NewLoginRepository(pool *pgxpool.Pool) LoginRepository {
	return &loginRepository{pool: pool}
}

func (r *loginRepository) Create(ctx context.Context, email, codeHash, tokenHash, redirectTo string, expiresAt time.Time, ip net.IP) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const supersede = `
		UPDATE login_codes
		SET superseded_at = now()
		WHERE lower(email) = lower($1)
		  AND used_at IS NULL
		  AND superseded_at IS NULL`

	if _, err := tx.Exec(ctx, supersede, email); err != nil {
		return err
	}

	const insert = `
		INSERT INTO login_codes (email, code_hash, token_hash, redirect_to, expires_at, ip_created)
		VALUES ($1, $2, $3, $4, $5, $6)`

	if _, err := tx.Exec(ctx, insert, email, codeHash, tokenHash, redirectTo, expiresAt, ip); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *loginRepository) ConsumeCode(ctx context.Context, email, code string) (bool, error) {
	const q = `
		SELECT id, code_hash, expires_at, used_at, superseded_at, attempts
		FROM login_codes
		WHERE lower(email) = lower($1)
		ORDER BY id DESC
		LIMIT 1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var (
		id         int64
		hash       string
		expires    time.Time
		used       *time.Time
		superseded *time.Time
		attempts   int
	)

	err := r.pool.QueryRow(ctx, q, email).Scan(&id, &hash, &expires, &used, &superseded, &attempts)
	if err != nil {
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return false, err
	}

	if used != nil || superseded != nil || time.Now().After(expires) || attempts >= domain.MaxVerificationAttempts {
		return false, nil
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)); err != nil {
		_, _ = r.pool.Exec(ctx, `UPDATE login_codes SET attempts = attempts + 1 WHERE id = $1`, id)
		return false, nil
	}

	// Consume atomically so a replay of the same code loses the race.
	const consume = `UPDATE login_codes SET used_at = now() WHERE id = $1 AND used_at IS NULL`
	tag, err := r.pool.Exec(ctx, consume, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *loginRepository) ConsumeTokenHash(ctx context.Context, tokenHash, email string) (bool, error) {
	const q = `
		UPDATE login_codes
		SET used_at = now()
		WHERE token_hash = $1
		  AND lower(email) = lower($2)
		  AND used_at IS NULL
		  AND superseded_at IS NULL
		  AND expires_at > now()`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tag, err := r.pool.Exec(ctx, q, tokenHash, email)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *loginRepository) DeleteExpired(ctx context.Context) (int64, error) {
	const q = `
		DELETE FROM login_codes
		WHERE (used_at IS NOT NULL AND used_at < now() - interval '30 days')
		   OR (used_at IS NULL AND expires_at < now() - interval '7 days')`

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result, err := r.pool.Exec(ctx, q)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected(), nil
}
