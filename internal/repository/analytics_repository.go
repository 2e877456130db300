package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/susumicapital/investor-portal/internal/domain"
)

type AnalyticsRepository interface {
	InsertSectionView(ctx context.Context, sessionID, slug string, dwellMS *int64, viewedAt time.Time) error
	InsertCTAClick(ctx context.Context, sessionID, action, label string, clickedAt time.Time) error
	// DistinctSections returns the unique section slugs viewed in a session,
	// the input for its completion rate.
	DistinctSections(ctx context.Context, sessionID string) ([]string, error)
	CountBySession(ctx context.Context, sessionID string) (views, clicks int64, err error)
	Totals(ctx context.Context) (*domain.EngagementTotals, error)
}

type analyticsRepository struct {
	pool *pgxpool.Pool
}

func NewAnalyticsRepository(pool *pgxpool.Pool) AnalyticsRepository {
	return &analyticsRepository{pool: pool}
}

func (r *analyticsRepository) InsertSectionView(ctx context.Context, sessionID, slug string, dwellMS *int64, viewedAt time.Time) error {
	const q = `
		INSERT INTO section_views (session_id, section_slug, dwell_time_ms, viewed_at)
		VALUES ($1, $2, $3, $4)`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, sessionID, slug, dwellMS, viewedAt)
	return err
}

func (r *analyticsRepository) InsertCTAClick(ctx context.Context, sessionID, action, label string, clickedAt time.Time) error {
	const q = `
		INSERT INTO cta_clicks (session_id, action, cta_label, clicked_at)
		VALUES ($1, $2, $3, $4)`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, sessionID, action, label, clickedAt)
	return err
}

func (r *analyticsRepository) DistinctSections(ctx context.Context, sessionID string) ([]string, error) {
	const q = `
		SELECT DISTINCT section_slug
		FROM section_views
		WHERE session_id = $1
		ORDER BY section_slug`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slugs []string
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, err
		}
		slugs = append(slugs, slug)
	}
	return slugs, rows.Err()
}

func (r *analyticsRepository) CountBySession(ctx context.Context, sessionID string) (int64, int64, error) {
	const q = `
		SELECT
			(SELECT count(*) FROM section_views WHERE session_id = $1),
			(SELECT count(*) FROM cta_clicks WHERE session_id = $1)`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var views, clicks int64
	if err := r.pool.QueryRow(ctx, q, sessionID).Scan(&views, &clicks); err != nil {
		return 0, 0, err
	}
	return views, clicks, nil
}

func (r *analyticsRepository) Totals(ctx context.Context) (*domain.EngagementTotals, error) {
	const q = `
		SELECT
			(SELECT count(*) FROM viewer_sessions),
			(SELECT count(*) FROM section_views),
			(SELECT count(*) FROM cta_clicks)`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var t domain.EngagementTotals
	if err := r.pool.QueryRow(ctx, q).Scan(&t.Sessions, &t.SectionViews, &t.CTAClicks); err != nil {
		return nil, err
	}
	return &t, nil
}
