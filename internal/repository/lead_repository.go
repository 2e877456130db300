package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/susumicapital/investor-portal/internal/domain"
)

type LeadRepository interface {
	CreateMeeting(ctx context.Context, req *domain.MeetingRequestInput, userID *string) (*domain.MeetingRequest, error)
	CreateDataRoom(ctx context.Context, req *domain.DataRoomRequestInput, userID *string) (*domain.DataRoomRequest, error)
	ListMeetings(ctx context.Context, status *string, limit, offset int) ([]domain.MeetingRequest, error)
	ListDataRoom(ctx context.Context, status *string, limit, offset int) ([]domain.DataRoomRequest, error)
	UpdateMeetingStatus(ctx context.Context, id, status string) (*domain.MeetingRequest, error)
	UpdateDataRoomStatus(ctx context.Context, id, status string) (*domain.DataRoomRequest, error)
}

type leadRepository struct {
	pool *pgxpool.Pool
}

func NewLeadRepository(pool *pgxpool.Pool) LeadRepository {
	return &leadRepository{pool: pool}
}

const meetingCols = `id, user_id, company, email,
COALESCE(aum, ''), COALESCE(mandate_type, ''), COALESCE(cheque_size, ''),
COALESCE(timing, ''), COALESCE(message, ''), status, created_at`

const dataRoomCols = `id, user_id, company, role, email,
COALESCE(message, ''), nda_accepted, status, created_at`

func (r *leadRepository) CreateMeeting(ctx context.Context, req *domain.MeetingRequestInput, userID *string) (*domain.MeetingRequest, error) {
	const q = `
		INSERT INTO meeting_requests (user_id, company, email, aum, mandate_type, cheque_size, timing, message)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''))
		RETURNING ` + meetingCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var m domain.MeetingRequest
	err := r.pool.QueryRow(ctx, q, userID,
		req.Company, req.Email, req.AUM, req.MandateType,
		req.ChequeSize, req.Timing, req.Message,
	).Scan(
		&m.ID, &m.UserID, &m.Company, &m.Email,
		&m.AUM, &m.MandateType, &m.ChequeSize,
		&m.Timing, &m.Message, &m.Status, &m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *leadRepository) CreateDataRoom(ctx context.Context, req *domain.DataRoomRequestInput, userID *string) (*domain.DataRoomRequest, error) {
	const q = `
		INSERT INTO data_room_requests (user_id, company, role, email, message, nda_accepted)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)
		RETURNING ` + dataRoomCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var d domain.DataRoomRequest
	err := r.pool.QueryRow(ctx, q, userID,
		req.Company, req.Role, req.Email, req.Message, req.NDAAccepted,
	).Scan(
		&d.ID, &d.UserID, &d.Company, &d.Role, &d.Email,
		&d.Message, &d.NDAAccepted, &d.Status, &d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *leadRepository) ListMeetings(ctx context.Context, status *string, limit, offset int) ([]domain.MeetingRequest, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	q := `SELECT ` + meetingCols + ` FROM meeting_requests`
	args := []any{}
	if status != nil {
		q += ` WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
		args = append(args, *status, limit, offset)
	} else {
		q += ` ORDER BY created_at DESC LIMIT $1 OFFSET $2`
		args = append(args, limit, offset)
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leads []domain.MeetingRequest
	for rows.Next() {
		var m domain.MeetingRequest
		if err := rows.Scan(
			&m.ID, &m.UserID, &m.Company, &m.Email,
			&m.AUM, &m.MandateType, &m.ChequeSize,
			&m.Timing, &m.Message, &m.Status, &m.CreatedAt,
		); err != nil {
			return nil, err
		}
		leads = append(leads, m)
	}
	return leads, rows.Err()
}

func (r *leadRepository) ListDataRoom(ctx context.Context, status *string, limit, offset int) ([]domain.DataRoomRequest, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	q := `SELECT ` + dataRoomCols + ` FROM data_room_requests`
	args := []any{}
	if status != nil {
		q += ` WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
		args = append(args, *status, limit, offset)
	} else {
		q += ` ORDER BY created_at DESC LIMIT $1 OFFSET $2`
		args = append(args, limit, offset)
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leads []domain.DataRoomRequest
	for rows.Next() {
		var d domain.DataRoomRequest
		if err := rows.Scan(
			&d.ID, &d.UserID, &d.Company, &d.Role, &d.Email,
			&d.Message, &d.NDAAccepted, &d.Status, &d.CreatedAt,
		); err != nil {
			return nil, err
		}
		leads = append(leads, d)
	}
	return leads, rows.Err()
}

func (r *leadRepository) UpdateMeetingStatus(ctx context.Context, id, status string) (*domain.MeetingRequest, error) {
	const q = `
		UPDATE meeting_requests
		SET status = $2
		WHERE id = $1
		RETURNING ` + meetingCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var m domain.MeetingRequest
	err := r.pool.QueryRow(ctx, q, id, status).Scan(
		&m.ID, &m.UserID, &m.Company, &m.Email,
		&m.AUM, &m.MandateType, &m.ChequeSize,
		&m.Timing, &m.Message, &m.Status, &m.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *leadRepository) UpdateDataRoomStatus(ctx context.Context, id, status string) (*domain.DataRoomRequest, error) {
	const q = `
		UPDATE data_room_requests
		SET status = $2
		WHERE id = $1
		RETURNING ` + dataRoomCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var d domain.DataRoomRequest
	err := r.pool.QueryRow(ctx, q, id, status).Scan(
		&d.ID, &d.UserID, &d.Company, &d.Role, &d.Email,
		&d.Message, &d.NDAAccepted, &d.Status, &d.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}
