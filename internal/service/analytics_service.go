package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/susumicapital/investor-portal/internal/domain"
	"github.com/susumicapital/investor-portal/internal/repository"
	"github.com/susumicapital/investor-portal/pkg/events"
	"github.com/susumicapital/investor-portal/pkg/logger"
)

var (
	ErrSessionNotFound  = errors.New("viewer session not found")
	ErrSessionClosed    = errors.New("viewer session is closed")
	ErrSessionForbidden = errors.New("viewer session belongs to another user")
)

type AnalyticsService interface {
	// StartSession opens a viewer session for one page visit.
	StartSession(ctx context.Context, userID, email string) (*domain.ViewerSession, error)
	// RecordSectionView validates the event and hands it to the pipeline.
	// Persistence happens asynchronously in the recorder.
	RecordSectionView(ctx context.Context, sessionID, userID string, req *domain.SectionViewRequest) error
	// RecordCTAClick does the same for CTA clicks and returns the client
	// route for the action.
	RecordCTAClick(ctx context.Context, sessionID, userID string, req *domain.CTAClickRequest) (string, error)
	ListSessions(ctx context.Context, limit, offset int) ([]domain.ViewerSession, error)
	SessionEngagement(ctx context.Context, sessionID string) (*domain.SessionEngagement, error)
	Totals(ctx context.Context) (*domain.EngagementTotals, error)
	// CloseIdleSessions closes sessions inactive past the configured window.
	CloseIdleSessions(ctx context.Context, idleFor time.Duration) (int64, error)
}

type analyticsService struct {
	sessionRepo   repository.SessionRepository
	analyticsRepo repository.AnalyticsRepository
	publisher     events.Publisher
}

func NewAnalyticsService(
	sessionRepo repository.SessionRepository,
	analyticsRepo repository.AnalyticsRepository,
	publisher events.Publisher,
) AnalyticsService {
	return &analyticsService{
		sessionRepo:   sessionRepo,
		analyticsRepo: analyticsRepo,
		publisher:     publisher,
	}
}

func (s *analyticsService) StartSession(ctx context.Context, userID, email string) (*domain.ViewerSession, error) {
	session, err := s.sessionRepo.Create(ctx, userID, email)
	if err != nil {
		return nil, fmt.Errorf("failed to create viewer session: %w", err)
	}

	logger.InfoContext(ctx, "Viewer session started", "session_id", session.ID, "user_id", userID)
	return session, nil
}

// liveSession loads a session and rejects missing, closed or foreign ones.
// Events are only ever attached to a live session owned by the caller.
func (s *analyticsService) liveSession(ctx context.Context, sessionID, userID string) (*domain.ViewerSession, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load viewer session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if session.UserID != userID {
		return nil, ErrSessionForbidden
	}
	if session.IsClosed() {
		return nil, ErrSessionClosed
	}
	return session, nil
}

func (s *analyticsService) RecordSectionView(ctx context.Context, sessionID, userID string, req *domain.SectionViewRequest) error {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if _, err := s.liveSession(ctx, sessionID, userID); err != nil {
		return err
	}

	event := events.SectionViewEvent{
		SessionID:   sessionID,
		SectionSlug: req.SectionSlug,
		DwellTimeMS: req.DwellTimeMS,
		ViewedAt:    time.Now().UTC(),
	}

	if err := s.publisher.Publish(ctx, events.SectionViewed, event); err != nil {
		// The viewer experience never blocks on analytics.
		logger.ErrorContext(ctx, "Failed to publish section view", "error", err, "session_id", sessionID)
	}
	return nil
}

func (s *analyticsService) RecordCTAClick(ctx context.Context, sessionID, userID string, req *domain.CTAClickRequest) (string, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}

	if _, err := s.liveSession(ctx, sessionID, userID); err != nil {
		return "", err
	}

	event := events.CTAClickEvent{
		SessionID: sessionID,
		Action:    req.Action,
		Label:     req.Label,
		ClickedAt: time.Now().UTC(),
	}

	if err := s.publisher.Publish(ctx, events.CTAClicked, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish CTA click", "error", err, "session_id", sessionID)
	}

	return domain.ActionRoute(req.Action), nil
}

func (s *analyticsService) ListSessions(ctx context.Context, limit, offset int) ([]domain.ViewerSession, error) {
	return s.sessionRepo.List(ctx, limit, offset)
}

func (s *analyticsService) SessionEngagement(ctx context.Context, sessionID string) (*domain.SessionEngagement, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load viewer session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	sections, err := s.analyticsRepo.DistinctSections(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load section views: %w", err)
	}

	views, clicks, err := s.analyticsRepo.CountBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}

	return &domain.SessionEngagement{
		Session:        session,
		SectionsViewed: sections,
		SectionViews:   views,
		CTAClicks:      clicks,
		CompletionRate: domain.CompletionRate(len(sections)),
	}, nil
}

func (s *analyticsService) Totals(ctx context.Context) (*domain.EngagementTotals, error) {
	return s.analyticsRepo.Totals(ctx)
}

func (s *analyticsService) CloseIdleSessions(ctx context.Context, idleFor time.Duration) (int64, error) {
	return s.sessionRepo.CloseIdle(ctx, idleFor)
}
