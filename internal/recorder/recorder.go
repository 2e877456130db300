package recorder

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/susumicapital/investor-portal/internal/domain"
	"github.com/susumicapital/investor-portal/internal/repository"
	"github.com/susumicapital/investor-portal/pkg/events"
	"github.com/susumicapital/investor-portal/pkg/logger"
)

const queueGroup = "analytics-recorder"

// Recorder drains the analytics subjects and persists events with
// at-least-once semantics. Handlers publish and return immediately; this is
// the only place engagement rows are written.
type Recorder struct {
	subscriber    events.Subscriber
	analyticsRepo repository.AnalyticsRepository
	sessionRepo   repository.SessionRepository
}

func New(
	subscriber events.Subscriber,
	analyticsRepo repository.AnalyticsRepository,
	sessionRepo repository.SessionRepository,
) *Recorder {
	return &Recorder{
		subscriber:    subscriber,
		analyticsRepo: analyticsRepo,
		sessionRepo:   sessionRepo,
	}
}

func (r *Recorder) Start(ctx context.Context) error {
	if err := r.subscriber.QueueSubscribe(events.SectionViewed, queueGroup, func(msg *events.Message) {
		r.handleSectionView(ctx, msg)
	}); err != nil {
		return err
	}

	if err := r.subscriber.QueueSubscribe(events.CTAClicked, queueGroup, func(msg *events.Message) {
		r.handleCTAClick(ctx, msg)
	}); err != nil {
		return err
	}

	logger.Info("Analytics recorder started", "queue", queueGroup)
	return nil
}

func (r *Recorder) handleSectionView(ctx context.Context, msg *events.Message) {
	var event events.SectionViewEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		logger.Error("Dropping malformed section view event", "error", err)
		return
	}

	err := r.withRetry(ctx, func(ctx context.Context) error {
		return r.analyticsRepo.InsertSectionView(ctx, event.SessionID, event.SectionSlug, event.DwellTimeMS, event.ViewedAt)
	})
	if err != nil {
		logger.Error("Failed to persist section view", "error", err, "session_id", event.SessionID)
		return
	}

	var dwell int64
	if event.DwellTimeMS != nil {
		dwell = *event.DwellTimeMS
	}
	r.refreshSession(ctx, event.SessionID, dwell)
}

func (r *Recorder) handleCTAClick(ctx context.Context, msg *events.Message) {
	var event events.CTAClickEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		logger.Error("Dropping malformed CTA click event", "error", err)
		return
	}

	err := r.withRetry(ctx, func(ctx context.Context) error {
		return r.analyticsRepo.InsertCTAClick(ctx, event.SessionID, event.Action, event.Label, event.ClickedAt)
	})
	if err != nil {
		logger.Error("Failed to persist CTA click", "error", err, "session_id", event.SessionID)
		return
	}

	if err := r.sessionRepo.Touch(ctx, event.SessionID); err != nil {
		logger.Error("Failed to touch viewer session", "error", err, "session_id", event.SessionID)
	}
}

// refreshSession bumps activity, dwell totals and the completion rate after
// a section view lands.
func (r *Recorder) refreshSession(ctx context.Context, sessionID string, dwellMS int64) {
	sections, err := r.analyticsRepo.DistinctSections(ctx, sessionID)
	if err != nil {
		logger.Error("Failed to load distinct sections", "error", err, "session_id", sessionID)
		return
	}

	rate := domain.CompletionRate(len(sections))
	if err := r.sessionRepo.RecordActivity(ctx, sessionID, dwellMS, rate); err != nil {
		logger.Error("Failed to update viewer session", "error", err, "session_id", sessionID)
	}
}

func (r *Recorder) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(5, retry.NewExponential(100*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}
