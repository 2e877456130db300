package recorder_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/susumicapital/investor-portal/internal/domain"
	"github.com/susumicapital/investor-portal/internal/recorder"
	"github.com/susumicapital/investor-portal/pkg/events"
)

type mockSubscriber struct {
	handlers map[string]func(msg *events.Message)
}

func newMockSubscriber() *mockSubscriber {
	return &mockSubscriber{handlers: make(map[string]func(msg *events.Message))}
}

func (m *mockSubscriber) Subscribe(subject string, handler func(msg *events.Message)) error {
	m.handlers[subject] = handler
	return nil
}

func (m *mockSubscriber) QueueSubscribe(subject, _ string, handler func(msg *events.Message)) error {
	m.handlers[subject] = handler
	return nil
}

func (m *mockSubscriber) Close() error { return nil }

func (m *mockSubscriber) deliver(t *testing.T, subject string, event interface{}) {
	t.Helper()
	handler, ok := m.handlers[subject]
	if !ok {
		t.Fatalf("No handler subscribed for %s", subject)
	}
	data, _ := json.Marshal(event)
	handler(&events.Message{Subject: subject, Data: data, Timestamp: time.Now()})
}

type recordedView struct {
	sessionID string
	slug      string
	dwellMS   *int64
}

type mockAnalyticsRepo struct {
	views                []recordedView
	clicks               []string
	failuresBeforeInsert int
}

func (m *mockAnalyticsRepo) InsertSectionView(_ context.Context, sessionID, slug string, dwellMS *int64, _ time.Time) error {
	if m.failuresBeforeInsert > 0 {
		m.failuresBeforeInsert--
		return context.DeadlineExceeded
	}
	m.views = append(m.views, recordedView{sessionID: sessionID, slug: slug, dwellMS: dwellMS})
	return nil
}

func (m *mockAnalyticsRepo) InsertCTAClick(_ context.Context, _, action, _ string, _ time.Time) error {
	m.clicks = append(m.clicks, action)
	return nil
}

func (m *mockAnalyticsRepo) DistinctSections(_ context.Context, _ string) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, v := range m.views {
		if !seen[v.slug] {
			seen[v.slug] = true
			out = append(out, v.slug)
		}
	}
	return out, nil
}

func (m *mockAnalyticsRepo) CountBySession(context.Context, string) (int64, int64, error) {
	return int64(len(m.views)), int64(len(m.clicks)), nil
}

func (m *mockAnalyticsRepo) Totals(context.Context) (*domain.EngagementTotals, error) {
	return &domain.EngagementTotals{}, nil
}

type activityUpdate struct {
	dwellMS int64
	rate    float32
}

type mockSessionRepo struct {
	updates []activityUpdate
	touched int
}

func (m *mockSessionRepo) Create(context.Context, string, string) (*domain.ViewerSession, error) {
	return nil, nil
}
func (m *mockSessionRepo) GetByID(context.Context, string) (*domain.ViewerSession, error) {
	return nil, nil
}
func (m *mockSessionRepo) List(context.Context, int, int) ([]domain.ViewerSession, error) {
	return nil, nil
}
func (m *mockSessionRepo) RecordActivity(_ context.Context, _ string, dwellMS int64, rate float32) error {
	m.updates = append(m.updates, activityUpdate{dwellMS: dwellMS, rate: rate})
	return nil
}
func (m *mockSessionRepo) Touch(context.Context, string) error {
	m.touched++
	return nil
}
func (m *mockSessionRepo) CloseByUser(context.Context, string) (int64, error) { return 0, nil }
func (m *mockSessionRepo) CloseIdle(context.Context, time.Duration) (int64, error) { return 0, nil }

func setupRecorder(t *testing.T) (*mockSubscriber, *mockAnalyticsRepo, *mockSessionRepo) {
	t.Helper()

	sub := newMockSubscriber()
	analytics := &mockAnalyticsRepo{}
	sessions := &mockSessionRepo{}

	rec := recorder.New(sub, analytics, sessions)
	if err := rec.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start recorder: %v", err)
	}
	return sub, analytics, sessions
}

func TestRecorder_SectionView_PersistsAndUpdatesSession(t *testing.T) {
	sub, analytics, sessions := setupRecorder(t)

	dwell := int64(3000)
	sub.deliver(t, events.SectionViewed, events.SectionViewEvent{
		SessionID:   "sess-1",
		SectionSlug: "market",
		DwellTimeMS: &dwell,
		ViewedAt:    time.Now(),
	})

	if len(analytics.views) != 1 {
		t.Fatalf("Expected 1 persisted view, got %d", len(analytics.views))
	}
	if analytics.views[0].slug != "market" {
		t.Fatalf("Unexpected slug %s", analytics.views[0].slug)
	}

	if len(sessions.updates) != 1 {
		t.Fatalf("Expected 1 session update, got %d", len(sessions.updates))
	}
	update := sessions.updates[0]
	if update.dwellMS != dwell {
		t.Fatalf("Expected dwell %d, got %d", dwell, update.dwellMS)
	}
	want := domain.CompletionRate(1)
	if update.rate != want {
		t.Fatalf("Expected completion rate %f, got %f", want, update.rate)
	}
}

func TestRecorder_SectionView_RetriesTransientFailure(t *testing.T) {
	sub, analytics, _ := setupRecorder(t)
	analytics.failuresBeforeInsert = 2

	sub.deliver(t, events.SectionViewed, events.SectionViewEvent{
		SessionID:   "sess-1",
		SectionSlug: "team",
		ViewedAt:    time.Now(),
	})

	if len(analytics.views) != 1 {
		t.Fatalf("Expected view persisted after retries, got %d", len(analytics.views))
	}
}

func TestRecorder_CTAClick_PersistsAndTouchesSession(t *testing.T) {
	sub, analytics, sessions := setupRecorder(t)

	sub.deliver(t, events.CTAClicked, events.CTAClickEvent{
		SessionID: "sess-1",
		Action:    domain.ActionScheduleMeeting,
		Label:     "Schedule a Meeting",
		ClickedAt: time.Now(),
	})

	if len(analytics.clicks) != 1 || analytics.clicks[0] != domain.ActionScheduleMeeting {
		t.Fatalf("Unexpected clicks: %v", analytics.clicks)
	}
	if sessions.touched != 1 {
		t.Fatalf("Expected session touch, got %d", sessions.touched)
	}
}

func TestRecorder_MalformedEvent_Dropped(t *testing.T) {
	sub, analytics, _ := setupRecorder(t)

	handler := sub.handlers[events.SectionViewed]
	handler(&events.Message{Subject: events.SectionViewed, Data: []byte("{not json"), Timestamp: time.Now()})

	if len(analytics.views) != 0 {
		t.Fatalf("Expected malformed event dropped, got %d views", len(analytics.views))
	}
}
