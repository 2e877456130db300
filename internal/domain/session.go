package domain

import "time"

// ViewerSession correlates one authenticated visit with its engagement
// events. It is closed on sign-out or by the idle sweeper, never deleted.
type ViewerSession struct {
	ID               string     `json:"id"`
	UserID           string     `json:"user_id"`
	Email            string     `json:"email"`
	StartedAt        time.Time  `json:"started_at"`
	LastActiveAt     time.Time  `json:"last_active_at"`
	ClosedAt         *time.Time `json:"closed_at,omitempty"`
	TotalDwellTimeMS int64      `json:"total_dwell_time_ms"`
	CompletionRate   float32    `json:"completion_rate"`
}

func (s *ViewerSession) IsClosed() bool {
	return s.ClosedAt != nil
}

// SessionEngagement is the admin-facing rollup for one viewer session.
type SessionEngagement struct {
	Session         *ViewerSession `json:"session"`
	SectionsViewed  []string       `json:"sections_viewed"`
	SectionViews    int64          `json:"section_views"`
	CTAClicks       int64          `json:"cta_clicks"`
	CompletionRate  float32        `json:"completion_rate"`
}

// EngagementTotals aggregates across all sessions.
type EngagementTotals struct {
	Sessions     int64 `json:"sessions"`
	SectionViews int64 `json:"section_views"`
	CTAClicks    int64 `json:"cta_clicks"`
}
