package domain

import (
	"fmt"
	"strings"
	"time"
)

// ActionKind is the closed set of CTA actions. The label stays free text for
// reporting; routing decisions key off the action, never the label.
const (
	ActionScheduleMeeting = "schedule_meeting"
	ActionRequestDataRoom = "request_data_room"
	ActionOpenFinancials  = "open_financials"
)

var actionRoutes = map[string]string{
	ActionScheduleMeeting: "/meeting",
	ActionRequestDataRoom: "/request-access",
	ActionOpenFinancials:  "/financials",
}

func IsValidAction(action string) bool {
	_, ok := actionRoutes[action]
	return ok
}

// ActionRoute returns the client route for a CTA action, or "" for actions
// with no navigation.
func ActionRoute(action string) string {
	return actionRoutes[action]
}

type SectionViewRequest struct {
	SectionSlug string `json:"section_slug"`
	DwellTimeMS *int64 `json:"dwell_time_ms,omitempty"`
}

type CTAClickRequest struct {
	Action string `json:"action"`
	Label  string `json:"label"`
}

type SectionView struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	SectionSlug string    `json:"section_slug"`
	DwellTimeMS *int64    `json:"dwell_time_ms,omitempty"`
	ViewedAt    time.Time `json:"viewed_at"`
}

type CTAClick struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Action    string    `json:"action"`
	Label     string    `json:"cta_label"`
	ClickedAt time.Time `json:"clicked_at"`
}

func (r *SectionViewRequest) Validate() error {
	if r.SectionSlug == "" {
		return fmt.Errorf("section_slug is required")
	}
	if !IsValidSection(r.SectionSlug) {
		return fmt.Errorf("unknown section: %s", r.SectionSlug)
	}
	if r.DwellTimeMS != nil && *r.DwellTimeMS < 0 {
		return fmt.Errorf("dwell_time_ms must not be negative")
	}
	return nil
}

func (r *SectionViewRequest) Normalize() {
	r.SectionSlug = strings.ToLower(strings.TrimSpace(r.SectionSlug))
}

func (r *CTAClickRequest) Validate() error {
	if r.Action == "" {
		return fmt.Errorf("action is required")
	}
	if !IsValidAction(r.Action) {
		return fmt.Errorf("unknown action: %s", r.Action)
	}
	if r.Label == "" {
		return fmt.Errorf("label is required")
	}
	if len(r.Label) > 200 {
		return fmt.Errorf("label must be at most 200 characters")
	}
	return nil
}

func (r *CTAClickRequest) Normalize() {
	r.Action = strings.ToLower(strings.TrimSpace(r.Action))
	r.Label = strings.TrimSpace(r.Label)
}
