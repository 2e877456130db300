package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/susumicapital/investor-portal/internal/domain"
	"github.com/susumicapital/investor-portal/internal/handlers"
	"github.com/susumicapital/investor-portal/internal/service"
	"github.com/susumicapital/investor-portal/pkg/auth"
	"github.com/susumicapital/investor-portal/pkg/config"
)

// ---------- Mocks ----------

type mockMailer struct {
	lastTo    string
	lastCode  string
	lastLink  string
	sendCount int
	sendErr   error
}

func (m *mockMailer) SendLoginEmail(toEmail, code, magicLink string) error {
	m.sendCount++
	m.lastTo = toEmail
	m.lastCode = code
	m.lastLink = magicLink
	return m.sendErr
}

type loginArtifact struct {
	email     string
	codeHash  string
	tokenHash string
	expiresAt time.Time
	used      bool
	attempts  int
}

type mockLoginRepo struct {
	artifacts []*loginArtifact
	createErr error
}

func (m *mockLoginRepo) Create(_ context.Context, email, codeHash, tokenHash, _ string, expiresAt time.Time, _ net.IP) error {
	if m.createErr != nil {
		return m.createErr
	}
	// Supersede previous live artifacts for the email
	for _, a := range m.artifacts {
		if a.email == email && !a.used {
			a.used = true
		}
	}
	m.artifacts = append(m.artifacts, &loginArtifact{
		email:     email,
		codeHash:  codeHash,
		tokenHash: tokenHash,
		expiresAt: expiresAt,
	})
	return nil
}

func (m *mockLoginRepo) latest(email string) *loginArtifact {
	for i := len(m.artifacts) - 1; i >= 0; i-- {
		if m.artifacts[i].email == email {
			return m.artifacts[i]
		}
	}
	return nil
}

func (m *mockLoginRepo) ConsumeCode(_ context.Context, email, code string) (bool, error) {
	a := m.latest(email)
	if a == nil || a.used || time.Now().After(a.expiresAt) || a.attempts >= domain.MaxVerificationAttempts {
		return false, nil
	}
	if bcrypt.CompareHashAndPassword([]byte(a.codeHash), []byte(code)) != nil {
		a.attempts++
		return false, nil
	}
	a.used = true
	return true, nil
}

func (m *mockLoginRepo) ConsumeTokenHash(_ context.Context, tokenHash, email string) (bool, error) {
	for _, a := range m.artifacts {
		if a.tokenHash == tokenHash && a.email == email && !a.used && time.Now().Before(a.expiresAt) {
			a.used = true
			return true, nil
		}
	}
	return false, nil
}

func (m *mockLoginRepo) DeleteExpired(context.Context) (int64, error) { return 0, nil }

type mockUserRepo struct {
	users  map[string]*domain.User
	nextID int
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*domain.User), nextID: 1}
}

func (m *mockUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	if u, ok := m.users[strings.ToLower(email)]; ok {
		return u, nil
	}
	return nil, nil
}

func (m *mockUserRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) EnsureByEmail(_ context.Context, email string) (*domain.User, error) {
	key := strings.ToLower(email)
	if u, ok := m.users[key]; ok {
		return u, nil
	}
	u := &domain.User{
		ID:        fmt.Sprintf("user-%d", m.nextID),
		Email:     key,
		Role:      domain.RoleViewer,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	m.nextID++
	m.users[key] = u
	return u, nil
}

func (m *mockUserRepo) List(context.Context, int, int) ([]domain.User, error) {
	var out []domain.User
	for _, u := range m.users {
		out = append(out, *u)
	}
	return out, nil
}

type mockSessionRepo struct {
	sessions map[string]*domain.ViewerSession
	nextID   int
}

func newMockSessionRepo() *mockSessionRepo {
	return &mockSessionRepo{sessions: make(map[string]*domain.ViewerSession), nextID: 1}
}

func (m *mockSessionRepo) Create(_ context.Context, userID, email string) (*domain.ViewerSession, error) {
	s := &domain.ViewerSession{
		ID:           fmt.Sprintf("sess-%d", m.nextID),
		UserID:       userID,
		Email:        email,
		StartedAt:    time.Now(),
		LastActiveAt: time.Now(),
	}
	m.nextID++
	m.sessions[s.ID] = s
	return s, nil
}

func (m *mockSessionRepo) GetByID(_ context.Context, id string) (*domain.ViewerSession, error) {
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	return nil, nil
}

func (m *mockSessionRepo) List(context.Context, int, int) ([]domain.ViewerSession, error) {
	var out []domain.ViewerSession
	for _, s := range m.sessions {
		out = append(out, *s)
	}
	return out, nil
}

func (m *mockSessionRepo) RecordActivity(_ context.Context, id string, dwellMS int64, rate float32) error {
	if s, ok := m.sessions[id]; ok {
		s.LastActiveAt = time.Now()
		s.TotalDwellTimeMS += dwellMS
		s.CompletionRate = rate
	}
	return nil
}

func (m *mockSessionRepo) Touch(_ context.Context, id string) error {
	if s, ok := m.sessions[id]; ok {
		s.LastActiveAt = time.Now()
	}
	return nil
}

func (m *mockSessionRepo) CloseByUser(_ context.Context, userID string) (int64, error) {
	var n int64
	now := time.Now()
	for _, s := range m.sessions {
		if s.UserID == userID && s.ClosedAt == nil {
			s.ClosedAt = &now
			n++
		}
	}
	return n, nil
}

func (m *mockSessionRepo) CloseIdle(context.Context, time.Duration) (int64, error) { return 0, nil }

type mockAnalyticsRepo struct {
	views  []domain.SectionView
	clicks []domain.CTAClick
}

func (m *mockAnalyticsRepo) InsertSectionView(_ context.Context, sessionID, slug string, dwellMS *int64, viewedAt time.Time) error {
	m.views = append(m.views, domain.SectionView{SessionID: sessionID, SectionSlug: slug, DwellTimeMS: dwellMS, ViewedAt: viewedAt})
	return nil
}

func (m *mockAnalyticsRepo) InsertCTAClick(_ context.Context, sessionID, action, label string, clickedAt time.Time) error {
	m.clicks = append(m.clicks, domain.CTAClick{SessionID: sessionID, Action: action, Label: label, ClickedAt: clickedAt})
	return nil
}

func (m *mockAnalyticsRepo) DistinctSections(_ context.Context, sessionID string) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, v := range m.views {
		if v.SessionID == sessionID && !seen[v.SectionSlug] {
			seen[v.SectionSlug] = true
			out = append(out, v.SectionSlug)
		}
	}
	return out, nil
}

func (m *mockAnalyticsRepo) CountBySession(_ context.Context, sessionID string) (int64, int64, error) {
	var views, clicks int64
	for _, v := range m.views {
		if v.SessionID == sessionID {
			views++
		}
	}
	for _, c := range m.clicks {
		if c.SessionID == sessionID {
			clicks++
		}
	}
	return views, clicks, nil
}

func (m *mockAnalyticsRepo) Totals(context.Context) (*domain.EngagementTotals, error) {
	return &domain.EngagementTotals{SectionViews: int64(len(m.views)), CTAClicks: int64(len(m.clicks))}, nil
}

type mockLeadRepo struct {
	meetings  []*domain.MeetingRequest
	dataRooms []*domain.DataRoomRequest
}

func (m *mockLeadRepo) CreateMeeting(_ context.Context, req *domain.MeetingRequestInput, userID *string) (*domain.MeetingRequest, error) {
	mr := &domain.MeetingRequest{
		ID:      fmt.Sprintf("mtg-%d", len(m.meetings)+1),
		UserID:  userID,
		Company: req.Company,
		Email:   req.Email,
		Status:  domain.LeadPending,
	}
	m.meetings = append(m.meetings, mr)
	return mr, nil
}

func (m *mockLeadRepo) CreateDataRoom(_ context.Context, req *domain.DataRoomRequestInput, userID *string) (*domain.DataRoomRequest, error) {
	dr := &domain.DataRoomRequest{
		ID:          fmt.Sprintf("dr-%d", len(m.dataRooms)+1),
		UserID:      userID,
		Company:     req.Company,
		Role:        req.Role,
		Email:       req.Email,
		NDAAccepted: req.NDAAccepted,
		Status:      domain.LeadPending,
	}
	m.dataRooms = append(m.dataRooms, dr)
	return dr, nil
}

func (m *mockLeadRepo) ListMeetings(_ context.Context, status *string, _, _ int) ([]domain.MeetingRequest, error) {
	var out []domain.MeetingRequest
	for _, mr := range m.meetings {
		if status == nil || mr.Status == *status {
			out = append(out, *mr)
		}
	}
	return out, nil
}

func (m *mockLeadRepo) ListDataRoom(_ context.Context, status *string, _, _ int) ([]domain.DataRoomRequest, error) {
	var out []domain.DataRoomRequest
	for _, dr := range m.dataRooms {
		if status == nil || dr.Status == *status {
			out = append(out, *dr)
		}
	}
	return out, nil
}

func (m *mockLeadRepo) UpdateMeetingStatus(_ context.Context, id, status string) (*domain.MeetingRequest, error) {
	for _, mr := range m.meetings {
		if mr.ID == id {
			mr.Status = status
			return mr, nil
		}
	}
	return nil, nil
}

func (m *mockLeadRepo) UpdateDataRoomStatus(_ context.Context, id, status string) (*domain.DataRoomRequest, error) {
	for _, dr := range m.dataRooms {
		if dr.ID == id {
			dr.Status = status
			return dr, nil
		}
	}
	return nil, nil
}

type publishedEvent struct {
	subject string
	data    interface{}
}

type mockPublisher struct {
	published []publishedEvent
}

func (m *mockPublisher) Publish(_ context.Context, subject string, data interface{}) error {
	m.published = append(m.published, publishedEvent{subject: subject, data: data})
	return nil
}

func (m *mockPublisher) Close() error { return nil }

type mockRateLimiter struct {
	keys []string
	deny bool
}

func (m *mockRateLimiter) CheckRateLimit(_ context.Context, key string, _ int, _ time.Duration) (bool, error) {
	m.keys = append(m.keys, key)
	return !m.deny, nil
}

// ---------- Test Setup ----------

type testEnv struct {
	server    *httptest.Server
	cfg       *config.Config
	mailer    *mockMailer
	loginRepo *mockLoginRepo
	userRepo  *mockUserRepo
	sessions  *mockSessionRepo
	analytics *mockAnalyticsRepo
	leads     *mockLeadRepo
	publisher *mockPublisher
	limiter   *mockRateLimiter
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()

	cfg := config.Load()
	env := &testEnv{
		cfg:       cfg,
		mailer:    &mockMailer{},
		loginRepo: &mockLoginRepo{},
		userRepo:  newMockUserRepo(),
		sessions:  newMockSessionRepo(),
		analytics: &mockAnalyticsRepo{},
		leads:     &mockLeadRepo{},
		publisher: &mockPublisher{},
		limiter:   &mockRateLimiter{},
	}

	authService := service.NewAuthService(env.loginRepo, env.userRepo, env.sessions, env.mailer, env.limiter, cfg)
	analyticsService := service.NewAnalyticsService(env.sessions, env.analytics, env.publisher)
	leadService := service.NewLeadService(env.leads, cfg)

	h := handlers.New(authService, analyticsService, leadService, env.limiter, cfg)

	r := chi.NewRouter()
	r.Route("/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/magic-link", h.MagicLink)
			r.Post("/verify-code", h.VerifyCode)
			r.Post("/verify-token", h.VerifyToken)
			r.Group(func(r chi.Router) {
				r.Use(h.RequireAuth)
				r.Get("/session", h.Session)
				r.Post("/signout", h.SignOut)
			})
		})
		r.Route("/sessions", func(r chi.Router) {
			r.Use(h.RequireAuth)
			r.Post("/", h.CreateSession)
			r.Post("/{id}/views", h.RecordView)
			r.Post("/{id}/clicks", h.RecordClick)
		})
		r.Route("/leads", func(r chi.Router) {
			r.Use(h.OptionalAuth)
			r.Post("/meeting", h.SubmitMeeting)
			r.Post("/data-room", h.SubmitDataRoom)
		})
		r.Get("/deck/sections", h.DeckSections)
		r.Route("/admin", func(r chi.Router) {
			r.Use(h.RequireAuth)
			r.Use(h.RequireRole("admin"))
			r.Get("/users", h.AdminListUsers)
			r.Get("/sessions/{id}/engagement", h.AdminSessionEngagement)
		})
	})

	env.server = httptest.NewServer(r)
	t.Cleanup(env.server.Close)
	return env
}

// signIn runs the full code flow and returns a bearer token.
func (env *testEnv) signIn(t *testing.T, email string) string {
	t.Helper()

	postJSON(t, env.server.URL+"/v1/auth/magic-link", map[string]string{"email": email}, http.StatusOK).Body.Close()

	resp := postJSON(t, env.server.URL+"/v1/auth/verify-code",
		map[string]string{"email": email, "token": env.mailer.lastCode, "type": "email"}, http.StatusOK)
	defer resp.Body.Close()

	var session domain.SessionResponse
	json.NewDecoder(resp.Body).Decode(&session)
	if session.AccessToken == "" {
		t.Fatal("Expected access_token in response")
	}
	return session.AccessToken
}

// ---------- Tests ----------

func TestAuth_CodeFlow_Success(t *testing.T) {
	env := setupTestServer(t)
	email := "investor@fund.example"

	resp := postJSON(t, env.server.URL+"/v1/auth/magic-link", map[string]string{"email": email}, http.StatusOK)
	var ack map[string]bool
	json.NewDecoder(resp.Body).Decode(&ack)
	resp.Body.Close()

	if !ack["ok"] {
		t.Fatal("Expected ok:true acknowledgement")
	}
	if env.mailer.sendCount != 1 {
		t.Fatalf("Expected exactly one email, got %d", env.mailer.sendCount)
	}
	if env.mailer.lastTo != email {
		t.Fatalf("Expected email to %s, got %s", email, env.mailer.lastTo)
	}
	if len(env.mailer.lastCode) != 6 {
		t.Fatalf("Expected 6-digit code, got %q", env.mailer.lastCode)
	}
	if !strings.Contains(env.mailer.lastLink, "type=magiclink") || !strings.Contains(env.mailer.lastLink, "token_hash=") {
		t.Fatalf("Magic link missing fragment params: %s", env.mailer.lastLink)
	}

	token := env.signIn(t, email)

	claims, err := auth.Parse(token, env.cfg.Auth.JWTSecret)
	if err != nil {
		t.Fatalf("Failed to parse JWT: %v", err)
	}
	if claims.Email != email || claims.Role != domain.RoleViewer {
		t.Fatalf("Invalid claims: email=%s, role=%s", claims.Email, claims.Role)
	}
}

func TestAuth_ConsumedCodeReplay_Fails(t *testing.T) {
	env := setupTestServer(t)
	email := "investor@fund.example"

	env.signIn(t, email)

	// The same code a second time must fail
	postJSON(t, env.server.URL+"/v1/auth/verify-code",
		map[string]string{"email": email, "token": env.mailer.lastCode, "type": "email"},
		http.StatusUnauthorized).Body.Close()
}

func TestAuth_MagicTokenFlow_SingleUse(t *testing.T) {
	env := setupTestServer(t)
	email := "investor@fund.example"

	postJSON(t, env.server.URL+"/v1/auth/magic-link", map[string]string{"email": email}, http.StatusOK).Body.Close()

	// Extract token_hash from the emailed link fragment
	link := env.mailer.lastLink
	idx := strings.Index(link, "token_hash=")
	tokenHash := link[idx+len("token_hash="):]
	if amp := strings.Index(tokenHash, "&"); amp != -1 {
		tokenHash = tokenHash[:amp]
	}

	body := map[string]string{"token_hash": tokenHash, "type": "magiclink", "email": email}
	resp := postJSON(t, env.server.URL+"/v1/auth/verify-token", body, http.StatusOK)
	var session domain.SessionResponse
	json.NewDecoder(resp.Body).Decode(&session)
	resp.Body.Close()

	if session.User == nil || session.User.Email != email {
		t.Fatal("Expected provisioned user in session response")
	}

	// Replay fails
	postJSON(t, env.server.URL+"/v1/auth/verify-token", body, http.StatusUnauthorized).Body.Close()
}

func TestAuth_InvalidEmail_BadRequest(t *testing.T) {
	env := setupTestServer(t)

	tests := []struct {
		name  string
		email string
	}{
		{"empty email", ""},
		{"invalid email", "not-an-email"},
		{"missing @", "investorfund.example"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			postJSON(t, env.server.URL+"/v1/auth/magic-link", map[string]string{"email": tt.email}, http.StatusBadRequest).Body.Close()
		})
	}
}

func TestAuth_StoreFailure_NoEmailSent(t *testing.T) {
	env := setupTestServer(t)
	env.loginRepo.createErr = fmt.Errorf("db down")

	postJSON(t, env.server.URL+"/v1/auth/magic-link",
		map[string]string{"email": "investor@fund.example"}, http.StatusInternalServerError).Body.Close()

	if env.mailer.sendCount != 0 {
		t.Fatalf("Expected no email after store failure, got %d", env.mailer.sendCount)
	}
}

func TestAuth_EmailFailure_ReturnsError(t *testing.T) {
	env := setupTestServer(t)
	env.mailer.sendErr = fmt.Errorf("smtp down")

	postJSON(t, env.server.URL+"/v1/auth/magic-link",
		map[string]string{"email": "investor@fund.example"}, http.StatusInternalServerError).Body.Close()

	// Artifact was still minted
	if env.loginRepo.latest("investor@fund.example") == nil {
		t.Fatal("Expected login artifact despite send failure")
	}
}

func TestAuth_PerEmailRateLimit_Blocks(t *testing.T) {
	env := setupTestServer(t)
	email := "victim@fund.example"
	env.limiter.deny = true

	postJSON(t, env.server.URL+"/v1/auth/magic-link",
		map[string]string{"email": email}, http.StatusTooManyRequests).Body.Close()

	if env.mailer.sendCount != 0 {
		t.Fatalf("Expected no email while limited, got %d", env.mailer.sendCount)
	}

	// The issuance path checks a per-email key, not just the handler's IP key
	found := false
	for _, key := range env.limiter.keys {
		if key == "magic_link_email:"+email {
			found = true
		}
	}
	if !found {
		t.Fatalf("Expected per-email rate limit key, got %v", env.limiter.keys)
	}
}

func TestAuth_Reissue_SupersedesPriorCode(t *testing.T) {
	env := setupTestServer(t)
	email := "investor@fund.example"

	postJSON(t, env.server.URL+"/v1/auth/magic-link", map[string]string{"email": email}, http.StatusOK).Body.Close()
	firstCode := env.mailer.lastCode

	postJSON(t, env.server.URL+"/v1/auth/magic-link", map[string]string{"email": email}, http.StatusOK).Body.Close()
	secondCode := env.mailer.lastCode

	// The superseded code is dead even though it never expired
	postJSON(t, env.server.URL+"/v1/auth/verify-code",
		map[string]string{"email": email, "token": firstCode, "type": "email"},
		http.StatusUnauthorized).Body.Close()

	postJSON(t, env.server.URL+"/v1/auth/verify-code",
		map[string]string{"email": email, "token": secondCode, "type": "email"},
		http.StatusOK).Body.Close()
}

func TestAuth_SignOut_ClosesSessions(t *testing.T) {
	env := setupTestServer(t)
	token := env.signIn(t, "investor@fund.example")

	sessionID := createViewerSession(t, env, token)

	resp := authedRequest(t, env, "POST", "/v1/auth/signout", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 on signout, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Events against the closed session are rejected
	view := map[string]interface{}{"section_slug": "market"}
	resp = authedRequest(t, env, "POST", "/v1/sessions/"+sessionID+"/views", token, view)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("Expected 409 for closed session, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestSessions_RequireAuth(t *testing.T) {
	env := setupTestServer(t)

	resp, err := http.Post(env.server.URL+"/v1/sessions/", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("Expected 401 without token, got %d", resp.StatusCode)
	}
	if len(env.publisher.published) != 0 {
		t.Fatalf("Expected no events published, got %d", len(env.publisher.published))
	}
}

func TestSessions_RecordViewAndClick(t *testing.T) {
	env := setupTestServer(t)
	token := env.signIn(t, "investor@fund.example")
	sessionID := createViewerSession(t, env, token)

	dwell := int64(4200)
	view := map[string]interface{}{"section_slug": "tokenomics", "dwell_time_ms": dwell}
	resp := authedRequest(t, env, "POST", "/v1/sessions/"+sessionID+"/views", token, view)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("Expected 202 for view, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	click := map[string]interface{}{"action": "request_data_room", "label": "Request Data Room Access"}
	resp = authedRequest(t, env, "POST", "/v1/sessions/"+sessionID+"/clicks", token, click)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("Expected 202 for click, got %d", resp.StatusCode)
	}
	var clickResult map[string]string
	json.NewDecoder(resp.Body).Decode(&clickResult)
	resp.Body.Close()

	if clickResult["route"] != "/request-access" {
		t.Fatalf("Expected route /request-access, got %q", clickResult["route"])
	}

	if len(env.publisher.published) != 2 {
		t.Fatalf("Expected 2 published events, got %d", len(env.publisher.published))
	}
	if env.publisher.published[0].subject != "analytics.section_view" {
		t.Fatalf("Unexpected subject %s", env.publisher.published[0].subject)
	}
	if env.publisher.published[1].subject != "analytics.cta_click" {
		t.Fatalf("Unexpected subject %s", env.publisher.published[1].subject)
	}
}

func TestSessions_UnknownSession_NotFound(t *testing.T) {
	env := setupTestServer(t)
	token := env.signIn(t, "investor@fund.example")

	view := map[string]interface{}{"section_slug": "market"}
	resp := authedRequest(t, env, "POST", "/v1/sessions/missing/views", token, view)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("Expected 404 for unknown session, got %d", resp.StatusCode)
	}
}

func TestSessions_OtherUsersSession_Forbidden(t *testing.T) {
	env := setupTestServer(t)

	ownerToken := env.signIn(t, "owner@fund.example")
	sessionID := createViewerSession(t, env, ownerToken)

	otherToken := env.signIn(t, "other@fund.example")

	view := map[string]interface{}{"section_slug": "market"}
	resp := authedRequest(t, env, "POST", "/v1/sessions/"+sessionID+"/views", otherToken, view)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("Expected 403 for foreign session, got %d", resp.StatusCode)
	}

	click := map[string]interface{}{"action": "schedule_meeting", "label": "Schedule"}
	resp = authedRequest(t, env, "POST", "/v1/sessions/"+sessionID+"/clicks", otherToken, click)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("Expected 403 for foreign session click, got %d", resp.StatusCode)
	}

	if len(env.publisher.published) != 0 {
		t.Fatalf("Expected no events for foreign session, got %d", len(env.publisher.published))
	}
}

func TestSessions_UnknownSection_BadRequest(t *testing.T) {
	env := setupTestServer(t)
	token := env.signIn(t, "investor@fund.example")
	sessionID := createViewerSession(t, env, token)

	view := map[string]interface{}{"section_slug": "cap-table"}
	resp := authedRequest(t, env, "POST", "/v1/sessions/"+sessionID+"/views", token, view)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("Expected 400 for unknown section, got %d", resp.StatusCode)
	}
	if len(env.publisher.published) != 0 {
		t.Fatal("Expected no event for invalid section")
	}
}

func TestLeads_Meeting_ReturnsSchedulingURL(t *testing.T) {
	env := setupTestServer(t)

	body := map[string]interface{}{
		"company":      "Alpine Capital",
		"email":        "partner@alpine.example",
		"aum":          "250M",
		"mandate_type": "Digital assets",
	}
	resp := postJSON(t, env.server.URL+"/v1/leads/meeting", body, http.StatusCreated)
	defer resp.Body.Close()

	var result service.MeetingSubmission
	json.NewDecoder(resp.Body).Decode(&result)

	if result.SchedulingURL == "" {
		t.Fatal("Expected scheduling_url in response")
	}
	if result.Request == nil || result.Request.Status != domain.LeadPending {
		t.Fatal("Expected pending meeting request")
	}
	if len(env.leads.meetings) != 1 {
		t.Fatalf("Expected 1 saved meeting request, got %d", len(env.leads.meetings))
	}
}

func TestLeads_DataRoomWithoutNDA_Blocked(t *testing.T) {
	env := setupTestServer(t)

	body := map[string]interface{}{
		"company":      "Alpine Capital",
		"role":         "Partner",
		"email":        "partner@alpine.example",
		"nda_accepted": false,
	}
	postJSON(t, env.server.URL+"/v1/leads/data-room", body, http.StatusBadRequest).Body.Close()

	if len(env.leads.dataRooms) != 0 {
		t.Fatalf("Expected no data room rows without NDA, got %d", len(env.leads.dataRooms))
	}

	body["nda_accepted"] = true
	postJSON(t, env.server.URL+"/v1/leads/data-room", body, http.StatusCreated).Body.Close()

	if len(env.leads.dataRooms) != 1 {
		t.Fatalf("Expected 1 data room row, got %d", len(env.leads.dataRooms))
	}
}

func TestLeads_AuthenticatedSubmission_LinksUser(t *testing.T) {
	env := setupTestServer(t)
	token := env.signIn(t, "investor@fund.example")

	body := map[string]interface{}{
		"company": "Alpine Capital",
		"email":   "investor@fund.example",
	}
	resp := authedRequest(t, env, "POST", "/v1/leads/meeting", token, body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", resp.StatusCode)
	}
	if env.leads.meetings[0].UserID == nil {
		t.Fatal("Expected user id on authenticated submission")
	}
}

func TestDeckSections_OrderedCatalog(t *testing.T) {
	env := setupTestServer(t)

	resp := get(t, env.server.URL+"/v1/deck/sections", http.StatusOK)
	defer resp.Body.Close()

	var result struct {
		Sections []string `json:"sections"`
	}
	json.NewDecoder(resp.Body).Decode(&result)

	if len(result.Sections) != 12 {
		t.Fatalf("Expected 12 sections, got %d", len(result.Sections))
	}
	if result.Sections[0] != "market" || result.Sections[11] != "closing" {
		t.Fatalf("Unexpected section order: %v", result.Sections)
	}
}

func TestAdmin_RequiresAdminRole(t *testing.T) {
	env := setupTestServer(t)
	viewerToken := env.signIn(t, "investor@fund.example")

	resp := authedRequest(t, env, "GET", "/v1/admin/users", viewerToken, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("Expected 403 for viewer, got %d", resp.StatusCode)
	}

	// Promote and mint an admin token directly
	user, _ := env.userRepo.FindByEmail(context.Background(), "investor@fund.example")
	user.Role = domain.RoleAdmin
	adminToken, err := auth.NewSessionToken(user.ID, user.Email, user.Role, env.cfg.Auth.JWTSecret, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	resp = authedRequest(t, env, "GET", "/v1/admin/users", adminToken, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 for admin, got %d", resp.StatusCode)
	}
}

// ---------- Helper Functions ----------

func createViewerSession(t *testing.T, env *testEnv, token string) string {
	t.Helper()

	resp := authedRequest(t, env, "POST", "/v1/sessions/", token, nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201 creating session, got %d", resp.StatusCode)
	}

	var session domain.ViewerSession
	json.NewDecoder(resp.Body).Decode(&session)
	if session.ID == "" {
		t.Fatal("Expected session id")
	}
	return session.ID
}

func authedRequest(t *testing.T, env *testEnv, method, path, token string, body interface{}) *http.Response {
	t.Helper()

	var buf *bytes.Buffer
	if body != nil {
		buf = bytes.NewBuffer(jsonBytes(body))
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, env.server.URL+path, buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func postJSON(t *testing.T, url string, data interface{}, expectedStatus int) *http.Response {
	t.Helper()

	resp, err := http.Post(url, "application/json", bytes.NewBuffer(jsonBytes(data)))
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}

	if resp.StatusCode != expectedStatus {
		t.Fatalf("POST %s: expected status %d, got %d", url, expectedStatus, resp.StatusCode)
	}

	return resp
}

func get(t *testing.T, url string, expectedStatus int) *http.Response {
	t.Helper()

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}

	if resp.StatusCode != expectedStatus {
		t.Fatalf("GET %s: expected status %d, got %d", url, expectedStatus, resp.StatusCode)
	}

	return resp
}

func jsonBytes(data interface{}) []byte {
	b, _ := json.Marshal(data)
	return b
}
