package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/susumicapital/investor-portal/internal/handlers"
	"github.com/susumicapital/investor-portal/internal/mailer"
	"github.com/susumicapital/investor-portal/internal/recorder"
	"github.com/susumicapital/investor-portal/internal/repository"
	"github.com/susumicapital/investor-portal/internal/service"
	"github.com/susumicapital/investor-portal/pkg/config"
	"github.com/susumicapital/investor-portal/pkg/database"
	"github.com/susumicapital/investor-portal/pkg/events"
	"github.com/susumicapital/investor-portal/pkg/logger"
	mw "github.com/susumicapital/investor-portal/pkg/middleware"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisStore, err := repository.NewRedisStore(cfg.Redis.URL, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer redisStore.Close()

	eventBus, err := events.NewNATSEventBus(cfg.NATS.URL)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer eventBus.Close()

	// Repositories
	userRepo := repository.NewUserRepository(pool)
	loginRepo := repository.NewLoginRepository(pool)
	sessionRepo := repository.NewSessionRepository(pool)
	analyticsRepo := repository.NewAnalyticsRepository(pool)
	leadRepo := repository.NewLeadRepository(pool)

	// Services
	mailService := newMailer(cfg)
	authService := service.NewAuthService(loginRepo, userRepo, sessionRepo, mailService, redisStore, cfg)
	analyticsService := service.NewAnalyticsService(sessionRepo, analyticsRepo, eventBus)
	leadService := service.NewLeadService(leadRepo, cfg)

	// Analytics pipeline consumer
	rec := recorder.New(eventBus, analyticsRepo, sessionRepo)
	if err := rec.Start(ctx); err != nil {
		logger.Error("Failed to start analytics recorder", "error", err)
		os.Exit(1)
	}

	h := handlers.New(authService, analyticsService, leadService, redisStore, cfg)

	r := chi.NewRouter()

	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("portal"))
	r.Use(mw.Logging)
	r.Use(mw.Health)
	r.Use(mw.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.Portal.BaseURL},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(h.RateLimit("magic_link", 5, time.Minute)).Post("/magic-link", h.MagicLink)
			r.With(h.RateLimit("verify", 10, time.Minute)).Post("/verify-code", h.VerifyCode)
			r.With(h.RateLimit("verify", 10, time.Minute)).Post("/verify-token", h.VerifyToken)

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
			r.Use(mw.Idempotency(redisStore))
			r.Post("/meeting", h.SubmitMeeting)
			r.Post("/data-room", h.SubmitDataRoom)
		})

		r.Get("/deck/sections", h.DeckSections)

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.RequireAuth)
			r.Use(h.RequireRole("admin"))
			r.Get("/users", h.AdminListUsers)
			r.Get("/sessions", h.AdminListSessions)
			r.Get("/sessions/{id}/engagement", h.AdminSessionEngagement)
			r.Get("/engagement/totals", h.AdminTotals)
			r.Get("/leads/meeting", h.AdminListMeetings)
			r.Get("/leads/data-room", h.AdminListDataRoom)
			r.Patch("/leads/meeting/{id}", h.AdminUpdateMeetingStatus)
			r.Patch("/leads/data-room/{id}", h.AdminUpdateDataRoomStatus)
		})
	})

	go sweepIdleSessions(ctx, analyticsService, cfg.Portal.SessionIdleTimeout)
	go cleanupExpiredLogins(ctx, authService)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		<-ctx.Done()

		logger.Info("Shutting down investor portal...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	}()

	logger.Info("Starting investor portal", "port", cfg.Server.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
}

func newMailer(cfg *config.Config) mailer.Service {
	switch {
	case cfg.Email.DevMode:
		return mailer.NewDevMailer()
	case cfg.Email.MailerSendKey != "":
		return mailer.NewMailerSend(cfg.Email.MailerSendKey, cfg.Email.FromName, cfg.Email.From,
			cfg.Email.Variant, cfg.Auth.LoginCodeTTL)
	default:
		return mailer.NewSMTPMailer(cfg.Email.SMTPHost, cfg.Email.SMTPPort, cfg.Email.From,
			cfg.Email.SMTPUser, cfg.Email.SMTPPass, cfg.Email.SMTPUseTLS,
			cfg.Email.Variant, cfg.Auth.LoginCodeTTL)
	}
}

// sweepIdleSessions closes viewer sessions that went quiet. Runs until the
// process shuts down.
func sweepIdleSessions(ctx context.Context, svc service.AnalyticsService, idleFor time.Duration) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			closed, err := svc.CloseIdleSessions(ctx, idleFor)
			if err != nil {
				logger.Error("Idle session sweep failed", "error", err)
				continue
			}
			if closed > 0 {
				logger.Info("Closed idle viewer sessions", "count", closed)
			}
		}
	}
}

func cleanupExpiredLogins(ctx context.Context, svc service.AuthService) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := svc.CleanupExpired(ctx)
			if err != nil {
				logger.Error("Login artifact cleanup failed", "error", err)
				continue
			}
			if deleted > 0 {
				logger.Info("Deleted expired login artifacts", "count", deleted)
			}
		}
	}
}
