package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/sirius-meet/internal/application"
	"github.com/example/sirius-meet/internal/config"
	"github.com/example/sirius-meet/internal/grant"
	httptransport "github.com/example/sirius-meet/internal/http"
	"github.com/example/sirius-meet/internal/ids"
	"github.com/example/sirius-meet/internal/obs"
	"github.com/example/sirius-meet/internal/persistence"
	"github.com/example/sirius-meet/internal/rtc"
)

// services groups the application layer built on top of one store.
type services struct {
	auth      *application.AuthService
	employees *application.EmployeeService
	meetings  *application.MeetingService
	rtc       *application.RTCService
}

func newServices(cfg config.Config, store persistence.Store, metrics application.Metrics, logger *slog.Logger) (*services, error) {
	now := time.Now

	signer, err := grant.NewSigner([]byte(cfg.SessionSecret), now)
	if err != nil {
		return nil, fmt.Errorf("create grant signer: %w", err)
	}
	issuer := rtc.NewTokenIssuer(rtc.Config{
		AppID:          cfg.RTCAppID,
		AppCertificate: cfg.RTCAppCertificate,
		TTL:            cfg.RTCTokenTTL,
	}, now)

	employeeRepo := newEmployeeRepositoryAdapter(store)

	return &services{
		auth: application.NewAuthServiceWithLogger(application.AuthServiceConfig{
			Employees:      employeeRepo,
			Sessions:       newSessionRepositoryAdapter(store),
			IDGenerator:    ids.NewSessionID,
			TokenGenerator: func() string { return ids.Token(32) },
			Now:            now,
			SessionTTL:     cfg.SessionTTL,
			StoreTimeout:   cfg.StoreTimeout,
		}, logger),
		employees: application.NewEmployeeServiceWithLogger(employeeRepo, now, cfg.StoreTimeout, logger),
		meetings: application.NewMeetingServiceWithLogger(application.MeetingServiceConfig{
			Meetings:     newMeetingRepositoryAdapter(store),
			Invites:      newInviteRepositoryAdapter(store),
			Participants: newParticipantRepositoryAdapter(store),
			Employees:    employeeRepo,
			Grants:       signer,
			Metrics:      metrics,
			IDGenerator:  ids.New,
			Now:          now,
			StoreTimeout: cfg.StoreTimeout,
		}, logger),
		rtc: application.NewRTCServiceWithLogger(issuer, signer, now, logger),
	}, nil
}

// newHandler wires the services behind the HTTP router. ctx bounds the
// background sweep of the invite rate limiter.
func newHandler(ctx context.Context, cfg config.Config, store persistence.Store, logger *slog.Logger) (http.Handler, error) {
	var (
		metrics     application.Metrics
		instruments httptransport.MetricsProvider
	)
	if cfg.MetricsEnabled {
		m := obs.New()
		metrics = m
		instruments = m
	}

	svc, err := newServices(cfg, store, metrics, logger)
	if err != nil {
		return nil, err
	}
	trusted, err := cfg.TrustedProxyPrefixes()
	if err != nil {
		return nil, err
	}

	return httptransport.NewRouter(httptransport.RouterConfig{
		Sessions:         httptransport.NewSessionHandler(svc.auth, logger),
		Employees:        httptransport.NewEmployeeHandler(svc.employees, svc.auth, logger),
		Meetings:         httptransport.NewMeetingHandler(svc.meetings, logger),
		Invites:          httptransport.NewInviteHandler(svc.meetings, logger),
		Participants:     httptransport.NewParticipantHandler(svc.meetings, logger),
		RTC:              httptransport.NewRTCHandler(svc.rtc, logger),
		Health:           httptransport.NewHealthHandler(store, logger),
		SessionValidator: svc.auth,
		PublicLimiter:    httptransport.NewRateLimiter(ctx, cfg.PublicRatePerSec, cfg.PublicRateBurst, logger),
		TrustedProxies:   trusted,
		Metrics:          instruments,
		Logger:           logger,
	}), nil
}

func configureHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    8 * 1024,
	}
}
