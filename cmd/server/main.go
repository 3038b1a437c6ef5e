// Copyright 2026 The Atelier Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/atelierhq/atelier/internal/audit"
	"github.com/atelierhq/atelier/internal/billing"
	"github.com/atelierhq/atelier/internal/config"
	"github.com/atelierhq/atelier/internal/identity"
	"github.com/atelierhq/atelier/internal/observability/logger"
	"github.com/atelierhq/atelier/internal/observability/metrics"
	"github.com/atelierhq/atelier/internal/observability/tracing"
	"github.com/atelierhq/atelier/internal/organization"
	"github.com/atelierhq/atelier/internal/project"
	"github.com/atelierhq/atelier/internal/revision"
	"github.com/atelierhq/atelier/internal/session"
	"github.com/atelierhq/atelier/internal/store/postgres"
	transportHTTP "github.com/atelierhq/atelier/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := runMigrate(cfg); err != nil {
			fmt.Printf("Migration failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	if err := run(cfg); err != nil {
		slog.Error("server exited", logger.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	slog.Info("starting atelier", slog.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		Environment:    cfg.Env,
		SamplingRate:   1.0,
	})
	if err != nil {
		slog.Error("failed to initialize tracer", logger.Error(err))
	} else {
		defer tracer.Shutdown(context.Background())
	}

	recorder, err := metrics.New(ctx, metrics.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		Environment:    cfg.Env,
		ExportInterval: cfg.Observability.MetricsInterval,
	})
	if err != nil {
		return fmt.Errorf("initialize metrics: %w", err)
	}
	defer recorder.Shutdown(context.Background())

	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	slog.Info("connected to database")

	sessionRepo := postgres.NewSessionRepository(db)
	gateOpts := []identity.GateOption{identity.WithIdleTimeout(cfg.Session.IdleTimeout)}
	if cfg.Auth.TokenSecret != "" {
		verifier, err := identity.NewTokenVerifier([]byte(cfg.Auth.TokenSecret), cfg.Auth.TokenIssuer)
		if err != nil {
			return fmt.Errorf("initialize token verifier: %w", err)
		}
		gateOpts = append(gateOpts, identity.WithTokenVerifier(verifier))
	}
	gate := identity.NewGate(postgres.NewUserRepository(db), sessionRepo, gateOpts...)

	projectTx := postgres.NewProjectTxRunner(db)
	projectService := project.NewService(projectTx, project.WithMetrics(recorder))
	revisionWorkflow := revision.NewWorkflow(projectTx,
		revision.WithMetrics(recorder),
		revision.WithMinCommentLength(cfg.Revision.MinCommentLength),
	)
	organizationService := organization.NewService(postgres.NewOrganizationTxRunner(db))
	billingService := billing.NewService(postgres.NewBillingTxRunner(db), billing.WithMetrics(recorder))
	sessionService := session.NewService(sessionRepo)

	if cfg.Billing.WebhookSecret == "" {
		slog.Warn("BILLING_WEBHOOK_SECRET is not set; payment webhooks are accepted without authentication")
	}

	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst,
		transportHTTP.WithTrustedProxies(cfg.RateLimit.TrustedProxies...),
	)
	defer rateLimiter.Stop()

	handler := transportHTTP.NewHandler(transportHTTP.Services{
		Auth:          gate,
		Projects:      projectService,
		Revisions:     revisionWorkflow,
		Organizations: organizationService,
		Billing:       billingService,
		AuditLogger:   audit.NewSlogLogger(),
	}, transportHTTP.Config{
		SessionCookieName: cfg.Session.CookieName,
		WebhookSecret:     cfg.Billing.WebhookSecret,
		WebhookHeader:     cfg.Billing.WebhookHeader,
		RequestTimeout:    cfg.Server.RequestTimeout,
	})

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      transportHTTP.NewRouter(handler, rateLimiter),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go cleanupSessions(ctx, sessionService, cfg.Session.CleanupInterval)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting http server", logger.Component("server"), logger.Operation("listen"), slog.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", logger.Error(err))
	}

	slog.Info("server stopped")
	return nil
}

func cleanupSessions(ctx context.Context, svc *session.Service, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := svc.CleanupExpired(ctx); err != nil {
				slog.ErrorContext(ctx, "failed to cleanup expired sessions", logger.Error(err))
			}
		}
	}
}

func openDB(ctx context.Context, cfg *config.Config) (*postgres.DB, error) {
	db, err := postgres.New(ctx, postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return db, nil
}

func runMigrate(cfg *config.Config) error {
	ctx := context.Background()
	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Println("Applying initial schema...")
	if err := db.Migrate(ctx, postgres.InitialSchema); err != nil {
		return err
	}
	fmt.Println("Migration successful.")
	return nil
}
