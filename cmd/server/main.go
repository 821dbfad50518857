package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quizdeck/internal/config"
	credentialrepo "quizdeck/internal/credential/repository"
	"quizdeck/internal/db"
	identityhandler "quizdeck/internal/identity/handler"
	identityservice "quizdeck/internal/identity/service"
	membershiphandler "quizdeck/internal/membership/handler"
	membershiprepo "quizdeck/internal/membership/repository"
	membershipservice "quizdeck/internal/membership/service"
	"quizdeck/internal/metrics"
	"quizdeck/internal/notification"
	organizationhandler "quizdeck/internal/organization/handler"
	organizationrepo "quizdeck/internal/organization/repository"
	organizationservice "quizdeck/internal/organization/service"
	"quizdeck/internal/security"
	"quizdeck/internal/server"
	"quizdeck/internal/telemetry/otel"
	userrepo "quizdeck/internal/user/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	ctx := context.Background()

	providers, err := otel.NewProviders(ctx, cfg.OTLPEndpoint, "quizdeck-auth", false)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = providers.Shutdown(shutdownCtx)
	}()

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	m := metrics.New()
	m.RegisterDB(conn)

	users := userrepo.NewPostgresRepository(conn)
	creds := credentialrepo.NewPostgresRepository(conn)
	memberships := membershiprepo.NewPostgresRepository(conn)
	organizations := organizationrepo.NewPostgresRepository(conn)

	tokens := security.NewTokenProvider([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL())
	hasher := security.NewHasher(cfg.BcryptCost)
	mailer := notification.NewMailerClient(cfg.MailerAPIKey, cfg.MailerBaseURL, cfg.MailerFrom)
	sender := &notification.CountingSender{Inner: mailer, Sent: m.RecoveryCodesSentTotal}

	authSvc := identityservice.NewAuthService(users, creds, sender, hasher, tokens, cfg.CodeTTL())
	membershipSvc := membershipservice.New(memberships, users)
	orgSvc := organizationservice.New(organizations, membershipSvc)

	router := server.NewRouter(server.RouterDeps{
		Identity:      identityhandler.New(authSvc, m),
		Organizations: organizationhandler.New(orgSvc),
		Memberships:   membershiphandler.New(membershipSvc),
		Tokens:        tokens,
		Metrics:       m,
		DB:            conn,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("http server stopped")
}
