// Command orgbase runs the organization management API server.
package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/orgbase/orgbase/pkg/api"
	"github.com/orgbase/orgbase/pkg/audit"
	"github.com/orgbase/orgbase/pkg/config"
	"github.com/orgbase/orgbase/pkg/email"
	"github.com/orgbase/orgbase/pkg/observability"
	"github.com/orgbase/orgbase/pkg/orgs"
	"github.com/orgbase/orgbase/pkg/storage/postgres"
	"github.com/orgbase/orgbase/pkg/tokens"
	"github.com/orgbase/orgbase/pkg/users"
)

func main() {
	// A missing .env is fine; production sets real environment variables.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}

	log := observability.NewLogger(cfg.LogLevel)

	dbCfg := postgres.DefaultConfig(cfg.Storage.URL)
	dbCfg.MaxConns = cfg.Storage.MaxOpenConns
	dbCfg.MinConns = cfg.Storage.MaxIdleConns
	dbCfg.MaxLifetime = cfg.Storage.ConnMaxLifetime
	db, err := postgres.Connect(dbCfg)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}

	if err := postgres.Migrate(context.Background(), db); err != nil {
		log.WithError(err).Fatal("failed to run migrations")
	}
	log.Info("database ready")

	tokenService, err := tokens.NewService([]byte(cfg.Tokens.Secret))
	if err != nil {
		log.WithError(err).Fatal("failed to initialize token service")
	}

	var sender email.Sender
	if cfg.SMTP.Host != "" {
		sender = email.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username,
			cfg.SMTP.Password, cfg.SMTP.FromName, cfg.SMTP.FromAddress)
		log.WithField("host", cfg.SMTP.Host).Info("sending mail over SMTP")
	} else {
		sender = email.NewLogSender(log)
		log.Warn("no SMTP host configured, magic links are logged instead of mailed")
	}

	metrics := observability.NewMetrics()
	recorder := audit.NewRecorder()
	recorder.Instrument(metrics.LogEntriesTotal)
	stopPoolSampler := metrics.PollDBPool(db, 15*time.Second)

	server := api.NewServer(api.Config{
		PublicURL:     cfg.PublicURL,
		SessionTTL:    cfg.Tokens.SessionTTL,
		SecureCookies: cfg.Tokens.SecureCookies,
	}, api.Deps{
		Users:    users.NewPostgresService(db, recorder),
		Orgs:     orgs.NewPostgresService(db, recorder),
		Tokens:   tokenService,
		Sender:   sender,
		AuditLog: audit.NewStore(db),
		Metrics:  metrics,
		Health:   observability.NewHealthChecker(db),
		Log:      log,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.WithField("addr", httpServer.Addr).Info("server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	err = observability.GracefulShutdown(log, httpServer, cfg.Server.ShutdownTimeout,
		func(context.Context) error {
			stopPoolSampler()
			return db.Close()
		},
	)
	if err != nil {
		os.Exit(1)
	}
}
