package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"

	"experiences/api/internal/app"
	"experiences/api/internal/archive"
	"experiences/api/internal/auth"
	"experiences/api/internal/authpw"
	"experiences/api/internal/config"
	"experiences/api/internal/email"
	"experiences/api/internal/export"
	"experiences/api/internal/metrics"
	"experiences/api/internal/notify"
	"experiences/api/internal/permission"
	"experiences/api/internal/search"
	"experiences/api/internal/session"
	"experiences/api/internal/storage"
	"experiences/api/internal/store"
)

func main() {
	configPath := pflag.String("config", os.Getenv(config.ConfigFileEnv), "path to a YAML config file")
	addr := pflag.String("addr", "", "listen address (overrides config)")
	reindex := pflag.Bool("reindex", false, "rebuild the search index from PostgreSQL on startup")
	pflag.Parse()

	bootLogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLogger.Error("load config", "error", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	if err := run(cfg, logger, *reindex); err != nil {
		logger.Error("api stopped", "error", err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func run(cfg config.Config, logger *slog.Logger, reindex bool) error {
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	migrations, err := store.Migrations(cfg.MigrationsDir)
	if err != nil {
		return err
	}
	if err := store.ApplyMigrations(ctx, db, migrations); err != nil {
		return err
	}
	dataStore := store.NewPostgresStore(db)

	m := metrics.New(prometheus.DefaultRegisterer)

	notifier, subscriber, closeNotify, err := newNotifier(cfg, logger)
	if err != nil {
		return err
	}
	defer closeNotify()

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logger)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, search.NewPgFTS(dataStore.DB()), logger)
	if reindex {
		searchService.ReindexAllFromPG(ctx)
	}

	if err := os.MkdirAll(cfg.ArchiveDir, 0o755); err != nil {
		return err
	}

	deps := app.Deps{
		Experiences: dataStore.Experiences(),
		Permissions: permission.NewMachine(dataStore.Permissions(), permission.WithWindow(cfg.EditWindow)),
		Roles:       dataStore.Users(),
		Users:       dataStore.Users(),
		Notifier:    notifier,
		Reports:     export.NewService(export.NewChromeRenderer(cfg.PDFTimeout)),
		Mailer:      email.NewService(newMailSender(cfg)),
		Search:      searchService,
		Archive:     archive.New(cfg.ArchiveDir),
		Auth:        authpw.NewService(dataStore.Users()),
		Tokens:      auth.NewIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL),
		Health:      dataStore,
		Metrics:     m,
		Logger:      logger,
	}

	if strings.TrimSpace(cfg.S3Endpoint) != "" {
		objects, err := storage.NewObjectStore(storage.Config{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			UseSSL:    cfg.S3UseSSL,
			LinkTTL:   cfg.S3LinkTTL,
		})
		if err != nil {
			return err
		}
		if err := objects.EnsureBucket(ctx); err != nil {
			logger.Warn("report bucket unavailable", "bucket", cfg.S3Bucket, "error", err)
		}
		deps.Publisher = objects
	} else {
		logger.Warn("object storage not configured, report generation disabled")
	}

	if strings.TrimSpace(cfg.RedisURL) != "" {
		revocations, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			logger.Warn("token revocation store unavailable, logout will not revoke tokens", "error", err)
		} else {
			defer revocations.Close()
			deps.Revocations = revocations
		}
	}

	service := app.New(deps)
	httpServer := app.NewHTTPServer(service, app.ServerOptions{
		CORSOrigin:       cfg.CORSOrigin,
		Logger:           logger,
		Metrics:          m,
		Gatherer:         prometheus.DefaultGatherer,
		Stream:           subscriber,
		EditRequestRate:  cfg.EditRequestRate,
		EditRequestBurst: cfg.EditRequestBurst,
	})
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("experiences api listening", "addr", cfg.Addr, "notify_backend", cfg.NotifyBackend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	service.Wait()
	return nil
}

// newNotifier builds the configured broadcaster. Redis also backs the
// dashboard stream; with Kafka it is used for the stream when reachable.
func newNotifier(cfg config.Config, logger *slog.Logger) (notify.Broadcaster, app.Subscriber, func(), error) {
	switch cfg.NotifyBackend {
	case "redis":
		redisNotify, err := notify.NewRedisBroadcaster(cfg.RedisURL)
		if err != nil {
			return nil, nil, nil, err
		}
		return redisNotify, redisNotify, func() { _ = redisNotify.Close() }, nil
	case "kafka":
		kafkaNotify, err := notify.NewKafkaBroadcaster(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return nil, nil, nil, err
		}
		if strings.TrimSpace(cfg.RedisURL) == "" {
			return kafkaNotify, nil, kafkaNotify.Close, nil
		}
		redisNotify, err := notify.NewRedisBroadcaster(cfg.RedisURL)
		if err != nil {
			logger.Warn("redis unavailable, notification stream disabled", "error", err)
			return kafkaNotify, nil, kafkaNotify.Close, nil
		}
		closeAll := func() {
			kafkaNotify.Close()
			_ = redisNotify.Close()
		}
		return notify.Multi{kafkaNotify, redisNotify}, redisNotify, closeAll, nil
	default:
		return notify.NewLogBroadcaster(logger), nil, func() {}, nil
	}
}

// newMailSender prefers the Brevo API and falls back to SMTP. An SMTP
// sender without a host reports itself as not configured.
func newMailSender(cfg config.Config) email.Sender {
	if strings.TrimSpace(cfg.BrevoAPIKey) != "" {
		return email.NewBrevoSender(email.BrevoConfig{
			APIKey:    cfg.BrevoAPIKey,
			FromEmail: cfg.SMTPFrom,
			FromName:  cfg.SMTPFromName,
		}, nil)
	}
	return email.NewSMTPSender(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})
}
