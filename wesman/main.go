package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/wesman-labs/wesman-go/internal/launcher/ica"
	"github.com/wesman-labs/wesman-go/internal/platform/auth"
	"github.com/wesman-labs/wesman-go/internal/platform/env"
	"github.com/wesman-labs/wesman-go/internal/platform/eventbus"
	"github.com/wesman-labs/wesman-go/internal/platform/httpserver"
	"github.com/wesman-labs/wesman-go/internal/platform/objectstore"
	"github.com/wesman-labs/wesman-go/internal/platform/postgres"
	analysisstore "github.com/wesman-labs/wesman-go/internal/repo/postgres"
	"github.com/wesman-labs/wesman-go/internal/service/analyses"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx := context.Background()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := env.String("WESMAN_HTTP_ADDR", ":8080")
	shutdownTimeout, err := env.Duration("WESMAN_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		logger.Error("invalid env", "error", err)
		os.Exit(2)
	}

	dbCfg, err := postgres.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid database config", "error", err)
		os.Exit(2)
	}
	db, err := postgres.Open(ctx, dbCfg)
	if err != nil {
		logger.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := postgres.Migrate(ctx, db); err != nil {
		logger.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	icaCfg, err := ica.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid ica config", "error", err)
		os.Exit(2)
	}
	launcher, err := ica.NewClient(ctx, icaCfg)
	if err != nil {
		logger.Error("ica client failed", "error", err)
		os.Exit(1)
	}

	eventCfg, err := eventbus.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid event config", "error", err)
		os.Exit(2)
	}
	publisher, err := eventbus.NewPublisher(db, eventCfg)
	if err != nil {
		logger.Error("event publisher failed", "error", err)
		os.Exit(1)
	}

	// Log listing is optional: without object store credentials the logs
	// endpoint reports the store as unconfigured.
	var objects *minio.Client
	if env.String("WESMAN_S3_ENDPOINT", "") != "" || env.String("WESMAN_S3_ACCESS_KEY", "") != "" {
		objectCfg, err := objectstore.ConfigFromEnv()
		if err != nil {
			logger.Error("invalid object store config", "error", err)
			os.Exit(2)
		}
		objects, err = objectstore.NewClient(objectCfg)
		if err != nil {
			logger.Error("object store client failed", "error", err)
			os.Exit(1)
		}
	}

	service := analyses.New(analysisstore.NewAnalysisStore(db), launcher, publisher)
	if service == nil {
		logger.Error("service wiring failed")
		os.Exit(1)
	}

	authCfg, err := auth.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid auth config", "error", err)
		os.Exit(2)
	}
	var authenticator auth.Authenticator
	switch authCfg.Mode {
	case auth.ModeOIDC:
		authenticator, err = auth.NewOIDCAuthenticator(ctx, authCfg)
		if err != nil {
			logger.Error("oidc authenticator failed", "error", err)
			os.Exit(1)
		}
	case auth.ModeDev:
		authenticator = auth.NewDevAuthenticator(authCfg)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", httpserver.Healthz("wesman"))
	mux.HandleFunc(
		"/readyz",
		httpserver.ReadyzWithChecks(
			"wesman",
			httpserver.ReadinessCheck{
				Name: "postgres",
				Check: func(ctx context.Context) error {
					checkCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
					defer cancel()
					return db.PingContext(checkCtx)
				},
			},
		),
	)

	api := newAnalysisAPI(logger, service, objects)
	api.register(mux)

	handler := auth.Middleware{
		Logger:        logger,
		Authenticator: authenticator,
		SkipPrefixes:  []string{"/healthz", "/readyz"},
	}.Wrap(mux)

	cfg := httpserver.Config{
		Service:         "wesman",
		Addr:            addr,
		ShutdownTimeout: shutdownTimeout,
	}

	if err := httpserver.Run(ctx, logger, cfg, httpserver.Wrap(logger, "wesman", handler)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}
