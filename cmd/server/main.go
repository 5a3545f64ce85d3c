// Command server runs the account-linking service: HTTP API, handshake
// waiters, and the audit worker, wired from environment configuration.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"qrlink/internal/apiprofile"
	"qrlink/internal/credential"
	"qrlink/internal/jwttoken"
	"qrlink/internal/linker/device"
	gwmemory "qrlink/internal/linker/gateway/memory"
	"qrlink/internal/linker/registry"
	"qrlink/internal/linker/service"
	"qrlink/internal/notify"
	"qrlink/internal/platform/config"
	"qrlink/internal/platform/httpserver"
	"qrlink/internal/platform/logger"
	"qrlink/internal/platform/metrics"
	"qrlink/internal/platform/postgres"
	"qrlink/internal/platform/redis"
	"qrlink/internal/ratelimit"
	httptransport "qrlink/internal/transport/http"
	"qrlink/pkg/platform/audit"
	"qrlink/pkg/platform/seal"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			log.Error("migration failed", "error", err)
			os.Exit(1)
		}
	}

	redisClient, err := redis.New(ctx, cfg.Redis())
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	var sealer *seal.Sealer
	if cfg.SealKey != "" {
		sealer, err = seal.New(cfg.SealKey)
		if err != nil {
			log.Error("invalid seal key", "error", err)
			os.Exit(1)
		}
	} else {
		log.Warn("QRLINK_SEAL_KEY not set, credential blobs are stored unencrypted")
	}

	var (
		profileStore    apiprofile.Store
		credentialStore credential.Store
		auditStore      audit.Store
	)
	if db != nil {
		profileStore = apiprofile.NewPostgresStore(db)
		credentialStore = credential.NewPostgresStore(db, sealer)
		auditStore = audit.NewPostgresStore(db)
	} else {
		log.Warn("QRLINK_DATABASE_URL not set, using in-memory stores")
		profileStore = apiprofile.NewInMemoryStore()
		credentialStore = credential.NewInMemoryStore()
		auditStore = audit.NewInMemoryStore()
	}
	if err := apiprofile.Seed(ctx, profileStore, log); err != nil {
		log.Error("failed to seed api profiles", "error", err)
		os.Exit(1)
	}

	var limiter ratelimit.Limiter = ratelimit.Unlimited{}
	if cfg.StartCooldown > 0 {
		if redisClient != nil {
			limiter = ratelimit.NewRedisCooldown(redisClient.Client, cfg.StartCooldown)
		} else {
			limiter = ratelimit.NewInMemoryCooldown(cfg.StartCooldown)
		}
	}

	var sink service.CompletionSink = notify.LogSink{Logger: log}
	if cfg.CompletionWebhookURL != "" {
		sink = notify.NewWebhook(cfg.CompletionWebhookURL, log)
	}

	m := metrics.New()
	recorder := audit.NewRecorder(log, 256)
	worker := audit.NewWorker(auditStore, recorder.Inbox(), log)

	// The in-process gateway stands in for the account service transport.
	// Swap in a wire implementation here once one is configured.
	gw := gwmemory.New(cfg.DevConfirmAfter)

	manager := service.NewManager(
		service.Config{
			ConfirmTimeout: cfg.ConfirmTimeout,
			AuthGrace:      cfg.AuthGrace,
		},
		service.Deps{
			Profiles:    profileStore,
			Credentials: credentialStore,
			Devices:     device.Random{},
			Gateway:     gw,
			Registry:    registry.New(log),
			Limiter:     limiter,
			Auditor:     recorder,
			Metrics:     m,
			Sink:        sink,
			Logger:      log,
		},
	)
	defer manager.Close()

	checks := map[string]httptransport.HealthCheck{}
	if db != nil {
		checks["postgres"] = db.PingContext
	}
	if redisClient != nil {
		checks["redis"] = redisClient.Health
	}

	handler := httptransport.New(manager, profileStore, recorder, log)
	router := httptransport.NewRouter(httptransport.RouterConfig{
		Handler:   handler,
		Validator: jwttoken.NewService(cfg.JWTSigningKey),
		Logger:    log,
		Checks:    checks,
	})
	srv := httpserver.New(cfg.Addr, router)

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return worker.Run(gctx)
	})
	group.Go(func() error {
		log.Info("starting qrlink server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
