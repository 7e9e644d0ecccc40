// cmd/portal-server/main.go
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"blockhost-portal/internal/analytics"
	"blockhost-portal/internal/common/auth"
	awsclients "blockhost-portal/internal/common/aws"
	"blockhost-portal/internal/common/config"
	"blockhost-portal/internal/common/database"
	"blockhost-portal/internal/common/logger"
	"blockhost-portal/internal/common/observability"
	"blockhost-portal/internal/common/zoho"
	"blockhost-portal/internal/identity"
	"blockhost-portal/internal/notify"
	"blockhost-portal/internal/panel"
	"blockhost-portal/internal/proxy"
	"blockhost-portal/internal/server"
)

// retryWithBackoff retries startup dependencies; request handlers never retry.
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("starting portal server",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Identity store ---
	var db *sql.DB
	err = retryWithBackoff(func() error {
		var err error
		db, err = database.NewPostgres(ctx, cfg.Database.Postgres)
		return err
	}, 10, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer db.Close()

	var identities identity.Repository = identity.NewPostgresRepository(db)
	if cfg.Database.Redis.Address != "" {
		var rdb *redis.Client
		err = retryWithBackoff(func() error {
			var err error
			rdb, err = database.NewRedis(ctx, cfg.Database.Redis)
			return err
		}, 5, time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Warn("identity cache disabled", zap.Error(err))
		} else {
			defer rdb.Close()
			identities = identity.NewCachedRepository(identities, rdb, identity.DefaultCacheTTL, log)
		}
	}

	// --- Dashboard proxy ---
	authenticator, err := auth.New(cfg.Auth)
	if err != nil {
		zapLog.Fatal("auth setup failed", zap.Error(err))
	}
	panelClient := panel.NewClient(cfg.Panel, obs)
	proxyHandler := proxy.NewHandler(proxy.NewService(authenticator, identities, panelClient, log), log)

	// --- Application dispatcher ---
	aws, err := awsclients.NewClients(ctx, cfg.Notifications.AWS.Region)
	if err != nil {
		zapLog.Fatal("aws setup failed", zap.Error(err))
	}

	var crm notify.CRM
	if cfg.Integrations.Zoho.Enabled {
		z := cfg.Integrations.Zoho
		crm = zoho.NewCRMClient(z.APIKey, z.AuthToken, z.BaseURL)
	}

	dispatcher := notify.NewDispatcher(&notify.Config{
		FromEmail:         cfg.Notifications.Email.FromEmail,
		StandardRecipient: cfg.Notifications.Email.StandardRecipient,
		FoundingRecipient: cfg.Notifications.Email.FoundingRecipient,
		SNSEnabled:        cfg.Notifications.SNS.Enabled,
		SNSTopicARN:       cfg.Notifications.SNS.TopicARN,
		CRMEnabled:        cfg.Integrations.Zoho.Enabled,
	}, aws.SES, aws.SNS, crm, log)

	if cfg.Analytics.Enabled {
		es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			zapLog.Fatal("elasticsearch setup failed", zap.Error(err))
		}
		events := analytics.NewElasticsearchTransport(es, cfg.Analytics.Index)
		err = retryWithBackoff(func() error {
			return events.Init(ctx)
		}, 5, time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Warn("application events disabled", zap.Error(err))
		} else {
			dispatcher.WithEvents(events)
		}
	}

	srv := server.New(server.Options{
		Proxy:             proxyHandler,
		Applications:      dispatcher,
		RateLimiter:       server.NewRateLimiter(cfg.Server.RateLimit.RequestsPerMinute, cfg.Server.RateLimit.Burst),
		Logger:            log,
		TrustProxyHeaders: cfg.Server.TrustProxyHeaders,
	})

	err = srv.Run(ctx, cfg.Server.ListenAddr,
		config.GetDuration(cfg.Server.ReadTimeout),
		config.GetDuration(cfg.Server.WriteTimeout),
		config.GetDuration(cfg.Server.ShutdownTimeout),
	)
	if err != nil {
		zapLog.Error("server stopped with error", zap.Error(err))
		return
	}
	zapLog.Info("portal server stopped")
}
