package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"blockhost-portal/internal/analytics"
	"blockhost-portal/internal/common/config"
	"blockhost-portal/internal/common/database"
	"blockhost-portal/internal/common/logger"
	"blockhost-portal/internal/consent"
	"blockhost-portal/internal/storage"
)

// session holds the device-local state shared by the interactive commands.
type session struct {
	log     logger.Logger
	store   storage.Storage
	consent *consent.Store
	gate    *analytics.Gate
	closers []func()
}

func openSession(ctx context.Context) (*session, error) {
	log := newLogger()
	s := &session{log: log}

	st, err := s.openStorage(ctx)
	if err != nil {
		return nil, err
	}
	s.store = st

	transport, err := newAnalyticsTransport()
	if err != nil {
		return nil, err
	}
	s.gate = analytics.NewGate(transport, log)

	s.consent = consent.NewStore(st, log)
	unsubscribe := s.consent.Subscribe(func(rec consent.Record) {
		s.gate.Apply(ctx, rec)
	})
	s.closers = append(s.closers, unsubscribe)

	state := s.consent.Load()
	if state.HasDecided {
		s.gate.Apply(ctx, state.Consent)
	}
	return s, nil
}

func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func (s *session) openStorage(ctx context.Context) (storage.Storage, error) {
	switch kind := settings.GetString("store"); kind {
	case "memory":
		return storage.NewMemoryStorage(), nil
	case "file":
		path := settings.GetString("store-path")
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
		return storage.NewFileStorage(path, s.log)
	case "redis":
		rdb, err := database.NewRedis(ctx, config.RedisConfig{Address: settings.GetString("redis-addr")})
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() { _ = rdb.Close() })
		return storage.NewRedisStorage(rdb, settings.GetString("redis-prefix")), nil
	default:
		return nil, fmt.Errorf("unknown store %q (want memory, file or redis)", kind)
	}
}

func newAnalyticsTransport() (analytics.Transport, error) {
	url := settings.GetString("analytics-url")
	if url == "" {
		return analytics.NopTransport{}, nil
	}
	es, err := database.NewElasticsearch(config.ElasticsearchConfig{Addresses: []string{url}})
	if err != nil {
		return nil, err
	}
	return analytics.NewElasticsearchTransport(es, settings.GetString("analytics-index")), nil
}
