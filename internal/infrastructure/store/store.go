// Package store opens the item document collection selected by configuration.
package store

import (
	"context"
	"fmt"
	"io"

	"stockroom/internal/domain/item"
	"stockroom/internal/infrastructure/firebase"
	"stockroom/internal/infrastructure/firestore"
	"stockroom/internal/infrastructure/memory"
	"stockroom/internal/infrastructure/postgres"
	"stockroom/internal/infrastructure/postgres/listener"
	"stockroom/internal/logging"
	"stockroom/internal/shared/config"
)

// Store holds an open collection and the clients behind it.
type Store struct {
	Collection item.Collection

	// App is nil unless the configuration needs Firebase.
	App *firebase.App

	closers []io.Closer
}

// Open connects to the configured backend. On error nothing is left open.
func Open(ctx context.Context, cfg *config.Config, logger logging.Logger) (*Store, error) {
	s := &Store{}

	if cfg.NeedsFirebase() {
		app, err := firebase.NewApp(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
		if err != nil {
			return nil, err
		}
		s.App = app
		logger.Info(ctx, "firebase app initialized", "project", cfg.Firebase.ProjectID)
	}

	coll, err := s.openCollection(ctx, cfg, logger)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Collection = coll
	return s, nil
}

func (s *Store) openCollection(ctx context.Context, cfg *config.Config, logger logging.Logger) (item.Collection, error) {
	switch cfg.Store.Backend {
	case config.BackendFirestore:
		client, err := s.App.Firestore(ctx)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, client)
		logger.Info(ctx, "using firestore store", "collection", cfg.Store.Collection)
		return firestore.NewCollection(client, cfg.Store.Collection), nil

	case config.BackendPostgres:
		connStr := cfg.Database.ConnectionString()
		db, err := postgres.New(ctx, connStr, postgres.PoolConfig{
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, db)
		logger.Info(ctx, "connected to database", "host", cfg.Database.Host, "db", cfg.Database.DBName)

		if err := postgres.Migrate(ctx, db.DB); err != nil {
			return nil, err
		}

		repo := postgres.NewDocumentRepository(db, cfg.Store.Collection)
		l := listener.NewDocumentListener(connStr, postgres.NotifyChannel, repo, logger.With("component", "pg_listener"))
		logger.Info(ctx, "using postgres store", "collection", cfg.Store.Collection)
		return postgres.NewCollection(repo, l), nil

	case config.BackendMemory:
		logger.Warn(ctx, "using in-memory store, data is lost on restart")
		return memory.NewCollection(), nil
	}

	return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}

// Close releases clients in reverse order of opening.
func (s *Store) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i].Close()
	}
	s.closers = nil
}
