package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/redis/go-redis/v9"

	"github.com/Sternrassler/nsi-loader/pkg/config"
	"github.com/Sternrassler/nsi-loader/pkg/dictionary"
	"github.com/Sternrassler/nsi-loader/pkg/ingest"
	"github.com/Sternrassler/nsi-loader/pkg/pagination"
	"github.com/Sternrassler/nsi-loader/pkg/registry"
	"github.com/Sternrassler/nsi-loader/pkg/store"
	"github.com/Sternrassler/nsi-loader/pkg/syncstate"
)

// app holds the wired components of one command invocation.
type app struct {
	cfg     config.Config
	db      *sql.DB
	redis   *redis.Client
	reports *syncstate.Store
	writer  *store.Writer
	service *ingest.Service
}

// newApp wires the loader. withStore opens PostgreSQL and, when configured,
// Redis; without it only downloads are possible.
func newApp(ctx context.Context, cfg config.Config, withStore bool) (*app, error) {
	client, err := registry.New(cfg.Registry())
	if err != nil {
		return nil, fmt.Errorf("create registry client: %w", err)
	}
	downloader := pagination.NewDownloader(client, cfg.Pagination())

	a := &app{cfg: cfg}
	if !withStore {
		a.service = ingest.NewService(downloader, unavailableSaver{}, cfg.Dictionaries)
		return a, nil
	}

	a.db, err = store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(a.db); err != nil {
		a.Close()
		return nil, err
	}
	a.writer = store.NewWriter(a.db)

	var opts []ingest.Option
	if cfg.RedisURL != "" {
		a.redis, err = syncstate.Connect(ctx, cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.reports = syncstate.NewStore(a.redis)
		opts = append(opts, ingest.WithRecorder(a.reports))
	}

	a.service = ingest.NewService(downloader, a.writer, cfg.Dictionaries, opts...)
	return a, nil
}

// Close releases every open connection.
func (a *app) Close() error {
	var result *multierror.Error
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close redis: %w", err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close database: %w", err))
		}
	}
	return result.ErrorOrNil()
}

// errNoStore is returned when a download-only app is asked to save.
var errNoStore = errors.New("store is not configured for this command")

type unavailableSaver struct{}

func (unavailableSaver) Save(ctx context.Context, identifier string, records []dictionary.Record) (int, error) {
	return 0, errNoStore
}
