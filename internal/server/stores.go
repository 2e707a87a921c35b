package server

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"cloud.google.com/go/datastore"
	"github.com/alexedwards/scs/v2"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	oa "github.com/panyam/secureauth"
	"github.com/panyam/secureauth/internal/config"
	"github.com/panyam/secureauth/stores"
	"github.com/panyam/secureauth/stores/gae"
	gormstore "github.com/panyam/secureauth/stores/gorm"
)

// backend is an opened credential store plus its session store.
type backend struct {
	credentials oa.CredentialStore
	sessions    scs.Store

	// sweep drops expired sessions; nil when the store expires them itself
	sweep func(ctx context.Context) (int64, error)
	close func() error
}

func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	switch cfg.Store.Driver {
	case config.DriverFS:
		return openFS(cfg.Store.Path)
	case config.DriverSQLite:
		if err := os.MkdirAll(cfg.Store.Path, 0700); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		dsn := filepath.Join(cfg.Store.Path, "secureauth.db")
		// one writer avoids SQLITE_BUSY under concurrent registrations
		return openGorm(sqlite.Open(dsn), 1, 1)
	case config.DriverPostgres:
		return openGorm(postgres.Open(cfg.Postgres.DSN()), cfg.Postgres.MaxOpenConns, cfg.Postgres.MaxIdleConns)
	case config.DriverDatastore:
		return openDatastore(ctx, cfg.Datastore)
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

func openFS(path string) (*backend, error) {
	credentials, err := stores.NewFSCredentialStore(path)
	if err != nil {
		return nil, err
	}
	sessions, err := stores.NewFSSessionStore(path)
	if err != nil {
		return nil, err
	}
	return &backend{
		credentials: credentials,
		sessions:    sessions,
		sweep: func(ctx context.Context) (int64, error) {
			n, err := sessions.Cleanup()
			return int64(n), err
		},
		close: func() error { return nil },
	}, nil
}

func openGorm(dialector gorm.Dialector, maxOpen, maxIdle int) (*backend, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)

	if err := gormstore.AutoMigrate(db); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	sessions := gormstore.NewSessionStore(db)
	return &backend{
		credentials: gormstore.NewCredentialStore(db),
		sessions:    sessions,
		sweep:       sessions.DeleteExpired,
		close:       sqlDB.Close,
	}, nil
}

func openDatastore(ctx context.Context, cfg config.Datastore) (*backend, error) {
	client, err := datastore.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("datastore client: %w", err)
	}
	sessions := gae.NewSessionStore(client, cfg.Namespace)
	return &backend{
		credentials: gae.NewCredentialStore(client, cfg.Namespace),
		sessions:    sessions,
		sweep: func(ctx context.Context) (int64, error) {
			n, err := sessions.DeleteExpired(ctx)
			return int64(n), err
		},
		close: client.Close,
	}, nil
}
