package database

import (
	"context"
	"strings"
	"time"

	"galaxy_ai_go_backend/cmd/api/config"
	"galaxy_ai_go_backend/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Connect opens the relational store selected by the configuration.
func Connect(ctx context.Context, cfg *config.Config) (*gorm.DB, error) {
	switch cfg.DBDriver {
	case "sqlite":
		return OpenSQLite(cfg.SQLitePath)
	case "postgres":
		return OpenPostgres(ctx, cfg.DBURL)
	default:
		return nil, errors.Errorf("unsupported database driver %q", cfg.DBDriver)
	}
}

// OpenPostgres builds a pgx pool and hands it to gorm.
func OpenPostgres(ctx context.Context, dsn string) (*gorm.DB, error) {
	poolCfg, err := pgxpool.ParseConfig(normalizeDSN(dsn))
	if err != nil {
		return nil, errors.Wrap(err, "postgres: parse config")
	}
	if poolCfg.MaxConns == 0 {
		poolCfg.MaxConns = 4
	}
	if poolCfg.MaxConnIdleTime == 0 {
		poolCfg.MaxConnIdleTime = 5 * time.Minute
	}
	if poolCfg.MaxConnLifetime == 0 {
		poolCfg.MaxConnLifetime = 60 * time.Minute
	}
	if poolCfg.HealthCheckPeriod == 0 {
		poolCfg.HealthCheckPeriod = 1 * time.Minute
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, errors.Wrap(err, "postgres: new pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "postgres: ping")
	}

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: stdlib.OpenDBFromPool(pool)}), &gorm.Config{TranslateError: true})
	if err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "postgres: open gorm")
	}
	return db, nil
}

// OpenSQLite opens a sqlite database at path. Foreign keys are enforced so
// that deleting a conversation removes its messages, and constraint errors are
// translated to gorm's sentinel errors.
func OpenSQLite(path string, opts ...gorm.Option) (*gorm.DB, error) {
	dsn := path
	if strings.Contains(dsn, "?") {
		dsn += "&_foreign_keys=on"
	} else {
		dsn += "?_foreign_keys=on"
	}
	if len(opts) == 0 {
		opts = []gorm.Option{&gorm.Config{}}
	}
	db, err := gorm.Open(sqlite.Open(dsn), opts...)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite: open")
	}
	// Stores match on gorm.ErrDuplicatedKey whatever config the caller passed.
	db.Config.TranslateError = true
	return db, nil
}

// Migrate creates or updates the schema for every persisted model.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.User{}, &models.Token{}, &models.Conversation{}, &models.Message{}); err != nil {
		return errors.Wrap(err, "auto migrate")
	}
	return nil
}

// normalizeDSN converts driver-suffixed URLs (postgresql+asyncpg://, as found in
// .env files shared with other stacks) to a pgx-compatible DSN.
func normalizeDSN(dsn string) string {
	s := strings.TrimSpace(dsn)
	for _, prefix := range []string{"postgresql+asyncpg://", "postgresql+psycopg2://", "postgresql+pgx://"} {
		s = strings.Replace(s, prefix, "postgresql://", 1)
	}
	for _, prefix := range []string{"postgres+asyncpg://", "postgres+pgx://"} {
		s = strings.Replace(s, prefix, "postgres://", 1)
	}
	return s
}
