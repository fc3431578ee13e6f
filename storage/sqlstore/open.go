package sqlstore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/drorzp/justel-pipeline/core"
	"github.com/drorzp/justel-pipeline/storage"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Default table names.
const (
	DefaultLawTable      = "laws"
	DefaultContentTable  = "article_content"
	DefaultSnapshotTable = "article_content_snapshot"
)

// Tables names the tables the repository uses. Schema is optional and is
// ignored by sqlite.
type Tables struct {
	Schema   string
	Laws     string
	Content  string
	Snapshot string
}

// DefaultTables returns the default table names without a schema.
func DefaultTables() Tables {
	return Tables{
		Laws:     DefaultLawTable,
		Content:  DefaultContentTable,
		Snapshot: DefaultSnapshotTable,
	}
}

// Validate checks every name with core.ValidateIdentifier.
func (t Tables) Validate() error {
	if t.Schema != "" {
		if err := core.ValidateIdentifier(t.Schema); err != nil {
			return fmt.Errorf("schema: %w", err)
		}
	}
	for _, name := range []string{t.Laws, t.Content, t.Snapshot} {
		if err := core.ValidateIdentifier(name); err != nil {
			return fmt.Errorf("table: %w", err)
		}
	}
	return nil
}

func (t Tables) qualify(name string) string {
	if t.Schema == "" {
		return name
	}
	return t.Schema + "." + name
}

type options struct {
	tables      Tables
	logger      *slog.Logger
	autoMigrate bool
}

// Option configures a Repository.
type Option func(*options)

// WithTables overrides the table names.
func WithTables(t Tables) Option {
	return func(o *options) {
		o.tables = t
	}
}

// WithLogger sets a custom logger. SQL errors and slow queries are logged
// through it.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithoutMigrate skips creating the tables on open.
func WithoutMigrate() Option {
	return func(o *options) {
		o.autoMigrate = false
	}
}

// Open connects to the database named by url and returns a repository.
func Open(ctx context.Context, url string, opts ...Option) (storage.ContentRepository, error) {
	o := options{tables: DefaultTables(), logger: slog.Default(), autoMigrate: true}
	for _, opt := range opts {
		opt(&o)
	}

	dialector, err := Dialector(url)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.NewSlogLogger(o.logger.With("component", "sql"), gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	repo, err := newRepository(ctx, db, o)
	if err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			sqlDB.Close()
		}
		return nil, err
	}
	return repo, nil
}

// NewRepository wraps an open gorm handle.
func NewRepository(ctx context.Context, db *gorm.DB, opts ...Option) (storage.ContentRepository, error) {
	o := options{tables: DefaultTables(), logger: slog.Default(), autoMigrate: true}
	for _, opt := range opts {
		opt(&o)
	}
	return newRepository(ctx, db, o)
}

// Dialector picks the gorm driver for a database URL.
func Dialector(url string) (gorm.Dialector, error) {
	switch {
	case strings.HasPrefix(url, "sqlite://"):
		return sqlite.Open(strings.TrimPrefix(url, "sqlite://")), nil
	case strings.HasPrefix(url, "sqlite:"):
		return sqlite.Open(strings.TrimPrefix(url, "sqlite:")), nil
	case strings.HasPrefix(url, "file:"), url == ":memory:":
		return sqlite.Open(url), nil
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return postgres.Open(url), nil
	case strings.HasPrefix(url, "mysql://"):
		dsn := strings.TrimPrefix(url, "mysql://")
		if !strings.Contains(dsn, "parseTime=") {
			if strings.Contains(dsn, "?") {
				dsn += "&parseTime=true"
			} else {
				dsn += "?parseTime=true"
			}
		}
		return mysql.Open(dsn), nil
	default:
		return nil, fmt.Errorf("%w: %q", storage.ErrUnsupportedDriver, redact(url))
	}
}

// redact drops credentials from a URL for error messages.
func redact(url string) string {
	if i := strings.Index(url, "@"); i >= 0 {
		if j := strings.Index(url, "://"); j >= 0 && j < i {
			return url[:j+3] + "***" + url[i:]
		}
		return "***" + url[i:]
	}
	return url
}
