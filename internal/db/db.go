package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/stdlib"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// tzConfig holds timezone configuration for database connections.
type tzConfig struct {
	dbTimeZone   string
	scanLocation *time.Location
}

// newGormLogger routes gorm warnings through the process logger.
func newGormLogger() logger.Interface {
	return logger.New(
		log.StandardLogger(),
		logger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

// Options controls how Open connects.
type Options struct {
	DSN      string
	TimeZone string // IANA name applied to postgres sessions; empty means UTC.

	MaxOpenConns int
}

// Open opens a GORM connection; the dialect is inferred from the DSN.
func Open(opts Options) (*gorm.DB, error) {
	trimmed := strings.TrimSpace(opts.DSN)
	if trimmed == "" {
		return nil, fmt.Errorf("db: empty dsn")
	}

	dialect, err := detectDialectFromDSN(trimmed)
	if err != nil {
		return nil, err
	}
	switch dialect {
	case DialectPostgres:
		maxOpen := opts.MaxOpenConns
		if maxOpen <= 0 {
			maxOpen = 25
		}
		return openPostgres(trimmed, resolveTimeZone(opts.TimeZone), maxOpen)
	case DialectSQLite:
		return openSQLite(trimmed)
	default:
		return nil, fmt.Errorf("db: unsupported dialect: %s", dialect)
	}
}

// detectDialectFromDSN infers the dialect from a DSN string.
func detectDialectFromDSN(dsn string) (string, error) {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	switch {
	case strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://"):
		return DialectPostgres, nil
	case strings.Contains(lower, "host=") || strings.Contains(lower, "user=") || strings.Contains(lower, "dbname=") || strings.Contains(lower, "sslmode="):
		return DialectPostgres, nil
	case strings.HasPrefix(lower, "file:"),
		strings.HasPrefix(lower, "sqlite://"),
		strings.HasPrefix(lower, "sqlite3://"),
		!strings.Contains(lower, "://"):
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("db: unsupported dsn: %s", dsn)
	}
}

// openPostgres opens a PostgreSQL connection with timezone handling.
func openPostgres(dsn string, tz tzConfig, maxOpen int) (*gorm.DB, error) {
	sqlDB, err := openPostgresSQLDB(dsn, tz)
	if err != nil {
		return nil, err
	}

	conn, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: newGormLogger(),
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("db: open: %w", err)
	}

	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxOpen)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if errPing := sqlDB.PingContext(pingCtx); errPing != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("db: ping: %w", errPing)
	}

	return conn, nil
}

// openSQLite opens a SQLite database, creating its directory when needed.
func openSQLite(dsn string) (*gorm.DB, error) {
	target, path := sqliteTarget(dsn)
	if path != "" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if errMkdir := os.MkdirAll(dir, 0o755); errMkdir != nil {
				return nil, fmt.Errorf("db: create sqlite dir: %w", errMkdir)
			}
		}
	}

	conn, err := gorm.Open(sqlite.Open(target), &gorm.Config{Logger: newGormLogger()})
	if err != nil {
		return nil, fmt.Errorf("db: open sqlite: %w", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("db: open sqlite sql: %w", err)
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if errPing := sqlDB.PingContext(pingCtx); errPing != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("db: ping: %w", errPing)
	}
	return conn, nil
}

// openPostgresSQLDB opens a sql.DB with timezone-aware type mapping.
func openPostgresSQLDB(dsn string, tz tzConfig) (*sql.DB, error) {
	cfg, errParse := pgx.ParseConfig(dsn)
	if errParse != nil {
		return nil, fmt.Errorf("db: parse dsn: %w", errParse)
	}

	var options []stdlib.OptionOpenDB
	if tz.dbTimeZone != "" {
		cfg.RuntimeParams["timezone"] = tz.dbTimeZone
	}
	if tz.scanLocation != nil {
		options = append(options, stdlib.OptionAfterConnect(func(ctx context.Context, conn *pgx.Conn) error {
			loc := tz.scanLocation
			if loc == nil {
				return nil
			}
			conn.TypeMap().RegisterType(&pgtype.Type{
				Name:  "timestamp",
				OID:   pgtype.TimestampOID,
				Codec: &pgtype.TimestampCodec{ScanLocation: loc},
			})
			conn.TypeMap().RegisterType(&pgtype.Type{
				Name:  "timestamptz",
				OID:   pgtype.TimestamptzOID,
				Codec: &pgtype.TimestamptzCodec{ScanLocation: loc},
			})
			return nil
		}))
	}

	return stdlib.OpenDB(*cfg, options...), nil
}

// sqlitePragmas are applied by the driver on every pooled connection.
var sqlitePragmas = []string{
	"busy_timeout(5000)",
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"foreign_keys(1)",
}

// sqliteTarget turns a sqlite DSN into the driver DSN and the database file path.
// The path is empty for in-memory databases.
func sqliteTarget(dsn string) (string, string) {
	target := strings.TrimSpace(dsn)
	for _, scheme := range []string{"sqlite3://", "sqlite://"} {
		if len(target) >= len(scheme) && strings.EqualFold(target[:len(scheme)], scheme) {
			target = "file:" + target[len(scheme):]
			break
		}
	}

	location, query, _ := strings.Cut(target, "?")
	path := strings.TrimPrefix(strings.TrimPrefix(location, "file:"), "//")
	if strings.HasPrefix(path, ":memory:") {
		path = ""
	}

	if !strings.Contains(query, "_pragma=") {
		params := make([]string, 0, len(sqlitePragmas))
		for _, pragma := range sqlitePragmas {
			params = append(params, "_pragma="+pragma)
		}
		if query != "" {
			query += "&"
		}
		query += strings.Join(params, "&")
	}
	return location + "?" + query, path
}

// resolveTimeZone maps the configured IANA name onto the postgres session zone
// and the scan location for timestamps. Unknown names fall back to UTC.
func resolveTimeZone(configured string) tzConfig {
	name := strings.TrimPrefix(strings.TrimSpace(configured), ":")
	if name != "" {
		if loc, errLoad := time.LoadLocation(name); errLoad == nil {
			return tzConfig{dbTimeZone: name, scanLocation: loc}
		}
		log.WithField("timezone", configured).Warn("db: unknown timezone, using UTC")
	}
	return tzConfig{dbTimeZone: "UTC", scanLocation: time.UTC}
}
