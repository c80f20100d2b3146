package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const sessionTable = "pv_session"

// dialect captures the differences between the SQL databases we support.
type dialect struct {
	driver      string
	dollarBinds bool
	createTable string
}

var (
	sqliteDialect = dialect{
		driver:      "sqlite",
		createTable: `CREATE TABLE IF NOT EXISTS ` + sessionTable + ` (
			browser    TEXT    NOT NULL,
			name       TEXT    NOT NULL,
			value      TEXT    NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (browser, name)
		)`,
	}
	postgresDialect = dialect{
		driver:      "postgres",
		dollarBinds: true,
		createTable: `CREATE TABLE IF NOT EXISTS ` + sessionTable + ` (
			browser    TEXT   NOT NULL,
			name       TEXT   NOT NULL,
			value      TEXT   NOT NULL,
			updated_at BIGINT NOT NULL,
			PRIMARY KEY (browser, name)
		)`,
	}
)

// rebind rewrites ? placeholders for dialects that number them.
func (d dialect) rebind(query string) string {
	if !d.dollarBinds {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SQL is a backend on a SQL database: one row per browser and key.
type SQL struct {
	db    *sql.DB
	d     dialect
	ttl   time.Duration
	retry RetryConfig
	log   *zap.Logger

	// For background purging of idle browsers
	purgeInterval time.Duration
	stopPurge     chan struct{}
	stopOnce      sync.Once
}

// OpenSQLite opens (creating if needed) a sqlite database at path.
func OpenSQLite(ctx context.Context, path string, ttl time.Duration, logger *zap.Logger) (*SQL, error) {
	if path == "" {
		path = "patternview.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("sqlite store: failed to create %s: %w", dir, err)
		}
	}
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open(sqliteDialect.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: failed to open database: %w", err)
	}
	// A single writer avoids SQLITE_BUSY between our own connections.
	db.SetMaxOpenConns(1)

	return newSQL(ctx, db, sqliteDialect, ttl, RetryConfig{}, logger.With(zap.String("driver", "sqlite")))
}

// OpenPostgres connects to postgres using dsn.
func OpenPostgres(ctx context.Context, dsn string, ttl time.Duration, retry RetryConfig, logger *zap.Logger) (*SQL, error) {
	if dsn == "" {
		dsn = os.Getenv("DATABASE_URL")
	}
	if dsn == "" {
		return nil, fmt.Errorf("postgres store: database connection required (set storage.dsn or DATABASE_URL env)")
	}

	db, err := sql.Open(postgresDialect.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	return newSQL(ctx, db, postgresDialect, ttl, retry, logger.With(zap.String("driver", "postgres")))
}

func newSQL(ctx context.Context, db *sql.DB, d dialect, ttl time.Duration, retry RetryConfig, logger *zap.Logger) (*SQL, error) {
	s := &SQL{
		db:            db,
		d:             d,
		ttl:           ttl,
		retry:         retry,
		log:           logger,
		purgeInterval: time.Hour,
		stopPurge:     make(chan struct{}),
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.exec(pingCtx, "ping", func(ctx context.Context) error { return db.PingContext(ctx) }); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s store: failed to connect: %w", d.driver, err)
	}
	if err := s.exec(ctx, "migrate", func(ctx context.Context) error {
		_, err := db.ExecContext(ctx, d.createTable)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s store: failed to create table: %w", d.driver, err)
	}

	if ttl > 0 {
		go s.purgeLoop()
	}
	return s, nil
}

func (s *SQL) exec(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	_, err := withRetry(ctx, s.log, op, s.retry, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func (s *SQL) Get(ctx context.Context, browser, key string) (string, bool, error) {
	q := s.d.rebind(`SELECT value FROM ` + sessionTable + ` WHERE browser = ? AND name = ?`)
	var (
		value string
		found bool
	)
	err := s.exec(ctx, "get", func(ctx context.Context) error {
		err := s.db.QueryRowContext(ctx, q, browser, key).Scan(&value)
		if errors.Is(err, sql.ErrNoRows) {
			found = false
			return nil
		}
		found = err == nil
		return err
	})
	if err != nil {
		return "", false, fmt.Errorf("%s store: get %s: %w", s.d.driver, key, err)
	}
	return value, found, nil
}

func (s *SQL) Set(ctx context.Context, browser, key, value string) error {
	q := s.d.rebind(`INSERT INTO ` + sessionTable + ` (browser, name, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (browser, name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`)
	err := s.exec(ctx, "set", func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, q, browser, key, value, time.Now().Unix())
		return err
	})
	if err != nil {
		return fmt.Errorf("%s store: set %s: %w", s.d.driver, key, err)
	}
	return nil
}

func (s *SQL) Delete(ctx context.Context, browser string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	q := s.d.rebind(`DELETE FROM ` + sessionTable + ` WHERE browser = ? AND name = ?`)
	err := s.exec(ctx, "delete", func(ctx context.Context) error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()
		for _, k := range keys {
			if _, err := tx.ExecContext(ctx, q, browser, k); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return fmt.Errorf("%s store: delete: %w", s.d.driver, err)
	}
	return nil
}

func (s *SQL) Keys(ctx context.Context, browser, prefix string) ([]string, error) {
	q := s.d.rebind(`SELECT name FROM ` + sessionTable + ` WHERE browser = ? AND name LIKE ? ESCAPE '\' ORDER BY name`)
	var out []string
	err := s.exec(ctx, "keys", func(ctx context.Context) error {
		out = out[:0]
		rows, err := s.db.QueryContext(ctx, q, browser, escapeLike(prefix)+"%")
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				return err
			}
			out = append(out, name)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("%s store: keys: %w", s.d.driver, err)
	}
	return out, nil
}

// Purge drops every browser whose most recent write is older than the TTL.
func (s *SQL) Purge(ctx context.Context) (int64, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-s.ttl).Unix()
	q := s.d.rebind(`DELETE FROM ` + sessionTable + ` WHERE browser IN (
		SELECT browser FROM ` + sessionTable + ` GROUP BY browser HAVING MAX(updated_at) < ?)`)

	var n int64
	err := s.exec(ctx, "purge", func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx, q, cutoff)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	return n, err
}

func (s *SQL) purgeLoop() {
	ticker := time.NewTicker(s.purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			if n, err := s.Purge(ctx); err != nil {
				s.log.Warn("purge failed", zap.Error(err))
			} else if n > 0 {
				s.log.Debug("purged idle session rows", zap.Int64("rows", n))
			}
			cancel()
		case <-s.stopPurge:
			return
		}
	}
}

// Close stops purging and closes the database. Safe to call multiple times.
func (s *SQL) Close() error {
	var err error
	s.stopOnce.Do(func() {
		close(s.stopPurge)
		err = s.db.Close()
	})
	return err
}
