package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/kapu/untranslate-go/internal/config"
	"github.com/kapu/untranslate-go/internal/domain"
)

// PostgresJournal persists restoration outcomes and guard suppression
// totals. Writes are fire-and-forget: failures are logged and swallowed so
// the page path never waits on the database.
type PostgresJournal struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresJournal(cfg config.PostgresConfig, logger *zap.Logger) (*PostgresJournal, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	j := &PostgresJournal{db: db, logger: logger}
	if err := j.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("Audit journal connected",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Database),
	)

	return j, nil
}

func (j *PostgresJournal) ensureSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS restore_outcomes (
			id      BIGSERIAL PRIMARY KEY,
			session TEXT        NOT NULL,
			key     TEXT        NOT NULL,
			field   TEXT        NOT NULL,
			action  TEXT        NOT NULL,
			at      TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS guard_suppressions (
			id         BIGSERIAL PRIMARY KEY,
			session    TEXT        NOT NULL,
			suppressed BIGINT      NOT NULL,
			at         TIMESTAMPTZ NOT NULL
		);
	`
	if _, err := j.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure audit schema: %w", err)
	}
	return nil
}

func (j *PostgresJournal) Record(ctx context.Context, outcome domain.Outcome) {
	query := `
		INSERT INTO restore_outcomes (session, key, field, action, at)
		VALUES ($1, $2, $3, $4, $5)
	`

	at := outcome.At
	if at.IsZero() {
		at = time.Now()
	}

	_, err := j.db.ExecContext(ctx, query,
		outcome.Session, outcome.Key, string(outcome.Field), string(outcome.Action), at)
	if err != nil {
		j.logger.Warn("Audit outcome write failed",
			zap.String("session", outcome.Session),
			zap.String("field", string(outcome.Field)),
			zap.Error(err))
	}
}

func (j *PostgresJournal) RecordSuppressions(ctx context.Context, session string, count uint64) {
	if count == 0 {
		return
	}

	query := `
		INSERT INTO guard_suppressions (session, suppressed, at)
		VALUES ($1, $2, $3)
	`

	if _, err := j.db.ExecContext(ctx, query, session, int64(count), time.Now()); err != nil {
		j.logger.Warn("Guard suppression write failed",
			zap.String("session", session),
			zap.Uint64("suppressed", count),
			zap.Error(err))
	}
}

func (j *PostgresJournal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}
