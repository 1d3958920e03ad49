package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/okian/trialeval/internal/domain/badge"
	"github.com/okian/trialeval/internal/domain/model"
	"github.com/okian/trialeval/pkg/logger"
	"github.com/okian/trialeval/pkg/metrics"
)

// Connection pool defaults.
const (
	defaultMaxOpenConns    = 10
	defaultConnMaxLifetime = 5 * time.Minute
)

var schema = []string{ //nolint:gochecknoglobals // DDL
	`CREATE TABLE IF NOT EXISTS evaluation_results (
		submission_id VARCHAR(64)  NOT NULL,
		worker_id     VARCHAR(128) NOT NULL,
		task_id       VARCHAR(128) NOT NULL,
		status        VARCHAR(16)  NOT NULL,
		result        JSON         NOT NULL,
		badge         VARCHAR(16)  NOT NULL,
		upgraded      BOOLEAN      NOT NULL DEFAULT FALSE,
		error         TEXT,
		submitted_at  DATETIME(6)  NOT NULL,
		evaluated_at  DATETIME(6)  NULL,
		PRIMARY KEY (submission_id),
		INDEX idx_worker (worker_id)
	)`,
	`CREATE TABLE IF NOT EXISTS worker_progressions (
		worker_id         VARCHAR(128) NOT NULL,
		completed         INT          NOT NULL,
		passed            INT          NOT NULL,
		current_badge     VARCHAR(16)  NOT NULL,
		passed_categories JSON         NOT NULL,
		best_overall      INT          NOT NULL,
		updated_at        DATETIME(6)  NOT NULL,
		PRIMARY KEY (worker_id)
	)`,
}

// MySQLStore is a Store backed by MySQL through database/sql.
type MySQLStore struct {
	db              *sql.DB
	maxOpenConns    int
	connMaxLifetime time.Duration
	logger          logger.Logger
}

// NewMySQLStore connects using dsn, verifies the connection and creates
// the tables when missing. parseTime is always enabled.
func NewMySQLStore(ctx context.Context, dsn string, opts ...MySQLOption) (*MySQLStore, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("mysql connector: %w", err)
	}

	s := &MySQLStore{
		db:              sql.OpenDB(connector),
		maxOpenConns:    defaultMaxOpenConns,
		connMaxLifetime: defaultConnMaxLifetime,
		logger:          logger.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.db.SetMaxOpenConns(s.maxOpenConns)
	s.db.SetMaxIdleConns(s.maxOpenConns / 2)
	s.db.SetConnMaxLifetime(s.connMaxLifetime)

	if err := s.db.PingContext(ctx); err != nil {
		_ = s.db.Close()
		return nil, fmt.Errorf("ping mysql %s: %w", cfg.Addr, err)
	}
	if err := s.bootstrap(ctx); err != nil {
		_ = s.db.Close()
		return nil, err
	}

	s.logger.Info(ctx, "mysql store ready", logger.String("addr", cfg.Addr), logger.String("db", cfg.DBName))
	return s, nil
}

func (s *MySQLStore) bootstrap(ctx context.Context) error {
	for _, ddl := range schema {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("%w: %v", ErrStoreBootstrap, err)
		}
	}
	return nil
}

func (s *MySQLStore) SaveResult(ctx context.Context, rec Record) error {
	if rec.SubmissionID == "" {
		return fmt.Errorf("%w: empty submission id", ErrInvalidRecord)
	}
	result, err := json.Marshal(rec.Result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	start := time.Now()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO evaluation_results
			(submission_id, worker_id, task_id, status, result, badge, upgraded, error, submitted_at, evaluated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			status = VALUES(status), result = VALUES(result), badge = VALUES(badge),
			upgraded = VALUES(upgraded), error = VALUES(error), evaluated_at = VALUES(evaluated_at)`,
		rec.SubmissionID, rec.WorkerID, rec.TaskID, string(rec.Status), result, rec.Badge.String(),
		rec.Upgraded, nullString(rec.Error), rec.SubmittedAt.UTC(), nullTime(rec.EvaluatedAt))
	metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Microseconds()) / 1000)
	if err != nil {
		return fmt.Errorf("save result %s: %w", rec.SubmissionID, err)
	}
	return nil
}

func (s *MySQLStore) GetResult(ctx context.Context, submissionID string) (Record, error) {
	start := time.Now()
	defer func() { metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Microseconds()) / 1000) }()

	var (
		rec       Record
		status    string
		result    []byte
		badgeName string
		errText   sql.NullString
		evaluated sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT submission_id, worker_id, task_id, status, result, badge, upgraded, error, submitted_at, evaluated_at
		FROM evaluation_results WHERE submission_id = ?`, submissionID).
		Scan(&rec.SubmissionID, &rec.WorkerID, &rec.TaskID, &status, &result, &badgeName,
			&rec.Upgraded, &errText, &rec.SubmittedAt, &evaluated)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: submission %s", ErrNotFound, submissionID)
	}
	if err != nil {
		return Record{}, fmt.Errorf("get result %s: %w", submissionID, err)
	}

	rec.Status = Status(status)
	rec.Error = errText.String
	if evaluated.Valid {
		rec.EvaluatedAt = evaluated.Time
	}
	if err := json.Unmarshal(result, &rec.Result); err != nil {
		return Record{}, fmt.Errorf("decode result %s: %w", submissionID, err)
	}
	if rec.Badge, err = badge.Parse(badgeName); err != nil {
		return Record{}, fmt.Errorf("decode badge %s: %w", submissionID, err)
	}
	return rec, nil
}

func (s *MySQLStore) GetProgression(ctx context.Context, workerID string) (model.Progression, error) {
	var (
		p         model.Progression
		badgeName string
		cats      []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT worker_id, completed, passed, current_badge, passed_categories, best_overall, updated_at
		FROM worker_progressions WHERE worker_id = ?`, workerID).
		Scan(&p.WorkerID, &p.Completed, &p.Passed, &badgeName, &cats, &p.BestOverall, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Progression{}, fmt.Errorf("%w: worker %s", ErrNotFound, workerID)
	}
	if err != nil {
		return model.Progression{}, fmt.Errorf("get progression %s: %w", workerID, err)
	}
	if err := json.Unmarshal(cats, &p.PassedCategories); err != nil {
		return model.Progression{}, fmt.Errorf("decode categories %s: %w", workerID, err)
	}
	if p.CurrentBadge, err = badge.Parse(badgeName); err != nil {
		return model.Progression{}, fmt.Errorf("decode badge %s: %w", workerID, err)
	}
	return p, nil
}

func (s *MySQLStore) SaveProgression(ctx context.Context, p model.Progression) error {
	if p.WorkerID == "" {
		return fmt.Errorf("%w: empty worker id", ErrInvalidRecord)
	}
	cats := p.PassedCategories
	if cats == nil {
		cats = []model.Category{}
	}
	encoded, err := json.Marshal(cats)
	if err != nil {
		return fmt.Errorf("encode categories: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO worker_progressions
			(worker_id, completed, passed, current_badge, passed_categories, best_overall, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			completed = VALUES(completed), passed = VALUES(passed), current_badge = VALUES(current_badge),
			passed_categories = VALUES(passed_categories), best_overall = VALUES(best_overall),
			updated_at = VALUES(updated_at)`,
		p.WorkerID, p.Completed, p.Passed, p.CurrentBadge.String(), encoded, p.BestOverall, p.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("save progression %s: %w", p.WorkerID, err)
	}
	return nil
}

func (s *MySQLStore) Count(ctx context.Context) int {
	return s.count(ctx, "SELECT COUNT(*) FROM evaluation_results")
}

func (s *MySQLStore) Workers(ctx context.Context) int {
	return s.count(ctx, "SELECT COUNT(*) FROM worker_progressions")
}

func (s *MySQLStore) count(ctx context.Context, query string) int {
	var n int
	if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		s.logger.Warn(ctx, "count query failed", logger.String("query", query), logger.Error(err))
		return 0
	}
	return n
}

// Close closes the connection pool.
func (s *MySQLStore) Close() error { return s.db.Close() }

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t.UTC(), Valid: !t.IsZero()}
}
