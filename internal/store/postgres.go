package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/datadojo/partrank/internal/db"
	"github.com/datadojo/partrank/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool     db.Pool
	readOnly bool
	closeFn  func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"get_score":   `SELECT pn, batch_id, part, features, base_score, boosted_score, priority_score, score_percentile, applied_boosts, scored_at FROM scores WHERE pn = $1`,
	"insert_run":  `INSERT INTO score_runs (id, batch_id, profile, config_hash, source, part_count, boosted_count, started_at, finished_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
	"score_stats": `SELECT COUNT(*), COALESCE(AVG(priority_score), 0), COUNT(*) FILTER (WHERE priority_score = 0), COALESCE(MAX(scored_at), 'epoch'::timestamptz) FROM scores`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig, readOnly bool) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, readOnly: readOnly, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool, which tests use to inject mocks.
func NewPostgresWithPool(pool db.Pool, readOnly bool) *PostgresStore {
	return &PostgresStore{pool: pool, readOnly: readOnly}
}

// Pool returns the underlying database pool for subsystems that need direct
// query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS scores (
	pn               TEXT PRIMARY KEY,
	batch_id         TEXT NOT NULL,
	part             JSONB NOT NULL,
	features         JSONB NOT NULL,
	base_score       DOUBLE PRECISION NOT NULL,
	boosted_score    DOUBLE PRECISION NOT NULL,
	priority_score   DOUBLE PRECISION NOT NULL,
	score_percentile DOUBLE PRECISION NOT NULL,
	applied_boosts   JSONB,
	scored_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS score_runs (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	batch_id      TEXT NOT NULL,
	profile       TEXT NOT NULL,
	config_hash   TEXT NOT NULL,
	source        TEXT NOT NULL,
	part_count    INTEGER NOT NULL,
	boosted_count INTEGER NOT NULL,
	started_at    TIMESTAMPTZ NOT NULL,
	finished_at   TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_scores_batch_id ON scores(batch_id);
CREATE INDEX IF NOT EXISTS idx_scores_priority ON scores(priority_score DESC);
CREATE INDEX IF NOT EXISTS idx_scores_scored_at ON scores(scored_at);
CREATE INDEX IF NOT EXISTS idx_score_runs_finished_at ON score_runs(finished_at DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if s.readOnly {
		return ErrReadOnly
	}
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

var scoreColumns = []string{
	"pn", "batch_id", "part", "features",
	"base_score", "boosted_score", "priority_score", "score_percentile",
	"applied_boosts", "scored_at",
}

// SaveScores upserts one batch of scored parts keyed by pn. Re-scoring a part
// replaces its previous row.
func (s *PostgresStore) SaveScores(ctx context.Context, parts []model.ScoredPart) error {
	if s.readOnly {
		return ErrReadOnly
	}

	rows := make([][]any, 0, len(parts))
	for i := range parts {
		row, err := scoreRow(&parts[i])
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "scores",
		Columns:      scoreColumns,
		ConflictKeys: []string{"pn"},
	}, rows)
	return eris.Wrap(err, "postgres: save scores")
}

func scoreRow(p *model.ScoredPart) ([]any, error) {
	partJSON, err := json.Marshal(p.PartRecord)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: marshal part %s", p.PN)
	}
	featuresJSON, err := json.Marshal(p.Features)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: marshal features %s", p.PN)
	}
	boostsJSON, err := json.Marshal(p.AppliedBoosts)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: marshal boosts %s", p.PN)
	}

	return []any{
		p.PN, p.BatchID, string(partJSON), string(featuresJSON),
		p.BaseScore, p.BoostedScore, p.PriorityScore, p.ScorePercentile,
		string(boostsJSON), p.ScoredAt,
	}, nil
}

func (s *PostgresStore) GetScore(ctx context.Context, pn string) (*model.ScoredPart, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT pn, batch_id, part, features, base_score, boosted_score, priority_score, score_percentile, applied_boosts, scored_at
		 FROM scores WHERE pn = $1`,
		pn,
	)
	sp, err := scanScore(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get score %s", pn)
	}
	return sp, nil
}

func (s *PostgresStore) ListScores(ctx context.Context, filter ScoreFilter) ([]model.ScoredPart, error) {
	query := `SELECT pn, batch_id, part, features, base_score, boosted_score, priority_score, score_percentile, applied_boosts, scored_at
	          FROM scores WHERE true`
	args := []any{}
	argIdx := 1

	if filter.BatchID != "" {
		query += fmt.Sprintf(` AND batch_id = $%d`, argIdx)
		args = append(args, filter.BatchID)
		argIdx++
	}
	if filter.Category != "" {
		query += fmt.Sprintf(` AND part->>'category' = $%d`, argIdx)
		args = append(args, filter.Category)
		argIdx++
	}
	if filter.MinPriority > 0 {
		query += fmt.Sprintf(` AND priority_score >= $%d`, argIdx)
		args = append(args, filter.MinPriority)
		argIdx++
	}
	query += ` ORDER BY priority_score DESC, pn ASC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list scores")
	}
	defer rows.Close()

	var parts []model.ScoredPart
	for rows.Next() {
		sp, err := scanScore(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan score")
		}
		parts = append(parts, *sp)
	}
	return parts, eris.Wrap(rows.Err(), "postgres: list scores iterate")
}

type pgScannable interface {
	Scan(dest ...any) error
}

func scanScore(row pgScannable) (*model.ScoredPart, error) {
	var sp model.ScoredPart
	var pn string
	var partJSON, featuresJSON, boostsJSON []byte

	err := row.Scan(&pn, &sp.BatchID, &partJSON, &featuresJSON,
		&sp.BaseScore, &sp.BoostedScore, &sp.PriorityScore, &sp.ScorePercentile,
		&boostsJSON, &sp.ScoredAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(partJSON, &sp.PartRecord); err != nil {
		return nil, eris.Wrapf(err, "unmarshal part %s", pn)
	}
	if err := json.Unmarshal(featuresJSON, &sp.Features); err != nil {
		return nil, eris.Wrapf(err, "unmarshal features %s", pn)
	}
	if len(boostsJSON) > 0 {
		if err := json.Unmarshal(boostsJSON, &sp.AppliedBoosts); err != nil {
			return nil, eris.Wrapf(err, "unmarshal boosts %s", pn)
		}
	}
	return &sp, nil
}

func (s *PostgresStore) LogRun(ctx context.Context, run model.RunLog) error {
	if s.readOnly {
		return ErrReadOnly
	}
	if run.ID == "" {
		run.ID = uuid.New().String()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO score_runs (id, batch_id, profile, config_hash, source, part_count, boosted_count, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		run.ID, run.BatchID, run.Profile, run.ConfigHash, run.Source,
		run.PartCount, run.BoostedCount, run.StartedAt, run.FinishedAt,
	)
	return eris.Wrap(err, "postgres: log run")
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.RunLog, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, batch_id, profile, config_hash, source, part_count, boosted_count, started_at, finished_at
		 FROM score_runs ORDER BY finished_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.RunLog
	for rows.Next() {
		var r model.RunLog
		if err := rows.Scan(&r.ID, &r.BatchID, &r.Profile, &r.ConfigHash, &r.Source,
			&r.PartCount, &r.BoostedCount, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) Stats(ctx context.Context) (*ScoreStats, error) {
	var st ScoreStats
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(AVG(priority_score), 0), COUNT(*) FILTER (WHERE priority_score = 0), COALESCE(MAX(scored_at), 'epoch'::timestamptz) FROM scores`,
	).Scan(&st.Parts, &st.AvgPriority, &st.ZeroCount, &st.LastScoredAt)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: score stats")
	}
	return &st, nil
}
