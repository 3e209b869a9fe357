package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/datadojo/partrank/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db       *sql.DB
	readOnly bool
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string, readOnly bool) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, readOnly: readOnly}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS scores (
	pn               TEXT PRIMARY KEY,
	batch_id         TEXT NOT NULL,
	part             TEXT NOT NULL,
	features         TEXT NOT NULL,
	base_score       REAL NOT NULL,
	boosted_score    REAL NOT NULL,
	priority_score   REAL NOT NULL,
	score_percentile REAL NOT NULL,
	applied_boosts   TEXT,
	scored_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS score_runs (
	id            TEXT PRIMARY KEY,
	batch_id      TEXT NOT NULL,
	profile       TEXT NOT NULL,
	config_hash   TEXT NOT NULL,
	source        TEXT NOT NULL,
	part_count    INTEGER NOT NULL,
	boosted_count INTEGER NOT NULL,
	started_at    DATETIME NOT NULL,
	finished_at   DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_scores_batch_id ON scores(batch_id);
CREATE INDEX IF NOT EXISTS idx_scores_priority ON scores(priority_score DESC);
CREATE INDEX IF NOT EXISTS idx_score_runs_finished_at ON score_runs(finished_at DESC);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if s.readOnly {
		return ErrReadOnly
	}
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveScores upserts one batch of scored parts keyed by pn inside a single
// transaction.
func (s *SQLiteStore) SaveScores(ctx context.Context, parts []model.ScoredPart) error {
	if s.readOnly {
		return ErrReadOnly
	}
	if len(parts) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO scores (pn, batch_id, part, features, base_score, boosted_score, priority_score, score_percentile, applied_boosts, scored_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (pn) DO UPDATE SET
		   batch_id = excluded.batch_id, part = excluded.part, features = excluded.features,
		   base_score = excluded.base_score, boosted_score = excluded.boosted_score,
		   priority_score = excluded.priority_score, score_percentile = excluded.score_percentile,
		   applied_boosts = excluded.applied_boosts, scored_at = excluded.scored_at`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare upsert")
	}
	defer stmt.Close()

	for i := range parts {
		row, err := scoreRow(&parts[i])
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return eris.Wrapf(err, "sqlite: upsert score %s", parts[i].PN)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit scores")
}

func (s *SQLiteStore) GetScore(ctx context.Context, pn string) (*model.ScoredPart, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT pn, batch_id, part, features, base_score, boosted_score, priority_score, score_percentile, applied_boosts, scored_at
		 FROM scores WHERE pn = ?`,
		pn,
	)
	sp, err := scanScore(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get score %s", pn)
	}
	return sp, nil
}

func (s *SQLiteStore) ListScores(ctx context.Context, filter ScoreFilter) ([]model.ScoredPart, error) {
	query := `SELECT pn, batch_id, part, features, base_score, boosted_score, priority_score, score_percentile, applied_boosts, scored_at
	          FROM scores WHERE 1=1`
	var args []any

	if filter.BatchID != "" {
		query += ` AND batch_id = ?`
		args = append(args, filter.BatchID)
	}
	if filter.Category != "" {
		query += ` AND json_extract(part, '$.category') = ?`
		args = append(args, filter.Category)
	}
	if filter.MinPriority > 0 {
		query += ` AND priority_score >= ?`
		args = append(args, filter.MinPriority)
	}
	query += ` ORDER BY priority_score DESC, pn ASC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list scores")
	}
	defer rows.Close()

	var parts []model.ScoredPart
	for rows.Next() {
		sp, err := scanScore(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan score")
		}
		parts = append(parts, *sp)
	}
	return parts, eris.Wrap(rows.Err(), "sqlite: list scores iterate")
}

func (s *SQLiteStore) LogRun(ctx context.Context, run model.RunLog) error {
	if s.readOnly {
		return ErrReadOnly
	}
	if run.ID == "" {
		run.ID = uuid.New().String()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO score_runs (id, batch_id, profile, config_hash, source, part_count, boosted_count, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.BatchID, run.Profile, run.ConfigHash, run.Source,
		run.PartCount, run.BoostedCount, run.StartedAt, run.FinishedAt,
	)
	return eris.Wrap(err, "sqlite: log run")
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.RunLog, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, batch_id, profile, config_hash, source, part_count, boosted_count, started_at, finished_at
		 FROM score_runs ORDER BY finished_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.RunLog
	for rows.Next() {
		var r model.RunLog
		if err := rows.Scan(&r.ID, &r.BatchID, &r.Profile, &r.ConfigHash, &r.Source,
			&r.PartCount, &r.BoostedCount, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) Stats(ctx context.Context) (*ScoreStats, error) {
	var st ScoreStats
	var last sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(AVG(priority_score), 0),
		        COALESCE(SUM(CASE WHEN priority_score = 0 THEN 1 ELSE 0 END), 0),
		        MAX(scored_at)
		 FROM scores`,
	).Scan(&st.Parts, &st.AvgPriority, &st.ZeroCount, &last)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: score stats")
	}
	if last.Valid {
		layouts := []string{
			time.RFC3339Nano,
			"2006-01-02 15:04:05.999999999-07:00",
			"2006-01-02 15:04:05.999999999 -0700 MST",
			"2006-01-02 15:04:05",
		}
		for _, layout := range layouts {
			if ts, perr := time.Parse(layout, last.String); perr == nil {
				st.LastScoredAt = ts
				break
			}
		}
	}
	return &st, nil
}
