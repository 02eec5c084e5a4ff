// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package score

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/goccy/go-json"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/catalog-engine/pkg/types"
)

const dbFile = "scores.db"

// Index is the SQLite score index: the registry of published scoring
// versions and a queryable copy of every scoring run.
type Index struct {
	db *sql.DB
}

// PublishedVersion is one row of the version registry.
type PublishedVersion struct {
	Version     string
	Name        string
	Fingerprint string
	PublishedAt time.Time
	Runs        int
}

// OpenIndex opens or creates dir/scores.db.
func OpenIndex(dir string) (*Index, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}
	db, err := sql.Open("sqlite3", filepath.Join(dir, dbFile)+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening score index: %w", err)
	}
	idx := &Index{db: db}
	if err := idx.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return idx, nil
}

// Close releases the database connection.
func (x *Index) Close() error {
	return x.db.Close()
}

func (x *Index) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS scoring_versions (
			version TEXT PRIMARY KEY,
			name TEXT,
			fingerprint TEXT NOT NULL,
			config TEXT NOT NULL,
			published_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS scoring_runs (
			run_id TEXT PRIMARY KEY,
			version TEXT NOT NULL REFERENCES scoring_versions(version),
			fingerprint TEXT NOT NULL,
			input_prefix TEXT,
			output_key TEXT,
			items_considered INTEGER,
			items_scored INTEGER,
			items_rejected INTEGER,
			started_at TEXT,
			finished_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS scored_items (
			run_id TEXT NOT NULL REFERENCES scoring_runs(run_id),
			item_id TEXT NOT NULL,
			rank INTEGER NOT NULL,
			final_score REAL NOT NULL,
			primary_topic TEXT,
			is_recommended INTEGER NOT NULL,
			breakdown TEXT NOT NULL,
			computed_at TEXT NOT NULL,
			enrichment_version TEXT,
			model_version TEXT,
			prompt_version TEXT,
			PRIMARY KEY (run_id, item_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_version ON scoring_runs(version, finished_at)`,
		`CREATE INDEX IF NOT EXISTS idx_items_rank ON scored_items(run_id, rank)`,
	}
	for _, stmt := range statements {
		if _, err := x.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Publish records cfg under its version id on first use and returns its
// fingerprint. Reusing a version id with different weights fails with
// ErrVersionConflict.
func (x *Index) Publish(ctx context.Context, cfg types.ScoringConfig, now time.Time) (string, error) {
	fp := Fingerprint(cfg)

	q, args, err := sq.Select("fingerprint").From("scoring_versions").
		Where(sq.Eq{"version": cfg.ScoringVersion}).ToSql()
	if err != nil {
		return "", err
	}
	var stored string
	err = x.db.QueryRowContext(ctx, q, args...).Scan(&stored)
	switch {
	case err == nil:
		if stored != fp {
			return "", fmt.Errorf("%q (published %.12s, requested %.12s): %w", cfg.ScoringVersion, stored, fp, ErrVersionConflict)
		}
		return fp, nil
	case !errors.Is(err, sql.ErrNoRows):
		return "", fmt.Errorf("looking up version %q: %w", cfg.ScoringVersion, err)
	}

	body, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("encoding scoring config: %w", err)
	}
	q, args, err = sq.Insert("scoring_versions").
		Columns("version", "name", "fingerprint", "config", "published_at").
		Values(cfg.ScoringVersion, cfg.Name, fp, string(body), now.UTC().Format(time.RFC3339Nano)).
		ToSql()
	if err != nil {
		return "", err
	}
	if _, err := x.db.ExecContext(ctx, q, args...); err != nil {
		return "", fmt.Errorf("publishing version %q: %w", cfg.ScoringVersion, err)
	}
	return fp, nil
}

// AppendRun stores a run and its scored items in one transaction. A run id
// that is already present is rejected.
func (x *Index) AppendRun(ctx context.Context, m types.ScoringManifest, items []types.ScoredItem) error {
	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	q, args, err := sq.Insert("scoring_runs").
		Columns("run_id", "version", "fingerprint", "input_prefix", "output_key",
			"items_considered", "items_scored", "items_rejected", "started_at", "finished_at").
		Values(m.RunID, m.ScoringVersion, m.ConfigFingerprint, m.InputPrefix, m.OutputKey,
			m.ItemsConsidered, m.ItemsScored, m.ItemsRejected,
			m.StartedAt.UTC().Format(time.RFC3339Nano), m.FinishedAt.UTC().Format(time.RFC3339Nano)).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("inserting run %s: %w", m.RunID, err)
	}

	if len(items) > 0 {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO scored_items (run_id, item_id, rank, final_score, primary_topic, is_recommended,
				breakdown, computed_at, enrichment_version, model_version, prompt_version)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("preparing insert: %w", err)
		}
		defer stmt.Close()

		for _, it := range items {
			breakdown, err := json.Marshal(it.MetricBreakdown)
			if err != nil {
				return fmt.Errorf("encoding breakdown of %s: %w", it.ItemID, err)
			}
			var topic sql.NullString
			if it.PrimaryTopic != nil {
				topic = sql.NullString{String: *it.PrimaryTopic, Valid: true}
			}
			if _, err := stmt.ExecContext(ctx, m.RunID, it.ItemID, it.Rank, it.FinalScore, topic,
				it.IsRecommended, string(breakdown), it.ComputedAt.UTC().Format(time.RFC3339Nano),
				it.EnrichmentVersion, it.ModelVersion, it.PromptVersion); err != nil {
				return fmt.Errorf("inserting item %s: %w", it.ItemID, err)
			}
		}
	}

	return tx.Commit()
}

// Versions lists published versions with their run counts.
func (x *Index) Versions(ctx context.Context) ([]PublishedVersion, error) {
	q, args, err := sq.Select("v.version", "COALESCE(v.name, '')", "v.fingerprint", "v.published_at", "COUNT(r.run_id)").
		From("scoring_versions v").
		LeftJoin("scoring_runs r ON r.version = v.version").
		GroupBy("v.version").
		OrderBy("v.published_at", "v.version").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := x.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing versions: %w", err)
	}
	defer rows.Close()

	var out []PublishedVersion
	for rows.Next() {
		var v PublishedVersion
		var published string
		if err := rows.Scan(&v.Version, &v.Name, &v.Fingerprint, &published, &v.Runs); err != nil {
			return nil, fmt.Errorf("scanning version: %w", err)
		}
		v.PublishedAt, _ = time.Parse(time.RFC3339Nano, published)
		out = append(out, v)
	}
	return out, rows.Err()
}

// LatestRun returns the id of the most recently finished run of version.
func (x *Index) LatestRun(ctx context.Context, version string) (string, error) {
	q, args, err := sq.Select("run_id").From("scoring_runs").
		Where(sq.Eq{"version": version}).
		OrderBy("finished_at DESC", "run_id DESC").
		Limit(1).ToSql()
	if err != nil {
		return "", err
	}
	var runID string
	if err := x.db.QueryRowContext(ctx, q, args...).Scan(&runID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("no runs for scoring version %q", version)
		}
		return "", fmt.Errorf("finding latest run: %w", err)
	}
	return runID, nil
}

// Top returns the n best ranked items of a run. n <= 0 returns all items.
func (x *Index) Top(ctx context.Context, runID string, n int) ([]types.ScoredItem, error) {
	b := sq.Select("s.item_id", "s.rank", "s.final_score", "s.primary_topic", "s.is_recommended",
		"s.breakdown", "s.computed_at", "r.version",
		"COALESCE(s.enrichment_version, '')", "COALESCE(s.model_version, '')", "COALESCE(s.prompt_version, '')").
		From("scored_items s").
		Join("scoring_runs r ON r.run_id = s.run_id").
		Where(sq.Eq{"s.run_id": runID}).
		OrderBy("s.rank")
	if n > 0 {
		b = b.Limit(uint64(n))
	}
	q, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := x.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying run %s: %w", runID, err)
	}
	defer rows.Close()

	var out []types.ScoredItem
	for rows.Next() {
		var it types.ScoredItem
		var topic sql.NullString
		var breakdown, computed string
		if err := rows.Scan(&it.ItemID, &it.Rank, &it.FinalScore, &topic, &it.IsRecommended,
			&breakdown, &computed, &it.ScoringVersion,
			&it.EnrichmentVersion, &it.ModelVersion, &it.PromptVersion); err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		if topic.Valid {
			it.PrimaryTopic = &topic.String
		}
		if err := json.Unmarshal([]byte(breakdown), &it.MetricBreakdown); err != nil {
			return nil, fmt.Errorf("decoding breakdown of %s: %w", it.ItemID, err)
		}
		it.ComputedAt, _ = time.Parse(time.RFC3339Nano, computed)
		it.RunID = runID
		out = append(out, it)
	}
	return out, rows.Err()
}
