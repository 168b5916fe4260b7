package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/adintel-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite, for local runs
// without a postgres warehouse.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
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
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	brand      TEXT NOT NULL,
	vertical   TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	result     TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS stage_records (
	id          TEXT PRIMARY KEY,
	run_id      TEXT NOT NULL REFERENCES runs(id),
	name        TEXT NOT NULL,
	status      TEXT NOT NULL,
	error       TEXT,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	result      TEXT,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (run_id, name)
);

CREATE TABLE IF NOT EXISTS ads (
	run_id      TEXT NOT NULL,
	ad_id       TEXT NOT NULL,
	brand       TEXT NOT NULL,
	page_id     TEXT NOT NULL,
	headline    TEXT NOT NULL DEFAULT '',
	body_text   TEXT NOT NULL DEFAULT '',
	cta_text    TEXT NOT NULL DEFAULT '',
	image_url   TEXT NOT NULL DEFAULT '',
	landing_url TEXT NOT NULL DEFAULT '',
	platforms   TEXT,
	started_at  DATETIME,
	active      INTEGER NOT NULL DEFAULT 1,
	PRIMARY KEY (run_id, ad_id)
);

CREATE TABLE IF NOT EXISTS ad_labels (
	run_id       TEXT NOT NULL,
	ad_id        TEXT NOT NULL,
	brand        TEXT NOT NULL,
	angle        TEXT NOT NULL,
	offer        TEXT NOT NULL,
	funnel_stage TEXT NOT NULL,
	persona      TEXT NOT NULL DEFAULT '',
	confidence   REAL NOT NULL DEFAULT 0,
	PRIMARY KEY (run_id, ad_id)
);

CREATE TABLE IF NOT EXISTS ad_embeddings (
	run_id TEXT NOT NULL,
	ad_id  TEXT NOT NULL,
	brand  TEXT NOT NULL,
	model  TEXT NOT NULL,
	vector TEXT NOT NULL,
	PRIMARY KEY (run_id, ad_id)
);

CREATE TABLE IF NOT EXISTS visual_findings (
	run_id        TEXT NOT NULL,
	ad_id         TEXT NOT NULL,
	brand         TEXT NOT NULL,
	style         TEXT NOT NULL DEFAULT '',
	has_faces     INTEGER NOT NULL DEFAULT 0,
	has_text      INTEGER NOT NULL DEFAULT 0,
	dominant_hues TEXT,
	summary       TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, ad_id)
);

CREATE TABLE IF NOT EXISTS sampling_plans (
	run_id             TEXT NOT NULL,
	brand              TEXT NOT NULL,
	population         INTEGER NOT NULL,
	target_sample_size INTEGER NOT NULL,
	final_sample_size  INTEGER NOT NULL,
	coverage_pct       REAL NOT NULL,
	PRIMARY KEY (run_id, brand)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_stage_records_run_id ON stage_records(run_id);
CREATE INDEX IF NOT EXISTS idx_ads_brand ON ads(run_id, brand);
CREATE INDEX IF NOT EXISTS idx_ad_labels_brand ON ad_labels(run_id, brand);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, rc *model.RunContext) (*model.Run, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, brand, vertical, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET status = excluded.status, updated_at = excluded.updated_at`,
		rc.RunID, rc.Brand, rc.Vertical, string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: create run")
	}

	return &model.Run{
		ID:        rc.RunID,
		Brand:     rc.Brand,
		Vertical:  rc.Vertical,
		Status:    model.RunStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: update run status")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Errorf("sqlite: run %s not found", runID)
	}
	return nil
}

func (s *SQLiteStore) UpdateRunResult(ctx context.Context, runID string, report *model.RunReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal run result")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET result = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(payload), string(report.Status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: update run result")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Errorf("sqlite: run %s not found", runID)
	}
	return nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	var (
		run        model.Run
		status     string
		resultJSON sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, brand, vertical, status, result, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	).Scan(&run.ID, &run.Brand, &run.Vertical, &status, &resultJSON, &run.CreatedAt, &run.UpdatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}

	run.Status = model.RunStatus(status)
	if resultJSON.Valid && resultJSON.String != "" {
		var report model.RunReport
		if err := json.Unmarshal([]byte(resultJSON.String), &report); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal run result")
		}
		run.Result = &report
	}
	return &run, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, brand, vertical, status, created_at, updated_at FROM runs`
	var (
		conds []string
		args  []any
	)
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Brand != "" {
		conds = append(conds, "brand = ?")
		args = append(args, filter.Brand)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var (
			run    model.Run
			status string
		)
		if err := rows.Scan(&run.ID, &run.Brand, &run.Vertical, &status, &run.CreatedAt, &run.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		run.Status = model.RunStatus(status)
		runs = append(runs, run)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: iterate runs")
}

func (s *SQLiteStore) SaveStageRecord(ctx context.Context, runID string, rec model.StageRecord) error {
	var resultJSON []byte
	if rec.Result != nil {
		var err error
		resultJSON, err = json.Marshal(rec.Result)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal stage result")
		}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stage_records (id, run_id, name, status, error, duration_ms, result, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id, name) DO UPDATE SET status = excluded.status, error = excluded.error, duration_ms = excluded.duration_ms, result = excluded.result, created_at = excluded.created_at`,
		newID(), runID, rec.Name, string(rec.Status), rec.Error, rec.DurationMS, string(resultJSON), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: save stage record %s", rec.Name)
}

// replaceRows deletes a table's rows for the run id and re-inserts inside
// one transaction, mirroring the postgres overwrite semantics.
func (s *SQLiteStore) replaceRows(ctx context.Context, table, insertSQL string, runID string, rows [][]any) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: begin replace for %s", table)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE run_id = ?`, runID); err != nil {
		return 0, eris.Wrapf(err, "sqlite: delete run rows from %s", table)
	}

	var n int64
	for _, row := range rows {
		if _, err := tx.ExecContext(ctx, insertSQL, row...); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert into %s", table)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrapf(err, "sqlite: commit replace for %s", table)
	}
	return n, nil
}

func (s *SQLiteStore) ReplaceAds(ctx context.Context, runID string, ads []model.Ad) (int64, error) {
	rows := make([][]any, 0, len(ads))
	for _, a := range ads {
		platforms, err := json.Marshal(a.Platforms)
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: marshal platforms")
		}
		rows = append(rows, []any{runID, a.ID, a.Brand, a.PageID, a.Headline, a.BodyText, a.CTAText, a.ImageURL, a.LandingURL, string(platforms), a.StartedAt, a.Active})
	}
	return s.replaceRows(ctx, "ads",
		`INSERT INTO ads (run_id, ad_id, brand, page_id, headline, body_text, cta_text, image_url, landing_url, platforms, started_at, active) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, rows)
}

func (s *SQLiteStore) ReplaceLabels(ctx context.Context, runID string, labels []model.AdLabel) (int64, error) {
	rows := make([][]any, 0, len(labels))
	for _, l := range labels {
		rows = append(rows, []any{runID, l.AdID, l.Brand, l.Angle, l.Offer, l.FunnelStage, l.Persona, l.Confidence})
	}
	return s.replaceRows(ctx, "ad_labels",
		`INSERT INTO ad_labels (run_id, ad_id, brand, angle, offer, funnel_stage, persona, confidence) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, rows)
}

func (s *SQLiteStore) ReplaceEmbeddings(ctx context.Context, runID string, embs []model.AdEmbedding) (int64, error) {
	rows := make([][]any, 0, len(embs))
	for _, e := range embs {
		vec, err := json.Marshal(e.Vector)
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: marshal vector")
		}
		rows = append(rows, []any{runID, e.AdID, e.Brand, e.Model, string(vec)})
	}
	return s.replaceRows(ctx, "ad_embeddings",
		`INSERT INTO ad_embeddings (run_id, ad_id, brand, model, vector) VALUES (?, ?, ?, ?, ?)`,
		runID, rows)
}

func (s *SQLiteStore) ReplaceVisualFindings(ctx context.Context, runID string, findings []model.VisualFinding) (int64, error) {
	rows := make([][]any, 0, len(findings))
	for _, f := range findings {
		hues, err := json.Marshal(f.DominantHues)
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: marshal hues")
		}
		rows = append(rows, []any{runID, f.AdID, f.Brand, f.Style, f.HasFaces, f.HasText, string(hues), f.Summary})
	}
	return s.replaceRows(ctx, "visual_findings",
		`INSERT INTO visual_findings (run_id, ad_id, brand, style, has_faces, has_text, dominant_hues, summary) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, rows)
}

func (s *SQLiteStore) ReplaceSamplingPlans(ctx context.Context, runID string, plans []model.BrandSamplingPlan) (int64, error) {
	rows := make([][]any, 0, len(plans))
	for _, p := range plans {
		rows = append(rows, []any{runID, p.Brand, p.Population, p.TargetSampleSize, p.FinalSampleSize, p.CoveragePct})
	}
	return s.replaceRows(ctx, "sampling_plans",
		`INSERT INTO sampling_plans (run_id, brand, population, target_sample_size, final_sample_size, coverage_pct) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, rows)
}

func (s *SQLiteStore) GetAds(ctx context.Context, runID string) ([]model.Ad, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ad_id, brand, page_id, headline, body_text, cta_text, image_url, landing_url, platforms, started_at, active FROM ads WHERE run_id = ? ORDER BY brand, ad_id`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get ads")
	}
	defer rows.Close()

	var ads []model.Ad
	for rows.Next() {
		var (
			ad        model.Ad
			platforms sql.NullString
			startedAt sql.NullTime
		)
		if err := rows.Scan(&ad.ID, &ad.Brand, &ad.PageID, &ad.Headline, &ad.BodyText, &ad.CTAText, &ad.ImageURL, &ad.LandingURL, &platforms, &startedAt, &ad.Active); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan ad")
		}
		if platforms.Valid && platforms.String != "" && platforms.String != "null" {
			if err := json.Unmarshal([]byte(platforms.String), &ad.Platforms); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal platforms")
			}
		}
		if startedAt.Valid {
			ad.StartedAt = startedAt.Time
		}
		ads = append(ads, ad)
	}
	return ads, eris.Wrap(rows.Err(), "sqlite: iterate ads")
}

func (s *SQLiteStore) GetLabels(ctx context.Context, runID string) ([]model.AdLabel, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ad_id, brand, angle, offer, funnel_stage, persona, confidence FROM ad_labels WHERE run_id = ? ORDER BY brand, ad_id`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get labels")
	}
	defer rows.Close()

	var labels []model.AdLabel
	for rows.Next() {
		var l model.AdLabel
		if err := rows.Scan(&l.AdID, &l.Brand, &l.Angle, &l.Offer, &l.FunnelStage, &l.Persona, &l.Confidence); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan label")
		}
		labels = append(labels, l)
	}
	return labels, eris.Wrap(rows.Err(), "sqlite: iterate labels")
}

func (s *SQLiteStore) CountAdsWithImages(ctx context.Context, runID string) ([]model.BrandPopulation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT brand, COUNT(*) FROM ads WHERE run_id = ? AND image_url <> '' GROUP BY brand ORDER BY brand`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count ads with images")
	}
	defer rows.Close()

	var pops []model.BrandPopulation
	for rows.Next() {
		var p model.BrandPopulation
		if err := rows.Scan(&p.Brand, &p.Population); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan population")
		}
		pops = append(pops, p)
	}
	return pops, eris.Wrap(rows.Err(), "sqlite: iterate populations")
}

func (s *SQLiteStore) CountLabelsForBrand(ctx context.Context, runID, brand string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ad_labels WHERE run_id = ? AND brand = ?`,
		runID, brand,
	).Scan(&n)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: count labels")
	}
	return n, nil
}
