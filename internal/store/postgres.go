package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/adintel-cli/internal/db"
	"github.com/sells-group/adintel-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// preparedStatements lists queries to prepare on each new connection for
// the hottest store operations.
var preparedStatements = map[string]string{
	"upsert_run":        `INSERT INTO runs (id, brand, vertical, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, updated_at = EXCLUDED.updated_at`,
	"update_run_status": `UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
	"update_run_result": `UPDATE runs SET result = $1, status = $2, updated_at = $3 WHERE id = $4`,
	"get_run":           `SELECT id, brand, vertical, status, result, created_at, updated_at FROM runs WHERE id = $1`,
	"insert_stage":      `INSERT INTO stage_records (id, run_id, name, status, error, duration_ms, result, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8) ON CONFLICT (run_id, name) DO UPDATE SET status = EXCLUDED.status, error = EXCLUDED.error, duration_ms = EXCLUDED.duration_ms, result = EXCLUDED.result, created_at = EXCLUDED.created_at`,
	"get_ads":           `SELECT ad_id, brand, page_id, headline, body_text, cta_text, image_url, landing_url, platforms, started_at, active FROM ads WHERE run_id = $1 ORDER BY brand, ad_id`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
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
	return &PostgresStore{pool: pool}, nil
}

// Pool exposes the underlying pool for subsystems needing direct query
// access (e.g., the bench command).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	brand      TEXT NOT NULL,
	vertical   TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	result     JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS stage_records (
	id          TEXT PRIMARY KEY,
	run_id      TEXT NOT NULL REFERENCES runs(id),
	name        TEXT NOT NULL,
	status      TEXT NOT NULL,
	error       TEXT,
	duration_ms BIGINT NOT NULL DEFAULT 0,
	result      JSONB,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
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
	platforms   JSONB,
	started_at  TIMESTAMPTZ,
	active      BOOLEAN NOT NULL DEFAULT true,
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
	confidence   DOUBLE PRECISION NOT NULL DEFAULT 0,
	PRIMARY KEY (run_id, ad_id)
);

CREATE TABLE IF NOT EXISTS ad_embeddings (
	run_id TEXT NOT NULL,
	ad_id  TEXT NOT NULL,
	brand  TEXT NOT NULL,
	model  TEXT NOT NULL,
	vector JSONB NOT NULL,
	PRIMARY KEY (run_id, ad_id)
);

CREATE TABLE IF NOT EXISTS visual_findings (
	run_id        TEXT NOT NULL,
	ad_id         TEXT NOT NULL,
	brand         TEXT NOT NULL,
	style         TEXT NOT NULL DEFAULT '',
	has_faces     BOOLEAN NOT NULL DEFAULT false,
	has_text      BOOLEAN NOT NULL DEFAULT false,
	dominant_hues JSONB,
	summary       TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, ad_id)
);

CREATE TABLE IF NOT EXISTS sampling_plans (
	run_id             TEXT NOT NULL,
	brand              TEXT NOT NULL,
	population         INTEGER NOT NULL,
	target_sample_size INTEGER NOT NULL,
	final_sample_size  INTEGER NOT NULL,
	coverage_pct       DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (run_id, brand)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_brand ON runs(brand);
CREATE INDEX IF NOT EXISTS idx_stage_records_run_id ON stage_records(run_id);
CREATE INDEX IF NOT EXISTS idx_ads_brand ON ads(run_id, brand);
CREATE INDEX IF NOT EXISTS idx_ad_labels_brand ON ad_labels(run_id, brand);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, rc *model.RunContext) (*model.Run, error) {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, brand, vertical, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, updated_at = EXCLUDED.updated_at`,
		rc.RunID, rc.Brand, rc.Vertical, string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create run")
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

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: update run status")
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: run %s not found", runID)
	}
	return nil
}

func (s *PostgresStore) UpdateRunResult(ctx context.Context, runID string, report *model.RunReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal run result")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET result = $1, status = $2, updated_at = $3 WHERE id = $4`,
		payload, string(report.Status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: update run result")
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: run %s not found", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	var (
		run        model.Run
		status     string
		resultJSON []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, brand, vertical, status, result, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	).Scan(&run.ID, &run.Brand, &run.Vertical, &status, &resultJSON, &run.CreatedAt, &run.UpdatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}

	run.Status = model.RunStatus(status)
	if len(resultJSON) > 0 {
		var report model.RunReport
		if err := json.Unmarshal(resultJSON, &report); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal run result")
		}
		run.Result = &report
	}
	return &run, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, brand, vertical, status, created_at, updated_at FROM runs`
	var (
		conds []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, "status = $1")
	}
	if filter.Brand != "" {
		args = append(args, filter.Brand)
		if len(args) == 1 {
			conds = append(conds, "brand = $1")
		} else {
			conds = append(conds, "brand = $2")
		}
	}
	if len(conds) > 0 {
		query += " WHERE " + conds[0]
		if len(conds) > 1 {
			query += " AND " + conds[1]
		}
	}
	query += " ORDER BY created_at DESC"
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	query += " LIMIT $" + itoa(len(args))
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += " OFFSET $" + itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var (
			run    model.Run
			status string
		)
		if err := rows.Scan(&run.ID, &run.Brand, &run.Vertical, &status, &run.CreatedAt, &run.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		run.Status = model.RunStatus(status)
		runs = append(runs, run)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: iterate runs")
}

func (s *PostgresStore) SaveStageRecord(ctx context.Context, runID string, rec model.StageRecord) error {
	var resultJSON []byte
	if rec.Result != nil {
		var err error
		resultJSON, err = json.Marshal(rec.Result)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal stage result")
		}
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO stage_records (id, run_id, name, status, error, duration_ms, result, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8) ON CONFLICT (run_id, name) DO UPDATE SET status = EXCLUDED.status, error = EXCLUDED.error, duration_ms = EXCLUDED.duration_ms, result = EXCLUDED.result, created_at = EXCLUDED.created_at`,
		newID(), runID, rec.Name, string(rec.Status), rec.Error, rec.DurationMS, resultJSON, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: save stage record %s", rec.Name)
}

func (s *PostgresStore) ReplaceAds(ctx context.Context, runID string, ads []model.Ad) (int64, error) {
	columns := []string{"run_id", "ad_id", "brand", "page_id", "headline", "body_text", "cta_text", "image_url", "landing_url", "platforms", "started_at", "active"}
	rows := make([][]any, 0, len(ads))
	for _, a := range ads {
		platforms, err := json.Marshal(a.Platforms)
		if err != nil {
			return 0, eris.Wrap(err, "postgres: marshal platforms")
		}
		rows = append(rows, []any{runID, a.ID, a.Brand, a.PageID, a.Headline, a.BodyText, a.CTAText, a.ImageURL, a.LandingURL, platforms, a.StartedAt, a.Active})
	}
	return db.ReplaceRunRows(ctx, s.pool, "ads", columns, runID, rows)
}

func (s *PostgresStore) ReplaceLabels(ctx context.Context, runID string, labels []model.AdLabel) (int64, error) {
	columns := []string{"run_id", "ad_id", "brand", "angle", "offer", "funnel_stage", "persona", "confidence"}
	rows := make([][]any, 0, len(labels))
	for _, l := range labels {
		rows = append(rows, []any{runID, l.AdID, l.Brand, l.Angle, l.Offer, l.FunnelStage, l.Persona, l.Confidence})
	}
	return db.ReplaceRunRows(ctx, s.pool, "ad_labels", columns, runID, rows)
}

func (s *PostgresStore) ReplaceEmbeddings(ctx context.Context, runID string, embs []model.AdEmbedding) (int64, error) {
	columns := []string{"run_id", "ad_id", "brand", "model", "vector"}
	rows := make([][]any, 0, len(embs))
	for _, e := range embs {
		vec, err := json.Marshal(e.Vector)
		if err != nil {
			return 0, eris.Wrap(err, "postgres: marshal vector")
		}
		rows = append(rows, []any{runID, e.AdID, e.Brand, e.Model, vec})
	}
	return db.ReplaceRunRows(ctx, s.pool, "ad_embeddings", columns, runID, rows)
}

func (s *PostgresStore) ReplaceVisualFindings(ctx context.Context, runID string, findings []model.VisualFinding) (int64, error) {
	columns := []string{"run_id", "ad_id", "brand", "style", "has_faces", "has_text", "dominant_hues", "summary"}
	rows := make([][]any, 0, len(findings))
	for _, f := range findings {
		hues, err := json.Marshal(f.DominantHues)
		if err != nil {
			return 0, eris.Wrap(err, "postgres: marshal hues")
		}
		rows = append(rows, []any{runID, f.AdID, f.Brand, f.Style, f.HasFaces, f.HasText, hues, f.Summary})
	}
	return db.ReplaceRunRows(ctx, s.pool, "visual_findings", columns, runID, rows)
}

func (s *PostgresStore) ReplaceSamplingPlans(ctx context.Context, runID string, plans []model.BrandSamplingPlan) (int64, error) {
	columns := []string{"run_id", "brand", "population", "target_sample_size", "final_sample_size", "coverage_pct"}
	rows := make([][]any, 0, len(plans))
	for _, p := range plans {
		rows = append(rows, []any{runID, p.Brand, p.Population, p.TargetSampleSize, p.FinalSampleSize, p.CoveragePct})
	}
	return db.ReplaceRunRows(ctx, s.pool, "sampling_plans", columns, runID, rows)
}

func (s *PostgresStore) GetAds(ctx context.Context, runID string) ([]model.Ad, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT ad_id, brand, page_id, headline, body_text, cta_text, image_url, landing_url, platforms, started_at, active FROM ads WHERE run_id = $1 ORDER BY brand, ad_id`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get ads")
	}
	defer rows.Close()

	var ads []model.Ad
	for rows.Next() {
		var (
			ad        model.Ad
			platforms []byte
			startedAt *time.Time
		)
		if err := rows.Scan(&ad.ID, &ad.Brand, &ad.PageID, &ad.Headline, &ad.BodyText, &ad.CTAText, &ad.ImageURL, &ad.LandingURL, &platforms, &startedAt, &ad.Active); err != nil {
			return nil, eris.Wrap(err, "postgres: scan ad")
		}
		if len(platforms) > 0 {
			if err := json.Unmarshal(platforms, &ad.Platforms); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal platforms")
			}
		}
		if startedAt != nil {
			ad.StartedAt = *startedAt
		}
		ads = append(ads, ad)
	}
	return ads, eris.Wrap(rows.Err(), "postgres: iterate ads")
}

func (s *PostgresStore) GetLabels(ctx context.Context, runID string) ([]model.AdLabel, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT ad_id, brand, angle, offer, funnel_stage, persona, confidence FROM ad_labels WHERE run_id = $1 ORDER BY brand, ad_id`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get labels")
	}
	defer rows.Close()

	var labels []model.AdLabel
	for rows.Next() {
		var l model.AdLabel
		if err := rows.Scan(&l.AdID, &l.Brand, &l.Angle, &l.Offer, &l.FunnelStage, &l.Persona, &l.Confidence); err != nil {
			return nil, eris.Wrap(err, "postgres: scan label")
		}
		labels = append(labels, l)
	}
	return labels, eris.Wrap(rows.Err(), "postgres: iterate labels")
}

func (s *PostgresStore) CountAdsWithImages(ctx context.Context, runID string) ([]model.BrandPopulation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT brand, COUNT(*) FROM ads WHERE run_id = $1 AND image_url <> '' GROUP BY brand ORDER BY brand`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count ads with images")
	}
	defer rows.Close()

	var pops []model.BrandPopulation
	for rows.Next() {
		var p model.BrandPopulation
		if err := rows.Scan(&p.Brand, &p.Population); err != nil {
			return nil, eris.Wrap(err, "postgres: scan population")
		}
		pops = append(pops, p)
	}
	return pops, eris.Wrap(rows.Err(), "postgres: iterate populations")
}

func (s *PostgresStore) CountLabelsForBrand(ctx context.Context, runID, brand string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM ad_labels WHERE run_id = $1 AND brand = $2`,
		runID, brand,
	).Scan(&n)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, eris.Wrap(err, "postgres: count labels")
	}
	return n, nil
}
