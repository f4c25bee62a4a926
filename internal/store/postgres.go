package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/fukui-lab/subsidy-cli/internal/db"
	"github.com/fukui-lab/subsidy-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot store operations.
var preparedStatements = map[string]string{
	"get_subsidy":    `SELECT id, title, organization, description, deadline, status, amount, eligibility, category, prefecture, url, source, last_updated FROM subsidies WHERE id = $1`,
	"delete_subsidy": `DELETE FROM subsidies WHERE id = $1`,
	"get_analysis":   `SELECT id, url, strategy, profile, matches, analyzed_at FROM analyses WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
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
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need direct
// query access (e.g. bulk corpus imports over COPY).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS subsidies (
	id           TEXT PRIMARY KEY,
	title        TEXT NOT NULL,
	organization TEXT NOT NULL DEFAULT '',
	description  TEXT NOT NULL DEFAULT '',
	deadline     TIMESTAMPTZ,
	status       TEXT NOT NULL DEFAULT 'active',
	amount       JSONB NOT NULL DEFAULT '{}',
	eligibility  JSONB NOT NULL DEFAULT '[]',
	category     JSONB NOT NULL DEFAULT '[]',
	prefecture   TEXT NOT NULL DEFAULT '',
	url          TEXT NOT NULL DEFAULT '',
	source       TEXT NOT NULL DEFAULT '',
	last_updated TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS analyses (
	id          TEXT PRIMARY KEY,
	url         TEXT NOT NULL,
	strategy    TEXT NOT NULL,
	profile     JSONB NOT NULL,
	matches     JSONB NOT NULL,
	analyzed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_subsidies_status ON subsidies(status);
CREATE INDEX IF NOT EXISTS idx_subsidies_prefecture ON subsidies(prefecture);
CREATE INDEX IF NOT EXISTS idx_analyses_url ON analyses(url);
CREATE INDEX IF NOT EXISTS idx_analyses_analyzed_at ON analyses(analyzed_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) ListSubsidies(ctx context.Context, filter SubsidyFilter) ([]model.SubsidyRecord, error) {
	query := `SELECT id, title, organization, description, deadline, status,
		amount, eligibility, category, prefecture, url, source, last_updated
		FROM subsidies`
	var args []any
	if filter.Status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY deadline ASC NULLS LAST`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list subsidies")
	}
	defer rows.Close()

	var records []model.SubsidyRecord
	for rows.Next() {
		rec, err := scanPgSubsidy(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: list subsidies iterate")
	}

	return applyLimit(applyFilter(records, filter), filter.Limit), nil
}

func (s *PostgresStore) GetSubsidy(ctx context.Context, id string) (*model.SubsidyRecord, error) {
	row := s.pool.QueryRow(ctx, preparedStatements["get_subsidy"], id)
	rec, err := scanPgSubsidy(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &NotFoundError{Entity: "subsidy", ID: id}
	}
	return rec, err
}

func (s *PostgresStore) UpsertSubsidy(ctx context.Context, rec model.SubsidyRecord) error {
	amountJSON, eligJSON, catJSON, err := marshalSubsidyJSON(&rec)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO subsidies (id, title, organization, description, deadline, status,
			amount, eligibility, category, prefecture, url, source, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			organization = EXCLUDED.organization,
			description = EXCLUDED.description,
			deadline = EXCLUDED.deadline,
			status = EXCLUDED.status,
			amount = EXCLUDED.amount,
			eligibility = EXCLUDED.eligibility,
			category = EXCLUDED.category,
			prefecture = EXCLUDED.prefecture,
			url = EXCLUDED.url,
			source = EXCLUDED.source,
			last_updated = EXCLUDED.last_updated`,
		rec.ID, rec.Title, rec.Organization, rec.Description, rec.Deadline,
		string(rec.Status), amountJSON, eligJSON, catJSON, rec.Prefecture,
		rec.URL, rec.Source, rec.LastUpdated,
	)
	return eris.Wrapf(err, "postgres: upsert subsidy %s", rec.ID)
}

func (s *PostgresStore) DeleteSubsidy(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, preparedStatements["delete_subsidy"], id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete subsidy %s", id)
	}
	if tag.RowsAffected() == 0 {
		return &NotFoundError{Entity: "subsidy", ID: id}
	}
	return nil
}

func (s *PostgresStore) Snapshot(ctx context.Context) ([]model.SubsidyRecord, error) {
	return s.ListSubsidies(ctx, SubsidyFilter{})
}

func (s *PostgresStore) ListCategories(ctx context.Context) ([]string, error) {
	records, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return collectCategories(records), nil
}

func (s *PostgresStore) ListPrefectures(ctx context.Context) ([]string, error) {
	records, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return collectPrefectures(records), nil
}

func (s *PostgresStore) SaveAnalysis(ctx context.Context, run *model.AnalysisRun) error {
	profileJSON, err := json.Marshal(run.Profile)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal profile")
	}
	matchesJSON, err := json.Marshal(run.Matches)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal matches")
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO analyses (id, url, strategy, profile, matches, analyzed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			url = EXCLUDED.url,
			strategy = EXCLUDED.strategy,
			profile = EXCLUDED.profile,
			matches = EXCLUDED.matches,
			analyzed_at = EXCLUDED.analyzed_at`,
		run.ID, run.URL, run.Strategy, profileJSON, matchesJSON, run.AnalyzedAt,
	)
	return eris.Wrapf(err, "postgres: save analysis %s", run.ID)
}

func (s *PostgresStore) GetAnalysis(ctx context.Context, id string) (*model.AnalysisRun, error) {
	row := s.pool.QueryRow(ctx, preparedStatements["get_analysis"], id)
	run, err := scanPgAnalysis(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &NotFoundError{Entity: "analysis", ID: id}
	}
	return run, err
}

func (s *PostgresStore) ListAnalyses(ctx context.Context, limit int) ([]model.AnalysisRun, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, url, strategy, profile, matches, analyzed_at FROM analyses
		 ORDER BY analyzed_at DESC LIMIT $1`, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list analyses")
	}
	defer rows.Close()

	var runs []model.AnalysisRun
	for rows.Next() {
		run, err := scanPgAnalysis(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list analyses iterate")
}

// BulkInsertSubsidies loads records over the COPY protocol. The target table
// must be empty of the incoming ids; use UpsertSubsidy for incremental syncs.
func (s *PostgresStore) BulkInsertSubsidies(ctx context.Context, records []model.SubsidyRecord) (int64, error) {
	columns := []string{"id", "title", "organization", "description", "deadline", "status",
		"amount", "eligibility", "category", "prefecture", "url", "source", "last_updated"}

	rows := make([][]any, 0, len(records))
	for i := range records {
		rec := &records[i]
		amountJSON, eligJSON, catJSON, err := marshalSubsidyJSON(rec)
		if err != nil {
			return 0, err
		}
		rows = append(rows, []any{
			rec.ID, rec.Title, rec.Organization, rec.Description, rec.Deadline,
			string(rec.Status), []byte(amountJSON), []byte(eligJSON), []byte(catJSON),
			rec.Prefecture, rec.URL, rec.Source, rec.LastUpdated,
		})
	}

	return db.CopyFrom(ctx, s.pool, "subsidies", columns, rows)
}

func scanPgSubsidy(row pgx.Row) (*model.SubsidyRecord, error) {
	var rec model.SubsidyRecord
	var status string
	var amountJSON, eligJSON, catJSON []byte

	err := row.Scan(&rec.ID, &rec.Title, &rec.Organization, &rec.Description,
		&rec.Deadline, &status, &amountJSON, &eligJSON, &catJSON,
		&rec.Prefecture, &rec.URL, &rec.Source, &rec.LastUpdated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan subsidy")
	}

	rec.Status = model.SubsidyStatus(status)
	if err := json.Unmarshal(amountJSON, &rec.Amount); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal amount")
	}
	if err := json.Unmarshal(eligJSON, &rec.Eligibility); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal eligibility")
	}
	if err := json.Unmarshal(catJSON, &rec.Category); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal category")
	}
	return &rec, nil
}

func scanPgAnalysis(row pgx.Row) (*model.AnalysisRun, error) {
	var run model.AnalysisRun
	var profileJSON, matchesJSON []byte

	err := row.Scan(&run.ID, &run.URL, &run.Strategy, &profileJSON, &matchesJSON, &run.AnalyzedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan analysis")
	}

	if err := json.Unmarshal(profileJSON, &run.Profile); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal profile")
	}
	if err := json.Unmarshal(matchesJSON, &run.Matches); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal matches")
	}
	return &run, nil
}
