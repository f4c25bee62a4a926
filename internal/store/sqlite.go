package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/fukui-lab/subsidy-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
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
CREATE TABLE IF NOT EXISTS subsidies (
	id           TEXT PRIMARY KEY,
	title        TEXT NOT NULL,
	organization TEXT NOT NULL DEFAULT '',
	description  TEXT NOT NULL DEFAULT '',
	deadline     DATETIME,
	status       TEXT NOT NULL DEFAULT 'active',
	amount       TEXT NOT NULL DEFAULT '{}',
	eligibility  TEXT NOT NULL DEFAULT '[]',
	category     TEXT NOT NULL DEFAULT '[]',
	prefecture   TEXT NOT NULL DEFAULT '',
	url          TEXT NOT NULL DEFAULT '',
	source       TEXT NOT NULL DEFAULT '',
	last_updated DATETIME
);

CREATE TABLE IF NOT EXISTS analyses (
	id          TEXT PRIMARY KEY,
	url         TEXT NOT NULL,
	strategy    TEXT NOT NULL,
	profile     TEXT NOT NULL,
	matches     TEXT NOT NULL,
	analyzed_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_subsidies_status ON subsidies(status);
CREATE INDEX IF NOT EXISTS idx_subsidies_prefecture ON subsidies(prefecture);
CREATE INDEX IF NOT EXISTS idx_analyses_url ON analyses(url);
CREATE INDEX IF NOT EXISTS idx_analyses_analyzed_at ON analyses(analyzed_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const subsidyColumns = `id, title, organization, description, deadline, status,
	amount, eligibility, category, prefecture, url, source, last_updated`

func (s *SQLiteStore) ListSubsidies(ctx context.Context, filter SubsidyFilter) ([]model.SubsidyRecord, error) {
	// Status narrows in SQL; the remaining criteria share the common filter
	// helper so semantics match the other backends exactly.
	query := `SELECT ` + subsidyColumns + ` FROM subsidies WHERE 1=1`
	var args []any
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY deadline IS NULL, deadline ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list subsidies")
	}
	defer rows.Close()

	var records []model.SubsidyRecord
	for rows.Next() {
		rec, err := scanSubsidy(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: list subsidies iterate")
	}

	return applyLimit(applyFilter(records, filter), filter.Limit), nil
}

func (s *SQLiteStore) GetSubsidy(ctx context.Context, id string) (*model.SubsidyRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+subsidyColumns+` FROM subsidies WHERE id = ?`, id,
	)
	rec, err := scanSubsidy(row)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Entity: "subsidy", ID: id}
	}
	return rec, err
}

func (s *SQLiteStore) UpsertSubsidy(ctx context.Context, rec model.SubsidyRecord) error {
	amountJSON, eligJSON, catJSON, err := marshalSubsidyJSON(&rec)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO subsidies (`+subsidyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			organization = excluded.organization,
			description = excluded.description,
			deadline = excluded.deadline,
			status = excluded.status,
			amount = excluded.amount,
			eligibility = excluded.eligibility,
			category = excluded.category,
			prefecture = excluded.prefecture,
			url = excluded.url,
			source = excluded.source,
			last_updated = excluded.last_updated`,
		rec.ID, rec.Title, rec.Organization, rec.Description, rec.Deadline,
		string(rec.Status), amountJSON, eligJSON, catJSON, rec.Prefecture,
		rec.URL, rec.Source, rec.LastUpdated,
	)
	return eris.Wrapf(err, "sqlite: upsert subsidy %s", rec.ID)
}

func (s *SQLiteStore) DeleteSubsidy(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM subsidies WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete subsidy %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return &NotFoundError{Entity: "subsidy", ID: id}
	}
	return nil
}

func (s *SQLiteStore) Snapshot(ctx context.Context) ([]model.SubsidyRecord, error) {
	return s.ListSubsidies(ctx, SubsidyFilter{})
}

func (s *SQLiteStore) ListCategories(ctx context.Context) ([]string, error) {
	records, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return collectCategories(records), nil
}

func (s *SQLiteStore) ListPrefectures(ctx context.Context) ([]string, error) {
	records, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return collectPrefectures(records), nil
}

func (s *SQLiteStore) SaveAnalysis(ctx context.Context, run *model.AnalysisRun) error {
	profileJSON, err := json.Marshal(run.Profile)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal profile")
	}
	matchesJSON, err := json.Marshal(run.Matches)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal matches")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO analyses (id, url, strategy, profile, matches, analyzed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			url = excluded.url,
			strategy = excluded.strategy,
			profile = excluded.profile,
			matches = excluded.matches,
			analyzed_at = excluded.analyzed_at`,
		run.ID, run.URL, run.Strategy, string(profileJSON), string(matchesJSON), run.AnalyzedAt,
	)
	return eris.Wrapf(err, "sqlite: save analysis %s", run.ID)
}

func (s *SQLiteStore) GetAnalysis(ctx context.Context, id string) (*model.AnalysisRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, url, strategy, profile, matches, analyzed_at FROM analyses WHERE id = ?`, id,
	)
	run, err := scanAnalysis(row)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Entity: "analysis", ID: id}
	}
	return run, err
}

func (s *SQLiteStore) ListAnalyses(ctx context.Context, limit int) ([]model.AnalysisRun, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, url, strategy, profile, matches, analyzed_at FROM analyses
		 ORDER BY analyzed_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list analyses")
	}
	defer rows.Close()

	var runs []model.AnalysisRun
	for rows.Next() {
		run, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list analyses iterate")
}

// helpers

func marshalSubsidyJSON(rec *model.SubsidyRecord) (amount, eligibility, category string, err error) {
	a, err := json.Marshal(rec.Amount)
	if err != nil {
		return "", "", "", eris.Wrap(err, "marshal amount")
	}
	e, err := json.Marshal(emptyIfNil(rec.Eligibility))
	if err != nil {
		return "", "", "", eris.Wrap(err, "marshal eligibility")
	}
	c, err := json.Marshal(emptyIfNil(rec.Category))
	if err != nil {
		return "", "", "", eris.Wrap(err, "marshal category")
	}
	return string(a), string(e), string(c), nil
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSubsidy(row scannable) (*model.SubsidyRecord, error) {
	var rec model.SubsidyRecord
	var status string
	var amountJSON, eligJSON, catJSON string
	var deadline, lastUpdated sql.NullTime

	err := row.Scan(&rec.ID, &rec.Title, &rec.Organization, &rec.Description,
		&deadline, &status, &amountJSON, &eligJSON, &catJSON,
		&rec.Prefecture, &rec.URL, &rec.Source, &lastUpdated)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan subsidy")
	}

	rec.Status = model.SubsidyStatus(status)
	if deadline.Valid {
		t := deadline.Time.UTC()
		rec.Deadline = &t
	}
	if lastUpdated.Valid {
		t := lastUpdated.Time.UTC()
		rec.LastUpdated = &t
	}
	if err := json.Unmarshal([]byte(amountJSON), &rec.Amount); err != nil {
		return nil, eris.Wrap(err, "unmarshal amount")
	}
	if err := json.Unmarshal([]byte(eligJSON), &rec.Eligibility); err != nil {
		return nil, eris.Wrap(err, "unmarshal eligibility")
	}
	if err := json.Unmarshal([]byte(catJSON), &rec.Category); err != nil {
		return nil, eris.Wrap(err, "unmarshal category")
	}
	return &rec, nil
}

func scanAnalysis(row scannable) (*model.AnalysisRun, error) {
	var run model.AnalysisRun
	var profileJSON, matchesJSON string
	var analyzedAt time.Time

	err := row.Scan(&run.ID, &run.URL, &run.Strategy, &profileJSON, &matchesJSON, &analyzedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan analysis")
	}

	run.AnalyzedAt = analyzedAt.UTC()
	if err := json.Unmarshal([]byte(profileJSON), &run.Profile); err != nil {
		return nil, eris.Wrap(err, "unmarshal profile")
	}
	if err := json.Unmarshal([]byte(matchesJSON), &run.Matches); err != nil {
		return nil, eris.Wrap(err, "unmarshal matches")
	}
	return &run, nil
}
