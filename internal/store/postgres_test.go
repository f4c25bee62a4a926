package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fukui-lab/subsidy-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

// anyArgs builds n pgxmock.AnyArg matchers for statements where the argument
// values are not the point of the test.
func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func subsidyRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "title", "organization", "description", "deadline", "status",
		"amount", "eligibility", "category", "prefecture", "url", "source", "last_updated",
	})
}

func TestPostgresGetSubsidy(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	deadline := time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT id, title, organization, .* FROM subsidies WHERE id = \$1`).
		WithArgs("subsidy-001").
		WillReturnRows(subsidyRows().AddRow(
			"subsidy-001", "中小企業デジタル化支援補助金", "福井県", "DX推進を支援",
			&deadline, "active",
			[]byte(`{"max":2000000,"rate":"2/3"}`),
			[]byte(`["県内中小企業"]`),
			[]byte(`["DX・デジタル化"]`),
			"福井県", "https://example.jp", "fukui-pref", (*time.Time)(nil),
		))

	got, err := s.GetSubsidy(context.Background(), "subsidy-001")
	require.NoError(t, err)
	assert.Equal(t, "中小企業デジタル化支援補助金", got.Title)
	assert.Equal(t, model.StatusActive, got.Status)
	require.NotNil(t, got.Amount.Max)
	assert.Equal(t, int64(2000000), *got.Amount.Max)
	assert.Equal(t, []string{"DX・デジタル化"}, got.Category)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetSubsidyNotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, title, organization, .* FROM subsidies WHERE id = \$1`).
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetSubsidy(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpsertSubsidy(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO subsidies .*ON CONFLICT \(id\) DO UPDATE`).
		WithArgs(anyArgs(13)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.UpsertSubsidy(context.Background(), testRecord("subsidy-001"))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDeleteSubsidyNotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM subsidies WHERE id = \$1`).
		WithArgs("nope").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := s.DeleteSubsidy(context.Background(), "nope")
	assert.True(t, IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListSubsidiesStatusFilter(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, title, organization, .* FROM subsidies WHERE status = \$1`).
		WithArgs("active").
		WillReturnRows(subsidyRows().AddRow(
			"subsidy-001", "補助金", "", "", (*time.Time)(nil), "active",
			[]byte(`{}`), []byte(`[]`), []byte(`[]`), "", "", "", (*time.Time)(nil),
		))

	got, err := s.ListSubsidies(context.Background(), SubsidyFilter{Status: model.StatusActive})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "subsidy-001", got[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresBulkInsertSubsidies(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectCopyFrom(pgx.Identifier{"subsidies"}, []string{
		"id", "title", "organization", "description", "deadline", "status",
		"amount", "eligibility", "category", "prefecture", "url", "source", "last_updated",
	}).WillReturnResult(2)

	n, err := s.BulkInsertSubsidies(context.Background(), []model.SubsidyRecord{
		testRecord("subsidy-001"),
		testRecord("subsidy-002"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSaveAnalysis(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO analyses .*ON CONFLICT \(id\) DO UPDATE`).
		WithArgs(anyArgs(6)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run := &model.AnalysisRun{
		ID:         "run-1",
		URL:        "https://example.jp",
		Strategy:   model.StrategyAssisted,
		AnalyzedAt: time.Now().UTC(),
	}
	require.NoError(t, s.SaveAnalysis(context.Background(), run))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetAnalysisNotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, url, strategy, profile, matches, analyzed_at FROM analyses WHERE id = \$1`).
		WithArgs("run-99").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetAnalysis(context.Background(), "run-99")
	assert.True(t, IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListAnalyses(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	analyzedAt := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT id, url, strategy, profile, matches, analyzed_at FROM analyses`).
		WithArgs(50).
		WillReturnRows(pgxmock.NewRows([]string{"id", "url", "strategy", "profile", "matches", "analyzed_at"}).
			AddRow("run-1", "https://example.jp", "heuristic",
				[]byte(`{"confidence":60}`), []byte(`[]`), analyzedAt))

	runs, err := s.ListAnalyses(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 60, runs[0].Profile.Confidence)
	assert.NoError(t, mock.ExpectationsWereMet())
}
