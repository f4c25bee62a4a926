package importer

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/fukui-lab/subsidy-cli/internal/fetcher"
	"github.com/fukui-lab/subsidy-cli/internal/model"
	"github.com/fukui-lab/subsidy-cli/internal/store"
)

const jsonCorpus = `{
	"subsidies": [
		{
			"id": "subsidy-001",
			"title": "中小企業デジタル化支援補助金",
			"organization": "福井県",
			"description": "県内中小企業のDX推進を支援します。",
			"deadline": "2026-12-31T00:00:00Z",
			"status": "active",
			"amount": {"max": 2000000, "rate": "2/3"},
			"eligibility": ["県内に事業所を有する中小企業"],
			"category": ["DX・デジタル化"],
			"prefecture": "福井県"
		},
		{
			"id": "subsidy-002",
			"title": "省エネ設備導入補助金",
			"status": "expired",
			"category": ["省エネ・環境"],
			"prefecture": "全国"
		}
	]
}`

const yamlCorpus = `subsidies:
  - id: subsidy-001
    title: 中小企業デジタル化支援補助金
    status: active
    category:
      - DX・デジタル化
    prefecture: 福井県
  - id: subsidy-002
    title: 省エネ設備導入補助金
    status: upcoming
    prefecture: 全国
`

func TestReadJSONObject(t *testing.T) {
	records, err := ReadJSON(strings.NewReader(jsonCorpus))
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, "subsidy-001", records[0].ID)
	assert.Equal(t, model.StatusActive, records[0].Status)
	require.NotNil(t, records[0].Amount.Max)
	assert.Equal(t, int64(2000000), *records[0].Amount.Max)
	require.NotNil(t, records[0].Deadline)
	assert.Equal(t, model.PrefectureNationwide, records[1].Prefecture)
}

func TestReadJSONBareArray(t *testing.T) {
	records, err := ReadJSON(strings.NewReader(`[{"id":"x","title":"補助金","status":"active"}]`))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "x", records[0].ID)
}

func TestReadJSONMalformed(t *testing.T) {
	_, err := ReadJSON(strings.NewReader(`{not json`))
	require.Error(t, err)
}

func TestReadYAML(t *testing.T) {
	records, err := ReadYAML(strings.NewReader(yamlCorpus))
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, "中小企業デジタル化支援補助金", records[0].Title)
	assert.Equal(t, []string{"DX・デジタル化"}, records[0].Category)
	assert.Equal(t, model.StatusUpcoming, records[1].Status)
}

func writeTestXLSX(t *testing.T) string {
	t.Helper()

	f := xlsx.NewFile()
	sheet, err := f.AddSheet("subsidies")
	require.NoError(t, err)

	header := sheet.AddRow()
	for _, name := range []string{"id", "title", "status", "deadline", "amount_max", "category", "prefecture"} {
		header.AddCell().SetString(name)
	}
	row := sheet.AddRow()
	for _, v := range []string{"subsidy-001", "デジタル化補助金", "active", "2026-12-31", "2000000", "DX・デジタル化;設備投資", "福井県"} {
		row.AddCell().SetString(v)
	}
	sheet.AddRow() // blank row is skipped

	path := filepath.Join(t.TempDir(), "corpus.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestReadXLSX(t *testing.T) {
	records, err := ReadXLSX(writeTestXLSX(t))
	require.NoError(t, err)

	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, "subsidy-001", rec.ID)
	assert.Equal(t, "デジタル化補助金", rec.Title)
	assert.Equal(t, model.StatusActive, rec.Status)
	require.NotNil(t, rec.Deadline)
	assert.Equal(t, "2026-12-31", rec.Deadline.Format("2006-01-02"))
	require.NotNil(t, rec.Amount.Max)
	assert.Equal(t, int64(2000000), *rec.Amount.Max)
	assert.Equal(t, []string{"DX・デジタル化", "設備投資"}, rec.Category)
	assert.Equal(t, "福井県", rec.Prefecture)
}

func TestValidate(t *testing.T) {
	valid := []model.SubsidyRecord{
		{ID: "a", Title: "補助金A", Status: model.StatusActive},
		{ID: "b", Title: "補助金B", Status: model.StatusExpired},
	}
	assert.NoError(t, Validate(valid))

	tests := []struct {
		name    string
		records []model.SubsidyRecord
		wantErr string
	}{
		{
			"empty id",
			[]model.SubsidyRecord{{Title: "補助金", Status: model.StatusActive}},
			"empty id",
		},
		{
			"duplicate id",
			[]model.SubsidyRecord{
				{ID: "a", Title: "補助金A", Status: model.StatusActive},
				{ID: "a", Title: "補助金B", Status: model.StatusActive},
			},
			"duplicate id",
		},
		{
			"empty title",
			[]model.SubsidyRecord{{ID: "a", Status: model.StatusActive}},
			"empty title",
		},
		{
			"unknown status",
			[]model.SubsidyRecord{{ID: "a", Title: "補助金", Status: "pending"}},
			"unknown status",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.records)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestImportFileJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.json")
	require.NoError(t, os.WriteFile(path, []byte(jsonCorpus), 0o644))

	st := store.NewMemory()
	im := New(st, nil, nil)

	n, err := im.ImportFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := st.GetSubsidy(context.Background(), "subsidy-001")
	require.NoError(t, err)
	assert.Equal(t, "中小企業デジタル化支援補助金", got.Title)
}

func TestImportFileRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":"","title":"x","status":"active"}]`), 0o644))

	st := store.NewMemory()
	_, err := New(st, nil, nil).ImportFile(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty id")

	// Nothing was written.
	all, err := st.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestImportFileUnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,title"), 0o644))

	_, err := New(store.NewMemory(), nil, nil).ImportFile(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file format")
}

func TestImportURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, jsonCorpus)
	}))
	defer srv.Close()

	st := store.NewMemory()
	im := New(st, fetcher.NewHTTPFetcher(fetcher.HTTPOptions{}), nil)

	n, err := im.ImportURL(context.Background(), srv.URL+"/corpus.json")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestImportURLNoFetcher(t *testing.T) {
	_, err := New(store.NewMemory(), nil, nil).ImportURL(context.Background(), "ftp://example.jp/corpus.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no fetcher configured")
}
