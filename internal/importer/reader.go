// Package importer loads subsidy corpus files (JSON, YAML, XLSX) into the
// store, from local paths or remote URLs.
package importer

import (
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"gopkg.in/yaml.v3"

	"github.com/fukui-lab/subsidy-cli/internal/model"
)

// corpusFile is the on-disk shape of a JSON or YAML corpus file. A bare
// top-level array of records is also accepted for JSON.
type corpusFile struct {
	Subsidies []model.SubsidyRecord `json:"subsidies" yaml:"subsidies"`
}

// ReadJSON decodes subsidy records from a JSON document: either an object
// with a "subsidies" array or a bare array.
func ReadJSON(r io.Reader) ([]model.SubsidyRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "importer: read json")
	}

	trimmed := strings.TrimLeftFunc(string(data), func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	if strings.HasPrefix(trimmed, "[") {
		var records []model.SubsidyRecord
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, eris.Wrap(err, "importer: decode json array")
		}
		return records, nil
	}

	var file corpusFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, eris.Wrap(err, "importer: decode json object")
	}
	return file.Subsidies, nil
}

// ReadYAML decodes subsidy records from a YAML document with a top-level
// "subsidies" list.
func ReadYAML(r io.Reader) ([]model.SubsidyRecord, error) {
	var file corpusFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return nil, eris.Wrap(err, "importer: decode yaml")
	}
	return file.Subsidies, nil
}

// ReadXLSX reads subsidy records from the first sheet of an XLSX workbook.
// The first row must be a header naming the columns: id, title, organization,
// description, deadline, status, amount_min, amount_max, amount_rate,
// eligibility, category, prefecture, url, source. List-valued cells use ";"
// as separator; deadline uses YYYY-MM-DD.
func ReadXLSX(path string) ([]model.SubsidyRecord, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "importer: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("importer: xlsx has no sheets")
	}
	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, nil
	}

	cols := make(map[string]int)
	for j, cell := range sheet.Rows[0].Cells {
		name := strings.ToLower(strings.TrimSpace(cell.String()))
		if name != "" {
			cols[name] = j
		}
	}
	if _, ok := cols["id"]; !ok {
		return nil, eris.New("importer: xlsx header has no id column")
	}

	var records []model.SubsidyRecord
	for i, row := range sheet.Rows {
		if i == 0 {
			continue
		}
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = strings.TrimSpace(cell.String())
		}
		if cellAt(cells, cols, "id") == "" {
			continue // blank row
		}

		rec, err := rowToRecord(cells, cols)
		if err != nil {
			return nil, eris.Wrapf(err, "importer: xlsx row %d", i+1)
		}
		records = append(records, *rec)
	}

	return records, nil
}

func cellAt(cells []string, cols map[string]int, name string) string {
	j, ok := cols[name]
	if !ok || j >= len(cells) {
		return ""
	}
	return cells[j]
}

func rowToRecord(cells []string, cols map[string]int) (*model.SubsidyRecord, error) {
	rec := &model.SubsidyRecord{
		ID:           cellAt(cells, cols, "id"),
		Title:        cellAt(cells, cols, "title"),
		Organization: cellAt(cells, cols, "organization"),
		Description:  cellAt(cells, cols, "description"),
		Prefecture:   cellAt(cells, cols, "prefecture"),
		URL:          cellAt(cells, cols, "url"),
		Source:       cellAt(cells, cols, "source"),
		Status:       model.StatusActive,
	}

	if v := cellAt(cells, cols, "status"); v != "" {
		rec.Status = model.SubsidyStatus(v)
	}
	if v := cellAt(cells, cols, "deadline"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return nil, eris.Wrapf(err, "parse deadline %q", v)
		}
		rec.Deadline = &t
	}
	if v := cellAt(cells, cols, "amount_min"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, eris.Wrapf(err, "parse amount_min %q", v)
		}
		rec.Amount.Min = &n
	}
	if v := cellAt(cells, cols, "amount_max"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, eris.Wrapf(err, "parse amount_max %q", v)
		}
		rec.Amount.Max = &n
	}
	rec.Amount.Rate = cellAt(cells, cols, "amount_rate")
	rec.Eligibility = splitList(cellAt(cells, cols, "eligibility"))
	rec.Category = splitList(cellAt(cells, cols, "category"))

	return rec, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
