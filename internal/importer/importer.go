package importer

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/fukui-lab/subsidy-cli/internal/fetcher"
	"github.com/fukui-lab/subsidy-cli/internal/model"
	"github.com/fukui-lab/subsidy-cli/internal/store"
)

// Validate checks a batch of records before import: ids must be unique and
// non-empty, titles non-empty, and statuses known.
func Validate(records []model.SubsidyRecord) error {
	seen := make(map[string]struct{}, len(records))
	for i := range records {
		rec := &records[i]
		if rec.ID == "" {
			return eris.Errorf("importer: record %d has empty id", i)
		}
		if _, dup := seen[rec.ID]; dup {
			return eris.Errorf("importer: duplicate id %q", rec.ID)
		}
		seen[rec.ID] = struct{}{}

		if rec.Title == "" {
			return eris.Errorf("importer: record %q has empty title", rec.ID)
		}
		if !rec.Status.Valid() {
			return eris.Errorf("importer: record %q has unknown status %q", rec.ID, rec.Status)
		}
	}
	return nil
}

// bulkInserter is implemented by stores with a fast bulk load path.
type bulkInserter interface {
	BulkInsertSubsidies(ctx context.Context, records []model.SubsidyRecord) (int64, error)
}

// Importer loads corpus files into a store.
type Importer struct {
	store store.Store
	http  fetcher.Fetcher
	ftp   fetcher.Fetcher
}

// New creates an Importer. The HTTP and FTP fetchers are used by ImportURL;
// either may be nil if that scheme is not needed.
func New(st store.Store, httpF, ftpF fetcher.Fetcher) *Importer {
	return &Importer{store: st, http: httpF, ftp: ftpF}
}

// ImportFile reads a corpus file (format by extension: .json, .yaml/.yml,
// .xlsx), validates it, and upserts every record. Returns the record count.
func (im *Importer) ImportFile(ctx context.Context, path string) (int, error) {
	records, err := readFile(path)
	if err != nil {
		return 0, err
	}
	if err := Validate(records); err != nil {
		return 0, err
	}

	if bulk, ok := im.store.(bulkInserter); ok {
		n, err := bulk.BulkInsertSubsidies(ctx, records)
		if err != nil {
			return 0, eris.Wrap(err, "importer: bulk insert")
		}
		zap.L().Info("corpus imported (bulk)", zap.String("path", path), zap.Int64("records", n))
		return int(n), nil
	}

	for i := range records {
		if err := im.store.UpsertSubsidy(ctx, records[i]); err != nil {
			return i, eris.Wrapf(err, "importer: upsert %q", records[i].ID)
		}
	}
	zap.L().Info("corpus imported", zap.String("path", path), zap.Int("records", len(records)))
	return len(records), nil
}

// ImportURL downloads a corpus file over HTTP(S) or FTP into a temporary
// file and imports it. The file format is taken from the URL path extension.
func (im *Importer) ImportURL(ctx context.Context, rawURL string) (int, error) {
	f := im.http
	if strings.HasPrefix(rawURL, "ftp://") {
		f = im.ftp
	}
	if f == nil {
		return 0, eris.Errorf("importer: no fetcher configured for %s", rawURL)
	}

	ext := strings.ToLower(filepath.Ext(rawURL))
	if ext == "" {
		return 0, eris.Errorf("importer: cannot determine format of %s", rawURL)
	}

	tmp, err := os.CreateTemp("", "corpus-*"+ext)
	if err != nil {
		return 0, eris.Wrap(err, "importer: create temp file")
	}
	tmpPath := tmp.Name()
	tmp.Close() //nolint:errcheck
	defer os.Remove(tmpPath)

	if _, err := f.DownloadToFile(ctx, rawURL, tmpPath); err != nil {
		return 0, eris.Wrapf(err, "importer: download %s", rawURL)
	}

	return im.ImportFile(ctx, tmpPath)
}

func readFile(path string) ([]model.SubsidyRecord, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrap(err, "importer: open file")
		}
		defer f.Close() //nolint:errcheck
		return ReadJSON(f)
	case ".yaml", ".yml":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrap(err, "importer: open file")
		}
		defer f.Close() //nolint:errcheck
		return ReadYAML(f)
	case ".xlsx":
		return ReadXLSX(path)
	default:
		return nil, eris.Errorf("importer: unsupported file format %q", filepath.Ext(path))
	}
}
