package store

import (
	"sort"
	"strings"

	"github.com/fukui-lab/subsidy-cli/internal/model"
)

// applyFilter returns the records matching the filter, in input order.
// All backends share this so filter semantics cannot drift between them.
// The limit is NOT applied here: records must be in final deadline order
// before truncation, and only the caller knows when that is.
func applyFilter(records []model.SubsidyRecord, f SubsidyFilter) []model.SubsidyRecord {
	out := make([]model.SubsidyRecord, 0, len(records))
	for i := range records {
		if matchesFilter(&records[i], f) {
			out = append(out, records[i])
		}
	}
	return out
}

// applyLimit truncates to limit records; zero means no limit.
func applyLimit(records []model.SubsidyRecord, limit int) []model.SubsidyRecord {
	if limit > 0 && len(records) > limit {
		return records[:limit]
	}
	return records
}

func matchesFilter(rec *model.SubsidyRecord, f SubsidyFilter) bool {
	if f.Status != "" && rec.Status != f.Status {
		return false
	}

	if f.Category != "" {
		found := false
		for _, cat := range rec.Category {
			if strings.Contains(cat, f.Category) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if f.Prefecture != "" && rec.Prefecture != f.Prefecture && !rec.Nationwide() {
		return false
	}

	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		haystack := strings.ToLower(rec.Title + " " + rec.Description + " " + rec.Organization)
		if !strings.Contains(haystack, needle) {
			return false
		}
	}

	return true
}

// sortByDeadline orders records by deadline ascending; records without a
// deadline sort last. The sort is stable so equal deadlines keep input order.
func sortByDeadline(records []model.SubsidyRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i].Deadline, records[j].Deadline
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})
}

// collectCategories returns the sorted distinct category labels.
func collectCategories(records []model.SubsidyRecord) []string {
	seen := make(map[string]struct{})
	var out []string
	for i := range records {
		for _, cat := range records[i].Category {
			if _, ok := seen[cat]; !ok {
				seen[cat] = struct{}{}
				out = append(out, cat)
			}
		}
	}
	sort.Strings(out)
	return out
}

// collectPrefectures returns the sorted distinct prefecture values.
func collectPrefectures(records []model.SubsidyRecord) []string {
	seen := make(map[string]struct{})
	var out []string
	for i := range records {
		if records[i].Prefecture == "" {
			continue
		}
		if _, ok := seen[records[i].Prefecture]; !ok {
			seen[records[i].Prefecture] = struct{}{}
			out = append(out, records[i].Prefecture)
		}
	}
	sort.Strings(out)
	return out
}
