// Package store persists the subsidy corpus and completed analysis runs.
package store

import (
	"context"
	"errors"

	"github.com/fukui-lab/subsidy-cli/internal/model"
)

// SubsidyFilter specifies criteria for listing subsidies. Zero values mean
// "no constraint".
type SubsidyFilter struct {
	// Status matches exactly.
	Status model.SubsidyStatus `json:"status,omitempty"`

	// Category matches records having a category containing this substring.
	Category string `json:"category,omitempty"`

	// Prefecture matches records for this prefecture or nationwide programs.
	Prefecture string `json:"prefecture,omitempty"`

	// Search is a case-insensitive free-text match over title, description,
	// and organization.
	Search string `json:"search,omitempty"`

	Limit int `json:"limit,omitempty"`
}

// Store defines the persistence interface for the corpus and analyses.
type Store interface {
	// Corpus
	ListSubsidies(ctx context.Context, filter SubsidyFilter) ([]model.SubsidyRecord, error)
	GetSubsidy(ctx context.Context, id string) (*model.SubsidyRecord, error)
	UpsertSubsidy(ctx context.Context, rec model.SubsidyRecord) error
	DeleteSubsidy(ctx context.Context, id string) error

	// Snapshot returns the full corpus for one scoring pass. Callers must
	// treat the returned slice as read-only; a concurrent reload never
	// mutates a handed-out snapshot.
	Snapshot(ctx context.Context) ([]model.SubsidyRecord, error)

	// Metadata
	ListCategories(ctx context.Context) ([]string, error)
	ListPrefectures(ctx context.Context) ([]string, error)

	// Analyses
	SaveAnalysis(ctx context.Context, run *model.AnalysisRun) error
	GetAnalysis(ctx context.Context, id string) (*model.AnalysisRun, error)
	ListAnalyses(ctx context.Context, limit int) ([]model.AnalysisRun, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// NotFoundError is returned for lookups of unknown ids.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return e.Entity + " not found: " + e.ID
}

// IsNotFound reports whether err wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
