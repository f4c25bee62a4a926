// Package model defines the core domain types: subsidy records, derived
// business profiles, and scored matches.
package model

import "time"

// SubsidyStatus represents the application-window state of a subsidy program.
type SubsidyStatus string

const (
	StatusActive   SubsidyStatus = "active"
	StatusExpired  SubsidyStatus = "expired"
	StatusUpcoming SubsidyStatus = "upcoming"
)

// Valid reports whether the status is one of the known values.
func (s SubsidyStatus) Valid() bool {
	switch s {
	case StatusActive, StatusExpired, StatusUpcoming:
		return true
	}
	return false
}

// PrefectureNationwide is the sentinel prefecture for programs open to
// applicants regardless of region.
const PrefectureNationwide = "全国"

// Amount describes the grant amount of a subsidy program. Min and Max are
// yen amounts; Rate is the subsidy rate as published (e.g. "2/3").
type Amount struct {
	Min  *int64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max  *int64 `json:"max,omitempty" yaml:"max,omitempty"`
	Rate string `json:"rate,omitempty" yaml:"rate,omitempty"`
}

// SubsidyRecord is a single subsidy program in the corpus. Records are
// immutable once loaded; a scoring pass never mutates them.
type SubsidyRecord struct {
	ID           string        `json:"id" yaml:"id"`
	Title        string        `json:"title" yaml:"title"`
	Organization string        `json:"organization" yaml:"organization"`
	Description  string        `json:"description" yaml:"description"`
	Deadline     *time.Time    `json:"deadline,omitempty" yaml:"deadline,omitempty"`
	Status       SubsidyStatus `json:"status" yaml:"status"`
	Amount       Amount        `json:"amount" yaml:"amount"`
	Eligibility  []string      `json:"eligibility,omitempty" yaml:"eligibility,omitempty"`
	Category     []string      `json:"category,omitempty" yaml:"category,omitempty"`
	Prefecture   string        `json:"prefecture" yaml:"prefecture"`
	URL          string        `json:"url,omitempty" yaml:"url,omitempty"`
	Source       string        `json:"source,omitempty" yaml:"source,omitempty"`
	LastUpdated  *time.Time    `json:"last_updated,omitempty" yaml:"last_updated,omitempty"`
}

// Nationwide reports whether the program is open regardless of region.
func (r *SubsidyRecord) Nationwide() bool {
	return r.Prefecture == PrefectureNationwide
}
