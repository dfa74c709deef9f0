package model

import (
	"database/sql"
	"time"
)

// Level indicates where a jurisdiction sits in the government hierarchy
type Level string

const (
	LevelCity    Level = "city"
	LevelCounty  Level = "county"
	LevelState   Level = "state"
	LevelFederal Level = "federal"
)

// Valid reports whether l is one of the known jurisdiction levels
func (l Level) Valid() bool {
	switch l {
	case LevelCity, LevelCounty, LevelState, LevelFederal:
		return true
	default:
		return false
	}
}

// Jurisdiction represents a compliance entity (city/county/state/federal)
// holding labor-law requirements
type Jurisdiction struct {
	ID                 int
	Level              Level
	City               string
	State              string
	County             sql.NullString
	ParentID           sql.NullInt64
	InheritsFromParent bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Label returns the display label used in event streams, e.g. "Austin, TX"
func (j *Jurisdiction) Label() string {
	if j.City == "" {
		return j.State
	}
	return j.City + ", " + j.State
}

// JurisdictionCounts holds read-only projections recomputed from the
// requirement, legislation and location tables. They are never stored.
type JurisdictionCounts struct {
	Requirements int `json:"requirement_count"`
	Legislation  int `json:"legislation_count"`
	Locations    int `json:"location_count"`
	Children     int `json:"children_count"`
}
