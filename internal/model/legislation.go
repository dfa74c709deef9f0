package model

import (
	"database/sql"
	"time"
)

// LegislationStatus tracks where a pending regulatory change sits in its
// lifecycle. Transitions only move forward; dismissed is terminal from any
// state.
type LegislationStatus string

const (
	StatusProposed      LegislationStatus = "proposed"
	StatusPassed        LegislationStatus = "passed"
	StatusSigned        LegislationStatus = "signed"
	StatusEffectiveSoon LegislationStatus = "effective_soon"
	StatusEffective     LegislationStatus = "effective"
	StatusDismissed     LegislationStatus = "dismissed"
)

var legislationTransitions = map[LegislationStatus]map[LegislationStatus]struct{}{
	StatusProposed:      {StatusPassed: {}, StatusDismissed: {}},
	StatusPassed:        {StatusSigned: {}, StatusDismissed: {}},
	StatusSigned:        {StatusEffectiveSoon: {}, StatusDismissed: {}},
	StatusEffectiveSoon: {StatusEffective: {}, StatusDismissed: {}},
	StatusEffective:     {StatusDismissed: {}},
	StatusDismissed:     {},
}

// ValidStatus reports whether s is a known legislation status
func ValidStatus(s LegislationStatus) bool {
	_, ok := legislationTransitions[s]
	return ok
}

// CanTransition reports whether a legislation status may move from one state
// to another
func CanTransition(from, to LegislationStatus) bool {
	next, ok := legislationTransitions[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}

// Legislation is a tracked pending or enacted regulatory change for a
// jurisdiction
type Legislation struct {
	ID             int
	JurisdictionID int
	Category       string
	Title          string
	CurrentStatus  LegislationStatus
	CurrentValue   string
	PreviousValue  sql.NullString
	SourceName     sql.NullString
	SourceURL      sql.NullString
	EffectiveDate  sql.NullTime
	LastVerifiedAt time.Time
	LastChangedAt  time.Time
	CreatedAt      time.Time

	// Inherited mirrors Requirement.Inherited: read-time only.
	Inherited bool
}
