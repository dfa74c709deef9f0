package model

import (
	"database/sql"
	"time"
)

// Requirement is one compliance fact (e.g. a minimum wage value) scoped to a
// jurisdiction and category. Requirements are only ever created or mutated by
// fact classification; a check never deletes them.
type Requirement struct {
	ID                int
	JurisdictionID    int
	JurisdictionLevel Level
	Category          string
	Title             string
	CurrentValue      string
	PreviousValue     sql.NullString
	SourceName        sql.NullString
	SourceURL         sql.NullString
	EffectiveDate     sql.NullTime
	LastVerifiedAt    time.Time
	LastChangedAt     time.Time
	CreatedAt         time.Time

	// Inherited is set at read time when the record was resolved from a
	// parent jurisdiction. It is never persisted.
	Inherited bool
}
