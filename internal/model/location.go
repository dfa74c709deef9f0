package model

import (
	"database/sql"
	"time"
)

// Location is a company-owned site that references exactly one jurisdiction
// and carries its own auto-check schedule. A jurisdiction cannot be deleted
// while any location still references it.
type Location struct {
	ID                    int
	JurisdictionID        int
	CompanyName           string
	Name                  string
	AutoCheckEnabled      bool
	AutoCheckIntervalDays int
	NextAutoCheck         sql.NullTime
	LastComplianceCheck   sql.NullTime
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// NextCheckAfter returns the follow-up check time from a completed check
func (l *Location) NextCheckAfter(checked time.Time) time.Time {
	days := l.AutoCheckIntervalDays
	if days <= 0 {
		days = 30
	}
	return checked.AddDate(0, 0, days)
}
