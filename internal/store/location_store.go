package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jjenkins/laborwatch/internal/model"
)

// LocationStore handles database operations for company locations
type LocationStore struct {
	db *sql.DB
}

// NewLocationStore creates a new LocationStore
func NewLocationStore(db *sql.DB) *LocationStore {
	return &LocationStore{db: db}
}

const locationColumns = `id, jurisdiction_id, company_name, name, auto_check_enabled,
	       auto_check_interval_days, next_auto_check, last_compliance_check,
	       created_at, updated_at`

func scanLocation(row interface{ Scan(...any) error }) (*model.Location, error) {
	var l model.Location
	err := row.Scan(
		&l.ID,
		&l.JurisdictionID,
		&l.CompanyName,
		&l.Name,
		&l.AutoCheckEnabled,
		&l.AutoCheckIntervalDays,
		&l.NextAutoCheck,
		&l.LastComplianceCheck,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// Create inserts a location, filling in its id
func (s *LocationStore) Create(ctx context.Context, l *model.Location) error {
	query := `
		INSERT INTO locations (jurisdiction_id, company_name, name, auto_check_enabled,
		                       auto_check_interval_days, next_auto_check, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING id
	`

	err := s.db.QueryRowContext(ctx, query,
		l.JurisdictionID,
		l.CompanyName,
		l.Name,
		l.AutoCheckEnabled,
		l.AutoCheckIntervalDays,
		l.NextAutoCheck,
		time.Now(),
	).Scan(&l.ID)
	if err != nil {
		return fmt.Errorf("failed to create location %s: %w", l.Name, err)
	}

	return nil
}

// ListByJurisdiction retrieves all locations referencing a jurisdiction
func (s *LocationStore) ListByJurisdiction(ctx context.Context, jurisdictionID int) ([]model.Location, error) {
	query := fmt.Sprintf(`SELECT %s FROM locations WHERE jurisdiction_id = $1 ORDER BY company_name, name`, locationColumns)

	rows, err := s.db.QueryContext(ctx, query, jurisdictionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations for jurisdiction %d: %w", jurisdictionID, err)
	}
	defer rows.Close()

	var locations []model.Location
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		locations = append(locations, *l)
	}

	return locations, rows.Err()
}

// CountByJurisdiction returns how many locations reference a jurisdiction
func (s *LocationStore) CountByJurisdiction(ctx context.Context, jurisdictionID int) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM locations WHERE jurisdiction_id = $1`, jurisdictionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count locations for jurisdiction %d: %w", jurisdictionID, err)
	}
	return count, nil
}

// DueForAutoCheck retrieves locations whose scheduled check time has arrived
func (s *LocationStore) DueForAutoCheck(ctx context.Context, now time.Time) ([]model.Location, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM locations
		WHERE auto_check_enabled AND next_auto_check IS NOT NULL AND next_auto_check <= $1
		ORDER BY next_auto_check
	`, locationColumns)

	rows, err := s.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list due locations: %w", err)
	}
	defer rows.Close()

	var locations []model.Location
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		locations = append(locations, *l)
	}

	return locations, rows.Err()
}

// MarkChecked records a completed compliance check and advances the
// location's schedule by its interval
func (s *LocationStore) MarkChecked(ctx context.Context, id int, checked time.Time) error {
	query := `
		UPDATE locations
		SET last_compliance_check = $2,
		    next_auto_check = $2 + (auto_check_interval_days || ' days')::interval,
		    updated_at = $2
		WHERE id = $1
	`

	res, err := s.db.ExecContext(ctx, query, id, checked)
	if err != nil {
		return fmt.Errorf("failed to mark location %d checked: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &ValidationError{Field: "id", Reason: fmt.Sprintf("location %d does not exist", id)}
	}

	return nil
}

// GetByID retrieves a location by id
func (s *LocationStore) GetByID(ctx context.Context, id int) (*model.Location, error) {
	query := fmt.Sprintf(`SELECT %s FROM locations WHERE id = $1`, locationColumns)

	l, err := scanLocation(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get location %d: %w", id, err)
	}

	return l, nil
}
