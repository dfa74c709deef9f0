package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jjenkins/laborwatch/internal/model"
)

// LegislationStore handles database operations for tracked legislation
type LegislationStore struct {
	db *sql.DB
}

// NewLegislationStore creates a new LegislationStore
func NewLegislationStore(db *sql.DB) *LegislationStore {
	return &LegislationStore{db: db}
}

// Classify reconciles a discovered legislation fact the same way
// RequirementStore.Classify reconciles requirements. New records start in the
// fact's reported status, defaulting to proposed.
func (s *LegislationStore) Classify(ctx context.Context, jurisdictionID int, level model.Level, fact model.DiscoveredFact) (model.ClassifyResult, error) {
	var result model.ClassifyResult
	normalized := NormalizeTitle(fact.Title)

	status := model.LegislationStatus(fact.Status)
	if status == "" {
		status = model.StatusProposed
	}
	if !model.ValidStatus(status) {
		return result, &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown legislation status %q", fact.Status)}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("failed to begin classify: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, current_value FROM legislation
		WHERE jurisdiction_id = $1 AND category = $2 AND normalized_title = $3
		FOR UPDATE
	`, jurisdictionID, fact.Category, normalized)
	if err != nil {
		return result, fmt.Errorf("failed to look up legislation: %w", err)
	}

	var ids []int
	var values []string
	for rows.Next() {
		var id int
		var value string
		if err := rows.Scan(&id, &value); err != nil {
			rows.Close()
			return result, fmt.Errorf("failed to scan legislation: %w", err)
		}
		ids = append(ids, id)
		values = append(values, value)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return result, fmt.Errorf("failed to look up legislation: %w", err)
	}

	if len(ids) > 1 {
		return result, &DuplicateFactError{JurisdictionID: jurisdictionID, Category: fact.Category, Title: fact.Title}
	}

	now := time.Now()

	switch {
	case len(ids) == 0:
		err = tx.QueryRowContext(ctx, `
			INSERT INTO legislation (jurisdiction_id, category, title, normalized_title, current_status,
			                         current_value, source_name, source_url, effective_date,
			                         last_verified_at, last_changed_at, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10, $10)
			RETURNING id
		`, jurisdictionID, fact.Category, fact.Title, normalized, status,
			fact.Value, nullString(fact.SourceName), nullString(fact.SourceURL), parseEffectiveDate(fact.EffectiveDate),
			now,
		).Scan(&result.RecordID)
		if err != nil {
			return result, fmt.Errorf("failed to insert legislation: %w", err)
		}
		result.Status = model.StatusNew

	case values[0] != fact.Value:
		result.RecordID = ids[0]
		_, err = tx.ExecContext(ctx, `
			UPDATE legislation
			SET previous_value = current_value, current_value = $2,
			    source_name = $3, source_url = $4, effective_date = $5,
			    last_changed_at = $6, last_verified_at = $6
			WHERE id = $1
		`, ids[0], fact.Value, nullString(fact.SourceName), nullString(fact.SourceURL),
			parseEffectiveDate(fact.EffectiveDate), now)
		if err != nil {
			return result, fmt.Errorf("failed to update legislation %d: %w", ids[0], err)
		}
		result.Status = model.StatusUpdated

	default:
		result.RecordID = ids[0]
		_, err = tx.ExecContext(ctx, `UPDATE legislation SET last_verified_at = $2 WHERE id = $1`, ids[0], now)
		if err != nil {
			return result, fmt.Errorf("failed to refresh legislation %d: %w", ids[0], err)
		}
		result.Status = model.StatusExisting
	}

	if err := tx.Commit(); err != nil {
		return result, fmt.Errorf("failed to commit classify: %w", err)
	}

	return result, nil
}

// AdvanceStatus moves a tracked bill forward in its lifecycle. Transitions
// only move forward; dismissed is terminal from any state. Invalid moves fail
// with InvalidStatusTransitionError.
func (s *LegislationStore) AdvanceStatus(ctx context.Context, id int, to model.LegislationStatus) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin status update: %w", err)
	}
	defer tx.Rollback()

	var from model.LegislationStatus
	err = tx.QueryRowContext(ctx, `SELECT current_status FROM legislation WHERE id = $1 FOR UPDATE`, id).Scan(&from)
	if err == sql.ErrNoRows {
		return &ValidationError{Field: "id", Reason: fmt.Sprintf("legislation %d does not exist", id)}
	}
	if err != nil {
		return fmt.Errorf("failed to get legislation %d: %w", id, err)
	}

	if !model.CanTransition(from, to) {
		return &InvalidStatusTransitionError{From: from, To: to}
	}

	_, err = tx.ExecContext(ctx, `UPDATE legislation SET current_status = $2, last_changed_at = $3 WHERE id = $1`, id, to, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update status for legislation %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit status update: %w", err)
	}

	return nil
}

// ListByJurisdiction retrieves all legislation local to a jurisdiction
func (s *LegislationStore) ListByJurisdiction(ctx context.Context, jurisdictionID int) ([]model.Legislation, error) {
	query := `
		SELECT id, jurisdiction_id, category, title, current_status, current_value,
		       previous_value, source_name, source_url, effective_date,
		       last_verified_at, last_changed_at, created_at
		FROM legislation
		WHERE jurisdiction_id = $1
		ORDER BY category, title
	`

	rows, err := s.db.QueryContext(ctx, query, jurisdictionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list legislation for jurisdiction %d: %w", jurisdictionID, err)
	}
	defer rows.Close()

	var bills []model.Legislation
	for rows.Next() {
		var l model.Legislation
		err := rows.Scan(
			&l.ID,
			&l.JurisdictionID,
			&l.Category,
			&l.Title,
			&l.CurrentStatus,
			&l.CurrentValue,
			&l.PreviousValue,
			&l.SourceName,
			&l.SourceURL,
			&l.EffectiveDate,
			&l.LastVerifiedAt,
			&l.LastChangedAt,
			&l.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan legislation: %w", err)
		}
		bills = append(bills, l)
	}

	return bills, rows.Err()
}
