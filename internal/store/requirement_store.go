package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jjenkins/laborwatch/internal/model"
)

// NormalizeTitle produces the matching key form of a fact title: lowercased
// with inner whitespace collapsed
func NormalizeTitle(title string) string {
	return strings.ToLower(strings.Join(strings.Fields(title), " "))
}

// parseEffectiveDate converts the research API's YYYY-MM-DD date, tolerating
// an empty or malformed value
func parseEffectiveDate(date string) sql.NullTime {
	if date == "" {
		return sql.NullTime{}
	}
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// RequirementStore handles database operations for compliance requirements
type RequirementStore struct {
	db *sql.DB
}

// NewRequirementStore creates a new RequirementStore
func NewRequirementStore(db *sql.DB) *RequirementStore {
	return &RequirementStore{db: db}
}

// Classify reconciles a discovered fact against the existing record set for
// a jurisdiction. The record key is (jurisdiction_id, category, normalized
// title); more than one record under one key fails with DuplicateFactError.
// All writes happen inside a single transaction, so a fact is either fully
// recorded or not recorded at all.
func (s *RequirementStore) Classify(ctx context.Context, jurisdictionID int, level model.Level, fact model.DiscoveredFact) (model.ClassifyResult, error) {
	var result model.ClassifyResult
	normalized := NormalizeTitle(fact.Title)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("failed to begin classify: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, current_value FROM requirements
		WHERE jurisdiction_id = $1 AND category = $2 AND normalized_title = $3
		FOR UPDATE
	`, jurisdictionID, fact.Category, normalized)
	if err != nil {
		return result, fmt.Errorf("failed to look up requirement: %w", err)
	}

	var ids []int
	var values []string
	for rows.Next() {
		var id int
		var value string
		if err := rows.Scan(&id, &value); err != nil {
			rows.Close()
			return result, fmt.Errorf("failed to scan requirement: %w", err)
		}
		ids = append(ids, id)
		values = append(values, value)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return result, fmt.Errorf("failed to look up requirement: %w", err)
	}

	if len(ids) > 1 {
		return result, &DuplicateFactError{JurisdictionID: jurisdictionID, Category: fact.Category, Title: fact.Title}
	}

	now := time.Now()

	switch {
	case len(ids) == 0:
		err = tx.QueryRowContext(ctx, `
			INSERT INTO requirements (jurisdiction_id, jurisdiction_level, category, title, normalized_title,
			                          current_value, source_name, source_url, effective_date,
			                          last_verified_at, last_changed_at, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10, $10)
			RETURNING id
		`, jurisdictionID, level, fact.Category, fact.Title, normalized,
			fact.Value, nullString(fact.SourceName), nullString(fact.SourceURL), parseEffectiveDate(fact.EffectiveDate),
			now,
		).Scan(&result.RecordID)
		if err != nil {
			return result, fmt.Errorf("failed to insert requirement: %w", err)
		}
		result.Status = model.StatusNew

	case values[0] != fact.Value:
		result.RecordID = ids[0]
		_, err = tx.ExecContext(ctx, `
			UPDATE requirements
			SET previous_value = current_value, current_value = $2,
			    source_name = $3, source_url = $4, effective_date = $5,
			    last_changed_at = $6, last_verified_at = $6
			WHERE id = $1
		`, ids[0], fact.Value, nullString(fact.SourceName), nullString(fact.SourceURL),
			parseEffectiveDate(fact.EffectiveDate), now)
		if err != nil {
			return result, fmt.Errorf("failed to update requirement %d: %w", ids[0], err)
		}
		result.Status = model.StatusUpdated

	default:
		result.RecordID = ids[0]
		_, err = tx.ExecContext(ctx, `UPDATE requirements SET last_verified_at = $2 WHERE id = $1`, ids[0], now)
		if err != nil {
			return result, fmt.Errorf("failed to refresh requirement %d: %w", ids[0], err)
		}
		result.Status = model.StatusExisting
	}

	if err := tx.Commit(); err != nil {
		return result, fmt.Errorf("failed to commit classify: %w", err)
	}

	return result, nil
}

const requirementColumns = `id, jurisdiction_id, jurisdiction_level, category, title, current_value,
	       previous_value, source_name, source_url, effective_date,
	       last_verified_at, last_changed_at, created_at`

// ListByJurisdiction retrieves all requirements local to a jurisdiction
func (s *RequirementStore) ListByJurisdiction(ctx context.Context, jurisdictionID int) ([]model.Requirement, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM requirements
		WHERE jurisdiction_id = $1
		ORDER BY category, title
	`, requirementColumns)

	rows, err := s.db.QueryContext(ctx, query, jurisdictionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list requirements for jurisdiction %d: %w", jurisdictionID, err)
	}
	defer rows.Close()

	var requirements []model.Requirement
	for rows.Next() {
		var r model.Requirement
		err := rows.Scan(
			&r.ID,
			&r.JurisdictionID,
			&r.JurisdictionLevel,
			&r.Category,
			&r.Title,
			&r.CurrentValue,
			&r.PreviousValue,
			&r.SourceName,
			&r.SourceURL,
			&r.EffectiveDate,
			&r.LastVerifiedAt,
			&r.LastChangedAt,
			&r.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan requirement: %w", err)
		}
		requirements = append(requirements, r)
	}

	return requirements, rows.Err()
}

// GetByID retrieves a single requirement
func (s *RequirementStore) GetByID(ctx context.Context, id int) (*model.Requirement, error) {
	query := fmt.Sprintf(`SELECT %s FROM requirements WHERE id = $1`, requirementColumns)

	var r model.Requirement
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&r.ID,
		&r.JurisdictionID,
		&r.JurisdictionLevel,
		&r.Category,
		&r.Title,
		&r.CurrentValue,
		&r.PreviousValue,
		&r.SourceName,
		&r.SourceURL,
		&r.EffectiveDate,
		&r.LastVerifiedAt,
		&r.LastChangedAt,
		&r.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get requirement %d: %w", id, err)
	}

	return &r, nil
}

// Delete removes a single requirement. Checks never call this; it exists for
// explicit operator cleanup.
func (s *RequirementStore) Delete(ctx context.Context, id int) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM requirements WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete requirement %d: %w", id, err)
	}
	return nil
}
