package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jjenkins/laborwatch/internal/model"
)

// JurisdictionStore handles database operations for jurisdictions
type JurisdictionStore struct {
	db *sql.DB
}

// NewJurisdictionStore creates a new JurisdictionStore
func NewJurisdictionStore(db *sql.DB) *JurisdictionStore {
	return &JurisdictionStore{db: db}
}

const jurisdictionColumns = `id, level, city, state, county, parent_id, inherits_from_parent, created_at, updated_at`

func scanJurisdiction(row interface{ Scan(...any) error }) (*model.Jurisdiction, error) {
	var j model.Jurisdiction
	err := row.Scan(
		&j.ID,
		&j.Level,
		&j.City,
		&j.State,
		&j.County,
		&j.ParentID,
		&j.InheritsFromParent,
		&j.CreatedAt,
		&j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// GetByID retrieves a jurisdiction by its id
func (s *JurisdictionStore) GetByID(ctx context.Context, id int) (*model.Jurisdiction, error) {
	query := fmt.Sprintf(`SELECT %s FROM jurisdictions WHERE id = $1`, jurisdictionColumns)

	j, err := scanJurisdiction(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get jurisdiction %d: %w", id, err)
	}

	return j, nil
}

// GetByCityState retrieves a jurisdiction by its (city, state) label,
// case-insensitively. Batch targets are addressed this way because they may
// not exist until the run creates them.
func (s *JurisdictionStore) GetByCityState(ctx context.Context, city, state string) (*model.Jurisdiction, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM jurisdictions
		WHERE LOWER(city) = LOWER($1) AND LOWER(state) = LOWER($2)
		ORDER BY id
		LIMIT 1
	`, jurisdictionColumns)

	j, err := scanJurisdiction(s.db.QueryRowContext(ctx, query, city, state))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get jurisdiction %s, %s: %w", city, state, err)
	}

	return j, nil
}

// GetAll retrieves all jurisdictions ordered by state then city
func (s *JurisdictionStore) GetAll(ctx context.Context) ([]model.Jurisdiction, error) {
	query := fmt.Sprintf(`SELECT %s FROM jurisdictions ORDER BY state, city`, jurisdictionColumns)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get jurisdictions: %w", err)
	}
	defer rows.Close()

	var jurisdictions []model.Jurisdiction
	for rows.Next() {
		j, err := scanJurisdiction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan jurisdiction: %w", err)
		}
		jurisdictions = append(jurisdictions, *j)
	}

	return jurisdictions, rows.Err()
}

// GetChildren retrieves all direct children of a jurisdiction
func (s *JurisdictionStore) GetChildren(ctx context.Context, parentID int) ([]model.Jurisdiction, error) {
	query := fmt.Sprintf(`SELECT %s FROM jurisdictions WHERE parent_id = $1 ORDER BY state, city`, jurisdictionColumns)

	rows, err := s.db.QueryContext(ctx, query, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get children for jurisdiction %d: %w", parentID, err)
	}
	defer rows.Close()

	var children []model.Jurisdiction
	for rows.Next() {
		j, err := scanJurisdiction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan child jurisdiction: %w", err)
		}
		children = append(children, *j)
	}

	return children, rows.Err()
}

// Create validates and inserts a jurisdiction, filling in its id.
// Fails with ValidationError on blank city/state or an inheritance flag
// without a parent, and with CyclicParentError if the supplied parent chain
// is itself corrupt.
func (s *JurisdictionStore) Create(ctx context.Context, j *model.Jurisdiction) error {
	if strings.TrimSpace(j.City) == "" {
		return &ValidationError{Field: "city", Reason: "must not be blank"}
	}
	if strings.TrimSpace(j.State) == "" {
		return &ValidationError{Field: "state", Reason: "must not be blank"}
	}
	if !j.Level.Valid() {
		return &ValidationError{Field: "level", Reason: "must be one of city, county, state, federal"}
	}
	if j.InheritsFromParent && !j.ParentID.Valid {
		return &ValidationError{Field: "inherits_from_parent", Reason: "requires parent_id"}
	}

	if j.ParentID.Valid {
		parentID := int(j.ParentID.Int64)
		parent, err := s.GetByID(ctx, parentID)
		if err != nil {
			return err
		}
		if parent == nil {
			return &ValidationError{Field: "parent_id", Reason: fmt.Sprintf("jurisdiction %d does not exist", parentID)}
		}
		// A new node cannot close a loop itself, but a corrupt parent
		// chain must not be extended either.
		if _, err := s.ancestorChain(ctx, parentID, 0); err != nil {
			return err
		}
	}

	query := `
		INSERT INTO jurisdictions (level, city, state, county, parent_id, inherits_from_parent, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING id, created_at, updated_at
	`

	err := s.db.QueryRowContext(ctx, query,
		j.Level,
		j.City,
		j.State,
		j.County,
		j.ParentID,
		j.InheritsFromParent,
		time.Now(),
	).Scan(&j.ID, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create jurisdiction %s, %s: %w", j.City, j.State, err)
	}

	return nil
}

// Reparent moves a jurisdiction under a new parent, failing with
// CyclicParentError when the new parent chain loops back to the jurisdiction
func (s *JurisdictionStore) Reparent(ctx context.Context, id, parentID int) error {
	if _, err := s.ancestorChain(ctx, parentID, id); err != nil {
		return err
	}

	query := `UPDATE jurisdictions SET parent_id = $2, updated_at = $3 WHERE id = $1`
	res, err := s.db.ExecContext(ctx, query, id, parentID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to reparent jurisdiction %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &ValidationError{Field: "id", Reason: fmt.Sprintf("jurisdiction %d does not exist", id)}
	}

	return nil
}

// ancestorChain walks parent links upward from startID. If forbiddenID (> 0)
// appears in the chain, or the chain loops, it fails with CyclicParentError.
func (s *JurisdictionStore) ancestorChain(ctx context.Context, startID, forbiddenID int) ([]int, error) {
	var chain []int
	seen := map[int]bool{}

	id := startID
	for {
		if id == forbiddenID && forbiddenID > 0 {
			return nil, &CyclicParentError{JurisdictionID: forbiddenID, ParentID: startID}
		}
		if seen[id] {
			return nil, &CyclicParentError{JurisdictionID: id, ParentID: startID}
		}
		seen[id] = true
		chain = append(chain, id)

		var parentID sql.NullInt64
		err := s.db.QueryRowContext(ctx, `SELECT parent_id FROM jurisdictions WHERE id = $1`, id).Scan(&parentID)
		if err == sql.ErrNoRows {
			return chain, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to walk parent chain from %d: %w", startID, err)
		}
		if !parentID.Valid {
			return chain, nil
		}
		id = int(parentID.Int64)
	}
}

// Delete removes a jurisdiction along with its requirements and legislation.
// It fails with ErrHasLinkedLocations while any location references the
// jurisdiction. Children are detached (parent_id cleared), never cascaded;
// the detached count is returned so the caller can report it.
func (s *JurisdictionStore) Delete(ctx context.Context, id int) (detachedChildren int, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin delete: %w", err)
	}
	defer tx.Rollback()

	var locationCount int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM locations WHERE jurisdiction_id = $1`, id).Scan(&locationCount); err != nil {
		return 0, fmt.Errorf("failed to count locations for jurisdiction %d: %w", id, err)
	}
	if locationCount > 0 {
		return 0, ErrHasLinkedLocations
	}

	detachQuery := `UPDATE jurisdictions SET parent_id = NULL, inherits_from_parent = FALSE, updated_at = $2 WHERE parent_id = $1`
	res, err := tx.ExecContext(ctx, detachQuery, id, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to detach children of jurisdiction %d: %w", id, err)
	}
	detached, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count detached children: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM requirements WHERE jurisdiction_id = $1`, id); err != nil {
		return 0, fmt.Errorf("failed to delete requirements for jurisdiction %d: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM legislation WHERE jurisdiction_id = $1`, id); err != nil {
		return 0, fmt.Errorf("failed to delete legislation for jurisdiction %d: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM jurisdictions WHERE id = $1`, id); err != nil {
		return 0, fmt.Errorf("failed to delete jurisdiction %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit delete: %w", err)
	}

	return int(detached), nil
}

// Counts recomputes the read-only projections for a jurisdiction
func (s *JurisdictionStore) Counts(ctx context.Context, id int) (model.JurisdictionCounts, error) {
	var c model.JurisdictionCounts

	query := `
		SELECT
			(SELECT COUNT(*) FROM requirements WHERE jurisdiction_id = $1),
			(SELECT COUNT(*) FROM legislation WHERE jurisdiction_id = $1),
			(SELECT COUNT(*) FROM locations WHERE jurisdiction_id = $1),
			(SELECT COUNT(*) FROM jurisdictions WHERE parent_id = $1)
	`
	err := s.db.QueryRowContext(ctx, query, id).Scan(&c.Requirements, &c.Legislation, &c.Locations, &c.Children)
	if err != nil {
		return c, fmt.Errorf("failed to count projections for jurisdiction %d: %w", id, err)
	}

	return c, nil
}
