package store

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jjenkins/laborwatch/internal/model"
)

func newJurisdictionMock(t *testing.T) (*JurisdictionStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewJurisdictionStore(db), mock
}

func jurisdictionRow(id int, level model.Level, city, state string, parentID any, inherits bool) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "level", "city", "state", "county", "parent_id", "inherits_from_parent", "created_at", "updated_at",
	}).AddRow(id, string(level), city, state, nil, parentID, inherits, now, now)
}

func TestJurisdictionGetByID(t *testing.T) {
	store, mock := newJurisdictionMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM jurisdictions WHERE id = $1`)).
		WithArgs(3).
		WillReturnRows(jurisdictionRow(3, model.LevelCity, "Austin", "TX", 2, true))

	j, err := store.GetByID(context.Background(), 3)
	require.NoError(t, err)
	require.NotNil(t, j)
	assert.Equal(t, "Austin, TX", j.Label())
	assert.Equal(t, int64(2), j.ParentID.Int64)
	assert.True(t, j.InheritsFromParent)
}

func TestJurisdictionGetByIDNotFound(t *testing.T) {
	store, mock := newJurisdictionMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM jurisdictions WHERE id = $1`)).
		WithArgs(99).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	j, err := store.GetByID(context.Background(), 99)
	require.NoError(t, err)
	assert.Nil(t, j)
}

func TestJurisdictionGetByCityStateCaseInsensitive(t *testing.T) {
	store, mock := newJurisdictionMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE LOWER(city) = LOWER($1) AND LOWER(state) = LOWER($2)`)).
		WithArgs("austin", "tx").
		WillReturnRows(jurisdictionRow(3, model.LevelCity, "Austin", "TX", nil, false))

	j, err := store.GetByCityState(context.Background(), "austin", "tx")
	require.NoError(t, err)
	require.NotNil(t, j)
	assert.Equal(t, 3, j.ID)
}

func TestJurisdictionCreateValidation(t *testing.T) {
	store, _ := newJurisdictionMock(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		input model.Jurisdiction
		field string
	}{
		{"blank city", model.Jurisdiction{Level: model.LevelCity, State: "TX"}, "city"},
		{"blank state", model.Jurisdiction{Level: model.LevelCity, City: "Austin"}, "state"},
		{"bad level", model.Jurisdiction{Level: "province", City: "Austin", State: "TX"}, "level"},
		{"inherits without parent", model.Jurisdiction{Level: model.LevelCity, City: "Austin", State: "TX", InheritsFromParent: true}, "inherits_from_parent"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := tc.input
			err := store.Create(ctx, &input)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestJurisdictionCreateWithParent(t *testing.T) {
	store, mock := newJurisdictionMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM jurisdictions WHERE id = $1`)).
		WithArgs(2).
		WillReturnRows(jurisdictionRow(2, model.LevelState, "", "TX", nil, false))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT parent_id FROM jurisdictions WHERE id = $1`)).
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"parent_id"}).AddRow(nil))

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO jurisdictions`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(3, now, now))

	j := model.Jurisdiction{
		Level: model.LevelCity, City: "Austin", State: "TX",
		ParentID: sql.NullInt64{Int64: 2, Valid: true}, InheritsFromParent: true,
	}
	err := store.Create(context.Background(), &j)
	require.NoError(t, err)
	assert.Equal(t, 3, j.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJurisdictionCreateMissingParent(t *testing.T) {
	store, mock := newJurisdictionMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM jurisdictions WHERE id = $1`)).
		WithArgs(99).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	j := model.Jurisdiction{
		Level: model.LevelCity, City: "Austin", State: "TX",
		ParentID: sql.NullInt64{Int64: 99, Valid: true},
	}
	err := store.Create(context.Background(), &j)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "parent_id", verr.Field)
}

func TestJurisdictionReparentRejectsCycle(t *testing.T) {
	store, mock := newJurisdictionMock(t)

	// Moving 1 under 3 while 3's chain runs 3 -> 2 -> 1.
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT parent_id FROM jurisdictions WHERE id = $1`)).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"parent_id"}).AddRow(2))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT parent_id FROM jurisdictions WHERE id = $1`)).
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"parent_id"}).AddRow(1))

	err := store.Reparent(context.Background(), 1, 3)

	var cyc *CyclicParentError
	require.ErrorAs(t, err, &cyc)
	assert.Equal(t, 1, cyc.JurisdictionID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJurisdictionReparentMovesNode(t *testing.T) {
	store, mock := newJurisdictionMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT parent_id FROM jurisdictions WHERE id = $1`)).
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"parent_id"}).AddRow(nil))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE jurisdictions SET parent_id = $2`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Reparent(context.Background(), 3, 2)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJurisdictionDeleteBlockedByLocations(t *testing.T) {
	store, mock := newJurisdictionMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM locations WHERE jurisdiction_id = $1`)).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectRollback()

	_, err := store.Delete(context.Background(), 3)
	assert.ErrorIs(t, err, ErrHasLinkedLocations)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJurisdictionDeleteDetachesChildren(t *testing.T) {
	store, mock := newJurisdictionMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM locations WHERE jurisdiction_id = $1`)).
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(regexp.QuoteMeta(`SET parent_id = NULL, inherits_from_parent = FALSE`)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM requirements WHERE jurisdiction_id = $1`)).
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM legislation WHERE jurisdiction_id = $1`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM jurisdictions WHERE id = $1`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	detached, err := store.Delete(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, detached)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJurisdictionCounts(t *testing.T) {
	store, mock := newJurisdictionMock(t)

	mock.ExpectQuery(`SELECT`).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"requirements", "legislation", "locations", "children"}).
			AddRow(5, 2, 1, 3))

	counts, err := store.Counts(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, model.JurisdictionCounts{Requirements: 5, Legislation: 2, Locations: 1, Children: 3}, counts)
}
