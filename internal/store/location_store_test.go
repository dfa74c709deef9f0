package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jjenkins/laborwatch/internal/model"
)

func newLocationMock(t *testing.T) (*LocationStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewLocationStore(db), mock
}

func locationRows(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "jurisdiction_id", "company_name", "name", "auto_check_enabled",
		"auto_check_interval_days", "next_auto_check", "last_compliance_check",
		"created_at", "updated_at",
	}).AddRow(4, 3, "Acme Staffing", "Downtown office", true, 30, now.Add(-time.Hour), nil, now, now)
}

func TestLocationCreate(t *testing.T) {
	store, mock := newLocationMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO locations`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(4))

	l := model.Location{
		JurisdictionID:        3,
		CompanyName:           "Acme Staffing",
		Name:                  "Downtown office",
		AutoCheckEnabled:      true,
		AutoCheckIntervalDays: 30,
	}
	err := store.Create(context.Background(), &l)
	require.NoError(t, err)
	assert.Equal(t, 4, l.ID)
}

func TestLocationDueForAutoCheck(t *testing.T) {
	store, mock := newLocationMock(t)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE auto_check_enabled AND next_auto_check IS NOT NULL AND next_auto_check <= $1`)).
		WithArgs(now).
		WillReturnRows(locationRows(now))

	due, err := store.DueForAutoCheck(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "Downtown office", due[0].Name)
	assert.True(t, due[0].AutoCheckEnabled)
	assert.False(t, due[0].LastComplianceCheck.Valid)
}

func TestLocationMarkChecked(t *testing.T) {
	store, mock := newLocationMock(t)

	checked := time.Now()
	mock.ExpectExec(regexp.QuoteMeta(`next_auto_check = $2 + (auto_check_interval_days || ' days')::interval`)).
		WithArgs(4, checked).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.MarkChecked(context.Background(), 4, checked)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLocationMarkCheckedMissing(t *testing.T) {
	store, mock := newLocationMock(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE locations`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.MarkChecked(context.Background(), 99, time.Now())

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "id", verr.Field)
}

func TestLocationCountByJurisdiction(t *testing.T) {
	store, mock := newLocationMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM locations WHERE jurisdiction_id = $1`)).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	count, err := store.CountByJurisdiction(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestLocationGetByIDNotFound(t *testing.T) {
	store, mock := newLocationMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM locations WHERE id = $1`)).
		WithArgs(99).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	l, err := store.GetByID(context.Background(), 99)
	require.NoError(t, err)
	assert.Nil(t, l)
}
