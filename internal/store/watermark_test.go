package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatestKnownDateReturnsMax(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s, err := NewPostgresWatermarkWithPool(mock, "applicant_data")
	require.NoError(t, err)

	latest := time.Date(2025, 9, 20, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT MAX\(date_added\) FROM applicant_data`).
		WillReturnRows(pgxmock.NewRows([]string{"max"}).AddRow(&latest))

	got, err := s.LatestKnownDate(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Equal(latest))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestKnownDateEmptyTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s, err := NewPostgresWatermarkWithPool(mock, "applicant_data")
	require.NoError(t, err)

	// MAX over an empty table is SQL NULL.
	mock.ExpectQuery(`SELECT MAX\(date_added\) FROM applicant_data`).
		WillReturnRows(pgxmock.NewRows([]string{"max"}).AddRow(nil))

	got, err := s.LatestKnownDate(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestKnownDateQueryError(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s, err := NewPostgresWatermarkWithPool(mock, "applicant_data")
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT MAX\(date_added\) FROM applicant_data`).
		WillReturnError(errors.New("connection reset"))

	_, err = s.LatestKnownDate(context.Background())
	assert.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewPostgresWatermarkWithPoolValidation(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewPostgresWatermarkWithPool(nil, "applicant_data")
	assert.Error(t, err)

	_, err = NewPostgresWatermarkWithPool(mock, "applicant_data; DROP TABLE students")
	assert.Error(t, err)

	s, err := NewPostgresWatermarkWithPool(mock, "")
	require.NoError(t, err)
	assert.Equal(t, "applicant_data", s.table)
}

func TestNewPostgresWatermarkRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := NewPostgresWatermark(context.Background(), Config{})
	assert.Error(t, err)
}
