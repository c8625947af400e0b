package storage

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ignite/mailmerge/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockBackend(t *testing.T) (*PostgresBackend, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresBackend(db), mock
}

func TestPostgresBackendEnsureSchema(t *testing.T) {
	b, mock := newMockBackend(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS mailmerge_documents").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, b.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresBackendGet(t *testing.T) {
	b, mock := newMockBackend(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT body FROM mailmerge_documents WHERE key = $1")).
		WithArgs("campaign").
		WillReturnRows(sqlmock.NewRows([]string{"body"}).AddRow(`{"subject":"Hi"}`))

	data, err := b.Get(context.Background(), "campaign")
	require.NoError(t, err)
	assert.JSONEq(t, `{"subject":"Hi"}`, string(data))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresBackendGetMissing(t *testing.T) {
	b, mock := newMockBackend(t)
	mock.ExpectQuery("SELECT body FROM mailmerge_documents").
		WithArgs("email_provider").
		WillReturnError(sql.ErrNoRows)

	_, err := b.Get(context.Background(), "email_provider")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPostgresBackendGetError(t *testing.T) {
	b, mock := newMockBackend(t)
	mock.ExpectQuery("SELECT body FROM mailmerge_documents").
		WillReturnError(errors.New("connection reset"))

	_, err := b.Get(context.Background(), "campaign")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
}

func TestPostgresBackendPut(t *testing.T) {
	b, mock := newMockBackend(t)
	mock.ExpectExec("INSERT INTO mailmerge_documents").
		WithArgs("campaign", `{"subject":"Hi"}`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, b.Put(context.Background(), "campaign", []byte(`{"subject":"Hi"}`)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresBackendPutError(t *testing.T) {
	b, mock := newMockBackend(t)
	mock.ExpectExec("INSERT INTO mailmerge_documents").
		WillReturnError(errors.New("disk full"))

	err := b.Put(context.Background(), "campaign", []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upserting campaign")
}
