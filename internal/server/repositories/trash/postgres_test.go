package trash

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/pubflow/internal/common"
	"github.com/dmitrijs2005/pubflow/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

func TestPut(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO trash_records .* ON CONFLICT \(entry_id\)`).
		WithArgs("e1", "s1", "u1", "pending", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Put(context.Background(), &models.TrashRecord{
		EntryID: "e1", ScopeID: "s1", ActorID: "u1", OldStatus: models.StatusPending, TrashedAt: at,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPut_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectExec(`INSERT INTO trash_records`).WillReturnError(errors.New("boom"))

	err := repo.Put(context.Background(), &models.TrashRecord{EntryID: "e1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db error: boom")
}

func TestGet(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	at := time.Now().UTC()

	mock.ExpectQuery(`SELECT entry_id, scope_id, actor_id, old_status, trashed_at\s+FROM trash_records\s+WHERE entry_id = \$1`).
		WithArgs("e1").
		WillReturnRows(sqlmock.NewRows([]string{"entry_id", "scope_id", "actor_id", "old_status", "trashed_at"}).
			AddRow("e1", "s1", "u1", "approved", at))

	rec, err := repo.Get(context.Background(), "e1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, rec.OldStatus)
	assert.Equal(t, "s1", rec.ScopeID)
}

func TestGet_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectQuery(`FROM trash_records`).WithArgs("e1").WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "e1")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestDelete(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectExec(`DELETE FROM trash_records WHERE entry_id = \$1`).
		WithArgs("e1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Delete(context.Background(), "e1"))
}
