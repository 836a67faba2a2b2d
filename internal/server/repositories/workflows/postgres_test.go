package workflows

import (
	"context"
	"database/sql"
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

func TestCreate(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`INSERT INTO workflow_instances .* ON CONFLICT \(entry_id\)`).
		WithArgs("w1", "e1", "s1", `{"update":true,"base_url":"http://blog"}`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))

	wf := &models.WorkflowInstance{
		ID: "w1", EntryID: "e1", ScopeID: "s1",
		Context: models.TransitionContext{Update: true, BaseURL: "http://blog"},
	}
	require.NoError(t, repo.Create(context.Background(), wf))
	assert.True(t, wf.CreatedAt.Equal(now))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByEntry(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT id, entry_id, scope_id, context, created_at\s+FROM workflow_instances`).
		WithArgs("e1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "entry_id", "scope_id", "context", "created_at"}).
			AddRow("w1", "e1", "s1", []byte(`{"update":true,"targets":["http://t"]}`), now))

	wf, err := repo.GetByEntry(context.Background(), "e1")
	require.NoError(t, err)
	assert.True(t, wf.Context.Update)
	assert.Equal(t, []string{"http://t"}, wf.Context.Targets)
}

func TestGetByEntry_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectQuery(`FROM workflow_instances`).WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByEntry(context.Background(), "e1")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestGetByEntry_BadContext(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectQuery(`FROM workflow_instances`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "entry_id", "scope_id", "context", "created_at"}).
			AddRow("w1", "e1", "s1", []byte(`{`), time.Now()))

	_, err := repo.GetByEntry(context.Background(), "e1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal context")
}

func TestDeleteByEntry(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectExec(`DELETE FROM workflow_instances WHERE entry_id = \$1`).
		WithArgs("e1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.DeleteByEntry(context.Background(), "e1"))
}
