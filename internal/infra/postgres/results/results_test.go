package infra_postgres_results

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paramsgit/scribble/internal/model"
)

type resources struct {
	mock   sqlmock.Sqlmock
	driver *Driver
	ctx    context.Context
}

func initResources(t *testing.T) *resources {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return &resources{
		mock:   mock,
		driver: New(sqlx.NewDb(db, "sqlmock")),
		ctx:    context.Background(),
	}
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()
	r := initResources(t)

	r.mock.ExpectExec("CREATE TABLE IF NOT EXISTS game_results").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, r.driver.EnsureSchema(r.ctx))
	assert.NoError(t, r.mock.ExpectationsWereMet())
}

func TestArchive(t *testing.T) {
	t.Parallel()

	t.Run("Should insert one row per player", func(t *testing.T) {
		t.Parallel()
		r := initResources(t)

		scores := []model.PlayerScore{
			{ID: "p1", Name: "player-p1", Score: 14},
			{ID: "p2", Name: "player-p2", Score: 9},
		}
		for _, s := range scores {
			r.mock.ExpectExec("INSERT INTO game_results").
				WithArgs("room-test01", s.ID, s.Name, s.Score, sqlmock.AnyArg()).
				WillReturnResult(sqlmock.NewResult(1, 1))
		}

		require.NoError(t, r.driver.Archive(r.ctx, "room-test01", scores))
		assert.NoError(t, r.mock.ExpectationsWereMet())
	})

	t.Run("Should surface insert failure", func(t *testing.T) {
		t.Parallel()
		r := initResources(t)

		r.mock.ExpectExec("INSERT INTO game_results").
			WillReturnError(errors.New("connection reset"))

		err := r.driver.Archive(r.ctx, "room-test01", []model.PlayerScore{
			{ID: "p1", Name: "player-p1", Score: 3},
		})
		assert.Error(t, err)
	})
}
