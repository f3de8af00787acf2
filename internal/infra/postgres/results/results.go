package infra_postgres_results

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/paramsgit/scribble/internal/model"
)

// Driver archives final leaderboards of finished games. One row per player
// per game; nothing in the game path ever reads this back.
type Driver struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Driver {
	return &Driver{db: db}
}

// EnsureSchema creates the results table when it is missing. Idempotent;
// run once at startup before the first Archive.
func (d *Driver) EnsureSchema(ctx context.Context) error {
	const ddl = `CREATE TABLE IF NOT EXISTS game_results (
		id BIGSERIAL PRIMARY KEY,
		room_id TEXT NOT NULL,
		player_id TEXT NOT NULL,
		name TEXT NOT NULL,
		score INT NOT NULL,
		finished_at TIMESTAMPTZ NOT NULL
	)`
	_, err := d.db.ExecContext(ctx, ddl)
	return err
}

func (d *Driver) Archive(ctx context.Context, roomID model.RoomID, scores []model.PlayerScore) error {
	const q = `INSERT INTO game_results (room_id, player_id, name, score, finished_at)
		VALUES ($1, $2, $3, $4, $5)`

	finishedAt := time.Now().UTC()
	for _, s := range scores {
		if _, err := d.db.ExecContext(ctx, q,
			string(roomID),
			s.ID,
			s.Name,
			s.Score,
			finishedAt,
		); err != nil {
			return err
		}
	}
	return nil
}
