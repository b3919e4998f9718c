package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CheckpointRepository persists the last observed status per checkpoint in
// the checkpoint_times table.
type CheckpointRepository struct {
	pool *pgxpool.Pool
}

func NewCheckpointRepository(pool *pgxpool.Pool) *CheckpointRepository {
	return &CheckpointRepository{pool: pool}
}

// LoadAll returns every stored status keyed by checkpoint name. Checkpoints
// never observed are absent from the map.
func (r *CheckpointRepository) LoadAll(ctx context.Context) (map[string]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT checkpoint, time FROM checkpoint_times`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	states := make(map[string]string)
	for rows.Next() {
		var checkpoint, status string
		if err := rows.Scan(&checkpoint, &status); err != nil {
			return nil, err
		}
		states[checkpoint] = status
	}
	return states, rows.Err()
}

// Get returns the stored status for one checkpoint.
func (r *CheckpointRepository) Get(ctx context.Context, checkpoint string) (string, bool, error) {
	var status string
	err := r.pool.QueryRow(ctx,
		`SELECT time FROM checkpoint_times WHERE checkpoint = $1`, checkpoint,
	).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return status, true, nil
}

// Upsert inserts the checkpoint row or overwrites its status. Presence is
// decided by the table, not by what the caller loaded earlier.
func (r *CheckpointRepository) Upsert(ctx context.Context, checkpoint, status string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO checkpoint_times (checkpoint, time)
		 VALUES ($1, $2)
		 ON CONFLICT (checkpoint) DO UPDATE
		 SET time = EXCLUDED.time, updated_at = now()`,
		checkpoint, status,
	)
	return err
}
