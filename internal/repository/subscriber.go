package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SubscriberRepository stores the set of Telegram users receiving change
// notifications. Uniqueness comes from the user_id constraint.
type SubscriberRepository struct {
	pool *pgxpool.Pool
}

func NewSubscriberRepository(pool *pgxpool.Pool) *SubscriberRepository {
	return &SubscriberRepository{pool: pool}
}

func (r *SubscriberRepository) Add(ctx context.Context, userID int64) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO subscribers (user_id) VALUES ($1)
		 ON CONFLICT (user_id) DO NOTHING`, userID)
	return err
}

// Remove deletes the subscriber. Removing a non-member is not an error.
func (r *SubscriberRepository) Remove(ctx context.Context, userID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM subscribers WHERE user_id = $1`, userID)
	return err
}

func (r *SubscriberRepository) List(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id FROM subscribers ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *SubscriberRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM subscribers`).Scan(&n)
	return n, err
}
