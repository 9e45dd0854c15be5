package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/lootlocal/voucherd/internal/errs"
	"github.com/lootlocal/voucherd/internal/model"
)

// UserRepo implements UserRepository using PostgreSQL.
type UserRepo struct{ db *DB }

// NewUserRepo constructs a user repository.
func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

const userColumns = `id, device_id, rerolls, timezone, claimed_today`

// GetByDevice selects a user by device identifier.
func (r *UserRepo) GetByDevice(ctx context.Context, deviceID string) (*model.User, error) {
	const q = `
SELECT ` + userColumns + `
FROM users WHERE device_id=$1`
	row := r.db.Pool.QueryRow(ctx, q, deviceID)
	var u model.User
	if err := row.Scan(&u.ID, &u.DeviceID, &u.Rerolls, &u.Timezone, &u.ClaimedToday); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// Create inserts a user row for an unseen device. Two concurrent rolls for
// the same device race on the unique index; the loser falls back to reading
// the winner's row, so both callers observe a single user.
func (r *UserRepo) Create(ctx context.Context, deviceID, timezone string) (*model.User, error) {
	const q = `
INSERT INTO users (device_id, timezone)
VALUES ($1, $2)
ON CONFLICT (device_id) DO NOTHING
RETURNING ` + userColumns
	row := r.db.Pool.QueryRow(ctx, q, deviceID, timezone)
	var u model.User
	err := row.Scan(&u.ID, &u.DeviceID, &u.Rerolls, &u.Timezone, &u.ClaimedToday)
	switch {
	case err == nil:
		return &u, nil
	case errors.Is(err, pgx.ErrNoRows) || isUniqueViolation(err):
		return r.GetByDevice(ctx, deviceID)
	default:
		return nil, err
	}
}
