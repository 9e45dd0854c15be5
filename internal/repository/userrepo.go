// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/lootlocal/voucherd/internal/model"
)

// UserRepository provides access to per-device user rows.
type UserRepository interface {
	// GetByDevice loads a user by device identifier.
	GetByDevice(ctx context.Context, deviceID string) (*model.User, error)
	// Create inserts a user for an unseen device. When a concurrent request
	// wins the insert, the existing row is returned instead.
	Create(ctx context.Context, deviceID, timezone string) (*model.User, error)
}
