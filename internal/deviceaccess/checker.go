package deviceaccess

import (
	"context"
	"database/sql"
	"errors"

	"github.com/phurich29/mobile-first-looker-ui-sub000/internal/auth"
)

// Checker answers yes/no grant checks for (user, device) pairs.
type Checker interface {
	Allowed(ctx context.Context, userID, deviceCode string) (bool, error)
}

// PostgresChecker resolves grants from the device_access table. Admins hold
// an implicit grant on every device.
type PostgresChecker struct {
	db *sql.DB
}

// NewPostgresChecker constructs a checker.
func NewPostgresChecker(db *sql.DB) *PostgresChecker {
	if db == nil {
		return nil
	}
	return &PostgresChecker{db: db}
}

// Allowed reports whether userID may read deviceCode.
func (c *PostgresChecker) Allowed(ctx context.Context, userID, deviceCode string) (bool, error) {
	if c == nil || c.db == nil {
		return false, errors.New("device access: nil db")
	}
	if userID == "" || deviceCode == "" {
		return false, nil
	}
	if auth.RoleFromContext(ctx) == auth.RoleAdmin {
		return true, nil
	}

	var granted bool
	err := c.db.QueryRowContext(ctx, `
SELECT EXISTS (
	SELECT 1 FROM device_access
	WHERE user_id = $1 AND device_code = $2
)`, userID, deviceCode).Scan(&granted)
	if err != nil {
		return false, err
	}
	return granted, nil
}
