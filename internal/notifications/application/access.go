package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/phurich29/mobile-first-looker-ui-sub000/internal/auth"
	"github.com/phurich29/mobile-first-looker-ui-sub000/internal/deviceaccess"
	notifications "github.com/phurich29/mobile-first-looker-ui-sub000/internal/notifications/domain"
)

// Identity is the validated caller every downstream component trusts. Owner
// ids are only ever taken from here, never from client input.
type Identity struct {
	UserID string
	Role   auth.Role
}

// AccessValidator confirms the caller is authenticated and holds a read
// grant on a device. Every operation of the alerting engine runs this first
// and aborts on failure.
type AccessValidator struct {
	grants deviceaccess.Checker
}

// NewAccessValidator constructs a validator.
func NewAccessValidator(grants deviceaccess.Checker) (*AccessValidator, error) {
	if grants == nil {
		return nil, errors.New("access validator: nil grant checker")
	}
	return &AccessValidator{grants: grants}, nil
}

// Validate returns the caller's identity when the caller may read deviceCode.
func (v *AccessValidator) Validate(ctx context.Context, deviceCode string) (Identity, error) {
	if v == nil || v.grants == nil {
		return Identity{}, errors.New("access validator: nil grant checker")
	}
	if deviceCode == "" {
		return Identity{}, errors.New("access validator: empty device code")
	}

	userID := auth.UserIDFromContext(ctx)
	if userID == "" {
		return Identity{}, notifications.ErrUnauthenticated
	}

	allowed, err := v.grants.Allowed(ctx, userID, deviceCode)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", notifications.ErrStoreUnavailable, err)
	}
	if !allowed {
		return Identity{}, notifications.ErrForbidden
	}
	return Identity{UserID: userID, Role: auth.RoleFromContext(ctx)}, nil
}
