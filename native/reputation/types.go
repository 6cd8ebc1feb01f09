package reputation

import (
	"errors"
	"fmt"
	"strings"
)

// Role selects which reputation ledger a score belongs to.
type Role uint8

const (
	RoleOwner Role = iota + 1
	RoleBorrower
	RoleArbitrator
)

func (r Role) String() string {
	switch r {
	case RoleOwner:
		return "owner"
	case RoleBorrower:
		return "borrower"
	case RoleArbitrator:
		return "arbitrator"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

// Bounded reports whether scores for the role are clamped into Bounds.
// Arbitrator reputation is unbounded.
func (r Role) Bounded() bool {
	return r == RoleOwner || r == RoleBorrower
}

// ParseRole maps the lowercase role name back onto a Role.
func ParseRole(name string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "owner":
		return RoleOwner, nil
	case "borrower":
		return RoleBorrower, nil
	case "arbitrator":
		return RoleArbitrator, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidRole, name)
	}
}

func (r Role) valid() bool {
	return r >= RoleOwner && r <= RoleArbitrator
}

var (
	// ErrInvalidRole is returned for unknown ledger roles.
	ErrInvalidRole = errors.New("reputation: invalid role")
	// ErrInvalidBounds marks a bounds configuration that cannot hold any score.
	ErrInvalidBounds = errors.New("reputation: invalid bounds")
)

// Bounds constrains owner and borrower reputation. Identities that were never
// scored start at Initial.
type Bounds struct {
	Min     int64
	Max     int64
	Initial int64
}

// DefaultBounds returns the bounds used when none are configured.
func DefaultBounds() Bounds {
	return Bounds{Min: 0, Max: 1000, Initial: 100}
}

// Validate ensures Min <= Initial <= Max.
func (b Bounds) Validate() error {
	if b.Min > b.Max {
		return fmt.Errorf("%w: min %d above max %d", ErrInvalidBounds, b.Min, b.Max)
	}
	if b.Initial < b.Min || b.Initial > b.Max {
		return fmt.Errorf("%w: initial %d outside [%d,%d]", ErrInvalidBounds, b.Initial, b.Min, b.Max)
	}
	return nil
}

// Clamp pins v into [Min, Max].
func (b Bounds) Clamp(v int64) int64 {
	if v < b.Min {
		return b.Min
	}
	if v > b.Max {
		return b.Max
	}
	return v
}

// Change describes a single applied adjustment.
type Change struct {
	Role    Role
	Address [20]byte
	Delta   int64
	Before  int64
	After   int64
}
