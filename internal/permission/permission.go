// Package permission tracks time-boxed edit grants for experiences.
//
// A grant moves from NONE (no row) to REQUESTED (row, not approved) to
// APPROVED. An approved grant is usable until its ExpiresAt; afterwards the
// row stays in place and blocks new requests until it is removed.
package permission

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultWindow is how long an approved grant stays usable.
const DefaultWindow = 30 * time.Minute

var (
	ErrAlreadyRequested  = errors.New("edit permission already requested")
	ErrNotRequested      = errors.New("edit permission not requested")
	ErrPermissionDenied  = errors.New("edit permission denied")
	ErrPermissionExpired = errors.New("edit permission expired")
	// ErrDuplicate is returned by stores when the unique experience index
	// rejects an insert.
	ErrDuplicate = errors.New("duplicate edit permission")
)

type State int

const (
	StateNone State = iota
	StateRequested
	StateApprovedActive
	StateApprovedExpired
)

func (s State) String() string {
	switch s {
	case StateRequested:
		return "REQUESTED"
	case StateApprovedActive:
		return "APPROVED_ACTIVE"
	case StateApprovedExpired:
		return "APPROVED_EXPIRED"
	default:
		return "NONE"
	}
}

type Permission struct {
	ID           int64      `json:"id"`
	ExperienceID int64      `json:"experienceId"`
	UserID       int64      `json:"userId"`
	Approved     bool       `json:"approved"`
	CreatedAt    time.Time  `json:"createdAt"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
}

// StateAt derives the lifecycle state of p at now. A nil permission is NONE.
// The grant is still active at exactly ExpiresAt.
func (p *Permission) StateAt(now time.Time) State {
	if p == nil {
		return StateNone
	}
	if !p.Approved {
		return StateRequested
	}
	if p.ExpiresAt == nil || now.After(*p.ExpiresAt) {
		return StateApprovedExpired
	}
	return StateApprovedActive
}

// Listing is a permission row joined with display names for admin views.
type Listing struct {
	Permission
	ExperienceName string `json:"experienceName"`
	UserName       string `json:"userName"`
}

type Reason string

const (
	ReasonNone         Reason = ""
	ReasonNoPermission Reason = "NO_PERMISSION"
	ReasonNotApproved  Reason = "NOT_APPROVED"
	ReasonExpired      Reason = "EXPIRED"
)

type Decision struct {
	Authorized bool       `json:"authorized"`
	Reason     Reason     `json:"reason,omitempty"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
}

// Err converts a negative decision into ErrPermissionDenied or
// ErrPermissionExpired. It is nil for an authorized decision.
func (d Decision) Err() error {
	if d.Authorized {
		return nil
	}
	switch d.Reason {
	case ReasonExpired:
		return ErrPermissionExpired
	default:
		return fmt.Errorf("%w: %s", ErrPermissionDenied, d.reasonText())
	}
}

func (d Decision) reasonText() string {
	switch d.Reason {
	case ReasonNotApproved:
		return "not approved"
	default:
		return "no permission"
	}
}

// Store persists permission rows. GetByExperienceID returns (nil, nil) when
// no row exists.
type Store interface {
	GetByExperienceID(ctx context.Context, experienceID int64) (*Permission, error)
	Add(ctx context.Context, p *Permission) error
	Update(ctx context.Context, p *Permission) error
	ListAll(ctx context.Context) ([]Listing, error)
}
