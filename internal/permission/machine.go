package permission

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type Machine struct {
	store  Store
	clock  func() time.Time
	window time.Duration
}

type Option func(*Machine)

func WithClock(clock func() time.Time) Option {
	return func(m *Machine) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// WithWindow overrides DefaultWindow. Non-positive values are ignored.
func WithWindow(window time.Duration) Option {
	return func(m *Machine) {
		if window > 0 {
			m.window = window
		}
	}
}

func NewMachine(store Store, opts ...Option) *Machine {
	m := &Machine{
		store:  store,
		clock:  func() time.Time { return time.Now().UTC() },
		window: DefaultWindow,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Machine) Window() time.Duration {
	return m.window
}

// RequestEdit opens a request for experienceID on behalf of userID. Any
// existing row, whatever its state, rejects the request.
func (m *Machine) RequestEdit(ctx context.Context, experienceID, userID int64) (Permission, error) {
	existing, err := m.store.GetByExperienceID(ctx, experienceID)
	if err != nil {
		return Permission{}, fmt.Errorf("load permission: %w", err)
	}
	if existing != nil {
		return Permission{}, ErrAlreadyRequested
	}

	p := Permission{
		ExperienceID: experienceID,
		UserID:       userID,
		Approved:     false,
		CreatedAt:    m.clock(),
	}
	if err := m.store.Add(ctx, &p); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return Permission{}, ErrAlreadyRequested
		}
		return Permission{}, fmt.Errorf("add permission: %w", err)
	}
	return p, nil
}

// ApproveEdit grants the existing row for the configured window starting
// now. Approving an already approved row refreshes the window.
func (m *Machine) ApproveEdit(ctx context.Context, experienceID int64) (Permission, error) {
	existing, err := m.store.GetByExperienceID(ctx, experienceID)
	if err != nil {
		return Permission{}, fmt.Errorf("load permission: %w", err)
	}
	if existing == nil {
		return Permission{}, ErrNotRequested
	}

	now := m.clock()
	expiresAt := now.Add(m.window)
	existing.Approved = true
	existing.CreatedAt = now
	existing.ExpiresAt = &expiresAt
	if err := m.store.Update(ctx, existing); err != nil {
		return Permission{}, fmt.Errorf("update permission: %w", err)
	}
	return *existing, nil
}

func (m *Machine) CheckEditAuthorization(ctx context.Context, experienceID int64) (Decision, error) {
	existing, err := m.store.GetByExperienceID(ctx, experienceID)
	if err != nil {
		return Decision{}, fmt.Errorf("load permission: %w", err)
	}
	switch existing.StateAt(m.clock()) {
	case StateNone:
		return Decision{Reason: ReasonNoPermission}, nil
	case StateRequested:
		return Decision{Reason: ReasonNotApproved}, nil
	case StateApprovedExpired:
		return Decision{Reason: ReasonExpired, ExpiresAt: existing.ExpiresAt}, nil
	default:
		return Decision{Authorized: true, ExpiresAt: existing.ExpiresAt}, nil
	}
}

func (m *Machine) List(ctx context.Context) ([]Listing, error) {
	items, err := m.store.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list permissions: %w", err)
	}
	if items == nil {
		items = []Listing{}
	}
	return items, nil
}
