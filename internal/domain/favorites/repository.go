package favorites

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Visibility controls who may read a List.
type Visibility string

const (
	VisibilityPrivate Visibility = "PRIVATE"
	VisibilityShared  Visibility = "SHARED"
	VisibilityPublic  Visibility = "PUBLIC"
)

// ParseVisibility accepts any casing of the three visibility names.
func ParseVisibility(value string) (Visibility, error) {
	switch v := Visibility(strings.ToUpper(strings.TrimSpace(value))); v {
	case VisibilityPrivate, VisibilityShared, VisibilityPublic:
		return v, nil
	default:
		return "", fmt.Errorf("invalid visibility %q", value)
	}
}

func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPrivate, VisibilityShared, VisibilityPublic:
		return true
	}
	return false
}

// List is a named, owner-managed collection of event references.
type List struct {
	ID              string
	OwnerID         int64
	Name            string
	Visibility      Visibility
	EventIDs        []int64
	SharedWith      []int64
	SharedByUserID  *int64
	CapabilityToken string
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CanView applies the visibility rules. A zero viewer is anonymous.
func (l *List) CanView(viewer int64) bool {
	switch l.Visibility {
	case VisibilityPublic:
		return true
	case VisibilityShared:
		return viewer != 0 && (viewer == l.OwnerID || slices.Contains(l.SharedWith, viewer))
	case VisibilityPrivate:
		return viewer != 0 && viewer == l.OwnerID
	default:
		return false
	}
}

// Clone returns a deep copy so callers never alias store state.
func (l *List) Clone() *List {
	if l == nil {
		return nil
	}
	out := *l
	out.EventIDs = slices.Clone(l.EventIDs)
	out.SharedWith = slices.Clone(l.SharedWith)
	if l.SharedByUserID != nil {
		sharer := *l.SharedByUserID
		out.SharedByUserID = &sharer
	}
	return &out
}

// removeEventOnce drops the first occurrence of eventID and reports whether
// anything was removed.
func (l *List) removeEventOnce(eventID int64) bool {
	idx := slices.Index(l.EventIDs, eventID)
	if idx < 0 {
		return false
	}
	l.EventIDs = slices.Delete(l.EventIDs, idx, idx+1)
	return true
}

// Repository is the List Store. Lookups of a missing list return
// ErrListNotFound. Update must reject a list whose Version does not match the
// stored one with ErrVersionConflict; on success it increments Version both in
// the store and on the argument. Create must reject a duplicate capability
// token with ErrTokenTaken. List queries order by creation time.
type Repository interface {
	Create(ctx context.Context, list *List) error
	GetByID(ctx context.Context, id string) (*List, error)
	GetByCapabilityToken(ctx context.Context, token string) (*List, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]*List, error)
	ListBySharedWith(ctx context.Context, userID int64) ([]*List, error)
	ListByVisibility(ctx context.Context, visibility Visibility) ([]*List, error)
	Update(ctx context.Context, list *List) error
	Delete(ctx context.Context, id string) error
}

// Event is the remote event service's view of an event.
type Event struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	StartDate   string   `json:"startDate,omitempty"`
	EndDate     string   `json:"endDate,omitempty"`
	Location    string   `json:"location,omitempty"`
	Description string   `json:"description,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	Capacity    *int     `json:"capacity,omitempty"`
	Status      string   `json:"status,omitempty"`
	OrganizerID *int64   `json:"organizerId,omitempty"`
}

// EventDirectory fetches events from the remote event service. GetEvent
// returns ErrEventNotFound for unknown ids. GetEvents returns the subset that
// exists and fails only when the remote call itself fails. An empty
// credential means the call is anonymous.
type EventDirectory interface {
	GetEvent(ctx context.Context, id int64) (*Event, error)
	GetEvents(ctx context.Context, ids []int64, credential string) ([]Event, error)
}

// UserDirectory answers identity questions against the remote user service.
// Unknown users are not errors: Exists returns false and NameOf returns "".
type UserDirectory interface {
	Exists(ctx context.Context, id int64) (bool, error)
	NameOf(ctx context.Context, id int64) (string, error)
}

// ProvisionGuard serializes default-list provisioning per owner.
type ProvisionGuard interface {
	Acquire(ctx context.Context, ownerID int64) (release func(), err error)
}
