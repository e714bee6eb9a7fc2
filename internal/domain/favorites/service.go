// Package favorites owns the access-control and aggregation rules for favorite
// lists: named, owner-managed collections of references to events held by a
// remote event service.
//
// A list is PRIVATE (owner only), SHARED (owner plus the users in SharedWith)
// or PUBLIC (anyone, and reachable anonymously through an unguessable
// capability token issued at creation). Only the owner mutates a list.
//
// Core operations include:
//   - CreateList: validates input and remote user existence, then persists
//   - GetByID / GetPublicByToken: visibility-gated reads that collapse
//     not-found and forbidden into "absent"
//   - AddEvent / RemoveEvent / RenameList / UpdateSharedWith / DeleteList:
//     owner-only mutations guarded by an optimistic version counter
//   - ListMine: the caller's lists, provisioning three defaults on first use
//   - AggregateWithEvents / ResolveOwnerAndSharer: enrichment with remote
//     event details and user display names
package favorites

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Togather-Foundation/favorites/internal/domain/ids"
	"github.com/Togather-Foundation/favorites/internal/metrics"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

const (
	// DefaultMaxAttempts bounds how often a mutation is re-applied after a
	// version conflict before the caller sees KindConflict.
	DefaultMaxAttempts = 3

	// UnknownName is the display name used when a user name cannot be resolved.
	UnknownName = "Unknown"

	tokenAttempts = 3
)

// CreateListInput carries the caller-supplied fields of a new list.
type CreateListInput struct {
	Name       string  `validate:"required,max=200"`
	Visibility string  `validate:"required"`
	SharedWith []int64 `validate:"dive,gt=0"`
}

// Service implements the favorites engine on top of a Repository and the two
// remote directories.
type Service struct {
	repo        Repository
	events      EventDirectory
	users       UserDirectory
	guard       ProvisionGuard
	logger      zerolog.Logger
	validator   *validator.Validate
	now         func() time.Time
	newToken    func() (string, error)
	maxAttempts int
	nameOf      func(ctx context.Context, userID int64) string
}

// Option customizes a Service.
type Option func(*Service)

// WithProvisionGuard replaces the in-process provisioning guard, typically
// with a distributed lock shared by every replica.
func WithProvisionGuard(guard ProvisionGuard) Option {
	return func(s *Service) {
		if guard != nil {
			s.guard = guard
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithTokenSource overrides capability token generation.
func WithTokenSource(newToken func() (string, error)) Option {
	return func(s *Service) {
		if newToken != nil {
			s.newToken = newToken
		}
	}
}

// WithMaxAttempts overrides DefaultMaxAttempts.
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// NewService wires the engine. Without WithProvisionGuard, bootstrap is
// serialized per owner within this process only.
func NewService(repo Repository, events EventDirectory, users UserDirectory, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:        repo,
		events:      events,
		users:       users,
		guard:       NewLocalGuard(),
		logger:      logger.With().Str("component", "favorites").Logger(),
		validator:   validator.New(),
		now:         func() time.Time { return time.Now().UTC() },
		newToken:    ids.NewCapabilityToken,
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.nameOf = FallbackNames(users.NameOf, UnknownName, s.recordNameFallback)
	return s
}

// CreateList validates the request, confirms the owner and every SHARED
// member exist remotely, and persists the list. Nothing is written when any
// check fails.
func (s *Service) CreateList(ctx context.Context, ownerID int64, input CreateListInput) (*List, error) {
	const op = "favorites.CreateList"
	if ownerID == 0 {
		return nil, newError(KindUnauthenticated, op, "authentication required", nil)
	}

	input.Name = strings.TrimSpace(input.Name)
	if err := s.validator.Struct(input); err != nil {
		return nil, newError(KindInvalidArgument, op, "invalid list", err)
	}
	visibility, err := ParseVisibility(input.Visibility)
	if err != nil {
		return nil, newError(KindInvalidArgument, op, "invalid visibility", err)
	}

	if err := s.checkUserExists(ctx, op, ownerID, "owner"); err != nil {
		return nil, err
	}
	if visibility == VisibilityShared {
		if err := s.checkUsersExist(ctx, op, input.SharedWith); err != nil {
			return nil, err
		}
	}

	list, err := s.newList(ownerID, input.Name, visibility)
	if err != nil {
		return nil, newError(KindInternal, op, "build list", err)
	}
	if visibility == VisibilityShared {
		list.SharedWith = slices.Clone(input.SharedWith)
	}

	if err := s.insert(ctx, list); err != nil {
		return nil, newError(KindInternal, op, "store list", err)
	}

	metrics.ListsCreatedTotal.WithLabelValues(string(visibility), "explicit").Inc()
	s.logger.Info().
		Str("list_id", list.ID).
		Int64("owner_id", ownerID).
		Str("visibility", string(visibility)).
		Msg("favorite list created")
	return list, nil
}

// GetByID returns the list when requester may view it. A zero requester is
// anonymous. Missing and forbidden lists are both reported as absent; only
// store failures are errors.
func (s *Service) GetByID(ctx context.Context, listID string, requester int64) (*List, bool, error) {
	const op = "favorites.GetByID"
	if !ids.IsULID(listID) {
		return nil, false, nil
	}
	list, err := s.repo.GetByID(ctx, listID)
	if errors.Is(err, ErrListNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, newError(KindInternal, op, "load list", err)
	}
	if !list.CanView(requester) {
		return nil, false, nil
	}
	return list, true, nil
}

// GetPublicByToken resolves a capability token. Tokens that are malformed,
// unknown, or attached to a non-PUBLIC list are absent.
func (s *Service) GetPublicByToken(ctx context.Context, token string) (*List, bool, error) {
	const op = "favorites.GetPublicByToken"
	if err := ids.ValidateCapabilityToken(token); err != nil {
		return nil, false, nil
	}
	list, err := s.repo.GetByCapabilityToken(ctx, token)
	if errors.Is(err, ErrListNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, newError(KindInternal, op, "load list", err)
	}
	if list.Visibility != VisibilityPublic {
		s.logger.Warn().Str("list_id", list.ID).Msg("capability token matched a non-public list")
		return nil, false, nil
	}
	return list, true, nil
}

// AddEvent appends eventID to the list after confirming the event exists.
// Duplicates are kept. The fetched event is returned.
func (s *Service) AddEvent(ctx context.Context, listID string, requester, eventID int64) (*Event, error) {
	const op = "favorites.AddEvent"
	if eventID <= 0 {
		return nil, newError(KindInvalidArgument, op, "event id must be positive", nil)
	}
	if _, err := s.ownedList(ctx, op, listID, requester); err != nil {
		return nil, err
	}

	event, err := s.events.GetEvent(ctx, eventID)
	switch {
	case errors.Is(err, ErrEventNotFound):
		return nil, newError(KindEventNotFound, op, "event not found", err)
	case err != nil:
		return nil, remoteError(op, "event service unavailable", err)
	}

	_, err = s.mutate(ctx, op, listID, requester, func(list *List) (bool, error) {
		list.EventIDs = append(list.EventIDs, eventID)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

// RemoveEvent drops one occurrence of eventID. Removing an id that is not in
// the list succeeds without touching the store.
func (s *Service) RemoveEvent(ctx context.Context, listID string, requester, eventID int64) error {
	const op = "favorites.RemoveEvent"
	_, err := s.mutate(ctx, op, listID, requester, func(list *List) (bool, error) {
		return list.removeEventOnce(eventID), nil
	})
	return err
}

// RenameList changes the list name.
func (s *Service) RenameList(ctx context.Context, listID string, requester int64, name string) (*List, error) {
	const op = "favorites.RenameList"
	name = strings.TrimSpace(name)
	if err := s.validator.Var(name, "required,max=200"); err != nil {
		return nil, newError(KindInvalidArgument, op, "invalid name", err)
	}
	return s.mutate(ctx, op, listID, requester, func(list *List) (bool, error) {
		if list.Name == name {
			return false, nil
		}
		list.Name = name
		return true, nil
	})
}

// UpdateSharedWith replaces the member set after confirming every id exists
// remotely. The first failing id aborts the update.
func (s *Service) UpdateSharedWith(ctx context.Context, listID string, ownerID int64, userIDs []int64) (*List, error) {
	const op = "favorites.UpdateSharedWith"
	if err := s.validator.Var(userIDs, "dive,gt=0"); err != nil {
		return nil, newError(KindInvalidArgument, op, "invalid user ids", err)
	}
	if _, err := s.ownedList(ctx, op, listID, ownerID); err != nil {
		return nil, err
	}
	if err := s.checkUsersExist(ctx, op, userIDs); err != nil {
		return nil, err
	}

	list, err := s.mutate(ctx, op, listID, ownerID, func(list *List) (bool, error) {
		list.SharedWith = slices.Clone(userIDs)
		sharer := ownerID
		list.SharedByUserID = &sharer
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("list_id", listID).
		Int64("owner_id", ownerID).
		Int("members", len(userIDs)).
		Msg("favorite list sharing updated")
	return list, nil
}

// DeleteList hard-deletes the list.
func (s *Service) DeleteList(ctx context.Context, listID string, requester int64) error {
	const op = "favorites.DeleteList"
	if _, err := s.ownedList(ctx, op, listID, requester); err != nil {
		return err
	}
	err := s.repo.Delete(ctx, listID)
	if errors.Is(err, ErrListNotFound) {
		return newError(KindNotFound, op, "list not found", err)
	}
	if err != nil {
		return newError(KindInternal, op, "delete list", err)
	}
	s.logger.Info().Str("list_id", listID).Int64("owner_id", requester).Msg("favorite list deleted")
	return nil
}

// ListPublic returns every PUBLIC list.
func (s *Service) ListPublic(ctx context.Context) ([]*List, error) {
	lists, err := s.repo.ListByVisibility(ctx, VisibilityPublic)
	if err != nil {
		return nil, newError(KindInternal, "favorites.ListPublic", "list public lists", err)
	}
	return lists, nil
}

// ListSharedWithMe returns the SHARED lists whose member set contains userID.
func (s *Service) ListSharedWithMe(ctx context.Context, userID int64) ([]*List, error) {
	const op = "favorites.ListSharedWithMe"
	if userID == 0 {
		return nil, newError(KindUnauthenticated, op, "authentication required", nil)
	}
	lists, err := s.repo.ListBySharedWith(ctx, userID)
	if err != nil {
		return nil, newError(KindInternal, op, "list shared lists", err)
	}
	return slices.DeleteFunc(lists, func(l *List) bool {
		return l.Visibility != VisibilityShared
	}), nil
}

// ownedList loads a list and requires requester to be its owner.
func (s *Service) ownedList(ctx context.Context, op, listID string, requester int64) (*List, error) {
	if requester == 0 {
		return nil, newError(KindUnauthenticated, op, "authentication required", nil)
	}
	if err := ids.ValidateULID(listID); err != nil {
		return nil, newError(KindNotFound, op, "list not found", err)
	}
	list, err := s.repo.GetByID(ctx, listID)
	if errors.Is(err, ErrListNotFound) {
		return nil, newError(KindNotFound, op, "list not found", err)
	}
	if err != nil {
		return nil, newError(KindInternal, op, "load list", err)
	}
	if list.OwnerID != requester {
		return nil, newError(KindUnauthorized, op, "only the owner may modify this list", nil)
	}
	return list, nil
}

// mutate runs load, authorize, apply, update. A version conflict reloads the
// list and re-applies the change, up to maxAttempts times. apply reports
// whether it changed anything; unchanged lists are not written.
func (s *Service) mutate(ctx context.Context, op, listID string, requester int64, apply func(*List) (bool, error)) (*List, error) {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		list, err := s.ownedList(ctx, op, listID, requester)
		if err != nil {
			return nil, err
		}
		changed, err := apply(list)
		if err != nil {
			return nil, err
		}
		if !changed {
			return list, nil
		}
		list.UpdatedAt = s.now()

		err = s.repo.Update(ctx, list)
		switch {
		case err == nil:
			return list, nil
		case errors.Is(err, ErrVersionConflict):
			metrics.VersionConflictsTotal.WithLabelValues(op).Inc()
			s.logger.Debug().Str("list_id", listID).Int("attempt", attempt).Msg("version conflict, retrying")
			continue
		case errors.Is(err, ErrListNotFound):
			return nil, newError(KindNotFound, op, "list not found", err)
		default:
			return nil, newError(KindInternal, op, "update list", err)
		}
	}
	return nil, newError(KindConflict, op, "list was modified concurrently", ErrVersionConflict)
}

// newList builds an unsaved list with a fresh id, and a capability token when
// the list is PUBLIC.
func (s *Service) newList(ownerID int64, name string, visibility Visibility) (*List, error) {
	id, err := ids.NewULID()
	if err != nil {
		return nil, err
	}
	now := s.now()
	list := &List{
		ID:         id,
		OwnerID:    ownerID,
		Name:       name,
		Visibility: visibility,
		EventIDs:   []int64{},
		SharedWith: []int64{},
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if visibility == VisibilityPublic {
		if list.CapabilityToken, err = s.newToken(); err != nil {
			return nil, err
		}
	}
	return list, nil
}

// insert persists list, drawing a new token if the store reports a collision.
func (s *Service) insert(ctx context.Context, list *List) error {
	for attempt := 1; ; attempt++ {
		err := s.repo.Create(ctx, list)
		if !errors.Is(err, ErrTokenTaken) || list.Visibility != VisibilityPublic {
			return err
		}
		if attempt == tokenAttempts {
			return fmt.Errorf("no unused capability token after %d attempts: %w", tokenAttempts, err)
		}
		if list.CapabilityToken, err = s.newToken(); err != nil {
			return err
		}
	}
}

func (s *Service) checkUsersExist(ctx context.Context, op string, userIDs []int64) error {
	for _, id := range userIDs {
		if err := s.checkUserExists(ctx, op, id, "user"); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) checkUserExists(ctx context.Context, op string, userID int64, role string) error {
	exists, err := s.users.Exists(ctx, userID)
	if err != nil {
		return remoteError(op, "user service unavailable", err)
	}
	if !exists {
		return newError(KindInvalidArgument, op, role+" does not exist", &UserNotFoundError{UserID: userID})
	}
	return nil
}
