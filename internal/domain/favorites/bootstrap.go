package favorites

import (
	"context"

	"github.com/Togather-Foundation/favorites/internal/metrics"
)

// DefaultLists are provisioned, in this order, the first time an owner with
// no lists asks for theirs.
var DefaultLists = []struct {
	Name       string
	Visibility Visibility
}{
	{Name: "Private Favorites", Visibility: VisibilityPrivate},
	{Name: "Shared Favorites", Visibility: VisibilityShared},
	{Name: "Public Favorites", Visibility: VisibilityPublic},
}

// ListMine returns the owner's lists. An owner without any list gets the
// DefaultLists created first. Provisioning runs under the ProvisionGuard and
// re-reads the store once the guard is held, so concurrent first calls
// create the defaults once.
func (s *Service) ListMine(ctx context.Context, ownerID int64) ([]*List, error) {
	const op = "favorites.ListMine"
	if ownerID == 0 {
		return nil, newError(KindUnauthenticated, op, "authentication required", nil)
	}

	lists, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, newError(KindInternal, op, "list owner lists", err)
	}
	if len(lists) > 0 {
		return lists, nil
	}

	release, err := s.guard.Acquire(ctx, ownerID)
	if err != nil {
		metrics.BootstrapTotal.WithLabelValues("error").Inc()
		return nil, newError(KindInternal, op, "acquire provisioning guard", err)
	}
	defer release()

	lists, err = s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, newError(KindInternal, op, "list owner lists", err)
	}
	if len(lists) > 0 {
		metrics.BootstrapTotal.WithLabelValues("already_provisioned").Inc()
		return lists, nil
	}

	created, err := s.provisionDefaults(ctx, op, ownerID)
	if err != nil {
		metrics.BootstrapTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.BootstrapTotal.WithLabelValues("created").Inc()
	s.logger.Info().Int64("owner_id", ownerID).Int("lists", len(created)).Msg("default favorite lists provisioned")
	return created, nil
}

// provisionDefaults creates every default list or none: a failed insert
// removes the lists already written.
func (s *Service) provisionDefaults(ctx context.Context, op string, ownerID int64) ([]*List, error) {
	if err := s.checkUserExists(ctx, op, ownerID, "owner"); err != nil {
		return nil, err
	}

	created := make([]*List, 0, len(DefaultLists))
	for _, def := range DefaultLists {
		list, err := s.newList(ownerID, def.Name, def.Visibility)
		if err == nil {
			err = s.insert(ctx, list)
		}
		if err != nil {
			s.rollback(ctx, created)
			return nil, newError(KindInternal, op, "create default list", err)
		}
		created = append(created, list)
	}

	for _, list := range created {
		metrics.ListsCreatedTotal.WithLabelValues(string(list.Visibility), "bootstrap").Inc()
	}
	return created, nil
}

func (s *Service) rollback(ctx context.Context, lists []*List) {
	for _, list := range lists {
		if err := s.repo.Delete(context.WithoutCancel(ctx), list.ID); err != nil {
			s.logger.Error().Err(err).Str("list_id", list.ID).Msg("failed to roll back default list")
		}
	}
}
