package favorites

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestListMineProvisionsDefaultsOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first, err := f.svc.ListMine(ctx, ownerA)
	require.NoError(t, err)
	require.Len(t, first, 3)

	visibilities := []Visibility{first[0].Visibility, first[1].Visibility, first[2].Visibility}
	require.Equal(t, []Visibility{VisibilityPrivate, VisibilityShared, VisibilityPublic}, visibilities)
	require.Equal(t, "Private Favorites", first[0].Name)
	require.Empty(t, first[0].CapabilityToken)
	require.Empty(t, first[1].CapabilityToken)
	require.NotEmpty(t, first[2].CapabilityToken)

	second, err := f.svc.ListMine(ctx, ownerA)
	require.NoError(t, err)
	require.Len(t, second, 3)
	for i := range first {
		require.Equal(t, first[i].ID, second[i].ID)
	}
	require.Equal(t, 3, f.repo.count())
}

func TestListMineSkipsOwnersWithLists(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	existing := createList(t, f, "PRIVATE")

	lists, err := f.svc.ListMine(ctx, ownerA)
	require.NoError(t, err)
	require.Len(t, lists, 1)
	require.Equal(t, existing.ID, lists[0].ID)
}

func TestListMineConcurrentFirstCalls(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	const callers = 16
	var wg sync.WaitGroup
	results := make([][]*List, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.svc.ListMine(ctx, ownerA)
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.Len(t, results[i], 3)
	}
	require.Equal(t, 3, f.repo.count())
}

func TestListMineRequiresKnownOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.users.existsFn = knownUsers(memberB)

	_, err := f.svc.ListMine(ctx, ownerA)
	require.Equal(t, KindInvalidArgument, KindOf(err))
	require.Zero(t, f.repo.count())

	_, err = f.svc.ListMine(ctx, 0)
	require.Equal(t, KindUnauthenticated, KindOf(err))
}

func TestListMineRollsBackPartialProvisioning(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inserts := 0
	f.repo.createHook = func(*List) error {
		inserts++
		if inserts == 3 {
			return errors.New("disk full")
		}
		return nil
	}

	_, err := f.svc.ListMine(ctx, ownerA)
	require.Equal(t, KindInternal, KindOf(err))
	require.Zero(t, f.repo.count())

	f.repo.createHook = nil
	lists, err := f.svc.ListMine(ctx, ownerA)
	require.NoError(t, err)
	require.Len(t, lists, 3)
}

type failingGuard struct{ err error }

func (g failingGuard) Acquire(context.Context, int64) (func(), error) {
	return nil, g.err
}

func TestListMineGuardFailure(t *testing.T) {
	f := newFixture(t, WithProvisionGuard(failingGuard{err: errors.New("redis down")}))

	_, err := f.svc.ListMine(context.Background(), ownerA)
	require.Equal(t, KindInternal, KindOf(err))
	require.Zero(t, f.repo.count())
}
