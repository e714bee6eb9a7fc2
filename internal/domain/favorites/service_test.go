package favorites

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	ownerA    int64 = 1
	memberB   int64 = 2
	strangerC int64 = 3
)

func createList(t *testing.T, f *fixture, visibility string, sharedWith ...int64) *List {
	t.Helper()
	list, err := f.svc.CreateList(context.Background(), ownerA, CreateListInput{
		Name:       "Concerts",
		Visibility: visibility,
		SharedWith: sharedWith,
	})
	require.NoError(t, err)
	return list
}

func TestGetByIDVisibility(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	private := createList(t, f, "private")
	shared := createList(t, f, "SHARED", memberB)
	public := createList(t, f, "Public")

	tests := []struct {
		name      string
		list      *List
		requester int64
		present   bool
	}{
		{"private owner", private, ownerA, true},
		{"private member of nothing", private, memberB, false},
		{"private anonymous", private, 0, false},
		{"shared owner", shared, ownerA, true},
		{"shared member", shared, memberB, true},
		{"shared stranger", shared, strangerC, false},
		{"shared anonymous", shared, 0, false},
		{"public owner", public, ownerA, true},
		{"public stranger", public, strangerC, true},
		{"public anonymous", public, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := f.svc.GetByID(ctx, tt.list.ID, tt.requester)
			require.NoError(t, err)
			require.Equal(t, tt.present, ok)
			if tt.present {
				require.Equal(t, tt.list.ID, got.ID)
			} else {
				require.Nil(t, got)
			}
		})
	}

	t.Run("missing list is absent", func(t *testing.T) {
		got, ok, err := f.svc.GetByID(ctx, "01ARZ3NDEKTSV4RRFFQ69G5FAV", ownerA)
		require.NoError(t, err)
		require.False(t, ok)
		require.Nil(t, got)
	})
}

func TestGetByIDStoreFailureIsError(t *testing.T) {
	f := newFixture(t)
	f.svc.repo = &failingGetRepo{fakeRepo: f.repo, err: errors.New("connection reset")}

	_, ok, err := f.svc.GetByID(context.Background(), "any", ownerA)
	require.Error(t, err)
	require.False(t, ok)
	require.Equal(t, KindInternal, KindOf(err))
}

type failingGetRepo struct {
	*fakeRepo
	err error
}

func (r *failingGetRepo) GetByID(context.Context, string) (*List, error) {
	return nil, r.err
}

func TestCreateListTokens(t *testing.T) {
	f := newFixture(t)

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		list := createList(t, f, "PUBLIC")
		require.NotEmpty(t, list.CapabilityToken)
		require.False(t, seen[list.CapabilityToken], "token reused")
		seen[list.CapabilityToken] = true
	}

	require.Empty(t, createList(t, f, "PRIVATE").CapabilityToken)
	require.Empty(t, createList(t, f, "SHARED", memberB).CapabilityToken)
}

func TestCreateListDefaults(t *testing.T) {
	f := newFixture(t)

	list := createList(t, f, "shared", memberB, strangerC)

	require.NotEmpty(t, list.ID)
	require.Equal(t, ownerA, list.OwnerID)
	require.Equal(t, VisibilityShared, list.Visibility)
	require.Equal(t, []int64{memberB, strangerC}, list.SharedWith)
	require.Empty(t, list.EventIDs)
	require.Nil(t, list.SharedByUserID)
	require.Equal(t, int64(1), list.Version)
	require.False(t, list.CreatedAt.IsZero())
}

func TestCreateListDropsMembersUnlessShared(t *testing.T) {
	f := newFixture(t)

	list := createList(t, f, "PRIVATE", memberB)

	require.Empty(t, list.SharedWith)
	// Only the owner is checked; members of a non-SHARED list are ignored.
	require.Equal(t, []int64{ownerA}, f.users.existsCalls)
}

func TestCreateListValidation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		owner int64
		input CreateListInput
		kind  Kind
	}{
		{"anonymous", 0, CreateListInput{Name: "x", Visibility: "PRIVATE"}, KindUnauthenticated},
		{"empty name", ownerA, CreateListInput{Name: "   ", Visibility: "PRIVATE"}, KindInvalidArgument},
		{"unknown visibility", ownerA, CreateListInput{Name: "x", Visibility: "FRIENDS"}, KindInvalidArgument},
		{"missing visibility", ownerA, CreateListInput{Name: "x"}, KindInvalidArgument},
		{"non-positive member", ownerA, CreateListInput{Name: "x", Visibility: "SHARED", SharedWith: []int64{0}}, KindInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.CreateList(ctx, tt.owner, tt.input)
			require.Error(t, err)
			require.Equal(t, tt.kind, KindOf(err))
			require.Zero(t, f.repo.count())
		})
	}
}

func TestCreateListRemoteChecks(t *testing.T) {
	ctx := context.Background()

	t.Run("owner unknown", func(t *testing.T) {
		f := newFixture(t)
		f.users.existsFn = knownUsers(memberB)

		_, err := f.svc.CreateList(ctx, ownerA, CreateListInput{Name: "x", Visibility: "PRIVATE"})
		require.Equal(t, KindInvalidArgument, KindOf(err))
		require.ErrorIs(t, err, ErrUserNotFound)
		require.Zero(t, f.repo.count())
	})

	t.Run("member unknown aborts", func(t *testing.T) {
		f := newFixture(t)
		f.users.existsFn = knownUsers(ownerA, memberB)

		_, err := f.svc.CreateList(ctx, ownerA, CreateListInput{
			Name: "x", Visibility: "SHARED", SharedWith: []int64{memberB, 99, strangerC},
		})
		require.Equal(t, KindInvalidArgument, KindOf(err))
		var notFound *UserNotFoundError
		require.ErrorAs(t, err, &notFound)
		require.Equal(t, int64(99), notFound.UserID)
		// The first failing id stops further checks.
		require.Equal(t, []int64{ownerA, memberB, 99}, f.users.existsCalls)
		require.Zero(t, f.repo.count())
	})

	t.Run("transport failure", func(t *testing.T) {
		f := newFixture(t)
		f.users.existsFn = func(context.Context, int64) (bool, error) {
			return false, fmt.Errorf("%w: %w", ErrRemoteUnavailable, errors.New("connection refused"))
		}

		_, err := f.svc.CreateList(ctx, ownerA, CreateListInput{Name: "x", Visibility: "PUBLIC"})
		require.Equal(t, KindRemoteUnavailable, KindOf(err))
		require.False(t, IsTimeout(err))
		require.Zero(t, f.repo.count())
	})

	t.Run("timeout is flagged", func(t *testing.T) {
		f := newFixture(t)
		f.users.existsFn = func(context.Context, int64) (bool, error) {
			return false, fmt.Errorf("%w: %w", ErrRemoteUnavailable, timeoutErr{})
		}

		_, err := f.svc.CreateList(ctx, ownerA, CreateListInput{Name: "x", Visibility: "PRIVATE"})
		require.Equal(t, KindRemoteUnavailable, KindOf(err))
		require.True(t, IsTimeout(err))
	})
}

func TestCreateListRedrawsCollidingToken(t *testing.T) {
	tokens := []string{"dup", "dup", "fresh"}
	next := 0
	f := newFixture(t, WithTokenSource(func() (string, error) {
		tok := tokens[next]
		next++
		return tok, nil
	}))

	first := createList(t, f, "PUBLIC")
	second := createList(t, f, "PUBLIC")

	require.Equal(t, "dup", first.CapabilityToken)
	require.Equal(t, "fresh", second.CapabilityToken)
}

func TestCreateListFailsWhenEveryTokenCollides(t *testing.T) {
	ctx := context.Background()
	draws := 0
	f := newFixture(t, WithTokenSource(func() (string, error) {
		draws++
		return "dup", nil
	}))

	createList(t, f, "PUBLIC")
	stored := len(f.repo.lists)
	draws = 0

	list, err := f.svc.CreateList(ctx, ownerA, CreateListInput{Name: "Again", Visibility: "PUBLIC"})
	require.Nil(t, list)
	require.Equal(t, KindInternal, KindOf(err))
	require.ErrorIs(t, err, ErrTokenTaken)
	require.Len(t, f.repo.lists, stored)
	// One token for the first attempt, then one per retry.
	require.Equal(t, tokenAttempts, draws)
}

func TestMalformedListIDSkipsStore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for _, id := range []string{"", "missing", "../etc/passwd", "01ARZ3NDEKTSV4RRFFQ69G5FA"} {
		got, ok, err := f.svc.GetByID(ctx, id, ownerA)
		require.NoError(t, err)
		require.False(t, ok, id)
		require.Nil(t, got)

		require.Equal(t, KindNotFound, KindOf(f.svc.DeleteList(ctx, id, ownerA)), id)
		_, err = f.svc.RenameList(ctx, id, ownerA, "x")
		require.Equal(t, KindNotFound, KindOf(err), id)
	}
	require.Zero(t, f.repo.gets)
}

func TestGetPublicByToken(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	public := createList(t, f, "PUBLIC")

	got, ok, err := f.svc.GetPublicByToken(ctx, public.CapabilityToken)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, public.ID, got.ID)

	for _, token := range []string{"", "bogus", "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"} {
		got, ok, err := f.svc.GetPublicByToken(ctx, token)
		require.NoError(t, err)
		require.False(t, ok, token)
		require.Nil(t, got)
	}
}

func TestGetPublicByTokenIgnoresNonPublicLists(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	private := createList(t, f, "PRIVATE")
	// A token on a non-PUBLIC list can only come from a corrupted row; it must
	// still not grant access.
	stored := f.repo.lists[private.ID]
	stored.CapabilityToken = "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

	_, ok, err := f.svc.GetPublicByToken(ctx, stored.CapabilityToken)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAddEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("appends and returns the event, duplicates kept", func(t *testing.T) {
		f := newFixture(t)
		list := createList(t, f, "PRIVATE")

		ev, err := f.svc.AddEvent(ctx, list.ID, ownerA, 42)
		require.NoError(t, err)
		require.Equal(t, int64(42), ev.ID)
		_, err = f.svc.AddEvent(ctx, list.ID, ownerA, 42)
		require.NoError(t, err)

		got, _, err := f.svc.GetByID(ctx, list.ID, ownerA)
		require.NoError(t, err)
		require.Equal(t, []int64{42, 42}, got.EventIDs)
		require.Equal(t, int64(3), got.Version)
	})

	t.Run("event not found leaves list unchanged", func(t *testing.T) {
		f := newFixture(t)
		list := createList(t, f, "PRIVATE")
		_, err := f.svc.AddEvent(ctx, list.ID, ownerA, 7)
		require.NoError(t, err)

		f.events.getEventFn = func(context.Context, int64) (*Event, error) {
			return nil, ErrEventNotFound
		}
		_, err = f.svc.AddEvent(ctx, list.ID, ownerA, 42)
		require.Equal(t, KindEventNotFound, KindOf(err))

		got, _, _ := f.svc.GetByID(ctx, list.ID, ownerA)
		require.Equal(t, []int64{7}, got.EventIDs)
	})

	t.Run("remote failure", func(t *testing.T) {
		f := newFixture(t)
		list := createList(t, f, "PRIVATE")
		f.events.getEventFn = func(context.Context, int64) (*Event, error) {
			return nil, fmt.Errorf("%w: status 503", ErrRemoteUnavailable)
		}

		_, err := f.svc.AddEvent(ctx, list.ID, ownerA, 42)
		require.Equal(t, KindRemoteUnavailable, KindOf(err))
		require.Zero(t, f.repo.updates)
	})

	t.Run("authorization precedes the remote lookup", func(t *testing.T) {
		f := newFixture(t)
		list := createList(t, f, "PUBLIC")

		_, err := f.svc.AddEvent(ctx, list.ID, strangerC, 42)
		require.Equal(t, KindUnauthorized, KindOf(err))

		_, err = f.svc.AddEvent(ctx, "01ARZ3NDEKTSV4RRFFQ69G5FAV", ownerA, 42)
		require.Equal(t, KindNotFound, KindOf(err))

		_, err = f.svc.AddEvent(ctx, list.ID, 0, 42)
		require.Equal(t, KindUnauthenticated, KindOf(err))

		require.Zero(t, f.events.oneCalls)
	})
}

func TestRemoveEvent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	list := createList(t, f, "PRIVATE")
	for _, id := range []int64{5, 42, 9, 42} {
		_, err := f.svc.AddEvent(ctx, list.ID, ownerA, id)
		require.NoError(t, err)
	}

	require.NoError(t, f.svc.RemoveEvent(ctx, list.ID, ownerA, 42))
	got, _, _ := f.svc.GetByID(ctx, list.ID, ownerA)
	require.Equal(t, []int64{5, 9, 42}, got.EventIDs)

	updates := f.repo.updates
	require.NoError(t, f.svc.RemoveEvent(ctx, list.ID, ownerA, 1000))
	require.Equal(t, updates, f.repo.updates, "absent id must not write")
	got, _, _ = f.svc.GetByID(ctx, list.ID, ownerA)
	require.Equal(t, []int64{5, 9, 42}, got.EventIDs)

	require.Equal(t, KindUnauthorized, KindOf(f.svc.RemoveEvent(ctx, list.ID, memberB, 5)))
	require.Equal(t, KindNotFound, KindOf(f.svc.RemoveEvent(ctx, "missing", ownerA, 5)))
}

func TestUpdateSharedWith(t *testing.T) {
	ctx := context.Background()

	t.Run("replaces members and records the sharer", func(t *testing.T) {
		f := newFixture(t)
		list := createList(t, f, "SHARED", memberB)

		updated, err := f.svc.UpdateSharedWith(ctx, list.ID, ownerA, []int64{strangerC})
		require.NoError(t, err)
		require.Equal(t, []int64{strangerC}, updated.SharedWith)
		require.NotNil(t, updated.SharedByUserID)
		require.Equal(t, ownerA, *updated.SharedByUserID)

		_, ok, _ := f.svc.GetByID(ctx, list.ID, memberB)
		require.False(t, ok)
		_, ok, _ = f.svc.GetByID(ctx, list.ID, strangerC)
		require.True(t, ok)
	})

	t.Run("any invalid id leaves members unchanged", func(t *testing.T) {
		f := newFixture(t)
		list := createList(t, f, "SHARED", memberB)
		f.users.existsFn = knownUsers(ownerA, memberB, strangerC)

		_, err := f.svc.UpdateSharedWith(ctx, list.ID, ownerA, []int64{strangerC, 77})
		require.Equal(t, KindInvalidArgument, KindOf(err))

		got, _, _ := f.svc.GetByID(ctx, list.ID, ownerA)
		require.Equal(t, []int64{memberB}, got.SharedWith)
		require.Nil(t, got.SharedByUserID)
	})

	t.Run("transport failure leaves members unchanged", func(t *testing.T) {
		f := newFixture(t)
		list := createList(t, f, "SHARED", memberB)
		f.users.existsFn = func(context.Context, int64) (bool, error) {
			return false, ErrRemoteUnavailable
		}

		_, err := f.svc.UpdateSharedWith(ctx, list.ID, ownerA, []int64{strangerC})
		require.Equal(t, KindRemoteUnavailable, KindOf(err))
		got, _, _ := f.svc.GetByID(ctx, list.ID, ownerA)
		require.Equal(t, []int64{memberB}, got.SharedWith)
	})

	t.Run("owner only", func(t *testing.T) {
		f := newFixture(t)
		list := createList(t, f, "SHARED", memberB)

		_, err := f.svc.UpdateSharedWith(ctx, list.ID, memberB, []int64{strangerC})
		require.Equal(t, KindUnauthorized, KindOf(err))
	})
}

func TestRenameAndDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	list := createList(t, f, "PRIVATE")

	renamed, err := f.svc.RenameList(ctx, list.ID, ownerA, "  Jazz nights ")
	require.NoError(t, err)
	require.Equal(t, "Jazz nights", renamed.Name)

	_, err = f.svc.RenameList(ctx, list.ID, ownerA, "")
	require.Equal(t, KindInvalidArgument, KindOf(err))

	require.Equal(t, KindUnauthorized, KindOf(f.svc.DeleteList(ctx, list.ID, memberB)))
	require.NoError(t, f.svc.DeleteList(ctx, list.ID, ownerA))
	require.Equal(t, KindNotFound, KindOf(f.svc.DeleteList(ctx, list.ID, ownerA)))

	_, ok, err := f.svc.GetByID(ctx, list.ID, ownerA)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMutationRetriesVersionConflicts(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds after transient conflicts", func(t *testing.T) {
		f := newFixture(t)
		list := createList(t, f, "PRIVATE")
		conflicts := 2
		f.repo.updateHook = func(*List) error {
			if conflicts > 0 {
				conflicts--
				return ErrVersionConflict
			}
			return nil
		}

		_, err := f.svc.AddEvent(ctx, list.ID, ownerA, 42)
		require.NoError(t, err)
		got, _, _ := f.svc.GetByID(ctx, list.ID, ownerA)
		require.Equal(t, []int64{42}, got.EventIDs)
	})

	t.Run("gives up with conflict", func(t *testing.T) {
		f := newFixture(t)
		list := createList(t, f, "PRIVATE")
		attempts := 0
		f.repo.updateHook = func(*List) error {
			attempts++
			return ErrVersionConflict
		}

		_, err := f.svc.AddEvent(ctx, list.ID, ownerA, 42)
		require.Equal(t, KindConflict, KindOf(err))
		require.ErrorIs(t, err, ErrVersionConflict)
		require.Equal(t, DefaultMaxAttempts, attempts)
	})

	t.Run("real concurrent writer is not lost", func(t *testing.T) {
		f := newFixture(t)
		list := createList(t, f, "PRIVATE")
		raced := false
		f.repo.updateHook = func(*List) error {
			if raced {
				return nil
			}
			raced = true
			// Another writer lands between our read and our write.
			stored := f.repo.lists[list.ID]
			stored.EventIDs = append(stored.EventIDs, 7)
			stored.Version++
			return nil
		}

		_, err := f.svc.AddEvent(ctx, list.ID, ownerA, 42)
		require.NoError(t, err)
		got, _, _ := f.svc.GetByID(ctx, list.ID, ownerA)
		require.Equal(t, []int64{7, 42}, got.EventIDs)
	})
}

func TestListPublicAndSharedWithMe(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	public := createList(t, f, "PUBLIC")
	shared := createList(t, f, "SHARED", memberB)
	createList(t, f, "PRIVATE", memberB)

	lists, err := f.svc.ListPublic(ctx)
	require.NoError(t, err)
	require.Len(t, lists, 1)
	require.Equal(t, public.ID, lists[0].ID)

	lists, err = f.svc.ListSharedWithMe(ctx, memberB)
	require.NoError(t, err)
	require.Len(t, lists, 1)
	require.Equal(t, shared.ID, lists[0].ID)

	lists, err = f.svc.ListSharedWithMe(ctx, strangerC)
	require.NoError(t, err)
	require.Empty(t, lists)

	_, err = f.svc.ListSharedWithMe(ctx, 0)
	require.Equal(t, KindUnauthenticated, KindOf(err))
}

func TestScenarioSharedList(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.users.existsFn = knownUsers(ownerA, memberB)

	list, err := f.svc.CreateList(ctx, ownerA, CreateListInput{Name: "With B", Visibility: "SHARED", SharedWith: []int64{memberB}})
	require.NoError(t, err)
	require.Equal(t, []int64{memberB}, list.SharedWith)

	_, ok, err := f.svc.GetByID(ctx, list.ID, memberB)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = f.svc.GetByID(ctx, list.ID, strangerC)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestScenarioPublicToken(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	list := createList(t, f, "PUBLIC")

	_, ok, err := f.svc.GetPublicByToken(ctx, list.CapabilityToken)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = f.svc.GetPublicByToken(ctx, "bogus")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestScenarioAddMissingEvent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.events.getEventFn = func(_ context.Context, id int64) (*Event, error) {
		if id == 42 {
			return nil, fmt.Errorf("event %d: %w", id, ErrEventNotFound)
		}
		return &Event{ID: id}, nil
	}
	list := createList(t, f, "PRIVATE")

	_, err := f.svc.AddEvent(ctx, list.ID, ownerA, 42)
	require.True(t, IsKind(err, KindEventNotFound))

	got, _, _ := f.svc.GetByID(ctx, list.ID, ownerA)
	require.Empty(t, got.EventIDs)
}
