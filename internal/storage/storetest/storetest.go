// Package storetest holds the behaviour every favorites.Repository backend
// must share. Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/Togather-Foundation/favorites/internal/domain/favorites"
	"github.com/Togather-Foundation/favorites/internal/domain/ids"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty store for one subtest.
type Factory func(t *testing.T) favorites.Repository

// Run executes the conformance suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("create and get", func(t *testing.T) { testCreateGet(t, newStore(t)) })
	t.Run("token lookup", func(t *testing.T) { testTokenLookup(t, newStore(t)) })
	t.Run("token never reused", func(t *testing.T) { testTokenNeverReused(t, newStore(t)) })
	t.Run("queries", func(t *testing.T) { testQueries(t, newStore(t)) })
	t.Run("update version check", func(t *testing.T) { testUpdateVersion(t, newStore(t)) })
	t.Run("delete", func(t *testing.T) { testDelete(t, newStore(t)) })
}

// NewList builds a valid unsaved list.
func NewList(t *testing.T, owner int64, visibility favorites.Visibility) *favorites.List {
	t.Helper()
	id, err := ids.NewULID()
	require.NoError(t, err)
	now := time.Now().UTC().Truncate(time.Millisecond)
	list := &favorites.List{
		ID:         id,
		OwnerID:    owner,
		Name:       "list " + id,
		Visibility: visibility,
		EventIDs:   []int64{},
		SharedWith: []int64{},
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if visibility == favorites.VisibilityPublic {
		list.CapabilityToken, err = ids.NewCapabilityToken()
		require.NoError(t, err)
	}
	return list
}

func testCreateGet(t *testing.T, store favorites.Repository) {
	ctx := context.Background()
	list := NewList(t, 1, favorites.VisibilityShared)
	list.EventIDs = []int64{5, 5, 3}
	list.SharedWith = []int64{2, 3}
	sharer := int64(1)
	list.SharedByUserID = &sharer

	require.NoError(t, store.Create(ctx, list))
	require.ErrorIs(t, store.Create(ctx, list), favorites.ErrListExists)

	got, err := store.GetByID(ctx, list.ID)
	require.NoError(t, err)
	require.Equal(t, list.ID, got.ID)
	require.Equal(t, list.OwnerID, got.OwnerID)
	require.Equal(t, list.Name, got.Name)
	require.Equal(t, favorites.VisibilityShared, got.Visibility)
	require.Equal(t, []int64{5, 5, 3}, got.EventIDs)
	require.Equal(t, []int64{2, 3}, got.SharedWith)
	require.NotNil(t, got.SharedByUserID)
	require.Equal(t, int64(1), *got.SharedByUserID)
	require.Empty(t, got.CapabilityToken)
	require.Equal(t, int64(1), got.Version)
	require.True(t, list.CreatedAt.Equal(got.CreatedAt), "created_at %v != %v", list.CreatedAt, got.CreatedAt)

	_, err = store.GetByID(ctx, "01ARZ3NDEKTSV4RRFFQ69G5FAV")
	require.ErrorIs(t, err, favorites.ErrListNotFound)
}

func testTokenLookup(t *testing.T, store favorites.Repository) {
	ctx := context.Background()
	public := NewList(t, 1, favorites.VisibilityPublic)
	require.NoError(t, store.Create(ctx, public))

	got, err := store.GetByCapabilityToken(ctx, public.CapabilityToken)
	require.NoError(t, err)
	require.Equal(t, public.ID, got.ID)
	require.Equal(t, public.CapabilityToken, got.CapabilityToken)

	_, err = store.GetByCapabilityToken(ctx, "missing")
	require.ErrorIs(t, err, favorites.ErrListNotFound)

	dup := NewList(t, 2, favorites.VisibilityPublic)
	dup.CapabilityToken = public.CapabilityToken
	require.ErrorIs(t, store.Create(ctx, dup), favorites.ErrTokenTaken)
}

func testTokenNeverReused(t *testing.T, store favorites.Repository) {
	ctx := context.Background()
	public := NewList(t, 1, favorites.VisibilityPublic)
	require.NoError(t, store.Create(ctx, public))
	require.NoError(t, store.Delete(ctx, public.ID))

	_, err := store.GetByCapabilityToken(ctx, public.CapabilityToken)
	require.ErrorIs(t, err, favorites.ErrListNotFound)

	again := NewList(t, 1, favorites.VisibilityPublic)
	again.CapabilityToken = public.CapabilityToken
	require.ErrorIs(t, store.Create(ctx, again), favorites.ErrTokenTaken)
}

func testQueries(t *testing.T, store favorites.Repository) {
	ctx := context.Background()
	a1 := NewList(t, 1, favorites.VisibilityPrivate)
	a2 := NewList(t, 1, favorites.VisibilityShared)
	a2.SharedWith = []int64{2}
	a2.CreatedAt = a1.CreatedAt.Add(time.Second)
	b1 := NewList(t, 2, favorites.VisibilityPublic)
	b2 := NewList(t, 2, favorites.VisibilityPrivate)
	b2.SharedWith = []int64{3}
	for _, l := range []*favorites.List{a1, a2, b1, b2} {
		require.NoError(t, store.Create(ctx, l))
	}

	owned, err := store.ListByOwner(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, []string{a1.ID, a2.ID}, listIDs(owned))

	none, err := store.ListByOwner(ctx, 42)
	require.NoError(t, err)
	require.Empty(t, none)

	shared, err := store.ListBySharedWith(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, []string{a2.ID}, listIDs(shared))

	// Membership is stored regardless of visibility; filtering is the
	// caller's decision.
	shared, err = store.ListBySharedWith(ctx, 3)
	require.NoError(t, err)
	require.Equal(t, []string{b2.ID}, listIDs(shared))

	public, err := store.ListByVisibility(ctx, favorites.VisibilityPublic)
	require.NoError(t, err)
	require.Equal(t, []string{b1.ID}, listIDs(public))
}

func testUpdateVersion(t *testing.T, store favorites.Repository) {
	ctx := context.Background()
	list := NewList(t, 1, favorites.VisibilityPrivate)
	require.NoError(t, store.Create(ctx, list))

	first, err := store.GetByID(ctx, list.ID)
	require.NoError(t, err)
	second, err := store.GetByID(ctx, list.ID)
	require.NoError(t, err)

	first.EventIDs = append(first.EventIDs, 10)
	first.Name = "renamed"
	require.NoError(t, store.Update(ctx, first))
	require.Equal(t, int64(2), first.Version)

	second.EventIDs = append(second.EventIDs, 20)
	require.ErrorIs(t, store.Update(ctx, second), favorites.ErrVersionConflict)

	got, err := store.GetByID(ctx, list.ID)
	require.NoError(t, err)
	require.Equal(t, []int64{10}, got.EventIDs)
	require.Equal(t, "renamed", got.Name)
	require.Equal(t, int64(2), got.Version)

	missing := NewList(t, 1, favorites.VisibilityPrivate)
	require.ErrorIs(t, store.Update(ctx, missing), favorites.ErrListNotFound)
}

func testDelete(t *testing.T, store favorites.Repository) {
	ctx := context.Background()
	list := NewList(t, 1, favorites.VisibilityPrivate)
	require.NoError(t, store.Create(ctx, list))

	require.NoError(t, store.Delete(ctx, list.ID))
	_, err := store.GetByID(ctx, list.ID)
	require.ErrorIs(t, err, favorites.ErrListNotFound)
	require.ErrorIs(t, store.Delete(ctx, list.ID), favorites.ErrListNotFound)
}

func listIDs(lists []*favorites.List) []string {
	out := make([]string, 0, len(lists))
	for _, l := range lists {
		out = append(out, l.ID)
	}
	return out
}
