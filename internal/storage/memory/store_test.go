package memory

import (
	"context"
	"testing"

	"github.com/Togather-Foundation/favorites/internal/domain/favorites"
	"github.com/Togather-Foundation/favorites/internal/storage/storetest"
	"github.com/stretchr/testify/require"
)

func TestStoreConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) favorites.Repository {
		return NewStore()
	})
}

func TestUpdateKeepsImmutableFields(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	list := storetest.NewList(t, 1, favorites.VisibilityPublic)
	require.NoError(t, store.Create(ctx, list))

	tampered := list.Clone()
	tampered.OwnerID = 99
	tampered.Visibility = favorites.VisibilityPrivate
	tampered.CapabilityToken = ""
	require.NoError(t, store.Update(ctx, tampered))

	got, err := store.GetByID(ctx, list.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), got.OwnerID)
	require.Equal(t, favorites.VisibilityPublic, got.Visibility)
	require.Equal(t, list.CapabilityToken, got.CapabilityToken)
}

func TestReturnedListsAreCopies(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	list := storetest.NewList(t, 1, favorites.VisibilityPrivate)
	require.NoError(t, store.Create(ctx, list))

	got, err := store.GetByID(ctx, list.ID)
	require.NoError(t, err)
	got.EventIDs = append(got.EventIDs, 1)

	again, err := store.GetByID(ctx, list.ID)
	require.NoError(t, err)
	require.Empty(t, again.EventIDs)
}
