// Package memory provides an in-process List Store for development and tests.
// State is lost when the process exits.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/Togather-Foundation/favorites/internal/domain/favorites"
)

// Store keeps lists in a map guarded by a RWMutex. Every read and write
// copies the list so callers never share state with the store.
type Store struct {
	mu      sync.RWMutex
	lists   map[string]*favorites.List
	tokens  map[string]string // capability token -> list id
	retired map[string]struct{}
	order   []string
}

func NewStore() *Store {
	return &Store{
		lists:   make(map[string]*favorites.List),
		tokens:  make(map[string]string),
		retired: make(map[string]struct{}),
	}
}

func (s *Store) Create(ctx context.Context, list *favorites.List) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.lists[list.ID]; exists {
		return favorites.ErrListExists
	}
	if token := list.CapabilityToken; token != "" {
		_, live := s.tokens[token]
		_, retired := s.retired[token]
		if live || retired {
			return favorites.ErrTokenTaken
		}
		s.tokens[token] = list.ID
	}
	s.lists[list.ID] = list.Clone()
	s.order = append(s.order, list.ID)
	return nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*favorites.List, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	list, ok := s.lists[id]
	if !ok {
		return nil, favorites.ErrListNotFound
	}
	return list.Clone(), nil
}

func (s *Store) GetByCapabilityToken(ctx context.Context, token string) (*favorites.List, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.tokens[token]
	if !ok {
		return nil, favorites.ErrListNotFound
	}
	return s.lists[id].Clone(), nil
}

func (s *Store) ListByOwner(ctx context.Context, ownerID int64) ([]*favorites.List, error) {
	return s.filter(ctx, func(l *favorites.List) bool { return l.OwnerID == ownerID })
}

func (s *Store) ListBySharedWith(ctx context.Context, userID int64) ([]*favorites.List, error) {
	return s.filter(ctx, func(l *favorites.List) bool { return slices.Contains(l.SharedWith, userID) })
}

func (s *Store) ListByVisibility(ctx context.Context, visibility favorites.Visibility) ([]*favorites.List, error) {
	return s.filter(ctx, func(l *favorites.List) bool { return l.Visibility == visibility })
}

func (s *Store) filter(ctx context.Context, match func(*favorites.List) bool) ([]*favorites.List, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*favorites.List{}
	for _, id := range s.order {
		if list := s.lists[id]; match(list) {
			out = append(out, list.Clone())
		}
	}
	return out, nil
}

func (s *Store) Update(ctx context.Context, list *favorites.List) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.lists[list.ID]
	if !ok {
		return favorites.ErrListNotFound
	}
	if stored.Version != list.Version {
		return favorites.ErrVersionConflict
	}

	next := list.Clone()
	next.Version++
	// Immutable columns stay as stored.
	next.OwnerID = stored.OwnerID
	next.Visibility = stored.Visibility
	next.CapabilityToken = stored.CapabilityToken
	next.CreatedAt = stored.CreatedAt
	s.lists[list.ID] = next
	list.Version = next.Version
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	list, ok := s.lists[id]
	if !ok {
		return favorites.ErrListNotFound
	}
	if list.CapabilityToken != "" {
		delete(s.tokens, list.CapabilityToken)
		s.retired[list.CapabilityToken] = struct{}{}
	}
	delete(s.lists, id)
	s.order = slices.DeleteFunc(s.order, func(v string) bool { return v == id })
	return nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

var _ favorites.Repository = (*Store)(nil)
