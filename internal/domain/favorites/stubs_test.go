package favorites

import (
	"context"
	"slices"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

// fakeRepo is a map-backed Repository. Hooks run before the default
// behaviour; a non-nil hook error is returned instead.
type fakeRepo struct {
	mu      sync.Mutex
	lists   map[string]*List
	order   []string
	updates int
	gets    int

	createHook func(list *List) error
	updateHook func(list *List) error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{lists: make(map[string]*List)}
}

func (r *fakeRepo) Create(_ context.Context, list *List) error {
	if r.createHook != nil {
		if err := r.createHook(list); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if list.CapabilityToken != "" {
		for _, existing := range r.lists {
			if existing.CapabilityToken == list.CapabilityToken {
				return ErrTokenTaken
			}
		}
	}
	r.lists[list.ID] = list.Clone()
	r.order = append(r.order, list.ID)
	return nil
}

func (r *fakeRepo) GetByID(_ context.Context, id string) (*List, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gets++
	list, ok := r.lists[id]
	if !ok {
		return nil, ErrListNotFound
	}
	return list.Clone(), nil
}

func (r *fakeRepo) GetByCapabilityToken(_ context.Context, token string) (*List, error) {
	return r.find(func(l *List) bool { return l.CapabilityToken == token })
}

func (r *fakeRepo) find(match func(*List) bool) (*List, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, list := range r.lists {
		if match(list) {
			return list.Clone(), nil
		}
	}
	return nil, ErrListNotFound
}

func (r *fakeRepo) filter(match func(*List) bool) []*List {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*List{}
	for _, id := range r.order {
		if list, ok := r.lists[id]; ok && match(list) {
			out = append(out, list.Clone())
		}
	}
	return out
}

func (r *fakeRepo) ListByOwner(_ context.Context, ownerID int64) ([]*List, error) {
	return r.filter(func(l *List) bool { return l.OwnerID == ownerID }), nil
}

func (r *fakeRepo) ListBySharedWith(_ context.Context, userID int64) ([]*List, error) {
	return r.filter(func(l *List) bool { return slices.Contains(l.SharedWith, userID) }), nil
}

func (r *fakeRepo) ListByVisibility(_ context.Context, visibility Visibility) ([]*List, error) {
	return r.filter(func(l *List) bool { return l.Visibility == visibility }), nil
}

func (r *fakeRepo) Update(_ context.Context, list *List) error {
	if r.updateHook != nil {
		if err := r.updateHook(list); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.lists[list.ID]
	if !ok {
		return ErrListNotFound
	}
	if stored.Version != list.Version {
		return ErrVersionConflict
	}
	list.Version++
	r.lists[list.ID] = list.Clone()
	r.updates++
	return nil
}

func (r *fakeRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.lists[id]; !ok {
		return ErrListNotFound
	}
	delete(r.lists, id)
	return nil
}

func (r *fakeRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.lists)
}

type stubEvents struct {
	getEventFn  func(ctx context.Context, id int64) (*Event, error)
	getEventsFn func(ctx context.Context, ids []int64, credential string) ([]Event, error)

	mu        sync.Mutex
	batchArgs [][]int64
	oneCalls  int
}

func (s *stubEvents) GetEvent(ctx context.Context, id int64) (*Event, error) {
	s.mu.Lock()
	s.oneCalls++
	s.mu.Unlock()
	if s.getEventFn != nil {
		return s.getEventFn(ctx, id)
	}
	return &Event{ID: id, Name: "event"}, nil
}

func (s *stubEvents) GetEvents(ctx context.Context, ids []int64, credential string) ([]Event, error) {
	s.mu.Lock()
	s.batchArgs = append(s.batchArgs, slices.Clone(ids))
	s.mu.Unlock()
	if s.getEventsFn != nil {
		return s.getEventsFn(ctx, ids, credential)
	}
	out := make([]Event, 0, len(ids))
	for _, id := range ids {
		out = append(out, Event{ID: id})
	}
	return out, nil
}

type stubUsers struct {
	existsFn func(ctx context.Context, id int64) (bool, error)
	nameOfFn func(ctx context.Context, id int64) (string, error)

	mu          sync.Mutex
	existsCalls []int64
}

func (s *stubUsers) Exists(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	s.existsCalls = append(s.existsCalls, id)
	s.mu.Unlock()
	if s.existsFn != nil {
		return s.existsFn(ctx, id)
	}
	return true, nil
}

func (s *stubUsers) NameOf(ctx context.Context, id int64) (string, error) {
	if s.nameOfFn != nil {
		return s.nameOfFn(ctx, id)
	}
	return "", nil
}

// knownUsers answers Exists for a fixed set of ids.
func knownUsers(ids ...int64) func(context.Context, int64) (bool, error) {
	return func(_ context.Context, id int64) (bool, error) {
		return slices.Contains(ids, id), nil
	}
}

type fixture struct {
	repo   *fakeRepo
	events *stubEvents
	users  *stubUsers
	svc    *Service
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{repo: newFakeRepo(), events: &stubEvents{}, users: &stubUsers{}}
	f.svc = NewService(f.repo, f.events, f.users, zerolog.Nop(), opts...)
	return f
}

// timeoutErr satisfies the net.Error timeout contract.
type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }
