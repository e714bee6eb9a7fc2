package favorites

import (
	"context"
)

// ListWithEvents is a list joined with the live event records it references.
// Events holds one record per reference, in list order; references the event
// service did not return are omitted.
type ListWithEvents struct {
	List   *List
	Events []Event
}

// OwnerInfo carries the display names attached to a list. SharedBy is empty
// when the list has never been shared.
type OwnerInfo struct {
	List     *List
	Owner    string
	SharedBy string
}

// SharedListView is a list shared with the caller, enriched for display.
type SharedListView struct {
	ListWithEvents
	OwnerName string
}

// AggregateWithEvents fetches the list's events in one batched call,
// forwarding credential when non-empty. Empty lists make no remote call.
func (s *Service) AggregateWithEvents(ctx context.Context, list *List, credential string) (*ListWithEvents, error) {
	const op = "favorites.AggregateWithEvents"
	out := &ListWithEvents{List: list, Events: []Event{}}
	if len(list.EventIDs) == 0 {
		return out, nil
	}

	fetched, err := s.events.GetEvents(ctx, uniqueIDs(list.EventIDs), credential)
	if err != nil {
		return nil, remoteError(op, "event service unavailable", err)
	}

	byID := make(map[int64]Event, len(fetched))
	for _, ev := range fetched {
		byID[ev.ID] = ev
	}
	for _, id := range list.EventIDs {
		if ev, ok := byID[id]; ok {
			out.Events = append(out.Events, ev)
		}
	}
	return out, nil
}

// FetchEvents passes a batch lookup through to the event service.
func (s *Service) FetchEvents(ctx context.Context, eventIDs []int64, credential string) ([]Event, error) {
	if len(eventIDs) == 0 {
		return []Event{}, nil
	}
	events, err := s.events.GetEvents(ctx, eventIDs, credential)
	if err != nil {
		return nil, remoteError("favorites.FetchEvents", "event service unavailable", err)
	}
	if events == nil {
		events = []Event{}
	}
	return events, nil
}

// OwnerName resolves the owner's display name, degrading to UnknownName.
func (s *Service) OwnerName(ctx context.Context, list *List) string {
	return s.nameOf(ctx, list.OwnerID)
}

// ResolveOwnerAndSharer resolves the owner's name and, when the member set
// was ever set, the sharer's. It never fails.
func (s *Service) ResolveOwnerAndSharer(ctx context.Context, list *List) OwnerInfo {
	info := OwnerInfo{List: list, Owner: s.nameOf(ctx, list.OwnerID)}
	if list.SharedByUserID != nil {
		info.SharedBy = s.nameOf(ctx, *list.SharedByUserID)
	}
	return info
}

// SharedWithMeWithEvents aggregates every SHARED list shared with userID. One
// failed batch fails the whole call; owner names are best-effort.
func (s *Service) SharedWithMeWithEvents(ctx context.Context, userID int64, credential string) ([]SharedListView, error) {
	lists, err := s.ListSharedWithMe(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]SharedListView, 0, len(lists))
	for _, list := range lists {
		agg, err := s.AggregateWithEvents(ctx, list, credential)
		if err != nil {
			return nil, err
		}
		views = append(views, SharedListView{
			ListWithEvents: *agg,
			OwnerName:      s.nameOf(ctx, list.OwnerID),
		})
	}
	return views, nil
}

// uniqueIDs returns ids without repeats, keeping first-seen order.
func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
