package handlers

import (
	"time"

	"github.com/Togather-Foundation/favorites/internal/domain/favorites"
)

type listResponse struct {
	ID              string    `json:"id"`
	OwnerID         int64     `json:"ownerId"`
	Name            string    `json:"name"`
	Visibility      string    `json:"visibility"`
	EventIDs        []int64   `json:"eventIds"`
	SharedWith      []int64   `json:"sharedWith"`
	SharedByUserID  *int64    `json:"sharedByUserId,omitempty"`
	CapabilityToken string    `json:"capabilityToken,omitempty"`
	Version         int64     `json:"version"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// toListResponse renders a list for viewer. The capability token is shown
// to the owner, or when the caller already presented it.
func toListResponse(list *favorites.List, viewer int64, showToken bool) listResponse {
	resp := listResponse{
		ID:             list.ID,
		OwnerID:        list.OwnerID,
		Name:           list.Name,
		Visibility:     string(list.Visibility),
		EventIDs:       nonNil(list.EventIDs),
		SharedWith:     nonNil(list.SharedWith),
		SharedByUserID: list.SharedByUserID,
		Version:        list.Version,
		CreatedAt:      list.CreatedAt,
		UpdatedAt:      list.UpdatedAt,
	}
	if showToken || (viewer != 0 && viewer == list.OwnerID) {
		resp.CapabilityToken = list.CapabilityToken
	}
	// Only the owner sees the member set.
	if viewer != list.OwnerID {
		resp.SharedWith = []int64{}
	}
	return resp
}

func toListResponses(lists []*favorites.List, viewer int64) []listResponse {
	out := make([]listResponse, 0, len(lists))
	for _, list := range lists {
		out = append(out, toListResponse(list, viewer, false))
	}
	return out
}

type listWithEventsResponse struct {
	listResponse
	Events []favorites.Event `json:"events"`
}

func toListWithEvents(agg *favorites.ListWithEvents, viewer int64, showToken bool) listWithEventsResponse {
	events := agg.Events
	if events == nil {
		events = []favorites.Event{}
	}
	return listWithEventsResponse{
		listResponse: toListResponse(agg.List, viewer, showToken),
		Events:       events,
	}
}

type sharedListResponse struct {
	listWithEventsResponse
	OwnerName string `json:"ownerName"`
}

type ownerNameResponse struct {
	ListID    string `json:"listId"`
	OwnerID   int64  `json:"ownerId"`
	OwnerName string `json:"ownerName"`
}

type withOwnerResponse struct {
	List         listResponse `json:"list"`
	OwnerName    string       `json:"ownerName"`
	SharedByName string       `json:"sharedByName,omitempty"`
}

type createListRequest struct {
	Name       string  `json:"name"`
	Visibility string  `json:"visibility"`
	SharedWith []int64 `json:"sharedWith"`
}

type renameListRequest struct {
	Name string `json:"name"`
}

func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
