package handlers

import (
	"net/http"
	"strconv"

	"github.com/Togather-Foundation/favorites/internal/api/problem"
	"github.com/Togather-Foundation/favorites/internal/audit"
	"github.com/Togather-Foundation/favorites/internal/auth"
	"github.com/Togather-Foundation/favorites/internal/domain/favorites"
	"github.com/Togather-Foundation/favorites/internal/sanitize"
)

type ListsHandler struct {
	Service *favorites.Service
	Audit   *audit.Logger
	Env     string
}

func NewListsHandler(service *favorites.Service, auditLog *audit.Logger, env string) *ListsHandler {
	return &ListsHandler{Service: service, Audit: auditLog, Env: env}
}

// caller returns the authenticated user id and raw credential, or zero
// values for anonymous requests.
func caller(r *http.Request) (int64, string) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		return 0, ""
	}
	return p.UserID, p.Credential
}

func (h *ListsHandler) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, h.Env, problem.WithDetail(err.Error()))
}

func (h *ListsHandler) notFound(w http.ResponseWriter, r *http.Request) {
	problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "List not found", nil, h.Env)
}

// visibleList resolves the {id} path value for the caller, writing a 404
// when the list is absent or hidden.
func (h *ListsHandler) visibleList(w http.ResponseWriter, r *http.Request) (*favorites.List, bool) {
	userID, _ := caller(r)
	list, ok, err := h.Service.GetByID(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		problem.FromError(w, r, err, h.Env)
		return nil, false
	}
	if !ok {
		h.notFound(w, r)
		return nil, false
	}
	return list, true
}

func (h *ListsHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, _ := caller(r)

	var req createListRequest
	if err := decodeJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	list, err := h.Service.CreateList(r.Context(), userID, favorites.CreateListInput{
		Name:       sanitize.ListName(req.Name),
		Visibility: req.Visibility,
		SharedWith: req.SharedWith,
	})
	if err != nil {
		problem.FromError(w, r, err, h.Env)
		return
	}

	h.Audit.Success(r, audit.ActionListCreated, userID, list.ID, map[string]string{
		"visibility": string(list.Visibility),
	})
	w.Header().Set("Location", "/api/favorites/lists/"+list.ID)
	writeJSON(w, http.StatusCreated, toListResponse(list, userID, true))
}

func (h *ListsHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, _ := caller(r)
	lists, err := h.Service.ListMine(r.Context(), userID)
	if err != nil {
		problem.FromError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, toListResponses(lists, userID))
}

func (h *ListsHandler) ListPublic(w http.ResponseWriter, r *http.Request) {
	userID, _ := caller(r)
	lists, err := h.Service.ListPublic(r.Context())
	if err != nil {
		problem.FromError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, toListResponses(lists, userID))
}

func (h *ListsHandler) SharedWithMe(w http.ResponseWriter, r *http.Request) {
	userID, _ := caller(r)
	lists, err := h.Service.ListSharedWithMe(r.Context(), userID)
	if err != nil {
		problem.FromError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, toListResponses(lists, userID))
}

func (h *ListsHandler) SharedWithMeWithEvents(w http.ResponseWriter, r *http.Request) {
	userID, credential := caller(r)
	views, err := h.Service.SharedWithMeWithEvents(r.Context(), userID, credential)
	if err != nil {
		problem.FromError(w, r, err, h.Env)
		return
	}

	out := make([]sharedListResponse, 0, len(views))
	for _, view := range views {
		out = append(out, sharedListResponse{
			listWithEventsResponse: toListWithEvents(&view.ListWithEvents, userID, false),
			OwnerName:              view.OwnerName,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ListsHandler) Get(w http.ResponseWriter, r *http.Request) {
	list, ok := h.visibleList(w, r)
	if !ok {
		return
	}
	userID, _ := caller(r)
	writeJSON(w, http.StatusOK, toListResponse(list, userID, false))
}

func (h *ListsHandler) GetWithEvents(w http.ResponseWriter, r *http.Request) {
	list, ok := h.visibleList(w, r)
	if !ok {
		return
	}
	userID, credential := caller(r)
	agg, err := h.Service.AggregateWithEvents(r.Context(), list, credential)
	if err != nil {
		problem.FromError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, toListWithEvents(agg, userID, false))
}

func (h *ListsHandler) OwnerName(w http.ResponseWriter, r *http.Request) {
	list, ok := h.visibleList(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ownerNameResponse{
		ListID:    list.ID,
		OwnerID:   list.OwnerID,
		OwnerName: h.Service.OwnerName(r.Context(), list),
	})
}

func (h *ListsHandler) WithOwner(w http.ResponseWriter, r *http.Request) {
	list, ok := h.visibleList(w, r)
	if !ok {
		return
	}
	userID, _ := caller(r)
	info := h.Service.ResolveOwnerAndSharer(r.Context(), list)
	writeJSON(w, http.StatusOK, withOwnerResponse{
		List:         toListResponse(info.List, userID, false),
		OwnerName:    info.Owner,
		SharedByName: info.SharedBy,
	})
}

func (h *ListsHandler) Rename(w http.ResponseWriter, r *http.Request) {
	userID, _ := caller(r)

	var req renameListRequest
	if err := decodeJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	list, err := h.Service.RenameList(r.Context(), r.PathValue("id"), userID, sanitize.ListName(req.Name))
	if err != nil {
		problem.FromError(w, r, err, h.Env)
		return
	}
	h.Audit.Success(r, audit.ActionListRenamed, userID, list.ID, nil)
	writeJSON(w, http.StatusOK, toListResponse(list, userID, false))
}

func (h *ListsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, _ := caller(r)
	if err := h.Service.DeleteList(r.Context(), r.PathValue("id"), userID); err != nil {
		problem.FromError(w, r, err, h.Env)
		return
	}
	h.Audit.Success(r, audit.ActionListDeleted, userID, r.PathValue("id"), nil)
	w.WriteHeader(http.StatusNoContent)
}

func (h *ListsHandler) AddEvent(w http.ResponseWriter, r *http.Request) {
	userID, _ := caller(r)
	eventID, err := pathInt64(r, "eventId")
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	event, err := h.Service.AddEvent(r.Context(), r.PathValue("id"), userID, eventID)
	if err != nil {
		problem.FromError(w, r, err, h.Env)
		return
	}
	h.Audit.Success(r, audit.ActionEventAdded, userID, r.PathValue("id"), map[string]string{
		"event_id": strconv.FormatInt(eventID, 10),
	})
	writeJSON(w, http.StatusOK, event)
}

func (h *ListsHandler) RemoveEvent(w http.ResponseWriter, r *http.Request) {
	userID, _ := caller(r)
	eventID, err := pathInt64(r, "eventId")
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	if err := h.Service.RemoveEvent(r.Context(), r.PathValue("id"), userID, eventID); err != nil {
		problem.FromError(w, r, err, h.Env)
		return
	}
	h.Audit.Success(r, audit.ActionEventRemoved, userID, r.PathValue("id"), map[string]string{
		"event_id": strconv.FormatInt(eventID, 10),
	})
	w.WriteHeader(http.StatusNoContent)
}

// UpdateSharedWith takes a JSON array of user ids.
func (h *ListsHandler) UpdateSharedWith(w http.ResponseWriter, r *http.Request) {
	userID, _ := caller(r)

	var userIDs []int64
	if err := decodeJSON(r, &userIDs); err != nil {
		h.badRequest(w, r, err)
		return
	}

	list, err := h.Service.UpdateSharedWith(r.Context(), r.PathValue("id"), userID, userIDs)
	if err != nil {
		problem.FromError(w, r, err, h.Env)
		return
	}
	h.Audit.Success(r, audit.ActionSharingSet, userID, list.ID, map[string]string{
		"shared_with": audit.IDs(list.SharedWith),
	})
	writeJSON(w, http.StatusOK, toListResponse(list, userID, false))
}

// FetchEvents passes a JSON array of event ids to the event service with the
// caller's credential.
func (h *ListsHandler) FetchEvents(w http.ResponseWriter, r *http.Request) {
	_, credential := caller(r)

	var eventIDs []int64
	if err := decodeJSON(r, &eventIDs); err != nil {
		h.badRequest(w, r, err)
		return
	}

	events, err := h.Service.FetchEvents(r.Context(), eventIDs, credential)
	if err != nil {
		problem.FromError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *ListsHandler) GetPublic(w http.ResponseWriter, r *http.Request) {
	list, ok, err := h.Service.GetPublicByToken(r.Context(), r.PathValue("token"))
	if err != nil {
		problem.FromError(w, r, err, h.Env)
		return
	}
	if !ok {
		h.notFound(w, r)
		return
	}
	userID, _ := caller(r)
	writeJSON(w, http.StatusOK, toListResponse(list, userID, true))
}

func (h *ListsHandler) GetPublicWithEvents(w http.ResponseWriter, r *http.Request) {
	list, ok, err := h.Service.GetPublicByToken(r.Context(), r.PathValue("token"))
	if err != nil {
		problem.FromError(w, r, err, h.Env)
		return
	}
	if !ok {
		h.notFound(w, r)
		return
	}
	userID, credential := caller(r)
	agg, err := h.Service.AggregateWithEvents(r.Context(), list, credential)
	if err != nil {
		problem.FromError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, toListWithEvents(agg, userID, true))
}
