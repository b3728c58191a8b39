package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/yxm4nsy/pay2win-backend/internal/middleware"
	"github.com/yxm4nsy/pay2win-backend/internal/model"
	"github.com/yxm4nsy/pay2win-backend/internal/repository"
)

type eventResponse struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	Description   string  `json:"description,omitempty"`
	Location      string  `json:"location,omitempty"`
	StartTime     string  `json:"start_time"`
	EndTime       string  `json:"end_time"`
	Capacity      *int64  `json:"capacity,omitempty"`
	PointsTotal   int64   `json:"points_total"`
	PointsAwarded int64   `json:"points_awarded"`
	OrganizerIDs  []int64 `json:"organizer_ids"`
	GuestIDs      []int64 `json:"guest_ids"`
}

func toEventResponse(e *model.Event) eventResponse {
	return eventResponse{
		ID:            e.ID,
		Name:          e.Name,
		Description:   e.Description,
		Location:      e.Location,
		StartTime:     e.StartTime.Format(time.RFC3339),
		EndTime:       e.EndTime.Format(time.RFC3339),
		Capacity:      e.Capacity,
		PointsTotal:   e.PointsTotal,
		PointsAwarded: e.PointsAwarded,
		OrganizerIDs:  e.OrganizerIDs,
		GuestIDs:      e.GuestIDs,
	}
}

type createEventRequest struct {
	Name        string    `json:"name" validate:"required"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	StartTime   time.Time `json:"start_time" validate:"required"`
	EndTime     time.Time `json:"end_time" validate:"required"`
	Capacity    *int64    `json:"capacity" validate:"omitempty,gt=0"`
	PointsTotal int64     `json:"points_total" validate:"required,gt=0"`
	Organizers  []string  `json:"organizers"`
}

// CreateEvent создаёт мероприятие; доступно менеджеру и выше.
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	role, ok := middleware.GetRoleFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req createEventRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	e := &model.Event{
		Name:        req.Name,
		Description: req.Description,
		Location:    req.Location,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Capacity:    req.Capacity,
		PointsTotal: req.PointsTotal,
	}

	created, err := h.service.CreateEvent(r.Context(), role, e, req.Organizers)
	if err != nil {
		h.respondError(w, err, "create event error")
		return
	}

	h.writeJSON(w, http.StatusCreated, toEventResponse(created))
}

// GetEvent возвращает мероприятие по идентификатору.
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	e, err := h.service.GetEvent(r.Context(), id)
	if err != nil {
		h.respondError(w, err, "get event error")
		return
	}

	h.writeJSON(w, http.StatusOK, toEventResponse(e))
}

type updateEventRequest struct {
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	Location    *string    `json:"location"`
	StartTime   *time.Time `json:"start_time"`
	EndTime     *time.Time `json:"end_time"`
	Capacity    *int64     `json:"capacity" validate:"omitempty,gt=0"`
	PointsTotal *int64     `json:"points_total" validate:"omitempty,gt=0"`
}

// UpdateEvent применяет частичное обновление мероприятия; доступно
// организатору или менеджеру, бюджет баллов меняет только менеджер.
func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req updateEventRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	patch := repository.EventPatch{
		Name:        req.Name,
		Description: req.Description,
		Location:    req.Location,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Capacity:    req.Capacity,
		PointsTotal: req.PointsTotal,
	}

	e, err := h.service.UpdateEvent(r.Context(), actorID, id, patch)
	if err != nil {
		h.respondError(w, err, "update event error")
		return
	}

	h.writeJSON(w, http.StatusOK, toEventResponse(e))
}

type memberRequest struct {
	UTORid string `json:"utorid" validate:"required"`
}

// AddOrganizer добавляет организатора мероприятия; доступно менеджеру и выше.
func (h *Handler) AddOrganizer(w http.ResponseWriter, r *http.Request) {
	role, ok := middleware.GetRoleFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req memberRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	e, err := h.service.AddOrganizer(r.Context(), role, id, req.UTORid)
	if err != nil {
		h.respondError(w, err, "add organizer error")
		return
	}

	h.writeJSON(w, http.StatusCreated, toEventResponse(e))
}

// AddGuest записывает гостя на мероприятие с проверкой вместимости.
func (h *Handler) AddGuest(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req memberRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	e, err := h.service.AddGuest(r.Context(), actorID, id, req.UTORid)
	if err != nil {
		h.respondError(w, err, "add guest error")
		return
	}

	h.writeJSON(w, http.StatusCreated, toEventResponse(e))
}

// RemoveGuest убирает гостя из списка мероприятия.
func (h *Handler) RemoveGuest(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.RemoveGuest(r.Context(), actorID, id, chi.URLParam(r, "utorid")); err != nil {
		h.respondError(w, err, "remove guest error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type eventAwardRequest struct {
	UTORid *string `json:"utorid"`
	Amount int64   `json:"amount" validate:"required,gt=0"`
	Remark string  `json:"remark"`
}

// CreateEventAward начисляет баллы гостю мероприятия либо всем гостям,
// если utorid не указан; бюджет мероприятия не может быть превышен.
func (h *Handler) CreateEventAward(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req eventAwardRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	list, err := h.service.CreateEventAward(r.Context(), actorID, id, req.UTORid, req.Amount, req.Remark)
	if err != nil {
		h.respondError(w, err, "create event award error")
		return
	}

	resp := make([]transactionResponse, 0, len(list))
	for i := range list {
		resp = append(resp, toTransactionResponse(&list[i]))
	}

	h.writeJSON(w, http.StatusCreated, resp)
}
