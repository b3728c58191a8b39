package handler

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/yxm4nsy/pay2win-backend/internal/middleware"
	"github.com/yxm4nsy/pay2win-backend/internal/model"
	"github.com/yxm4nsy/pay2win-backend/internal/repository"
)

type promotionResponse struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Type        string   `json:"type"`
	StartTime   string   `json:"start_time"`
	EndTime     string   `json:"end_time"`
	MinSpending *float64 `json:"min_spending,omitempty"`
	Rate        *float64 `json:"rate,omitempty"`
	Points      *int64   `json:"points,omitempty"`
}

func toPromotionResponse(p *model.Promotion) promotionResponse {
	resp := promotionResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Type:        string(p.Type),
		StartTime:   p.StartTime.Format(time.RFC3339),
		EndTime:     p.EndTime.Format(time.RFC3339),
		Rate:        p.Rate,
		Points:      p.Points,
	}
	if p.MinSpendingCents != nil {
		minSpending := float64(*p.MinSpendingCents) / 100
		resp.MinSpending = &minSpending
	}
	return resp
}

type createPromotionRequest struct {
	Name        string    `json:"name" validate:"required"`
	Description string    `json:"description"`
	Type        string    `json:"type" validate:"required,oneof=automatic one-time"`
	StartTime   time.Time `json:"start_time" validate:"required"`
	EndTime     time.Time `json:"end_time" validate:"required"`
	MinSpending *float64  `json:"min_spending" validate:"omitempty,gt=0"`
	Rate        *float64  `json:"rate" validate:"omitempty,gt=0"`
	Points      *int64    `json:"points" validate:"omitempty,gt=0"`
}

// CreatePromotion создаёт акцию; доступно менеджеру и выше.
func (h *Handler) CreatePromotion(w http.ResponseWriter, r *http.Request) {
	role, ok := middleware.GetRoleFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req createPromotionRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	p := &model.Promotion{
		Name:        req.Name,
		Description: req.Description,
		Type:        model.PromotionType(req.Type),
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Rate:        req.Rate,
		Points:      req.Points,
	}
	if req.MinSpending != nil {
		minSpendingCents := int64(math.Round(*req.MinSpending * 100))
		p.MinSpendingCents = &minSpendingCents
	}

	created, err := h.service.CreatePromotion(r.Context(), role, p)
	if err != nil {
		h.respondError(w, err, "create promotion error")
		return
	}

	h.writeJSON(w, http.StatusCreated, toPromotionResponse(created))
}

// ListPromotions возвращает все акции.
func (h *Handler) ListPromotions(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListPromotions(r.Context())
	if err != nil {
		h.respondError(w, err, "list promotions error")
		return
	}

	resp := make([]promotionResponse, 0, len(list))
	for i := range list {
		resp = append(resp, toPromotionResponse(&list[i]))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// GetPromotion возвращает акцию по идентификатору.
func (h *Handler) GetPromotion(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	p, err := h.service.GetPromotion(r.Context(), id)
	if err != nil {
		h.respondError(w, err, "get promotion error")
		return
	}

	h.writeJSON(w, http.StatusOK, toPromotionResponse(p))
}

type updatePromotionRequest struct {
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	StartTime   *time.Time `json:"start_time"`
	EndTime     *time.Time `json:"end_time"`
	MinSpending *float64   `json:"min_spending" validate:"omitempty,gt=0"`
	Rate        *float64   `json:"rate" validate:"omitempty,gt=0"`
	Points      *int64     `json:"points" validate:"omitempty,gt=0"`
}

// UpdatePromotion применяет частичное обновление акции; после начала
// действия правится только время окончания.
func (h *Handler) UpdatePromotion(w http.ResponseWriter, r *http.Request) {
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

	var req updatePromotionRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	patch := repository.PromotionPatch{
		Name:        req.Name,
		Description: req.Description,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Rate:        req.Rate,
		Points:      req.Points,
	}
	if req.MinSpending != nil {
		minSpendingCents := int64(math.Round(*req.MinSpending * 100))
		patch.MinSpendingCents = &minSpendingCents
	}

	p, err := h.service.UpdatePromotion(r.Context(), role, id, patch)
	if err != nil {
		h.respondError(w, err, "update promotion error")
		return
	}

	h.writeJSON(w, http.StatusOK, toPromotionResponse(p))
}

// DeletePromotion удаляет ещё не начавшуюся акцию.
func (h *Handler) DeletePromotion(w http.ResponseWriter, r *http.Request) {
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

	if err := h.service.DeletePromotion(r.Context(), role, id); err != nil {
		h.respondError(w, err, "delete promotion error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
