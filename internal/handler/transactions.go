package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/yxm4nsy/pay2win-backend/internal/middleware"
	"github.com/yxm4nsy/pay2win-backend/internal/model"
)

type createTransactionRequest struct {
	Type         string  `json:"type" validate:"required,oneof=purchase adjustment"`
	UTORid       string  `json:"utorid" validate:"required"`
	Spent        float64 `json:"spent"`
	Amount       int64   `json:"amount"`
	RelatedID    int64   `json:"related_id"`
	PromotionIDs []int64 `json:"promotion_ids"`
	Remark       string  `json:"remark"`
}

// CreateTransaction создаёт покупку (кассир и выше) или корректировку
// (менеджер и выше).
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req createTransactionRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	var t *model.Transaction
	var err error

	switch model.TransactionType(req.Type) {
	case model.TransactionPurchase:
		t, err = h.service.CreatePurchase(r.Context(), actorID, req.UTORid, req.Spent, req.PromotionIDs, req.Remark)
	case model.TransactionAdjustment:
		t, err = h.service.CreateAdjustment(r.Context(), actorID, req.UTORid, req.Amount, req.RelatedID, req.Remark)
	}
	if err != nil {
		h.respondError(w, err, "create transaction error")
		return
	}

	h.writeJSON(w, http.StatusCreated, toTransactionResponse(t))
}

// GetTransaction возвращает транзакцию по идентификатору; доступно
// менеджеру и выше.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	role, ok := middleware.GetRoleFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	txID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	t, err := h.service.GetTransaction(r.Context(), role, txID)
	if err != nil {
		h.respondError(w, err, "get transaction error")
		return
	}

	h.writeJSON(w, http.StatusOK, toTransactionResponse(t))
}

type suspiciousRequest struct {
	Suspicious *bool `json:"suspicious" validate:"required"`
}

// SetTransactionSuspicious меняет флаг подозрительности покупки,
// начисляя или снимая её баллы.
func (h *Handler) SetTransactionSuspicious(w http.ResponseWriter, r *http.Request) {
	role, ok := middleware.GetRoleFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	txID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req suspiciousRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	t, err := h.service.SetSuspicious(r.Context(), role, txID, *req.Suspicious)
	if err != nil {
		h.respondError(w, err, "set transaction suspicious error")
		return
	}

	h.writeJSON(w, http.StatusOK, toTransactionResponse(t))
}

// ProcessRedemption отмечает запрос на списание обработанным и снимает
// баллы со счёта владельца.
func (h *Handler) ProcessRedemption(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	txID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	t, err := h.service.ProcessRedemption(r.Context(), actorID, txID)
	if err != nil {
		h.respondError(w, err, "process redemption error")
		return
	}

	h.writeJSON(w, http.StatusOK, toTransactionResponse(t))
}

type redemptionRequest struct {
	Amount int64  `json:"amount" validate:"required,gt=0"`
	Remark string `json:"remark"`
}

// CreateRedemption создаёт запрос на списание баллов текущего пользователя.
func (h *Handler) CreateRedemption(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req redemptionRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	t, err := h.service.CreateRedemption(r.Context(), actorID, req.Amount, req.Remark)
	if err != nil {
		h.respondError(w, err, "create redemption error")
		return
	}

	h.writeJSON(w, http.StatusCreated, toTransactionResponse(t))
}

// ListMyTransactions возвращает журнал транзакций текущего пользователя.
func (h *Handler) ListMyTransactions(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)

	list, err := h.service.ListOwnTransactions(r.Context(), actorID, limit, offset)
	if err != nil {
		h.respondError(w, err, "list transactions error")
		return
	}

	if len(list) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]transactionResponse, 0, len(list))
	for i := range list {
		resp = append(resp, toTransactionResponse(&list[i]))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

type transferRequest struct {
	Amount int64  `json:"amount" validate:"required,gt=0"`
	Remark string `json:"remark"`
}

// CreateTransfer переводит баллы текущего пользователя получателю из пути.
func (h *Handler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req transferRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	t, err := h.service.CreateTransfer(r.Context(), actorID, chi.URLParam(r, "utorid"), req.Amount, req.Remark)
	if err != nil {
		h.respondError(w, err, "create transfer error")
		return
	}

	h.writeJSON(w, http.StatusCreated, toTransactionResponse(t))
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
