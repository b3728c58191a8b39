// Package handler содержит HTTP-обработчики API сервиса баллов лояльности.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/yxm4nsy/pay2win-backend/internal/middleware"
	"github.com/yxm4nsy/pay2win-backend/internal/model"
	"github.com/yxm4nsy/pay2win-backend/internal/points"
	"github.com/yxm4nsy/pay2win-backend/internal/ratelimit"
	"github.com/yxm4nsy/pay2win-backend/internal/repository"
	"github.com/yxm4nsy/pay2win-backend/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Authenticate(ctx context.Context, utorid, password string) (*model.User, error)
	RegisterUser(ctx context.Context, actorRole model.Role, utorid, name, email, password string) (*model.User, error)
	GetUser(ctx context.Context, utorid string) (*model.User, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	UpdateProfile(ctx context.Context, userID int64, name, email *string) (*model.User, error)
	SetUserRole(ctx context.Context, actorRole model.Role, targetUTORid string, newRole model.Role) (*model.User, error)
	SetUserVerified(ctx context.Context, actorRole model.Role, targetUTORid string) (*model.User, error)
	SetUserSuspicious(ctx context.Context, actorRole model.Role, targetUTORid string, suspicious bool) (*model.User, error)

	CreatePurchase(ctx context.Context, actorID int64, ownerUTORid string, spent float64, promotionIDs []int64, remark string) (*model.Transaction, error)
	CreateRedemption(ctx context.Context, actorID, amount int64, remark string) (*model.Transaction, error)
	ProcessRedemption(ctx context.Context, actorID int64, txID int64) (*model.Transaction, error)
	CreateTransfer(ctx context.Context, actorID int64, recipientUTORid string, amount int64, remark string) (*model.Transaction, error)
	CreateAdjustment(ctx context.Context, actorID int64, ownerUTORid string, amount, relatedTxID int64, remark string) (*model.Transaction, error)
	SetSuspicious(ctx context.Context, actorRole model.Role, txID int64, suspicious bool) (*model.Transaction, error)
	GetTransaction(ctx context.Context, actorRole model.Role, txID int64) (*model.Transaction, error)
	ListOwnTransactions(ctx context.Context, actorID int64, limit, offset int) ([]model.Transaction, error)

	CreatePromotion(ctx context.Context, actorRole model.Role, p *model.Promotion) (*model.Promotion, error)
	GetPromotion(ctx context.Context, id int64) (*model.Promotion, error)
	ListPromotions(ctx context.Context) ([]model.Promotion, error)
	UpdatePromotion(ctx context.Context, actorRole model.Role, id int64, patch repository.PromotionPatch) (*model.Promotion, error)
	DeletePromotion(ctx context.Context, actorRole model.Role, id int64) error

	CreateEvent(ctx context.Context, actorRole model.Role, e *model.Event, organizerUTORids []string) (*model.Event, error)
	GetEvent(ctx context.Context, id int64) (*model.Event, error)
	UpdateEvent(ctx context.Context, actorID int64, eventID int64, patch repository.EventPatch) (*model.Event, error)
	AddOrganizer(ctx context.Context, actorRole model.Role, eventID int64, utorid string) (*model.Event, error)
	AddGuest(ctx context.Context, actorID int64, eventID int64, utorid string) (*model.Event, error)
	RemoveGuest(ctx context.Context, actorID int64, eventID int64, utorid string) error
	CreateEventAward(ctx context.Context, actorID int64, eventID int64, targetUTORid *string, amount int64, remark string) ([]model.Transaction, error)
}

// Handler реализует HTTP-обработчики API сервиса баллов лояльности.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	loginLimiter   ratelimit.Store
	validate       *validator.Validate
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware, limiter ratelimit.Store) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
		loginLimiter:   limiter,
		validate:       validator.New(),
	}
}

func (h *Handler) decodeValid(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return false
	}
	return true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response error", zap.Error(err))
	}
}

// respondError переводит ошибки бизнес-логики в HTTP-статусы. Неизвестные
// ошибки логируются и отдаются как 500.
func (h *Handler) respondError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, points.ErrNotOneTime),
		errors.Is(err, points.ErrInactive),
		errors.Is(err, points.ErrMinSpending),
		errors.Is(err, repository.ErrNotRedemption),
		errors.Is(err, repository.ErrNotPurchase):
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
	case errors.Is(err, service.ErrInvalidCredentials):
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
	case errors.Is(err, repository.ErrInsufficientBalance):
		http.Error(w, http.StatusText(http.StatusPaymentRequired), http.StatusPaymentRequired)
	case errors.Is(err, service.ErrForbidden),
		errors.Is(err, service.ErrNotVerified):
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
	case errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, repository.ErrTransactionNotFound),
		errors.Is(err, repository.ErrPromotionNotFound),
		errors.Is(err, repository.ErrEventNotFound),
		errors.Is(err, repository.ErrGuestNotFound):
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	case errors.Is(err, repository.ErrUserExists),
		errors.Is(err, repository.ErrPromotionAlreadyUsed),
		errors.Is(err, points.ErrAlreadyUsed),
		errors.Is(err, repository.ErrAlreadyProcessed),
		errors.Is(err, repository.ErrInsufficientBudget),
		errors.Is(err, repository.ErrEventFull),
		errors.Is(err, repository.ErrAlreadyGuest):
		http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
	default:
		h.logger.Error(op, zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

type userResponse struct {
	ID         int64  `json:"id"`
	UTORid     string `json:"utorid"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	Points     int64  `json:"points"`
	Verified   bool   `json:"verified"`
	Suspicious bool   `json:"suspicious"`
	CreatedAt  string `json:"created_at"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:         u.ID,
		UTORid:     u.UTORid,
		Name:       u.Name,
		Email:      u.Email,
		Role:       string(u.Role),
		Points:     u.Points,
		Verified:   u.Verified,
		Suspicious: u.Suspicious,
		CreatedAt:  u.CreatedAt.Format(time.RFC3339),
	}
}

type transactionResponse struct {
	ID                   int64    `json:"id"`
	Type                 string   `json:"type"`
	OwnerID              int64    `json:"owner_id"`
	CreatedBy            int64    `json:"created_by"`
	Amount               int64    `json:"amount"`
	Spent                *float64 `json:"spent,omitempty"`
	Redeemed             *int64   `json:"redeemed,omitempty"`
	Suspicious           bool     `json:"suspicious"`
	RelatedUserID        *int64   `json:"related_user_id,omitempty"`
	RelatedTransactionID *int64   `json:"related_transaction_id,omitempty"`
	EventID              *int64   `json:"event_id,omitempty"`
	ProcessedBy          *int64   `json:"processed_by,omitempty"`
	PromotionIDs         []int64  `json:"promotion_ids,omitempty"`
	Remark               string   `json:"remark,omitempty"`
	CreatedAt            string   `json:"created_at"`
}

func toTransactionResponse(t *model.Transaction) transactionResponse {
	resp := transactionResponse{
		ID:                   t.ID,
		Type:                 string(t.Type),
		OwnerID:              t.OwnerID,
		CreatedBy:            t.CreatorID,
		Amount:               t.Amount,
		Redeemed:             t.Redeemed,
		Suspicious:           t.Suspicious,
		RelatedUserID:        t.RelatedUserID,
		RelatedTransactionID: t.RelatedTransactionID,
		EventID:              t.EventID,
		ProcessedBy:          t.ProcessorID,
		PromotionIDs:         t.PromotionIDs,
		Remark:               t.Remark,
		CreatedAt:            t.CreatedAt.Format(time.RFC3339),
	}
	if t.SpentCents != nil {
		spent := float64(*t.SpentCents) / 100
		resp.Spent = &spent
	}
	return resp
}
