package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/yxm4nsy/pay2win-backend/internal/middleware"
	"github.com/yxm4nsy/pay2win-backend/internal/model"
	"github.com/yxm4nsy/pay2win-backend/internal/ratelimit"
	"github.com/yxm4nsy/pay2win-backend/internal/repository"
	"github.com/yxm4nsy/pay2win-backend/internal/service"
)

type stubService struct {
	user    *model.User
	userErr error

	tx        *model.Transaction
	txErr     error
	txList    []model.Transaction
	txListErr error

	promo    *model.Promotion
	promoErr error
	promos   []model.Promotion

	event    *model.Event
	eventErr error

	awards   []model.Transaction
	awardErr error
}

func (s *stubService) Authenticate(ctx context.Context, utorid, password string) (*model.User, error) {
	return s.user, s.userErr
}

func (s *stubService) RegisterUser(ctx context.Context, actorRole model.Role, utorid, name, email, password string) (*model.User, error) {
	return s.user, s.userErr
}

func (s *stubService) GetUser(ctx context.Context, utorid string) (*model.User, error) {
	return s.user, s.userErr
}

func (s *stubService) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	return s.user, s.userErr
}

func (s *stubService) UpdateProfile(ctx context.Context, userID int64, name, email *string) (*model.User, error) {
	return s.user, s.userErr
}

func (s *stubService) SetUserRole(ctx context.Context, actorRole model.Role, targetUTORid string, newRole model.Role) (*model.User, error) {
	return s.user, s.userErr
}

func (s *stubService) SetUserVerified(ctx context.Context, actorRole model.Role, targetUTORid string) (*model.User, error) {
	return s.user, s.userErr
}

func (s *stubService) SetUserSuspicious(ctx context.Context, actorRole model.Role, targetUTORid string, suspicious bool) (*model.User, error) {
	return s.user, s.userErr
}

func (s *stubService) CreatePurchase(ctx context.Context, actorID int64, ownerUTORid string, spent float64, promotionIDs []int64, remark string) (*model.Transaction, error) {
	return s.tx, s.txErr
}

func (s *stubService) CreateRedemption(ctx context.Context, actorID, amount int64, remark string) (*model.Transaction, error) {
	return s.tx, s.txErr
}

func (s *stubService) ProcessRedemption(ctx context.Context, actorID int64, txID int64) (*model.Transaction, error) {
	return s.tx, s.txErr
}

func (s *stubService) CreateTransfer(ctx context.Context, actorID int64, recipientUTORid string, amount int64, remark string) (*model.Transaction, error) {
	return s.tx, s.txErr
}

func (s *stubService) CreateAdjustment(ctx context.Context, actorID int64, ownerUTORid string, amount, relatedTxID int64, remark string) (*model.Transaction, error) {
	return s.tx, s.txErr
}

func (s *stubService) SetSuspicious(ctx context.Context, actorRole model.Role, txID int64, suspicious bool) (*model.Transaction, error) {
	return s.tx, s.txErr
}

func (s *stubService) GetTransaction(ctx context.Context, actorRole model.Role, txID int64) (*model.Transaction, error) {
	return s.tx, s.txErr
}

func (s *stubService) ListOwnTransactions(ctx context.Context, actorID int64, limit, offset int) ([]model.Transaction, error) {
	return s.txList, s.txListErr
}

func (s *stubService) CreatePromotion(ctx context.Context, actorRole model.Role, p *model.Promotion) (*model.Promotion, error) {
	return s.promo, s.promoErr
}

func (s *stubService) GetPromotion(ctx context.Context, id int64) (*model.Promotion, error) {
	return s.promo, s.promoErr
}

func (s *stubService) ListPromotions(ctx context.Context) ([]model.Promotion, error) {
	return s.promos, s.promoErr
}

func (s *stubService) UpdatePromotion(ctx context.Context, actorRole model.Role, id int64, patch repository.PromotionPatch) (*model.Promotion, error) {
	return s.promo, s.promoErr
}

func (s *stubService) DeletePromotion(ctx context.Context, actorRole model.Role, id int64) error {
	return s.promoErr
}

func (s *stubService) CreateEvent(ctx context.Context, actorRole model.Role, e *model.Event, organizerUTORids []string) (*model.Event, error) {
	return s.event, s.eventErr
}

func (s *stubService) GetEvent(ctx context.Context, id int64) (*model.Event, error) {
	return s.event, s.eventErr
}

func (s *stubService) UpdateEvent(ctx context.Context, actorID int64, eventID int64, patch repository.EventPatch) (*model.Event, error) {
	return s.event, s.eventErr
}

func (s *stubService) AddOrganizer(ctx context.Context, actorRole model.Role, eventID int64, utorid string) (*model.Event, error) {
	return s.event, s.eventErr
}

func (s *stubService) AddGuest(ctx context.Context, actorID int64, eventID int64, utorid string) (*model.Event, error) {
	return s.event, s.eventErr
}

func (s *stubService) RemoveGuest(ctx context.Context, actorID int64, eventID int64, utorid string) error {
	return s.eventErr
}

func (s *stubService) CreateEventAward(ctx context.Context, actorID int64, eventID int64, targetUTORid *string, amount int64, remark string) ([]model.Transaction, error) {
	return s.awards, s.awardErr
}

func newTestHandler(t *testing.T, svc Service) *Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	auth := middleware.NewAuthMiddleware("test-secret", time.Hour)
	limiter := ratelimit.NewMemoryStore(time.Minute)

	return NewHandler(svc, logger, auth, limiter)
}

func bearerFor(t *testing.T, h *Handler, userID int64, role model.Role) string {
	t.Helper()

	token, _, err := h.authMiddleware.IssueToken(userID, role)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return "Bearer " + token
}

func TestLogin_Success(t *testing.T) {
	svc := &stubService{
		user: &model.User{ID: 42, UTORid: "clive123", Role: model.RoleRegular},
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(loginRequest{
		UTORid:   "clive123",
		Password: "password1",
	})

	req := httptest.NewRequest(http.MethodPost, "/auth/tokens", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp loginResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("token must not be empty")
	}
}

func TestLogin_RateLimited(t *testing.T) {
	svc := &stubService{
		user: &model.User{ID: 42, UTORid: "clive123", Role: model.RoleRegular},
	}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		body, _ := json.Marshal(loginRequest{UTORid: "clive123", Password: "password1"})

		req := httptest.NewRequest(http.MethodPost, "/auth/tokens", bytes.NewReader(body))
		req.RemoteAddr = "10.0.0.7:1234"
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		res := rec.Result()
		res.Body.Close()
		if res.StatusCode != want {
			t.Fatalf("request %d: status = %d, want %d", i, res.StatusCode, want)
		}
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	svc := &stubService{
		userErr: service.ErrInvalidCredentials,
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(loginRequest{UTORid: "clive123", Password: "wrong"})

	req := httptest.NewRequest(http.MethodPost, "/auth/tokens", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusUnauthorized)
	}
}

func TestCreateTransaction_Purchase(t *testing.T) {
	spentCents := int64(1999)
	svc := &stubService{
		tx: &model.Transaction{
			ID:         7,
			Type:       model.TransactionPurchase,
			OwnerID:    2,
			CreatorID:  1,
			Amount:     80,
			SpentCents: &spentCents,
			CreatedAt:  time.Now().UTC(),
		},
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(createTransactionRequest{
		Type:   "purchase",
		UTORid: "johndoe1",
		Spent:  19.99,
	})

	req := httptest.NewRequest(http.MethodPost, "/transactions", bytes.NewReader(body))
	req.Header.Set("Authorization", bearerFor(t, h, 1, model.RoleCashier))
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusCreated)
	}

	var resp transactionResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Amount != 80 {
		t.Errorf("amount = %d, want 80", resp.Amount)
	}
	if resp.Spent == nil || *resp.Spent != 19.99 {
		t.Errorf("spent = %v, want 19.99", resp.Spent)
	}
}

func TestCreateTransaction_RegularForbidden(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	body, _ := json.Marshal(createTransactionRequest{
		Type:   "purchase",
		UTORid: "johndoe1",
		Spent:  10,
	})

	req := httptest.NewRequest(http.MethodPost, "/transactions", bytes.NewReader(body))
	req.Header.Set("Authorization", bearerFor(t, h, 2, model.RoleRegular))
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusForbidden)
	}
}

func TestCreateRedemption_InsufficientBalance(t *testing.T) {
	svc := &stubService{
		txErr: repository.ErrInsufficientBalance,
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(redemptionRequest{Amount: 1000})

	req := httptest.NewRequest(http.MethodPost, "/users/me/transactions", bytes.NewReader(body))
	req.Header.Set("Authorization", bearerFor(t, h, 2, model.RoleRegular))
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	if res.StatusCode != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusPaymentRequired)
	}
}

func TestCreateTransaction_PromotionAlreadyUsed(t *testing.T) {
	svc := &stubService{
		txErr: repository.ErrPromotionAlreadyUsed,
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(createTransactionRequest{
		Type:         "purchase",
		UTORid:       "johndoe1",
		Spent:        20,
		PromotionIDs: []int64{3},
	})

	req := httptest.NewRequest(http.MethodPost, "/transactions", bytes.NewReader(body))
	req.Header.Set("Authorization", bearerFor(t, h, 1, model.RoleCashier))
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusConflict)
	}
}

func TestListMyTransactions_NoContent(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	req := httptest.NewRequest(http.MethodGet, "/users/me/transactions", nil)
	req.Header.Set("Authorization", bearerFor(t, h, 2, model.RoleRegular))
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusNoContent)
	}
}

func TestGetMe_JSONResponse(t *testing.T) {
	svc := &stubService{
		user: &model.User{
			ID:        2,
			UTORid:    "johndoe1",
			Name:      "John Doe",
			Email:     "john.doe@mail.utoronto.ca",
			Role:      model.RoleRegular,
			Points:    600,
			Verified:  true,
			CreatedAt: time.Now().UTC(),
		},
	}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	req.Header.Set("Authorization", bearerFor(t, h, 2, model.RoleRegular))
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if ct := res.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type = %q, want application/json", ct)
	}

	var resp userResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Points != 600 {
		t.Errorf("points = %d, want 600", resp.Points)
	}
}

func TestGetTransactions_Unauthorized(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	req := httptest.NewRequest(http.MethodGet, "/transactions/1", nil)
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusUnauthorized)
	}
}

func TestCreateEventAward_BudgetConflict(t *testing.T) {
	svc := &stubService{
		awardErr: repository.ErrInsufficientBudget,
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(eventAwardRequest{Amount: 50})

	req := httptest.NewRequest(http.MethodPost, "/events/1/transactions", bytes.NewReader(body))
	req.Header.Set("Authorization", bearerFor(t, h, 5, model.RoleRegular))
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusConflict)
	}
}
