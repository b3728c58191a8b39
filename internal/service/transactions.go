package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/yxm4nsy/pay2win-backend/internal/model"
	"github.com/yxm4nsy/pay2win-backend/internal/points"
	"github.com/yxm4nsy/pay2win-backend/internal/repository"
)

const maxTransactionsPage = 100

// CreatePurchase фиксирует покупку: рассчитывает баллы по базовому курсу и
// акциям и атомарно записывает транзакцию. Если кассир помечен подозрительным,
// транзакция создаётся с suspicious=true, баллы не начисляются и одноразовые
// акции не расходуются.
func (s *Service) CreatePurchase(ctx context.Context, actorID int64, ownerUTORid string, spent float64, promotionIDs []int64, remark string) (*model.Transaction, error) {
	actor, err := s.repo.GetUserByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if err := requireRole(actor.Role, model.RoleCashier); err != nil {
		return nil, err
	}

	if spent <= 0 {
		return nil, fmt.Errorf("%w: spent must be positive", ErrValidation)
	}
	spentCents := int64(math.Round(spent * 100))

	owner, err := s.repo.GetUserByUTORid(ctx, ownerUTORid)
	if err != nil {
		return nil, err
	}

	now := time.Now()

	automatic, err := s.repo.ActiveAutomaticPromotions(ctx, now, spentCents)
	if err != nil {
		return nil, err
	}

	byID, err := s.repo.PromotionsByIDs(ctx, promotionIDs)
	if err != nil {
		return nil, err
	}
	requested := make([]model.Promotion, 0, len(promotionIDs))
	for _, id := range promotionIDs {
		requested = append(requested, byID[id])
	}

	used, err := s.repo.UsedPromotionIDs(ctx, owner.ID, promotionIDs)
	if err != nil {
		return nil, err
	}

	res, err := points.Calculate(spentCents, now, automatic, requested, used)
	if err != nil {
		return nil, err
	}

	return s.repo.CreatePurchase(ctx, repository.PurchaseParams{
		OwnerID:      owner.ID,
		CreatorID:    actor.ID,
		SpentCents:   spentCents,
		Earned:       res.Earned,
		Suspicious:   actor.Suspicious,
		PromotionIDs: res.AppliedIDs,
		OneTimeIDs:   res.OneTimeIDs,
		Remark:       remark,
	})
}

// CreateRedemption создаёт запрос на списание баллов текущего пользователя.
// Баланс уменьшится только при обработке запроса кассиром.
func (s *Service) CreateRedemption(ctx context.Context, actorID, amount int64, remark string) (*model.Transaction, error) {
	actor, err := s.repo.GetUserByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !actor.Verified {
		return nil, ErrNotVerified
	}

	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}

	return s.repo.CreateRedemption(ctx, actor.ID, amount, remark)
}

// ProcessRedemption завершает запрос на списание; доступно кассирам и выше.
func (s *Service) ProcessRedemption(ctx context.Context, actorID int64, txID int64) (*model.Transaction, error) {
	actor, err := s.repo.GetUserByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if err := requireRole(actor.Role, model.RoleCashier); err != nil {
		return nil, err
	}

	return s.repo.ProcessRedemption(ctx, txID, actor.ID)
}

// CreateTransfer переводит баллы текущего пользователя другому.
func (s *Service) CreateTransfer(ctx context.Context, actorID int64, recipientUTORid string, amount int64, remark string) (*model.Transaction, error) {
	actor, err := s.repo.GetUserByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !actor.Verified {
		return nil, ErrNotVerified
	}

	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}

	recipient, err := s.repo.GetUserByUTORid(ctx, recipientUTORid)
	if err != nil {
		return nil, err
	}
	if recipient.ID == actor.ID {
		return nil, fmt.Errorf("%w: cannot transfer to yourself", ErrValidation)
	}

	return s.repo.CreateTransfer(ctx, actor.ID, recipient.ID, amount, remark)
}

// CreateAdjustment создаёт корректировку баланса со ссылкой на существующую
// транзакцию; доступно менеджерам и выше. Знак суммы произвольный.
func (s *Service) CreateAdjustment(ctx context.Context, actorID int64, ownerUTORid string, amount, relatedTxID int64, remark string) (*model.Transaction, error) {
	actor, err := s.repo.GetUserByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if err := requireRole(actor.Role, model.RoleManager); err != nil {
		return nil, err
	}

	if amount == 0 {
		return nil, fmt.Errorf("%w: amount must be non-zero", ErrValidation)
	}

	owner, err := s.repo.GetUserByUTORid(ctx, ownerUTORid)
	if err != nil {
		return nil, err
	}

	return s.repo.CreateAdjustment(ctx, owner.ID, actor.ID, amount, relatedTxID, remark)
}

// SetSuspicious переключает флаг suspicious покупки; доступно менеджерам и выше.
func (s *Service) SetSuspicious(ctx context.Context, actorRole model.Role, txID int64, suspicious bool) (*model.Transaction, error) {
	if err := requireRole(actorRole, model.RoleManager); err != nil {
		return nil, err
	}
	return s.repo.SetTransactionSuspicious(ctx, txID, suspicious)
}

// GetTransaction возвращает транзакцию по идентификатору; доступно менеджерам и выше.
func (s *Service) GetTransaction(ctx context.Context, actorRole model.Role, txID int64) (*model.Transaction, error) {
	if err := requireRole(actorRole, model.RoleManager); err != nil {
		return nil, err
	}
	return s.repo.GetTransaction(ctx, txID)
}

// ListOwnTransactions возвращает страницу транзакций текущего пользователя.
func (s *Service) ListOwnTransactions(ctx context.Context, actorID int64, limit, offset int) ([]model.Transaction, error) {
	if limit <= 0 || limit > maxTransactionsPage {
		limit = maxTransactionsPage
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListTransactionsByOwner(ctx, actorID, limit, offset)
}
