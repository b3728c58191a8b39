package service

import (
	"context"
	"fmt"
	"time"

	"github.com/yxm4nsy/pay2win-backend/internal/model"
	"github.com/yxm4nsy/pay2win-backend/internal/repository"
)

func validatePromotionShape(p *model.Promotion) error {
	switch {
	case p.Name == "":
		return fmt.Errorf("%w: name is required", ErrValidation)
	case p.Type != model.PromotionAutomatic && p.Type != model.PromotionOneTime:
		return fmt.Errorf("%w: unknown promotion type", ErrValidation)
	case !p.EndTime.After(p.StartTime):
		return fmt.Errorf("%w: end time must be after start time", ErrValidation)
	case p.Rate == nil && p.Points == nil:
		return fmt.Errorf("%w: promotion must define rate or points", ErrValidation)
	case p.Rate != nil && *p.Rate <= 0:
		return fmt.Errorf("%w: rate must be positive", ErrValidation)
	case p.Points != nil && *p.Points <= 0:
		return fmt.Errorf("%w: points must be positive", ErrValidation)
	case p.MinSpendingCents != nil && *p.MinSpendingCents < 0:
		return fmt.Errorf("%w: min spending must be non-negative", ErrValidation)
	}
	return nil
}

// CreatePromotion создаёт акцию; доступно менеджерам и выше.
func (s *Service) CreatePromotion(ctx context.Context, actorRole model.Role, p *model.Promotion) (*model.Promotion, error) {
	if err := requireRole(actorRole, model.RoleManager); err != nil {
		return nil, err
	}
	if err := validatePromotionShape(p); err != nil {
		return nil, err
	}

	id, err := s.repo.CreatePromotion(ctx, p)
	if err != nil {
		return nil, err
	}
	p.ID = id
	return p, nil
}

// GetPromotion возвращает акцию по идентификатору.
func (s *Service) GetPromotion(ctx context.Context, id int64) (*model.Promotion, error) {
	return s.repo.GetPromotion(ctx, id)
}

// ListPromotions возвращает все акции.
func (s *Service) ListPromotions(ctx context.Context) ([]model.Promotion, error) {
	return s.repo.ListPromotions(ctx)
}

// UpdatePromotion применяет частичное обновление акции; доступно менеджерам
// и выше. После начала действия акции менять можно только время окончания,
// и только пока акция не закончилась.
func (s *Service) UpdatePromotion(ctx context.Context, actorRole model.Role, id int64, patch repository.PromotionPatch) (*model.Promotion, error) {
	if err := requireRole(actorRole, model.RoleManager); err != nil {
		return nil, err
	}

	current, err := s.repo.GetPromotion(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if current.Started(now) {
		locked := patch.Name != nil || patch.Description != nil || patch.StartTime != nil ||
			patch.MinSpendingCents != nil || patch.Rate != nil || patch.Points != nil
		if locked {
			return nil, fmt.Errorf("%w: promotion already started, fields are locked", ErrValidation)
		}
		if patch.EndTime != nil && !now.Before(current.EndTime) {
			return nil, fmt.Errorf("%w: promotion already ended", ErrValidation)
		}
	}

	if patch.StartTime != nil && patch.StartTime.Before(now) {
		return nil, fmt.Errorf("%w: start time cannot be in the past", ErrValidation)
	}
	if patch.EndTime != nil && patch.EndTime.Before(now) {
		return nil, fmt.Errorf("%w: end time cannot be in the past", ErrValidation)
	}

	return s.repo.UpdatePromotion(ctx, id, patch)
}

// DeletePromotion удаляет акцию; отклоняется, если её действие уже началось.
func (s *Service) DeletePromotion(ctx context.Context, actorRole model.Role, id int64) error {
	if err := requireRole(actorRole, model.RoleManager); err != nil {
		return err
	}

	current, err := s.repo.GetPromotion(ctx, id)
	if err != nil {
		return err
	}
	if current.Started(time.Now()) {
		return fmt.Errorf("%w: promotion already started", ErrValidation)
	}

	return s.repo.DeletePromotion(ctx, id)
}
