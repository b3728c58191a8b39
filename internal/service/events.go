package service

import (
	"context"
	"fmt"
	"time"

	"github.com/yxm4nsy/pay2win-backend/internal/model"
	"github.com/yxm4nsy/pay2win-backend/internal/repository"
)

// canManageEvent разрешает действие организатору мероприятия либо
// менеджеру и выше.
func canManageEvent(actor *model.User, e *model.Event) error {
	if actor.Role.AtLeast(model.RoleManager) || e.HasOrganizer(actor.ID) {
		return nil
	}
	return fmt.Errorf("%w: organizer or manager role required", ErrForbidden)
}

// CreateEvent создаёт мероприятие; доступно менеджерам и выше.
func (s *Service) CreateEvent(ctx context.Context, actorRole model.Role, e *model.Event, organizerUTORids []string) (*model.Event, error) {
	if err := requireRole(actorRole, model.RoleManager); err != nil {
		return nil, err
	}

	switch {
	case e.Name == "":
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	case !e.EndTime.After(e.StartTime):
		return nil, fmt.Errorf("%w: end time must be after start time", ErrValidation)
	case e.PointsTotal < 0:
		return nil, fmt.Errorf("%w: points total must be non-negative", ErrValidation)
	case e.Capacity != nil && *e.Capacity <= 0:
		return nil, fmt.Errorf("%w: capacity must be positive", ErrValidation)
	}

	organizerIDs := make([]int64, 0, len(organizerUTORids))
	for _, utorid := range organizerUTORids {
		u, err := s.repo.GetUserByUTORid(ctx, utorid)
		if err != nil {
			return nil, err
		}
		organizerIDs = append(organizerIDs, u.ID)
	}

	id, err := s.repo.CreateEvent(ctx, e, organizerIDs)
	if err != nil {
		return nil, err
	}
	return s.repo.GetEvent(ctx, id)
}

// GetEvent возвращает мероприятие по идентификатору.
func (s *Service) GetEvent(ctx context.Context, id int64) (*model.Event, error) {
	return s.repo.GetEvent(ctx, id)
}

// UpdateEvent применяет частичное обновление мероприятия. Доступно
// организатору или менеджеру и выше; бюджет баллов меняет только менеджер.
// После начала мероприятия большинство полей заблокировано.
func (s *Service) UpdateEvent(ctx context.Context, actorID int64, eventID int64, patch repository.EventPatch) (*model.Event, error) {
	actor, err := s.repo.GetUserByID(ctx, actorID)
	if err != nil {
		return nil, err
	}

	current, err := s.repo.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := canManageEvent(actor, current); err != nil {
		return nil, err
	}

	if patch.PointsTotal != nil && !actor.Role.AtLeast(model.RoleManager) {
		return nil, fmt.Errorf("%w: only managers may change the point budget", ErrForbidden)
	}

	now := time.Now()
	if current.Started(now) {
		locked := patch.Name != nil || patch.Description != nil || patch.Location != nil ||
			patch.StartTime != nil || patch.Capacity != nil
		if locked {
			return nil, fmt.Errorf("%w: event already started, fields are locked", ErrValidation)
		}
	}
	if patch.StartTime != nil && patch.StartTime.Before(now) {
		return nil, fmt.Errorf("%w: start time cannot be in the past", ErrValidation)
	}

	return s.repo.UpdateEvent(ctx, eventID, patch)
}

// AddOrganizer добавляет организатора мероприятия; доступно менеджерам и выше.
func (s *Service) AddOrganizer(ctx context.Context, actorRole model.Role, eventID int64, utorid string) (*model.Event, error) {
	if err := requireRole(actorRole, model.RoleManager); err != nil {
		return nil, err
	}

	u, err := s.repo.GetUserByUTORid(ctx, utorid)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}

	if err := s.repo.AddOrganizer(ctx, eventID, u.ID); err != nil {
		return nil, err
	}
	return s.repo.GetEvent(ctx, eventID)
}

// AddGuest записывает гостя на мероприятие; доступно организатору или
// менеджеру и выше, пока есть места.
func (s *Service) AddGuest(ctx context.Context, actorID int64, eventID int64, utorid string) (*model.Event, error) {
	actor, err := s.repo.GetUserByID(ctx, actorID)
	if err != nil {
		return nil, err
	}

	current, err := s.repo.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := canManageEvent(actor, current); err != nil {
		return nil, err
	}

	guest, err := s.repo.GetUserByUTORid(ctx, utorid)
	if err != nil {
		return nil, err
	}

	if err := s.repo.AddGuest(ctx, eventID, guest.ID); err != nil {
		return nil, err
	}
	return s.repo.GetEvent(ctx, eventID)
}

// RemoveGuest снимает гостя с мероприятия; доступно организатору или
// менеджеру и выше.
func (s *Service) RemoveGuest(ctx context.Context, actorID int64, eventID int64, utorid string) error {
	actor, err := s.repo.GetUserByID(ctx, actorID)
	if err != nil {
		return err
	}

	current, err := s.repo.GetEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if err := canManageEvent(actor, current); err != nil {
		return err
	}

	guest, err := s.repo.GetUserByUTORid(ctx, utorid)
	if err != nil {
		return err
	}

	return s.repo.RemoveGuest(ctx, eventID, guest.ID)
}

// CreateEventAward начисляет баллы мероприятия: указанному гостю либо,
// если utorid не задан, каждому гостю. Сумма на всех получателей не может
// превысить остаток бюджета.
func (s *Service) CreateEventAward(ctx context.Context, actorID int64, eventID int64, targetUTORid *string, amount int64, remark string) ([]model.Transaction, error) {
	actor, err := s.repo.GetUserByID(ctx, actorID)
	if err != nil {
		return nil, err
	}

	current, err := s.repo.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := canManageEvent(actor, current); err != nil {
		return nil, err
	}

	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}

	var recipientIDs []int64
	if targetUTORid != nil {
		guest, err := s.repo.GetUserByUTORid(ctx, *targetUTORid)
		if err != nil {
			return nil, err
		}
		if !current.HasGuest(guest.ID) {
			return nil, fmt.Errorf("%w: %s is not a guest of this event", ErrValidation, *targetUTORid)
		}
		recipientIDs = []int64{guest.ID}
	} else {
		if len(current.GuestIDs) == 0 {
			return nil, fmt.Errorf("%w: event has no guests", ErrValidation)
		}
		recipientIDs = current.GuestIDs
	}

	return s.repo.CreateEventAward(ctx, eventID, actor.ID, recipientIDs, amount, remark)
}
