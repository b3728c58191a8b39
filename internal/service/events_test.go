package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yxm4nsy/pay2win-backend/internal/model"
	"github.com/yxm4nsy/pay2win-backend/internal/repository"
)

func testEvent() *model.Event {
	now := time.Now()
	return &model.Event{
		ID:            1,
		Name:          "orientation",
		StartTime:     now.Add(time.Hour),
		EndTime:       now.Add(2 * time.Hour),
		PointsTotal:   100,
		PointsAwarded: 80,
		OrganizerIDs:  []int64{5},
		GuestIDs:      []int64{2, 3},
	}
}

func TestCreateEventAward_SingleGuest(t *testing.T) {
	repo := newStubRepo()
	repo.addUser(&model.User{ID: 5, UTORid: "organiz1", Role: model.RoleRegular})
	repo.addUser(&model.User{ID: 2, UTORid: "guestone", Role: model.RoleRegular})
	repo.event = testEvent()

	svc := NewService(repo)

	target := "guestone"
	res, err := svc.CreateEventAward(context.Background(), 5, 1, &target, 20, "")
	if err != nil {
		t.Fatalf("CreateEventAward error: %v", err)
	}
	if len(res) != 1 || res[0].OwnerID != 2 || res[0].Amount != 20 {
		t.Fatalf("unexpected award result: %+v", res)
	}
}

func TestCreateEventAward_AllGuests(t *testing.T) {
	repo := newStubRepo()
	repo.addUser(&model.User{ID: 5, UTORid: "organiz1", Role: model.RoleRegular})
	repo.event = testEvent()

	svc := NewService(repo)

	res, err := svc.CreateEventAward(context.Background(), 5, 1, nil, 10, "")
	if err != nil {
		t.Fatalf("CreateEventAward error: %v", err)
	}
	if len(res) != 2 {
		t.Fatalf("award count = %d, want 2", len(res))
	}
	if len(repo.awardRecipients) != 2 {
		t.Fatalf("recipients = %v, want both guests", repo.awardRecipients)
	}
}

func TestCreateEventAward_NotGuest(t *testing.T) {
	repo := newStubRepo()
	repo.addUser(&model.User{ID: 5, UTORid: "organiz1", Role: model.RoleRegular})
	repo.addUser(&model.User{ID: 9, UTORid: "STRANGER", Role: model.RoleRegular})
	repo.event = testEvent()

	svc := NewService(repo)

	target := "STRANGER"
	_, err := svc.CreateEventAward(context.Background(), 5, 1, &target, 10, "")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for non-guest, got %v", err)
	}
}

func TestCreateEventAward_ForbiddenForOutsider(t *testing.T) {
	repo := newStubRepo()
	repo.addUser(&model.User{ID: 9, UTORid: "randomer", Role: model.RoleRegular})
	repo.event = testEvent()

	svc := NewService(repo)

	_, err := svc.CreateEventAward(context.Background(), 9, 1, nil, 10, "")
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestCreateEventAward_BudgetExceeded(t *testing.T) {
	repo := newStubRepo()
	repo.addUser(&model.User{ID: 5, UTORid: "organiz1", Role: model.RoleRegular})
	repo.addUser(&model.User{ID: 2, UTORid: "guestone", Role: model.RoleRegular})
	repo.event = testEvent()
	repo.awardErr = repository.ErrInsufficientBudget

	svc := NewService(repo)

	// Остаток бюджета 20, награда 30 — отклоняется хранилищем до записи.
	target := "guestone"
	_, err := svc.CreateEventAward(context.Background(), 5, 1, &target, 30, "")
	if !errors.Is(err, repository.ErrInsufficientBudget) {
		t.Fatalf("expected ErrInsufficientBudget, got %v", err)
	}
}

func TestUpdateEvent_BudgetManagerOnly(t *testing.T) {
	repo := newStubRepo()
	repo.addUser(&model.User{ID: 5, UTORid: "organiz1", Role: model.RoleRegular})
	repo.event = testEvent()

	svc := NewService(repo)

	total := int64(500)
	_, err := svc.UpdateEvent(context.Background(), 5, 1, repository.EventPatch{PointsTotal: &total})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("organizer must not change the budget, got %v", err)
	}
}

func TestUpdateEvent_LockedAfterStart(t *testing.T) {
	repo := newStubRepo()
	repo.addUser(&model.User{ID: 1, UTORid: "manager1", Role: model.RoleManager})

	e := testEvent()
	e.StartTime = time.Now().Add(-time.Hour)
	repo.event = e

	svc := NewService(repo)

	name := "renamed"
	_, err := svc.UpdateEvent(context.Background(), 1, 1, repository.EventPatch{Name: &name})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for locked field, got %v", err)
	}
}

func TestUpdatePromotion_LockedAfterStart(t *testing.T) {
	repo := newStubRepo()

	now := time.Now()
	rate := 0.5
	repo.promos[3] = model.Promotion{
		ID:        3,
		Name:      "double",
		Type:      model.PromotionAutomatic,
		StartTime: now.Add(-time.Hour),
		EndTime:   now.Add(time.Hour),
		Rate:      &rate,
	}

	svc := NewService(repo)

	newRate := 0.25
	_, err := svc.UpdatePromotion(context.Background(), model.RoleManager, 3, repository.PromotionPatch{Rate: &newRate})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for locked field, got %v", err)
	}

	// Время окончания ещё можно продлить, пока акция не закончилась.
	end := now.Add(3 * time.Hour)
	if _, err := svc.UpdatePromotion(context.Background(), model.RoleManager, 3, repository.PromotionPatch{EndTime: &end}); err != nil {
		t.Fatalf("extending end time must be allowed: %v", err)
	}
}

func TestDeletePromotion_RefusedAfterStart(t *testing.T) {
	repo := newStubRepo()

	now := time.Now()
	pts := int64(10)
	repo.promos[3] = model.Promotion{
		ID:        3,
		Type:      model.PromotionOneTime,
		StartTime: now.Add(-time.Minute),
		EndTime:   now.Add(time.Hour),
		Points:    &pts,
	}

	svc := NewService(repo)

	if err := svc.DeletePromotion(context.Background(), model.RoleManager, 3); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
