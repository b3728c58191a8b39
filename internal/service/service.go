// Package service реализует бизнес-логику сервиса баллов лояльности.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/yxm4nsy/pay2win-backend/internal/model"
	"github.com/yxm4nsy/pay2win-backend/internal/repository"
	"github.com/yxm4nsy/pay2win-backend/internal/validation"
)

// ErrForbidden возвращается, когда роли или прав пользователя недостаточно.
var (
	ErrForbidden = errors.New("forbidden")
	// ErrNotVerified возвращается, когда операция требует верифицированного пользователя.
	ErrNotVerified = errors.New("user is not verified")
	// ErrValidation возвращается при некорректных входных данных.
	ErrValidation = errors.New("invalid request")
	// ErrInvalidCredentials возвращается при неверной паре utorid/пароль.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error

	CreateUser(ctx context.Context, u *model.User) (int64, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByUTORid(ctx context.Context, utorid string) (*model.User, error)
	UpdateUserProfile(ctx context.Context, id int64, name, email *string) error
	SetUserRole(ctx context.Context, id int64, role model.Role) error
	SetUserVerified(ctx context.Context, id int64, verified bool) error
	SetUserSuspicious(ctx context.Context, id int64, suspicious bool) error

	GetTransaction(ctx context.Context, id int64) (*model.Transaction, error)
	ListTransactionsByOwner(ctx context.Context, ownerID int64, limit, offset int) ([]model.Transaction, error)
	CreatePurchase(ctx context.Context, p repository.PurchaseParams) (*model.Transaction, error)
	CreateRedemption(ctx context.Context, ownerID, amount int64, remark string) (*model.Transaction, error)
	ProcessRedemption(ctx context.Context, txID, processorID int64) (*model.Transaction, error)
	CreateTransfer(ctx context.Context, senderID, recipientID, amount int64, remark string) (*model.Transaction, error)
	CreateAdjustment(ctx context.Context, ownerID, creatorID, amount, relatedTxID int64, remark string) (*model.Transaction, error)
	CreateEventAward(ctx context.Context, eventID, creatorID int64, recipientIDs []int64, amount int64, remark string) ([]model.Transaction, error)
	SetTransactionSuspicious(ctx context.Context, txID int64, suspicious bool) (*model.Transaction, error)

	CreatePromotion(ctx context.Context, p *model.Promotion) (int64, error)
	GetPromotion(ctx context.Context, id int64) (*model.Promotion, error)
	ListPromotions(ctx context.Context) ([]model.Promotion, error)
	ActiveAutomaticPromotions(ctx context.Context, now time.Time, spentCents int64) ([]model.Promotion, error)
	PromotionsByIDs(ctx context.Context, ids []int64) (map[int64]model.Promotion, error)
	UsedPromotionIDs(ctx context.Context, userID int64, ids []int64) (map[int64]bool, error)
	UpdatePromotion(ctx context.Context, id int64, patch repository.PromotionPatch) (*model.Promotion, error)
	DeletePromotion(ctx context.Context, id int64) error

	CreateEvent(ctx context.Context, e *model.Event, organizerIDs []int64) (int64, error)
	GetEvent(ctx context.Context, id int64) (*model.Event, error)
	UpdateEvent(ctx context.Context, id int64, patch repository.EventPatch) (*model.Event, error)
	AddOrganizer(ctx context.Context, eventID, userID int64) error
	AddGuest(ctx context.Context, eventID, userID int64) error
	RemoveGuest(ctx context.Context, eventID, userID int64) error
}

// Service содержит бизнес-логику сервиса баллов лояльности.
type Service struct {
	repo Repository
}

// NewService создаёт новый сервис с указанным репозиторием.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// requireRole проверяет минимальную роль по рангу.
func requireRole(actor model.Role, minimum model.Role) error {
	if !actor.AtLeast(minimum) {
		return fmt.Errorf("%w: %s role required", ErrForbidden, minimum)
	}
	return nil
}

// Authenticate проверяет пару utorid/пароль и возвращает пользователя.
func (s *Service) Authenticate(ctx context.Context, utorid, password string) (*model.User, error) {
	u, err := s.repo.GetUserByUTORid(ctx, utorid)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	return u, nil
}

// RegisterUser регистрирует нового пользователя; доступно кассирам и выше.
func (s *Service) RegisterUser(ctx context.Context, actorRole model.Role, utorid, name, email, password string) (*model.User, error) {
	if err := requireRole(actorRole, model.RoleCashier); err != nil {
		return nil, err
	}

	switch {
	case !validation.IsValidUTORid(utorid):
		return nil, fmt.Errorf("%w: malformed utorid", ErrValidation)
	case !validation.IsValidName(name):
		return nil, fmt.Errorf("%w: malformed name", ErrValidation)
	case !validation.IsValidEmail(email):
		return nil, fmt.Errorf("%w: malformed email", ErrValidation)
	case len(password) < 8:
		return nil, fmt.Errorf("%w: password too short", ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &model.User{
		UTORid:       utorid,
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         model.RoleRegular,
	}

	id, err := s.repo.CreateUser(ctx, u)
	if err != nil {
		return nil, err
	}
	u.ID = id
	return u, nil
}

// GetUser возвращает пользователя по utorid.
func (s *Service) GetUser(ctx context.Context, utorid string) (*model.User, error) {
	return s.repo.GetUserByUTORid(ctx, utorid)
}

// GetUserByID возвращает пользователя по идентификатору.
func (s *Service) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	return s.repo.GetUserByID(ctx, id)
}

// UpdateProfile обновляет имя и почту текущего пользователя.
func (s *Service) UpdateProfile(ctx context.Context, userID int64, name, email *string) (*model.User, error) {
	if name != nil && !validation.IsValidName(*name) {
		return nil, fmt.Errorf("%w: malformed name", ErrValidation)
	}
	if email != nil && !validation.IsValidEmail(*email) {
		return nil, fmt.Errorf("%w: malformed email", ErrValidation)
	}

	if err := s.repo.UpdateUserProfile(ctx, userID, name, email); err != nil {
		return nil, err
	}
	return s.repo.GetUserByID(ctx, userID)
}

// SetUserRole меняет роль пользователя. Менеджер может назначать только
// regular и cashier, причём подозрительного пользователя нельзя сделать
// кассиром; суперпользователь назначает любую роль.
func (s *Service) SetUserRole(ctx context.Context, actorRole model.Role, targetUTORid string, newRole model.Role) (*model.User, error) {
	if err := requireRole(actorRole, model.RoleManager); err != nil {
		return nil, err
	}
	if !newRole.Valid() {
		return nil, fmt.Errorf("%w: unknown role", ErrValidation)
	}

	if actorRole == model.RoleManager && newRole.AtLeast(model.RoleManager) {
		return nil, fmt.Errorf("%w: managers may only assign regular or cashier", ErrForbidden)
	}

	target, err := s.repo.GetUserByUTORid(ctx, targetUTORid)
	if err != nil {
		return nil, err
	}

	if newRole == model.RoleCashier && target.Suspicious {
		return nil, fmt.Errorf("%w: suspicious user cannot become cashier", ErrForbidden)
	}

	if err := s.repo.SetUserRole(ctx, target.ID, newRole); err != nil {
		return nil, err
	}
	target.Role = newRole
	return target, nil
}

// SetUserVerified помечает пользователя верифицированным; доступно менеджерам и выше.
func (s *Service) SetUserVerified(ctx context.Context, actorRole model.Role, targetUTORid string) (*model.User, error) {
	if err := requireRole(actorRole, model.RoleManager); err != nil {
		return nil, err
	}

	target, err := s.repo.GetUserByUTORid(ctx, targetUTORid)
	if err != nil {
		return nil, err
	}

	if err := s.repo.SetUserVerified(ctx, target.ID, true); err != nil {
		return nil, err
	}
	target.Verified = true
	return target, nil
}

// SetUserSuspicious помечает кассира подозрительным: его будущие покупки
// фиксируются без начисления баллов. Снимается тем же вызовом.
func (s *Service) SetUserSuspicious(ctx context.Context, actorRole model.Role, targetUTORid string, suspicious bool) (*model.User, error) {
	if err := requireRole(actorRole, model.RoleManager); err != nil {
		return nil, err
	}

	target, err := s.repo.GetUserByUTORid(ctx, targetUTORid)
	if err != nil {
		return nil, err
	}

	if target.Role != model.RoleCashier {
		return nil, fmt.Errorf("%w: suspicious flag applies to cashiers only", ErrValidation)
	}

	if err := s.repo.SetUserSuspicious(ctx, target.ID, suspicious); err != nil {
		return nil, err
	}
	target.Suspicious = suspicious
	return target, nil
}
