// Package model содержит доменные сущности сервиса баллов лояльности.
package model

import "time"

// Role описывает роль пользователя в системе лояльности.
type Role string

const (
	RoleRegular   Role = "regular"
	RoleCashier   Role = "cashier"
	RoleManager   Role = "manager"
	RoleSuperuser Role = "superuser"
)

var roleRank = map[Role]int{
	RoleRegular:   1,
	RoleCashier:   2,
	RoleManager:   3,
	RoleSuperuser: 4,
}

// Rank возвращает числовой ранг роли: regular(1) < cashier(2) < manager(3) < superuser(4).
func (r Role) Rank() int {
	return roleRank[r]
}

// Valid сообщает, является ли значение известной ролью.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast проверяет, что роль не ниже требуемого минимума.
func (r Role) AtLeast(minimum Role) bool {
	return roleRank[r] >= roleRank[minimum]
}

// User представляет пользователя системы лояльности.
type User struct {
	ID           int64
	UTORid       string
	Name         string
	Email        string
	PasswordHash []byte
	Role         Role
	Points       int64
	Verified     bool
	Suspicious   bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TransactionType описывает тип операции в журнале транзакций.
type TransactionType string

const (
	TransactionPurchase   TransactionType = "purchase"
	TransactionRedemption TransactionType = "redemption"
	TransactionTransfer   TransactionType = "transfer"
	TransactionAdjustment TransactionType = "adjustment"
	TransactionEvent      TransactionType = "event"
)

// Transaction — неизменяемая запись журнала. Поле Amount уже содержит знак:
// отрицательное для списаний и исходящих переводов, положительное для
// начислений; у корректировок знак произвольный.
type Transaction struct {
	ID                   int64
	Type                 TransactionType
	OwnerID              int64
	CreatorID            int64
	Amount               int64
	SpentCents           *int64
	Redeemed             *int64
	Suspicious           bool
	RelatedUserID        *int64
	RelatedTransactionID *int64
	EventID              *int64
	ProcessorID          *int64
	Remark               string
	PromotionIDs         []int64
	CreatedAt            time.Time
}

// Processed сообщает, обработан ли запрос на списание кассиром.
func (t *Transaction) Processed() bool {
	return t.ProcessorID != nil
}

// PromotionType описывает тип акции.
type PromotionType string

const (
	PromotionAutomatic PromotionType = "automatic"
	PromotionOneTime   PromotionType = "one-time"
)

// Promotion описывает акцию: окно действия [StartTime, EndTime),
// необязательный порог трат и вклад в баллы через Rate и/или Points.
type Promotion struct {
	ID               int64
	Name             string
	Description      string
	Type             PromotionType
	StartTime        time.Time
	EndTime          time.Time
	MinSpendingCents *int64
	Rate             *float64
	Points           *int64
}

// ActiveAt сообщает, действует ли акция в указанный момент времени.
func (p *Promotion) ActiveAt(now time.Time) bool {
	return !now.Before(p.StartTime) && now.Before(p.EndTime)
}

// QualifiesSpending проверяет порог минимальных трат акции.
func (p *Promotion) QualifiesSpending(spentCents int64) bool {
	return p.MinSpendingCents == nil || spentCents >= *p.MinSpendingCents
}

// Started сообщает, началось ли действие акции; после начала большинство
// её полей становятся неизменяемыми.
func (p *Promotion) Started(now time.Time) bool {
	return !now.Before(p.StartTime)
}

// Event описывает мероприятие с бюджетом баллов и списками
// организаторов и гостей.
type Event struct {
	ID            int64
	Name          string
	Description   string
	Location      string
	StartTime     time.Time
	EndTime       time.Time
	Capacity      *int64
	PointsTotal   int64
	PointsAwarded int64
	OrganizerIDs  []int64
	GuestIDs      []int64
}

// RemainingPoints возвращает остаток бюджета баллов мероприятия.
func (e *Event) RemainingPoints() int64 {
	return e.PointsTotal - e.PointsAwarded
}

// HasOrganizer сообщает, входит ли пользователь в число организаторов.
func (e *Event) HasOrganizer(userID int64) bool {
	for _, id := range e.OrganizerIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// HasGuest сообщает, записан ли пользователь гостем мероприятия.
func (e *Event) HasGuest(userID int64) bool {
	for _, id := range e.GuestIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Started сообщает, началось ли мероприятие.
func (e *Event) Started(now time.Time) bool {
	return !now.Before(e.StartTime)
}
