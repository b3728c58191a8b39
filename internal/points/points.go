// Package points реализует правила расчёта баллов за покупку.
package points

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/yxm4nsy/pay2win-backend/internal/model"
)

// BaseRateCentsPerPoint — базовый курс начисления: 0.25 у.е. за балл,
// то есть 4 балла за единицу валюты.
const BaseRateCentsPerPoint = 25

// ErrNotOneTime возвращается, если явно запрошенная акция не является одноразовой.
var (
	ErrNotOneTime = errors.New("promotion is not one-time")
	// ErrInactive возвращается, если акция запрошена вне окна её действия.
	ErrInactive = errors.New("promotion is not active")
	// ErrAlreadyUsed возвращается, если пользователь уже использовал одноразовую акцию.
	ErrAlreadyUsed = errors.New("promotion already used")
	// ErrMinSpending возвращается, если сумма покупки ниже порога акции.
	ErrMinSpending = errors.New("spending below promotion minimum")
)

// Result содержит итог расчёта: заработанные баллы и упорядоченный список
// применённых акций — сначала автоматические, затем явно запрошенные.
type Result struct {
	Earned     int64
	AppliedIDs []int64
	// OneTimeIDs — подмножество применённых акций, которые должны быть
	// помечены использованными при фиксации транзакции.
	OneTimeIDs []int64
}

// Base возвращает базовые баллы за покупку по фиксированному курсу.
func Base(spentCents int64) int64 {
	return int64(math.Round(float64(spentCents) / BaseRateCentsPerPoint))
}

// contribution возвращает вклад одной акции. Каждый вклад округляется
// независимо до суммирования; порядок округления менять нельзя, иначе
// итог может отличаться на балл.
func contribution(spentCents int64, p *model.Promotion) int64 {
	var pts int64
	if p.Rate != nil {
		pts += int64(math.Round(float64(spentCents) / 100 / *p.Rate))
	}
	if p.Points != nil {
		pts += *p.Points
	}
	return pts
}

// Calculate вычисляет баллы за покупку. Функция не имеет побочных эффектов:
// отметка одноразовых акций использованными — обязанность вызывающей стороны
// при фиксации транзакции. Акции из automatic считаются уже отобранными по
// окну действия и порогу трат; requested проверяются здесь полностью,
// used отражает факт использования одноразовой акции пользователем.
func Calculate(spentCents int64, now time.Time, automatic []model.Promotion, requested []model.Promotion, used map[int64]bool) (Result, error) {
	res := Result{Earned: Base(spentCents)}

	for i := range automatic {
		p := &automatic[i]
		res.Earned += contribution(spentCents, p)
		res.AppliedIDs = append(res.AppliedIDs, p.ID)
	}

	for i := range requested {
		p := &requested[i]
		switch {
		case p.Type != model.PromotionOneTime:
			return Result{}, fmt.Errorf("promotion %d: %w", p.ID, ErrNotOneTime)
		case !p.ActiveAt(now):
			return Result{}, fmt.Errorf("promotion %d: %w", p.ID, ErrInactive)
		case used[p.ID]:
			return Result{}, fmt.Errorf("promotion %d: %w", p.ID, ErrAlreadyUsed)
		case !p.QualifiesSpending(spentCents):
			return Result{}, fmt.Errorf("promotion %d: %w", p.ID, ErrMinSpending)
		}

		res.Earned += contribution(spentCents, p)
		res.AppliedIDs = append(res.AppliedIDs, p.ID)
		res.OneTimeIDs = append(res.OneTimeIDs, p.ID)
	}

	return res, nil
}
