package repository

import "github.com/yxm4nsy/pay2win-backend/internal/model"

// suspiciousEffect описывает действие переключения флага suspicious
// покупки: изменение баланса владельца и учёт одноразовых акций.
type suspiciousEffect struct {
	// NoOp — флаг уже имеет требуемое значение, баланс и акции не трогаются.
	NoOp bool
	// Delta прибавляется к балансу владельца.
	Delta int64
	// MarkUsed — пометить одноразовые акции покупки использованными.
	MarkUsed bool
}

// suspiciousChange вычисляет эффект переключения флага suspicious.
// Поле amount транзакции не меняется никогда: false→true снимает его с
// баланса владельца, true→false возвращает его и расходует одноразовые
// акции, установка текущего значения — no-op. Два встречных
// переключения в сумме дают нулевое изменение баланса.
func suspiciousChange(t *model.Transaction, suspicious bool) (suspiciousEffect, error) {
	if t.Type != model.TransactionPurchase {
		return suspiciousEffect{}, ErrNotPurchase
	}
	if t.Suspicious == suspicious {
		return suspiciousEffect{NoOp: true}, nil
	}
	if suspicious {
		return suspiciousEffect{Delta: -t.Amount}, nil
	}
	return suspiciousEffect{Delta: t.Amount, MarkUsed: true}, nil
}

// redemptionDebit возвращает величину списания при обработке запроса.
// Запрос хранится с отрицательной суммой; обработанный повторно не
// обрабатывается.
func redemptionDebit(t *model.Transaction) (int64, error) {
	if t.Type != model.TransactionRedemption {
		return 0, ErrNotRedemption
	}
	if t.Processed() {
		return 0, ErrAlreadyProcessed
	}
	return -t.Amount, nil
}
