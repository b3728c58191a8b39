package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/yxm4nsy/pay2win-backend/internal/model"
)

const transactionColumns = `id, type, owner_id, creator_id, amount, spent_cents, redeemed,
	 suspicious, related_user_id, related_transaction_id, event_id, processor_id, remark, created_at`

func scanTransaction(row pgx.Row) (*model.Transaction, error) {
	var t model.Transaction
	var typ string
	err := row.Scan(&t.ID, &typ, &t.OwnerID, &t.CreatorID, &t.Amount, &t.SpentCents, &t.Redeemed,
		&t.Suspicious, &t.RelatedUserID, &t.RelatedTransactionID, &t.EventID, &t.ProcessorID,
		&t.Remark, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	t.Type = model.TransactionType(typ)
	return &t, nil
}

func (r *PostgresRepository) loadPromotionIDs(ctx context.Context, t *model.Transaction) error {
	rows, err := r.pool.Query(ctx,
		`SELECT promotion_id FROM transaction_promotions WHERE transaction_id = $1 ORDER BY ordinal`,
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("select transaction promotions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("scan promotion id: %w", err)
		}
		t.PromotionIDs = append(t.PromotionIDs, id)
	}
	return rows.Err()
}

// GetTransaction возвращает транзакцию вместе со списком применённых акций.
func (r *PostgresRepository) GetTransaction(ctx context.Context, id int64) (*model.Transaction, error) {
	t, err := scanTransaction(r.pool.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadPromotionIDs(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// ListTransactionsByOwner возвращает транзакции пользователя, новые первыми.
func (r *PostgresRepository) ListTransactionsByOwner(ctx context.Context, ownerID int64, limit, offset int) ([]model.Transaction, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+transactionColumns+`
		 FROM transactions
		 WHERE owner_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2 OFFSET $3`,
		ownerID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("select transactions: %w", err)
	}
	defer rows.Close()

	var res []model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	for i := range res {
		if err := r.loadPromotionIDs(ctx, &res[i]); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// PurchaseParams описывает параметры фиксации покупки. Earned — уже
// рассчитанные баллы; Suspicious означает, что баллы не начисляются,
// а одноразовые акции не помечаются использованными.
type PurchaseParams struct {
	OwnerID      int64
	CreatorID    int64
	SpentCents   int64
	Earned       int64
	Suspicious   bool
	PromotionIDs []int64
	OneTimeIDs   []int64
	Remark       string
}

// CreatePurchase атомарно создаёт запись покупки: вставка транзакции,
// связи с акциями, отметка одноразовых акций и начисление баллов —
// всё в одной транзакции БД.
func (r *PostgresRepository) CreatePurchase(ctx context.Context, p PurchaseParams) (*model.Transaction, error) {
	var result *model.Transaction

	err := r.withRetry(ctx, func(ctx context.Context) error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		t, err := scanTransaction(tx.QueryRow(ctx,
			`INSERT INTO transactions (type, owner_id, creator_id, amount, spent_cents, suspicious, remark)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 RETURNING `+transactionColumns,
			string(model.TransactionPurchase), p.OwnerID, p.CreatorID, p.Earned, p.SpentCents, p.Suspicious, p.Remark,
		))
		if err != nil {
			return fmt.Errorf("insert purchase: %w", err)
		}

		// ordinal сохраняет порядок применения: сначала автоматические
		// акции, затем явно запрошенные в порядке запроса.
		for i, promoID := range p.PromotionIDs {
			if _, err := tx.Exec(ctx,
				`INSERT INTO transaction_promotions (transaction_id, promotion_id, ordinal) VALUES ($1, $2, $3)`,
				t.ID, promoID, i,
			); err != nil {
				return fmt.Errorf("link promotion %d: %w", promoID, err)
			}
		}

		if !p.Suspicious {
			// Первичный ключ (promotion_id, user_id) гарантирует, что два
			// конкурентных запроса не используют одноразовую акцию дважды.
			for _, promoID := range p.OneTimeIDs {
				if _, err := tx.Exec(ctx,
					`INSERT INTO promotion_uses (promotion_id, user_id) VALUES ($1, $2)`,
					promoID, p.OwnerID,
				); err != nil {
					var pgErr *pgconn.PgError
					if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
						return fmt.Errorf("%w: promotion %d", ErrPromotionAlreadyUsed, promoID)
					}
					return fmt.Errorf("mark promotion used: %w", err)
				}
			}

			if _, err := tx.Exec(ctx,
				`UPDATE users SET points = points + $2, updated_at = now() WHERE id = $1`,
				p.OwnerID, p.Earned,
			); err != nil {
				return fmt.Errorf("credit points: %w", err)
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		t.PromotionIDs = p.PromotionIDs
		result = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CreateRedemption создаёт запрос на списание баллов. Баланс не меняется:
// списание произойдёт при обработке кассиром. Сумма проверяется под
// блокировкой строки пользователя.
func (r *PostgresRepository) CreateRedemption(ctx context.Context, ownerID, amount int64, remark string) (*model.Transaction, error) {
	var result *model.Transaction

	err := r.withRetry(ctx, func(ctx context.Context) error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		var points int64
		err = tx.QueryRow(ctx, `SELECT points FROM users WHERE id = $1 FOR UPDATE`, ownerID).Scan(&points)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrUserNotFound
			}
			return fmt.Errorf("lock user: %w", err)
		}

		if amount > points {
			return ErrInsufficientBalance
		}

		t, err := scanTransaction(tx.QueryRow(ctx,
			`INSERT INTO transactions (type, owner_id, creator_id, amount, remark)
			 VALUES ($1, $2, $2, $3, $4)
			 RETURNING `+transactionColumns,
			string(model.TransactionRedemption), ownerID, -amount, remark,
		))
		if err != nil {
			return fmt.Errorf("insert redemption: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		result = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ProcessRedemption завершает запрос на списание: фиксирует кассира,
// заполняет redeemed и списывает баллы владельца. Повторная обработка
// отклоняется.
func (r *PostgresRepository) ProcessRedemption(ctx context.Context, txID, processorID int64) (*model.Transaction, error) {
	var result *model.Transaction

	err := r.withRetry(ctx, func(ctx context.Context) error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		t, err := scanTransaction(tx.QueryRow(ctx,
			`SELECT `+transactionColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, txID))
		if err != nil {
			return err
		}

		debit, err := redemptionDebit(t)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx,
			`UPDATE users SET points = points - $2, updated_at = now() WHERE id = $1`,
			t.OwnerID, debit,
		); err != nil {
			return fmt.Errorf("debit points: %w", mapBalanceError(err))
		}

		t, err = scanTransaction(tx.QueryRow(ctx,
			`UPDATE transactions SET processor_id = $2, redeemed = $3 WHERE id = $1
			 RETURNING `+transactionColumns,
			txID, processorID, debit,
		))
		if err != nil {
			return fmt.Errorf("mark processed: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		result = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CreateTransfer атомарно переводит баллы между пользователями и создаёт
// две взаимно ссылающиеся записи журнала — по одной на каждую сторону.
func (r *PostgresRepository) CreateTransfer(ctx context.Context, senderID, recipientID, amount int64, remark string) (*model.Transaction, error) {
	var result *model.Transaction

	err := r.withRetry(ctx, func(ctx context.Context) error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		// Строки блокируются в порядке возрастания id, чтобы встречные
		// переводы не заканчивались дедлоком.
		first, second := senderID, recipientID
		if second < first {
			first, second = second, first
		}
		for _, id := range []int64{first, second} {
			var dummy int
			if err := tx.QueryRow(ctx, `SELECT 1 FROM users WHERE id = $1 FOR UPDATE`, id).Scan(&dummy); err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return ErrUserNotFound
				}
				return fmt.Errorf("lock user %d: %w", id, err)
			}
		}

		var points int64
		if err := tx.QueryRow(ctx, `SELECT points FROM users WHERE id = $1`, senderID).Scan(&points); err != nil {
			return fmt.Errorf("read sender balance: %w", err)
		}
		if amount > points {
			return ErrInsufficientBalance
		}

		out, err := scanTransaction(tx.QueryRow(ctx,
			`INSERT INTO transactions (type, owner_id, creator_id, amount, related_user_id, remark)
			 VALUES ($1, $2, $2, $3, $4, $5)
			 RETURNING `+transactionColumns,
			string(model.TransactionTransfer), senderID, -amount, recipientID, remark,
		))
		if err != nil {
			return fmt.Errorf("insert outgoing transfer: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO transactions (type, owner_id, creator_id, amount, related_user_id, remark)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			string(model.TransactionTransfer), recipientID, senderID, amount, senderID, remark,
		); err != nil {
			return fmt.Errorf("insert incoming transfer: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`UPDATE users SET points = points - $2, updated_at = now() WHERE id = $1`,
			senderID, amount,
		); err != nil {
			return fmt.Errorf("debit sender: %w", mapBalanceError(err))
		}
		if _, err := tx.Exec(ctx,
			`UPDATE users SET points = points + $2, updated_at = now() WHERE id = $1`,
			recipientID, amount,
		); err != nil {
			return fmt.Errorf("credit recipient: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		result = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CreateAdjustment создаёт корректировку со ссылкой на существующую
// транзакцию и применяет её знак к балансу владельца.
func (r *PostgresRepository) CreateAdjustment(ctx context.Context, ownerID, creatorID, amount, relatedTxID int64, remark string) (*model.Transaction, error) {
	var result *model.Transaction

	err := r.withRetry(ctx, func(ctx context.Context) error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		var dummy int
		if err := tx.QueryRow(ctx, `SELECT 1 FROM transactions WHERE id = $1`, relatedTxID).Scan(&dummy); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrTransactionNotFound
			}
			return fmt.Errorf("check related transaction: %w", err)
		}

		t, err := scanTransaction(tx.QueryRow(ctx,
			`INSERT INTO transactions (type, owner_id, creator_id, amount, related_transaction_id, remark)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING `+transactionColumns,
			string(model.TransactionAdjustment), ownerID, creatorID, amount, relatedTxID, remark,
		))
		if err != nil {
			return fmt.Errorf("insert adjustment: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`UPDATE users SET points = points + $2, updated_at = now() WHERE id = $1`,
			ownerID, amount,
		); err != nil {
			return fmt.Errorf("apply adjustment: %w", mapBalanceError(err))
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		result = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CreateEventAward начисляет amount баллов каждому получателю от имени
// мероприятия. Остаток бюджета проверяется под блокировкой строки
// мероприятия до каких-либо записей.
func (r *PostgresRepository) CreateEventAward(ctx context.Context, eventID, creatorID int64, recipientIDs []int64, amount int64, remark string) ([]model.Transaction, error) {
	var result []model.Transaction

	err := r.withRetry(ctx, func(ctx context.Context) error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		var total, awarded int64
		err = tx.QueryRow(ctx,
			`SELECT points_total, points_awarded FROM events WHERE id = $1 FOR UPDATE`, eventID,
		).Scan(&total, &awarded)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrEventNotFound
			}
			return fmt.Errorf("lock event: %w", err)
		}

		needed := amount * int64(len(recipientIDs))
		if needed > total-awarded {
			return ErrInsufficientBudget
		}

		created := make([]model.Transaction, 0, len(recipientIDs))
		for _, recipientID := range recipientIDs {
			t, err := scanTransaction(tx.QueryRow(ctx,
				`INSERT INTO transactions (type, owner_id, creator_id, amount, event_id, remark)
				 VALUES ($1, $2, $3, $4, $5, $6)
				 RETURNING `+transactionColumns,
				string(model.TransactionEvent), recipientID, creatorID, amount, eventID, remark,
			))
			if err != nil {
				return fmt.Errorf("insert event award: %w", err)
			}

			if _, err := tx.Exec(ctx,
				`UPDATE users SET points = points + $2, updated_at = now() WHERE id = $1`,
				recipientID, amount,
			); err != nil {
				return fmt.Errorf("credit recipient %d: %w", recipientID, err)
			}

			created = append(created, *t)
		}

		if _, err := tx.Exec(ctx,
			`UPDATE events SET points_awarded = points_awarded + $2 WHERE id = $1`,
			eventID, needed,
		); err != nil {
			return fmt.Errorf("update event budget: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		result = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SetTransactionSuspicious переключает флаг suspicious покупки.
// true→false начисляет сохранённую сумму владельцу и помечает связанные
// одноразовые акции использованными; false→true снимает сумму с баланса.
// Переключение в текущее значение ничего не меняет. Поле amount
// транзакции не изменяется никогда.
func (r *PostgresRepository) SetTransactionSuspicious(ctx context.Context, txID int64, suspicious bool) (*model.Transaction, error) {
	var result *model.Transaction

	err := r.withRetry(ctx, func(ctx context.Context) error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		t, err := scanTransaction(tx.QueryRow(ctx,
			`SELECT `+transactionColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, txID))
		if err != nil {
			return err
		}

		effect, err := suspiciousChange(t, suspicious)
		if err != nil {
			return err
		}

		if effect.NoOp {
			result = t
			return tx.Commit(ctx)
		}

		if _, err := tx.Exec(ctx,
			`UPDATE users SET points = points + $2, updated_at = now() WHERE id = $1`,
			t.OwnerID, effect.Delta,
		); err != nil {
			return fmt.Errorf("apply balance change: %w", mapBalanceError(err))
		}

		if effect.MarkUsed {
			// Акции могли быть использованы в другой покупке, пока эта
			// числилась подозрительной, поэтому конфликт не считается ошибкой.
			if _, err := tx.Exec(ctx,
				`INSERT INTO promotion_uses (promotion_id, user_id)
				 SELECT tp.promotion_id, $2
				 FROM transaction_promotions tp
				 JOIN promotions p ON p.id = tp.promotion_id
				 WHERE tp.transaction_id = $1 AND p.type = $3
				 ON CONFLICT DO NOTHING`,
				txID, t.OwnerID, string(model.PromotionOneTime),
			); err != nil {
				return fmt.Errorf("mark promotions used: %w", err)
			}
		}

		t, err = scanTransaction(tx.QueryRow(ctx,
			`UPDATE transactions SET suspicious = $2 WHERE id = $1 RETURNING `+transactionColumns,
			txID, suspicious,
		))
		if err != nil {
			return fmt.Errorf("update suspicious flag: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		result = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := r.loadPromotionIDs(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}
