package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/yxm4nsy/pay2win-backend/internal/model"
)

const promotionColumns = `id, name, description, type, start_time, end_time, min_spending_cents, rate, points`

func scanPromotion(row pgx.Row) (*model.Promotion, error) {
	var p model.Promotion
	var typ string
	err := row.Scan(&p.ID, &p.Name, &p.Description, &typ, &p.StartTime, &p.EndTime,
		&p.MinSpendingCents, &p.Rate, &p.Points)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPromotionNotFound
		}
		return nil, fmt.Errorf("scan promotion: %w", err)
	}
	p.Type = model.PromotionType(typ)
	return &p, nil
}

// CreatePromotion создаёт акцию и возвращает её идентификатор.
func (r *PostgresRepository) CreatePromotion(ctx context.Context, p *model.Promotion) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO promotions (name, description, type, start_time, end_time, min_spending_cents, rate, points)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		p.Name, p.Description, string(p.Type), p.StartTime, p.EndTime, p.MinSpendingCents, p.Rate, p.Points,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create promotion: %w", err)
	}
	return id, nil
}

// GetPromotion возвращает акцию по идентификатору.
func (r *PostgresRepository) GetPromotion(ctx context.Context, id int64) (*model.Promotion, error) {
	return scanPromotion(r.pool.QueryRow(ctx,
		`SELECT `+promotionColumns+` FROM promotions WHERE id = $1`, id))
}

// ListPromotions возвращает все акции в порядке создания.
func (r *PostgresRepository) ListPromotions(ctx context.Context) ([]model.Promotion, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+promotionColumns+` FROM promotions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select promotions: %w", err)
	}
	defer rows.Close()

	var res []model.Promotion
	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// ActiveAutomaticPromotions возвращает автоматические акции, действующие
// в указанный момент и подходящие под сумму покупки, в порядке создания.
func (r *PostgresRepository) ActiveAutomaticPromotions(ctx context.Context, now time.Time, spentCents int64) ([]model.Promotion, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+promotionColumns+`
		 FROM promotions
		 WHERE type = $1
		   AND start_time <= $2 AND $2 < end_time
		   AND (min_spending_cents IS NULL OR min_spending_cents <= $3)
		 ORDER BY id`,
		string(model.PromotionAutomatic), now, spentCents,
	)
	if err != nil {
		return nil, fmt.Errorf("select automatic promotions: %w", err)
	}
	defer rows.Close()

	var res []model.Promotion
	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// PromotionsByIDs возвращает акции по списку идентификаторов. Если какая-то
// не найдена, возвращается ErrPromotionNotFound с её идентификатором.
func (r *PostgresRepository) PromotionsByIDs(ctx context.Context, ids []int64) (map[int64]model.Promotion, error) {
	if len(ids) == 0 {
		return map[int64]model.Promotion{}, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+promotionColumns+` FROM promotions WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("select promotions by ids: %w", err)
	}
	defer rows.Close()

	res := make(map[int64]model.Promotion, len(ids))
	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			return nil, err
		}
		res[p.ID] = *p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	for _, id := range ids {
		if _, ok := res[id]; !ok {
			return nil, fmt.Errorf("%w: %d", ErrPromotionNotFound, id)
		}
	}
	return res, nil
}

// UsedPromotionIDs возвращает подмножество ids, уже использованных пользователем.
func (r *PostgresRepository) UsedPromotionIDs(ctx context.Context, userID int64, ids []int64) (map[int64]bool, error) {
	used := make(map[int64]bool, len(ids))
	if len(ids) == 0 {
		return used, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT promotion_id FROM promotion_uses WHERE user_id = $1 AND promotion_id = ANY($2)`,
		userID, ids,
	)
	if err != nil {
		return nil, fmt.Errorf("select promotion uses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan promotion use: %w", err)
		}
		used[id] = true
	}
	return used, rows.Err()
}

// PromotionPatch описывает частичное обновление акции; nil-поля не меняются.
type PromotionPatch struct {
	Name             *string
	Description      *string
	StartTime        *time.Time
	EndTime          *time.Time
	MinSpendingCents *int64
	Rate             *float64
	Points           *int64
}

// UpdatePromotion применяет частичное обновление акции.
func (r *PostgresRepository) UpdatePromotion(ctx context.Context, id int64, patch PromotionPatch) (*model.Promotion, error) {
	return scanPromotion(r.pool.QueryRow(ctx,
		`UPDATE promotions
		 SET name = COALESCE($2, name),
		     description = COALESCE($3, description),
		     start_time = COALESCE($4, start_time),
		     end_time = COALESCE($5, end_time),
		     min_spending_cents = COALESCE($6, min_spending_cents),
		     rate = COALESCE($7, rate),
		     points = COALESCE($8, points)
		 WHERE id = $1
		 RETURNING `+promotionColumns,
		id, patch.Name, patch.Description, patch.StartTime, patch.EndTime,
		patch.MinSpendingCents, patch.Rate, patch.Points,
	))
}

// DeletePromotion удаляет акцию.
func (r *PostgresRepository) DeletePromotion(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM promotions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete promotion: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPromotionNotFound
	}
	return nil
}
