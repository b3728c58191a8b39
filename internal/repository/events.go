package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/yxm4nsy/pay2win-backend/internal/model"
)

const eventColumns = `id, name, description, location, start_time, end_time, capacity, points_total, points_awarded`

func scanEvent(row pgx.Row) (*model.Event, error) {
	var e model.Event
	err := row.Scan(&e.ID, &e.Name, &e.Description, &e.Location, &e.StartTime, &e.EndTime,
		&e.Capacity, &e.PointsTotal, &e.PointsAwarded)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("scan event: %w", err)
	}
	return &e, nil
}

// CreateEvent создаёт мероприятие вместе с начальным списком организаторов.
func (r *PostgresRepository) CreateEvent(ctx context.Context, e *model.Event, organizerIDs []int64) (int64, error) {
	var id int64

	err := r.withRetry(ctx, func(ctx context.Context) error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		err = tx.QueryRow(ctx,
			`INSERT INTO events (name, description, location, start_time, end_time, capacity, points_total)
			 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
			e.Name, e.Description, e.Location, e.StartTime, e.EndTime, e.Capacity, e.PointsTotal,
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("insert event: %w", err)
		}

		for _, userID := range organizerIDs {
			if _, err := tx.Exec(ctx,
				`INSERT INTO event_organizers (event_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
				id, userID,
			); err != nil {
				return fmt.Errorf("insert organizer: %w", err)
			}
		}

		return tx.Commit(ctx)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *PostgresRepository) loadEventMembers(ctx context.Context, e *model.Event) error {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id FROM event_organizers WHERE event_id = $1 ORDER BY user_id`, e.ID)
	if err != nil {
		return fmt.Errorf("select organizers: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("scan organizer: %w", err)
		}
		e.OrganizerIDs = append(e.OrganizerIDs, id)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = r.pool.Query(ctx,
		`SELECT user_id FROM event_guests WHERE event_id = $1 ORDER BY user_id`, e.ID)
	if err != nil {
		return fmt.Errorf("select guests: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("scan guest: %w", err)
		}
		e.GuestIDs = append(e.GuestIDs, id)
	}
	return rows.Err()
}

// GetEvent возвращает мероприятие вместе со списками организаторов и гостей.
func (r *PostgresRepository) GetEvent(ctx context.Context, id int64) (*model.Event, error) {
	e, err := scanEvent(r.pool.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadEventMembers(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// EventPatch описывает частичное обновление мероприятия; nil-поля не меняются.
type EventPatch struct {
	Name        *string
	Description *string
	Location    *string
	StartTime   *time.Time
	EndTime     *time.Time
	Capacity    *int64
	PointsTotal *int64
}

// UpdateEvent применяет частичное обновление мероприятия. Уменьшение
// бюджета ниже уже выданных баллов отклоняется ограничением схемы.
func (r *PostgresRepository) UpdateEvent(ctx context.Context, id int64, patch EventPatch) (*model.Event, error) {
	e, err := scanEvent(r.pool.QueryRow(ctx,
		`UPDATE events
		 SET name = COALESCE($2, name),
		     description = COALESCE($3, description),
		     location = COALESCE($4, location),
		     start_time = COALESCE($5, start_time),
		     end_time = COALESCE($6, end_time),
		     capacity = COALESCE($7, capacity),
		     points_total = COALESCE($8, points_total)
		 WHERE id = $1
		 RETURNING `+eventColumns,
		id, patch.Name, patch.Description, patch.Location, patch.StartTime, patch.EndTime,
		patch.Capacity, patch.PointsTotal,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.CheckViolation &&
			pgErr.ConstraintName == "events_points_budget" {
			return nil, ErrInsufficientBudget
		}
		return nil, err
	}
	if err := r.loadEventMembers(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// AddOrganizer добавляет организатора мероприятия.
func (r *PostgresRepository) AddOrganizer(ctx context.Context, eventID, userID int64) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO event_organizers (event_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		eventID, userID,
	)
	if err != nil {
		return fmt.Errorf("add organizer: %w", err)
	}
	return nil
}

// AddGuest записывает гостя на мероприятие. Вместимость проверяется под
// блокировкой строки мероприятия, чтобы конкурентные записи её не превысили.
func (r *PostgresRepository) AddGuest(ctx context.Context, eventID, userID int64) error {
	return r.withRetry(ctx, func(ctx context.Context) error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		var capacity *int64
		err = tx.QueryRow(ctx, `SELECT capacity FROM events WHERE id = $1 FOR UPDATE`, eventID).Scan(&capacity)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrEventNotFound
			}
			return fmt.Errorf("lock event: %w", err)
		}

		if capacity != nil {
			var guests int64
			if err := tx.QueryRow(ctx,
				`SELECT COUNT(*) FROM event_guests WHERE event_id = $1`, eventID,
			).Scan(&guests); err != nil {
				return fmt.Errorf("count guests: %w", err)
			}
			if guests >= *capacity {
				return ErrEventFull
			}
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO event_guests (event_id, user_id) VALUES ($1, $2)`,
			eventID, userID,
		); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
				return ErrAlreadyGuest
			}
			return fmt.Errorf("insert guest: %w", err)
		}

		return tx.Commit(ctx)
	})
}

// RemoveGuest снимает гостя с мероприятия.
func (r *PostgresRepository) RemoveGuest(ctx context.Context, eventID, userID int64) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM event_guests WHERE event_id = $1 AND user_id = $2`,
		eventID, userID,
	)
	if err != nil {
		return fmt.Errorf("remove guest: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrGuestNotFound
	}
	return nil
}
