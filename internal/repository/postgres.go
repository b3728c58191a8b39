// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"

	"github.com/yxm4nsy/pay2win-backend/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrUserExists возвращается при попытке создать пользователя с уже занятым utorid.
var (
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrTransactionNotFound возвращается, если транзакция не найдена.
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrPromotionNotFound возвращается, если акция не найдена.
	ErrPromotionNotFound = errors.New("promotion not found")
	// ErrEventNotFound возвращается, если мероприятие не найдено.
	ErrEventNotFound = errors.New("event not found")
	// ErrInsufficientBalance возвращается, если операция увела бы баланс в минус.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrPromotionAlreadyUsed возвращается при повторном использовании одноразовой акции.
	ErrPromotionAlreadyUsed = errors.New("promotion already used")
	// ErrAlreadyProcessed возвращается при повторной обработке запроса на списание.
	ErrAlreadyProcessed = errors.New("redemption already processed")
	// ErrNotRedemption возвращается, если транзакция не является запросом на списание.
	ErrNotRedemption = errors.New("transaction is not a redemption")
	// ErrNotPurchase возвращается, если флаг suspicious меняют не у покупки.
	ErrNotPurchase = errors.New("transaction is not a purchase")
	// ErrInsufficientBudget возвращается, если награда превышает остаток бюджета мероприятия.
	ErrInsufficientBudget = errors.New("insufficient event point budget")
	// ErrEventFull возвращается при добавлении гостя сверх вместимости.
	ErrEventFull = errors.New("event is full")
	// ErrAlreadyGuest возвращается при повторном добавлении гостя.
	ErrAlreadyGuest = errors.New("user is already a guest")
	// ErrGuestNotFound возвращается, если пользователь не записан гостем.
	ErrGuestNotFound = errors.New("guest not found")
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// withRetry повторяет операцию при ошибках сериализации и дедлоках.
// Операции с несколькими конкурирующими блокировками строк иначе могут
// обрываться под нагрузкой.
func (r *PostgresRepository) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(3, retry.NewExponential(500*time.Millisecond))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) &&
			(pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected) {
			return retry.RetryableError(err)
		}

		return err
	})
}

// mapBalanceError переводит нарушение ограничения points >= 0 в доменную ошибку.
func mapBalanceError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.CheckViolation &&
		pgErr.ConstraintName == "users_points_nonnegative" {
		return ErrInsufficientBalance
	}
	return err
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateUser создаёт нового пользователя и возвращает его идентификатор.
func (r *PostgresRepository) CreateUser(ctx context.Context, u *model.User) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (utorid, name, email, password_hash, role, verified)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		u.UTORid, u.Name, u.Email, u.PasswordHash, string(u.Role), u.Verified,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return 0, fmt.Errorf("%w: %s", ErrUserExists, u.UTORid)
		}
		return 0, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

const userColumns = `id, utorid, name, email, password_hash, role, points, verified, suspicious, created_at, updated_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	var role string
	err := row.Scan(&u.ID, &u.UTORid, &u.Name, &u.Email, &u.PasswordHash,
		&role, &u.Points, &u.Verified, &u.Suspicious, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.Role = model.Role(role)
	return &u, nil
}

// GetUserByID возвращает пользователя по числовому идентификатору.
func (r *PostgresRepository) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetUserByUTORid возвращает пользователя по utorid.
func (r *PostgresRepository) GetUserByUTORid(ctx context.Context, utorid string) (*model.User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE utorid = $1`, utorid))
}

// UpdateUserProfile обновляет имя и адрес почты пользователя. Неуказанные
// поля остаются без изменений.
func (r *PostgresRepository) UpdateUserProfile(ctx context.Context, id int64, name, email *string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users
		 SET name = COALESCE($2, name), email = COALESCE($3, email), updated_at = now()
		 WHERE id = $1`,
		id, name, email,
	)
	if err != nil {
		return fmt.Errorf("update user profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetUserRole устанавливает роль пользователя.
func (r *PostgresRepository) SetUserRole(ctx context.Context, id int64, role model.Role) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET role = $2, updated_at = now() WHERE id = $1`,
		id, string(role),
	)
	if err != nil {
		return fmt.Errorf("set user role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetUserVerified устанавливает признак верификации пользователя.
func (r *PostgresRepository) SetUserVerified(ctx context.Context, id int64, verified bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET verified = $2, updated_at = now() WHERE id = $1`,
		id, verified,
	)
	if err != nil {
		return fmt.Errorf("set user verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetUserSuspicious устанавливает признак подозрительности кассира.
func (r *PostgresRepository) SetUserSuspicious(ctx context.Context, id int64, suspicious bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET suspicious = $2, updated_at = now() WHERE id = $1`,
		id, suspicious,
	)
	if err != nil {
		return fmt.Errorf("set user suspicious: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
