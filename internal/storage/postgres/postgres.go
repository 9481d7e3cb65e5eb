package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"token_auth/internal/config"
	"token_auth/internal/models"
	"token_auth/internal/storage"
	"token_auth/internal/storage/postgres/migrations"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

const uniqueViolation = "23505"

type PostgresRepo struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, cfg *config.Config) (*PostgresRepo, error) {
	return Connect(ctx, dsn(cfg))
}

func Connect(ctx context.Context, dsn string) (*PostgresRepo, error) {
	const op = "storage.postgres.New"

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse config: %w", op, err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = time.Minute * 30

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create pool: %w", op, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: failed to ping database: %w", op, err)
	}

	return &PostgresRepo{pool: pool}, nil
}

// * Migrate накатывает встроенные миграции через goose
func (r *PostgresRepo) Migrate(ctx context.Context) error {
	const op = "storage.postgres.Migrate"

	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

const userColumns = `id, name, username, email, password_hash, role, status,
	email_verification_token, email_verified_at, created_at`

func scanUser(row pgx.Row) (models.User, error) {
	var u models.User

	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Username,
		&u.Email,
		&u.PassHash,
		&u.Role,
		&u.Status,
		&u.EmailVerificationToken,
		&u.EmailVerifiedAt,
		&u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, storage.ErrUserNotFound
		}

		return models.User{}, err
	}

	return u, nil
}

func (r *PostgresRepo) userBy(ctx context.Context, op, where string, arg any) (models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where

	u, err := scanUser(r.pool.QueryRow(ctx, query, arg))
	if err != nil && !errors.Is(err, storage.ErrUserNotFound) {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return u, err
}

func (r *PostgresRepo) UserByUsername(ctx context.Context, username string) (models.User, error) {
	return r.userBy(ctx, "storage.postgres.UserByUsername", `username = $1`, username)
}

func (r *PostgresRepo) UserByEmail(ctx context.Context, email string) (models.User, error) {
	return r.userBy(ctx, "storage.postgres.UserByEmail", `email = lower($1)`, email)
}

func (r *PostgresRepo) UserByUsernameOrEmail(ctx context.Context, identifier string) (models.User, error) {
	return r.userBy(ctx, "storage.postgres.UserByUsernameOrEmail",
		`username = $1 OR email = lower($1) ORDER BY (username = $1) DESC LIMIT 1`, identifier)
}

func (r *PostgresRepo) UserByVerificationToken(ctx context.Context, token string) (models.User, error) {
	return r.userBy(ctx, "storage.postgres.UserByVerificationToken", `email_verification_token = $1`, token)
}

func (r *PostgresRepo) UserExistsByUsername(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, "storage.postgres.UserExistsByUsername",
		`SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`, username)
}

func (r *PostgresRepo) UserExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, "storage.postgres.UserExistsByEmail",
		`SELECT EXISTS (SELECT 1 FROM users WHERE email = lower($1))`, email)
}

func (r *PostgresRepo) exists(ctx context.Context, op, query string, arg any) (bool, error) {
	var ok bool

	if err := r.pool.QueryRow(ctx, query, arg).Scan(&ok); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return ok, nil
}

// * SaveUser: INSERT для нового пользователя, UPDATE для существующего
func (r *PostgresRepo) SaveUser(ctx context.Context, user *models.User) error {
	const op = "storage.postgres.SaveUser"

	if user.ID == 0 {
		query := `
			INSERT INTO users (name, username, email, password_hash, role, status,
				email_verification_token, email_verified_at)
			VALUES ($1, $2, lower($3), $4, $5, $6, $7, $8)
			RETURNING id, created_at;
		`

		err := r.pool.QueryRow(ctx, query,
			user.Name,
			user.Username,
			user.Email,
			user.PassHash,
			user.Role,
			user.Status,
			user.EmailVerificationToken,
			user.EmailVerifiedAt,
		).Scan(&user.ID, &user.CreatedAt)
		if err != nil {
			if mapped := mapUniqueViolation(err); mapped != nil {
				return mapped
			}

			return fmt.Errorf("%s: failed to insert user: %w", op, err)
		}

		return nil
	}

	query := `
		UPDATE users
		SET name = $1, username = $2, email = lower($3), password_hash = $4, role = $5, status = $6,
			email_verification_token = $7, email_verified_at = $8
		WHERE id = $9;
	`

	tag, err := r.pool.Exec(ctx, query,
		user.Name,
		user.Username,
		user.Email,
		user.PassHash,
		user.Role,
		user.Status,
		user.EmailVerificationToken,
		user.EmailVerifiedAt,
		user.ID,
	)
	if err != nil {
		if mapped := mapUniqueViolation(err); mapped != nil {
			return mapped
		}

		return fmt.Errorf("%s: failed to update user: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		return storage.ErrUserNotFound
	}

	return nil
}

// * ActivateUser: compare-and-set по статусу и токену подтверждения. 0 строк значит токен уже погашен
func (r *PostgresRepo) ActivateUser(ctx context.Context, id int64, token string, at time.Time) error {
	const op = "storage.postgres.ActivateUser"

	const query = `
		UPDATE users
		SET status = $1, email_verified_at = $2, email_verification_token = NULL
		WHERE id = $3 AND status = $4 AND email_verification_token = $5
	`

	tag, err := r.pool.Exec(ctx, query,
		models.StatusActive,
		at.UTC(),
		id,
		models.StatusInactive,
		token,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		return storage.ErrUserNotFound
	}

	return nil
}

// * RotateVerificationToken меняет токен, только если пользователь неактивен и держит old
func (r *PostgresRepo) RotateVerificationToken(ctx context.Context, id int64, old *string, next string) error {
	const op = "storage.postgres.RotateVerificationToken"

	const query = `
		UPDATE users
		SET email_verification_token = $1
		WHERE id = $2 AND status = $3 AND email_verification_token IS NOT DISTINCT FROM $4
	`

	tag, err := r.pool.Exec(ctx, query, next, id, models.StatusInactive, old)
	if err != nil {
		if mapped := mapUniqueViolation(err); mapped != nil {
			return mapped
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		return storage.ErrUserNotFound
	}

	return nil
}

func (r *PostgresRepo) SaveToken(ctx context.Context, userID int64, token string) error {
	const op = "storage.postgres.SaveToken"

	const query = `
		INSERT INTO tokens (token, user_id, token_type, expired, revoked)
		VALUES ($1, $2, $3, FALSE, FALSE)
	`

	if _, err := r.pool.Exec(ctx, query, token, userID, models.TokenKindBearer); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return storage.ErrTokenExists
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *PostgresRepo) ValidTokensByUser(ctx context.Context, userID int64) ([]models.Token, error) {
	const op = "storage.postgres.ValidTokensByUser"

	const query = `
		SELECT id, token, user_id, token_type, expired, revoked, created_at
		FROM tokens
		WHERE user_id = $1 AND expired = FALSE AND revoked = FALSE
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []models.Token

	for rows.Next() {
		var t models.Token

		if err := rows.Scan(&t.ID, &t.Token, &t.UserID, &t.Kind, &t.Expired, &t.Revoked, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		out = append(out, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// * RevokeAllUserTokens: один UPDATE, поэтому пакет атомарен
func (r *PostgresRepo) RevokeAllUserTokens(ctx context.Context, userID int64) error {
	const op = "storage.postgres.RevokeAllUserTokens"

	const query = `
		UPDATE tokens
		SET expired = TRUE, revoked = TRUE
		WHERE user_id = $1 AND expired = FALSE AND revoked = FALSE
	`

	if _, err := r.pool.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *PostgresRepo) Token(ctx context.Context, token string) (models.Token, error) {
	const op = "storage.postgres.Token"

	const query = `
		SELECT id, token, user_id, token_type, expired, revoked, created_at
		FROM tokens
		WHERE token = $1
	`

	var t models.Token

	err := r.pool.QueryRow(ctx, query, token).
		Scan(&t.ID, &t.Token, &t.UserID, &t.Kind, &t.Expired, &t.Revoked, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Token{}, storage.ErrTokenNotFound
		}

		return models.Token{}, fmt.Errorf("%s: %w", op, err)
	}

	return t, nil
}

func (r *PostgresRepo) Close() {
	r.pool.Close()
}

func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return nil
	}

	switch pgErr.ConstraintName {
	case "users_username_key":
		return storage.ErrUsernameExists
	case "users_email_key":
		return storage.ErrEmailExists
	default:
		return storage.ErrUserExists
	}
}

// * dsn формирует конфигурацию базы данных.
func dsn(cfg *config.Config) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s database=%s sslmode=%s",
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.DBName,
		cfg.Postgres.SSLMode,
	)
}
