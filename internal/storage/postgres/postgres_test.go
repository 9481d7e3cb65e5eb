package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token_auth/internal/config"
	"token_auth/internal/models"
	"token_auth/internal/storage"
)

func TestMapUniqueViolation(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"username", &pgconn.PgError{Code: uniqueViolation, ConstraintName: "users_username_key"}, storage.ErrUsernameExists},
		{"email", &pgconn.PgError{Code: uniqueViolation, ConstraintName: "users_email_key"}, storage.ErrEmailExists},
		{"other constraint", &pgconn.PgError{Code: uniqueViolation, ConstraintName: "users_email_verification_token_key"}, storage.ErrUserExists},
		{"wrapped", fmt.Errorf("wrap: %w", &pgconn.PgError{Code: uniqueViolation, ConstraintName: "users_email_key"}), storage.ErrEmailExists},
		{"not unique", &pgconn.PgError{Code: "23503"}, nil},
		{"plain error", errors.New("boom"), nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, mapUniqueViolation(tc.err))
		})
	}
}

func TestDSN(t *testing.T) {
	cfg := &config.Config{Postgres: config.Postgres{
		Host: "db", Port: 5433, User: "u", Password: "p", DBName: "auth", SSLMode: "disable",
	}}

	assert.Equal(t, "host=db port=5433 user=u password=p database=auth sslmode=disable", dsn(cfg))
}

// Integration tests run only when AUTH_DATABASE_URL points at a disposable database.

func mustRepo(t *testing.T) *PostgresRepo {
	t.Helper()

	dbURL := os.Getenv("AUTH_DATABASE_URL")
	if dbURL == "" {
		t.Skip("AUTH_DATABASE_URL is not set; skipping Postgres integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, err := Connect(ctx, dbURL)
	require.NoError(t, err)
	t.Cleanup(repo.Close)

	require.NoError(t, repo.Migrate(ctx))

	return repo
}

func uniqueName(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano())
}

func TestPostgres_UserLifecycle(t *testing.T) {
	repo := mustRepo(t)
	ctx := context.Background()

	username := uniqueName("alice")
	verifyTok := uniqueName("verify")

	u := &models.User{
		Name:                   "Alice",
		Username:               username,
		Email:                  username + "@X.com",
		PassHash:               "hash",
		Role:                   models.RoleUser,
		Status:                 models.StatusInactive,
		EmailVerificationToken: &verifyTok,
	}
	require.NoError(t, repo.SaveUser(ctx, u))
	require.NotZero(t, u.ID)
	t.Cleanup(func() { _, _ = repo.pool.Exec(context.Background(), `DELETE FROM users WHERE id = $1`, u.ID) })

	ok, err := repo.UserExistsByEmail(ctx, username+"@x.com")
	require.NoError(t, err)
	assert.True(t, ok)

	dup := *u
	dup.ID = 0
	dup.Email = uniqueName("other") + "@x.com"
	dup.EmailVerificationToken = nil
	assert.ErrorIs(t, repo.SaveUser(ctx, &dup), storage.ErrUsernameExists)

	got, err := repo.UserByVerificationToken(ctx, verifyTok)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	rotated := uniqueName("rotated")
	assert.ErrorIs(t, repo.RotateVerificationToken(ctx, u.ID, &rotated, rotated), storage.ErrUserNotFound,
		"rotation requires the current token")
	require.NoError(t, repo.RotateVerificationToken(ctx, u.ID, &verifyTok, rotated))

	assert.ErrorIs(t, repo.ActivateUser(ctx, u.ID, verifyTok, time.Now()), storage.ErrUserNotFound)
	require.NoError(t, repo.ActivateUser(ctx, u.ID, rotated, time.Now()))
	assert.ErrorIs(t, repo.ActivateUser(ctx, u.ID, rotated, time.Now()), storage.ErrUserNotFound,
		"verification token is single-use")
	assert.ErrorIs(t, repo.RotateVerificationToken(ctx, u.ID, nil, uniqueName("late")), storage.ErrUserNotFound,
		"active account keeps its state")

	_, err = repo.UserByVerificationToken(ctx, rotated)
	assert.ErrorIs(t, err, storage.ErrUserNotFound)

	byIdent, err := repo.UserByUsernameOrEmail(ctx, username)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, byIdent.Status)
	require.NotNil(t, byIdent.EmailVerifiedAt)
}

func TestPostgres_LedgerRevokeAll(t *testing.T) {
	repo := mustRepo(t)
	ctx := context.Background()

	username := uniqueName("bob")
	u := &models.User{
		Name: "Bob", Username: username, Email: username + "@x.com",
		PassHash: "hash", Role: models.RoleUser, Status: models.StatusActive,
	}
	require.NoError(t, repo.SaveUser(ctx, u))
	t.Cleanup(func() { _, _ = repo.pool.Exec(context.Background(), `DELETE FROM users WHERE id = $1`, u.ID) })

	first, second := uniqueName("tok1"), uniqueName("tok2")
	require.NoError(t, repo.SaveToken(ctx, u.ID, first))
	require.NoError(t, repo.SaveToken(ctx, u.ID, second))
	assert.ErrorIs(t, repo.SaveToken(ctx, u.ID, first), storage.ErrTokenExists)

	valid, err := repo.ValidTokensByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, valid, 2)

	require.NoError(t, repo.RevokeAllUserTokens(ctx, u.ID))

	valid, err = repo.ValidTokensByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, valid)

	tok, err := repo.Token(ctx, first)
	require.NoError(t, err)
	assert.True(t, tok.Expired)
	assert.True(t, tok.Revoked)

	_, err = repo.Token(ctx, uniqueName("missing"))
	assert.ErrorIs(t, err, storage.ErrTokenNotFound)
}
