package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token_auth/internal/models"
	"token_auth/internal/storage"
)

func strPtr(s string) *string { return &s }

func newUser(username, email string) *models.User {
	return &models.User{
		Name:     username,
		Username: username,
		Email:    email,
		PassHash: "hash",
		Role:     models.RoleUser,
		Status:   models.StatusInactive,
	}
}

func TestSaveUser_AssignsIDAndIndexes(t *testing.T) {
	ctx := context.Background()
	s := New()

	u := newUser("alice", "A@x.com")
	u.EmailVerificationToken = strPtr("tok-1")
	require.NoError(t, s.SaveUser(ctx, u))
	assert.Equal(t, int64(1), u.ID)
	assert.False(t, u.CreatedAt.IsZero())

	ok, err := s.UserExistsByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.UserExistsByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.UserByUsernameOrEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)

	got, err = s.UserByVerificationToken(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
}

func TestSaveUser_Uniqueness(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.SaveUser(ctx, newUser("alice", "a@x.com")))

	assert.ErrorIs(t, s.SaveUser(ctx, newUser("alice", "other@x.com")), storage.ErrUsernameExists)
	assert.ErrorIs(t, s.SaveUser(ctx, newUser("bob", "a@x.com")), storage.ErrEmailExists)
}

func TestSaveUser_UpdateClearsVerificationIndex(t *testing.T) {
	ctx := context.Background()
	s := New()

	u := newUser("alice", "a@x.com")
	u.EmailVerificationToken = strPtr("tok-1")
	require.NoError(t, s.SaveUser(ctx, u))

	u.EmailVerificationToken = nil
	u.Status = models.StatusActive
	require.NoError(t, s.SaveUser(ctx, u))

	_, err := s.UserByVerificationToken(ctx, "tok-1")
	assert.ErrorIs(t, err, storage.ErrUserNotFound)

	got, err := s.UserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, got.Status)
}

func TestSaveUser_UnknownID(t *testing.T) {
	u := newUser("ghost", "g@x.com")
	u.ID = 42

	assert.ErrorIs(t, New().SaveUser(context.Background(), u), storage.ErrUserNotFound)
}

func TestReturnedUsersAreCopies(t *testing.T) {
	ctx := context.Background()
	s := New()

	u := newUser("alice", "a@x.com")
	u.EmailVerificationToken = strPtr("tok-1")
	require.NoError(t, s.SaveUser(ctx, u))

	got, err := s.UserByUsername(ctx, "alice")
	require.NoError(t, err)
	*got.EmailVerificationToken = "mutated"

	again, err := s.UserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", *again.EmailVerificationToken)
}

func TestLedger_RevokeAllUsesStrictValidity(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.SaveToken(ctx, 1, "t1"))
	require.NoError(t, s.SaveToken(ctx, 1, "t2"))
	require.NoError(t, s.SaveToken(ctx, 2, "other"))

	valid, err := s.ValidTokensByUser(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, valid, 2)

	require.NoError(t, s.RevokeAllUserTokens(ctx, 1))

	valid, err = s.ValidTokensByUser(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, valid)

	for _, tok := range []string{"t1", "t2"} {
		got, err := s.Token(ctx, tok)
		require.NoError(t, err)
		assert.True(t, got.Expired)
		assert.True(t, got.Revoked)
	}

	other, err := s.Token(ctx, "other")
	require.NoError(t, err)
	assert.True(t, other.IsValid())

	// no-op when nothing is valid
	require.NoError(t, s.RevokeAllUserTokens(ctx, 1))
	require.NoError(t, s.RevokeAllUserTokens(ctx, 99))
}

func TestLedger_HalfRevokedTokenIsNotValid(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.SaveToken(ctx, 1, "t1"))

	s.mu.Lock()
	tok := s.tokens["t1"]
	tok.Expired = true
	s.tokens["t1"] = tok
	s.mu.Unlock()

	valid, err := s.ValidTokensByUser(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, valid)
}

func TestLedger_DuplicateAndMissing(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.SaveToken(ctx, 1, "t1"))
	assert.ErrorIs(t, s.SaveToken(ctx, 1, "t1"), storage.ErrTokenExists)

	_, err := s.Token(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrTokenNotFound)
}

func TestConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.SaveToken(ctx, 1, fmt.Sprintf("tok-%d", i))
			_ = s.RevokeAllUserTokens(ctx, 1)
			_, _ = s.ValidTokensByUser(ctx, 1)
		}(i)
	}
	wg.Wait()

	require.NoError(t, s.RevokeAllUserTokens(ctx, 1))
	valid, err := s.ValidTokensByUser(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, valid)
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().UserByUsername(ctx, "alice")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestActivateUser_IsCompareAndSet(t *testing.T) {
	ctx := context.Background()
	s := New()

	u := newUser("alice", "a@x.com")
	u.EmailVerificationToken = strPtr("tok-1")
	require.NoError(t, s.SaveUser(ctx, u))

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	assert.ErrorIs(t, s.ActivateUser(ctx, u.ID, "tok-other", at), storage.ErrUserNotFound)
	require.NoError(t, s.ActivateUser(ctx, u.ID, "tok-1", at))
	assert.ErrorIs(t, s.ActivateUser(ctx, u.ID, "tok-1", at), storage.ErrUserNotFound)

	got, err := s.UserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, got.Status)
	require.NotNil(t, got.EmailVerifiedAt)
	assert.True(t, got.EmailVerifiedAt.Equal(at))
	assert.Nil(t, got.EmailVerificationToken)

	_, err = s.UserByVerificationToken(ctx, "tok-1")
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
}

func TestRotateVerificationToken(t *testing.T) {
	ctx := context.Background()
	s := New()

	u := newUser("alice", "a@x.com")
	u.EmailVerificationToken = strPtr("tok-1")
	require.NoError(t, s.SaveUser(ctx, u))

	assert.ErrorIs(t, s.RotateVerificationToken(ctx, u.ID, strPtr("stale"), "tok-2"), storage.ErrUserNotFound)
	assert.ErrorIs(t, s.RotateVerificationToken(ctx, u.ID, nil, "tok-2"), storage.ErrUserNotFound)
	require.NoError(t, s.RotateVerificationToken(ctx, u.ID, strPtr("tok-1"), "tok-2"))

	_, err := s.UserByVerificationToken(ctx, "tok-1")
	assert.ErrorIs(t, err, storage.ErrUserNotFound)

	got, err := s.UserByVerificationToken(ctx, "tok-2")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	require.NoError(t, s.ActivateUser(ctx, u.ID, "tok-2", time.Now()))
	assert.ErrorIs(t, s.RotateVerificationToken(ctx, u.ID, nil, "tok-3"), storage.ErrUserNotFound,
		"active accounts never go back to INACTIVE")
}
