package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"token_auth/internal/models"
	"token_auth/internal/storage"
)

// Storage keeps accounts and issued tokens in process memory.
// It is meant for local runs and tests; nothing survives a restart.
type Storage struct {
	mu sync.RWMutex

	nextUserID  int64
	nextTokenID int64

	users        map[int64]models.User
	byUsername   map[string]int64
	byEmail      map[string]int64
	byVerifyTok  map[string]int64
	tokens       map[string]models.Token
	tokensByUser map[int64][]string

	now func() time.Time
}

func New() *Storage {
	return &Storage{
		users:        make(map[int64]models.User),
		byUsername:   make(map[string]int64),
		byEmail:      make(map[string]int64),
		byVerifyTok:  make(map[string]int64),
		tokens:       make(map[string]models.Token),
		tokensByUser: make(map[int64][]string),
		now:          time.Now,
	}
}

// * Close ничего не делает, нужен для единообразия с другими хранилищами
func (s *Storage) Close() {}

func (s *Storage) UserExistsByUsername(ctx context.Context, username string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.byUsername[username]

	return ok, nil
}

func (s *Storage) UserExistsByEmail(ctx context.Context, email string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.byEmail[strings.ToLower(email)]

	return ok, nil
}

func (s *Storage) UserByUsernameOrEmail(ctx context.Context, identifier string) (models.User, error) {
	if err := ctx.Err(); err != nil {
		return models.User{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if id, ok := s.byUsername[identifier]; ok {
		return cloneUser(s.users[id]), nil
	}

	if id, ok := s.byEmail[strings.ToLower(identifier)]; ok {
		return cloneUser(s.users[id]), nil
	}

	return models.User{}, storage.ErrUserNotFound
}

func (s *Storage) UserByUsername(ctx context.Context, username string) (models.User, error) {
	return s.lookup(ctx, s.byUsername, username)
}

func (s *Storage) UserByEmail(ctx context.Context, email string) (models.User, error) {
	return s.lookup(ctx, s.byEmail, strings.ToLower(email))
}

func (s *Storage) UserByVerificationToken(ctx context.Context, token string) (models.User, error) {
	return s.lookup(ctx, s.byVerifyTok, token)
}

func (s *Storage) lookup(ctx context.Context, index map[string]int64, key string) (models.User, error) {
	if err := ctx.Err(); err != nil {
		return models.User{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := index[key]
	if !ok {
		return models.User{}, storage.ErrUserNotFound
	}

	return cloneUser(s.users[id]), nil
}

// * SaveUser: upsert. Новому пользователю присваивается ID и CreatedAt
func (s *Storage) SaveUser(ctx context.Context, user *models.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(user.Email)

	var prev models.User
	if user.ID != 0 {
		var ok bool
		if prev, ok = s.users[user.ID]; !ok {
			return storage.ErrUserNotFound
		}
	}

	if id, ok := s.byUsername[user.Username]; ok && id != user.ID {
		return storage.ErrUsernameExists
	}

	if id, ok := s.byEmail[email]; ok && id != user.ID {
		return storage.ErrEmailExists
	}

	if user.EmailVerificationToken != nil {
		if id, ok := s.byVerifyTok[*user.EmailVerificationToken]; ok && id != user.ID {
			return storage.ErrUserExists
		}
	}

	if user.ID == 0 {
		s.nextUserID++
		user.ID = s.nextUserID
		user.CreatedAt = s.now().UTC()
	} else {
		delete(s.byUsername, prev.Username)
		delete(s.byEmail, strings.ToLower(prev.Email))
		if prev.EmailVerificationToken != nil {
			delete(s.byVerifyTok, *prev.EmailVerificationToken)
		}
		user.CreatedAt = prev.CreatedAt
	}

	s.users[user.ID] = cloneUser(*user)
	s.byUsername[user.Username] = user.ID
	s.byEmail[email] = user.ID
	if user.EmailVerificationToken != nil {
		s.byVerifyTok[*user.EmailVerificationToken] = user.ID
	}

	return nil
}

// * ActivateUser переводит INACTIVE в ACTIVE, только если токен подтверждения все еще тот же
func (s *Storage) ActivateUser(ctx context.Context, id int64, token string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok || u.Status != models.StatusInactive ||
		u.EmailVerificationToken == nil || *u.EmailVerificationToken != token {
		return storage.ErrUserNotFound
	}

	delete(s.byVerifyTok, token)

	at = at.UTC()
	u.Status = models.StatusActive
	u.EmailVerifiedAt = &at
	u.EmailVerificationToken = nil
	s.users[id] = u

	return nil
}

// * RotateVerificationToken меняет old на next у неактивного пользователя. old == nil значит токена не было
func (s *Storage) RotateVerificationToken(ctx context.Context, id int64, old *string, next string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok || u.Status != models.StatusInactive || !sameToken(u.EmailVerificationToken, old) {
		return storage.ErrUserNotFound
	}

	if owner, ok := s.byVerifyTok[next]; ok && owner != id {
		return storage.ErrUserExists
	}

	if u.EmailVerificationToken != nil {
		delete(s.byVerifyTok, *u.EmailVerificationToken)
	}

	u.EmailVerificationToken = &next
	s.users[id] = u
	s.byVerifyTok[next] = id

	return nil
}

func sameToken(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}

	return *a == *b
}

func (s *Storage) SaveToken(ctx context.Context, userID int64, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tokens[token]; ok {
		return storage.ErrTokenExists
	}

	s.nextTokenID++

	s.tokens[token] = models.Token{
		ID:        s.nextTokenID,
		Token:     token,
		UserID:    userID,
		Kind:      models.TokenKindBearer,
		CreatedAt: s.now().UTC(),
	}
	s.tokensByUser[userID] = append(s.tokensByUser[userID], token)

	return nil
}

// * ValidTokensByUser: expired = false AND revoked = false
func (s *Storage) ValidTokensByUser(ctx context.Context, userID int64) ([]models.Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Token

	for _, tok := range s.tokensByUser[userID] {
		t := s.tokens[tok]
		if t.IsValid() {
			out = append(out, t)
		}
	}

	return out, nil
}

// * RevokeAllUserTokens помечает все валидные токены пользователя под одной блокировкой
func (s *Storage) RevokeAllUserTokens(ctx context.Context, userID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, tok := range s.tokensByUser[userID] {
		t := s.tokens[tok]
		if !t.IsValid() {
			continue
		}

		t.Expired = true
		t.Revoked = true
		s.tokens[tok] = t
	}

	return nil
}

func (s *Storage) Token(ctx context.Context, token string) (models.Token, error) {
	if err := ctx.Err(); err != nil {
		return models.Token{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tokens[token]
	if !ok {
		return models.Token{}, storage.ErrTokenNotFound
	}

	return t, nil
}

func cloneUser(u models.User) models.User {
	if u.EmailVerificationToken != nil {
		v := *u.EmailVerificationToken
		u.EmailVerificationToken = &v
	}

	if u.EmailVerifiedAt != nil {
		v := *u.EmailVerifiedAt
		u.EmailVerifiedAt = &v
	}

	return u
}
