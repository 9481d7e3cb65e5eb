package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"token_auth/internal/lib/jwt"
	"token_auth/internal/lib/logger/sl"
	"token_auth/internal/lib/password"
	"token_auth/internal/lib/verification"
	"token_auth/internal/models"
	"token_auth/internal/storage"
)

var (
	ErrConflict           = errors.New("conflict")
	ErrUsernameTaken      = fmt.Errorf("%w: username is already taken", ErrConflict)
	ErrEmailTaken         = fmt.Errorf("%w: email is already registered", ErrConflict)
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotVerified        = errors.New("email not verified")
	ErrInvalidToken       = errors.New("invalid token")
	ErrNotFound           = errors.New("user not found")
)

const (
	MsgRegistered     = "Registration successful. Please check your email for verification."
	MsgVerified       = "Email verified successfully"
	MsgLoggedIn       = "Login successful"
	MsgRefreshed      = "Token refreshed successfully"
	MsgLoggedOut      = "Logged out successfully"
	MsgResendAccepted = "If the account exists and is not verified yet, a new verification email has been sent."

	TokenTypeBearer = "Bearer"
)

// Tokens is what login, verify and refresh hand back to the caller.
type Tokens struct {
	Message      string
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    time.Duration
}

type AccountStore interface {
	UserExistsByUsername(ctx context.Context, username string) (bool, error)
	UserExistsByEmail(ctx context.Context, email string) (bool, error)
	UserByUsernameOrEmail(ctx context.Context, identifier string) (models.User, error)
	UserByUsername(ctx context.Context, username string) (models.User, error)
	UserByEmail(ctx context.Context, email string) (models.User, error)
	UserByVerificationToken(ctx context.Context, token string) (models.User, error)
	SaveUser(ctx context.Context, user *models.User) error
	ActivateUser(ctx context.Context, id int64, token string, at time.Time) error
	RotateVerificationToken(ctx context.Context, id int64, old *string, next string) error
}

type TokenLedger interface {
	SaveToken(ctx context.Context, userID int64, token string) error
	RevokeAllUserTokens(ctx context.Context, userID int64) error
	Token(ctx context.Context, token string) (models.Token, error)
}

type TokenCodec interface {
	Issue(kind jwt.Kind, subject string) (string, error)
	ParseSubject(token string) (string, error)
	IsValid(token, subject string, kind jwt.Kind) bool
	TTL(kind jwt.Kind) time.Duration
}

// Notifier must not block: the email goes out in the background.
type Notifier interface {
	SendVerificationEmail(to, name, token string)
}

type Auth struct {
	log      *slog.Logger
	accounts AccountStore
	ledger   TokenLedger
	codec    TokenCodec
	hasher   password.Hasher
	notifier Notifier
	now      func() time.Time

	dummyHash func() (string, error)
}

func New(
	log *slog.Logger,
	accounts AccountStore,
	ledger TokenLedger,
	codec TokenCodec,
	hasher password.Hasher,
	notifier Notifier,
) *Auth {
	return &Auth{
		log:       log,
		accounts:  accounts,
		ledger:    ledger,
		codec:     codec,
		hasher:    hasher,
		notifier:  notifier,
		now:       time.Now,
		dummyHash: sync.OnceValues(func() (string, error) { return hasher.Hash("dummy-password") }),
	}
}

// * Register создает неактивного пользователя и ставит письмо с подтверждением в очередь
func (a *Auth) Register(ctx context.Context, name, username, email, pass string) (string, error) {
	const op = "auth.Register"

	log := a.log.With(
		slog.String("op", op),
		slog.String("username", username),
	)

	email = normalizeEmail(email)

	exists, err := a.accounts.UserExistsByUsername(ctx, username)
	if err != nil {
		log.Error("failed to check username", sl.Err(err))
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if exists {
		log.Info("username is already taken")
		return "", fmt.Errorf("%s: %w", op, ErrUsernameTaken)
	}

	exists, err = a.accounts.UserExistsByEmail(ctx, email)
	if err != nil {
		log.Error("failed to check email", sl.Err(err))
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if exists {
		log.Info("email is already registered")
		return "", fmt.Errorf("%s: %w", op, ErrEmailTaken)
	}

	passHash, err := a.hasher.Hash(pass)
	if err != nil {
		log.Error("failed to generate password hash", sl.Err(err))
		return "", fmt.Errorf("%s: %w", op, err)
	}

	verifyToken := verification.NewToken()

	user := &models.User{
		Name:                   name,
		Username:               username,
		Email:                  email,
		PassHash:               passHash,
		Role:                   models.RoleUser,
		Status:                 models.StatusInactive,
		EmailVerificationToken: &verifyToken,
	}

	if err := a.accounts.SaveUser(ctx, user); err != nil {
		// параллельная регистрация: проверка выше пройдена, но уникальный индекс сработал
		switch {
		case errors.Is(err, storage.ErrUsernameExists):
			return "", fmt.Errorf("%s: %w", op, ErrUsernameTaken)
		case errors.Is(err, storage.ErrEmailExists):
			return "", fmt.Errorf("%s: %w", op, ErrEmailTaken)
		case errors.Is(err, storage.ErrUserExists):
			return "", fmt.Errorf("%s: %w", op, ErrConflict)
		}

		log.Error("failed to save user", sl.Err(err))
		return "", fmt.Errorf("%s: %w", op, err)
	}

	a.notifier.SendVerificationEmail(user.Email, user.Name, verifyToken)

	log.Info("user registered", slog.Int64("uid", user.ID))

	return MsgRegistered, nil
}

// * VerifyEmail активирует аккаунт по одноразовому токену и выдает пару токенов
func (a *Auth) VerifyEmail(ctx context.Context, token string) (Tokens, error) {
	const op = "auth.VerifyEmail"

	log := a.log.With(slog.String("op", op))

	if !verification.IsWellFormed(token) {
		return Tokens{}, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	user, err := a.accounts.UserByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Info("verification token not found")
			return Tokens{}, fmt.Errorf("%s: %w", op, ErrInvalidToken)
		}

		log.Error("failed to find user by verification token", sl.Err(err))
		return Tokens{}, fmt.Errorf("%s: %w", op, err)
	}

	verifiedAt := a.now().UTC()

	if err := a.accounts.ActivateUser(ctx, user.ID, token, verifiedAt); err != nil {
		// токен погашен параллельным запросом между поиском и активацией
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Info("verification token already redeemed", slog.Int64("uid", user.ID))
			return Tokens{}, fmt.Errorf("%s: %w", op, ErrInvalidToken)
		}

		log.Error("failed to activate user", sl.Err(err))
		return Tokens{}, fmt.Errorf("%s: %w", op, err)
	}

	user.Status = models.StatusActive
	user.EmailVerifiedAt = &verifiedAt
	user.EmailVerificationToken = nil

	tokens, err := a.issuePair(ctx, user)
	if err != nil {
		log.Error("failed to issue tokens", sl.Err(err))
		return Tokens{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("email verified", slog.Int64("uid", user.ID))

	tokens.Message = MsgVerified

	return tokens, nil
}

// * Login проверяет учетные данные и отзывает все ранее выданные токены
func (a *Auth) Login(ctx context.Context, identifier, pass string) (Tokens, error) {
	const op = "auth.Login"

	log := a.log.With(slog.String("op", op))

	user, err := a.accounts.UserByUsernameOrEmail(ctx, identifier)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			// тратим то же время, что и на настоящую проверку
			if hash, hashErr := a.dummyHash(); hashErr == nil {
				_ = a.hasher.Verify(pass, hash)
			}

			log.Info("invalid credentials")
			return Tokens{}, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}

		log.Error("failed to get user", sl.Err(err))
		return Tokens{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := a.hasher.Verify(pass, user.PassHash); err != nil {
		if !errors.Is(err, password.ErrMismatch) {
			log.Error("stored password hash is unusable", slog.Int64("uid", user.ID), sl.Err(err))
		}

		log.Info("invalid credentials", slog.Int64("uid", user.ID))
		return Tokens{}, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	if !user.IsActive() {
		log.Info("login attempt before email verification", slog.Int64("uid", user.ID))
		return Tokens{}, fmt.Errorf("%s: %w", op, ErrNotVerified)
	}

	tokens, err := a.issuePair(ctx, user)
	if err != nil {
		log.Error("failed to issue tokens", sl.Err(err))
		return Tokens{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user logged in successfully", slog.Int64("uid", user.ID))

	tokens.Message = MsgLoggedIn

	return tokens, nil
}

// * Refresh выдает новый access token. Refresh token не ротируется и возвращается как есть
func (a *Auth) Refresh(ctx context.Context, refreshToken string) (Tokens, error) {
	const op = "auth.Refresh"

	log := a.log.With(slog.String("op", op))

	subject, err := a.codec.ParseSubject(refreshToken)
	if err != nil {
		log.Info("unparsable refresh token")
		return Tokens{}, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	user, err := a.accounts.UserByUsername(ctx, subject)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("refresh token subject does not resolve to a user")
			return Tokens{}, fmt.Errorf("%s: %w", op, ErrNotFound)
		}

		log.Error("failed to load user", sl.Err(err))
		return Tokens{}, fmt.Errorf("%s: %w", op, err)
	}

	if !a.codec.IsValid(refreshToken, user.Username, jwt.KindRefresh) {
		log.Info("refresh token rejected", slog.Int64("uid", user.ID))
		return Tokens{}, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	access, err := a.codec.Issue(jwt.KindAccess, user.Username)
	if err != nil {
		log.Error("failed to generate access token", sl.Err(err))
		return Tokens{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := a.rotate(ctx, user.ID, access); err != nil {
		log.Error("failed to record access token", sl.Err(err))
		return Tokens{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("refresh successful", slog.Int64("uid", user.ID))

	return Tokens{
		Message:      MsgRefreshed,
		AccessToken:  access,
		RefreshToken: refreshToken,
		TokenType:    TokenTypeBearer,
		ExpiresIn:    a.codec.TTL(jwt.KindAccess),
	}, nil
}

// * Authenticate: access token подписан, не истек, есть в реестре и не отозван, владелец активен
func (a *Auth) Authenticate(ctx context.Context, accessToken string) (models.User, error) {
	const op = "auth.Authenticate"

	subject, err := a.codec.ParseSubject(accessToken)
	if err != nil || !a.codec.IsValid(accessToken, subject, jwt.KindAccess) {
		return models.User{}, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	record, err := a.ledger.Token(ctx, accessToken)
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			return models.User{}, fmt.Errorf("%s: %w", op, ErrInvalidToken)
		}

		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	if !record.IsValid() {
		return models.User{}, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	user, err := a.accounts.UserByUsername(ctx, subject)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return models.User{}, fmt.Errorf("%s: %w", op, ErrInvalidToken)
		}

		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	if user.ID != record.UserID || !user.IsActive() {
		return models.User{}, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	return user, nil
}

// * Logout отзывает все токены владельца access token
func (a *Auth) Logout(ctx context.Context, accessToken string) (string, error) {
	const op = "auth.Logout"

	log := a.log.With(slog.String("op", op))

	user, err := a.Authenticate(ctx, accessToken)
	if err != nil {
		if !errors.Is(err, ErrInvalidToken) {
			log.Error("failed to authenticate", sl.Err(err))
		}

		return "", fmt.Errorf("%s: %w", op, err)
	}

	if err := a.ledger.RevokeAllUserTokens(ctx, user.ID); err != nil {
		log.Error("failed to revoke tokens", sl.Err(err))
		return "", fmt.Errorf("%s: %w", op, err)
	}

	log.Info("logout successful", slog.Int64("uid", user.ID))

	return MsgLoggedOut, nil
}

// * ResendVerification выдает новый токен подтверждения. Ответ одинаковый для любого email
func (a *Auth) ResendVerification(ctx context.Context, email string) (string, error) {
	const op = "auth.ResendVerification"

	log := a.log.With(slog.String("op", op))

	user, err := a.accounts.UserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return MsgResendAccepted, nil
		}

		log.Error("failed to get user", sl.Err(err))
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if user.IsActive() {
		return MsgResendAccepted, nil
	}

	verifyToken := verification.NewToken()

	if err := a.accounts.RotateVerificationToken(ctx, user.ID, user.EmailVerificationToken, verifyToken); err != nil {
		// аккаунт успели подтвердить или токен уже сменили
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Info("verification state changed concurrently", slog.Int64("uid", user.ID))
			return MsgResendAccepted, nil
		}

		log.Error("failed to rotate verification token", sl.Err(err))
		return "", fmt.Errorf("%s: %w", op, err)
	}

	a.notifier.SendVerificationEmail(user.Email, user.Name, verifyToken)

	log.Info("verification email re-sent", slog.Int64("uid", user.ID))

	return MsgResendAccepted, nil
}

func (a *Auth) issuePair(ctx context.Context, user models.User) (Tokens, error) {
	access, err := a.codec.Issue(jwt.KindAccess, user.Username)
	if err != nil {
		return Tokens{}, err
	}

	refresh, err := a.codec.Issue(jwt.KindRefresh, user.Username)
	if err != nil {
		return Tokens{}, err
	}

	if err := a.rotate(ctx, user.ID, access); err != nil {
		return Tokens{}, err
	}

	return Tokens{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    TokenTypeBearer,
		ExpiresIn:    a.codec.TTL(jwt.KindAccess),
	}, nil
}

// * rotate: сначала отзыв, потом запись. Два валидных токена одновременно не бывает
func (a *Auth) rotate(ctx context.Context, userID int64, access string) error {
	if err := a.ledger.RevokeAllUserTokens(ctx, userID); err != nil {
		return err
	}

	return a.ledger.SaveToken(ctx, userID, access)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
