package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// ErrInvalidToken is returned for every parse or validation failure.
// Callers never learn whether the signature, the structure or the expiry was wrong.
var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	jwt.RegisteredClaims
	Type Kind `json:"typ"`
}

type Codec struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

type Option func(*Codec)

// WithClock overrides the time source used for issuing and validating tokens.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

func New(secret string, accessTTL, refreshTTL time.Duration, opts ...Option) *Codec {
	c := &Codec{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// * TTL возвращает срок жизни токена данного типа
func (c *Codec) TTL(kind Kind) time.Duration {
	if kind == KindRefresh {
		return c.refreshTTL
	}

	return c.accessTTL
}

// * Issue подписывает новый токен для subject
func (c *Codec) Issue(kind Kind, subject string) (string, error) {
	const op = "jwt.Issue"

	if kind != KindAccess && kind != KindRefresh {
		return "", fmt.Errorf("%s: unknown token kind %q", op, kind)
	}

	now := c.now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.TTL(kind))),
		},
		Type: kind,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return signed, nil
}

// * ParseSubject извлекает subject; подпись проверяется, срок жизни нет
func (c *Codec) ParseSubject(tokenStr string) (string, error) {
	claims := &Claims{}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	if _, err := parser.ParseWithClaims(tokenStr, claims, c.keyFunc); err != nil {
		return "", ErrInvalidToken
	}

	if claims.Subject == "" {
		return "", ErrInvalidToken
	}

	return claims.Subject, nil
}

// * Parse полностью валидирует токен: подпись, структура, exp
func (c *Codec) Parse(tokenStr string) (*Claims, error) {
	claims := &Claims{}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)

	token, err := parser.ParseWithClaims(tokenStr, claims, c.keyFunc)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// * IsValid: подпись верна, токен не истек, subject и тип совпадают
func (c *Codec) IsValid(tokenStr, subject string, kind Kind) bool {
	claims, err := c.Parse(tokenStr)
	if err != nil {
		return false
	}

	return claims.Subject == subject && claims.Type == kind
}

func (c *Codec) keyFunc(t *jwt.Token) (interface{}, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
	}

	return c.secret, nil
}
