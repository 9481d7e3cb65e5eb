package password

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var ErrMismatch = errors.New("password mismatch")

// Hasher is a one-way hash-and-verify primitive.
type Hasher interface {
	Hash(password string) (string, error)
	// Verify returns ErrMismatch when the password does not match the hash.
	Verify(password, hash string) error
}

type Bcrypt struct {
	cost int
}

func NewBcrypt(cost int) *Bcrypt {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}

	return &Bcrypt{cost: cost}
}

func (b *Bcrypt) Hash(password string) (string, error) {
	const op = "password.Bcrypt.Hash"

	hash, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return string(hash), nil
}

func (b *Bcrypt) Verify(password, hash string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err == nil {
		return nil
	}

	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrMismatch
	}

	return fmt.Errorf("password.Bcrypt.Verify: %w", err)
}

// Multi hashes with the primary hasher and verifies with whichever hasher
// produced the stored hash, so switching algorithms keeps old hashes usable.
type Multi struct {
	primary  Hasher
	bcrypt   Hasher
	argon2id Hasher
}

func NewMulti(primary Hasher, bcryptHasher *Bcrypt, argon *Argon2id) *Multi {
	return &Multi{
		primary:  primary,
		bcrypt:   bcryptHasher,
		argon2id: argon,
	}
}

func (m *Multi) Hash(password string) (string, error) {
	return m.primary.Hash(password)
}

func (m *Multi) Verify(password, hash string) error {
	if strings.HasPrefix(hash, "$"+argon2idID+"$") {
		return m.argon2id.Verify(password, hash)
	}

	return m.bcrypt.Verify(password, hash)
}
