package models

import "time"

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

type Status string

const (
	StatusInactive Status = "INACTIVE"
	StatusActive   Status = "ACTIVE"
)

type User struct {
	ID                     int64
	Name                   string
	Username               string
	Email                  string
	PassHash               string
	Role                   Role
	Status                 Status
	EmailVerificationToken *string
	EmailVerifiedAt        *time.Time
	CreatedAt              time.Time
}

// * IsActive сообщает, подтвердил ли пользователь email
func (u *User) IsActive() bool {
	return u.Status == StatusActive
}

type TokenKind string

const (
	TokenKindBearer TokenKind = "BEARER"
)

type Token struct {
	ID        int64
	Token     string
	UserID    int64
	Kind      TokenKind
	Expired   bool
	Revoked   bool
	CreatedAt time.Time
}

// * IsValid: токен валиден только если ни один флаг не выставлен
func (t *Token) IsValid() bool {
	return !t.Expired && !t.Revoked
}

// Message is the envelope handed to a mail transport.
type Message struct {
	Email   string `json:"to"`
	Name    string `json:"name"`
	Subject string `json:"subject"`
	Link    string `json:"link"`
	Body    string `json:"body"`
	Purpose string `json:"purpose"`
}
