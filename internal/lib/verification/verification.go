package verification

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

const Path = "/api/auth/verify-email"

// * NewToken генерирует одноразовый токен подтверждения (UUIDv4, 122 бита энтропии)
func NewToken() string {
	return uuid.NewString()
}

// * IsWellFormed отсеивает заведомо неверные токены до похода в базу
func IsWellFormed(token string) bool {
	parsed, err := uuid.Parse(token)
	if err != nil {
		return false
	}

	return parsed.Version() == 4
}

// * Link собирает ссылку подтверждения для письма
func Link(baseURL, token string) string {
	return fmt.Sprintf("%s%s?token=%s", strings.TrimRight(baseURL, "/"), Path, url.QueryEscape(token))
}
