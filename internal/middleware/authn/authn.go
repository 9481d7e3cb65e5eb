package authn

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"token_auth/internal/auth"
	resp "token_auth/internal/lib/api/response"
	"token_auth/internal/lib/logger/sl"
	"token_auth/internal/models"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

const bearerPrefix = "Bearer "

type ctxKey struct{}

type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (models.User, error)
}

// * BearerToken достает токен из заголовка Authorization: Bearer <token>
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}

	token := strings.TrimSpace(header[len(bearerPrefix):])

	return token, token != ""
}

// * New пропускает запрос дальше только с валидным access token
func New(log *slog.Logger, authenticator Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middleware.authn"

			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			token, ok := BearerToken(r)
			if !ok {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("Missing bearer token"))

				return
			}

			user, err := authenticator.Authenticate(r.Context(), token)
			if err != nil {
				if errors.Is(err, auth.ErrInvalidToken) {
					render.Status(r, http.StatusUnauthorized)
					render.JSON(w, r, resp.Error("Invalid token"))

					return
				}

				log.Error("failed to authenticate request", sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error("Internal error"))

				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

func WithUser(ctx context.Context, user models.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, user)
}

func UserFromContext(ctx context.Context) (models.User, bool) {
	user, ok := ctx.Value(ctxKey{}).(models.User)

	return user, ok
}
