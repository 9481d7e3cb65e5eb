package refresh

import (
	"context"
	"log/slog"
	"net/http"

	"token_auth/internal/auth"
	"token_auth/internal/http_server/handlers"
	"token_auth/internal/middleware/authn"

	"github.com/go-chi/chi/middleware"
)

const invalidTokenMsg = "Invalid refresh token"

type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (auth.Tokens, error)
}

// * New ждет refresh token в заголовке Authorization: Bearer <token>
func New(log *slog.Logger, refresher Refresher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.refresh.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		token, ok := authn.BearerToken(r)
		if !ok {
			handlers.Fail(w, r, http.StatusBadRequest, invalidTokenMsg)

			return
		}

		tokens, err := refresher.Refresh(r.Context(), token)
		if err != nil {
			handlers.AuthError(w, r, log, err, invalidTokenMsg)

			return
		}

		log.Info("tokens refreshed successfully")

		handlers.Tokens(w, r, tokens)
	}
}
