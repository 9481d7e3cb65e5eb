package logout

import (
	"context"
	"log/slog"
	"net/http"

	"token_auth/internal/http_server/handlers"
	resp "token_auth/internal/lib/api/response"
	"token_auth/internal/middleware/authn"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type Logouter interface {
	Logout(ctx context.Context, accessToken string) (string, error)
}

func New(log *slog.Logger, logouter Logouter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.logout.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		token, ok := authn.BearerToken(r)
		if !ok {
			handlers.Fail(w, r, http.StatusUnauthorized, "Missing bearer token")

			return
		}

		msg, err := logouter.Logout(r.Context(), token)
		if err != nil {
			handlers.AuthError(w, r, log, err, handlers.InvalidTokenMsg)

			return
		}

		log.Info("logout successful")

		render.JSON(w, r, resp.OKWithMessage(msg))
	}
}
