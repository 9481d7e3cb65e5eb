package resend

import (
	"context"
	"log/slog"
	"net/http"

	"token_auth/internal/http_server/handlers"
	resp "token_auth/internal/lib/api/response"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type Request struct {
	Email string `json:"email" validate:"required,email,max=255"`
}

type Resender interface {
	ResendVerification(ctx context.Context, email string) (string, error)
}

func New(log *slog.Logger, resender Resender) http.HandlerFunc {
	validate := handlers.NewValidator()

	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.resend.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request

		if !handlers.Decode(w, r, log, validate, &req) {
			return
		}

		msg, err := resender.ResendVerification(r.Context(), req.Email)
		if err != nil {
			handlers.AuthError(w, r, log, err, handlers.InvalidTokenMsg)

			return
		}

		render.JSON(w, r, resp.OKWithMessage(msg))
	}
}
