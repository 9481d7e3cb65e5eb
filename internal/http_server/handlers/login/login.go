package login

import (
	"context"
	"log/slog"
	"net/http"

	"token_auth/internal/auth"
	"token_auth/internal/http_server/handlers"

	"github.com/go-chi/chi/middleware"
)

type Request struct {
	UsernameOrEmail string `json:"username_or_email" validate:"required,max=255"`
	Password        string `json:"password" validate:"required,maxbytes=72"`
}

type Loginer interface {
	Login(ctx context.Context, identifier, password string) (auth.Tokens, error)
}

func New(log *slog.Logger, loginer Loginer) http.HandlerFunc {
	validate := handlers.NewValidator()

	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.login.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request

		if !handlers.Decode(w, r, log, validate, &req) {
			return
		}

		tokens, err := loginer.Login(r.Context(), req.UsernameOrEmail, req.Password)
		if err != nil {
			handlers.AuthError(w, r, log, err, handlers.InvalidTokenMsg)

			return
		}

		log.Info("user logged in successfully")

		handlers.Tokens(w, r, tokens)
	}
}
