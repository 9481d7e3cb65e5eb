package register

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
	Name     string `json:"name" validate:"required,max=100"`
	Username string `json:"username" validate:"required,min=3,max=50,alphanum"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,maxbytes=72"`
}

type Registerer interface {
	Register(ctx context.Context, name, username, email, password string) (string, error)
}

func New(log *slog.Logger, registerer Registerer) http.HandlerFunc {
	validate := handlers.NewValidator()

	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.register.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request

		if !handlers.Decode(w, r, log, validate, &req) {
			return
		}

		msg, err := registerer.Register(r.Context(), req.Name, req.Username, req.Email, req.Password)
		if err != nil {
			handlers.AuthError(w, r, log, err, handlers.InvalidTokenMsg)

			return
		}

		log.Info("user registered", slog.String("username", req.Username))

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, resp.OKWithMessage(msg))
	}
}
