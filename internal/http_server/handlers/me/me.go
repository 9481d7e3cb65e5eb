package me

import (
	"log/slog"
	"net/http"

	"token_auth/internal/http_server/handlers"
	resp "token_auth/internal/lib/api/response"
	"token_auth/internal/middleware/authn"
	"token_auth/internal/models"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type Response struct {
	resp.Response
	ID       int64       `json:"id"`
	Username string      `json:"username"`
	Email    string      `json:"email"`
	Name     string      `json:"name"`
	Role     models.Role `json:"role"`
}

// New expects authn middleware in front of it.
func New(log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.me.New"

		user, ok := authn.UserFromContext(r.Context())
		if !ok {
			log.Error("route is not protected by authn middleware",
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
			handlers.Fail(w, r, http.StatusInternalServerError, "Internal error")

			return
		}

		render.JSON(w, r, Response{
			Response: resp.OK(),
			ID:       user.ID,
			Username: user.Username,
			Email:    user.Email,
			Name:     user.Name,
			Role:     user.Role,
		})
	}
}
