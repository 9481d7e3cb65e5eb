package verify

import (
	"context"
	"log/slog"
	"net/http"

	"token_auth/internal/auth"
	"token_auth/internal/http_server/handlers"

	"github.com/go-chi/chi/middleware"
)

const invalidTokenMsg = "Invalid verification token"

type Request struct {
	Token string `json:"token" validate:"required"`
}

type Verifier interface {
	VerifyEmail(ctx context.Context, token string) (auth.Tokens, error)
}

// New handles POST with a JSON body.
func New(log *slog.Logger, verifier Verifier) http.HandlerFunc {
	validate := handlers.NewValidator()

	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.verify.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request

		if !handlers.Decode(w, r, log, validate, &req) {
			return
		}

		verify(w, r, log, verifier, req.Token)
	}
}

// NewLink handles GET ?token= from the emailed link.
func NewLink(log *slog.Logger, verifier Verifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.verify.NewLink"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		token := r.URL.Query().Get("token")
		if token == "" {
			handlers.Fail(w, r, http.StatusBadRequest, "field token is a required field")

			return
		}

		verify(w, r, log, verifier, token)
	}
}

func verify(w http.ResponseWriter, r *http.Request, log *slog.Logger, verifier Verifier, token string) {
	tokens, err := verifier.VerifyEmail(r.Context(), token)
	if err != nil {
		handlers.AuthError(w, r, log, err, invalidTokenMsg)

		return
	}

	log.Info("email verified")

	handlers.Tokens(w, r, tokens)
}
