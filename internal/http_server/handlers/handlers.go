package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"token_auth/internal/auth"
	resp "token_auth/internal/lib/api/response"
	"token_auth/internal/lib/logger/sl"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

// InvalidTokenMsg is the default 401 text for a rejected bearer token.
const InvalidTokenMsg = "Invalid token"

type TokensResponse struct {
	resp.Response
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

func Tokens(w http.ResponseWriter, r *http.Request, t auth.Tokens) {
	render.JSON(w, r, TokensResponse{
		Response:     resp.OKWithMessage(t.Message),
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		ExpiresIn:    int64(t.ExpiresIn.Seconds()),
	})
}

// * NewValidator добавляет тег maxbytes: bcrypt ограничивает пароль байтами, а max считает руны
func NewValidator() *validator.Validate {
	v := validator.New()

	_ = v.RegisterValidation("maxbytes", func(fl validator.FieldLevel) bool {
		limit, err := strconv.Atoi(fl.Param())
		if err != nil {
			return false
		}

		return len(fl.Field().String()) <= limit
	})

	return v
}

func Fail(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, resp.Error(msg))
}

// * Decode разбирает и валидирует JSON тело. false означает, что ответ уже отправлен
func Decode(w http.ResponseWriter, r *http.Request, log *slog.Logger, v *validator.Validate, dst any) bool {
	if err := render.DecodeJSON(r.Body, dst); err != nil {
		log.Info("failed to decode request body", sl.Err(err))
		Fail(w, r, http.StatusBadRequest, "Failed to decode request")

		return false
	}

	if err := v.Struct(dst); err != nil {
		var validateErr validator.ValidationErrors
		if !errors.As(err, &validateErr) {
			log.Error("failed to validate request", sl.Err(err))
			Fail(w, r, http.StatusBadRequest, "Invalid request")

			return false
		}

		log.Info("invalid request", sl.Err(err))

		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, resp.ValidationError(validateErr))

		return false
	}

	return true
}

// * AuthError переводит ошибки auth в HTTP статусы. Внутренние ошибки наружу не отдаются
func AuthError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error, invalidTokenMsg string) {
	switch {
	case errors.Is(err, auth.ErrUsernameTaken):
		Fail(w, r, http.StatusConflict, "Username is already taken")
	case errors.Is(err, auth.ErrEmailTaken):
		Fail(w, r, http.StatusConflict, "Email is already registered")
	case errors.Is(err, auth.ErrConflict):
		Fail(w, r, http.StatusConflict, "User already exists")
	case errors.Is(err, auth.ErrInvalidCredentials):
		Fail(w, r, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, auth.ErrNotVerified):
		Fail(w, r, http.StatusForbidden, "Please verify your email first")
	case errors.Is(err, auth.ErrInvalidToken):
		Fail(w, r, http.StatusUnauthorized, invalidTokenMsg)
	case errors.Is(err, auth.ErrNotFound):
		Fail(w, r, http.StatusNotFound, "User not found")
	default:
		log.Error("request failed", sl.Err(err))
		Fail(w, r, http.StatusInternalServerError, "Internal error")
	}
}
