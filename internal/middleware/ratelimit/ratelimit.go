package ratelimit

import (
	"net/http"
	"time"

	resp "token_auth/internal/lib/api/response"

	"github.com/go-chi/httprate"
	"github.com/go-chi/render"
)

func Login() func(http.Handler) http.Handler {
	return limitByIP(10, 5*time.Minute)
}

func Register() func(http.Handler) http.Handler {
	return limitByIP(5, time.Hour)
}

func Refresh() func(http.Handler) http.Handler {
	return limitByIP(30, 10*time.Minute)
}

func Logout() func(http.Handler) http.Handler {
	return limitByIP(20, 10*time.Minute)
}

func Verify() func(http.Handler) http.Handler {
	return limitByIP(10, 10*time.Minute)
}

func ResendVerification() func(http.Handler) http.Handler {
	return limitByIP(3, time.Hour)
}

func Me() func(http.Handler) http.Handler {
	return limitByIP(120, time.Minute)
}

// * limitByIP отвечает тем же JSON-конвертом, что и хендлеры
func limitByIP(limit int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(limit, window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(tooManyRequests),
	)
}

func tooManyRequests(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusTooManyRequests)
	render.JSON(w, r, resp.Error("Too many requests"))
}
