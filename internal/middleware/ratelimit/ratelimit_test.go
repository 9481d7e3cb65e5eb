package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimitByIP(t *testing.T) {
	h := limitByIP(2, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = addr

		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		return rr
	}

	assert.Equal(t, http.StatusNoContent, do("10.0.0.1:1000").Code)
	assert.Equal(t, http.StatusNoContent, do("10.0.0.1:1001").Code)

	limited := do("10.0.0.1:1002")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Contains(t, limited.Body.String(), `"status":"error"`)

	assert.Equal(t, http.StatusNoContent, do("10.0.0.2:1000").Code, "other clients keep their own budget")
}
