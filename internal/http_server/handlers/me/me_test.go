package me

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"token_auth/internal/lib/logger/handlers/slogdiscard"
	"token_auth/internal/middleware/authn"
	"token_auth/internal/models"
)

func TestMeHandler(t *testing.T) {
	h := New(slogdiscard.NewDiscardLogger())

	user := models.User{ID: 7, Name: "Alice", Username: "alice", Email: "a@x.com", Role: models.RoleUser, PassHash: "secret-hash"}

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req = req.WithContext(authn.WithUser(req.Context(), user))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok","id":7,"username":"alice","email":"a@x.com","name":"Alice","role":"USER"}`, rr.Body.String())

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
