package logout

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"token_auth/internal/auth"
	"token_auth/internal/lib/logger/handlers/slogdiscard"
)

type logouterMock struct {
	mock.Mock
}

func (m *logouterMock) Logout(ctx context.Context, token string) (string, error) {
	args := m.Called(ctx, token)

	return args.String(0), args.Error(1)
}

func TestLogoutHandler(t *testing.T) {
	m := &logouterMock{}
	m.On("Logout", mock.Anything, "at").Return(auth.MsgLoggedOut, nil).Once()
	m.On("Logout", mock.Anything, "revoked").Return("", auth.ErrInvalidToken).Once()

	h := New(slogdiscard.NewDiscardLogger(), m)

	do := func(header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}

		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		return rr
	}

	rr := do("Bearer at")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), auth.MsgLoggedOut)

	assert.Equal(t, http.StatusUnauthorized, do("Bearer revoked").Code)
	assert.Equal(t, http.StatusUnauthorized, do("").Code)

	m.AssertExpectations(t)
}
