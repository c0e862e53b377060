package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lectorium/ticketing/internal/utils"
)

const identityTestSecret = "identity-test-secret"

// runOptionalJWT sends a request through OptionalJWT into a handler that
// records what the middleware stored in the context.
func runOptionalJWT(t *testing.T, authHeader string) (userID any, status int) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/tickets", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := OptionalJWT(identityTestSecret)(func(c echo.Context) error {
		userID = c.Get("user_id")
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, handler(c))
	return userID, rec.Code
}

func TestOptionalJWT_ValidTokenSetsUserID(t *testing.T) {
	tok, err := utils.NewAccessToken(identityTestSecret, "5", "USER", 30)
	require.NoError(t, err)

	userID, status := runOptionalJWT(t, "Bearer "+tok.Token)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "5", userID, "a valid bearer token must surface the subject on the reservation path")
}

func TestOptionalJWT_NoTokenIsGuest(t *testing.T) {
	userID, status := runOptionalJWT(t, "")
	assert.Equal(t, http.StatusOK, status, "anonymous reservations must pass through")
	assert.Nil(t, userID)
}

func TestOptionalJWT_InvalidTokenIsGuest(t *testing.T) {
	userID, status := runOptionalJWT(t, "Bearer not-a-jwt")
	assert.Equal(t, http.StatusOK, status)
	assert.Nil(t, userID)
}

func TestOptionalJWT_WrongSecretIsGuest(t *testing.T) {
	tok, err := utils.NewAccessToken("some-other-secret", "5", "USER", 30)
	require.NoError(t, err)

	userID, status := runOptionalJWT(t, "Bearer "+tok.Token)
	assert.Equal(t, http.StatusOK, status)
	assert.Nil(t, userID)
}
