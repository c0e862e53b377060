package handler

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lectorium/ticketing/internal/utils"
)

// AdminAuthHandler issues access tokens for the single back-office
// account.  Credentials come from the environment; there is no admin user
// table.
type AdminAuthHandler struct {
	Email        string
	PasswordHash string // bcrypt
	JWTSecret    string
	TokenTTLMin  int
}

// Login handles POST /v1/admin/login.  Wrong email and wrong password
// produce the same 401; the response never says which was off.
func (h *AdminAuthHandler) Login(c echo.Context) error {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	emailOK := subtle.ConstantTimeCompare([]byte(body.Email), []byte(h.Email)) == 1
	passOK := utils.CheckPassword(h.PasswordHash, body.Password)
	if !emailOK || !passOK {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	tok, err := utils.NewAccessToken(h.JWTSecret, body.Email, "ADMIN", h.TokenTTLMin)
	if err != nil {
		c.Logger().Errorf("admin login: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"access_token": tok.Token,
		"expires_at":   tok.Exp,
	})
}
