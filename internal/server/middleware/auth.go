package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var errNoKeys = errors.New("neither AUTH_URL nor AUTH_SECRET is configured")

// NewKeyfunc picks how tokens are verified: with the JWKS published at
// authURL + "/jwks" when authURL is set, else with the shared HS256 secret.
func NewKeyfunc(authURL, secret string) (jwt.Keyfunc, error) {
	if authURL != "" {
		k, err := keyfunc.NewDefault([]string{strings.TrimSuffix(authURL, "/") + "/jwks"})
		if err != nil {
			return nil, fmt.Errorf("failed to load jwks keys: %w", err)
		}
		return k.Keyfunc, nil
	}
	if secret != "" {
		return HS256Keyfunc([]byte(secret)), nil
	}
	return nil, errNoKeys
}

func HS256Keyfunc(secret []byte) jwt.Keyfunc {
	return func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	}
}

func unauthorized(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, map[string]any{"success": false, "error": msg})
}

func AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		token, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || token == "" {
			return unauthorized(c, "Token is missing")
		}

		ac := c.(*AppContext)
		parsed, err := jwt.Parse(token, ac.App.Keyfunc)
		if err != nil || !parsed.Valid {
			return unauthorized(c, "Token is invalid")
		}

		claims, ok := parsed.Claims.(jwt.MapClaims)
		if !ok {
			return unauthorized(c, "Token is invalid")
		}
		userID, ok := userIDFromClaims(claims)
		if !ok {
			return unauthorized(c, "Invalid user ID")
		}

		ac.User = &AppUser{UserID: userID}
		return next(c)
	}
}

// userIDFromClaims reads the subject, falling back to an "id" claim that
// may be a string or a number.
func userIDFromClaims(claims jwt.MapClaims) (string, bool) {
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		return sub, true
	}
	switch id := claims["id"].(type) {
	case string:
		return id, id != ""
	case float64:
		return strconv.FormatInt(int64(id), 10), true
	}
	return "", false
}
