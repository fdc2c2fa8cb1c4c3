package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const (
	PermissionRead   = "graph.read"
	PermissionWrite  = "graph.write"
	PermissionIngest = "graph.ingest"
)

var allPermissions = []string{
	PermissionRead,
	PermissionWrite,
	PermissionIngest,
}

// AuthMiddleware accepts the master API key or a JWT verified against the
// JWKS of the auth service.
func AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		ac := c.(*AppContext)
		app := ac.App

		// Master API Key bypass
		if app.MasterAPIKey != "" && token == app.MasterAPIKey {
			ac.User = &AppUser{
				UserID:      "master",
				Role:        "admin",
				Permissions: allPermissions,
			}
			return next(c)
		}

		if app.Key == nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}

		// Parse JWT token
		parsed, err := jwt.Parse(token, app.Key.Keyfunc)
		if err != nil || !parsed.Valid {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}

		claims, ok := parsed.Claims.(jwt.MapClaims)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}

		user, ok := userFromClaims(claims)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid user ID"})
		}
		ac.User = user

		return next(c)
	}
}

func userFromClaims(claims jwt.MapClaims) (*AppUser, bool) {
	var userID string
	switch id := claims["id"].(type) {
	case string:
		userID = id
	case float64:
		userID = strconv.FormatInt(int64(id), 10)
	default:
		sub, err := claims.GetSubject()
		if err != nil || sub == "" {
			return nil, false
		}
		userID = sub
	}
	if userID == "" {
		return nil, false
	}

	role := "user"
	if roleClaim, ok := claims["role"].(string); ok {
		role = roleClaim
	}

	var permissions []string
	if permsClaim, ok := claims["permissions"].([]any); ok {
		for _, p := range permsClaim {
			if pStr, ok := p.(string); ok {
				permissions = append(permissions, pStr)
			}
		}
	}

	if role == "admin" && len(permissions) == 0 {
		permissions = allPermissions
	}
	if role == "user" && len(permissions) == 0 {
		permissions = []string{PermissionRead}
	}

	return &AppUser{
		UserID:      userID,
		Role:        role,
		Permissions: permissions,
	}, true
}
