package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"feedbacker/pkg/utils"
)

// AdminAuth guards the admin API with the bearer token issued by the
// login endpoint.
func AdminAuth(jwtSecret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"message": "Missing authorization header",
				})
			}

			tokenParts := strings.Split(authHeader, " ")
			if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"message": "Invalid authorization format",
				})
			}

			claims, err := utils.ParseAdminJWT(tokenParts[1], jwtSecret)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"message": "Invalid token",
				})
			}

			expAt, err := claims.GetExpirationTime()
			if err != nil || time.Now().After(expAt.Time) {
				return c.JSON(http.StatusForbidden, echo.Map{
					"message": "Token expired",
				})
			}

			if !strings.EqualFold(claims.Role, "admin") {
				return c.JSON(http.StatusForbidden, echo.Map{
					"message": "Admin access required",
				})
			}

			c.Set("role", claims.Role)

			return next(c)
		}
	}
}
