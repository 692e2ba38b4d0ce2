package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// callerIdentity extracts the claims injected by the Auth middleware. Both
// are required: their presence proves the middleware ran.
func callerIdentity(c echo.Context) (subject, role string, err error) {
	subject, _ = c.Get("subject").(string)
	role, _ = c.Get("role").(string)
	if subject == "" || role == "" {
		return "", "", echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	return subject, role, nil
}
