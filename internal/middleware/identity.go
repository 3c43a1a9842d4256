package middleware

// identity.go defines the identity capability handlers receive instead of a
// process-wide auth singleton. The capability is built from the request
// context once JWTAuth has run.

import "github.com/labstack/echo/v4"

// Identity is the acting user's credentials for one request: the stable
// user id and the raw bearer token to forward to the backend API. Bypass is
// true when the E2E toggle produced this identity.
type Identity struct {
	UserID string
	Bearer string
	Bypass bool
}

// FromContext extracts the identity stored by JWTAuth. The second return is
// false when no authenticated user is present.
func FromContext(c echo.Context) (Identity, bool) {
	id := Identity{}
	if v, ok := c.Get("user_id").(string); ok && v != "" {
		id.UserID = v
	}
	if id.UserID == "" {
		return Identity{}, false
	}
	if v, ok := c.Get("bearer").(string); ok {
		id.Bearer = v
		id.Bypass = v == ""
	}
	return id, true
}
