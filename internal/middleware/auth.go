package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/careportal/internal/handler"
	"github.com/jwalitptl/careportal/internal/model"
)

// SessionValidator resolves an access token to a session.
type SessionValidator interface {
	ValidateToken(ctx context.Context, token string) (*model.Session, error)
}

type AuthMiddleware struct {
	sessions   SessionValidator
	cookieName string
	homeURL    string
}

func NewAuthMiddleware(sessions SessionValidator, cookieName, siteURL string) *AuthMiddleware {
	return &AuthMiddleware{
		sessions:   sessions,
		cookieName: cookieName,
		homeURL:    strings.TrimRight(siteURL, "/") + "/",
	}
}

// Authenticate requires a session from the bearer token or the session cookie.
// Any failure to resolve one counts as no session.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := m.token(c)
		if token == "" {
			m.deny(c, http.StatusUnauthorized, "authentication required")
			return
		}

		session, err := m.sessions.ValidateToken(c.Request.Context(), token)
		if err != nil {
			log.Debug().Err(err).Str("path", c.Request.URL.Path).Msg("Session rejected")
			m.deny(c, http.StatusUnauthorized, "authentication required")
			return
		}

		handler.SetSession(c, session)
		c.Next()
	}
}

// RequireRole only lets sessions with the given role through. Use after Authenticate.
func (m *AuthMiddleware) RequireRole(role model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := handler.CurrentSession(c)
		if !ok {
			m.deny(c, http.StatusUnauthorized, "authentication required")
			return
		}
		if session.Role != role {
			m.deny(c, http.StatusForbidden, "this area is only available to "+string(role)+"s")
			return
		}
		c.Next()
	}
}

// token prefers a bearer header and otherwise uses the session cookie.
// Other Authorization schemes are ignored.
func (m *AuthMiddleware) token(c *gin.Context) string {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	if cookie, err := c.Cookie(m.cookieName); err == nil {
		return cookie
	}
	return ""
}

// deny sends browser navigations home and gives API clients a status code.
func (m *AuthMiddleware) deny(c *gin.Context, status int, message string) {
	if wantsHTML(c.Request) {
		c.Redirect(http.StatusFound, m.homeURL)
		c.Abort()
		return
	}
	c.AbortWithStatusJSON(status, handler.NewErrorResponse(message))
}

func wantsHTML(r *http.Request) bool {
	return r.Method == http.MethodGet && strings.Contains(r.Header.Get("Accept"), "text/html")
}
