package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/jwalitptl/careportal/internal/handler"
	"github.com/jwalitptl/careportal/internal/model"
)

type stubSessions map[string]*model.Session

func (s stubSessions) ValidateToken(_ context.Context, token string) (*model.Session, error) {
	if session, ok := s[token]; ok {
		return session, nil
	}
	return nil, errors.New("invalid token")
}

func newGateRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	sessions := stubSessions{
		"patient-token": {UserID: uuid.New(), Role: model.RolePatient},
		"doctor-token":  {UserID: uuid.New(), Role: model.RoleDoctor},
	}
	m := NewAuthMiddleware(sessions, "careportal_session", "https://portal.example.com/")

	r := gin.New()
	dash := r.Group("/api/v1/dashboard", m.Authenticate())
	dash.GET("/doctors", func(c *gin.Context) {
		s, _ := handler.CurrentSession(c)
		c.String(http.StatusOK, string(s.Role))
	})
	dash.GET("/patient/profile", m.RequireRole(model.RolePatient), func(c *gin.Context) { c.Status(http.StatusOK) })
	dash.GET("/doctor/patients", m.RequireRole(model.RoleDoctor), func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func do(r *gin.Engine, path string, mutate func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if mutate != nil {
		mutate(req)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func bearer(token string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func TestGateWithoutSession(t *testing.T) {
	r := newGateRouter()

	w := do(r, "/api/v1/dashboard/doctors", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, "/api/v1/dashboard/doctors", func(req *http.Request) { req.Header.Set("Accept", "text/html,application/xhtml+xml") })
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://portal.example.com/", w.Header().Get("Location"))

	w = do(r, "/api/v1/dashboard/doctors", bearer("forged"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGateAcceptsBearerAndCookie(t *testing.T) {
	r := newGateRouter()

	w := do(r, "/api/v1/dashboard/doctors", bearer("doctor-token"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "doctor", w.Body.String())

	w = do(r, "/api/v1/dashboard/doctors", func(req *http.Request) {
		req.AddCookie(&http.Cookie{Name: "careportal_session", Value: "patient-token"})
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "patient", w.Body.String())
}

func TestGateUsesCookieBehindOtherAuthScheme(t *testing.T) {
	r := newGateRouter()

	w := do(r, "/api/v1/dashboard/doctors", func(req *http.Request) {
		req.Header.Set("Authorization", "Basic cHJveHk6c2VjcmV0")
		req.AddCookie(&http.Cookie{Name: "careportal_session", Value: "patient-token"})
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "patient", w.Body.String())

	w = do(r, "/api/v1/dashboard/doctors", func(req *http.Request) {
		req.Header.Set("Authorization", "Basic cHJveHk6c2VjcmV0")
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGateEnforcesRolePrefixes(t *testing.T) {
	r := newGateRouter()

	assert.Equal(t, http.StatusOK, do(r, "/api/v1/dashboard/patient/profile", bearer("patient-token")).Code)
	assert.Equal(t, http.StatusForbidden, do(r, "/api/v1/dashboard/patient/profile", bearer("doctor-token")).Code)
	assert.Equal(t, http.StatusOK, do(r, "/api/v1/dashboard/doctor/patients", bearer("doctor-token")).Code)
	assert.Equal(t, http.StatusForbidden, do(r, "/api/v1/dashboard/doctor/patients", bearer("patient-token")).Code)

	w := do(r, "/api/v1/dashboard/doctor/patients", func(req *http.Request) {
		bearer("patient-token")(req)
		req.Header.Set("Accept", "text/html")
	})
	assert.Equal(t, http.StatusFound, w.Code)
}
