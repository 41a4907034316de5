package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/careportal/internal/handler"
	"github.com/jwalitptl/careportal/internal/middleware"
	"github.com/jwalitptl/careportal/internal/model"
	apperrors "github.com/jwalitptl/careportal/pkg/errors"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) SignUp(ctx context.Context, req *model.SignUpRequest) (*model.User, error) {
	args := m.Called(ctx, req)
	user, _ := args.Get(0).(*model.User)
	return user, args.Error(1)
}

func (m *MockService) VerifyEmail(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

func (m *MockService) ResendVerification(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *MockService) Login(ctx context.Context, email, password string) (*model.TokenResponse, error) {
	args := m.Called(ctx, email, password)
	tokens, _ := args.Get(0).(*model.TokenResponse)
	return tokens, args.Error(1)
}

func (m *MockService) Refresh(ctx context.Context, refreshToken string) (*model.TokenResponse, error) {
	args := m.Called(ctx, refreshToken)
	tokens, _ := args.Get(0).(*model.TokenResponse)
	return tokens, args.Error(1)
}

func (m *MockService) Logout(ctx context.Context, accessToken string) error {
	return m.Called(ctx, accessToken).Error(0)
}

func (m *MockService) ForgotPassword(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *MockService) ResetPassword(ctx context.Context, token, newPassword string) error {
	return m.Called(ctx, token, newPassword).Error(0)
}

func setup(t *testing.T) (*gin.Engine, *MockService) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, middleware.RegisterValidators())

	svc := new(MockService)
	r := gin.New()
	NewHandler(svc, CookieConfig{Name: "careportal_session"}).RegisterRoutes(r.Group("/api/v1"))
	return r, svc
}

func post(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestLoginSetsSessionCookie(t *testing.T) {
	r, svc := setup(t)
	svc.On("Login", mock.Anything, "pat@example.com", "Str0ng!pass").Return(&model.TokenResponse{
		AccessToken: "access", RefreshToken: "refresh", ExpiresAt: time.Now().Add(time.Hour), Role: model.RolePatient,
	}, nil)

	w := post(r, "/api/v1/auth/login", `{"email":"pat@example.com","password":"Str0ng!pass"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Status string              `json:"status"`
		Data   model.TokenResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "success", body.Status)
	assert.Equal(t, model.RolePatient, body.Data.Role)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "careportal_session", cookies[0].Name)
	assert.Equal(t, "access", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
}

func TestLoginErrorsUseEnvelope(t *testing.T) {
	r, svc := setup(t)
	svc.On("Login", mock.Anything, "pat@example.com", "nope").Return(nil, apperrors.Unauthorized("invalid email or password"))

	w := post(r, "/api/v1/auth/login", `{"email":"pat@example.com","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var body handler.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "invalid email or password", body.Message)
}

func TestSignUpValidatesBody(t *testing.T) {
	r, svc := setup(t)

	w := post(r, "/api/v1/auth/signup", `{"email":"pat@example.com","password":"weak","full_name":"Pat","dob":"1990-04-01","phone":"123","address":"x","gender":"female"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "password must be at least 8 characters")
	assert.Contains(t, w.Body.String(), "phone must be exactly 10 digits")
	svc.AssertNotCalled(t, "SignUp", mock.Anything, mock.Anything)
}

func TestForgotPasswordAlwaysOK(t *testing.T) {
	r, svc := setup(t)
	svc.On("ForgotPassword", mock.Anything, "ghost@example.com").Return(nil)

	w := post(r, "/api/v1/auth/forgot-password", `{"email":"ghost@example.com"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestLogoutClearsCookie(t *testing.T) {
	r, svc := setup(t)
	svc.On("Logout", mock.Anything, "access").Return(nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: "careportal_session", Value: "access"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "", cookies[0].Value)
	assert.True(t, cookies[0].MaxAge < 0)
	svc.AssertExpectations(t)
}
