// file: router/router_test.go

package router_test

import (
	"context"
	"encoding/json"
	"fmt"
	"loan-desk-api/dispatch"
	"loan-desk-api/handler"
	"loan-desk-api/logger"
	"loan-desk-api/model"
	"loan-desk-api/repository"
	"loan-desk-api/router"
	"loan-desk-api/service"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"
)

// stubUserRepo serves a fixed user set without a database.
type stubUserRepo struct {
	byName map[string]*model.User
	byID   map[int]*model.User
}

func (r *stubUserRepo) GetUserByUsername(username string) (*model.User, error) {
	if user, ok := r.byName[username]; ok {
		return user, nil
	}
	return nil, fmt.Errorf("user %q not found", username)
}

func (r *stubUserRepo) GetUserByID(id int) (*model.User, error) {
	if user, ok := r.byID[id]; ok {
		return user, nil
	}
	return nil, fmt.Errorf("user %d not found", id)
}

var testRouter http.Handler

func TestMain(m *testing.M) {
	logger.Init()

	hash, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	officer := &model.User{
		ID: 1, Username: "officer1", PasswordHash: string(hash),
		Role: model.RoleLoanOfficer, TenantID: "T1", Active: true,
	}
	users := &stubUserRepo{
		byName: map[string]*model.User{officer.Username: officer},
		byID:   map[int]*model.User{officer.ID: officer},
	}

	tokens := service.NewTokenService(repository.NewMemoryTokenStore(), "router-test-secret")
	authService := service.NewAuthService(users, tokens)

	registry := dispatch.NewRegistry()
	registry.Register(dispatch.Descriptor{Name: "ping"}, func(ctx context.Context, args dispatch.Args) (any, error) {
		return map[string]any{"pong": true}, nil
	})

	testRouter = router.NewRouter(
		handler.NewAuthHandler(authService),
		handler.NewDispatchHandler(registry),
		handler.NewAuthMiddleware(tokens, "router-test-internal-key"),
	)

	os.Exit(m.Run())
}

func loginForTest(t *testing.T) string {
	t.Helper()
	req, _ := http.NewRequest("POST", "/api/auth/login",
		strings.NewReader(`{"username":"officer1","password":"password123"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	testRouter.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code, "Login request should be successful")

	var response model.LoginResponse
	err := json.Unmarshal(rr.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.NotEmpty(t, response.AccessToken)
	return response.AccessToken
}

func TestHealthCheck(t *testing.T) {
	req, _ := http.NewRequest("GET", "/health", nil)
	rr := httptest.NewRecorder()
	testRouter.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	expectedBody := `{"status":"API is healthy and running"}`
	assert.JSONEq(t, expectedBody, rr.Body.String())
}

func TestFunctionsRoute(t *testing.T) {
	token := loginForTest(t)

	t.Run("anonymous request is unauthorized", func(t *testing.T) {
		req, _ := http.NewRequest("POST", "/api/functions",
			strings.NewReader(`{"functionName":"ping","args":{}}`))
		rr := httptest.NewRecorder()
		testRouter.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("authenticated officer reaches the registry", func(t *testing.T) {
		req, _ := http.NewRequest("POST", "/api/functions",
			strings.NewReader(`{"functionName":"ping","args":{}}`))
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		testRouter.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)

		var envelope dispatch.Envelope
		assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &envelope))
		assert.False(t, envelope.IsError())
	})

	t.Run("internal caller bypasses login", func(t *testing.T) {
		req, _ := http.NewRequest("POST", "/api/functions",
			strings.NewReader(`{"functionName":"ping","args":{}}`))
		req.Header.Set(handler.InternalCallHeader, "chat-integration")
		req.Header.Set(handler.InternalKeyHeader, "router-test-internal-key")
		rr := httptest.NewRecorder()
		testRouter.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
	})
}

func TestAuthFlows(t *testing.T) {
	req, _ := http.NewRequest("POST", "/api/auth/login",
		strings.NewReader(`{"username":"officer1","password":"password123"}`))
	rr := httptest.NewRecorder()
	testRouter.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	var refreshCookie *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == "refresh_token" {
			refreshCookie = c
		}
	}
	assert.NotNil(t, refreshCookie)

	t.Run("successful token refresh", func(t *testing.T) {
		req, _ := http.NewRequest("POST", "/api/auth/refresh", nil)
		req.AddCookie(refreshCookie)
		rr := httptest.NewRecorder()
		testRouter.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)

		var refreshResponse model.RefreshResponse
		assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &refreshResponse))
		assert.NotEmpty(t, refreshResponse.AccessToken)
	})

	t.Run("replayed refresh cookie is rejected", func(t *testing.T) {
		req, _ := http.NewRequest("POST", "/api/auth/refresh", nil)
		req.AddCookie(refreshCookie)
		rr := httptest.NewRecorder()
		testRouter.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("logout always succeeds", func(t *testing.T) {
		req, _ := http.NewRequest("POST", "/api/auth/logout", nil)
		rr := httptest.NewRecorder()
		testRouter.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("wrong password", func(t *testing.T) {
		req, _ := http.NewRequest("POST", "/api/auth/login",
			strings.NewReader(`{"username":"officer1","password":"wrongpassword"}`))
		rr := httptest.NewRecorder()
		testRouter.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}
