package apiserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"lingua-go/internal/auth"
	"lingua-go/internal/config"
	"lingua-go/internal/middleware"
	"lingua-go/internal/services"
	"lingua-go/internal/storage"
)

type memoryBlacklist struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

func (m *memoryBlacklist) Add(ctx context.Context, jti string, expTime time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[jti] = expTime
	return nil
}

func (m *memoryBlacklist) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.revoked[jti]
	return ok, nil
}

// newTestRouter 搭建带认证中间件的最小路由，走真实的服务层和内存数据库。
func newTestRouter(t *testing.T) *mux.Router {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, storage.AutoMigrateTables(db))

	cfg := config.Config{
		Auth: config.AuthConfig{
			JWTSecretKey: "handler-test-secret",
			JWTExpiry:    time.Hour,
			CookieName:   "token",
		},
	}

	userRepo := storage.NewGormUserRepository(db)
	blacklist := &memoryBlacklist{revoked: make(map[string]time.Time)}
	authService := services.NewAuthService(userRepo, blacklist, nil, cfg)
	authHandler := NewAuthHandler(authService, cfg.Auth)
	userHandler := NewUserHandler(services.NewUserService(userRepo, storage.NewGormFriendshipRepository(db)))

	router := mux.NewRouter()
	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/auth/signup", authHandler.Signup).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", authHandler.Login).Methods(http.MethodPost)

	authed := api.NewRoute().Subrouter()
	authed.Use(middleware.AuthMiddleware(cfg.Auth, blacklist, userRepo))
	authed.HandleFunc("/auth/logout", authHandler.Logout).Methods(http.MethodPost)
	authed.HandleFunc("/users/me", userHandler.GetMe).Methods(http.MethodGet)

	return router
}

func doJSON(t *testing.T, router *mux.Router, method, path string, body any, decorate func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if decorate != nil {
		decorate(req)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestSignupEndpoint(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/auth/signup", map[string]string{
		"email":            "alice@example.com",
		"password":         "secret123",
		"fullName":         "Alice",
		"nativeLanguage":   "English",
		"learningLanguage": "Korean",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)
	require.NotNil(t, resp.User)
	assert.Equal(t, "alice@example.com", resp.User.Email)
	// 哈希不出现在响应中
	assert.NotContains(t, rec.Body.String(), "passwordHash")

	// 会话 Cookie 随响应下发
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "token", cookies[0].Name)
	assert.Equal(t, resp.Token, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)

	// 缺字段返回 400
	rec = doJSON(t, router, http.MethodPost, "/api/v1/auth/signup", map[string]string{"email": "x@y.com"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginEndpointUnauthorized(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/auth/signup", map[string]string{
		"email":            "alice@example.com",
		"password":         "secret123",
		"fullName":         "Alice",
		"nativeLanguage":   "English",
		"learningLanguage": "Korean",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email": "alice@example.com", "password": "wrong",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// 未注册邮箱得到同样的状态码
	rec = doJSON(t, router, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email": "nobody@example.com", "password": "secret123",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProtectedRouteRequiresToken(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/users/me", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/v1/users/me", nil, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer not-a-token")
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutRevokesSession(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/auth/signup", map[string]string{
		"email":            "alice@example.com",
		"password":         "secret123",
		"fullName":         "Alice",
		"nativeLanguage":   "English",
		"learningLanguage": "Korean",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var resp AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	withToken := func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+resp.Token)
	}

	// 登出前令牌有效
	rec = doJSON(t, router, http.MethodGet, "/api/v1/users/me", nil, withToken)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/auth/logout", nil, withToken)
	require.Equal(t, http.StatusOK, rec.Code)

	// 清除 Cookie
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Empty(t, cookies[0].Value)
	assert.Negative(t, cookies[0].MaxAge)

	// 被吊销的令牌不能再使用
	rec = doJSON(t, router, http.MethodGet, "/api/v1/users/me", nil, withToken)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

var _ auth.TokenBlacklist = (*memoryBlacklist)(nil)
