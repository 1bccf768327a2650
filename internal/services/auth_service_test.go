package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lingua-go/internal/auth"
	"lingua-go/internal/storage"
)

func newAuthService(t *testing.T, verifier *auth.GoogleVerifier) (AuthService, *fakeBlacklist) {
	t.Helper()
	db := newTestDB(t)
	blacklist := newFakeBlacklist()
	svc := NewAuthService(storage.NewGormUserRepository(db), blacklist, verifier, testConfig())
	return svc, blacklist
}

func validSignupInput() SignupInput {
	return SignupInput{
		Email:            "alice@example.com",
		Password:         "secret123",
		FullName:         "Alice",
		NativeLanguage:   "English",
		LearningLanguage: "Korean",
	}
}

func TestSignupSuccess(t *testing.T) {
	svc, _ := newAuthService(t, nil)

	token, user, err := svc.Signup(context.Background(), validSignupInput())
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	require.NotNil(t, user)
	assert.NotZero(t, user.ID)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.NotEqual(t, "secret123", user.PasswordHash)
	// 注册时必须分配一个占位头像
	assert.True(t, strings.HasPrefix(user.ProfilePic, "https://avatar.iran.liara.run/public/"))
}

func TestSignupValidation(t *testing.T) {
	svc, _ := newAuthService(t, nil)
	ctx := context.Background()

	missing := validSignupInput()
	missing.FullName = ""
	_, _, err := svc.Signup(ctx, missing)
	assert.ErrorIs(t, err, ErrMissingFields)

	short := validSignupInput()
	short.Password = "12345"
	_, _, err = svc.Signup(ctx, short)
	assert.ErrorIs(t, err, ErrPasswordTooShort)

	badEmail := validSignupInput()
	badEmail.Email = "not-an-email"
	_, _, err = svc.Signup(ctx, badEmail)
	assert.ErrorIs(t, err, ErrInvalidEmail)
}

func TestSignupDuplicateEmail(t *testing.T) {
	svc, _ := newAuthService(t, nil)
	ctx := context.Background()

	_, _, err := svc.Signup(ctx, validSignupInput())
	require.NoError(t, err)

	dup := validSignupInput()
	dup.FullName = "Another Alice"
	_, _, err = svc.Signup(ctx, dup)
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestLoginSuccess(t *testing.T) {
	svc, _ := newAuthService(t, nil)
	ctx := context.Background()

	_, created, err := svc.Signup(ctx, validSignupInput())
	require.NoError(t, err)

	token, user, err := svc.Login(ctx, "alice@example.com", "secret123")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, created.ID, user.ID)
}

// 未注册邮箱和错误密码必须返回同一个错误。
func TestLoginInvalidCredentialsUniform(t *testing.T) {
	svc, _ := newAuthService(t, nil)
	ctx := context.Background()

	_, _, err := svc.Signup(ctx, validSignupInput())
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, "nobody@example.com", "secret123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, "alice@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestGoogleLoginCreatesUserOnFirstSight(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "good-token", r.URL.Query().Get("id_token"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"email":"bob@gmail.com","name":"Bob","picture":"https://lh3.example.com/bob.png","aud":"","sub":"109"}`))
	}))
	defer ts.Close()

	db := newTestDB(t)
	cfg := testConfig()
	cfg.Google.TokenInfoURL = ts.URL
	verifier := auth.NewGoogleVerifier(cfg.Google)
	svc := NewAuthService(storage.NewGormUserRepository(db), newFakeBlacklist(), verifier, cfg)

	ctx := context.Background()
	token, user, err := svc.GoogleLogin(ctx, "good-token")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, "bob@gmail.com", user.Email)
	assert.Equal(t, "Bob", user.FullName)
	assert.Equal(t, "https://lh3.example.com/bob.png", user.ProfilePic)
	assert.Equal(t, cfg.Google.DefaultNative, user.NativeLanguage)
	assert.Equal(t, cfg.Google.DefaultLearning, user.LearningLanguage)

	// 第二次登录复用同一个本地账号
	_, again, err := svc.GoogleLogin(ctx, "good-token")
	require.NoError(t, err)
	assert.Equal(t, user.ID, again.ID)
}

func TestGoogleLoginRejectsInvalidToken(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_token"}`, http.StatusBadRequest)
	}))
	defer ts.Close()

	db := newTestDB(t)
	cfg := testConfig()
	cfg.Google.TokenInfoURL = ts.URL
	verifier := auth.NewGoogleVerifier(cfg.Google)
	svc := NewAuthService(storage.NewGormUserRepository(db), newFakeBlacklist(), verifier, cfg)

	_, _, err := svc.GoogleLogin(context.Background(), "forged")
	assert.ErrorIs(t, err, auth.ErrGoogleTokenInvalid)
}

func TestLogoutRevokesToken(t *testing.T) {
	svc, blacklist := newAuthService(t, nil)
	ctx := context.Background()

	token, _, err := svc.Signup(ctx, validSignupInput())
	require.NoError(t, err)

	cfg := testConfig()
	claims, err := auth.ValidateToken(ctx, token, cfg.Auth.JWTSecretKey, blacklist)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, claims))

	revoked, err := blacklist.IsBlacklisted(ctx, claims.ID)
	require.NoError(t, err)
	assert.True(t, revoked)

	_, err = auth.ValidateToken(ctx, token, cfg.Auth.JWTSecretKey, blacklist)
	assert.Error(t, err)
}
