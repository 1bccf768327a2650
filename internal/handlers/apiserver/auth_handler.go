package apiserver

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"lingua-go/internal/auth"
	"lingua-go/internal/config"
	"lingua-go/internal/middleware"
	"lingua-go/internal/models"
	"lingua-go/internal/services"
)

// AuthHandler 封装了认证相关的 HTTP 处理器方法。
type AuthHandler struct {
	authService services.AuthService
	authCfg     config.AuthConfig
}

// NewAuthHandler 创建一个新的 AuthHandler 实例。
func NewAuthHandler(authService services.AuthService, authCfg config.AuthConfig) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		authCfg:     authCfg,
	}
}

// LoginRequest 是用户登录请求的结构体。
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// GoogleLoginRequest 携带外部签发的 Google ID token。
type GoogleLoginRequest struct {
	Credential string `json:"credential"`
}

// AuthResponse 是成功认证后返回的结构体。
type AuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"` // 注意过滤敏感数据
}

// Signup 处理用户注册请求。
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req services.SignupInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "请求体无效", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	token, user, err := h.authService.Signup(r.Context(), req)
	if err != nil {
		if errors.Is(err, services.ErrMissingFields) || errors.Is(err, services.ErrInvalidEmail) ||
			errors.Is(err, services.ErrPasswordTooShort) || errors.Is(err, services.ErrEmailTaken) {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
		} else {
			log.Printf("Error during signup for %s: %v", req.Email, err)
			writeJSONError(w, "注册失败", http.StatusInternalServerError)
		}
		return
	}

	user.PasswordHash = "" // 清除敏感信息
	h.setTokenCookie(w, token)
	writeJSONResponse(w, http.StatusCreated, AuthResponse{Token: token, User: user})
}

// Login 处理用户登录请求。
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "请求体无效", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	token, user, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrMissingFields) {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
		} else if errors.Is(err, services.ErrInvalidCredentials) {
			writeJSONError(w, "无效的邮箱或密码", http.StatusUnauthorized)
		} else {
			log.Printf("Error during login for %s: %v", req.Email, err)
			writeJSONError(w, "登录失败", http.StatusInternalServerError)
		}
		return
	}

	user.PasswordHash = "" // 清除敏感信息
	h.setTokenCookie(w, token)
	writeJSONResponse(w, http.StatusOK, AuthResponse{Token: token, User: user})
}

// GoogleLogin 处理 Google 登录，首次出现的账号会被自动注册。
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	var req GoogleLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "请求体无效", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	token, user, err := h.authService.GoogleLogin(r.Context(), req.Credential)
	if err != nil {
		if errors.Is(err, services.ErrMissingFields) {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
		} else if errors.Is(err, auth.ErrGoogleTokenInvalid) || errors.Is(err, auth.ErrGoogleWrongAudience) {
			writeJSONError(w, "Google 令牌无效", http.StatusUnauthorized)
		} else {
			log.Printf("Error during google login: %v", err)
			writeJSONError(w, "登录失败", http.StatusInternalServerError)
		}
		return
	}

	user.PasswordHash = ""
	h.setTokenCookie(w, token)
	writeJSONResponse(w, http.StatusOK, AuthResponse{Token: token, User: user})
}

// Logout 处理用户登出请求，将当前 Token 加入黑名单并清除 Cookie。
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaimsFromContext(r.Context())
	if !ok {
		writeJSONError(w, "用户未认证或无法解析用户声明", http.StatusUnauthorized)
		return
	}

	if err := h.authService.Logout(r.Context(), claims); err != nil {
		log.Printf("Error during logout for user %d: %v", claims.UserID, err)
		writeJSONError(w, "登出过程中发生内部错误", http.StatusInternalServerError)
		return
	}

	h.clearTokenCookie(w)
	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "登出成功"})
}

// setTokenCookie 将会话令牌写入 http-only Cookie。
func (h *AuthHandler) setTokenCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.authCfg.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(h.authCfg.JWTExpiry),
		HttpOnly: true,
		Secure:   h.authCfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearTokenCookie 使会话 Cookie 立即过期。
func (h *AuthHandler) clearTokenCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.authCfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.authCfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
