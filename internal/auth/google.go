package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"lingua-go/internal/config"
)

var (
	ErrGoogleTokenInvalid  = errors.New("Google 凭证无效")
	ErrGoogleWrongAudience = errors.New("Google 凭证的 audience 不匹配")
)

// GoogleIdentity 是从身份提供方验证端点取回的身份信息。
type GoogleIdentity struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
	Aud     string `json:"aud"`
	Sub     string `json:"sub"`
}

// GoogleVerifier 通过 Google 的 tokeninfo 公开端点验证外部签发的 ID Token。
type GoogleVerifier struct {
	cfg    config.GoogleConfig
	client *http.Client
}

// NewGoogleVerifier 创建一个新的 GoogleVerifier 实例。
func NewGoogleVerifier(cfg config.GoogleConfig) *GoogleVerifier {
	return &GoogleVerifier{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.VerifyTimeout},
	}
}

// VerifyIDToken 将凭证提交给 tokeninfo 端点并校验 audience。
// 凭证无效时 Google 返回非 200，统一映射为 ErrGoogleTokenInvalid。
func (v *GoogleVerifier) VerifyIDToken(ctx context.Context, credential string) (*GoogleIdentity, error) {
	endpoint := v.cfg.TokenInfoURL + "?id_token=" + url.QueryEscape(credential)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("构建 tokeninfo 请求失败: %w", err)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求 tokeninfo 端点失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ErrGoogleTokenInvalid
	}

	var identity GoogleIdentity
	if err := json.NewDecoder(resp.Body).Decode(&identity); err != nil {
		return nil, fmt.Errorf("解析 tokeninfo 响应失败: %w", err)
	}

	if v.cfg.ClientID != "" && identity.Aud != v.cfg.ClientID {
		return nil, ErrGoogleWrongAudience
	}
	if identity.Email == "" {
		return nil, ErrGoogleTokenInvalid
	}

	return &identity, nil
}
