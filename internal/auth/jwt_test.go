package auth

import (
	"context"
	"testing"
	"time"

	"lingua-go/internal/config"
)

type memoryBlacklist struct {
	revoked map[string]time.Time
}

func newMemoryBlacklist() *memoryBlacklist {
	return &memoryBlacklist{revoked: make(map[string]time.Time)}
}

func (m *memoryBlacklist) Add(ctx context.Context, jti string, expTime time.Time) error {
	m.revoked[jti] = expTime
	return nil
}

func (m *memoryBlacklist) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	_, ok := m.revoked[jti]
	return ok, nil
}

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecretKey: "test-secret-key",
		JWTExpiry:    7 * 24 * time.Hour,
		CookieName:   "token",
	}
}

func TestGenerateAndValidateToken(t *testing.T) {
	cfg := testAuthConfig()

	tokenString, err := GenerateToken(42, "user@example.com", cfg)
	if err != nil {
		t.Fatalf("GenerateToken 失败: %v", err)
	}

	claims, err := ValidateToken(context.Background(), tokenString, cfg.JWTSecretKey, nil)
	if err != nil {
		t.Fatalf("ValidateToken 失败: %v", err)
	}

	if claims.UserID != 42 {
		t.Errorf("UserID = %d, want 42", claims.UserID)
	}
	if claims.Email != "user@example.com" {
		t.Errorf("Email = %q, want user@example.com", claims.Email)
	}
	if claims.Subject != "42" {
		t.Errorf("Subject = %q, want \"42\"", claims.Subject)
	}
	if claims.ID == "" {
		t.Error("JTI 不应为空")
	}
	if claims.ExpiresAt == nil {
		t.Fatal("ExpiresAt 不应为空")
	}
	remaining := time.Until(claims.ExpiresAt.Time)
	if remaining < 6*24*time.Hour || remaining > 8*24*time.Hour {
		t.Errorf("过期时间不在 7 天左右: %v", remaining)
	}
}

func TestValidateTokenWrongKey(t *testing.T) {
	cfg := testAuthConfig()
	tokenString, err := GenerateToken(1, "a@b.com", cfg)
	if err != nil {
		t.Fatalf("GenerateToken 失败: %v", err)
	}

	if _, err := ValidateToken(context.Background(), tokenString, "another-key", nil); err == nil {
		t.Error("使用错误密钥验证应当失败")
	}
}

func TestValidateTokenExpired(t *testing.T) {
	cfg := testAuthConfig()
	cfg.JWTExpiry = -time.Hour

	tokenString, err := GenerateToken(1, "a@b.com", cfg)
	if err != nil {
		t.Fatalf("GenerateToken 失败: %v", err)
	}

	if _, err := ValidateToken(context.Background(), tokenString, cfg.JWTSecretKey, nil); err == nil {
		t.Error("过期令牌验证应当失败")
	}
}

func TestValidateTokenBlacklisted(t *testing.T) {
	cfg := testAuthConfig()
	blacklist := newMemoryBlacklist()

	tokenString, err := GenerateToken(7, "c@d.com", cfg)
	if err != nil {
		t.Fatalf("GenerateToken 失败: %v", err)
	}

	claims, err := ValidateToken(context.Background(), tokenString, cfg.JWTSecretKey, blacklist)
	if err != nil {
		t.Fatalf("吊销前验证应当成功: %v", err)
	}

	if err := blacklist.Add(context.Background(), claims.ID, claims.ExpiresAt.Time); err != nil {
		t.Fatalf("加入黑名单失败: %v", err)
	}

	if _, err := ValidateToken(context.Background(), tokenString, cfg.JWTSecretKey, blacklist); err == nil {
		t.Error("已吊销令牌验证应当失败")
	}
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("super-secret")
	if err != nil {
		t.Fatalf("HashPassword 失败: %v", err)
	}
	if hash == "super-secret" {
		t.Error("哈希结果不应等于明文")
	}
	if !CheckPasswordHash("super-secret", hash) {
		t.Error("正确密码校验应当通过")
	}
	if CheckPasswordHash("wrong-password", hash) {
		t.Error("错误密码校验不应通过")
	}
}
