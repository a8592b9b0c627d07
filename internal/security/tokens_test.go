package security

import (
	"testing"
	"time"
)

// アクセストークンの発行と検証が往復することを検証する。
func TestTokenIssuer_MintVerifyRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", 15*time.Minute)

	token, err := issuer.Mint("user-1", "test@example.com", time.Now())
	if err != nil {
		t.Fatalf("Mint returned error: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	claims, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Errorf("Subject = %q, want %q", claims.Subject, "user-1")
	}
	if claims.Email != "test@example.com" {
		t.Errorf("Email = %q, want %q", claims.Email, "test@example.com")
	}
}

// 期限切れトークンの検証が失敗することを検証する。
func TestTokenIssuer_ExpiredToken(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", 15*time.Minute)

	// 1時間前に発行されたトークン（TTL 15分なので期限切れ）
	token, err := issuer.Mint("user-1", "test@example.com", time.Now().Add(-1*time.Hour))
	if err != nil {
		t.Fatalf("Mint returned error: %v", err)
	}

	if _, err := issuer.Verify(token); err == nil {
		t.Error("Verify should fail for expired token")
	}
}

// 異なるシークレットで署名されたトークンの検証が失敗することを検証する。
func TestTokenIssuer_WrongSecret(t *testing.T) {
	issuer := NewTokenIssuer("secret-a", 15*time.Minute)
	other := NewTokenIssuer("secret-b", 15*time.Minute)

	token, err := issuer.Mint("user-1", "test@example.com", time.Now())
	if err != nil {
		t.Fatalf("Mint returned error: %v", err)
	}

	if _, err := other.Verify(token); err == nil {
		t.Error("Verify should fail for token signed with different secret")
	}
}

// 改ざんされたトークンの検証が失敗することを検証する。
func TestTokenIssuer_TamperedToken(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", 15*time.Minute)

	token, err := issuer.Mint("user-1", "test@example.com", time.Now())
	if err != nil {
		t.Fatalf("Mint returned error: %v", err)
	}

	tampered := token + "x"
	if _, err := issuer.Verify(tampered); err == nil {
		t.Error("Verify should fail for tampered token")
	}
}
