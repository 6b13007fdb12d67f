package jwt

import (
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

func TestNewTokenManager(t *testing.T) {
	secret := "test-secret"
	expireHours := 24
	refreshHours := 168

	tm := NewTokenManager(secret, expireHours, refreshHours)
	if tm == nil {
		t.Fatal("NewTokenManager returned nil")
	}
	if string(tm.secret) != secret {
		t.Errorf("Expected secret %s, got %s", secret, string(tm.secret))
	}

	expectedExpireDur := time.Duration(expireHours) * time.Hour
	if tm.expireDur != expectedExpireDur {
		t.Errorf("Expected expireDur %v, got %v", expectedExpireDur, tm.expireDur)
	}

	expectedRefreshDur := time.Duration(refreshHours) * time.Hour
	if tm.refreshDur != expectedRefreshDur {
		t.Errorf("Expected refreshDur %v, got %v", expectedRefreshDur, tm.refreshDur)
	}
}

func TestGenerateToken(t *testing.T) {
	tm := NewTokenManager("test-secret", 24, 168)
	gatewayID := "gateway-alpha"
	nodeID := "node-1"

	token, err := tm.GenerateToken(gatewayID, nodeID)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	if token == "" {
		t.Error("Generated token is empty")
	}

	claims, err := tm.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken failed: %v", err)
	}
	if claims.GatewayID != gatewayID {
		t.Errorf("Expected GatewayID %s, got %s", gatewayID, claims.GatewayID)
	}
	if claims.NodeID != nodeID {
		t.Errorf("Expected NodeID %s, got %s", nodeID, claims.NodeID)
	}
}

func TestParseToken_ValidToken(t *testing.T) {
	tm := NewTokenManager("test-secret", 24, 168)

	token, err := tm.GenerateToken("gateway-alpha", "node-1")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	claims, err := tm.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken failed: %v", err)
	}

	now := time.Now()
	if claims.IssuedAt.Time.After(now) {
		t.Error("IssuedAt is in the future")
	}
	if claims.ExpiresAt.Time.Before(now) {
		t.Error("ExpiresAt is in the past")
	}
	if claims.NotBefore.Time.After(now) {
		t.Error("NotBefore is in the future")
	}
}

func TestParseToken_InvalidToken(t *testing.T) {
	tm := NewTokenManager("test-secret", 24, 168)

	tests := []struct {
		name        string
		token       string
		expectedErr error
	}{
		{
			name:        "empty token",
			token:       "",
			expectedErr: ErrInvalidToken,
		},
		{
			name:        "malformed token",
			token:       "not.a.valid.token",
			expectedErr: ErrInvalidToken,
		},
		{
			name:        "random string",
			token:       "randomstring",
			expectedErr: ErrInvalidToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tm.ParseToken(tt.token)
			if err == nil {
				t.Error("Expected error, got nil")
			}
			if err != tt.expectedErr {
				t.Errorf("Expected error %v, got %v", tt.expectedErr, err)
			}
		})
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	tm1 := NewTokenManager("secret1", 24, 168)
	tm2 := NewTokenManager("secret2", 24, 168)

	token, err := tm1.GenerateToken("gateway-alpha", "node-1")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	_, err = tm2.ParseToken(token)
	if err == nil {
		t.Error("Expected error when validating with wrong secret")
	}
	if err != ErrInvalidToken {
		t.Errorf("Expected ErrInvalidToken, got %v", err)
	}
}

func TestParseToken_ExpiredToken(t *testing.T) {
	tm := NewTokenManager("test-secret", 0, 168)
	tm.expireDur = 1 * time.Millisecond

	token, err := tm.GenerateToken("gateway-alpha", "node-1")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	time.Sleep(10 * time.Millisecond)

	_, err = tm.ParseToken(token)
	if err == nil {
		t.Error("Expected error for expired token")
	}
	if err != ErrExpiredToken {
		t.Errorf("Expected ErrExpiredToken, got %v", err)
	}
}

func TestRefreshToken_ValidToken(t *testing.T) {
	tm := NewTokenManager("test-secret", 1, 168)

	token, err := tm.GenerateToken("gateway-alpha", "node-1")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	// Wait so the refreshed token gets a later timestamp
	time.Sleep(1100 * time.Millisecond)

	newToken, err := tm.RefreshToken(token)
	if err != nil {
		t.Fatalf("RefreshToken failed: %v", err)
	}
	if newToken == "" {
		t.Error("Refreshed token is empty")
	}

	claims, err := tm.ParseToken(newToken)
	if err != nil {
		t.Fatalf("ParseToken failed for refreshed token: %v", err)
	}
	if claims.GatewayID != "gateway-alpha" {
		t.Errorf("Expected GatewayID gateway-alpha, got %s", claims.GatewayID)
	}
	if claims.NodeID != "node-1" {
		t.Errorf("Expected NodeID node-1, got %s", claims.NodeID)
	}
}

func TestRefreshToken_ExpiredWithinWindow(t *testing.T) {
	tm := NewTokenManager("test-secret", 1, 1)

	originalExpireDur := tm.expireDur
	tm.expireDur = 10 * time.Millisecond
	tm.refreshDur = 1 * time.Hour

	token, err := tm.GenerateToken("gateway-alpha", "node-1")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	tm.expireDur = originalExpireDur

	newToken, err := tm.RefreshToken(token)
	if err != nil {
		t.Fatalf("RefreshToken failed: %v", err)
	}
	if newToken == "" {
		t.Error("Refreshed token is empty")
	}

	claims, err := tm.ParseToken(newToken)
	if err != nil {
		t.Fatalf("ParseToken failed for refreshed token: %v", err)
	}
	if claims.GatewayID != "gateway-alpha" {
		t.Errorf("Expected GatewayID gateway-alpha, got %s", claims.GatewayID)
	}
}

func TestRefreshToken_ExpiredBeyondWindow(t *testing.T) {
	tm := NewTokenManager("test-secret", 0, 0)
	tm.expireDur = 10 * time.Millisecond
	tm.refreshDur = 20 * time.Millisecond

	token, err := tm.GenerateToken("gateway-alpha", "node-1")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	time.Sleep(50 * time.Millisecond)

	_, err = tm.RefreshToken(token)
	if err == nil {
		t.Error("Expected error when refreshing token expired beyond window")
	}
}

func TestRefreshToken_NotYetEligible(t *testing.T) {
	tm := NewTokenManager("test-secret", 24, 1)

	token, err := tm.GenerateToken("gateway-alpha", "node-1")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	_, err = tm.RefreshToken(token)
	if err == nil {
		t.Error("Expected error when token not yet eligible for refresh")
	}
}

func TestRefreshToken_InvalidToken(t *testing.T) {
	tm := NewTokenManager("test-secret", 24, 168)

	_, err := tm.RefreshToken("invalid.token.string")
	if err == nil {
		t.Error("Expected error when refreshing invalid token")
	}
}

func TestTokenManager_DifferentSigningMethods(t *testing.T) {
	tm := NewTokenManager("test-secret", 24, 168)

	claims := Claims{
		GatewayID: "gateway-alpha",
		NodeID:    "node-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	// HS512 is still HMAC, so the validator should accept it
	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	tokenString, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("Failed to create test token: %v", err)
	}

	_, err = tm.ParseToken(tokenString)
	if err != nil {
		t.Logf("Token validation result: %v", err)
	}
}

func TestConcurrentTokenGeneration(t *testing.T) {
	tm := NewTokenManager("test-secret", 24, 168)

	done := make(chan bool)
	for i := range 10 {
		go func(id int) {
			gatewayID := "gateway" + string(rune('a'+id))
			nodeID := "node" + string(rune('a'+id))

			token, err := tm.GenerateToken(gatewayID, nodeID)
			if err != nil {
				t.Errorf("GenerateToken failed: %v", err)
			}

			_, err = tm.ParseToken(token)
			if err != nil {
				t.Errorf("ParseToken failed: %v", err)
			}

			done <- true
		}(i)
	}

	for range 10 {
		<-done
	}
}
