package tokens_test

import (
	"testing"

	"github.com/technoclass/campus-vms/internal/tokens"
)

func TestTokenGeneration(t *testing.T) {
	mgr := tokens.NewManager("test-secret-key")
	userID := "user-123"
	schoolID := "school-abc"

	token, err := mgr.GenerateAccessToken(userID, schoolID, tokens.RoleSchoolAdmin)
	if err != nil {
		t.Fatalf("Failed to generate access token: %v", err)
	}

	claims, err := mgr.ValidateToken(token)
	if err != nil {
		t.Fatalf("Failed to validate token: %v", err)
	}

	if claims.UserID != userID {
		t.Errorf("Expected UserID %s, got %s", userID, claims.UserID)
	}
	if claims.SchoolID != schoolID {
		t.Errorf("Expected SchoolID %s, got %s", schoolID, claims.SchoolID)
	}
	if claims.Role != tokens.RoleSchoolAdmin {
		t.Errorf("Expected Role %s, got %s", tokens.RoleSchoolAdmin, claims.Role)
	}
	if claims.TokenType != tokens.Access {
		t.Errorf("Expected TokenType %s, got %s", tokens.Access, claims.TokenType)
	}
}

func TestInvalidSignature(t *testing.T) {
	mgr1 := tokens.NewManager("secret-1")
	mgr2 := tokens.NewManager("secret-2")

	token, _ := mgr1.GenerateAccessToken("u1", "s1", tokens.RoleGuard)
	_, err := mgr2.ValidateToken(token)
	if err == nil {
		t.Error("Expected validation error for wrong signature")
	}
}

func TestRefreshTokenType(t *testing.T) {
	mgr := tokens.NewManager("test-secret-key")

	token, err := mgr.GenerateRefreshToken("u1", "s1", tokens.RoleGuard)
	if err != nil {
		t.Fatalf("Failed to generate refresh token: %v", err)
	}

	claims, err := mgr.ValidateToken(token)
	if err != nil {
		t.Fatalf("Failed to validate token: %v", err)
	}
	if claims.TokenType != tokens.Refresh {
		t.Errorf("Expected TokenType %s, got %s", tokens.Refresh, claims.TokenType)
	}
}
