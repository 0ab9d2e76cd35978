package auth

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestHashAndCheckPassword(t *testing.T) {
	pwd := "s3cr3t-password"
	hash, err := HashPassword(pwd)
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}

	if err := CheckPassword(hash, pwd); err != nil {
		t.Fatalf("CheckPassword failed when password should match: %v", err)
	}

	if err := CheckPassword(hash, "wrong"); err == nil {
		t.Fatal("CheckPassword succeeded when it should have failed")
	}
}

func TestJWTManager_GenerateAndVerify(t *testing.T) {
	m := NewJWTManager("test-secret", 5*time.Minute)

	id := bson.NewObjectID()
	token, _, err := m.GenerateToken(id, "test@example.com")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	claims, err := m.VerifyToken(token)
	if err != nil {
		t.Fatalf("VerifyToken failed: %v", err)
	}

	if claims.Email != "test@example.com" {
		t.Fatalf("claims.Email mismatch: got %s", claims.Email)
	}
	got, err := claims.UserObjectID()
	if err != nil || got != id {
		t.Fatalf("UserObjectID mismatch: %v, %v", got, err)
	}
}

func TestJWTManager_NormalizeEmailClaim(t *testing.T) {
	m := NewJWTManager("test-secret", 5*time.Minute)

	var id bson.ObjectID
	token, _, err := m.GenerateToken(id, "User.Case@Example.COM")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	claims, err := m.VerifyToken(token)
	if err != nil {
		t.Fatalf("VerifyToken failed: %v", err)
	}

	if claims.Email != "user.case@example.com" {
		t.Fatalf("expected normalized email in claims, got %s", claims.Email)
	}
}

func TestJWTManager_RejectsWrongSecret(t *testing.T) {
	m := NewJWTManager("secret-one", 5*time.Minute)
	other := NewJWTManager("secret-two", 5*time.Minute)

	var id bson.ObjectID
	token, _, err := m.GenerateToken(id, "x@example.com")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	if _, err := other.VerifyToken(token); err == nil {
		t.Fatal("expected verification failure with wrong secret")
	}
}
