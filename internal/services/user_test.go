package services

import (
	"context"
	"testing"

	"messenger-backend/internal/apperr"
)

func TestCreateUserIssuesToken(t *testing.T) {
	users := newFakeUserStore()
	svc := NewUserService(users, "test-secret")

	user, token, err := svc.CreateUser(context.Background(), "  Alice  ", "")
	if err != nil {
		t.Fatalf("create user failed: %v", err)
	}
	if user.DisplayName != "Alice" {
		t.Errorf("expected trimmed display name, got %q", user.DisplayName)
	}
	if user.ID == "" || token == "" {
		t.Fatal("expected an id and a token")
	}

	got, err := svc.ValidateJWT(token)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if got != user.ID {
		t.Errorf("token resolves to %s, want %s", got, user.ID)
	}

	if _, err := users.GetByID(context.Background(), user.ID); err != nil {
		t.Errorf("user not persisted: %v", err)
	}
}

func TestCreateUserRequiresName(t *testing.T) {
	svc := NewUserService(newFakeUserStore(), "test-secret")

	_, _, err := svc.CreateUser(context.Background(), "   ", "")
	if apperr.KindOf(err) != apperr.Validation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestValidateJWTRejectsWrongSecret(t *testing.T) {
	issuer := NewUserService(newFakeUserStore(), "secret-a")
	verifier := NewUserService(newFakeUserStore(), "secret-b")

	token, err := issuer.GenerateJWT("alice")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if _, err := verifier.ValidateJWT(token); err == nil {
		t.Fatal("expected validation to fail across secrets")
	}
	if _, err := issuer.ValidateJWT("not-a-token"); err == nil {
		t.Fatal("expected garbage token to be rejected")
	}
}
