package auth

import (
	"errors"
	"testing"
	"time"
)

func TestSignVerify_Roundtrip(t *testing.T) {
	svc := NewService("test-secret", time.Hour)
	token, err := svc.Sign("user-1", RoleCaptain)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	claims, err := svc.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.ID != "user-1" || claims.Role != RoleCaptain {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	token, err := NewService("secret-a", time.Hour).Sign("user-1", RoleRider)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if _, err := NewService("secret-b", time.Hour).Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("got %v, want ErrInvalidToken", err)
	}
}

func TestVerify_Expired(t *testing.T) {
	svc := &Service{secret: []byte("test-secret"), expiry: -time.Minute}
	token, err := svc.Sign("user-1", RoleRider)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if _, err := svc.Verify(token); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("got %v, want ErrExpiredToken", err)
	}
}

func TestVerify_Garbage(t *testing.T) {
	svc := NewService("test-secret", time.Hour)
	if _, err := svc.Verify("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("got %v, want ErrInvalidToken", err)
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "s3cret" {
		t.Fatal("password stored in the clear")
	}
	if !CheckPassword("s3cret", hash) {
		t.Fatal("correct password rejected")
	}
	if CheckPassword("wrong", hash) {
		t.Fatal("wrong password accepted")
	}
}

func TestFromHeader(t *testing.T) {
	tok, err := FromHeader("Bearer abc.def.ghi")
	if err != nil || tok != "abc.def.ghi" {
		t.Fatalf("got %q/%v", tok, err)
	}
	if _, err := FromHeader(""); err == nil {
		t.Fatal("empty header accepted")
	}
	if _, err := FromHeader("Basic abc"); err == nil {
		t.Fatal("non-bearer scheme accepted")
	}
}
