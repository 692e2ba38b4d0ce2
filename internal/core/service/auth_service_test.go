package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/99minutos/delivery-tracking/internal/core/domain"
)

func TestAuthService_RegisterCourier_Success(t *testing.T) {
	repo := newStubCourierRepo()
	svc := NewAuthService(repo, "secret", time.Hour)

	cred, err := svc.RegisterCourier(context.Background(), "rider-1", "device-secret")
	if err != nil {
		t.Fatalf("RegisterCourier returned error: %v", err)
	}
	if cred.SecretHash == "device-secret" {
		t.Fatalf("expected secret to be hashed")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.SecretHash), []byte("device-secret")); err != nil {
		t.Fatalf("stored hash does not match secret: %v", err)
	}
	if !cred.Active {
		t.Fatalf("expected new courier to be active")
	}
}

func TestAuthService_RegisterCourier_Validation(t *testing.T) {
	svc := NewAuthService(newStubCourierRepo(), "secret", time.Hour)

	if _, err := svc.RegisterCourier(context.Background(), "", "device-secret"); err != domain.ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials for empty id, got %v", err)
	}
	if _, err := svc.RegisterCourier(context.Background(), "rider-1", "short"); err != domain.ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials for short secret, got %v", err)
	}
}

func TestAuthService_RegisterCourier_Duplicate(t *testing.T) {
	svc := NewAuthService(newStubCourierRepo(), "secret", time.Hour)
	ctx := context.Background()

	if _, err := svc.RegisterCourier(ctx, "rider-1", "device-secret"); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := svc.RegisterCourier(ctx, "rider-1", "device-secret"); !errors.Is(err, domain.ErrCourierExists) {
		t.Fatalf("expected ErrCourierExists, got %v", err)
	}
}

func TestAuthService_LoginCourier_Success(t *testing.T) {
	svc := NewAuthService(newStubCourierRepo(), "secret", time.Hour)
	ctx := context.Background()
	if _, err := svc.RegisterCourier(ctx, "rider-1", "device-secret"); err != nil {
		t.Fatalf("register: %v", err)
	}

	token, expiresAt, err := svc.LoginCourier(ctx, "rider-1", "device-secret")
	if err != nil {
		t.Fatalf("LoginCourier returned error: %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Fatalf("expected expiry in the future, got %v", expiresAt)
	}

	parsed, err := jwt.Parse(token, func(*jwt.Token) (interface{}, error) { return []byte("secret"), nil })
	if err != nil || !parsed.Valid {
		t.Fatalf("token did not validate: %v", err)
	}
	claims := parsed.Claims.(jwt.MapClaims)
	if claims["sub"] != "rider-1" {
		t.Fatalf("unexpected sub claim: %v", claims["sub"])
	}
	if claims["role"] != domain.RoleCourier {
		t.Fatalf("unexpected role claim: %v", claims["role"])
	}
}

func TestAuthService_LoginCourier_WrongSecret(t *testing.T) {
	svc := NewAuthService(newStubCourierRepo(), "secret", time.Hour)
	ctx := context.Background()
	_, _ = svc.RegisterCourier(ctx, "rider-1", "device-secret")

	if _, _, err := svc.LoginCourier(ctx, "rider-1", "wrong-secret"); err != domain.ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := svc.LoginCourier(ctx, "ghost", "device-secret"); !errors.Is(err, domain.ErrCourierNotFound) {
		t.Fatalf("expected ErrCourierNotFound, got %v", err)
	}
}

func TestAuthService_LoginCourier_Inactive(t *testing.T) {
	repo := newStubCourierRepo()
	svc := NewAuthService(repo, "secret", time.Hour)
	ctx := context.Background()
	_, _ = svc.RegisterCourier(ctx, "rider-1", "device-secret")
	repo.couriers["rider-1"].Active = false

	if _, _, err := svc.LoginCourier(ctx, "rider-1", "device-secret"); err != domain.ErrForbidden {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}
