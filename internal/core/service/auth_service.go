package service

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/99minutos/delivery-tracking/internal/core/domain"
	"github.com/99minutos/delivery-tracking/internal/core/ports"
)

const minSecretLength = 8

// AuthService implements courier device registration and login.
type AuthService struct {
	repo      ports.CourierRepository
	jwtSecret string
	tokenTTL  time.Duration
}

func NewAuthService(repo ports.CourierRepository, jwtSecret string, tokenTTL time.Duration) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = 12 * time.Hour
	}
	return &AuthService{repo: repo, jwtSecret: jwtSecret, tokenTTL: tokenTTL}
}

var _ ports.AuthService = (*AuthService)(nil)

func (s *AuthService) RegisterCourier(ctx context.Context, courierID, secret string) (*domain.CourierCredential, error) {
	courierID = strings.TrimSpace(courierID)
	if courierID == "" || len(secret) < minSecretLength {
		return nil, domain.ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	cred := &domain.CourierCredential{
		CourierID:  courierID,
		SecretHash: string(hash),
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	created, err := s.repo.Create(ctx, cred)
	if err != nil {
		return nil, err
	}
	return created, nil
}

// LoginCourier verifies the device secret and returns a courier token and
// its expiry.
func (s *AuthService) LoginCourier(ctx context.Context, courierID, secret string) (string, time.Time, error) {
	if courierID == "" || secret == "" {
		return "", time.Time{}, domain.ErrInvalidCredentials
	}

	cred, err := s.repo.FindByCourierID(ctx, courierID)
	if err != nil {
		return "", time.Time{}, err
	}
	if !cred.Active {
		return "", time.Time{}, domain.ErrForbidden
	}

	if bcrypt.CompareHashAndPassword([]byte(cred.SecretHash), []byte(secret)) != nil {
		return "", time.Time{}, domain.ErrInvalidCredentials
	}

	expiresAt := time.Now().Add(s.tokenTTL)
	token, err := IssueToken(s.jwtSecret, cred.CourierID, domain.RoleCourier, expiresAt)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// IssueToken signs an HS256 token for subject with role. It is shared by the
// login flow and the CLI token command.
func IssueToken(secret, subject, role string, expiresAt time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": role,
		"iat":  time.Now().Unix(),
		"exp":  expiresAt.Unix(),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(secret))
}
