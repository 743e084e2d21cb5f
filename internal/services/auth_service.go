package services

import (
	"context"
	"fmt"
	"time"

	"adminpanel/internal/repositories"
	"adminpanel/pkg/password"

	"github.com/dgrijalva/jwt-go"
	"github.com/sirupsen/logrus"
)

// AuthService authenticates panel administrators and issues their tokens.
type AuthService struct {
	userRepo   repositories.UserRepository
	hasher     password.Hasher
	jwtSecret  []byte
	tokenDurat time.Duration
	logger     *logrus.Logger
}

// NewAuthService creates a new AuthService. A non-positive ttl means 24 hours.
func NewAuthService(userRepo repositories.UserRepository, hasher password.Hasher, jwtSecret string, ttl time.Duration, logger *logrus.Logger) *AuthService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &AuthService{
		userRepo:   userRepo,
		hasher:     hasher,
		jwtSecret:  []byte(jwtSecret),
		tokenDurat: ttl,
		logger:     logger,
	}
}

// Login checks the credentials and returns a signed token.
func (s *AuthService) Login(ctx context.Context, email, plain string) (string, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		// Do not reveal whether the email exists
		return "", ErrInvalidCredentials
	}
	if !s.hasher.Compare(user.Password, plain) {
		return "", ErrInvalidCredentials
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID,
		"email":   user.Email,
		"exp":     now.Add(s.tokenDurat).Unix(),
		"iat":     now.Unix(),
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return tokenString, nil
}

// ValidateToken parses and validates a JWT token, returning the claims if valid.
func (s *AuthService) ValidateToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		s.logger.WithError(err).Debug("token validation failed")
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, fmt.Errorf("invalid token")
}
