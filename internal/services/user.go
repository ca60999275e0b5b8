package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"messenger-backend/internal/apperr"
	"messenger-backend/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const jwtExpDays = 365

// UserService handles user bootstrap and token validation
type UserService struct {
	userStore UserStore
	jwtSecret string
}

// NewUserService creates a new user service
func NewUserService(userStore UserStore, jwtSecret string) *UserService {
	return &UserService{
		userStore: userStore,
		jwtSecret: jwtSecret,
	}
}

// CreateUser creates a new user and issues its token
func (s *UserService) CreateUser(ctx context.Context, displayName, avatarURL string) (*models.User, string, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, "", apperr.Validationf("display name is required")
	}

	now := time.Now()
	user := &models.User{
		ID:          uuid.New().String(),
		DisplayName: displayName,
		AvatarURL:   avatarURL,
		LastSeen:    now,
		CreatedAt:   now,
	}

	token, err := s.GenerateJWT(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}

	if err := s.userStore.Create(ctx, user); err != nil {
		return nil, "", err
	}

	return user, token, nil
}

// GetByID retrieves a user
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	return s.userStore.GetByID(ctx, id)
}

// UpdatePushToken stores or clears a user's push token
func (s *UserService) UpdatePushToken(ctx context.Context, userID string, pushToken *string) error {
	return s.userStore.UpdatePushToken(ctx, userID, pushToken)
}

// GenerateJWT generates a JWT token for a user
func (s *UserService) GenerateJWT(userID string) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().AddDate(0, 0, jwtExpDays).Unix(),
		"iat":     time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ValidateJWT validates a JWT token and returns the user ID
func (s *UserService) ValidateJWT(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})

	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}

	userID, ok := claims["user_id"].(string)
	if !ok {
		return "", fmt.Errorf("user_id not found in token")
	}

	return userID, nil
}
