package services

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"storefront-chat/internal/domain"
	chat_errors "storefront-chat/pkg/errors"
)

// AuthService verifies bearer tokens issued by the storefront auth backend.
// With an empty secret it is disabled and every caller is anonymous.
type AuthService struct {
	jwtSecret []byte
	accessTTL time.Duration
}

func NewAuthService(secret string) *AuthService {
	return &AuthService{jwtSecret: []byte(secret), accessTTL: 24 * time.Hour}
}

type AccessClaims struct {
	UserID string `json:"sub"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

func (s *AuthService) Enabled() bool {
	return len(s.jwtSecret) > 0
}

func (s *AuthService) ParseAccessToken(tokenString string) (AccessClaims, error) {
	if tokenString == "" {
		return AccessClaims{}, chat_errors.ErrUnauthorized
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, chat_errors.ErrUnauthorized
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return AccessClaims{}, chat_errors.ErrUnauthorized
	}

	claims, ok := parsed.Claims.(*AccessClaims)
	if !ok || !parsed.Valid || claims.UserID == "" {
		return AccessClaims{}, chat_errors.ErrUnauthorized
	}

	return *claims, nil
}

// IssueAccessToken signs a token for u. The relay only uses it for local
// development and tests; production tokens come from the auth backend.
func (s *AuthService) IssueAccessToken(u domain.User) (string, error) {
	if !s.Enabled() {
		return "", chat_errors.ErrServiceUnavailable
	}
	now := time.Now()
	claims := AccessClaims{
		UserID: u.ID,
		Role:   string(u.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

type ctxKey string

var userIDKey ctxKey = "user_id"
var roleKey ctxKey = "role"

func WithUserContext(ctx context.Context, userID, role string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, roleKey, role)
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok && userID != ""
}

func RoleFromContext(ctx context.Context) (string, bool) {
	role, ok := ctx.Value(roleKey).(string)
	return role, ok && role != ""
}
