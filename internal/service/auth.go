package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ECGOPS/OPSOMS-sub004/internal/dto/req"
	"github.com/ECGOPS/OPSOMS-sub004/internal/dto/resp"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	RefreshTokenTTL = 7 * 24 * time.Hour
	AccessTokenTTL  = 15 * time.Minute
	RedisKeyPrefix  = "opsoms:auth:session:"
	Issuer          = "opsoms-auth-service"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenInvalid       = errors.New("token invalid")
	ErrSessionExpired     = errors.New("session expired")
)

// SignedKey should be loaded from env in production
var SignedKey = []byte("opsoms-field-sync-secret-2026")

type AuthService struct {
	redis           *redis.Client
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
}

type UserClaims struct {
	UserID   string `json:"uid"`
	Username string `json:"sub"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

func NewAuthService(rdb *redis.Client, accessTokenTTL, refreshTokenTTL time.Duration) *AuthService {
	if accessTokenTTL <= 0 {
		accessTokenTTL = AccessTokenTTL
	}
	if refreshTokenTTL <= 0 {
		refreshTokenTTL = RefreshTokenTTL
	}
	return &AuthService{
		redis:           rdb,
		accessTokenTTL:  accessTokenTTL,
		refreshTokenTTL: refreshTokenTTL,
	}
}

// Login authenticates an operator and returns a pair of tokens
func (s *AuthService) Login(ctx context.Context, req req.LoginReq) (*resp.TokenResp, error) {
	// Mock credential check; real deployments plug in the district staff
	// directory here.
	if req.Username != "admin" || req.Password != "admin123" {
		return nil, ErrInvalidCredentials
	}

	userID := "1001"
	role := "district_engineer"

	tokens, err := s.generateTokens(ctx, userID, req.Username, role)
	if err != nil {
		return nil, err
	}
	tokens.User = resp.UserInfo{
		ID:       userID,
		Username: req.Username,
		Role:     role,
	}
	return tokens, nil
}

// Refresh handles token rotation using the refresh token
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*resp.TokenResp, error) {
	token, err := jwt.ParseWithClaims(refreshToken, &UserClaims{}, func(t *jwt.Token) (interface{}, error) {
		return SignedKey, nil
	})
	if err != nil {
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*UserClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	key := fmt.Sprintf("%s%s", RedisKeyPrefix, claims.UserID)
	storedToken, err := s.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, ErrSessionExpired
	}
	if err != nil {
		return nil, err
	}

	if storedToken != refreshToken {
		return nil, ErrTokenInvalid
	}

	return s.generateTokens(ctx, claims.UserID, claims.Username, claims.Role)
}

func (s *AuthService) Logout(ctx context.Context, userID string) error {
	key := fmt.Sprintf("%s%s", RedisKeyPrefix, userID)
	return s.redis.Del(ctx, key).Err()
}

func (s *AuthService) generateTokens(ctx context.Context, userID, username, role string) (*resp.TokenResp, error) {
	now := time.Now()
	atClaims := UserClaims{
		UserID:   userID,
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    Issuer,
		},
	}
	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, atClaims).SignedString(SignedKey)
	if err != nil {
		return nil, err
	}

	rtClaims := UserClaims{
		UserID:   userID,
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.refreshTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    Issuer,
			ID:        uuid.New().String(),
		},
	}
	refreshToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, rtClaims).SignedString(SignedKey)
	if err != nil {
		return nil, err
	}

	// refresh token allow-list keyed by user
	key := fmt.Sprintf("%s%s", RedisKeyPrefix, userID)
	if err := s.redis.Set(ctx, key, refreshToken, s.refreshTokenTTL).Err(); err != nil {
		return nil, err
	}

	return &resp.TokenResp{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.accessTokenTTL.Seconds()),
	}, nil
}
