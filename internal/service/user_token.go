package service

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidUserToken 用户令牌无效
var ErrInvalidUserToken = errors.New("invalid user token")

// UserJWTClaims 用户 JWT 声明（由认证服务签发）
type UserJWTClaims struct {
	UserID uint `json:"user_id"`
	jwt.RegisteredClaims
}

// GenerateUserJWT 生成用户 JWT Token（用于演示数据与测试）
func GenerateUserJWT(secret, issuer string, userID uint, ttl time.Duration) (string, time.Time, error) {
	if strings.TrimSpace(secret) == "" || userID == 0 {
		return "", time.Time{}, ErrInvalidUserToken
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	now := time.Now()
	expiresAt := now.Add(ttl)
	claims := UserJWTClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ParseUserJWT 校验用户 JWT，issuer 非空时同时校验签发方
func ParseUserJWT(secret, issuer, tokenString string) (*UserJWTClaims, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrInvalidUserToken
	}
	options := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if strings.TrimSpace(issuer) != "" {
		options = append(options, jwt.WithIssuer(issuer))
	}
	parser := jwt.NewParser(options...)
	claims := &UserJWTClaims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil || !token.Valid || claims.UserID == 0 {
		return nil, ErrInvalidUserToken
	}
	return claims, nil
}
