package auth

import (
	"errors"
	"fmt"
	"time"

	"tigu/internal/domain/model"

	"github.com/golang-jwt/jwt/v4"
)

var ErrInvalidToken = errors.New("invalid token")

// JWTを発行する約束
type AccessTokenIssuer interface {
	Issue(userID string, role model.Role, tokenVersion int, now time.Time) (token string, expiresAt time.Time, err error)
}

// アクセストークンのclaims
type Claims struct {
	UserID       string
	Role         model.Role
	TokenVersion int
}

// HS256でアクセストークンを発行・検証する
type JWTManager struct {
	secret    []byte
	accessTTL time.Duration
}

func NewJWTManager(secret string, accessTTL time.Duration) *JWTManager {
	return &JWTManager{secret: []byte(secret), accessTTL: accessTTL}
}

func (m *JWTManager) AccessTTL() time.Duration {
	return m.accessTTL
}

func (m *JWTManager) Issue(userID string, role model.Role, tokenVersion int, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(m.accessTTL)

	claims := jwt.MapClaims{
		"sub":  userID,
		"role": string(role),
		"tv":   tokenVersion,
		"iat":  now.Unix(),
		"exp":  expiresAt.Unix(),
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, expiresAt, nil
}

// 署名・期限を検証してclaimsを取り出す
func (m *JWTManager) Parse(raw string) (Claims, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	})
	if err != nil || token == nil || !token.Valid {
		return Claims{}, ErrInvalidToken
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, ErrInvalidToken
	}

	sub, ok := mc["sub"].(string)
	if !ok || sub == "" {
		return Claims{}, ErrInvalidToken
	}
	role, ok := mc["role"].(string)
	if !ok || role == "" {
		return Claims{}, ErrInvalidToken
	}
	tv, err := parseInt(mc["tv"])
	if err != nil || tv < 0 {
		return Claims{}, ErrInvalidToken
	}

	return Claims{UserID: sub, Role: model.Role(role), TokenVersion: tv}, nil
}

func parseInt(v interface{}) (int, error) {
	switch t := v.(type) {
	case float64:
		return int(t), nil
	case int:
		return t, nil
	default:
		return 0, fmt.Errorf("invalid int: %v", v)
	}
}
