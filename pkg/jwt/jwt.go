package jwt

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"telechat/internal/entity"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

type Claims struct {
	UserId       string `json:"userId"`
	SubjectLabel string `json:"subjectLabel"`
	TokenType    string `json:"tokenType"`
	jwt.RegisteredClaims
}

type Manager struct {
	secretKey       []byte
	accessDuration  time.Duration
	refreshDuration time.Duration
}

func NewManager(secretKey string, accessDuration, refreshDuration time.Duration) *Manager {
	key := []byte(secretKey)
	// HS256 wants at least 256 bits, pad short keys
	if len(key) < 32 {
		padded := make([]byte, 32)
		copy(padded, key)
		key = padded
	}
	return &Manager{
		secretKey:       key,
		accessDuration:  accessDuration,
		refreshDuration: refreshDuration,
	}
}

// GenerateAccessToken issues a short-lived access token carrying the
// user id and subject label.
func (m *Manager) GenerateAccessToken(userId int64, subjectLabel string) (string, error) {
	return m.generate(userId, subjectLabel, TokenTypeAccess, m.accessDuration)
}

// GenerateRefreshToken issues a longer-lived refresh token.
func (m *Manager) GenerateRefreshToken(userId int64, subjectLabel string) (string, error) {
	return m.generate(userId, subjectLabel, TokenTypeRefresh, m.refreshDuration)
}

func (m *Manager) generate(userId int64, subjectLabel, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserId:       strconv.FormatInt(userId, 10),
		SubjectLabel: subjectLabel,
		TokenType:    tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userId, 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secretKey)
}

// Parse validates a token of either type and returns its claims.
func (m *Manager) Parse(tokenString string) (*entity.TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	userId, err := strconv.ParseInt(claims.UserId, 10, 64)
	if err != nil {
		return nil, ErrInvalidToken
	}

	return &entity.TokenClaims{
		UserId:       userId,
		SubjectLabel: claims.SubjectLabel,
		TokenType:    claims.TokenType,
	}, nil
}

// AccessTTL reports the access token lifetime; the whitelist entry uses
// the same TTL.
func (m *Manager) AccessTTL() time.Duration {
	return m.accessDuration
}

func (m *Manager) RefreshTTL() time.Duration {
	return m.refreshDuration
}
