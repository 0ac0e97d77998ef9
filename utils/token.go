package utils

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// TokenMetadata struct to describe metadata in JWT.
type TokenMetadata struct {
	UserID uint
	Email  string
	Otp    bool
	Exp    int64
}

// Subject is the user id as casbin and socket.io rooms key it.
func (m *TokenMetadata) Subject() string {
	return strconv.FormatUint(uint64(m.UserID), 10)
}

// GenerateToken signs a session token for the user. otp marks a token that still has to
// pass the 2FA check.
func GenerateToken(secret string, ttl time.Duration, userID uint, email string, otp bool) (string, error) {
	claims := jwt.MapClaims{}

	claims["sub"] = strconv.FormatUint(uint64(userID), 10)
	claims["email"] = email
	claims["otp"] = otp
	claims["exp"] = time.Now().Add(ttl).Unix()

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	return token.SignedString([]byte(secret))
}

func CheckAndExtractTokenMetadata(token string, secret string) (*TokenMetadata, error) {
	t, err := jwt.Parse(token, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}))
	if err != nil || !t.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return ClaimsMetadata(claims)
}

// ClaimsMetadata reads the session claims of an already verified token.
func ClaimsMetadata(claims jwt.MapClaims) (*TokenMetadata, error) {
	sub, ok := claims["sub"].(string)
	if !ok {
		return nil, ErrInvalidToken
	}
	id, err := strconv.ParseUint(sub, 10, 64)
	if err != nil || id == 0 {
		return nil, ErrInvalidToken
	}

	email, _ := claims["email"].(string)
	otp, _ := claims["otp"].(bool)
	exp, _ := claims["exp"].(float64)

	return &TokenMetadata{
		UserID: uint(id),
		Email:  email,
		Otp:    otp,
		Exp:    int64(exp),
	}, nil
}
