package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/loyaltix/server/internal/model"
)

// Claims are the JWT claims carried by both access and refresh tokens.
// Realm and Business scope which route groups the token may reach.
type Claims struct {
	JTI       uuid.UUID       `json:"jti"`
	UserID    uuid.UUID       `json:"user_id"`
	Realm     model.Realm     `json:"realm"`
	Business  string          `json:"business,omitempty"`
	TokenType model.TokenKind `json:"type"`
	jwt.RegisteredClaims
}

// JWTService signs and verifies HS256 tokens.
type JWTService struct {
	secret []byte
}

// NewJWTService creates a new JWT service.
func NewJWTService(secret string) *JWTService {
	return &JWTService{secret: []byte(secret)}
}

// Sign encodes a token record. Expiry and issue time come from the record so
// the JWT and the DB row never disagree.
func (s *JWTService) Sign(rec *model.TokenRecord) (string, error) {
	claims := &Claims{
		JTI:       rec.JTI,
		UserID:    rec.UserID,
		Realm:     rec.Realm,
		Business:  rec.BusinessCode,
		TokenType: rec.Kind,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(rec.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(rec.ExpiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", rec.Kind, err)
	}
	return signed, nil
}

// Verify parses a token and checks the signature, expiry and expected kind.
func (s *JWTService) Verify(tokenString string, kind model.TokenKind) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.TokenType != kind {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
