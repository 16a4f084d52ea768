package service

import (
	"context"
	"strings"

	"github.com/Success-Framework/SFManagers-sub001/internal/errs"
	"github.com/golang-jwt/jwt/v5"
)

type Claims struct {
	UserID uint `json:"user_id"`
	jwt.RegisteredClaims
}

// AuthService verifies access tokens issued by the account service. It never
// issues tokens itself.
type AuthService struct {
	secret []byte
	users  UserDirectory
}

func NewAuthService(secret string, users UserDirectory) *AuthService {
	return &AuthService{secret: []byte(secret), users: users}
}

// VerifyCredential returns the user id carried by a valid token whose user
// still exists.
func (s *AuthService) VerifyCredential(ctx context.Context, tokenString string) (uint, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return 0, errs.Unauthenticated("missing access token")
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method == nil || token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return 0, errs.Unauthenticated("invalid or expired token")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || claims.UserID == 0 {
		return 0, errs.Unauthenticated("invalid token")
	}

	exists, err := s.users.Exists(ctx, claims.UserID)
	if err != nil {
		return 0, errs.Unavailable("user lookup failed", err)
	}
	if !exists {
		return 0, errs.Unauthenticated("user does not exist")
	}
	return claims.UserID, nil
}
