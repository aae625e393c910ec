// Package auth signs and verifies the bearer tokens that carry a caller's
// labor.AuthContext. Login and session issuance live outside this service.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/warp/payroll-engine/labor"
)

var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	UserID    string `json:"uid"`
	CompanyID string `json:"cid"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

func ClaimsFor(ac labor.AuthContext) Claims {
	return Claims{
		UserID:    string(ac.UserID),
		CompanyID: string(ac.CompanyID),
		Role:      string(ac.Role),
	}
}

func (c Claims) AuthContext() labor.AuthContext {
	return labor.AuthContext{
		UserID:    labor.UserID(c.UserID),
		CompanyID: labor.CompanyID(c.CompanyID),
		Role:      labor.Role(c.Role),
	}
}

func GenerateToken(secret string, claims Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   claims.UserID,
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseToken verifies signature and expiry and requires every identity claim.
func ParseToken(secret, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID == "" || claims.CompanyID == "" || !labor.Role(claims.Role).Valid() {
		return nil, errors.Join(ErrInvalidToken, errors.New("missing identity claims"))
	}
	return claims, nil
}
