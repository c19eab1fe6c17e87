package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"asistencia/internal/policy"
)

// Claims represents JWT payload for a staff session.
type Claims struct {
	Role   string `json:"role"`
	AreaID string `json:"area_id"`
	jwt.RegisteredClaims
}

// Actor converts validated claims into the policy identity triple.
func (c Claims) Actor() policy.Actor {
	return policy.Actor{
		UserID: c.Subject,
		Role:   policy.Role(c.Role),
		AreaID: c.AreaID,
	}
}

// Issue signs a session token for the given user.
func Issue(userID string, role policy.Role, areaID, issuer, key string, ttl time.Duration) (string, time.Time, error) {
	exp := time.Now().Add(ttl)
	claims := Claims{
		Role:   string(role),
		AreaID: areaID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	if err != nil {
		return "", time.Time{}, err
	}
	return token, exp, nil
}

// Parse validates a token and returns claims.
func Parse(tokenStr, key, issuer string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(key), nil
	})
	if err != nil {
		return Claims{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, errors.New("invalid token")
	}
	if issuer != "" && claims.Issuer != issuer {
		return Claims{}, errors.New("issuer mismatch")
	}
	if !policy.Role(claims.Role).Valid() {
		return Claims{}, errors.New("unknown role")
	}
	return *claims, nil
}
