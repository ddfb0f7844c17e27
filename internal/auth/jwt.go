// Package auth issues and checks the bearer tokens of the tracker API.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTTL is the lifetime of issued tokens.
const DefaultTTL = 7 * 24 * time.Hour

// Identity is the caller a token was issued to.
type Identity struct {
	Subject string
	Tenant  string
}

type JWT struct {
	secret []byte
	ttl    time.Duration
}

func NewJWT(secret string) *JWT {
	return &JWT{secret: []byte(secret), ttl: DefaultTTL}
}

// Sign issues a token for subject scoped to tenant.
func (j *JWT) Sign(subject, tenant string) (string, error) {
	if subject == "" || tenant == "" {
		return "", errors.New("subject and tenant are required")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":    subject,
		"tenant": tenant,
		"iat":    now.Unix(),
		"exp":    now.Add(j.ttl).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(j.secret)
}

func (j *JWT) Verify(tokenStr string) (Identity, error) {
	t, err := jwt.Parse(tokenStr, func(token *jwt.Token) (any, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return j.secret, nil
	})
	if err != nil || !t.Valid {
		return Identity{}, errors.New("invalid token")
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, errors.New("invalid claims")
	}

	sub, _ := claims["sub"].(string)
	tenant, _ := claims["tenant"].(string)
	if sub == "" || tenant == "" {
		return Identity{}, errors.New("missing sub or tenant")
	}
	return Identity{Subject: sub, Tenant: tenant}, nil
}
