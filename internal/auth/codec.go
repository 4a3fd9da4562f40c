package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/nekonik/registry/pkg/models"
)

// sessionClaims is the signed form of a session record as kept in the cache.
type sessionClaims struct {
	jwt.RegisteredClaims
	Session models.Session `json:"session"`
}

// sessionCodec signs session records with HS256. Records that fail
// verification on read are rejected.
type sessionCodec struct {
	secret []byte
	now    func() time.Time
}

func (c *sessionCodec) encode(s *models.Session) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(c.now()),
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
		},
		Session: *s,
	})

	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	return signed, nil
}

func (c *sessionCodec) decode(signed string) (*models.Session, error) {
	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(signed, claims,
		func(t *jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &claims.Session, nil
}
