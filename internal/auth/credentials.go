package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultBcryptCost = 12
	DefaultTokenTTL   = 7 * 24 * time.Hour
)

// ErrInvalidToken is returned for every token that fails verification,
// whatever the reason.
var ErrInvalidToken = errors.New("invalid token")

// Credentials hashes passwords and mints and verifies signed bearer tokens.
type Credentials struct {
	secret []byte
	ttl    time.Duration
	cost   int
	now    func() time.Time

	// dummyHash is compared against when the account does not exist so
	// that a failed login takes the same time either way.
	dummyHash []byte
}

func NewCredentials(secret string, ttl time.Duration, cost int) (*Credentials, error) {
	if secret == "" {
		return nil, errors.New("token secret must not be empty")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range", cost)
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), cost)
	if err != nil {
		return nil, err
	}

	return &Credentials{
		secret:    []byte(secret),
		ttl:       ttl,
		cost:      cost,
		now:       time.Now,
		dummyHash: dummy,
	}, nil
}

func (c *Credentials) HashPassword(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), c.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (c *Credentials) VerifyPassword(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// BurnPasswordCheck performs a throwaway comparison with the same cost as a
// real one.
func (c *Credentials) BurnPasswordCheck(plaintext string) {
	_ = bcrypt.CompareHashAndPassword(c.dummyHash, []byte(plaintext))
}

func (c *Credentials) TokenTTL() time.Duration {
	return c.ttl
}

func (c *Credentials) GenerateToken(userID uuid.UUID) (string, error) {
	now := c.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// VerifyToken checks signature and expiry and returns the user id the token
// was minted for.
func (c *Credentials) VerifyToken(tokenString string) (uuid.UUID, error) {
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil || !token.Valid {
		return uuid.Nil, ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil || userID == uuid.Nil {
		return uuid.Nil, ErrInvalidToken
	}
	return userID, nil
}
