package invites

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the signed payload of an invite token. Expiry travels as an RFC 3339 timestamp and is
// checked by Verify rather than by the JWT library.
type Claims struct {
	ProjectID uuid.UUID `json:"projectId"`
	Expires   string    `json:"expiresAt"`
	jwt.RegisteredClaims
}

// Expiry parses Expires.
func (c *Claims) Expiry() (time.Time, error) {
	return time.Parse(time.RFC3339, c.Expires)
}

// Tokens signs and verifies invite tokens with a process-wide HMAC secret.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokens creates an invite token signer. now may be nil to use time.Now.
func NewTokens(secret string, ttl time.Duration, now func() time.Time) *Tokens {
	if now == nil {
		now = time.Now
	}
	return &Tokens{secret: []byte(secret), ttl: ttl, now: now}
}

// Sign returns a token for projectID expiring after the configured TTL.
func (t *Tokens) Sign(projectID uuid.UUID) (string, time.Time, error) {
	issued := t.now().UTC()
	expires := issued.Add(t.ttl).Truncate(time.Second)
	claims := Claims{
		ProjectID: projectID,
		Expires:   expires.Format(time.RFC3339),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(issued),
			ID:       uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign invite: %w", err)
	}
	return signed, expires, nil
}

// Verify checks the token signature and expiry. It returns ErrInvalidToken for anything that
// does not verify and ErrExpired for a genuine token past its expiry.
func (t *Tokens) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !parsed.Valid {
		if err == nil {
			err = errors.New("token not valid")
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.ProjectID == uuid.Nil {
		return nil, fmt.Errorf("%w: missing project", ErrInvalidToken)
	}
	expires, err := claims.Expiry()
	if err != nil {
		return nil, fmt.Errorf("%w: bad expiry: %v", ErrInvalidToken, err)
	}
	if t.now().After(expires) {
		return nil, ErrExpired
	}
	return claims, nil
}
