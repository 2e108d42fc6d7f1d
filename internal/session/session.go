// Package session issues and verifies the signed bearer tokens that carry a
// caller's identity and tenant grants.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/labsuite/labops/internal/models"
)

const issuer = "labops"

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("invalid session token")

// Claims is the JWT payload.
type Claims struct {
	jwt.RegisteredClaims
	Email     string                `json:"email"`
	Name      string                `json:"name,omitempty"`
	Role      string                `json:"role"`
	Companies []models.CompanyGrant `json:"companies"`
}

// Manager signs and parses HS256 session tokens.
type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewManager creates a Manager. The secret must already be validated by config.
func NewManager(secret string, ttl time.Duration) *Manager {
	return &Manager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL returns the lifetime of issued tokens.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Issue signs a token for sess and returns it with its expiry.
func (m *Manager) Issue(sess *models.Session) (string, time.Time, error) {
	now := m.now()
	exp := now.Add(m.ttl)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   sess.UserID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Email:     sess.Email,
		Name:      sess.Name,
		Role:      sess.Role,
		Companies: sess.Companies,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing session token: %w", err)
	}

	return signed, exp, nil
}

// Parse verifies token and returns the session it carries and its expiry.
func (m *Manager) Parse(token string) (*models.Session, time.Time, error) {
	claims := &Claims{}

	parsed, err := jwt.ParseWithClaims(token, claims, func(_ *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !parsed.Valid {
		return nil, time.Time{}, ErrInvalidToken
	}

	if claims.Subject == "" || !models.ValidRole(claims.Role) {
		return nil, time.Time{}, ErrInvalidToken
	}

	sess := &models.Session{
		UserID:    claims.Subject,
		Email:     claims.Email,
		Name:      claims.Name,
		Role:      claims.Role,
		Companies: claims.Companies,
	}

	return sess, claims.ExpiresAt.Time, nil
}
