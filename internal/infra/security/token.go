package security

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"rentalcore/internal/pkg/errs"
)

// RoleAdmin grants dispute resolution and access to every rental.
const RoleAdmin = "admin"

const defaultTTL = time.Hour

var (
	ErrInvalidToken = errs.New("security: invalid token")
	ErrExpiredToken = errs.New("security: token has expired")
	ErrNoSecret     = errs.New("security: signing secret not configured")
)

// Claims carried by access tokens. The subject is the marketplace user id.
type Claims struct {
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

func (c Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if strings.EqualFold(strings.TrimSpace(r), role) {
			return true
		}
	}
	return false
}

// TokenManager signs and validates HS256 access tokens.
type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenManager(secret, issuer string) *TokenManager {
	return &TokenManager{secret: []byte(secret), issuer: issuer, ttl: defaultTTL, now: time.Now}
}

// WithTTL overrides the lifetime of issued tokens.
func (m *TokenManager) WithTTL(ttl time.Duration) *TokenManager {
	if ttl > 0 {
		m.ttl = ttl
	}
	return m
}

// Configured reports whether tokens can be issued and checked.
func (m *TokenManager) Configured() bool {
	return m != nil && len(m.secret) > 0
}

func (m *TokenManager) Issue(userID string, roles ...string) (string, error) {
	if !m.Configured() {
		return "", ErrNoSecret
	}
	if strings.TrimSpace(userID) == "" {
		return "", errs.New("security: subject required")
	}
	now := m.now()
	claims := Claims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", errs.Wrap(err, "security: sign token")
	}
	return signed, nil
}

// Validate parses tokenString and checks signature, expiry and issuer.
func (m *TokenManager) Validate(tokenString string) (*Claims, error) {
	if !m.Configured() {
		return nil, ErrNoSecret
	}
	opts := []jwt.ParserOption{jwt.WithTimeFunc(m.now)}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, errs.WithSecondary(ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
