// Package auth provides requester identity and token handling.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenExpiry is the lifetime of issued access tokens.
const AccessTokenExpiry = 12 * time.Hour

// DefaultLeeway for token validation.
const DefaultLeeway = 30 * time.Second

// ErrInvalidToken is returned when token validation fails.
var ErrInvalidToken = errors.New("invalid token")

// ErrExpiredToken is returned when the token has expired.
var ErrExpiredToken = errors.New("token has expired")

// ErrEmptyUserID is returned when userID is empty.
var ErrEmptyUserID = errors.New("userID cannot be empty")

// Claims carries the requester identity. Subject is the user id.
type Claims struct {
	jwt.RegisteredClaims
	Role Role `json:"role"`
}

// Requester converts claims into a Requester.
func (c *Claims) Requester() Requester {
	return Requester{UserID: c.Subject, Role: c.Role}
}

// TokenService signs and validates HS256 requester tokens.
// Tokens are signed with currentSecret and accepted under either
// currentSecret or previousSecret so secrets can be rotated without downtime.
type TokenService struct {
	currentSecret  []byte
	previousSecret []byte
	leeway         time.Duration
	now            func() time.Time
}

// NewTokenService creates a TokenService. previousSecret may be empty.
func NewTokenService(currentSecret, previousSecret string) *TokenService {
	svc := &TokenService{
		currentSecret: []byte(currentSecret),
		leeway:        DefaultLeeway,
		now:           time.Now,
	}
	if previousSecret != "" {
		svc.previousSecret = []byte(previousSecret)
	}
	return svc
}

// WithLeeway returns a copy of the service using the given validation leeway.
func (s *TokenService) WithLeeway(leeway time.Duration) *TokenService {
	cp := *s
	cp.leeway = leeway
	return &cp
}

// Issue creates an access token for the user with the given role.
func (s *TokenService) Issue(userID string, role Role) (string, error) {
	if userID == "" {
		return "", ErrEmptyUserID
	}
	if _, err := ParseRole(string(role)); err != nil {
		return "", err
	}

	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(AccessTokenExpiry)),
		},
		Role: role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.currentSecret)
}

// Validate parses a token and returns its claims if valid under either secret.
func (s *TokenService) Validate(tokenString string) (*Claims, error) {
	claims, err := s.parse(tokenString, s.currentSecret)
	if err == nil {
		return claims, nil
	}
	if s.previousSecret != nil {
		if prev, perr := s.parse(tokenString, s.previousSecret); perr == nil {
			return prev, nil
		}
	}

	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, ErrExpiredToken
	}
	return nil, ErrInvalidToken
}

func (s *TokenService) parse(tokenString string, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, ErrInvalidToken
		}
		return secret, nil
	}, jwt.WithLeeway(s.leeway), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	if _, err := ParseRole(string(claims.Role)); err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
