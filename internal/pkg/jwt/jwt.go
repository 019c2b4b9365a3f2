package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "coop-ledger"

var (
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenInvalid = errors.New("token is invalid")
)

// Claims carried by an access token
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// RefreshClaims carried by a refresh token. TokenID identifies the stored row.
type RefreshClaims struct {
	UserID  string `json:"user_id"`
	TokenID string `json:"token_id"`
	jwt.RegisteredClaims
}

// Signer issues and validates both token kinds with separate secrets
type Signer struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Now           func() time.Time
}

// NewSigner builds a Signer from minute/day lifetimes as they appear in config
func NewSigner(accessSecret, refreshSecret string, accessMinutes, refreshDays int) *Signer {
	return &Signer{
		AccessSecret:  accessSecret,
		RefreshSecret: refreshSecret,
		AccessTTL:     time.Duration(accessMinutes) * time.Minute,
		RefreshTTL:    time.Duration(refreshDays) * 24 * time.Hour,
		Now:           time.Now,
	}
}

func (s *Signer) registered(subject string, ttl time.Duration) jwt.RegisteredClaims {
	now := s.Now()
	return jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		Issuer:    issuer,
		Subject:   subject,
	}
}

// AccessToken signs a short-lived token for userID
func (s *Signer) AccessToken(userID, username, role string) (string, error) {
	claims := Claims{
		UserID:           userID,
		Username:         username,
		Role:             role,
		RegisteredClaims: s.registered(userID, s.AccessTTL),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.AccessSecret))
}

// RefreshToken signs a long-lived token bound to a stored token id
func (s *Signer) RefreshToken(userID, tokenID string) (string, error) {
	claims := RefreshClaims{
		UserID:           userID,
		TokenID:          tokenID,
		RegisteredClaims: s.registered(userID, s.RefreshTTL),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.RefreshSecret))
}

// RefreshExpiry is when a refresh token issued now stops being valid
func (s *Signer) RefreshExpiry() time.Time {
	return s.Now().Add(s.RefreshTTL)
}

// ParseAccess validates an access token and returns its claims
func (s *Signer) ParseAccess(tokenString string) (*Claims, error) {
	claims := &Claims{}
	if err := s.parse(tokenString, s.AccessSecret, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// ParseRefresh validates a refresh token and returns its claims
func (s *Signer) ParseRefresh(tokenString string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := s.parse(tokenString, s.RefreshSecret, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (s *Signer) parse(tokenString, secret string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(s.Now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return ErrTokenInvalid
	}
	if !token.Valid {
		return ErrTokenInvalid
	}
	return nil
}
