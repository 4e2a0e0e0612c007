package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/SahanWeerasiri/genApp/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
)

// Token types
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var (
	ErrWrongTokenType = errors.New("wrong token type")
	ErrRevoked        = errors.New("refresh token revoked or unknown")
)

// Claims carried by access and refresh tokens
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role"`
	Type   string `json:"type"`
	jwt.RegisteredClaims
}

// Issuer signs HS256 access/refresh token pairs. Refresh tokens are only
// honored while they sit in the in-process allow-list.
type Issuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	refresh    *ttlcache.Cache[string, string]
}

// NewIssuer creates a new token issuer
func NewIssuer(cfg *config.JWTConfig) *Issuer {
	return &Issuer{
		secret:     []byte(cfg.Secret),
		accessTTL:  cfg.AccessTTL(),
		refreshTTL: cfg.RefreshTTL(),
		refresh: ttlcache.New[string, string](
			ttlcache.WithTTL[string, string](cfg.RefreshTTL()),
			ttlcache.WithDisableTouchOnHit[string, string](),
		),
	}
}

// Start runs the allow-list janitor until Stop is called.
func (i *Issuer) Start() {
	go i.refresh.Start()
}

func (i *Issuer) Stop() {
	i.refresh.Stop()
}

// IssuePair signs a new access token and a new allow-listed refresh token.
func (i *Issuer) IssuePair(userID, email, role string) (string, string, error) {
	access, err := i.sign(userID, email, role, TokenTypeAccess, i.accessTTL)
	if err != nil {
		return "", "", err
	}
	refresh, err := i.sign(userID, email, role, TokenTypeRefresh, i.refreshTTL)
	if err != nil {
		return "", "", err
	}
	i.refresh.Set(refresh, userID, ttlcache.DefaultTTL)
	return access, refresh, nil
}

// IssueAccess signs an access token only.
func (i *Issuer) IssueAccess(userID, email, role string) (string, error) {
	return i.sign(userID, email, role, TokenTypeAccess, i.accessTTL)
}

func (i *Issuer) sign(userID, email, role, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Email:  email,
		Role:   role,
		Type:   tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Validate parses tokenString and checks it is a live token of tokenType.
func (i *Issuer) Validate(tokenString, tokenType string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return i.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.Type != tokenType {
		return nil, ErrWrongTokenType
	}
	if tokenType == TokenTypeRefresh && !i.refresh.Has(tokenString) {
		return nil, ErrRevoked
	}
	return claims, nil
}

// Refresh exchanges a valid refresh token for a new access token.
func (i *Issuer) Refresh(refreshToken string) (string, *Claims, error) {
	claims, err := i.Validate(refreshToken, TokenTypeRefresh)
	if err != nil {
		return "", nil, err
	}
	access, err := i.IssueAccess(claims.UserID, claims.Email, claims.Role)
	if err != nil {
		return "", nil, err
	}
	return access, claims, nil
}

// Revoke drops a refresh token from the allow-list.
func (i *Issuer) Revoke(refreshToken string) {
	i.refresh.Delete(refreshToken)
}
