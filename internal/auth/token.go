package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"devflow/internal/models"
)

// TokenType separates access tokens from refresh tokens.
type TokenType string

const (
	AccessToken  TokenType = "access"
	RefreshToken TokenType = "refresh"
)

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("invalid or expired token")

// Claims is the JWT payload.
type Claims struct {
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
	Type  TokenType   `json:"typ"`
	jwt.RegisteredClaims
}

// TokenConfig configures an Issuer.
type TokenConfig struct {
	Secret        string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Now           func() time.Time
}

// Issuer signs and verifies access and refresh tokens with separate keys.
type Issuer struct {
	accessKey  []byte
	refreshKey []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	issuer     string
	now        func() time.Time
}

// NewIssuer validates cfg and builds an Issuer.
func NewIssuer(cfg TokenConfig) (*Issuer, error) {
	if cfg.Secret == "" || cfg.RefreshSecret == "" {
		return nil, fmt.Errorf("jwt secrets must be set")
	}
	if cfg.Secret == cfg.RefreshSecret {
		return nil, fmt.Errorf("jwt access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 7 * 24 * time.Hour
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 30 * 24 * time.Hour
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "devflow"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Issuer{
		accessKey:  []byte(cfg.Secret),
		refreshKey: []byte(cfg.RefreshSecret),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		issuer:     cfg.Issuer,
		now:        cfg.Now,
	}, nil
}

// TokenPair is what a successful authentication hands back.
type TokenPair struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// Issue signs a fresh access and refresh token for u.
func (i *Issuer) Issue(u models.User) (TokenPair, error) {
	access, err := i.sign(u, AccessToken, i.accessTTL, i.accessKey)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := i.sign(u, RefreshToken, i.refreshTTL, i.refreshKey)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Token: access, RefreshToken: refresh}, nil
}

func (i *Issuer) sign(u models.User, typ TokenType, ttl time.Duration, key []byte) (string, error) {
	now := i.now()
	claims := Claims{
		Email: u.Email,
		Role:  u.Role,
		Type:  typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.New().String(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", typ, err)
	}
	return signed, nil
}

// ParseAccess verifies an access token.
func (i *Issuer) ParseAccess(token string) (*Claims, error) {
	return i.parse(token, AccessToken, i.accessKey)
}

// ParseRefresh verifies a refresh token.
func (i *Issuer) ParseRefresh(token string) (*Claims, error) {
	return i.parse(token, RefreshToken, i.refreshKey)
}

func (i *Issuer) parse(token string, want TokenType, key []byte) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Type != want || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
