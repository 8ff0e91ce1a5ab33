package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken is returned for malformed, expired or badly signed tokens.
	ErrInvalidToken = errors.New("invalid token")

	// ErrRevoked is returned for tokens that were signed out.
	ErrRevoked = errors.New("token revoked")
)

// Options configures token issuance and validation.
type Options struct {
	Issuer   string
	Audience string
	TTL      time.Duration
	Leeway   time.Duration
}

// Claims are the verified contents of a token.
type Claims struct {
	UserID    string
	TokenID   string
	ExpiresAt time.Time
}

// JWT issues and verifies HS256 bearer tokens whose subject is the
// signed-in identity.
type JWT struct {
	secret  []byte
	opts    Options
	revoker Revoker
	now     func() time.Time
}

// NewJWT builds a token service. revoker may be nil.
func NewJWT(secret string, opts Options, revoker Revoker) (*JWT, error) {
	if len(secret) < 16 {
		return nil, errors.New("jwt secret must be at least 16 bytes")
	}
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	return &JWT{
		secret:  []byte(secret),
		opts:    opts,
		revoker: revoker,
		now:     time.Now,
	}, nil
}

// Issue signs a token for userID.
func (j *JWT) Issue(userID string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", errors.New("user id required")
	}
	now := j.now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    j.opts.Issuer,
		ExpiresAt: jwt.NewNumericDate(now.Add(j.opts.TTL)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ID:        uuid.NewString(),
	}
	if j.opts.Audience != "" {
		claims.Audience = jwt.ClaimStrings{j.opts.Audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature, the registered claims and the revocation list.
func (j *JWT) Verify(ctx context.Context, token string) (Claims, error) {
	rc, err := j.parse(token)
	if err != nil {
		return Claims{}, err
	}
	if j.revoker != nil && rc.ID != "" {
		revoked, err := j.revoker.IsRevoked(ctx, rc.ID)
		if err != nil {
			return Claims{}, fmt.Errorf("failed to check revocation: %w", err)
		}
		if revoked {
			return Claims{}, ErrRevoked
		}
	}
	return toClaims(rc), nil
}

// Revoke signs a token out until it expires. Invalid tokens are ignored.
func (j *JWT) Revoke(ctx context.Context, token string) error {
	if j.revoker == nil {
		return nil
	}
	rc, err := j.parse(token)
	if err != nil || rc.ExpiresAt == nil || rc.ID == "" {
		return nil
	}
	ttl := rc.ExpiresAt.Sub(j.now())
	return j.revoker.Revoke(ctx, rc.ID, ttl)
}

func (j *JWT) parse(token string) (jwt.RegisteredClaims, error) {
	claims := jwt.RegisteredClaims{}
	token = strings.TrimSpace(token)
	if token == "" {
		return claims, ErrInvalidToken
	}

	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(j.opts.Leeway),
		jwt.WithTimeFunc(j.now),
	}
	if j.opts.Issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(j.opts.Issuer))
	}
	if j.opts.Audience != "" {
		parserOptions = append(parserOptions, jwt.WithAudience(j.opts.Audience))
	}

	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return j.secret, nil
	}, parserOptions...)
	if err != nil || !parsed.Valid {
		return claims, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return claims, fmt.Errorf("%w: subject missing", ErrInvalidToken)
	}
	return claims, nil
}

func toClaims(rc jwt.RegisteredClaims) Claims {
	c := Claims{UserID: rc.Subject, TokenID: rc.ID}
	if rc.ExpiresAt != nil {
		c.ExpiresAt = rc.ExpiresAt.Time.UTC()
	}
	return c
}
