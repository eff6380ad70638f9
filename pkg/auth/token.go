package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/bazaarhq/bazaar-backend/pkg/config"
)

var (
	hs256 = jwt.SigningMethodHS256

	errNoSecret = errors.New("jwt secret is required")
	errNoIssuer = errors.New("jwt issuer is required")
	errNoTTL    = errors.New("jwt expiration minutes must be positive")
)

func checkJWTConfig(cfg config.JWTConfig) error {
	switch {
	case cfg.Secret == "":
		return errNoSecret
	case cfg.Issuer == "":
		return errNoIssuer
	case cfg.ExpirationMinutes <= 0:
		return errNoTTL
	}
	return nil
}

// checkPrincipal enforces that tenant-scoped roles always carry their tenant.
func checkPrincipal(p AccessTokenPayload) error {
	if !p.Role.IsValid() {
		return fmt.Errorf("invalid actor role %q", p.Role)
	}
	if p.Role.OwnsTenant() && (p.TenantID == nil || *p.TenantID == uuid.Nil) {
		return fmt.Errorf("role %s requires a tenant id", p.Role)
	}
	return nil
}

// MintAccessToken issues an HS256 token that expires cfg.ExpirationMinutes after now.
func MintAccessToken(cfg config.JWTConfig, now time.Time, payload AccessTokenPayload) (string, error) {
	if err := checkJWTConfig(cfg); err != nil {
		return "", err
	}
	if err := checkPrincipal(payload); err != nil {
		return "", err
	}
	if payload.JTI = strings.TrimSpace(payload.JTI); payload.JTI == "" {
		payload.JTI = uuid.NewString()
	}

	ttl := time.Duration(cfg.ExpirationMinutes) * time.Minute
	return sign(cfg.Secret, AccessTokenClaims{
		SubjectID: payload.SubjectID,
		Role:      payload.Role,
		TenantID:  payload.TenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        payload.JTI,
			Issuer:    cfg.Issuer,
			Subject:   payload.SubjectID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
}

// ParseAccessToken verifies signature, issuer and expiry, then re-checks
// the principal so a token minted before a role change cannot slip through.
func ParseAccessToken(cfg config.JWTConfig, raw string) (*AccessTokenClaims, error) {
	if cfg.Secret == "" {
		return nil, errNoSecret
	}
	var claims AccessTokenClaims
	if err := parse(cfg.Secret, raw, &claims, jwt.WithIssuer(cfg.Issuer)); err != nil {
		return nil, err
	}
	if err := checkPrincipal(AccessTokenPayload{Role: claims.Role, TenantID: claims.TenantID}); err != nil {
		return nil, err
	}
	return &claims, nil
}

func sign(secret string, claims jwt.Claims) (string, error) {
	signed, err := jwt.NewWithClaims(hs256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}
	return signed, nil
}

func parse(secret, raw string, claims jwt.Claims, opts ...jwt.ParserOption) error {
	key := []byte(secret)
	parser := jwt.NewParser(append(opts, jwt.WithValidMethods([]string{hs256.Alg()}), jwt.WithExpirationRequired())...)
	_, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) { return key, nil })
	return err
}
