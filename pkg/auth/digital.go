package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/bazaarhq/bazaar-backend/pkg/config"
)

const digitalAudience = "digital-download"

// MintDigitalToken signs a download grant for one order detail's file. It expires after cfg.TokenTTL.
func MintDigitalToken(cfg config.DigitalConfig, now time.Time, orderDetailID, digitalFileID uuid.UUID) (string, time.Time, error) {
	if cfg.TokenSecret == "" {
		return "", time.Time{}, fmt.Errorf("digital token secret is required")
	}
	if cfg.TokenTTL <= 0 {
		return "", time.Time{}, fmt.Errorf("digital token ttl must be positive")
	}

	expiresAt := now.Add(cfg.TokenTTL)
	claims := DigitalDownloadClaims{
		OrderDetailID: orderDetailID,
		DigitalFileID: digitalFileID,
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{digitalAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}
	signed, err := sign(cfg.TokenSecret, claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ParseDigitalToken validates a download grant.
func ParseDigitalToken(cfg config.DigitalConfig, tokenString string) (*DigitalDownloadClaims, error) {
	if cfg.TokenSecret == "" {
		return nil, fmt.Errorf("digital token secret is required")
	}
	claims := &DigitalDownloadClaims{}
	if err := parse(cfg.TokenSecret, tokenString, claims, jwt.WithAudience(digitalAudience)); err != nil {
		return nil, err
	}
	if claims.OrderDetailID == uuid.Nil || claims.DigitalFileID == uuid.Nil {
		return nil, fmt.Errorf("digital token missing file reference")
	}
	return claims, nil
}
