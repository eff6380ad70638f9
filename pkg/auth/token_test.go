package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/bazaarhq/bazaar-backend/pkg/config"
	"github.com/bazaarhq/bazaar-backend/pkg/enums"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "secret",
		Issuer:            "bazaar",
		ExpirationMinutes: 30,
	}
}

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := testJWTConfig()
	now := time.Now().UTC()
	userID := uuid.New()
	shopID := uuid.New()

	token, err := MintAccessToken(cfg, now, AccessTokenPayload{
		SubjectID: userID,
		Role:      enums.ActorRoleShop,
		TenantID:  &shopID,
	})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	claims, err := ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}

	if claims.SubjectID != userID {
		t.Fatalf("expected subject %s, got %s", userID, claims.SubjectID)
	}
	if claims.TenantID == nil || *claims.TenantID != shopID {
		t.Fatalf("tenant id not preserved")
	}
	if claims.Role != enums.ActorRoleShop {
		t.Fatalf("unexpected role %s", claims.Role)
	}
	if claims.Issuer != cfg.Issuer {
		t.Fatalf("expected issuer %s, got %s", cfg.Issuer, claims.Issuer)
	}

	exp := now.Add(time.Duration(cfg.ExpirationMinutes) * time.Minute)
	diff := claims.ExpiresAt.Sub(exp)
	if diff < 0 {
		diff = -diff
	}
	if diff >= time.Second {
		t.Fatalf("expected exp roughly %v, got %v (diff %v)", exp.UTC(), claims.ExpiresAt.UTC(), diff)
	}
}

func TestParseAccessTokenInvalidSignature(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{
		SubjectID: uuid.New(),
		Role:      enums.ActorRoleAdmin,
	})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	if _, err := ParseAccessToken(cfg, token+"x"); err == nil {
		t.Fatal("expected invalid signature error")
	}
}

func TestParseAccessTokenExpired(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now().Add(-time.Hour), AccessTokenPayload{
		SubjectID: uuid.New(),
		Role:      enums.ActorRoleCustomer,
	})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	_, err = ParseAccessToken(cfg, token)
	if err == nil {
		t.Fatal("expected expiration error")
	}
	if !strings.Contains(err.Error(), "expired") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMintAccessTokenValidatesRole(t *testing.T) {
	cfg := testJWTConfig()
	if _, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{SubjectID: uuid.New()}); err == nil {
		t.Fatal("expected invalid role error")
	}
	if _, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{SubjectID: uuid.New(), Role: enums.ActorRoleCompany}); err == nil {
		t.Fatal("expected company token without tenant to fail")
	}
}

func TestDigitalTokenRoundTrip(t *testing.T) {
	cfg := config.DigitalConfig{TokenSecret: "download-secret", TokenTTL: 24 * time.Hour}
	detailID, fileID := uuid.New(), uuid.New()
	now := time.Now().UTC()

	token, expiresAt, err := MintDigitalToken(cfg, now, detailID, fileID)
	if err != nil {
		t.Fatalf("mint digital token: %v", err)
	}
	if !expiresAt.Equal(now.Add(24 * time.Hour)) {
		t.Fatalf("unexpected expiry %v", expiresAt)
	}

	claims, err := ParseDigitalToken(cfg, token)
	if err != nil {
		t.Fatalf("parse digital token: %v", err)
	}
	if claims.OrderDetailID != detailID || claims.DigitalFileID != fileID {
		t.Fatalf("claims mismatch %+v", claims)
	}
}

func TestDigitalTokenRejectsAccessToken(t *testing.T) {
	jwtCfg := testJWTConfig()
	access, err := MintAccessToken(jwtCfg, time.Now(), AccessTokenPayload{SubjectID: uuid.New(), Role: enums.ActorRoleAdmin})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	cfg := config.DigitalConfig{TokenSecret: jwtCfg.Secret, TokenTTL: time.Hour}
	if _, err := ParseDigitalToken(cfg, access); err == nil {
		t.Fatal("access token must not unlock downloads")
	}
}

func TestDigitalTokenExpired(t *testing.T) {
	cfg := config.DigitalConfig{TokenSecret: "download-secret", TokenTTL: time.Hour}
	token, _, err := MintDigitalToken(cfg, time.Now().Add(-2*time.Hour), uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("mint digital token: %v", err)
	}
	if _, err := ParseDigitalToken(cfg, token); err == nil {
		t.Fatal("expected expired token to fail")
	}
}

func TestMintAccessTokenRequiresConfig(t *testing.T) {
	payload := AccessTokenPayload{SubjectID: uuid.New(), Role: enums.ActorRoleAdmin}
	for _, cfg := range []config.JWTConfig{
		{Issuer: "bazaar", ExpirationMinutes: 5},
		{Secret: "s", ExpirationMinutes: 5},
		{Secret: "s", Issuer: "bazaar"},
	} {
		if _, err := MintAccessToken(cfg, time.Now(), payload); err == nil {
			t.Fatalf("expected config %+v to be rejected", cfg)
		}
	}
}

func TestParseAccessTokenRejectsTenantlessShop(t *testing.T) {
	cfg := testJWTConfig()
	now := time.Now()
	forged, err := sign(cfg.Secret, AccessTokenClaims{
		SubjectID: uuid.New(),
		Role:      enums.ActorRoleShop,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		},
	})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseAccessToken(cfg, forged); err == nil {
		t.Fatal("expected shop token without tenant to be rejected")
	}
}
