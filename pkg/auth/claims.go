package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/bazaarhq/bazaar-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	SubjectID uuid.UUID
	Role      enums.ActorRole
	// TenantID is the shop a shop user acts for, or the company of a company
	// user or driver. Admins and customers carry none.
	TenantID *uuid.UUID
	JTI      string
}

// AccessTokenClaims represents the typed JWT presented by clients.
type AccessTokenClaims struct {
	SubjectID uuid.UUID       `json:"sid"`
	Role      enums.ActorRole `json:"role"`
	TenantID  *uuid.UUID      `json:"tid,omitempty"`
	jwt.RegisteredClaims
}

// DigitalDownloadClaims grants a time-limited download of one purchased file.
type DigitalDownloadClaims struct {
	OrderDetailID uuid.UUID `json:"order_detail_id"`
	DigitalFileID uuid.UUID `json:"digital_file_id"`
	jwt.RegisteredClaims
}
