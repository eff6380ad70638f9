package auth

import (
	"github.com/google/uuid"

	"github.com/bazaarhq/bazaar-backend/pkg/enums"
)

// Account kinds that can sign in with a password.
const (
	AccountCompany = "company"
	AccountDriver  = "driver"
)

// LoginRequest captures the credentials sent to the login endpoint.
type LoginRequest struct {
	Account  string `json:"account" validate:"required,oneof=company driver"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the access token and the identity it encodes.
type LoginResponse struct {
	AccessToken string          `json:"access_token"`
	SubjectID   uuid.UUID       `json:"subject_id"`
	Role        enums.ActorRole `json:"role"`
	TenantID    uuid.UUID       `json:"tenant_id"`
}
