package models

import "github.com/google/uuid"

// ensureID assigns a random id before insert when the caller left it empty.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
