package services

import (
	"errors"
	"fmt"

	"adminpanel/internal/models"
	"adminpanel/pkg/password"
)

var errMissingPassword = errors.New("password is required to create a user")

// SanitizeCredentialInput prepares a validated payload for storage, in place:
// the confirmation is always dropped, a filled password is replaced by its hash
// and a blank one is removed so the stored hash stays untouched on update.
// No other key is modified. On return no plaintext secret is left in p.
func SanitizeCredentialInput(p models.Payload, mode Mode, hasher password.Hasher) error {
	delete(p, models.FieldPasswordConfirmation)

	if !filled(p, models.FieldPassword) {
		delete(p, models.FieldPassword)
		if mode == ModeCreate {
			return errMissingPassword
		}
		return nil
	}

	hash, err := hasher.Hash(p[models.FieldPassword])
	delete(p, models.FieldPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	p[models.FieldPassword] = hash
	return nil
}
