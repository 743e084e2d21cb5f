package models

import "time"

// User represents an account managed from the admin panel.
type User struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name      string    `json:"name" gorm:"type:varchar(255);not null"`
	Email     string    `json:"email" gorm:"uniqueIndex;type:varchar(255);not null"`
	Password  string    `json:"-" gorm:"type:varchar(255);not null"` // bcrypt hash, never serialized
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Payload is a submitted create/update form, keyed by field name.
type Payload map[string]string

// Field names accepted by the user forms.
const (
	FieldName                 = "name"
	FieldEmail                = "email"
	FieldPassword             = "password"
	FieldPasswordConfirmation = "password_confirmation"
)

// Fillable lists the payload keys that map to user columns.
var Fillable = []string{FieldName, FieldEmail, FieldPassword}

// Only returns a copy holding just the given keys that are present.
func (p Payload) Only(keys ...string) Payload {
	out := make(Payload, len(keys))
	for _, k := range keys {
		if v, ok := p[k]; ok {
			out[k] = v
		}
	}
	return out
}
