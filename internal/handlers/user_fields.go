package handlers

import "adminpanel/internal/models"

// Column is one column of the user list view.
type Column struct {
	Name     string `json:"name"`
	Label    string `json:"label"`
	Sortable bool   `json:"sortable"`
}

// Field is one input of the create and update forms.
type Field struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	Type  string `json:"type"`
	Hint  string `json:"hint,omitempty"`
}

const keepPasswordHint = "Leave blank to keep current password"

func userListColumns() []Column {
	return []Column{
		{Name: "id", Label: "ID", Sortable: true},
		{Name: "name", Label: "Name", Sortable: true},
		{Name: "email", Label: "Email", Sortable: true},
		{Name: "created_at", Label: "Created At", Sortable: true},
		{Name: "updated_at", Label: "Updated At", Sortable: true},
	}
}

func userCreateFields() []Field {
	return []Field{
		{Name: models.FieldName, Label: "Name", Type: "text"},
		{Name: models.FieldEmail, Label: "Email", Type: "email"},
		{Name: models.FieldPassword, Label: "Password", Type: "password"},
		{Name: models.FieldPasswordConfirmation, Label: "Password Confirmation", Type: "password"},
	}
}

func userUpdateFields() []Field {
	fields := userCreateFields()
	for i := range fields {
		if fields[i].Name == models.FieldPassword {
			fields[i].Hint = keepPasswordHint
		}
	}
	return fields
}
