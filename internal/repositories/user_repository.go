package repositories

import (
	"context"
	"errors"

	"adminpanel/internal/models"
)

var (
	// ErrNotFound is wrapped by every lookup that matches no user.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateEmail is returned when the storage-level unique index rejects an email.
	ErrDuplicateEmail = errors.New("email already exists")
)

// Sortable columns for ListQuery.OrderBy.
var SortableColumns = map[string]bool{
	"id":         true,
	"name":       true,
	"email":      true,
	"created_at": true,
	"updated_at": true,
}

// ListQuery describes one page of the user list.
type ListQuery struct {
	Search  string
	Offset  int
	Limit   int
	OrderBy string
	Desc    bool
}

// UserRepository defines the interface for user data access.
type UserRepository interface {
	List(ctx context.Context, q ListQuery) ([]models.User, int64, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// EmailTaken reports whether another user owns email. exceptID may be empty.
	EmailTaken(ctx context.Context, email, exceptID string) (bool, error)
	Create(ctx context.Context, fields models.Payload) (*models.User, error)
	Update(ctx context.Context, user *models.User, fields models.Payload) (*models.User, error)
	Delete(ctx context.Context, id string) error
}

// applyFields copies fillable payload values onto u.
func applyFields(u *models.User, fields models.Payload) {
	if v, ok := fields[models.FieldName]; ok {
		u.Name = v
	}
	if v, ok := fields[models.FieldEmail]; ok {
		u.Email = v
	}
	if v, ok := fields[models.FieldPassword]; ok {
		u.Password = v
	}
}

func orderColumn(q ListQuery) string {
	if SortableColumns[q.OrderBy] {
		return q.OrderBy
	}
	return "created_at"
}
