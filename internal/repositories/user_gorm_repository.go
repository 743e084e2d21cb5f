package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"adminpanel/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// likeEscaper makes the search term match literally inside a LIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// GORMUserRepository is a GORM implementation of UserRepository.
// The *gorm.DB must be opened with TranslateError so unique index
// violations surface as gorm.ErrDuplicatedKey.
type GORMUserRepository struct {
	db *gorm.DB
}

// NewGORMUserRepository creates a new instance of GORMUserRepository.
func NewGORMUserRepository(db *gorm.DB) *GORMUserRepository {
	return &GORMUserRepository{
		db: db,
	}
}

// List returns one page of users and the total number of matches.
func (r *GORMUserRepository) List(ctx context.Context, q ListQuery) ([]models.User, int64, error) {
	tx := r.db.WithContext(ctx).Model(&models.User{})
	if s := strings.TrimSpace(q.Search); s != "" {
		like := "%" + likeEscaper.Replace(strings.ToLower(s)) + "%"
		tx = tx.Where(`LOWER(name) LIKE ? ESCAPE '\' OR LOWER(email) LIKE ? ESCAPE '\'`, like, like)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	dir := "ASC"
	if q.Desc {
		dir = "DESC"
	}
	tx = tx.Order(orderColumn(q) + " " + dir).Order("id " + dir)
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit).Offset(q.Offset)
	}

	users := make([]models.User, 0)
	if err := tx.Find(&users).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	return users, total, nil
}

// GetByID retrieves a user by their ID from the database.
func (r *GORMUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user with ID %s not found: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user by ID %s: %w", id, err)
	}
	return &user, nil
}

// GetByEmail retrieves a user by their email from the database.
func (r *GORMUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user with email %s not found: %w", email, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user by email %s: %w", email, err)
	}
	return &user, nil
}

// EmailTaken reports whether a user other than exceptID already uses email.
func (r *GORMUserRepository) EmailTaken(ctx context.Context, email, exceptID string) (bool, error) {
	tx := r.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email)
	if exceptID != "" {
		tx = tx.Where("id <> ?", exceptID)
	}
	var count int64
	if err := tx.Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check email uniqueness: %w", err)
	}
	return count > 0, nil
}

// Create inserts a user built from the fillable fields.
func (r *GORMUserRepository) Create(ctx context.Context, fields models.Payload) (*models.User, error) {
	user := &models.User{ID: uuid.New().String()}
	applyFields(user, fields)
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("failed to create user: %w", ErrDuplicateEmail)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// Update merges fields into the stored user and returns the fresh row.
// Columns missing from fields are left untouched.
func (r *GORMUserRepository) Update(ctx context.Context, user *models.User, fields models.Payload) (*models.User, error) {
	if len(fields) > 0 {
		values := make(map[string]interface{}, len(fields))
		for k, v := range fields {
			values[k] = v
		}
		res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).Updates(values)
		if res.Error != nil {
			if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
				return nil, fmt.Errorf("failed to update user: %w", ErrDuplicateEmail)
			}
			return nil, fmt.Errorf("failed to update user: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, fmt.Errorf("user with ID %s not found for update: %w", user.ID, ErrNotFound)
		}
	}
	return r.GetByID(ctx, user.ID)
}

// Delete deletes a user by their ID from the database.
func (r *GORMUserRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&models.User{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("user with ID %s not found for deletion: %w", id, ErrNotFound)
	}
	return nil
}

var _ UserRepository = (*GORMUserRepository)(nil)
