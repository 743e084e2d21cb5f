package repositories

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"adminpanel/internal/models"

	"github.com/google/uuid"
)

// MockUserRepository is an in-memory implementation of UserRepository.
// It enforces email uniqueness the way the database unique index does.
type MockUserRepository struct {
	users map[string]models.User
	mu    sync.RWMutex
	now   func() time.Time
}

// NewMockUserRepository creates a new instance of MockUserRepository.
func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		users: make(map[string]models.User),
		now:   time.Now,
	}
}

// Seed stores users as-is, keeping their IDs and timestamps.
func (r *MockUserRepository) Seed(users ...models.User) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range users {
		r.users[u.ID] = u
	}
}

// List returns one page of users and the total number of matches.
func (r *MockUserRepository) List(ctx context.Context, q ListQuery) ([]models.User, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(q.Search))
	matched := make([]models.User, 0, len(r.users))
	for _, u := range r.users {
		if needle != "" &&
			!strings.Contains(strings.ToLower(u.Name), needle) &&
			!strings.Contains(strings.ToLower(u.Email), needle) {
			continue
		}
		matched = append(matched, u)
	}

	col := orderColumn(q)
	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		c := compareColumn(a, b, col)
		if c == 0 {
			c = strings.Compare(a.ID, b.ID)
		}
		if q.Desc {
			return c > 0
		}
		return c < 0
	})

	total := int64(len(matched))
	if q.Limit > 0 {
		if q.Offset >= len(matched) {
			return []models.User{}, total, nil
		}
		end := q.Offset + q.Limit
		if end > len(matched) {
			end = len(matched)
		}
		matched = matched[q.Offset:end]
	}
	return matched, total, nil
}

// GetByID returns a user by their ID.
func (r *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, fmt.Errorf("user with ID %s not found: %w", id, ErrNotFound)
	}
	return &u, nil
}

// GetByEmail returns a user by their email.
func (r *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user with email %s not found: %w", email, ErrNotFound)
}

// EmailTaken reports whether a user other than exceptID already uses email.
func (r *MockUserRepository) EmailTaken(ctx context.Context, email, exceptID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.emailTakenLocked(email, exceptID), nil
}

// Create adds a new user.
func (r *MockUserRepository) Create(ctx context.Context, fields models.Payload) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u := models.User{ID: uuid.New().String()}
	applyFields(&u, fields)
	if r.emailTakenLocked(u.Email, "") {
		return nil, fmt.Errorf("failed to create user: %w", ErrDuplicateEmail)
	}
	now := r.now()
	u.CreatedAt, u.UpdatedAt = now, now
	r.users[u.ID] = u
	return &u, nil
}

// Update merges fields into an existing user.
func (r *MockUserRepository) Update(ctx context.Context, user *models.User, fields models.Payload) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.users[user.ID]
	if !ok {
		return nil, fmt.Errorf("user with ID %s not found for update: %w", user.ID, ErrNotFound)
	}
	if email, ok := fields[models.FieldEmail]; ok && r.emailTakenLocked(email, user.ID) {
		return nil, fmt.Errorf("failed to update user: %w", ErrDuplicateEmail)
	}
	applyFields(&stored, fields)
	stored.UpdatedAt = r.now()
	r.users[stored.ID] = stored
	return &stored, nil
}

// Delete removes a user by their ID.
func (r *MockUserRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[id]; !ok {
		return fmt.Errorf("user with ID %s not found for deletion: %w", id, ErrNotFound)
	}
	delete(r.users, id)
	return nil
}

func (r *MockUserRepository) emailTakenLocked(email, exceptID string) bool {
	for id, u := range r.users {
		if id != exceptID && u.Email == email {
			return true
		}
	}
	return false
}

func compareColumn(a, b models.User, col string) int {
	switch col {
	case "id":
		return strings.Compare(a.ID, b.ID)
	case "name":
		return strings.Compare(a.Name, b.Name)
	case "email":
		return strings.Compare(a.Email, b.Email)
	case "updated_at":
		return a.UpdatedAt.Compare(b.UpdatedAt)
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}

var _ UserRepository = (*MockUserRepository)(nil)
