package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"adminpanel/internal/models"
	"adminpanel/internal/repositories"
	"adminpanel/internal/services"
	"adminpanel/pkg/logger"
	"adminpanel/pkg/password"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// MockUserRepository is a mock implementation of repositories.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) List(ctx context.Context, q repositories.ListQuery) ([]models.User, int64, error) {
	args := m.Called(ctx, q)
	return args.Get(0).([]models.User), args.Get(1).(int64), args.Error(2)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) EmailTaken(ctx context.Context, email, exceptID string) (bool, error) {
	args := m.Called(ctx, email, exceptID)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepository) Create(ctx context.Context, fields models.Payload) (*models.User, error) {
	args := m.Called(ctx, fields)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) Update(ctx context.Context, user *models.User, fields models.Payload) (*models.User, error) {
	args := m.Called(ctx, user, fields)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockPublisher is a mock implementation of services.EventPublisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishUserEvent(event map[string]interface{}) error {
	args := m.Called(event)
	return args.Error(0)
}

func newHasher() *password.BcryptHasher {
	return password.NewBcryptHasher(bcrypt.MinCost)
}

func newMemoryService() (*services.UserService, *repositories.MockUserRepository, *password.BcryptHasher) {
	repo := repositories.NewMockUserRepository()
	hasher := newHasher()
	return services.NewUserService(repo, hasher, nil, logger.Discard()), repo, hasher
}

func TestUserService_Create_StoresHashNotPlaintext(t *testing.T) {
	ctx := context.Background()
	service, repo, hasher := newMemoryService()

	created, err := service.Create(ctx, validPayload())
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Jane Doe", created.Name)

	stored, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "password1", stored.Password)
	_, err = bcrypt.Cost([]byte(stored.Password))
	assert.NoError(t, err)
	assert.True(t, hasher.Compare(stored.Password, "password1"))

	body, err := json.Marshal(created)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "password")
}

func TestUserService_Create_PasswordLength(t *testing.T) {
	ctx := context.Background()
	service, repo, _ := newMemoryService()

	p := validPayload()
	p["password"], p["password_confirmation"] = "short1", "short1"
	_, err := service.Create(ctx, p)
	fields := validationFields(t, err)
	assert.Contains(t, fields, "password")

	_, total, err := repo.List(ctx, repositories.ListQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)

	_, err = service.Create(ctx, validPayload())
	assert.NoError(t, err)
}

func TestUserService_Create_PasswordByteLimit(t *testing.T) {
	ctx := context.Background()
	service, repo, hasher := newMemoryService()

	p := validPayload()
	tooLong := strings.Repeat("a", 73)
	p["password"], p["password_confirmation"] = tooLong, tooLong
	user, err := service.Create(ctx, p)
	assert.Nil(t, user)
	assert.Contains(t, validationFields(t, err)["password"], "must not be longer than 72 bytes")

	_, total, err := repo.List(ctx, repositories.ListQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)

	longest := strings.Repeat("a", 72)
	p["password"], p["password_confirmation"] = longest, longest
	user, err = service.Create(ctx, p)
	require.NoError(t, err)
	stored, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, hasher.Compare(stored.Password, longest))

	// a too-long replacement on update is rejected and the stored hash stays
	_, err = service.Update(ctx, user.ID, models.Payload{
		"name":                  "Jane Doe",
		"email":                 "jane@example.com",
		"password":              tooLong,
		"password_confirmation": tooLong,
	})
	assert.Contains(t, validationFields(t, err), "password")
	after, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, stored.Password, after.Password)
}

func TestUserService_Create_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	service, repo, _ := newMemoryService()
	repo.Seed(models.User{ID: "5", Name: "Alice", Email: "a@example.com", Password: "$2a$04$seeded"})

	p := validPayload()
	p["email"] = "a@example.com"
	_, err := service.Create(ctx, p)
	assert.Contains(t, validationFields(t, err)["email"], "has already been taken")
}

func TestUserService_Create_OnlyFillableFieldsReachStorage(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	hasher := newHasher()
	service := services.NewUserService(mockRepo, hasher, nil, logger.Discard())

	p := validPayload()
	p["is_admin"] = "1"

	mockRepo.On("EmailTaken", mock.Anything, "jane@example.com", "").Return(false, nil).Once()
	mockRepo.On("Create", mock.Anything, mock.MatchedBy(func(f models.Payload) bool {
		_, hasConfirmation := f["password_confirmation"]
		_, hasExtra := f["is_admin"]
		return !hasConfirmation && !hasExtra && len(f) == 3 &&
			f["name"] == "Jane Doe" && f["email"] == "jane@example.com" &&
			f["password"] != "password1" && hasher.Compare(f["password"], "password1")
	})).Return(&models.User{ID: "1", Name: "Jane Doe", Email: "jane@example.com"}, nil).Once()

	created, err := service.Create(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, "1", created.ID)
	mockRepo.AssertExpectations(t)

	// the caller's payload is not mutated
	assert.Equal(t, "password1", p["password"])
}

func TestUserService_Create_StorageError(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	service := services.NewUserService(mockRepo, newHasher(), nil, logger.Discard())

	mockRepo.On("EmailTaken", mock.Anything, "jane@example.com", "").Return(false, nil).Once()
	mockRepo.On("Create", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("failed to create user: %w", repositories.ErrDuplicateEmail)).Once()

	_, err := service.Create(ctx, validPayload())
	var storageErr *services.StorageError
	require.True(t, errors.As(err, &storageErr))
	assert.Equal(t, "create", storageErr.Op)
	assert.ErrorIs(t, err, repositories.ErrDuplicateEmail)
	assert.NotContains(t, err.Error(), "password1")
	mockRepo.AssertExpectations(t)
}

func TestUserService_Update_OmittedPasswordKeepsHash(t *testing.T) {
	ctx := context.Background()
	service, repo, hasher := newMemoryService()

	created, err := service.Create(ctx, validPayload())
	require.NoError(t, err)
	before, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)

	updated, err := service.Update(ctx, created.ID, models.Payload{
		"name":  "Jane Smith",
		"email": "jane@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "Jane Smith", updated.Name)

	after, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, before.Password, after.Password)

	// blank password fields behave the same as omitted ones
	_, err = service.Update(ctx, created.ID, models.Payload{
		"name":                  "Jane Smith",
		"email":                 "jane@example.com",
		"password":              "",
		"password_confirmation": "",
	})
	require.NoError(t, err)
	after, err = repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, before.Password, after.Password)
	assert.True(t, hasher.Compare(after.Password, "password1"))
}

func TestUserService_Update_NewPasswordIsHashed(t *testing.T) {
	ctx := context.Background()
	service, repo, hasher := newMemoryService()

	created, err := service.Create(ctx, validPayload())
	require.NoError(t, err)

	_, err = service.Update(ctx, created.ID, models.Payload{
		"name":                  "Jane Doe",
		"email":                 "jane@example.com",
		"password":              "newpassword",
		"password_confirmation": "newpassword",
	})
	require.NoError(t, err)

	stored, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "newpassword", stored.Password)
	assert.True(t, hasher.Compare(stored.Password, "newpassword"))
	assert.False(t, hasher.Compare(stored.Password, "password1"))
}

func TestUserService_Update_KeepsOwnEmail(t *testing.T) {
	ctx := context.Background()
	service, repo, _ := newMemoryService()
	repo.Seed(models.User{ID: "5", Name: "Alice", Email: "a@example.com", Password: "$2a$04$seeded"})

	updated, err := service.Update(ctx, "5", models.Payload{"name": "Alice B", "email": "a@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "5", updated.ID)
	assert.Equal(t, "a@example.com", updated.Email)
	assert.Equal(t, "Alice B", updated.Name)
}

func TestUserService_Update_EmailOfAnotherUser(t *testing.T) {
	ctx := context.Background()
	service, repo, _ := newMemoryService()
	repo.Seed(
		models.User{ID: "5", Name: "Alice", Email: "a@example.com", Password: "$2a$04$seeded"},
		models.User{ID: "6", Name: "Bob", Email: "b@example.com", Password: "$2a$04$seeded"},
	)

	_, err := service.Update(ctx, "6", models.Payload{"name": "Bob", "email": "a@example.com"})
	assert.Contains(t, validationFields(t, err)["email"], "has already been taken")
}

func TestUserService_Update_NotFoundPerformsNoWrite(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	service := services.NewUserService(mockRepo, newHasher(), nil, logger.Discard())

	mockRepo.On("GetByID", mock.Anything, "999").
		Return(nil, fmt.Errorf("user with ID 999 not found: %w", repositories.ErrNotFound)).Once()

	_, err := service.Update(ctx, "999", validPayload())
	assert.ErrorIs(t, err, services.ErrUserNotFound)
	mockRepo.AssertExpectations(t)
	mockRepo.AssertNotCalled(t, "EmailTaken", mock.Anything, mock.Anything, mock.Anything)
	mockRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestUserService_Update_ValidationFailurePerformsNoWrite(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	service := services.NewUserService(mockRepo, newHasher(), nil, logger.Discard())

	current := &models.User{ID: "5", Name: "Alice", Email: "a@example.com"}
	mockRepo.On("GetByID", mock.Anything, "5").Return(current, nil).Once()
	mockRepo.On("EmailTaken", mock.Anything, "a@example.com", "5").Return(false, nil).Once()

	_, err := service.Update(ctx, "5", models.Payload{"name": "Al", "email": "a@example.com"})
	assert.Contains(t, validationFields(t, err), "name")
	mockRepo.AssertExpectations(t)
	mockRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestUserService_Get(t *testing.T) {
	ctx := context.Background()
	service, repo, _ := newMemoryService()
	repo.Seed(models.User{ID: "5", Name: "Alice", Email: "a@example.com"})

	u, err := service.Get(ctx, "5")
	require.NoError(t, err)
	assert.Equal(t, "Alice", u.Name)

	_, err = service.Get(ctx, "999")
	assert.ErrorIs(t, err, services.ErrUserNotFound)
}

func TestUserService_Delete(t *testing.T) {
	ctx := context.Background()
	service, repo, _ := newMemoryService()
	repo.Seed(models.User{ID: "5", Name: "Alice", Email: "a@example.com"})

	require.NoError(t, service.Delete(ctx, "5"))
	_, err := repo.GetByID(ctx, "5")
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	assert.ErrorIs(t, service.Delete(ctx, "5"), services.ErrUserNotFound)
}

func TestUserService_List(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newMemoryService()

	for i := 1; i <= 12; i++ {
		p := validPayload()
		p["name"] = fmt.Sprintf("User %02d", i)
		p["email"] = fmt.Sprintf("user%02d@example.com", i)
		_, err := service.Create(ctx, p)
		require.NoError(t, err)
	}

	res, err := service.List(ctx, services.ListParams{})
	require.NoError(t, err)
	assert.Equal(t, int64(12), res.Total)
	assert.Equal(t, 1, res.Page)
	assert.Equal(t, services.DefaultPerPage, res.PerPage)
	assert.Equal(t, 2, res.LastPage)
	assert.Len(t, res.Users, 10)

	res, err = service.List(ctx, services.ListParams{Page: 2, OrderBy: "email"})
	require.NoError(t, err)
	require.Len(t, res.Users, 2)
	assert.Equal(t, "user11@example.com", res.Users[0].Email)
	assert.Equal(t, "user12@example.com", res.Users[1].Email)

	res, err = service.List(ctx, services.ListParams{Search: "USER 07"})
	require.NoError(t, err)
	require.Len(t, res.Users, 1)
	assert.Equal(t, "User 07", res.Users[0].Name)

	res, err = service.List(ctx, services.ListParams{PerPage: 1000})
	require.NoError(t, err)
	assert.Equal(t, services.MaxPerPage, res.PerPage)
}

func TestUserService_PublishesEventsWithoutCredentials(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewMockUserRepository()
	publisher := new(MockPublisher)
	service := services.NewUserService(repo, newHasher(), publisher, logger.Discard())

	noSecrets := func(action string) interface{} {
		return mock.MatchedBy(func(e map[string]interface{}) bool {
			_, hasPassword := e["password"]
			_, hasConfirmation := e["password_confirmation"]
			return e["action"] == action && !hasPassword && !hasConfirmation && e["email"] == "jane@example.com"
		})
	}
	publisher.On("PublishUserEvent", noSecrets("user.created")).Return(nil).Once()
	publisher.On("PublishUserEvent", noSecrets("user.updated")).Return(errors.New("broker down")).Once()
	publisher.On("PublishUserEvent", noSecrets("user.deleted")).Return(nil).Once()

	created, err := service.Create(ctx, validPayload())
	require.NoError(t, err)

	// a failed publish does not fail the write
	_, err = service.Update(ctx, created.ID, models.Payload{"name": "Jane Smith", "email": "jane@example.com"})
	require.NoError(t, err)

	require.NoError(t, service.Delete(ctx, created.ID))
	publisher.AssertExpectations(t)
}

func TestUserService_EnsureUser(t *testing.T) {
	ctx := context.Background()
	service, repo, hasher := newMemoryService()

	created, err := service.EnsureUser(ctx, "Administrator", "root@example.com", "password1")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = service.EnsureUser(ctx, "Administrator", "root@example.com", "other-password")
	require.NoError(t, err)
	assert.False(t, created)

	u, err := repo.GetByEmail(ctx, "root@example.com")
	require.NoError(t, err)
	assert.True(t, hasher.Compare(u.Password, "password1"))

	_, err = service.EnsureUser(ctx, "Administrator", "other@example.com", "short")
	assert.Contains(t, validationFields(t, err), "password")
}
