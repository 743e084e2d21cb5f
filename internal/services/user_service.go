package services

import (
	"context"
	"errors"
	"time"

	"adminpanel/internal/models"
	"adminpanel/internal/repositories"
	"adminpanel/pkg/password"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

const (
	DefaultPerPage = 10
	MaxPerPage     = 100
)

// EventPublisher delivers user lifecycle events. Implemented by rabbitmq.Client.
type EventPublisher interface {
	PublishUserEvent(event map[string]interface{}) error
}

// ListParams is the user list request as received from the panel.
type ListParams struct {
	Search  string
	Page    int
	PerPage int
	OrderBy string
	Desc    bool
}

// ListResult is one page of the user list.
type ListResult struct {
	Users    []models.User `json:"data"`
	Total    int64         `json:"total"`
	Page     int           `json:"page"`
	PerPage  int           `json:"per_page"`
	LastPage int           `json:"last_page"`
}

// UserService handles the user administration operations.
type UserService struct {
	repo     repositories.UserRepository
	hasher   password.Hasher
	validate *validator.Validate
	events   EventPublisher
	logger   *logrus.Logger
	now      func() time.Time
}

// NewUserService creates a new UserService. events may be nil.
func NewUserService(repo repositories.UserRepository, hasher password.Hasher, events EventPublisher, logger *logrus.Logger) *UserService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &UserService{
		repo:     repo,
		hasher:   hasher,
		validate: NewValidator(),
		events:   events,
		logger:   logger,
		now:      time.Now,
	}
}

// List returns a page of users for the list view.
func (s *UserService) List(ctx context.Context, params ListParams) (*ListResult, error) {
	page := params.Page
	if page < 1 {
		page = 1
	}
	perPage := params.PerPage
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}

	q := repositories.ListQuery{
		Search:  params.Search,
		Offset:  (page - 1) * perPage,
		Limit:   perPage,
		OrderBy: params.OrderBy,
		Desc:    params.Desc,
	}
	if !repositories.SortableColumns[q.OrderBy] {
		q.OrderBy = "created_at"
		q.Desc = true
	}

	users, total, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, &StorageError{Op: "list", Err: err}
	}

	lastPage := int((total + int64(perPage) - 1) / int64(perPage))
	if lastPage < 1 {
		lastPage = 1
	}
	return &ListResult{Users: users, Total: total, Page: page, PerPage: perPage, LastPage: lastPage}, nil
}

// Get returns a single user for the show view.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, &StorageError{Op: "get", Err: err}
	}
	return u, nil
}

// Create validates, sanitizes and stores a new user.
func (s *UserService) Create(ctx context.Context, payload models.Payload) (*models.User, error) {
	p := NormalizePayload(payload)
	if err := ValidateUserPayload(ctx, s.validate, s.repo, p, ModeCreate, ""); err != nil {
		return nil, err
	}
	if err := SanitizeCredentialInput(p, ModeCreate, s.hasher); err != nil {
		return nil, err
	}

	u, err := s.repo.Create(ctx, p.Only(models.Fillable...))
	if err != nil {
		s.logger.WithError(err).WithField("email", p[models.FieldEmail]).Error("create user failed")
		return nil, &StorageError{Op: "create", Err: err}
	}

	s.logger.WithField("user_id", u.ID).Info("user created")
	s.publish("user.created", u)
	return u, nil
}

// Update resolves the target, validates, sanitizes and merges the payload.
// A blank password leaves the stored hash unchanged.
func (s *UserService) Update(ctx context.Context, id string, payload models.Payload) (*models.User, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	p := NormalizePayload(payload)
	if err := ValidateUserPayload(ctx, s.validate, s.repo, p, ModeUpdate, current.ID); err != nil {
		return nil, err
	}
	if err := SanitizeCredentialInput(p, ModeUpdate, s.hasher); err != nil {
		return nil, err
	}

	u, err := s.repo.Update(ctx, current, p.Only(models.Fillable...))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.WithError(err).WithField("user_id", current.ID).Error("update user failed")
		return nil, &StorageError{Op: "update", Err: err}
	}

	s.logger.WithField("user_id", u.ID).Info("user updated")
	s.publish("user.updated", u)
	return u, nil
}

// Delete removes a user.
func (s *UserService) Delete(ctx context.Context, id string) error {
	u, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, u.ID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrUserNotFound
		}
		s.logger.WithError(err).WithField("user_id", u.ID).Error("delete user failed")
		return &StorageError{Op: "delete", Err: err}
	}

	s.logger.WithField("user_id", u.ID).Info("user deleted")
	s.publish("user.deleted", u)
	return nil
}

// EnsureUser creates the user unless one with the same email exists.
// It reports whether a user was created.
func (s *UserService) EnsureUser(ctx context.Context, name, email, plain string) (bool, error) {
	taken, err := s.repo.EmailTaken(ctx, email, "")
	if err != nil {
		return false, &StorageError{Op: "email uniqueness check", Err: err}
	}
	if taken {
		return false, nil
	}
	_, err = s.Create(ctx, models.Payload{
		models.FieldName:                 name,
		models.FieldEmail:                email,
		models.FieldPassword:             plain,
		models.FieldPasswordConfirmation: plain,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *UserService) publish(action string, u *models.User) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishUserEvent(userEvent(action, u, s.now())); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{"user_id": u.ID, "action": action}).Warn("failed to publish user event")
	}
}

// userEvent builds the event body. Credentials are never included.
func userEvent(action string, u *models.User, at time.Time) map[string]interface{} {
	return map[string]interface{}{
		"action":      action,
		"id":          u.ID,
		"name":        u.Name,
		"email":       u.Email,
		"occurred_at": at.UTC().Format(time.RFC3339),
	}
}
