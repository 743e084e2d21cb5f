package handlers

import (
	"errors"
	"strings"

	"adminpanel/internal/repositories"
	"adminpanel/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// UserCrudHandler handles the user administration routes of the panel.
type UserCrudHandler struct {
	service *services.UserService
	logger  *logrus.Logger
}

// NewUserCrudHandler creates a new UserCrudHandler.
func NewUserCrudHandler(service *services.UserService, logger *logrus.Logger) *UserCrudHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &UserCrudHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers the user routes with the Fiber app.
func (h *UserCrudHandler) RegisterRoutes(router fiber.Router) {
	userRoutes := router.Group("/user")
	userRoutes.Get("/", h.HandleList)
	userRoutes.Get("/create", h.HandleCreateForm)
	userRoutes.Post("/", h.HandleCreate)
	userRoutes.Get("/:id", h.HandleShow)
	userRoutes.Get("/:id/show", h.HandleShow)
	userRoutes.Get("/:id/edit", h.HandleEditForm)
	userRoutes.Put("/:id", h.HandleUpdate)
	userRoutes.Patch("/:id", h.HandleUpdate)
	userRoutes.Delete("/:id", h.HandleDelete)
}

// HandleList returns one page of users plus the list columns.
func (h *UserCrudHandler) HandleList(c *fiber.Ctx) error {
	params := services.ListParams{
		Search:  c.Query("search"),
		Page:    c.QueryInt("page", 1),
		PerPage: c.QueryInt("per_page", services.DefaultPerPage),
		OrderBy: c.Query("order_by"),
		Desc:    strings.EqualFold(c.Query("order"), "desc"),
	}

	result, err := h.service.List(c.UserContext(), params)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"columns":   userListColumns(),
		"data":      result.Users,
		"total":     result.Total,
		"page":      result.Page,
		"per_page":  result.PerPage,
		"last_page": result.LastPage,
	})
}

// HandleCreateForm returns the create form declaration.
func (h *UserCrudHandler) HandleCreateForm(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"fields": userCreateFields(),
	})
}

// HandleCreate validates and stores a new user.
func (h *UserCrudHandler) HandleCreate(c *fiber.Ctx) error {
	payload, err := parsePayload(c)
	if err != nil {
		h.logger.WithError(err).Debug("invalid create request body")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
		})
	}

	user, err := h.service.Create(c.UserContext(), payload)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "User created successfully",
		"data":    user,
	})
}

// HandleShow retrieves a single user by its ID.
func (h *UserCrudHandler) HandleShow(c *fiber.Ctx) error {
	user, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"data": user,
	})
}

// HandleEditForm returns the update form declaration with the current entry.
func (h *UserCrudHandler) HandleEditForm(c *fiber.Ctx) error {
	user, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"fields": userUpdateFields(),
		"data":   user,
	})
}

// HandleUpdate validates and merges the submitted fields into a user.
func (h *UserCrudHandler) HandleUpdate(c *fiber.Ctx) error {
	payload, err := parsePayload(c)
	if err != nil {
		h.logger.WithError(err).Debug("invalid update request body")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
		})
	}

	user, err := h.service.Update(c.UserContext(), c.Params("id"), payload)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "User updated successfully",
		"data":    user,
	})
}

// HandleDelete deletes a user by its ID.
func (h *UserCrudHandler) HandleDelete(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), c.Params("id")); err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "User deleted successfully",
	})
}

// writeError maps service errors to responses. Error text from storage is
// logged, never returned.
func (h *UserCrudHandler) writeError(c *fiber.Ctx, err error) error {
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"message": "The given data was invalid",
			"errors":  verr.Fields,
		})
	}
	if errors.Is(err, services.ErrUserNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": "User not found",
		})
	}
	if errors.Is(err, repositories.ErrDuplicateEmail) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"message": "Email already exists",
		})
	}

	h.logger.WithError(err).WithFields(logrus.Fields{
		"method": c.Method(),
		"path":   c.Path(),
	}).Error("user request failed")
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"message": "Could not process the request",
	})
}
