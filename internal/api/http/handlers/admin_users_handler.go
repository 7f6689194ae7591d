package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/letter-service/internal/api/dto"
	"github.com/spec-kit/letter-service/internal/auth"
	"github.com/spec-kit/letter-service/internal/repository"
	"github.com/spec-kit/letter-service/internal/service"
	apperrors "github.com/spec-kit/letter-service/pkg/util/errorutil"
)

const usersPageSize = 50

// AdminUsersHandler exposes superuser account management.
type AdminUsersHandler struct {
	admin *service.AdminService
}

// NewAdminUsersHandler constructs handler.
func NewAdminUsersHandler(admin *service.AdminService) *AdminUsersHandler {
	return &AdminUsersHandler{admin: admin}
}

// List GET /admin/users.
func (h *AdminUsersHandler) List(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	users, err := h.admin.ListUsers(c.UserContext(), auth.ActorFromContext(c), repository.UserFilter{
		Search: c.Query("q"),
		Limit:  usersPageSize,
		Offset: (page - 1) * usersPageSize,
	})
	if err != nil {
		return err
	}
	items := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		items = append(items, dto.UserFromDomain(&users[i]))
	}
	return c.JSON(fiber.Map{"data": items, "page": page})
}

// Get GET /admin/users/:id.
func (h *AdminUsersHandler) Get(c *fiber.Ctx) error {
	user, err := h.admin.GetUser(c.UserContext(), auth.ActorFromContext(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.UserFromDomain(user)})
}

// Create POST /admin/users.
func (h *AdminUsersHandler) Create(c *fiber.Ctx) error {
	input, err := userInput(c)
	if err != nil {
		return err
	}
	user, err := h.admin.CreateUser(c.UserContext(), auth.ActorFromContext(c), input)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.UserFromDomain(user)})
}

// Update PUT /admin/users/:id.
func (h *AdminUsersHandler) Update(c *fiber.Ctx) error {
	input, err := userInput(c)
	if err != nil {
		return err
	}
	user, err := h.admin.UpdateUser(c.UserContext(), auth.ActorFromContext(c), c.Params("id"), input)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.UserFromDomain(user)})
}

// Delete DELETE /admin/users/:id. Superusers are reported as not deleted.
func (h *AdminUsersHandler) Delete(c *fiber.Ctx) error {
	res, err := h.admin.DeleteUser(c.UserContext(), auth.ActorFromContext(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"deleted": res.Deleted,
		"user":    dto.UserFromDomain(res.User),
	}})
}

func userInput(c *fiber.Ctx) (service.UserInput, error) {
	var req dto.UserRequest
	if err := c.BodyParser(&req); err != nil {
		return service.UserInput{}, apperrors.NewValidationError("invalid payload", nil)
	}
	return service.UserInput{
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
		Sector:    req.Sector,
	}, nil
}
