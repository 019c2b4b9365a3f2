package handlers

import (
	"coop-ledger/internal/adapters/http/middleware"
	"coop-ledger/internal/core/services"
	"coop-ledger/internal/pkg/pagination"
	"coop-ledger/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// UserHandler handles user management endpoints
type UserHandler struct {
	userService *services.UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

// ListUsers handles listing all users (Admin only)
// @Summary List all users
// @Description Get a paginated list of all users (Admin only)
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /users [get]
func (h *UserHandler) ListUsers(c *fiber.Ctx) error {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		return unauthorized(c)
	}

	p := pagination.FromQuery(c)
	result, err := h.userService.List(c.Context(), actor, p.Offset, p.Limit)
	if err != nil {
		return fail(c, err, "Failed to list users")
	}

	return response.Page(c, "Users retrieved successfully", result.Users, p.Meta(result.Total))
}

// GetUser handles getting a user by ID
// @Summary Get user by ID
// @Description Get a specific user by ID (Admin, or the user themself)
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /users/{id} [get]
func (h *UserHandler) GetUser(c *fiber.Ctx) error {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		return unauthorized(c)
	}

	user, err := h.userService.Get(c.Context(), actor, c.Params("id"))
	if err != nil {
		return fail(c, err, "Failed to get user")
	}

	return response.Success(c, "User retrieved successfully", user)
}

// CreateUser handles creating a new user (Admin only)
// @Summary Create user
// @Description Create a member, teller or admin account (Admin only)
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.CreateUserInput true "User data"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /users [post]
func (h *UserHandler) CreateUser(c *fiber.Ctx) error {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		return unauthorized(c)
	}

	var input services.CreateUserInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	user, err := h.userService.Create(c.Context(), actor, &input)
	if err != nil {
		return fail(c, err, "Failed to create user")
	}

	return response.Created(c, "User created successfully", user)
}

// UpdateUser handles updating a user (Admin only)
// @Summary Update user
// @Description Update name, role, status, profile or password (Admin only)
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param body body services.UpdateUserInput true "Fields to change"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /users/{id} [put]
func (h *UserHandler) UpdateUser(c *fiber.Ctx) error {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		return unauthorized(c)
	}

	var input services.UpdateUserInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	user, err := h.userService.Update(c.Context(), actor, c.Params("id"), &input)
	if err != nil {
		return fail(c, err, "Failed to update user")
	}

	return response.Success(c, "User updated successfully", user)
}

// DeleteUser handles deleting a user (Admin only)
// @Summary Delete user
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /users/{id} [delete]
func (h *UserHandler) DeleteUser(c *fiber.Ctx) error {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		return unauthorized(c)
	}

	if err := h.userService.Delete(c.Context(), actor, c.Params("id")); err != nil {
		return fail(c, err, "Failed to delete user")
	}

	return response.Success(c, "User deleted successfully", nil)
}
