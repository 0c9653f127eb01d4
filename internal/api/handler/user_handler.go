package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kirieshkistudios/park-backend/internal/api/middleware"
	"github.com/kirieshkistudios/park-backend/internal/domain"
	"github.com/kirieshkistudios/park-backend/internal/service"
)

// UserHandler serves user administration for superior users.
type UserHandler struct {
	authService *service.AuthService
}

func NewUserHandler(as *service.AuthService) *UserHandler {
	return &UserHandler{authService: as}
}

// GET /users
func (h *UserHandler) GetAllUsers(c *gin.Context) {
	users, err := h.authService.GetAllUsers(c.Request.Context())
	if err != nil {
		writeError(c, err, "could not list users")
		return
	}
	c.JSON(http.StatusOK, users)
}

// GET /users/:id
func (h *UserHandler) GetUserByID(c *gin.Context) {
	id, ok := pathID(c, "user")
	if !ok {
		return
	}
	user, err := h.authService.GetUserByID(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "could not load user")
		return
	}
	c.JSON(http.StatusOK, user)
}

// PUT /users/:id
func (h *UserHandler) UpdateUser(c *gin.Context) {
	id, ok := pathID(c, "user")
	if !ok {
		return
	}
	var dto domain.UpdateUserDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := h.authService.UpdateUser(c.Request.Context(), id, dto)
	if err != nil {
		writeError(c, err, "could not update user")
		return
	}
	c.JSON(http.StatusOK, user)
}

// DELETE /users/:id
func (h *UserHandler) DeleteUser(c *gin.Context) {
	id, ok := pathID(c, "user")
	if !ok {
		return
	}
	if principal, ok := middleware.PrincipalFrom(c); ok && principal.UserID == id {
		c.JSON(http.StatusConflict, gin.H{"error": "cannot delete the account in use"})
		return
	}
	if err := h.authService.DeleteUser(c.Request.Context(), id); err != nil {
		writeError(c, err, "could not delete user")
		return
	}
	c.Status(http.StatusNoContent)
}
