// internal/interfaces/http/handlers/user_admin.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/your-org/storefront-backend/internal/domain/user"
)

// UserAdminHandler handles admin user management endpoints
type UserAdminHandler struct {
	adminService *user.AdminService
}

// NewUserAdminHandler creates a new user admin handler
func NewUserAdminHandler(adminService *user.AdminService) *UserAdminHandler {
	return &UserAdminHandler{
		adminService: adminService,
	}
}

// GetUsers handles GET /admin/users
func (h *UserAdminHandler) GetUsers(c *gin.Context) {
	var req user.UserListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid query parameters",
			"details": err.Error(),
		})
		return
	}

	response, err := h.adminService.GetUsers(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Users retrieved successfully",
		"data":    response,
	})
}

// GetUser handles GET /admin/users/:id
func (h *UserAdminHandler) GetUser(c *gin.Context) {
	userID, ok := idParam(c, "id", "user")
	if !ok {
		return
	}

	response, err := h.adminService.GetUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "User retrieved successfully",
		"data":    response,
	})
}

// DeleteUser handles DELETE /admin/users/:id
func (h *UserAdminHandler) DeleteUser(c *gin.Context) {
	userID, ok := idParam(c, "id", "user")
	if !ok {
		return
	}

	if err := h.adminService.DeleteUser(c.Request.Context(), userID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "User deleted successfully",
	})
}

// ExportUsers handles GET /admin/users/export
func (h *UserAdminHandler) ExportUsers(c *gin.Context) {
	data, filename, err := h.adminService.ExportUsers(
		c.Request.Context(),
		c.Query("search"),
		c.Query("include_deleted") == "true",
	)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, "text/csv", data)
}
