// internal/interfaces/http/handlers/user_profile.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/your-org/storefront-backend/internal/domain/user"
)

// UserProfileHandler handles the signed-in user's profile
type UserProfileHandler struct {
	userService *user.Service
}

// NewUserProfileHandler creates a new user profile handler
func NewUserProfileHandler(userService *user.Service) *UserProfileHandler {
	return &UserProfileHandler{
		userService: userService,
	}
}

// GetProfile handles GET /profile
func (h *UserProfileHandler) GetProfile(c *gin.Context) {
	userID, ok := principalID(c)
	if !ok {
		return
	}

	profile, err := h.userService.GetProfile(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Profile retrieved successfully",
		"data":    profile.ToResponse(),
	})
}

// UpdateProfile handles PUT /profile
func (h *UserProfileHandler) UpdateProfile(c *gin.Context) {
	userID, ok := principalID(c)
	if !ok {
		return
	}

	var req user.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	profile, err := h.userService.UpdateProfile(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Profile updated successfully",
		"data":    profile.ToResponse(),
	})
}
