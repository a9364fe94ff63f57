package handlers

import (
	"net/http"

	"heartbridge-api/auth"
	"heartbridge-api/middleware"
	"heartbridge-api/models"

	"github.com/gin-gonic/gin"
)

func userSummary(u *models.User) gin.H {
	return gin.H{
		"id":    u.ID,
		"name":  u.Name,
		"email": u.Email,
		"role":  u.Role,
	}
}

// Register creates a new elderly or volunteer account
func (h *Handler) Register(c *gin.Context) {
	var req auth.RegisterInput
	if !h.bindJSON(c, &req) {
		return
	}
	user, token, err := h.accounts.Register(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "Account created successfully",
		"token":   token,
		"user":    userSummary(user),
	})
}

// Login authenticates a user and returns a JWT
func (h *Handler) Login(c *gin.Context) {
	var req auth.LoginInput
	if !h.bindJSON(c, &req) {
		return
	}
	user, token, err := h.accounts.Login(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"token":   token,
		"user":    userSummary(user),
	})
}

// Logout is stateless; the client discards its token.
func (h *Handler) Logout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

// GetProfile returns the authenticated user's profile
func (h *Handler) GetProfile(c *gin.Context) {
	user, err := h.accounts.Profile(c.Request.Context(), middleware.GetIdentity(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	var req auth.ProfileInput
	if !h.bindJSON(c, &req) {
		return
	}
	user, err := h.accounts.UpdateProfile(c.Request.Context(), middleware.GetIdentity(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Profile updated successfully", "user": user})
}

func (h *Handler) ChangePassword(c *gin.Context) {
	var req auth.ChangePasswordInput
	if !h.bindJSON(c, &req) {
		return
	}
	if err := h.accounts.ChangePassword(c.Request.Context(), middleware.GetIdentity(c), req); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password changed successfully"})
}

// DeleteMe soft-deletes the caller's own account
func (h *Handler) DeleteMe(c *gin.Context) {
	id := middleware.GetIdentity(c)
	if _, err := h.engine.DeleteAccount(c.Request.Context(), id, id.UserID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Account deleted successfully"})
}

// MyStats returns the dashboard statistics for the caller's role
func (h *Handler) MyStats(c *gin.Context) {
	stats, err := h.engine.MyStats(c.Request.Context(), middleware.GetIdentity(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}
