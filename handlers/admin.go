package handlers

import (
	"net/http"

	"heartbridge-api/middleware"
	"heartbridge-api/models"
	"heartbridge-api/store"
	"heartbridge-api/workflow"

	"github.com/gin-gonic/gin"
)

// ApproveRequest transitions pending → approved (admin only)
func (h *Handler) ApproveRequest(c *gin.Context) {
	var in workflow.ReviewInput
	if !h.bindOptionalJSON(c, &in) {
		return
	}
	req, err := h.engine.Approve(c.Request.Context(), middleware.GetIdentity(c), c.Param("id"), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	transitioned(c, "Request approved", req)
}

// RejectRequest transitions pending → rejected with a reason (admin only)
func (h *Handler) RejectRequest(c *gin.Context) {
	var in workflow.RejectInput
	if !h.bindJSON(c, &in) {
		return
	}
	req, err := h.engine.Reject(c.Request.Context(), middleware.GetIdentity(c), c.Param("id"), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	transitioned(c, "Request rejected", req)
}

// AdminGetAllUsers returns all users, optionally filtered by role, state, skill and location
func (h *Handler) AdminGetAllUsers(c *gin.Context) {
	f := store.UserFilter{
		Role:     models.UserRole(c.Query("role")),
		State:    models.AccountState(c.Query("state")),
		Skill:    models.RequestType(c.Query("skill")),
		Location: c.Query("location"),
	}
	users, err := h.engine.ListUsers(c.Request.Context(), middleware.GetIdentity(c), f)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(users), "users": users})
}

func (h *Handler) AdminDeactivateUser(c *gin.Context) {
	user, err := h.engine.Deactivate(c.Request.Context(), middleware.GetIdentity(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User deactivated", "user": user})
}

func (h *Handler) AdminReactivateUser(c *gin.Context) {
	user, err := h.engine.Reactivate(c.Request.Context(), middleware.GetIdentity(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User reactivated", "user": user})
}

// AdminDeleteUser soft-deletes an account and cancels its open requests
func (h *Handler) AdminDeleteUser(c *gin.Context) {
	user, err := h.engine.DeleteAccount(c.Request.Context(), middleware.GetIdentity(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User deleted", "user": user})
}

// AdminSummary aggregates requests by status and users by role
func (h *Handler) AdminSummary(c *gin.Context) {
	summary, err := h.engine.Summary(c.Request.Context(), middleware.GetIdentity(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": summary})
}
