package handlers

import (
	"net/http"

	"heartbridge-api/middleware"
	"heartbridge-api/models"
	"heartbridge-api/workflow"

	"github.com/gin-gonic/gin"
)

// ListRequests returns the requests visible to the caller, filtered by query parameters
func (h *Handler) ListRequests(c *gin.Context) {
	opts := workflow.ListOptions{
		Scope:       c.Query("scope"),
		Status:      models.RequestStatus(c.Query("status")),
		Type:        models.RequestType(c.Query("type")),
		Urgency:     models.Urgency(c.Query("urgency")),
		RequesterID: c.Query("requester_id"),
		VolunteerID: c.Query("volunteer_id"),
	}
	requests, err := h.engine.List(c.Request.Context(), middleware.GetIdentity(c), opts)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(requests), "requests": requests})
}

// GetRequest returns a single request's detail
func (h *Handler) GetRequest(c *gin.Context) {
	req, err := h.engine.Get(c.Request.Context(), middleware.GetIdentity(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"request": req})
}

// GetRequestHistory returns the status audit trail of a request
func (h *Handler) GetRequestHistory(c *gin.Context) {
	history, err := h.engine.History(c.Request.Context(), middleware.GetIdentity(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(history), "history": history})
}

func transitioned(c *gin.Context, message string, req *models.Request) {
	c.JSON(http.StatusOK, gin.H{
		"message": message,
		"status":  req.Status,
		"request": req,
	})
}
