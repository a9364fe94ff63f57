package handlers

import (
	"net/http"

	"heartbridge-api/middleware"
	"heartbridge-api/workflow"

	"github.com/gin-gonic/gin"
)

// CreateRequest submits a new assistance request (elderly only)
func (h *Handler) CreateRequest(c *gin.Context) {
	var in workflow.CreateInput
	if !h.bindJSON(c, &in) {
		return
	}
	req, err := h.engine.Create(c.Request.Context(), middleware.GetIdentity(c), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "Request submitted successfully and is awaiting admin approval",
		"request": req,
	})
}

// CancelRequest cancels a request that has not started yet
func (h *Handler) CancelRequest(c *gin.Context) {
	var in workflow.CancelInput
	if !h.bindOptionalJSON(c, &in) {
		return
	}
	req, err := h.engine.Cancel(c.Request.Context(), middleware.GetIdentity(c), c.Param("id"), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	transitioned(c, "Request cancelled successfully", req)
}

// RateRequest records the requester's rating of a completed request
func (h *Handler) RateRequest(c *gin.Context) {
	var in workflow.RateInput
	if !h.bindJSON(c, &in) {
		return
	}
	req, err := h.engine.Rate(c.Request.Context(), middleware.GetIdentity(c), c.Param("id"), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	transitioned(c, "Thank you for your feedback", req)
}
