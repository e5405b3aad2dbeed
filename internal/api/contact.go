package api

import (
	"net/http"

	"guardian-api/internal/response"

	"github.com/gin-gonic/gin"
)

// ContactRequest represents a contact form submission
type ContactRequest struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email" binding:"required,email"`
	Message string `json:"message" binding:"required,min=10"`
}

// Contact forwards a support message to the configured admin address.
func (s *Server) Contact(c *gin.Context) {
	var req ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorJSON(c, http.StatusBadRequest, "Invalid input data")
		return
	}

	if !s.notifier.NotifyContact(req.Name, req.Email, req.Message) {
		response.ErrorJSON(c, http.StatusInternalServerError, "Failed to send message. Please try again later.")
		return
	}

	response.SuccessJSON(c, "Message sent. We will get back to you soon.", nil)
}
