package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flowtask/taskd/internal/services"
)

// getUserID returns the authenticated user set by the auth middleware.
func getUserID(c *gin.Context) (string, bool) {
	v, ok := c.Get("user_id")
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

// requireUser writes 401 and returns false when no user is attached.
func requireUser(c *gin.Context, op string) (string, bool) {
	userID, ok := getUserID(c)
	if !ok {
		log.Printf("[task][%s][deny] no user in context", op)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return "", false
	}
	return userID, true
}

// respondError maps service errors onto status codes. Internal details stay in
// the log.
func respondError(c *gin.Context, op, id string, err error) {
	var recErr *services.RecurrenceError
	var valErr *services.ValidationError
	switch {
	case errors.Is(err, services.ErrTaskNotFound):
		log.Printf("[task][%s][404] id=%s", op, id)
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
	case errors.As(err, &valErr):
		log.Printf("[task][%s][400] id=%s: %v", op, id, err)
		c.JSON(http.StatusBadRequest, gin.H{"error": valErr.Error()})
	case errors.As(err, &recErr):
		log.Printf("[task][%s][recurrence][err] id=%s: %v", op, id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "error handling task completion"})
	default:
		log.Printf("[task][%s][err] id=%s: %v", op, id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
