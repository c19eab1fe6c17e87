package httpapi

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"asistencia/internal/apperr"
)

// fail translates a business error into the {success,message} envelope.
// Duplicate registrations carry the prior timestamp so staff can explain
// the rejection; internal errors log the cause and hide it from clients.
func fail(c *gin.Context, err error) {
	var dup *apperr.DuplicateAttendance
	if errors.As(err, &dup) {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "attendance already registered for this student in this event",
			"student": gin.H{
				"name":        dup.StudentName,
				"carnet_code": dup.CarnetCode,
			},
			"prior_registered_at": dup.PriorAt,
		})
		return
	}

	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		message := appErr.Message
		switch appErr.Kind {
		case apperr.KindNotFound:
			status = http.StatusNotFound
		case apperr.KindValidation, apperr.KindDuplicate:
			status = http.StatusBadRequest
		case apperr.KindForbidden:
			status = http.StatusForbidden
		case apperr.KindUnauthorized:
			status = http.StatusUnauthorized
		default:
			log.Printf("internal error: %v", appErr)
			message = "internal server error"
		}
		c.JSON(status, gin.H{"success": false, "message": message})
		return
	}

	log.Printf("unexpected error: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "internal server error"})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": message})
}
