package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"asistencia/internal/apperr"
	"asistencia/internal/auth"
	"asistencia/internal/event"
)

func dateQuery(c *gin.Context, key string) *time.Time {
	if v := c.Query(key); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			return &t
		}
	}
	return nil
}

func (s *Server) listEvents(c *gin.Context) {
	actor := auth.ActorFrom(c)
	events, err := s.events.List(c.Request.Context(), actor, event.Filters{
		AreaID:    c.Query("area_id"),
		Period:    c.Query("period"),
		CreatedBy: c.Query("created_by"),
		DeviceID:  c.Query("device_id"),
		Active:    boolQuery(c, "active"),
		Finalized: boolQuery(c, "finalized"),
		DateFrom:  dateQuery(c, "date_from"),
		DateTo:    dateQuery(c, "date_to"),
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(events), "events": events})
}

func (s *Server) createEvent(c *gin.Context) {
	var in event.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "name, date, start_time, end_time, place and period are required")
		return
	}
	created, err := s.events.Create(c.Request.Context(), auth.ActorFrom(c), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "event created", "event": created})
}

func (s *Server) getEvent(c *gin.Context) {
	e, err := s.events.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "event": e})
}

func (s *Server) updateEvent(c *gin.Context) {
	var in event.UpdateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	updated, err := s.events.Update(c.Request.Context(), auth.ActorFrom(c), c.Param("id"), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "event updated", "event": updated})
}

func (s *Server) deleteEvent(c *gin.Context) {
	if err := s.events.Delete(c.Request.Context(), auth.ActorFrom(c), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "event deleted"})
}

type eventPhotoRequest struct {
	ImageBase64 string `json:"image_base64"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// addEventPhoto accepts either an already-hosted URL or base64 image
// data that gets uploaded to Cloudinary before the URL is stored.
func (s *Server) addEventPhoto(c *gin.Context) {
	var req eventPhotoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	url := req.URL
	if url == "" {
		if req.ImageBase64 == "" {
			badRequest(c, "one of url or image_base64 is required")
			return
		}
		if s.cdn == nil {
			fail(c, apperr.Validation("image uploads are not configured"))
			return
		}
		uploaded, err := s.cdn.UploadBase64(req.ImageBase64)
		if err != nil {
			fail(c, apperr.Internal("could not upload photo", err))
			return
		}
		url = uploaded.SecureURL
	}

	photo, err := s.events.AddPhoto(c.Request.Context(), auth.ActorFrom(c), c.Param("id"), url, req.Description)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "photo added", "photo": photo})
}

func (s *Server) removeEventPhoto(c *gin.Context) {
	if err := s.events.RemovePhoto(c.Request.Context(), auth.ActorFrom(c), c.Param("id"), c.Param("photoID")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "photo removed"})
}
