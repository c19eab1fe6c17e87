package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	areapkg "asistencia/internal/area"
)

// boolQuery parses an optional boolean query parameter; nil means absent.
func boolQuery(c *gin.Context, key string) *bool {
	if v := c.Query(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return &parsed
		}
	}
	return nil
}

func (s *Server) listAreas(c *gin.Context) {
	areas, err := s.areas.List(c.Request.Context(), boolQuery(c, "active"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(areas), "areas": areas})
}

func (s *Server) createArea(c *gin.Context) {
	var in areapkg.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "name and code are required")
		return
	}
	created, err := s.areas.Create(c.Request.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "area created", "area": created})
}

func (s *Server) getArea(c *gin.Context) {
	a, err := s.areas.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "area": a})
}

func (s *Server) updateArea(c *gin.Context) {
	var in areapkg.UpdateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	updated, err := s.areas.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "area updated", "area": updated})
}

func (s *Server) deleteArea(c *gin.Context) {
	if err := s.areas.Delete(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "area deleted"})
}
