package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"asistencia/internal/device"
)

func (s *Server) listDevices(c *gin.Context) {
	devices, err := s.devices.List(c.Request.Context(), boolQuery(c, "active"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(devices), "devices": devices})
}

func (s *Server) createDevice(c *gin.Context) {
	var in device.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "code and name are required")
		return
	}
	created, err := s.devices.Create(c.Request.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "device created", "device": created})
}

func (s *Server) getDevice(c *gin.Context) {
	d, err := s.devices.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "device": d})
}

func (s *Server) updateDevice(c *gin.Context) {
	var in device.UpdateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	updated, err := s.devices.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "device updated", "device": updated})
}

func (s *Server) deleteDevice(c *gin.Context) {
	if err := s.devices.Delete(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "device deleted"})
}
