package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"asistencia/internal/attendance"
	"asistencia/internal/auth"
)

type scanRequest struct {
	CarnetCode string `json:"carnet_code" binding:"required"`
	DeviceCode string `json:"device_code" binding:"required"`
}

// registerScan is the unauthenticated hardware ingestion endpoint.
func (s *Server) registerScan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "carnet_code and device_code are required")
		return
	}
	result, err := s.registrar.RegisterFromDevice(c.Request.Context(), req.CarnetCode, req.DeviceCode)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success":    true,
		"message":    "attendance registered",
		"attendance": result.Attendance,
		"student":    result.Student,
		"event":      result.Event,
	})
}

// activeEventForDevice answers the hardware poll asking which event is
// currently accepting scans.
func (s *Server) activeEventForDevice(c *gin.Context) {
	summary, err := s.events.ActiveEventForDevice(c.Request.Context(), c.Query("device_code"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "event": summary})
}

// registerManual is the authenticated staff path: QR fallback when the
// scanner is down, or document lookup when the student has no carnet.
func (s *Server) registerManual(c *gin.Context) {
	var in attendance.ManualInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "event_id and one of carnet_code or national_id are required")
		return
	}
	result, err := s.registrar.RegisterManual(c.Request.Context(), auth.ActorFrom(c), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success":    true,
		"message":    "attendance registered",
		"attendance": result.Attendance,
		"student":    result.Student,
		"event":      result.Event,
	})
}

func (s *Server) eventAttendance(c *gin.Context) {
	records, err := s.registrar.ListByEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(records), "attendance": records})
}

func (s *Server) eventStats(c *gin.Context) {
	total, hours, err := s.registrar.Stats(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "total": total, "by_hour": hours})
}

func (s *Server) deleteAttendance(c *gin.Context) {
	if err := s.registrar.Delete(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "attendance deleted"})
}

// exportAttendance returns the flat rows the spreadsheet collaborator
// ingests; event_id narrows the export to one event.
func (s *Server) exportAttendance(c *gin.Context) {
	rows, err := s.registrar.Export(c.Request.Context(), c.Query("event_id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(rows), "rows": rows})
}
