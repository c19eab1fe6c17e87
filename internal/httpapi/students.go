package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"asistencia/internal/student"
)

func (s *Server) listStudents(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	students, total, err := s.students.List(c.Request.Context(), c.Query("search"), limit, offset)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"total":    total,
		"count":    len(students),
		"students": students,
	})
}

func (s *Server) createStudent(c *gin.Context) {
	var in student.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "name, national_id, carnet_code, email and period are required")
		return
	}
	created, err := s.students.Create(c.Request.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "student created", "student": created})
}

func (s *Server) getStudent(c *gin.Context) {
	rec, err := s.students.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "student": rec})
}

// studentByCarnet resolves the active record behind a scanned carnet,
// used by the dashboard to preview who a code belongs to.
func (s *Server) studentByCarnet(c *gin.Context) {
	rec, err := s.students.GetByCarnet(c.Request.Context(), c.Param("code"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "student": rec})
}

func (s *Server) updateStudent(c *gin.Context) {
	var in student.UpdateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	updated, err := s.students.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "student updated", "student": updated})
}

func (s *Server) studentAttendance(c *gin.Context) {
	records, err := s.registrar.ListByStudent(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(records), "attendance": records})
}
