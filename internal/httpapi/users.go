package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"asistencia/internal/auth"
	"asistencia/internal/user"
)

func (s *Server) listUsers(c *gin.Context) {
	users, err := s.users.List(c.Request.Context(), auth.ActorFrom(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(users), "users": users})
}

func (s *Server) createUser(c *gin.Context) {
	var in user.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "first_name, last_name, cedula, area_id, handle and password are required")
		return
	}
	created, err := s.users.Create(c.Request.Context(), auth.ActorFrom(c), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "user created", "user": created})
}

func (s *Server) updateUser(c *gin.Context) {
	var in user.UpdateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	updated, err := s.users.Update(c.Request.Context(), auth.ActorFrom(c), c.Param("id"), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "user updated", "user": updated})
}

func (s *Server) deleteUser(c *gin.Context) {
	if err := s.users.Delete(c.Request.Context(), auth.ActorFrom(c), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "user deleted"})
}
