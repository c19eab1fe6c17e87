package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"asistencia/internal/auth"
)

type loginRequest struct {
	Handle   string `json:"handle" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "handle and password are required")
		return
	}
	u, err := s.users.Authenticate(c.Request.Context(), req.Handle, req.Password)
	if err != nil {
		fail(c, err)
		return
	}
	token, exp, err := auth.Issue(u.ID, u.Role, u.AreaID, s.cfg.JWTIssuer, s.cfg.JWTSigningKey, s.cfg.TokenTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "token issue failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    "login successful",
		"token":      token,
		"expires_at": exp.Unix(),
		"user":       u,
	})
}

func (s *Server) me(c *gin.Context) {
	actor := auth.ActorFrom(c)
	u, err := s.users.Get(c.Request.Context(), actor.UserID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": u})
}
