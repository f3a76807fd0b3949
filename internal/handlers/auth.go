package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"slideflow/internal/security"
)

type loginRequest struct {
	Password string `json:"password" binding:"required"`
}

// Login checks the shared operator password and sets the signed session
// cookie the dashboard uses for every other call.
func (h HandlerSet) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password_required"})
		return
	}

	ok, err := security.VerifyPassword(req.Password, h.cfg.Security.OperatorPasswordHash)
	if err != nil {
		h.log.Error().Err(err).Msg("operator password hash unreadable")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
		return
	}
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_password"})
		return
	}

	cookie := security.IssueOperatorCookie(h.cfg.Security.CookieSecret, h.cfg.Security.CookieTTL)
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(security.OperatorCookieName, cookie,
		int(h.cfg.Security.CookieTTL.Seconds()), "/", "", h.cfg.Environment == "production", true)

	c.JSON(http.StatusOK, gin.H{"ok": true})
}
