package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/skylith/reoffer/internal/config"
	"github.com/skylith/reoffer/internal/security"
)

// AuthHandler handles ops API authentication.
type AuthHandler struct {
	opsCfg config.OpsConfig
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(opsCfg config.OpsConfig) *AuthHandler {
	return &AuthHandler{opsCfg: opsCfg}
}

// loginRequest defines the request body for ops login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login authenticates the configured ops credential pair and issues a JWT.
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	username := strings.TrimSpace(body.Username)
	password := strings.TrimSpace(body.Password)
	if username == "" || password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	if username != h.opsCfg.Username || !security.CheckPassword(h.opsCfg.PasswordHash, password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, errToken := security.GenerateOpsToken(h.opsCfg.JWTSecret, username, h.opsCfg.JWTExpiry())
	if errToken != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token generation failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "expires_in": int(h.opsCfg.JWTExpiry().Seconds())})
}
