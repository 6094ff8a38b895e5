package handler

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/oms/backend/internal/infrastructure/auth"
	"github.com/oms/backend/internal/infrastructure/config"
	"github.com/oms/backend/internal/interfaces/http/middleware"
)

// LoginRequest represents an operator login
type LoginRequest struct {
	Username string    `json:"username" binding:"required,min=1,max=64"`
	Password string    `json:"password" binding:"required,min=1,max=128"`
	StoreID  uuid.UUID `json:"store_id" binding:"required"`
}

// RefreshRequest represents a token refresh
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// AuthHandler issues and revokes operator API tokens. Credentials are
// declared in configuration; the password is checked against a bcrypt
// hash.
type AuthHandler struct {
	BaseHandler
	jwtService *auth.JWTService
	blacklist  auth.TokenBlacklist
	authConfig config.AuthConfig
	logger     *zap.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(jwtService *auth.JWTService, blacklist auth.TokenBlacklist, authConfig config.AuthConfig, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		jwtService: jwtService,
		blacklist:  blacklist,
		authConfig: authConfig,
		logger:     logger,
	}
}

// operatorID derives a stable user ID from the operator username so
// global token invalidation keys stay consistent across restarts
func operatorID(username string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("oms://operator/"+username))
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	if h.authConfig.OperatorUsername == "" || h.authConfig.OperatorPasswordHash == "" {
		h.logger.Error("operator credentials are not configured")
		h.InternalError(c, "Login is not available")
		return
	}

	usernameMatch := subtle.ConstantTimeCompare([]byte(req.Username), []byte(h.authConfig.OperatorUsername)) == 1
	passwordErr := bcrypt.CompareHashAndPassword([]byte(h.authConfig.OperatorPasswordHash), []byte(req.Password))
	if !usernameMatch || passwordErr != nil {
		h.logger.Warn("operator login rejected", zap.String("username", req.Username))
		h.Unauthorized(c, "Invalid credentials")
		return
	}

	pair, err := h.jwtService.GenerateTokenPair(auth.GenerateTokenInput{
		StoreID:  req.StoreID,
		UserID:   operatorID(req.Username),
		Username: req.Username,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.logger.Info("operator logged in",
		zap.String("username", req.Username),
		zap.String("store_id", req.StoreID.String()),
	)
	h.Success(c, pair)
}

// Refresh handles POST /auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	pair, err := h.jwtService.RefreshTokenPair(req.RefreshToken, nil)
	if err != nil {
		h.Unauthorized(c, "Invalid refresh token")
		return
	}

	h.Success(c, pair)
}

// Logout handles POST /auth/logout: revokes the presented access token
// for the remainder of its lifetime
func (h *AuthHandler) Logout(c *gin.Context) {
	claims := middleware.GetJWTClaims(c)
	if claims == nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	if h.blacklist != nil && claims.ID != "" {
		if err := h.blacklist.AddToBlacklist(c.Request.Context(), claims.ID, claims.GetRemainingTTL()); err != nil {
			h.logger.Error("failed to revoke token", zap.Error(err))
			h.InternalError(c, "Logout failed")
			return
		}
	}

	h.Success(c, gin.H{"logged_out": true})
}
