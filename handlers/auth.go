package handlers

import (
	"errors"
	"net/http"

	"portfolio-tracker/auth"
	"portfolio-tracker/middleware"
	"portfolio-tracker/pkg/logger"
	"portfolio-tracker/repository"

	"github.com/gin-gonic/gin"
)

type SignupInput struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginInput struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RefreshInput struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// AuthHandler serves registration, login and token exchange.
type AuthHandler struct {
	users  repository.UserRepository
	tokens *auth.TokenManager
	log    *logger.Logger
}

func NewAuthHandler(users repository.UserRepository, tokens *auth.TokenManager, log *logger.Logger) *AuthHandler {
	return &AuthHandler{users: users, tokens: tokens, log: log}
}

func (h *AuthHandler) Signup(c *gin.Context) {
	var input SignupInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.Register(c.Request.Context(), input.Username, input.Password, input.Email)
	if err != nil {
		respondError(c, err, "Error creating user", nil)
		return
	}

	h.log.Info("User registered", logger.UintField("user_id", user.ID))
	c.JSON(http.StatusCreated, gin.H{"message": "User created successfully", "id": user.ID})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var input LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, err := h.users.Authenticate(c.Request.Context(), input.Username, input.Password)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		respondError(c, err, "Login failed", nil)
		return
	}

	pair, err := h.tokens.Issue(c.Request.Context(), userID)
	if err != nil {
		h.log.Error("Failed to issue tokens", logger.ErrorField(err), logger.UintField("user_id", userID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error generating token"})
		return
	}

	c.JSON(http.StatusOK, pair)
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	var input RefreshInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pair, err := h.tokens.Refresh(c.Request.Context(), input.RefreshToken)
	if err != nil {
		if !errors.Is(err, auth.ErrInvalidToken) {
			h.log.Error("Failed to refresh token", logger.ErrorField(err))
		}
		respondError(c, err, "Error refreshing token", nil)
		return
	}

	c.JSON(http.StatusOK, pair)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	var input RefreshInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.tokens.Revoke(c.Request.Context(), input.RefreshToken); err != nil {
		respondError(c, err, "Error revoking token", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.users.GetByID(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err, "Failed to fetch user", nil)
		return
	}
	c.JSON(http.StatusOK, user)
}
