package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	log "github.com/sirupsen/logrus"

	"task-lifecycle-api/auth"
)

type AuthHandler struct {
	jwt   *auth.JWTManager
	users *auth.UserDirectory
}

func NewAuthHandler(jwt *auth.JWTManager, users *auth.UserDirectory) *AuthHandler {
	return &AuthHandler{jwt: jwt, users: users}
}

type credentials struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}

// bindCredentials validates the username as it will be stored, without surrounding spaces.
func bindCredentials(c *gin.Context, req *credentials) error {
	if err := c.ShouldBindJSON(req); err != nil {
		return err
	}
	req.Username = strings.TrimSpace(req.Username)
	return binding.Validator.ValidateStruct(req)
}

type loginResponse struct {
	Token     string   `json:"token"`
	TokenType string   `json:"tokenType"`
	ExpiresIn int64    `json:"expiresIn"`
	Username  string   `json:"username"`
	Roles     []string `json:"roles"`
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req credentials
	if err := bindCredentials(c, &req); err != nil {
		writeError(c, http.StatusBadRequest, "Username and password are required")
		return
	}

	user, err := h.users.Authenticate(req.Username, req.Password)
	if err != nil {
		writeError(c, http.StatusUnauthorized, err.Error())
		return
	}

	token, err := h.jwt.Generate(user.Username, user.Roles)
	if err != nil {
		log.WithError(err).Error("Failed to sign token")
		writeError(c, http.StatusInternalServerError, "An unexpected error occurred")
		return
	}

	c.JSON(http.StatusOK, loginResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: int64(h.jwt.TTL().Seconds()),
		Username:  user.Username,
		Roles:     user.Roles,
	})
}

// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req credentials
	if err := bindCredentials(c, &req); err != nil {
		writeError(c, http.StatusBadRequest, "Username must be 3-50 characters and password 6-72 characters")
		return
	}

	user, err := h.users.Register(req.Username, req.Password)
	if errors.Is(err, auth.ErrUserExists) {
		writeError(c, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		log.WithError(err).Error("Failed to register user")
		writeError(c, http.StatusInternalServerError, "An unexpected error occurred")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"username": user.Username,
		"roles":    user.Roles,
	})
}
