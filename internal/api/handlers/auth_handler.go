package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/forots/vigia/internal/api/middleware"
	"github.com/forots/vigia/internal/captcha"
	"github.com/forots/vigia/internal/guard"
	"github.com/forots/vigia/internal/services"
)

// AuthHandler owns the authentication routes. It is the boundary where
// genuine auth outcomes are reported to the abuse guard: requests rejected
// earlier by the limiter or the block check never reach these methods, so
// rate-limiting alone can never inflate a failure count.
type AuthHandler struct {
	authService *services.AuthService
	guard       *guard.Guard
}

// NewAuthHandler wires the handler over its collaborators.
func NewAuthHandler(authService *services.AuthService, g *guard.Guard) *AuthHandler {
	return &AuthHandler{authService: authService, guard: g}
}

// attempt builds the guard attempt for the current request.
func (h *AuthHandler) attempt(c *gin.Context, action, email string) guard.Attempt {
	a := guard.Attempt{
		Action: action,
		IP:     middleware.GetClientIP(c),
		Email:  email,
		Route:  c.Request.URL.Path,
	}
	if r := captcha.GetResult(c); r != nil {
		a.Score = &r.Score
	}
	return a
}

type LoginRequest struct {
	Email          string `json:"email" binding:"required,email"`
	Password       string `json:"password" binding:"required"`
	RecaptchaToken string `json:"recaptchaToken"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	token, user, err := h.authService.Login(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) || errors.Is(err, services.ErrUserDisabled) {
			a := h.attempt(c, "login", req.Email)
			a.Reason = "invalid_credentials"
			if errors.Is(err, services.ErrUserDisabled) {
				a.Reason = "user_disabled"
			}
			h.guard.OnFailure(c.Request.Context(), a)

			middleware.SetSecurityCode(c, "UNAUTHORIZED")
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"code":    "UNAUTHORIZED",
				"message": "Credenciales inválidas.",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Error interno."})
		return
	}

	a := h.attempt(c, "login", req.Email)
	a.UserID = &user.ID
	h.guard.OnSuccess(c.Request.Context(), a)

	c.JSON(http.StatusOK, gin.H{"success": true, "token": token})
}

type RegisterRequest struct {
	Email          string `json:"email" binding:"required,email"`
	Password       string `json:"password" binding:"required,min=8"`
	Name           string `json:"name" binding:"required"`
	RecaptchaToken string `json:"recaptchaToken"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	user, err := h.authService.Register(req.Email, req.Password, req.Name)
	if err != nil {
		if errors.Is(err, services.ErrEmailTaken) {
			a := h.attempt(c, "register", req.Email)
			a.Reason = "email_taken"
			h.guard.OnFailure(c.Request.Context(), a)
			c.JSON(http.StatusConflict, gin.H{"success": false, "message": "El email ya está registrado."})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Error interno."})
		return
	}

	a := h.attempt(c, "register", req.Email)
	a.UserID = &user.ID
	h.guard.OnSuccess(c.Request.Context(), a)

	c.JSON(http.StatusCreated, gin.H{"success": true, "user": user})
}

type ForgotPasswordRequest struct {
	Email          string `json:"email" binding:"required,email"`
	RecaptchaToken string `json:"recaptchaToken"`
}

// ForgotPassword always answers 200 so account existence never leaks, but
// unknown-address probes still count toward escalation.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	_, found, err := h.authService.CreateResetToken(req.Email)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Error interno."})
		return
	}

	a := h.attempt(c, "forgot_password", req.Email)
	if found {
		h.guard.OnSuccess(c.Request.Context(), a)
	} else {
		a.Reason = "unknown_email"
		h.guard.OnFailure(c.Request.Context(), a)
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Si la cuenta existe, recibirás un email con instrucciones.",
	})
}

type ResetPasswordRequest struct {
	Token          string `json:"token" binding:"required"`
	Password       string `json:"password" binding:"required,min=8"`
	RecaptchaToken string `json:"recaptchaToken"`
}

func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	user, err := h.authService.ResetPassword(req.Token, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidResetToken) {
			a := h.attempt(c, "reset_password", "")
			a.Reason = "invalid_token"
			h.guard.OnFailure(c.Request.Context(), a)
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Token inválido o caducado."})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Error interno."})
		return
	}

	a := h.attempt(c, "reset_password", user.Email)
	a.UserID = &user.ID
	h.guard.OnSuccess(c.Request.Context(), a)

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Contraseña actualizada."})
}

// Me returns the authenticated user's identity.
func (h *AuthHandler) Me(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		middleware.SetSecurityCode(c, "UNAUTHORIZED")
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "code": "UNAUTHORIZED", "message": "No autenticado."})
		return
	}

	user, err := h.authService.GetUserByID(userID.(uint))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Usuario no encontrado."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}
