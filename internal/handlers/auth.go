package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"assessly-backend/internal/auth"
	"assessly-backend/internal/config"
	"assessly-backend/internal/middleware"
	"assessly-backend/internal/models"
)

type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
}

func userResponse(user *models.User) gin.H {
	return gin.H{
		"id":             user.ID.Hex(),
		"name":           user.Name,
		"email":          user.Email,
		"role":           user.Role,
		"organizationId": orgIDOrEmpty(user),
		"lastLoginAt":    user.LastLoginAt,
		"createdAt":      user.CreatedAt,
	}
}

func orgIDOrEmpty(user *models.User) string {
	if user.OrganizationID.IsZero() {
		return ""
	}
	return user.OrganizationID.Hex()
}

// Register handles POST /api/auth/register.
func Register(svc *auth.Service, cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		user, pair, err := svc.Register(c.Request.Context(), req.Name, req.Email, req.Password, req.Role, c.ClientIP())
		if err != nil {
			respondAuthError(c, err)
			return
		}

		setRefreshCookie(c, cfg, pair.RefreshToken)
		log.Println("[AUTH] [INFO] user registered:", user.Email)
		c.JSON(http.StatusCreated, gin.H{
			"user":        userResponse(user),
			"accessToken": pair.AccessToken,
			"expiresIn":   pair.ExpiresIn,
		})
	}
}

// Login handles POST /api/auth/login.
func Login(svc *auth.Service, cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		user, pair, err := svc.Login(c.Request.Context(), req.Email, req.Password, c.ClientIP())
		if err != nil {
			respondAuthError(c, err)
			return
		}

		setRefreshCookie(c, cfg, pair.RefreshToken)
		log.Println("[AUTH] [INFO] login succeeded:", user.Email)
		c.JSON(http.StatusOK, gin.H{
			"user":        userResponse(user),
			"accessToken": pair.AccessToken,
			"expiresIn":   pair.ExpiresIn,
		})
	}
}

// Refresh handles GET /api/auth/refresh. The refresh token comes from the
// cookie, with a body fallback for non-browser clients.
func Refresh(svc *auth.Service, cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		presented := refreshTokenFrom(c, cfg)
		if presented == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing refresh token", "code": auth.KindTokenMissing})
			return
		}

		user, pair, err := svc.Refresh(c.Request.Context(), presented, c.ClientIP())
		if err != nil {
			clearRefreshCookie(c, cfg)
			respondAuthError(c, err)
			return
		}

		setRefreshCookie(c, cfg, pair.RefreshToken)
		c.JSON(http.StatusOK, gin.H{
			"user":        userResponse(user),
			"accessToken": pair.AccessToken,
			"expiresIn":   pair.ExpiresIn,
		})
	}
}

// Logout handles POST /api/auth/logout. Always 200: revoking an absent or
// already-revoked token is a no-op. A presented bearer token is denylisted
// for the remainder of its lifetime.
func Logout(svc *auth.Service, cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		presented := refreshTokenFrom(c, cfg)
		if presented != "" {
			if err := svc.Logout(c.Request.Context(), presented); err != nil {
				log.Println("[AUTH] [ERROR] logout revoke failed:", err)
			}
		}

		if bearer := bearerToken(c); bearer != "" {
			if claims, err := svc.Verify(c.Request.Context(), bearer); err == nil {
				if err := svc.RevokeAccess(c.Request.Context(), claims, "logout"); err != nil {
					log.Println("[AUTH] [ERROR] access token denylist failed:", err)
				}
			}
		}

		clearRefreshCookie(c, cfg)
		c.JSON(http.StatusOK, gin.H{"message": "logged out"})
	}
}

// Me handles GET /api/auth/me for the authenticated principal.
func Me(svc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := middleware.ClaimsFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		user, err := svc.Users.FindByID(c.Request.Context(), claims.UserID())
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusOK, userResponse(user))
	}
}

// ChangePassword handles POST /api/auth/password.
func ChangePassword(svc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := middleware.ClaimsFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req ChangePasswordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		if err := svc.ChangePassword(c.Request.Context(), claims.UserID(), req.CurrentPassword, req.NewPassword); err != nil {
			respondAuthError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "password changed"})
	}
}

// Sessions handles GET /api/auth/sessions: the caller's active refresh
// tokens, or any user's when the caller is an admin passing ?userId=.
func Sessions(svc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := middleware.ClaimsFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		target := claims.UserID()
		if requested := strings.TrimSpace(c.Query("userId")); requested != "" && requested != target {
			if !claims.HasRole(models.RoleAdmin) {
				c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
				return
			}
			target = requested
		}

		sessions, err := svc.Sessions(c.Request.Context(), target)
		if err != nil {
			respondAuthError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"sessions": sessions})
	}
}

func refreshTokenFrom(c *gin.Context, cfg config.Config) string {
	if cookie, err := c.Cookie(cfg.RefreshCookieName); err == nil && cookie != "" {
		return cookie
	}
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err == nil {
		return strings.TrimSpace(req.RefreshToken)
	}
	return ""
}

func bearerToken(c *gin.Context) string {
	raw := strings.TrimSpace(c.GetHeader("Authorization"))
	parts := strings.Split(raw, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

func setRefreshCookie(c *gin.Context, cfg config.Config, value string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     cfg.RefreshCookieName,
		Value:    value,
		Path:     cfg.RefreshCookiePath,
		MaxAge:   int(cfg.RefreshTokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteNoneMode, // SPA and API live on different origins
	})
}

func clearRefreshCookie(c *gin.Context, cfg config.Config) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     cfg.RefreshCookieName,
		Value:    "",
		Path:     cfg.RefreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteNoneMode,
	})
}

func respondValidationError(c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		details := make([]string, 0, len(validationErrors))
		for _, fieldError := range validationErrors {
			field := lowerCamel(fieldError.Field())
			switch fieldError.Tag() {
			case "required":
				details = append(details, fmt.Sprintf("%s is required", field))
			default:
				details = append(details, fmt.Sprintf("%s is invalid", field))
			}
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation failed",
			"details": details,
		})
		return
	}

	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body", "details": err.Error()})
}

func lowerCamel(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}

// respondAuthError maps the service error taxonomy onto HTTP responses.
// Unexpected errors are logged and surfaced as a generic 500.
func respondAuthError(c *gin.Context, err error) {
	var validationErr *auth.ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "details": validationErr.Fields})
		return
	}

	var conflictErr *auth.ConflictError
	if errors.As(err, &conflictErr) {
		c.JSON(http.StatusConflict, gin.H{"error": "email already registered", "code": "conflict"})
		return
	}

	var lockedErr *auth.AccountLockedError
	if errors.As(err, &lockedErr) {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "account locked, try again later",
			"code":    "account_locked",
			"retryAt": lockedErr.Until.UTC().Format(time.RFC3339),
		})
		return
	}

	var authError *auth.AuthError
	if errors.As(err, &authError) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": authError.Message, "code": authError.Kind})
		return
	}

	log.Println("[AUTH] [ERROR] unexpected failure:", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}
