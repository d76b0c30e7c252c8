package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"datablog/internal/config"
	"datablog/internal/csrf"
	"datablog/internal/models"
	"datablog/internal/service"
	"datablog/internal/token"
)

const (
	refreshCookieName = "refresh_token"
	csrfCookieName    = "_csrf"
	authCookiePath    = "/api/auth"
)

const (
	authRateLimit  = 30
	authRateWindow = time.Minute
)

type Handler struct {
	serviceLayer service.Service
	tokens       *token.Service
	guard        *csrf.Guard
	cfg          *config.Config
	log          *slog.Logger
	limiter      *rateLimiter
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type credentialsRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func newErrorResponse(c *gin.Context, statusCode int, code, errMessage string) {
	c.AbortWithStatusJSON(statusCode, errorResponse{Code: code, Message: errMessage})
}

func NewHandler(srvc service.Service, tokens *token.Service, guard *csrf.Guard, cfg *config.Config, lgr *slog.Logger) *Handler {
	return &Handler{
		serviceLayer: srvc,
		tokens:       tokens,
		guard:        guard,
		cfg:          cfg,
		log:          lgr,
		limiter:      newRateLimiter(authRateLimit, authRateWindow),
	}
}

func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(RequestLogger(h.log))
	router.Use(SecurityHeaders())
	router.Use(corsConfig(h.cfg.HTTPServer.CORSOrigin))

	router.GET("/healthz", h.Healthz)

	api := router.Group("/api")
	{
		api.GET("/protected",
			Authenticate(h.tokens),
			Authorize(models.RoleAdmin),
			h.Protected,
		)

		auth := api.Group("/auth")
		auth.Use(h.limiter.Middleware())
		{
			auth.GET("/csrf", h.CSRFToken)
			auth.GET("/me", Authenticate(h.tokens), h.Me)

			guarded := auth.Group("")
			guarded.Use(CSRFGuard(h.guard))
			{
				guarded.POST("/register", h.Register)
				guarded.POST("/login", h.Login)
				guarded.POST("/refresh", h.Refresh)
				guarded.POST("/logout", Authenticate(h.tokens), h.Logout)
			}
		}
	}

	return router
}

func corsConfig(origin string) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     []string{origin},
		AllowMethods:     []string{"GET", "POST"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "csrf-token", "x-csrf-token"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

func IsValidEmail(email string) bool {
	_, err := mail.ParseAddress(email)
	return err == nil
}

// GET /healthz
func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GET /api/auth/csrf
func (h *Handler) CSRFToken(c *gin.Context) {
	const op = "handler.CSRFToken"

	log := h.log.With(slog.String("op", op))

	csrfToken, err := h.guard.Token(sessionIdentifier(c))
	if err != nil {
		log.Error("failed to mint csrf token", slog.Any("error", err))

		newErrorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to issue token")

		return
	}

	h.setCSRFCookie(c, csrfToken)

	c.JSON(http.StatusOK, gin.H{"csrfToken": csrfToken})
}

// POST /api/auth/register
func (h *Handler) Register(c *gin.Context) {
	const op = "handler.Register"

	log := h.log.With(slog.String("op", op))

	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		newErrorResponse(c, http.StatusBadRequest, "BAD_REQUEST", "Invalid payload")

		return
	}

	if !IsValidEmail(req.Email) {
		newErrorResponse(c, http.StatusBadRequest, "BAD_REQUEST", "Invalid payload")

		return
	}

	user, err := h.serviceLayer.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrWeakPassword):
			newErrorResponse(c, http.StatusBadRequest, "WEAK_PASSWORD",
				"Password must be min 8 chars and include a letter and a number")
		case errors.Is(err, service.ErrEmailTaken):
			newErrorResponse(c, http.StatusConflict, "CONFLICT", "Email already registered")
		default:
			log.Error("registration failed", slog.Any("error", err))

			newErrorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Registration failed")
		}

		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": user.Public()})
}

// POST /api/auth/login
func (h *Handler) Login(c *gin.Context) {
	const op = "handler.Login"

	log := h.log.With(slog.String("op", op))

	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		newErrorResponse(c, http.StatusBadRequest, "BAD_REQUEST", "Invalid payload")

		return
	}

	pair, user, err := h.serviceLayer.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		// Unknown email and wrong password collapse into one response.
		if errors.Is(err, service.ErrInvalidCredentials) {
			newErrorResponse(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid credentials")

			return
		}

		log.Error("login failed", slog.Any("error", err))

		newErrorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Login failed")

		return
	}

	h.setRefreshCookie(c, pair.RefreshToken)

	c.JSON(http.StatusOK, gin.H{
		"accessToken": pair.AccessToken,
		"user":        user.Public(),
	})
}

// POST /api/auth/refresh
func (h *Handler) Refresh(c *gin.Context) {
	const op = "handler.Refresh"

	log := h.log.With(slog.String("op", op))

	refreshToken, err := c.Cookie(refreshCookieName)
	if err != nil || refreshToken == "" {
		newErrorResponse(c, http.StatusUnauthorized, "UNAUTHORIZED", "Missing refresh token")

		return
	}

	pair, err := h.serviceLayer.Refresh(c.Request.Context(), refreshToken)
	if err != nil {
		if !errors.Is(err, service.ErrUnauthorized) {
			log.Error("refresh failed", slog.Any("error", err))
		}

		newErrorResponse(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid refresh token")

		return
	}

	h.setRefreshCookie(c, pair.RefreshToken)

	c.JSON(http.StatusOK, gin.H{"accessToken": pair.AccessToken})
}

// POST /api/auth/logout
func (h *Handler) Logout(c *gin.Context) {
	const op = "handler.Logout"

	log := h.log.With(slog.String("op", op))

	principal, ok := getPrincipal(c)
	if !ok {
		newErrorResponse(c, http.StatusUnauthorized, "UNAUTHORIZED", "Not authenticated")

		return
	}

	if err := h.serviceLayer.Logout(c.Request.Context(), principal.ID); err != nil {
		log.Error("logout failed", slog.Any("error", err))

		newErrorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Logout failed")

		return
	}

	h.clearRefreshCookie(c)

	log.Info("user logged out", slog.String("user_id", principal.ID))

	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// GET /api/auth/me
func (h *Handler) Me(c *gin.Context) {
	principal, ok := getPrincipal(c)
	if !ok {
		newErrorResponse(c, http.StatusUnauthorized, "UNAUTHORIZED", "Not authenticated")

		return
	}

	c.JSON(http.StatusOK, gin.H{"user": gin.H{
		"id":    principal.ID,
		"email": principal.Email,
		"role":  principal.Role,
	}})
}

// GET /api/protected
func (h *Handler) Protected(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Admin content"})
}
