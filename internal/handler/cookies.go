package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"datablog/internal/config"
)

// Refresh cookie: http-only, scoped to the auth route prefix, Strict+Secure in
// prod and Lax otherwise so local http clients still work.
func (h *Handler) setRefreshCookie(c *gin.Context, refreshToken string) {
	isProd := h.cfg.Env == config.EnvProd

	c.SetSameSite(refreshSameSite(isProd))
	c.SetCookie(
		refreshCookieName,
		refreshToken,
		int(h.cfg.Auth.RefreshTTL.Seconds()),
		authCookiePath,
		"",
		isProd,
		true,
	)
}

func (h *Handler) clearRefreshCookie(c *gin.Context) {
	isProd := h.cfg.Env == config.EnvProd

	c.SetSameSite(refreshSameSite(isProd))
	c.SetCookie(refreshCookieName, "", -1, authCookiePath, "", isProd, true)
}

func (h *Handler) setCSRFCookie(c *gin.Context, csrfToken string) {
	isProd := h.cfg.Env == config.EnvProd

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(csrfCookieName, csrfToken, 0, "/", "", isProd, true)
}

func refreshSameSite(isProd bool) http.SameSite {
	if isProd {
		return http.SameSiteStrictMode
	}

	return http.SameSiteLaxMode
}
