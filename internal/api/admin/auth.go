// auth.go implements HTTP handlers for admin login, token refresh, session
// introspection, and optional OIDC single sign-on.
package admin

import (
	"crypto/rand"
	"encoding/base64"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/corebase/corebase/internal/auth"
	"github.com/corebase/corebase/internal/auth/oidc"
	"github.com/corebase/corebase/internal/config"
	"github.com/corebase/corebase/internal/db/models"
	"github.com/corebase/corebase/internal/db/repositories"
	"github.com/corebase/corebase/internal/middleware"
)

// AuthHandlers handles admin authentication endpoints
type AuthHandlers struct {
	cfg        *config.Config
	adminUsers *repositories.AdminUserRepository
	sso        *oidc.Provider
	logger     *slog.Logger
}

// NewAuthHandlers creates a new AuthHandlers instance. The OIDC provider is
// initialized only when SSO is enabled; password login always works.
func NewAuthHandlers(cfg *config.Config, adminUsers *repositories.AdminUserRepository, logger *slog.Logger) (*AuthHandlers, error) {
	h := &AuthHandlers{
		cfg:        cfg,
		adminUsers: adminUsers,
		logger:     logger,
	}

	if cfg.Auth.OIDC.Enabled {
		provider, err := oidc.NewProvider(&cfg.Auth.OIDC)
		if err != nil {
			return nil, err
		}
		h.sso = provider
	}

	return h, nil
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type sessionResponse struct {
	Token string `json:"token"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// @Summary      Admin login
// @Description  Exchange email and password for a session token.
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Success      200  {object}  sessionResponse
// @Failure      401  {object}  map[string]interface{}  "invalid credentials"
// @Router       /api/v1/auth/login [post]
func (h *AuthHandlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	user, err := h.adminUsers.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to look up user"})
		return
	}

	// Hash comparison runs even for unknown users so response timing does
	// not reveal whether the email exists.
	hash := unknownUserHash
	if user != nil {
		hash = user.PasswordHash
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)) != nil || user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := auth.GenerateJWT(user.ID, user.Email, user.Role, h.cfg.Auth.SessionTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue session"})
		return
	}

	h.logger.Info("admin login", "email", user.Email, "role", user.Role)
	c.JSON(http.StatusOK, sessionResponse{
		Token: token,
		Email: user.Email,
		Name:  user.Name,
		Role:  user.Role,
	})
}

// unknownUserHash is a bcrypt hash of a random value, compared against when
// the email does not resolve to a user.
var unknownUserHash = func() string {
	h, _ := bcrypt.GenerateFromPassword([]byte("corebase-no-such-user"), bcrypt.DefaultCost)
	return string(h)
}()

const (
	ssoStateCookie = "cb_sso_state"
	ssoStateTTL    = 10 * time.Minute
)

// generateSSOState generates a random state string for the SSO redirect
func generateSSOState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// lookupSSOUser finds the admin account for an OIDC identity. Matching by
// subject wins; on first login the account is found by email and the subject
// is bound to it so later email changes at the IdP cannot hijack the account.
func (h *AuthHandlers) lookupSSOUser(c *gin.Context, sub, email string) (*models.AdminUser, error) {
	user, err := h.adminUsers.GetByOIDCSub(c.Request.Context(), sub)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}

	user, err = h.adminUsers.GetByEmail(c.Request.Context(), email)
	if err != nil || user == nil {
		return nil, err
	}

	user.OIDCSub = &sub
	if err := h.adminUsers.Update(c.Request.Context(), user); err != nil {
		h.logger.Error("failed to bind OIDC subject", "email", email, "error", err)
	}
	return user, nil
}

// @Summary      Refresh session
// @Description  Issue a fresh session token for the authenticated admin.
// @Tags         Authentication
// @Produce      json
// @Success      200  {object}  sessionResponse
// @Failure      401  {object}  map[string]interface{}
// @Router       /api/v1/auth/refresh [post]
func (h *AuthHandlers) Refresh(c *gin.Context) {
	ac := middleware.GetAuthContext(c)
	if ac == nil || !ac.Identity.IsAdmin() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	// Re-read the user so a role change or deletion takes effect at refresh
	// time rather than only at token expiry.
	user, err := h.adminUsers.GetByID(c.Request.Context(), ac.Identity.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to look up user"})
		return
	}
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "account no longer exists"})
		return
	}

	token, err := auth.GenerateJWT(user.ID, user.Email, user.Role, h.cfg.Auth.SessionTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue session"})
		return
	}

	c.JSON(http.StatusOK, sessionResponse{
		Token: token,
		Email: user.Email,
		Name:  user.Name,
		Role:  user.Role,
	})
}

// @Summary      Current session
// @Description  Return the identity bound to the presented session token.
// @Tags         Authentication
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]interface{}
// @Router       /api/v1/auth/me [get]
func (h *AuthHandlers) Me(c *gin.Context) {
	ac := middleware.GetAuthContext(c)
	if ac == nil || !ac.Identity.IsAdmin() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id": ac.Identity.UserID,
		"email":   ac.Identity.Email,
		"role":    ac.Identity.Role,
	})
}

// @Summary      Start SSO login
// @Description  Redirect the browser to the configured OIDC provider.
// @Tags         Authentication
// @Success      302  {object}  string
// @Failure      404  {object}  map[string]interface{}  "SSO not configured"
// @Router       /api/v1/auth/sso/login [get]
func (h *AuthHandlers) SSOLogin(c *gin.Context) {
	if h.sso == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "SSO is not configured"})
		return
	}

	state, err := generateSSOState()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate state"})
		return
	}

	c.SetCookie(ssoStateCookie, state, int(ssoStateTTL.Seconds()), "/", "", c.Request.TLS != nil, true)
	c.Redirect(http.StatusFound, h.sso.GetAuthURL(state))
}

// @Summary      SSO callback
// @Description  Complete the OIDC flow and issue a session token. The OIDC
// @Description  subject must already map to an admin_users row; SSO never
// @Description  provisions accounts.
// @Tags         Authentication
// @Produce      json
// @Success      200  {object}  sessionResponse
// @Failure      401  {object}  map[string]interface{}
// @Router       /api/v1/auth/sso/callback [get]
func (h *AuthHandlers) SSOCallback(c *gin.Context) {
	if h.sso == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "SSO is not configured"})
		return
	}

	state := c.Query("state")
	cookieState, err := c.Cookie(ssoStateCookie)
	if err != nil || state == "" || state != cookieState {
		c.JSON(http.StatusBadRequest, gin.H{"error": "state mismatch"})
		return
	}
	// One shot: clear the cookie whether or not the exchange succeeds.
	c.SetCookie(ssoStateCookie, "", -1, "/", "", c.Request.TLS != nil, true)

	token, err := h.sso.ExchangeCode(c.Request.Context(), c.Query("code"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "code exchange failed"})
		return
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "provider response missing id_token"})
		return
	}

	idToken, err := h.sso.VerifyIDToken(c.Request.Context(), rawIDToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "ID token verification failed"})
		return
	}

	sub, email, _, err := h.sso.ExtractUserInfo(idToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "ID token missing required claims"})
		return
	}

	user, err := h.lookupSSOUser(c, sub, email)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to look up user"})
		return
	}
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no admin account for this identity"})
		return
	}

	session, err := auth.GenerateJWT(user.ID, user.Email, user.Role, h.cfg.Auth.SessionTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue session"})
		return
	}

	h.logger.Info("admin SSO login", "email", user.Email, "role", user.Role)
	c.JSON(http.StatusOK, sessionResponse{
		Token: session,
		Email: user.Email,
		Name:  user.Name,
		Role:  user.Role,
	})
}
