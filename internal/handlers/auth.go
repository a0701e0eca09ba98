package handlers

import (
	"net/http"

	"github.com/atharvakonge/paper-trader/internal/apperrors"
	"github.com/gin-gonic/gin"
)

type credentialsRequest struct {
	Username     input `form:"username" json:"username"`
	Password     input `form:"password" json:"password"`
	Confirmation input `form:"confirmation" json:"confirmation"`
}

type passwordRequest struct {
	Current      input `form:"current_pw" json:"current_pw"`
	Password     input `form:"password" json:"password"`
	Confirmation input `form:"confirmation" json:"confirmation"`
}

// Register handles POST /api/register and logs the new user in
func (h *Handler) Register(c *gin.Context) {
	var req credentialsRequest
	if !h.bind(c, &req) {
		return
	}

	user, err := h.accounts.Register(c.Request.Context(),
		req.Username.String(), req.Password.String(), req.Confirmation.String())
	if err != nil {
		h.fail(c, err)
		return
	}

	if !h.startSession(c, user.ID) {
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Registered!", "user": user})
}

// Login handles POST /api/login. Any previous session of this client is ended first.
func (h *Handler) Login(c *gin.Context) {
	var req credentialsRequest
	if !h.bind(c, &req) {
		return
	}
	h.endSession(c)

	user, err := h.accounts.Login(c.Request.Context(), req.Username.String(), req.Password.String())
	if err != nil {
		status := statusFor(err)
		if cat := apperrors.CategoryOf(err); cat == apperrors.CategoryValidation || cat == apperrors.CategoryAuth {
			status = http.StatusForbidden
		}
		h.respondError(c, status, err)
		return
	}

	if !h.startSession(c, user.ID) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged in!", "user": user})
}

// Logout handles POST /api/logout
func (h *Handler) Logout(c *gin.Context) {
	h.endSession(c)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out!"})
}

// ChangePassword handles POST /api/password
func (h *Handler) ChangePassword(c *gin.Context) {
	var req passwordRequest
	if !h.bind(c, &req) {
		return
	}

	err := h.accounts.ChangePassword(c.Request.Context(), currentUserID(c),
		req.Current.String(), req.Password.String(), req.Confirmation.String())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password changed!"})
}

func (h *Handler) startSession(c *gin.Context, userID int64) bool {
	sess, err := h.sessions.Create(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err)
		return false
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.CookieName, sess.Token, int(h.cookie.TTL.Seconds()), "/", "", h.cookie.Secure, true)
	return true
}

func (h *Handler) endSession(c *gin.Context) {
	token, err := c.Cookie(h.cookie.CookieName)
	if err != nil || token == "" {
		return
	}
	if err := h.sessions.Destroy(c.Request.Context(), token); err != nil {
		h.log.Warn("Failed to delete session", map[string]any{"error": err.Error()})
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.CookieName, "", -1, "/", "", h.cookie.Secure, true)
}
