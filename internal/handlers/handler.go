package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/atharvakonge/paper-trader/internal/apperrors"
	"github.com/atharvakonge/paper-trader/internal/auth"
	"github.com/atharvakonge/paper-trader/internal/config"
	"github.com/atharvakonge/paper-trader/internal/ledger"
	"github.com/atharvakonge/paper-trader/internal/logger"
	"github.com/gin-gonic/gin"
)

// Handler adapts HTTP requests onto the auth and ledger services.
type Handler struct {
	accounts *auth.Service
	sessions *auth.Sessions
	ledger   *ledger.Service
	trades   *ledger.Processor
	cookie   config.SessionConfig
	log      logger.Logger
}

func NewHandler(
	accounts *auth.Service,
	sessions *auth.Sessions,
	ledgerSvc *ledger.Service,
	trades *ledger.Processor,
	cookie config.SessionConfig,
	log logger.Logger,
) *Handler {
	return &Handler{
		accounts: accounts,
		sessions: sessions,
		ledger:   ledgerSvc,
		trades:   trades,
		cookie:   cookie,
		log:      log,
	}
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Code  int    `json:"code"`
	Error string `json:"error"`
}

// input is a raw request value. Forms always send strings; JSON may send a string or a
// bare number, and both reach the services as raw text.
type input string

func (i *input) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*i = input(s)
		return nil
	}
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		raw = ""
	}
	*i = input(raw)
	return nil
}

func (i input) String() string { return string(i) }

// statusFor maps an error category onto an HTTP status.
func statusFor(err error) int {
	switch apperrors.CategoryOf(err) {
	case apperrors.CategoryValidation, apperrors.CategoryBusiness, apperrors.CategoryCollaborator:
		return http.StatusBadRequest
	case apperrors.CategoryAuth:
		if errors.Is(err, apperrors.ErrUnauthenticated) {
			return http.StatusUnauthorized
		}
		return http.StatusForbidden
	case apperrors.CategoryNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// respondError writes err with the given status. Only the public sentinel message
// leaves the server; internal details go to the log.
func (h *Handler) respondError(c *gin.Context, status int, err error) {
	fields := apperrors.LogFields(err)
	fields["path"] = c.Request.URL.Path
	if status >= http.StatusInternalServerError {
		h.log.Error("Request failed", fields)
	} else {
		h.log.Debug("Request rejected", fields)
	}
	_ = c.Error(err)

	public := apperrors.Public(err)
	c.AbortWithStatusJSON(status, ErrorResponse{Code: apperrors.Code(public), Error: public.Error()})
}

func (h *Handler) fail(c *gin.Context, err error) {
	h.respondError(c, statusFor(err), err)
}

// bind decodes form or JSON bodies according to Content-Type.
func (h *Handler) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBind(dst); err != nil {
		h.log.Debug("Request binding failed", map[string]any{"error": err.Error(), "path": c.Request.URL.Path})
		h.respondError(c, http.StatusBadRequest, apperrors.ErrInvalidRequest)
		return false
	}
	return true
}

// Health handles GET /health
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}
