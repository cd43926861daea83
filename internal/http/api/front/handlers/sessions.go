package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/corpbenefits/benefits-platform/internal/enrollment"
	"github.com/corpbenefits/benefits-platform/internal/form"
	"github.com/corpbenefits/benefits-platform/internal/metrics"
	"github.com/corpbenefits/benefits-platform/internal/planconfig"
	"github.com/corpbenefits/benefits-platform/internal/tenancy"
	"github.com/gin-gonic/gin"
)

// SessionHandler drives enrollment sessions.
type SessionHandler struct {
	sessions  *enrollment.Sessions
	submitter enrollment.Submitter
}

// NewSessionHandler constructs a SessionHandler.
func NewSessionHandler(sessions *enrollment.Sessions, submitter enrollment.Submitter) *SessionHandler {
	return &SessionHandler{sessions: sessions, submitter: submitter}
}

type sessionKeyRequest struct {
	PlanType    string `json:"plan_type"`
	CountryCode string `json:"country_code"`
}

type sessionProfileRequest struct {
	AgeBand    string `json:"age_band"`
	FamilySize int    `json:"family_size"`
}

// session returns the caller's session; sessions of other employees or
// tenants are reported as missing.
func (h *SessionHandler) session(c *gin.Context) (*enrollment.Session, bool) {
	tenant, subject, ok := requestIdentity(c)
	if !ok {
		return nil, false
	}
	sess, found := h.sessions.Get(strings.TrimSpace(c.Param("id")))
	if !found || sess.CorporateID != tenant.Slug || sess.EmployeeID != subject {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return nil, false
	}
	return sess, true
}

// Create opens a session, loading a configuration when a plan type is given.
func (h *SessionHandler) Create(c *gin.Context) {
	tenant, subject, ok := requestIdentity(c)
	if !ok {
		return
	}
	var body sessionKeyRequest
	if c.Request.ContentLength != 0 {
		if errBind := c.ShouldBindJSON(&body); errBind != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
	}

	var key planconfig.Key
	hasKey := strings.TrimSpace(body.PlanType) != ""
	if hasKey {
		parsed, errKey := planKeyFor(tenant, body.PlanType, body.CountryCode)
		if errKey != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errKey.Error()})
			return
		}
		key = parsed
	}

	sess := h.sessions.Create(tenant.ID, tenant.Slug, subject)
	if hasKey {
		sess.SetKey(c.Request.Context(), key)
	}
	c.JSON(http.StatusCreated, sess.Snapshot())
}

// Get returns the session snapshot.
func (h *SessionHandler) Get(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sess.Snapshot())
}

// SetKey switches the session to another plan type or country.
func (h *SessionHandler) SetKey(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var body sessionKeyRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	tenant, _ := tenancy.FromContext(c)
	key, errKey := planKeyFor(tenant, body.PlanType, body.CountryCode)
	if errKey != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errKey.Error()})
		return
	}
	sess.SetKey(c.Request.Context(), key)
	c.JSON(http.StatusOK, sess.Snapshot())
}

// SetProfile records the age band and family size used for the premium.
func (h *SessionHandler) SetProfile(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var body sessionProfileRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if errProfile := sess.SetProfile(strings.TrimSpace(body.AgeBand), body.FamilySize); errProfile != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errProfile.Error()})
		return
	}
	c.JSON(http.StatusOK, sess.Summary())
}

// Schema renders the session's form.
func (h *SessionHandler) Schema(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sess.Schema(nil))
}

// Change applies one component edit and returns the re-rendered form.
// Rejected edits leave the selection untouched and report the message on
// the component's field.
func (h *SessionHandler) Change(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var change form.Change
	if errBind := c.ShouldBindJSON(&change); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	errApply := sess.Apply(change)
	switch {
	case errApply == nil:
		c.JSON(http.StatusOK, sess.Schema(nil))
	case errors.Is(errApply, enrollment.ErrNotReady):
		c.JSON(http.StatusConflict, gin.H{"error": errApply.Error()})
	case errors.Is(errApply, form.ErrUnknownComponent):
		c.JSON(http.StatusBadRequest, gin.H{"error": errApply.Error()})
	case errors.Is(errApply, form.ErrNoConfiguration):
		c.JSON(http.StatusConflict, gin.H{"error": form.NoConfigurationMessage, "schema": sess.Schema(nil)})
	default:
		errs := form.ValidationErrors{change.Component: {errApply.Error()}}
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": errApply.Error(), "schema": sess.Schema(errs)})
	}
}

// Summary returns the summary and premium for the session's selection.
func (h *SessionHandler) Summary(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	view := sess.Summary()
	metrics.ObservePremiumLookup(view.PremiumFound)
	c.JSON(http.StatusOK, view)
}

// Submit sends the session's selection once.
func (h *SessionHandler) Submit(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	result, errSubmit := sess.Submit(c.Request.Context(), h.submitter)
	switch {
	case errSubmit == nil:
		c.JSON(http.StatusOK, result)
	case errors.Is(errSubmit, enrollment.ErrAlreadySubmitted), errors.Is(errSubmit, enrollment.ErrSubmissionInFlight):
		c.JSON(http.StatusConflict, result)
	case errors.Is(errSubmit, enrollment.ErrNotReady):
		c.JSON(http.StatusConflict, result)
	default:
		c.JSON(http.StatusBadGateway, result)
	}
}
