package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/corpbenefits/benefits-platform/internal/form"
	"github.com/corpbenefits/benefits-platform/internal/metrics"
	"github.com/corpbenefits/benefits-platform/internal/planconfig"
	"github.com/corpbenefits/benefits-platform/internal/summary"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// ConfigLoader resolves the effective configuration for a key.
type ConfigLoader interface {
	Effective(ctx context.Context, key planconfig.Key) (*planconfig.PlanConfiguration, error)
}

// PlanConfigFrontHandler serves session-less configuration, form and summary
// endpoints.
type PlanConfigFrontHandler struct {
	loader ConfigLoader
}

// NewPlanConfigFrontHandler constructs a PlanConfigFrontHandler.
func NewPlanConfigFrontHandler(loader ConfigLoader) *PlanConfigFrontHandler {
	return &PlanConfigFrontHandler{loader: loader}
}

// load resolves the configuration for the request's plan type and country.
// Absent configurations return nil without an error response.
func (h *PlanConfigFrontHandler) load(c *gin.Context, planType, countryCode string) (planconfig.Key, *planconfig.PlanConfiguration, bool) {
	tenant, _, ok := requestIdentity(c)
	if !ok {
		return planconfig.Key{}, nil, false
	}
	key, errKey := planKeyFor(tenant, planType, countryCode)
	if errKey != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errKey.Error()})
		return planconfig.Key{}, nil, false
	}
	cfg, errLoad := h.loader.Effective(c.Request.Context(), key)
	if errors.Is(errLoad, planconfig.ErrNotFound) {
		return key, nil, true
	}
	if errLoad != nil {
		log.WithError(errLoad).WithField("key", key.String()).Warn("front: load plan configuration failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "load plan configuration failed"})
		return planconfig.Key{}, nil, false
	}
	return key, cfg, true
}

// Options lists the plan types and countries a key may name, with the
// country used when a request leaves it blank.
func (h *PlanConfigFrontHandler) Options(c *gin.Context) {
	tenant, _, ok := requestIdentity(c)
	if !ok {
		return
	}
	defaultCountry := planconfig.CountryGlobal
	if parsed, errCountry := planconfig.ParseCountryCode(tenant.CountryCode); errCountry == nil {
		defaultCountry = parsed
	}
	c.JSON(http.StatusOK, gin.H{
		"plan_types":      planconfig.PlanTypes(),
		"countries":       planconfig.CountryCodes(),
		"default_country": defaultCountry,
	})
}

// Get returns the effective configuration.
func (h *PlanConfigFrontHandler) Get(c *gin.Context) {
	key, cfg, ok := h.load(c, c.Query("plan_type"), c.Query("country_code"))
	if !ok {
		return
	}
	if cfg == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": form.NoConfigurationMessage})
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "config": cfg})
}

// FormSchema renders the form for an empty selection. A missing
// configuration renders the empty-state schema.
func (h *PlanConfigFrontHandler) FormSchema(c *gin.Context) {
	_, cfg, ok := h.load(c, c.Query("plan_type"), c.Query("country_code"))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, form.Render(cfg, form.NewSelection(cfg), nil))
}

type summaryRequest struct {
	PlanType    string          `json:"plan_type" binding:"required"`
	CountryCode string          `json:"country_code"`
	Selection   *form.Selection `json:"selection"`
}

// Summary computes the summary and premium for a posted selection.
func (h *PlanConfigFrontHandler) Summary(c *gin.Context) {
	var body summaryRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	_, cfg, ok := h.load(c, body.PlanType, body.CountryCode)
	if !ok {
		return
	}
	if cfg == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": form.NoConfigurationMessage})
		return
	}
	sel := body.Selection
	if sel == nil {
		sel = form.NewSelection(cfg)
	}
	if sel.Family == nil {
		sel.Family = map[string]bool{}
	}
	for _, member := range cfg.Members() {
		if member.Mandatory {
			sel.Family[member.Relation] = true
		}
	}
	view := summary.Summarize(cfg, sel)
	metrics.ObservePremiumLookup(view.PremiumFound)
	c.JSON(http.StatusOK, view)
}
