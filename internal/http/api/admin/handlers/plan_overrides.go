package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/corpbenefits/benefits-platform/internal/models"
	"github.com/corpbenefits/benefits-platform/internal/planconfig"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PlanOverrideHandler manages country and tenant override patches.
type PlanOverrideHandler struct {
	db    *gorm.DB
	cache PlanCacheInvalidator
}

// NewPlanOverrideHandler constructs an override handler. cache may be nil.
func NewPlanOverrideHandler(db *gorm.DB, cache PlanCacheInvalidator) *PlanOverrideHandler {
	return &PlanOverrideHandler{db: db, cache: cache}
}

// normalizePatch parses and re-encodes an override patch, rejecting patches
// that change nothing.
func normalizePatch(raw json.RawMessage) (datatypes.JSON, error) {
	patch, errParse := planconfig.ParsePatch(raw)
	if errParse != nil {
		return nil, errParse
	}
	if patch.IsEmpty() {
		return nil, errors.New("patch is empty")
	}
	encoded, errMarshal := planconfig.MarshalPatch(patch)
	if errMarshal != nil {
		return nil, errMarshal
	}
	return datatypes.JSON(encoded), nil
}

// createPlanOverrideRequest captures the payload for creating an override.
type createPlanOverrideRequest struct {
	CorporateID string          `json:"corporate_id"` // Empty for a country override.
	PlanType    string          `json:"plan_type"`    // Plan type the patch targets.
	CountryCode string          `json:"country_code"` // Country the patch applies to.
	Description string          `json:"description"`  // Admin note.
	Patch       json.RawMessage `json:"patch"`        // Partial configuration.
	IsEnabled   *bool           `json:"is_enabled"`   // Optional active flag.
}

// Create validates and inserts an override.
func (h *PlanOverrideHandler) Create(c *gin.Context) {
	var body createPlanOverrideRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	key, errKey := parsePlanKey(body.PlanType, body.CorporateID, body.CountryCode)
	if errKey != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errKey.Error()})
		return
	}
	patch, errPatch := normalizePatch(body.Patch)
	if errPatch != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid patch"})
		return
	}
	isEnabled := true
	if body.IsEnabled != nil {
		isEnabled = *body.IsEnabled
	}

	ctx := c.Request.Context()
	now := time.Now().UTC()
	row := models.PlanOverride{
		CorporateID: key.CorporateID,
		PlanType:    string(key.PlanType),
		CountryCode: string(key.CountryCode),
		Description: strings.TrimSpace(body.Description),
		Patch:       patch,
		IsEnabled:   isEnabled,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if errCreate := h.db.WithContext(ctx).Create(&row).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create override failed"})
		return
	}
	if !isEnabled {
		if errUpdate := h.db.WithContext(ctx).Model(&models.PlanOverride{}).Where("id = ?", row.ID).
			Update("is_enabled", false).Error; errUpdate != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "create override failed"})
			return
		}
	}
	h.invalidate(c, key.PlanType)
	c.JSON(http.StatusCreated, formatPlanOverride(&row))
}

// List returns overrides filtered by key columns, scope and enabled flag.
func (h *PlanOverrideHandler) List(c *gin.Context) {
	q := h.db.WithContext(c.Request.Context()).Model(&models.PlanOverride{})
	if planType := strings.TrimSpace(c.Query("plan_type")); planType != "" {
		pt, errPlan := planconfig.ParsePlanType(planType)
		if errPlan != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid plan_type"})
			return
		}
		q = q.Where("plan_type = ?", string(pt))
	}
	if country := strings.TrimSpace(c.Query("country_code")); country != "" {
		cc, errCountry := planconfig.ParseCountryCode(country)
		if errCountry != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid country_code"})
			return
		}
		q = q.Where("country_code = ?", string(cc))
	}
	switch planconfig.OverrideScope(strings.ToLower(strings.TrimSpace(c.Query("scope")))) {
	case planconfig.ScopeCountry:
		q = q.Where("corporate_id = ?", "")
	case planconfig.ScopeTenant:
		q = q.Where("corporate_id <> ?", "")
	}
	if corp := strings.ToLower(strings.TrimSpace(c.Query("corporate_id"))); corp != "" {
		q = q.Where("corporate_id = ?", corp)
	}
	if enabled, ok := parseEnabledQuery(c.Query("is_enabled")); ok {
		q = q.Where("is_enabled = ?", enabled)
	}

	var rows []models.PlanOverride
	if errFind := q.Order("id ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list overrides failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatPlanOverride(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"plan_overrides": out})
}

// Get returns an override by ID.
func (h *PlanOverrideHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	row, found := h.find(c, id)
	if !found {
		return
	}
	c.JSON(http.StatusOK, formatPlanOverride(&row))
}

type updatePlanOverrideRequest struct {
	Description *string          `json:"description"`
	Patch       *json.RawMessage `json:"patch"`
	IsEnabled   *bool            `json:"is_enabled"`
}

// Update replaces the patch or note of an override.
func (h *PlanOverrideHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var body updatePlanOverrideRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	existing, found := h.find(c, id)
	if !found {
		return
	}

	updates := map[string]any{
		"updated_at": time.Now().UTC(),
	}
	if body.Description != nil {
		updates["description"] = strings.TrimSpace(*body.Description)
	}
	if body.Patch != nil {
		patch, errPatch := normalizePatch(*body.Patch)
		if errPatch != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid patch"})
			return
		}
		updates["patch"] = patch
	}
	if body.IsEnabled != nil {
		updates["is_enabled"] = *body.IsEnabled
	}
	if errUpdate := h.db.WithContext(c.Request.Context()).Model(&models.PlanOverride{}).Where("id = ?", id).Updates(updates).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	h.invalidate(c, planconfig.PlanType(existing.PlanType))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Delete removes an override by ID.
func (h *PlanOverrideHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	existing, found := h.find(c, id)
	if !found {
		return
	}
	if errDelete := h.db.WithContext(c.Request.Context()).Delete(&models.PlanOverride{}, id).Error; errDelete != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	h.invalidate(c, planconfig.PlanType(existing.PlanType))
	c.Status(http.StatusNoContent)
}

// Enable applies an override again.
func (h *PlanOverrideHandler) Enable(c *gin.Context) {
	h.setEnabled(c, true)
}

// Disable stops applying an override.
func (h *PlanOverrideHandler) Disable(c *gin.Context) {
	h.setEnabled(c, false)
}

func (h *PlanOverrideHandler) setEnabled(c *gin.Context, enabled bool) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	existing, found := h.find(c, id)
	if !found {
		return
	}
	if errUpdate := h.db.WithContext(c.Request.Context()).Model(&models.PlanOverride{}).Where("id = ?", id).
		Updates(map[string]any{"is_enabled": enabled, "updated_at": time.Now().UTC()}).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	h.invalidate(c, planconfig.PlanType(existing.PlanType))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// find loads an override and answers 404 or 500 itself when it cannot.
func (h *PlanOverrideHandler) find(c *gin.Context, id uint64) (models.PlanOverride, bool) {
	var row models.PlanOverride
	if errFind := h.db.WithContext(c.Request.Context()).First(&row, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return row, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return row, false
	}
	return row, true
}

func (h *PlanOverrideHandler) invalidate(c *gin.Context, planType planconfig.PlanType) {
	if h.cache == nil {
		return
	}
	if errInvalidate := h.cache.Invalidate(c.Request.Context(), planType); errInvalidate != nil {
		log.WithError(errInvalidate).WithField("plan_type", planType).Warn("admin: invalidate plan cache failed")
	}
}

// formatPlanOverride converts an override row into a response payload.
func formatPlanOverride(p *models.PlanOverride) gin.H {
	scope := planconfig.ScopeCountry
	if p.CorporateID != "" {
		scope = planconfig.ScopeTenant
	}
	return gin.H{
		"id":           p.ID,
		"scope":        scope,
		"corporate_id": p.CorporateID,
		"plan_type":    p.PlanType,
		"country_code": p.CountryCode,
		"description":  p.Description,
		"patch":        p.Patch,
		"is_enabled":   p.IsEnabled,
		"created_at":   p.CreatedAt,
		"updated_at":   p.UpdatedAt,
	}
}
