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

var errInvalidCorporateID = errors.New("invalid corporate_id")

// PlanConfigHandler manages base plan configuration documents.
type PlanConfigHandler struct {
	db    *gorm.DB
	cache PlanCacheInvalidator
}

// NewPlanConfigHandler constructs a plan configuration handler. cache may be nil.
func NewPlanConfigHandler(db *gorm.DB, cache PlanCacheInvalidator) *PlanConfigHandler {
	return &PlanConfigHandler{db: db, cache: cache}
}

// parsePlanKey validates the key columns shared by documents and overrides.
func parsePlanKey(planType, corporateID, countryCode string) (planconfig.Key, error) {
	key, errKey := planconfig.NewKey(planType, corporateID, countryCode)
	if errKey != nil {
		return planconfig.Key{}, errKey
	}
	if key.CorporateID != "" && !validSlug(key.CorporateID) {
		return planconfig.Key{}, errInvalidCorporateID
	}
	return key, nil
}

// normalizeDocument parses and re-encodes a configuration document so only
// known sections are stored.
func normalizeDocument(raw json.RawMessage) (datatypes.JSON, error) {
	doc, errParse := planconfig.ParseDocument(raw)
	if errParse != nil {
		return nil, errParse
	}
	if doc == nil {
		return nil, errors.New("document is required")
	}
	encoded, errMarshal := planconfig.MarshalDocument(doc)
	if errMarshal != nil {
		return nil, errMarshal
	}
	return datatypes.JSON(encoded), nil
}

// createPlanConfigRequest captures the payload for creating a base document.
type createPlanConfigRequest struct {
	CorporateID string          `json:"corporate_id"` // Empty for the platform default.
	PlanType    string          `json:"plan_type"`    // GMC, GPA, ...
	CountryCode string          `json:"country_code"` // IN, SG, ... or GLOBAL.
	Name        string          `json:"name"`         // Admin label.
	Document    json.RawMessage `json:"document"`     // Plan configuration document.
	IsEnabled   *bool           `json:"is_enabled"`   // Optional active flag.
}

// Create validates and inserts a base plan configuration.
func (h *PlanConfigHandler) Create(c *gin.Context) {
	var body createPlanConfigRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	key, errKey := parsePlanKey(body.PlanType, body.CorporateID, body.CountryCode)
	if errKey != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errKey.Error()})
		return
	}
	document, errDoc := normalizeDocument(body.Document)
	if errDoc != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document"})
		return
	}
	isEnabled := true
	if body.IsEnabled != nil {
		isEnabled = *body.IsEnabled
	}

	ctx := c.Request.Context()
	var count int64
	if errCount := h.db.WithContext(ctx).Model(&models.PlanConfig{}).
		Where("corporate_id = ? AND plan_type = ? AND country_code = ?", key.CorporateID, string(key.PlanType), string(key.CountryCode)).
		Count(&count).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if count > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "plan configuration already exists"})
		return
	}

	now := time.Now().UTC()
	row := models.PlanConfig{
		CorporateID: key.CorporateID,
		PlanType:    string(key.PlanType),
		CountryCode: string(key.CountryCode),
		Name:        strings.TrimSpace(body.Name),
		Document:    document,
		IsEnabled:   isEnabled,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if errCreate := h.db.WithContext(ctx).Create(&row).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create plan configuration failed"})
		return
	}
	if !isEnabled {
		// gorm skips zero values that carry a default tag.
		if errUpdate := h.db.WithContext(ctx).Model(&models.PlanConfig{}).Where("id = ?", row.ID).
			Update("is_enabled", false).Error; errUpdate != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "create plan configuration failed"})
			return
		}
	}
	h.invalidate(c, key.PlanType)
	c.JSON(http.StatusCreated, formatPlanConfig(&row))
}

// List returns base documents filtered by key columns and enabled flag.
func (h *PlanConfigHandler) List(c *gin.Context) {
	q := h.db.WithContext(c.Request.Context()).Model(&models.PlanConfig{})
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
	if corp, ok := c.GetQuery("corporate_id"); ok {
		q = q.Where("corporate_id = ?", strings.ToLower(strings.TrimSpace(corp)))
	}
	if enabled, ok := parseEnabledQuery(c.Query("is_enabled")); ok {
		q = q.Where("is_enabled = ?", enabled)
	}

	var rows []models.PlanConfig
	if errFind := q.Order("plan_type ASC, corporate_id ASC, country_code ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list plan configurations failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatPlanConfig(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"plan_configs": out})
}

// Get returns a base document by ID.
func (h *PlanConfigHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var row models.PlanConfig
	if errFind := h.db.WithContext(c.Request.Context()).First(&row, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, formatPlanConfig(&row))
}

// updatePlanConfigRequest captures optional fields. Key columns are fixed
// once created.
type updatePlanConfigRequest struct {
	Name      *string          `json:"name"`
	Document  *json.RawMessage `json:"document"`
	IsEnabled *bool            `json:"is_enabled"`
}

// Update replaces the document or label of a base configuration.
func (h *PlanConfigHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var body updatePlanConfigRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	var existing models.PlanConfig
	if errFind := h.db.WithContext(c.Request.Context()).First(&existing, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	updates := map[string]any{
		"updated_at": time.Now().UTC(),
	}
	if body.Name != nil {
		updates["name"] = strings.TrimSpace(*body.Name)
	}
	if body.Document != nil {
		document, errDoc := normalizeDocument(*body.Document)
		if errDoc != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document"})
			return
		}
		updates["document"] = document
	}
	if body.IsEnabled != nil {
		updates["is_enabled"] = *body.IsEnabled
	}

	if errUpdate := h.db.WithContext(c.Request.Context()).Model(&models.PlanConfig{}).Where("id = ?", id).Updates(updates).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	h.invalidate(c, planconfig.PlanType(existing.PlanType))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Delete removes a base configuration by ID.
func (h *PlanConfigHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var existing models.PlanConfig
	if errFind := h.db.WithContext(c.Request.Context()).First(&existing, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if errDelete := h.db.WithContext(c.Request.Context()).Delete(&models.PlanConfig{}, id).Error; errDelete != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	h.invalidate(c, planconfig.PlanType(existing.PlanType))
	c.Status(http.StatusNoContent)
}

// Enable marks a base configuration as served.
func (h *PlanConfigHandler) Enable(c *gin.Context) {
	h.setEnabled(c, true)
}

// Disable stops serving a base configuration.
func (h *PlanConfigHandler) Disable(c *gin.Context) {
	h.setEnabled(c, false)
}

func (h *PlanConfigHandler) setEnabled(c *gin.Context, enabled bool) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var existing models.PlanConfig
	if errFind := h.db.WithContext(c.Request.Context()).First(&existing, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	res := h.db.WithContext(c.Request.Context()).Model(&models.PlanConfig{}).Where("id = ?", id).
		Updates(map[string]any{"is_enabled": enabled, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	h.invalidate(c, planconfig.PlanType(existing.PlanType))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Effective previews the configuration a tenant would receive for a key.
func (h *PlanConfigHandler) Effective(c *gin.Context) {
	key, errKey := parsePlanKey(c.Query("plan_type"), c.Query("corporate_id"), c.DefaultQuery("country_code", string(planconfig.CountryGlobal)))
	if errKey != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errKey.Error()})
		return
	}
	bundle, errFetch := planconfig.NewStoreSource(h.db).Fetch(c.Request.Context(), key)
	if errFetch != nil {
		log.WithError(errFetch).WithField("key", key.String()).Warn("admin: effective preview failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load plan configuration failed"})
		return
	}
	if bundle == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"key":       key,
		"base":      bundle.Base,
		"overrides": bundle.Overrides,
		"effective": bundle.Effective(),
	})
}

func (h *PlanConfigHandler) invalidate(c *gin.Context, planType planconfig.PlanType) {
	if h.cache == nil {
		return
	}
	if errInvalidate := h.cache.Invalidate(c.Request.Context(), planType); errInvalidate != nil {
		log.WithError(errInvalidate).WithField("plan_type", planType).Warn("admin: invalidate plan cache failed")
	}
}

// formatPlanConfig converts a plan configuration row into a response payload.
func formatPlanConfig(p *models.PlanConfig) gin.H {
	return gin.H{
		"id":           p.ID,
		"corporate_id": p.CorporateID,
		"plan_type":    p.PlanType,
		"country_code": p.CountryCode,
		"name":         p.Name,
		"document":     p.Document,
		"is_enabled":   p.IsEnabled,
		"created_at":   p.CreatedAt,
		"updated_at":   p.UpdatedAt,
	}
}
