package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	dbutil "github.com/corpbenefits/benefits-platform/internal/db"
	"github.com/corpbenefits/benefits-platform/internal/models"
	"github.com/corpbenefits/benefits-platform/internal/planconfig"
	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TenantHandler manages the tenant directory.
type TenantHandler struct {
	db  *gorm.DB
	dir TenantDirectory
}

// NewTenantHandler constructs a tenant handler. dir may be nil.
func NewTenantHandler(db *gorm.DB, dir TenantDirectory) *TenantHandler {
	return &TenantHandler{db: db, dir: dir}
}

// createTenantRequest captures the payload for creating a tenant.
type createTenantRequest struct {
	Slug            string          `json:"slug"`             // Corporate id.
	Name            string          `json:"name"`             // Display name.
	CountryCode     string          `json:"country_code"`     // Home country, defaults to GLOBAL.
	ComplianceFlags []string        `json:"compliance_flags"` // Compliance regimes.
	ConfigJSON      json.RawMessage `json:"config_json"`      // Free-form settings object.
	Status          string          `json:"status"`           // active or inactive.
	RateLimit       int             `json:"rate_limit"`       // Requests per second, 0 uses the default.
}

// validSlug reports whether slug can serve as a subdomain label.
func validSlug(slug string) bool {
	if slug == "" || len(slug) > 63 || slug == "www" {
		return false
	}
	if slug[0] == '-' || slug[len(slug)-1] == '-' {
		return false
	}
	for _, r := range slug {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '-' {
			return false
		}
	}
	return true
}

func normalizeTenantStatus(status string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "", models.TenantStatusActive:
		return models.TenantStatusActive, true
	case models.TenantStatusInactive:
		return models.TenantStatusInactive, true
	default:
		return "", false
	}
}

func normalizeComplianceFlags(flags []string) (datatypes.JSON, error) {
	cleaned := make([]string, 0, len(flags))
	seen := make(map[string]struct{}, len(flags))
	for _, flag := range flags {
		flag = strings.ToUpper(strings.TrimSpace(flag))
		if flag == "" {
			continue
		}
		if _, ok := seen[flag]; ok {
			continue
		}
		seen[flag] = struct{}{}
		cleaned = append(cleaned, flag)
	}
	raw, errMarshal := json.Marshal(cleaned)
	if errMarshal != nil {
		return nil, errMarshal
	}
	return datatypes.JSON(raw), nil
}

func normalizeTenantConfig(raw json.RawMessage) (datatypes.JSON, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return datatypes.JSON([]byte("{}")), nil
	}
	var obj map[string]any
	if errUnmarshal := json.Unmarshal(raw, &obj); errUnmarshal != nil {
		return nil, errors.New("config_json must be an object")
	}
	return datatypes.JSON(raw), nil
}

// Create validates input and inserts a tenant.
func (h *TenantHandler) Create(c *gin.Context) {
	var body createTenantRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	slug := strings.ToLower(strings.TrimSpace(body.Slug))
	if !validSlug(slug) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid slug"})
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	country := planconfig.CountryGlobal
	if strings.TrimSpace(body.CountryCode) != "" {
		parsed, errCountry := planconfig.ParseCountryCode(body.CountryCode)
		if errCountry != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid country_code"})
			return
		}
		country = parsed
	}
	status, ok := normalizeTenantStatus(body.Status)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}
	if body.RateLimit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "rate_limit must be >= 0"})
		return
	}
	flags, errFlags := normalizeComplianceFlags(body.ComplianceFlags)
	if errFlags != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid compliance_flags"})
		return
	}
	cfgJSON, errCfg := normalizeTenantConfig(body.ConfigJSON)
	if errCfg != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errCfg.Error()})
		return
	}

	ctx := c.Request.Context()
	var count int64
	if errCount := h.db.WithContext(ctx).Model(&models.Tenant{}).Where("slug = ?", slug).Count(&count).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if count > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "slug already exists"})
		return
	}

	now := time.Now().UTC()
	tenant := models.Tenant{
		Slug:            slug,
		Name:            name,
		CountryCode:     string(country),
		ComplianceFlags: flags,
		ConfigJSON:      cfgJSON,
		Status:          status,
		RateLimit:       body.RateLimit,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if errCreate := h.db.WithContext(ctx).Create(&tenant).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create tenant failed"})
		return
	}
	h.invalidate(c)
	c.JSON(http.StatusCreated, formatTenant(&tenant))
}

// List returns tenants filtered by status, search text and compliance flag.
func (h *TenantHandler) List(c *gin.Context) {
	var (
		statusQ = strings.ToLower(strings.TrimSpace(c.Query("status")))
		searchQ = strings.TrimSpace(c.Query("q"))
		flagQ   = strings.ToUpper(strings.TrimSpace(c.Query("compliance_flag")))
	)

	q := h.db.WithContext(c.Request.Context()).Model(&models.Tenant{})
	if statusQ != "" {
		q = q.Where("status = ?", statusQ)
	}
	if searchQ != "" {
		q = q.Scopes(dbutil.Search(searchQ, "slug", "name"))
	}
	if flagQ != "" {
		q = q.Scopes(dbutil.JSONArrayContains("compliance_flags", flagQ))
	}

	var rows []models.Tenant
	if errFind := q.Order("slug ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list tenants failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatTenant(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"tenants": out})
}

// Get returns a tenant by ID.
func (h *TenantHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var tenant models.Tenant
	if errFind := h.db.WithContext(c.Request.Context()).First(&tenant, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, formatTenant(&tenant))
}

// updateTenantRequest captures optional tenant fields. The slug is immutable
// because plan rows and enrollments reference it.
type updateTenantRequest struct {
	Name            *string          `json:"name"`
	CountryCode     *string          `json:"country_code"`
	ComplianceFlags *[]string        `json:"compliance_flags"`
	ConfigJSON      *json.RawMessage `json:"config_json"`
	Status          *string          `json:"status"`
	RateLimit       *int             `json:"rate_limit"`
}

// Update applies tenant field updates.
func (h *TenantHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var body updateTenantRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	updates := map[string]any{
		"updated_at": time.Now().UTC(),
	}
	if body.Name != nil {
		name := strings.TrimSpace(*body.Name)
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name cannot be empty"})
			return
		}
		updates["name"] = name
	}
	if body.CountryCode != nil {
		country, errCountry := planconfig.ParseCountryCode(*body.CountryCode)
		if errCountry != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid country_code"})
			return
		}
		updates["country_code"] = string(country)
	}
	if body.ComplianceFlags != nil {
		flags, errFlags := normalizeComplianceFlags(*body.ComplianceFlags)
		if errFlags != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid compliance_flags"})
			return
		}
		updates["compliance_flags"] = flags
	}
	if body.ConfigJSON != nil {
		cfgJSON, errCfg := normalizeTenantConfig(*body.ConfigJSON)
		if errCfg != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errCfg.Error()})
			return
		}
		updates["config_json"] = cfgJSON
	}
	if body.Status != nil {
		status, okStatus := normalizeTenantStatus(*body.Status)
		if !okStatus || strings.TrimSpace(*body.Status) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
		updates["status"] = status
	}
	if body.RateLimit != nil {
		if *body.RateLimit < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "rate_limit must be >= 0"})
			return
		}
		updates["rate_limit"] = *body.RateLimit
	}

	res := h.db.WithContext(c.Request.Context()).Model(&models.Tenant{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	h.invalidate(c)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Activate marks a tenant active.
func (h *TenantHandler) Activate(c *gin.Context) {
	h.setStatus(c, models.TenantStatusActive)
}

// Deactivate marks a tenant inactive; its requests are refused with 403.
func (h *TenantHandler) Deactivate(c *gin.Context) {
	h.setStatus(c, models.TenantStatusInactive)
}

func (h *TenantHandler) setStatus(c *gin.Context, status string) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	res := h.db.WithContext(c.Request.Context()).Model(&models.Tenant{}).Where("id = ?", id).
		Updates(map[string]any{"status": status, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	h.invalidate(c)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *TenantHandler) invalidate(c *gin.Context) {
	if h.dir != nil {
		h.dir.Invalidate(c.Request.Context())
	}
}

// formatTenant converts a tenant model into a response payload.
func formatTenant(t *models.Tenant) gin.H {
	flags := []string{}
	if len(t.ComplianceFlags) > 0 {
		_ = json.Unmarshal(t.ComplianceFlags, &flags)
	}
	return gin.H{
		"id":               t.ID,
		"slug":             t.Slug,
		"name":             t.Name,
		"country_code":     t.CountryCode,
		"compliance_flags": flags,
		"config_json":      t.ConfigJSON,
		"status":           t.Status,
		"rate_limit":       t.RateLimit,
		"created_at":       t.CreatedAt,
		"updated_at":       t.UpdatedAt,
	}
}
