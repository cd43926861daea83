package handlers

import (
	"errors"
	"net/http"
	"strings"

	dbutil "github.com/corpbenefits/benefits-platform/internal/db"
	"github.com/corpbenefits/benefits-platform/internal/models"
	"github.com/corpbenefits/benefits-platform/internal/planconfig"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// EnrollmentHandler lists submitted enrollments.
type EnrollmentHandler struct {
	db *gorm.DB
}

// NewEnrollmentHandler constructs an enrollment handler.
func NewEnrollmentHandler(db *gorm.DB) *EnrollmentHandler {
	return &EnrollmentHandler{db: db}
}

type enrollmentListQuery struct {
	Page        int    `form:"page"`
	Limit       int    `form:"limit"`
	CorporateID string `form:"corporate_id"`
	EmployeeID  string `form:"employee_id"`
	PlanType    string `form:"plan_type"`
	Payment     string `form:"payment"`
}

// List returns enrollments with paging and filters.
func (h *EnrollmentHandler) List(c *gin.Context) {
	var q enrollmentListQuery
	if errBind := c.ShouldBindQuery(&q); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 || q.Limit > 100 {
		q.Limit = 20
	}

	var planType string
	if raw := strings.TrimSpace(q.PlanType); raw != "" {
		pt, errPlan := planconfig.ParsePlanType(raw)
		if errPlan != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid plan_type"})
			return
		}
		planType = string(pt)
	}
	filter := func(tx *gorm.DB) *gorm.DB {
		if corp := strings.ToLower(strings.TrimSpace(q.CorporateID)); corp != "" {
			tx = tx.Where("corporate_id = ?", corp)
		}
		if employee := strings.TrimSpace(q.EmployeeID); employee != "" {
			tx = tx.Where("employee_id = ?", employee)
		}
		if planType != "" {
			tx = tx.Where("plan_type = ?", planType)
		}
		if payment := strings.TrimSpace(q.Payment); payment != "" {
			tx = tx.Scopes(dbutil.JSONFieldEquals("selection", "payment", payment))
		}
		return tx
	}

	ctx := c.Request.Context()
	var total int64
	if errCount := h.db.WithContext(ctx).Model(&models.Enrollment{}).Scopes(filter).Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count enrollments failed"})
		return
	}

	var rows []models.Enrollment
	if errFind := h.db.WithContext(ctx).Scopes(filter).
		Order("created_at DESC, id DESC").
		Offset((q.Page - 1) * q.Limit).
		Limit(q.Limit).
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list enrollments failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatEnrollment(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{
		"enrollments": out,
		"total":       total,
		"page":        q.Page,
		"limit":       q.Limit,
	})
}

// Get returns an enrollment by ID.
func (h *EnrollmentHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var row models.Enrollment
	if errFind := h.db.WithContext(c.Request.Context()).First(&row, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, formatEnrollment(&row))
}

// formatEnrollment converts an enrollment row into a response payload.
func formatEnrollment(e *models.Enrollment) gin.H {
	return gin.H{
		"id":           e.ID,
		"public_id":    e.PublicID,
		"tenant_id":    e.TenantID,
		"corporate_id": e.CorporateID,
		"employee_id":  e.EmployeeID,
		"session_id":   e.SessionID,
		"plan_type":    e.PlanType,
		"country_code": e.CountryCode,
		"selection":    e.Selection,
		"summary":      e.Summary,
		"premium":      e.Premium,
		"message":      e.Message,
		"created_at":   e.CreatedAt,
	}
}
