package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/corpbenefits/benefits-platform/internal/db"
	"github.com/corpbenefits/benefits-platform/internal/models"
	"github.com/corpbenefits/benefits-platform/internal/planconfig"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func openHandlerDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, errOpen := db.Open("file:" + filepath.Join(t.TempDir(), "admin.db"))
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	t.Cleanup(func() { _ = db.Close(conn) })
	return conn
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, errMarshal := json.Marshal(body)
		if errMarshal != nil {
			t.Fatalf("marshal body: %v", errMarshal)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

type recordingDirectory struct{ calls int }

func (d *recordingDirectory) Invalidate(context.Context) { d.calls++ }

type recordingCache struct{ planTypes []planconfig.PlanType }

func (c *recordingCache) Invalidate(_ context.Context, planType planconfig.PlanType) error {
	c.planTypes = append(c.planTypes, planType)
	return nil
}

func TestTenantHandlerLifecycle(t *testing.T) {
	gin.SetMode(gin.TestMode)
	conn := openHandlerDB(t)
	dir := &recordingDirectory{}
	h := NewTenantHandler(conn, dir)

	r := gin.New()
	r.POST("/tenants", h.Create)
	r.GET("/tenants", h.List)
	r.GET("/tenants/:id", h.Get)
	r.PUT("/tenants/:id", h.Update)
	r.POST("/tenants/:id/deactivate", h.Deactivate)

	rec := doJSON(t, r, http.MethodPost, "/tenants", gin.H{
		"slug":             "Acme",
		"name":             "Acme Corp",
		"country_code":     "in",
		"compliance_flags": []string{"gdpr", "GDPR", "hipaa"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID              uint64   `json:"id"`
		Slug            string   `json:"slug"`
		CountryCode     string   `json:"country_code"`
		ComplianceFlags []string `json:"compliance_flags"`
		Status          string   `json:"status"`
	}
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &created); errDecode != nil {
		t.Fatalf("decode: %v", errDecode)
	}
	if created.Slug != "acme" || created.CountryCode != "IN" || created.Status != models.TenantStatusActive {
		t.Fatalf("unexpected tenant: %+v", created)
	}
	if len(created.ComplianceFlags) != 2 {
		t.Fatalf("expected deduplicated flags, got %v", created.ComplianceFlags)
	}

	if rec := doJSON(t, r, http.MethodPost, "/tenants", gin.H{"slug": "acme", "name": "Again"}); rec.Code != http.StatusConflict {
		t.Fatalf("duplicate slug: expected 409, got %d", rec.Code)
	}
	if rec := doJSON(t, r, http.MethodPost, "/tenants", gin.H{"slug": "bad slug", "name": "X"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad slug: expected 400, got %d", rec.Code)
	}

	rec = doJSON(t, r, http.MethodGet, "/tenants?compliance_flag=hipaa", nil)
	if rec.Code != http.StatusOK || !bytes.Contains(rec.Body.Bytes(), []byte(`"acme"`)) {
		t.Fatalf("filter by flag: %d %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, r, http.MethodGet, "/tenants?compliance_flag=SOX", nil)
	if bytes.Contains(rec.Body.Bytes(), []byte(`"acme"`)) {
		t.Fatalf("expected SOX filter to exclude acme: %s", rec.Body.String())
	}

	idPath := "/tenants/" + strconv.FormatUint(created.ID, 10)
	if rec := doJSON(t, r, http.MethodPut, idPath, gin.H{"rate_limit": 5, "name": "Acme Inc"}); rec.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d", rec.Code)
	}
	if rec := doJSON(t, r, http.MethodPost, idPath+"/deactivate", nil); rec.Code != http.StatusOK {
		t.Fatalf("deactivate: expected 200, got %d", rec.Code)
	}

	var row models.Tenant
	if errFind := conn.First(&row, created.ID).Error; errFind != nil {
		t.Fatalf("reload: %v", errFind)
	}
	if row.Name != "Acme Inc" || row.RateLimit != 5 || row.Status != models.TenantStatusInactive {
		t.Fatalf("unexpected stored tenant: %+v", row)
	}
	if dir.calls != 3 {
		t.Fatalf("expected directory refreshed after each write, got %d", dir.calls)
	}

	if rec := doJSON(t, r, http.MethodGet, "/tenants/999", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("missing tenant: expected 404, got %d", rec.Code)
	}
}

func TestPlanConfigHandlerCreateAndEffective(t *testing.T) {
	gin.SetMode(gin.TestMode)
	conn := openHandlerDB(t)
	cache := &recordingCache{}
	configs := NewPlanConfigHandler(conn, cache)
	overrides := NewPlanOverrideHandler(conn, cache)

	r := gin.New()
	r.POST("/plan-configs", configs.Create)
	r.GET("/plan-configs/effective", configs.Effective)
	r.POST("/plan-configs/:id/disable", configs.Disable)
	r.POST("/plan-overrides", overrides.Create)
	r.GET("/plan-overrides", overrides.List)

	rec := doJSON(t, r, http.MethodPost, "/plan-configs", gin.H{
		"plan_type":    "gmc",
		"country_code": "IN",
		"name":         "India default",
		"document": gin.H{
			"wallet_flex_integration": gin.H{"min_contribution": 0, "max_contribution": 10000},
			"payment_options":         gin.H{"methods": []string{"PREPAID_WALLET", "SALARY_DEDUCTION"}},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create config: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec := doJSON(t, r, http.MethodPost, "/plan-configs", gin.H{"plan_type": "GMC", "country_code": "IN", "document": gin.H{}}); rec.Code != http.StatusConflict {
		t.Fatalf("duplicate key: expected 409, got %d", rec.Code)
	}
	if rec := doJSON(t, r, http.MethodPost, "/plan-configs", gin.H{"plan_type": "NOPE", "country_code": "IN", "document": gin.H{}}); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad plan type: expected 400, got %d", rec.Code)
	}

	rec = doJSON(t, r, http.MethodPost, "/plan-overrides", gin.H{
		"plan_type":    "GMC",
		"country_code": "IN",
		"corporate_id": "acme",
		"patch":        gin.H{"wallet_flex_integration": gin.H{"max_contribution": 5000}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create override: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec := doJSON(t, r, http.MethodPost, "/plan-overrides", gin.H{"plan_type": "GMC", "country_code": "IN", "patch": gin.H{}}); rec.Code != http.StatusBadRequest {
		t.Fatalf("empty patch: expected 400, got %d", rec.Code)
	}
	rec = doJSON(t, r, http.MethodGet, "/plan-overrides?scope=tenant", nil)
	if !bytes.Contains(rec.Body.Bytes(), []byte(`"acme"`)) {
		t.Fatalf("expected tenant override listed: %s", rec.Body.String())
	}

	rec = doJSON(t, r, http.MethodGet, "/plan-configs/effective?plan_type=GMC&corporate_id=acme&country_code=IN", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("effective: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var preview struct {
		Effective planconfig.PlanConfiguration `json:"effective"`
	}
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &preview); errDecode != nil {
		t.Fatalf("decode preview: %v", errDecode)
	}
	minC, maxC := preview.Effective.WalletBounds()
	if !minC.Equal(decimal.Zero) || !maxC.Equal(decimal.NewFromInt(5000)) {
		t.Fatalf("expected tenant override applied, got [%s, %s]", minC, maxC)
	}

	rec = doJSON(t, r, http.MethodGet, "/plan-configs/effective?plan_type=GPA&country_code=IN", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("absent key: expected 404, got %d", rec.Code)
	}

	if rec := doJSON(t, r, http.MethodPost, "/plan-configs/1/disable", nil); rec.Code != http.StatusOK {
		t.Fatalf("disable: expected 200, got %d", rec.Code)
	}
	rec = doJSON(t, r, http.MethodGet, "/plan-configs/effective?plan_type=GMC&corporate_id=acme&country_code=IN", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("disabled config: expected 404, got %d", rec.Code)
	}

	if len(cache.planTypes) != 3 {
		t.Fatalf("expected cache invalidated on each write, got %v", cache.planTypes)
	}
	for _, pt := range cache.planTypes {
		if pt != planconfig.PlanTypeGMC {
			t.Fatalf("unexpected invalidated plan type %q", pt)
		}
	}
}

func TestEnrollmentHandlerListFilters(t *testing.T) {
	gin.SetMode(gin.TestMode)
	conn := openHandlerDB(t)
	rows := []models.Enrollment{
		{PublicID: "p1", TenantID: 1, CorporateID: "acme", EmployeeID: "e1", SessionID: "s1", PlanType: "GMC", CountryCode: "IN",
			Selection: datatypes.JSON(`{"payment":"PREPAID_WALLET"}`), Summary: datatypes.JSON(`{}`),
			Premium: decimal.NewNullDecimal(decimal.NewFromInt(1200))},
		{PublicID: "p2", TenantID: 1, CorporateID: "acme", EmployeeID: "e2", SessionID: "s2", PlanType: "GMC", CountryCode: "IN",
			Selection: datatypes.JSON(`{"payment":"SALARY_DEDUCTION"}`), Summary: datatypes.JSON(`{}`)},
		{PublicID: "p3", TenantID: 2, CorporateID: "globex", EmployeeID: "e3", SessionID: "s3", PlanType: "GPA", CountryCode: "SG",
			Selection: datatypes.JSON(`{"payment":"PREPAID_WALLET"}`), Summary: datatypes.JSON(`{}`)},
	}
	for i := range rows {
		if errCreate := conn.Create(&rows[i]).Error; errCreate != nil {
			t.Fatalf("seed: %v", errCreate)
		}
	}

	h := NewEnrollmentHandler(conn)
	r := gin.New()
	r.GET("/enrollments", h.List)
	r.GET("/enrollments/:id", h.Get)

	var listed struct {
		Enrollments []struct {
			PublicID string `json:"public_id"`
		} `json:"enrollments"`
		Total int64 `json:"total"`
	}
	rec := doJSON(t, r, http.MethodGet, "/enrollments?corporate_id=acme&payment=PREPAID_WALLET", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &listed); errDecode != nil {
		t.Fatalf("decode: %v", errDecode)
	}
	if listed.Total != 1 || len(listed.Enrollments) != 1 || listed.Enrollments[0].PublicID != "p1" {
		t.Fatalf("unexpected listing: %+v", listed)
	}

	rec = doJSON(t, r, http.MethodGet, "/enrollments?plan_type=bogus", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad plan type: expected 400, got %d", rec.Code)
	}

	rec = doJSON(t, r, http.MethodGet, "/enrollments/"+strconv.FormatUint(rows[0].ID, 10), nil)
	if rec.Code != http.StatusOK || !bytes.Contains(rec.Body.Bytes(), []byte(`"premium":1200`)) {
		t.Fatalf("get: %d %s", rec.Code, rec.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	gin.SetMode(gin.TestMode)
	conn := openHandlerDB(t)
	r := gin.New()
	r.GET("/healthz", NewHealthHandler(conn).Healthz)
	if rec := doJSON(t, r, http.MethodGet, "/healthz", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
