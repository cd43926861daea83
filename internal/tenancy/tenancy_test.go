package tenancy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/corpbenefits/benefits-platform/internal/db"
	"github.com/corpbenefits/benefits-platform/internal/models"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func TestCorporateIDFromHost(t *testing.T) {
	cases := []struct {
		host string
		root string
		want string
	}{
		{"acme.benefits.example.com", "benefits.example.com", "acme"},
		{"ACME.benefits.example.com:8443", "benefits.example.com", "acme"},
		{"eu.acme.benefits.example.com", "benefits.example.com", "acme"},
		{"benefits.example.com", "benefits.example.com", ""},
		{"www.benefits.example.com", "benefits.example.com", ""},
		{"acme.localhost:8318", "localhost", "acme"},
		{"localhost:8318", "localhost", ""},
		{"127.0.0.1:8318", "localhost", ""},
		{"acme.other.com", "benefits.example.com", ""},
	}
	for _, tc := range cases {
		if got := CorporateIDFromHost(tc.host, tc.root); got != tc.want {
			t.Fatalf("CorporateIDFromHost(%q, %q) = %q, want %q", tc.host, tc.root, got, tc.want)
		}
	}
}

func openDirectoryDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := db.Open("file:" + filepath.Join(t.TempDir(), "tenancy.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(conn) })
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	tenants := []models.Tenant{
		{Slug: "acme", Name: "Acme", CountryCode: "IN", ComplianceFlags: datatypes.JSON(`["GDPR"]`), Status: models.TenantStatusActive, RateLimit: 3},
		{Slug: "globex", Name: "Globex", CountryCode: "US", Status: models.TenantStatusInactive},
	}
	for i := range tenants {
		if errCreate := conn.Create(&tenants[i]).Error; errCreate != nil {
			t.Fatalf("seed tenants: %v", errCreate)
		}
	}
	return conn
}

func TestDirectoryRefreshAndLookup(t *testing.T) {
	conn := openDirectoryDB(t)
	dir := NewDirectory(conn)
	if err := dir.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	tenant, ok, err := dir.Lookup(context.Background(), "ACME")
	if err != nil || !ok {
		t.Fatalf("lookup acme: ok=%v err=%v", ok, err)
	}
	if tenant.CountryCode != "IN" || tenant.RateLimit != 3 || len(tenant.ComplianceFlags) != 1 || tenant.ComplianceFlags[0] != "GDPR" {
		t.Fatalf("unexpected tenant: %+v", tenant)
	}

	late := models.Tenant{Slug: "initech", Name: "Initech", Status: models.TenantStatusActive}
	if errCreate := conn.Create(&late).Error; errCreate != nil {
		t.Fatalf("create tenant: %v", errCreate)
	}
	if _, ok, err := dir.Lookup(context.Background(), "initech"); err != nil || !ok {
		t.Fatalf("expected miss to fall through to the database, ok=%v err=%v", ok, err)
	}
	if _, ok, err := dir.Lookup(context.Background(), "umbrella"); err != nil || ok {
		t.Fatalf("expected unknown tenant, ok=%v err=%v", ok, err)
	}
}

func TestMiddlewareResolvesTenantOnce(t *testing.T) {
	gin.SetMode(gin.TestMode)
	dir := NewDirectory(openDirectoryDB(t))

	r := gin.New()
	r.Use(Middleware(dir, "benefits.example.com", ""))
	r.GET("/whoami", func(c *gin.Context) {
		tenant, ok := FromContext(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, tenant.Slug)
	})

	cases := []struct {
		host   string
		header string
		status int
		body   string
	}{
		{"acme.benefits.example.com", "", http.StatusOK, "acme"},
		{"benefits.example.com", "acme", http.StatusOK, "acme"},
		{"globex.benefits.example.com", "", http.StatusForbidden, ""},
		{"umbrella.benefits.example.com", "", http.StatusNotFound, ""},
		{"benefits.example.com", "", http.StatusBadRequest, ""},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Host = tc.host
		if tc.header != "" {
			req.Header.Set(HeaderTenant, tc.header)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != tc.status {
			t.Fatalf("host=%s header=%s: expected %d, got %d", tc.host, tc.header, tc.status, rec.Code)
		}
		if tc.body != "" && rec.Body.String() != tc.body {
			t.Fatalf("host=%s: expected body %q, got %q", tc.host, tc.body, rec.Body.String())
		}
	}
}

func TestMiddlewareDefaultTenant(t *testing.T) {
	gin.SetMode(gin.TestMode)
	dir := NewDirectory(openDirectoryDB(t))

	r := gin.New()
	r.Use(Middleware(dir, "benefits.example.com", "acme"))
	r.GET("/whoami", func(c *gin.Context) {
		tenant, _ := FromContext(c)
		c.String(http.StatusOK, tenant.Slug)
	})

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Host = "localhost:8318"
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "acme" {
		t.Fatalf("expected default tenant, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestFromModelLogsInvalidComplianceFlags(t *testing.T) {
	hook := logtest.NewGlobal()
	t.Cleanup(func() { log.StandardLogger().ReplaceHooks(make(log.LevelHooks)) })

	tenant := FromModel(models.Tenant{Slug: "acme", ComplianceFlags: datatypes.JSON(`{"not":"an array"}`)})
	if len(tenant.ComplianceFlags) != 0 {
		t.Fatalf("expected no flags, got %v", tenant.ComplianceFlags)
	}
	entry := hook.LastEntry()
	if entry == nil || entry.Level != log.WarnLevel {
		t.Fatalf("expected a warning for invalid flags, got %+v", entry)
	}
	if entry.Data["tenant"] != "acme" {
		t.Fatalf("expected tenant field acme, got %v", entry.Data["tenant"])
	}
}
