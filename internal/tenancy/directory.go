package tenancy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/corpbenefits/benefits-platform/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type snapshot struct {
	updatedAt time.Time
	bySlug    map[string]Tenant
}

// Directory caches the tenant table in an atomically swapped snapshot.
// Misses fall through to the database.
type Directory struct {
	db    *gorm.DB
	snap  atomic.Value
	nowFn func() time.Time
}

// NewDirectory constructs an empty directory over db.
func NewDirectory(db *gorm.DB) *Directory {
	d := &Directory{db: db, nowFn: time.Now}
	d.snap.Store(snapshot{bySlug: map[string]Tenant{}})
	return d
}

// Refresh reloads every tenant into a new snapshot.
func (d *Directory) Refresh(ctx context.Context) error {
	if d == nil || d.db == nil {
		return fmt.Errorf("tenancy: nil directory")
	}
	var rows []models.Tenant
	if errFind := d.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; errFind != nil {
		return fmt.Errorf("tenancy: load tenants: %w", errFind)
	}
	next := make(map[string]Tenant, len(rows))
	for _, row := range rows {
		tenant := FromModel(row)
		if tenant.Slug == "" {
			continue
		}
		next[tenant.Slug] = tenant
	}
	d.snap.Store(snapshot{updatedAt: d.nowFn().UTC(), bySlug: next})
	return nil
}

// Lookup returns the tenant for slug from the snapshot, querying the
// database on a miss.
func (d *Directory) Lookup(ctx context.Context, slug string) (Tenant, bool, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if d == nil || slug == "" {
		return Tenant{}, false, nil
	}
	if tenant, ok := d.load().bySlug[slug]; ok {
		return tenant, true, nil
	}
	if d.db == nil {
		return Tenant{}, false, nil
	}

	var row models.Tenant
	errFind := d.db.WithContext(ctx).Where("slug = ?", slug).Take(&row).Error
	if errors.Is(errFind, gorm.ErrRecordNotFound) {
		return Tenant{}, false, nil
	}
	if errFind != nil {
		return Tenant{}, false, fmt.Errorf("tenancy: find tenant: %w", errFind)
	}
	tenant := FromModel(row)
	d.put(tenant)
	return tenant, true, nil
}

// Invalidate refreshes the snapshot after an admin write, logging failures.
func (d *Directory) Invalidate(ctx context.Context) {
	if errRefresh := d.Refresh(ctx); errRefresh != nil {
		log.WithError(errRefresh).Warn("tenancy: refresh after write failed")
	}
}

// UpdatedAt returns when the snapshot was last rebuilt.
func (d *Directory) UpdatedAt() time.Time {
	return d.load().updatedAt
}

func (d *Directory) put(tenant Tenant) {
	cur := d.load()
	next := make(map[string]Tenant, len(cur.bySlug)+1)
	for k, v := range cur.bySlug {
		next[k] = v
	}
	next[tenant.Slug] = tenant
	d.snap.Store(snapshot{updatedAt: cur.updatedAt, bySlug: next})
}

func (d *Directory) load() snapshot {
	snap, ok := d.snap.Load().(snapshot)
	if !ok || snap.bySlug == nil {
		return snapshot{bySlug: map[string]Tenant{}}
	}
	return snap
}
