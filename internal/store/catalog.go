package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"shopsync/internal/model"
)

// CatalogStore caches products, categories and brands. Rows arrive from the
// realtime listener or the bulk importer only.
type CatalogStore struct {
	s *Store
}

func NewCatalogStore(s *Store) *CatalogStore { return &CatalogStore{s: s} }

// ProductFilter combines the predicates a shopping surface may ask for. All
// set predicates are ANDed; the text query matches the search index OR the
// plain name.
type ProductFilter struct {
	ActiveOnly  bool
	Query       string
	CategoryIDs []string
	BrandIDs    []string
	MinPrice    *float64
	MaxPrice    *float64
}

func applyProductFilter(db *gorm.DB, f ProductFilter) *gorm.DB {
	q := db.Model(&model.Product{})
	if f.ActiveOnly {
		q = q.Where("is_active = ? AND category_is_active = ?", true, true)
	}
	if f.Query != "" {
		like := "%" + escapeLike(f.Query) + "%"
		q = q.Where("(search_index LIKE ? ESCAPE '\\' OR name LIKE ? ESCAPE '\\')", like, like)
	}
	if len(f.CategoryIDs) > 0 {
		q = q.Where("category_id IN ?", f.CategoryIDs)
	}
	if len(f.BrandIDs) > 0 {
		q = q.Where("brand_id IN ?", f.BrandIDs)
	}
	if f.MinPrice != nil {
		q = q.Where("price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		q = q.Where("price <= ?", *f.MaxPrice)
	}
	// Stable order: alphabetical with id tiebreak. The listing order carries
	// no business meaning, it only has to be deterministic.
	return q.Order("name ASC, id ASC")
}

func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}

// UpsertProducts inserts or overwrites the given products in one transaction.
// Field-identical incoming rows are skipped without touching the database, so
// a no-change upsert produces no live-query notification. The denormalized
// category flag is refreshed from the cached category rows.
func (c *CatalogStore) UpsertProducts(ctx context.Context, products []model.Product) (UpsertStats, error) {
	var stats UpsertStats
	if len(products) == 0 {
		return stats, nil
	}
	err := c.s.write(ctx, []string{model.Product{}.TableName()}, func(tx *gorm.DB) (bool, error) {
		ids := make([]string, 0, len(products))
		catIDs := make(map[string]bool)
		for _, p := range products {
			ids = append(ids, p.ID)
			if p.CategoryID != "" {
				catIDs[p.CategoryID] = true
			}
		}

		// One batched lookup for the whole incoming key set.
		var existing []model.Product
		if err := tx.Where("id IN ?", ids).Find(&existing).Error; err != nil {
			return false, fmt.Errorf("load existing products: %w", err)
		}
		current := make(map[string]model.Product, len(existing))
		for _, p := range existing {
			current[p.ID] = p
		}

		catActive, err := categoryActivity(tx, keys(catIDs))
		if err != nil {
			return false, err
		}

		for _, p := range products {
			p.RebuildSearchIndex()
			if active, ok := catActive[p.CategoryID]; ok {
				p.CategoryIsActive = active
			} else {
				// Category not cached yet; do not hide the product.
				p.CategoryIsActive = true
			}
			old, ok := current[p.ID]
			switch {
			case !ok:
				if err := tx.Create(&p).Error; err != nil {
					return false, fmt.Errorf("insert product %s: %w", p.ID, err)
				}
				stats.Inserted++
			case old.Equal(p):
				stats.Skipped++
			default:
				if err := tx.Save(&p).Error; err != nil {
					return false, fmt.Errorf("update product %s: %w", p.ID, err)
				}
				stats.Updated++
			}
		}
		return stats.Changed(), nil
	})
	if err != nil {
		return UpsertStats{}, err
	}
	c.s.log.Debugw("products upsert", "inserted", stats.Inserted, "updated", stats.Updated, "skipped", stats.Skipped)
	return stats, nil
}

// UpsertCategories upserts category rows and, in the same logical operation,
// recomputes the cached category flag on every product referencing a written
// category. Only products whose cached flag actually differs are rewritten.
func (c *CatalogStore) UpsertCategories(ctx context.Context, categories []model.Category) (UpsertStats, error) {
	var stats UpsertStats
	if len(categories) == 0 {
		return stats, nil
	}
	productsTouched := false
	err := c.s.write(ctx, []string{model.Category{}.TableName(), model.Product{}.TableName()}, func(tx *gorm.DB) (bool, error) {
		ids := make([]string, 0, len(categories))
		for _, cat := range categories {
			ids = append(ids, cat.ID)
		}
		var existing []model.Category
		if err := tx.Where("id IN ?", ids).Find(&existing).Error; err != nil {
			return false, fmt.Errorf("load existing categories: %w", err)
		}
		current := make(map[string]model.Category, len(existing))
		for _, cat := range existing {
			current[cat.ID] = cat
		}

		for _, cat := range categories {
			old, ok := current[cat.ID]
			switch {
			case !ok:
				if err := tx.Create(&cat).Error; err != nil {
					return false, fmt.Errorf("insert category %s: %w", cat.ID, err)
				}
				stats.Inserted++
			case old.Equal(cat):
				stats.Skipped++
				continue
			default:
				if err := tx.Save(&cat).Error; err != nil {
					return false, fmt.Errorf("update category %s: %w", cat.ID, err)
				}
				stats.Updated++
			}
			// Propagate the activity flag to referencing products.
			res := tx.Model(&model.Product{}).
				Where("category_id = ? AND category_is_active <> ?", cat.ID, cat.IsActive).
				Update("category_is_active", cat.IsActive)
			if res.Error != nil {
				return false, fmt.Errorf("propagate category activity %s: %w", cat.ID, res.Error)
			}
			if res.RowsAffected > 0 {
				productsTouched = true
			}
		}
		return stats.Changed() || productsTouched, nil
	})
	if err != nil {
		return UpsertStats{}, err
	}
	c.s.log.Debugw("categories upsert", "inserted", stats.Inserted, "updated", stats.Updated, "skipped", stats.Skipped)
	return stats, nil
}

// UpsertBrands inserts or overwrites brand rows, skipping identical ones.
func (c *CatalogStore) UpsertBrands(ctx context.Context, brands []model.Brand) (UpsertStats, error) {
	var stats UpsertStats
	if len(brands) == 0 {
		return stats, nil
	}
	err := c.s.write(ctx, []string{model.Brand{}.TableName()}, func(tx *gorm.DB) (bool, error) {
		ids := make([]string, 0, len(brands))
		for _, b := range brands {
			ids = append(ids, b.ID)
		}
		var existing []model.Brand
		if err := tx.Where("id IN ?", ids).Find(&existing).Error; err != nil {
			return false, fmt.Errorf("load existing brands: %w", err)
		}
		current := make(map[string]model.Brand, len(existing))
		for _, b := range existing {
			current[b.ID] = b
		}
		for _, b := range brands {
			old, ok := current[b.ID]
			switch {
			case !ok:
				if err := tx.Create(&b).Error; err != nil {
					return false, fmt.Errorf("insert brand %s: %w", b.ID, err)
				}
				stats.Inserted++
			case old.Equal(b):
				stats.Skipped++
			default:
				if err := tx.Save(&b).Error; err != nil {
					return false, fmt.Errorf("update brand %s: %w", b.ID, err)
				}
				stats.Updated++
			}
		}
		return stats.Changed(), nil
	})
	if err != nil {
		return UpsertStats{}, err
	}
	c.s.log.Debugw("brands upsert", "inserted", stats.Inserted, "updated", stats.Updated, "skipped", stats.Skipped)
	return stats, nil
}

// Products runs a one-shot filtered query.
func (c *CatalogStore) Products(ctx context.Context, f ProductFilter) ([]model.Product, error) {
	var out []model.Product
	if err := applyProductFilter(c.s.db.WithContext(ctx), f).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ObserveProducts opens a live query over the filter. The subscription emits
// the current match set immediately and re-emits when a committed write
// changes it.
func (c *CatalogStore) ObserveProducts(f ProductFilter) (*Subscription[model.Product], error) {
	return observe(c.s,
		[]string{model.Product{}.TableName()},
		func() ([]model.Product, error) {
			var out []model.Product
			if err := applyProductFilter(c.s.db, f).Find(&out).Error; err != nil {
				return nil, err
			}
			return out, nil
		},
		func(a, b []model.Product) bool { return sliceEqual(a, b, model.Product.Equal) },
	)
}

// Categories returns all cached categories, active first by name.
func (c *CatalogStore) Categories(ctx context.Context, activeOnly bool) ([]model.Category, error) {
	q := c.s.db.WithContext(ctx).Model(&model.Category{})
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var out []model.Category
	if err := q.Order("name ASC, id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ObserveCategories opens a live query over the category table.
func (c *CatalogStore) ObserveCategories(activeOnly bool) (*Subscription[model.Category], error) {
	return observe(c.s,
		[]string{model.Category{}.TableName()},
		func() ([]model.Category, error) { return c.Categories(context.Background(), activeOnly) },
		func(a, b []model.Category) bool { return sliceEqual(a, b, model.Category.Equal) },
	)
}

// Brands returns all cached brands.
func (c *CatalogStore) Brands(ctx context.Context, activeOnly bool) ([]model.Brand, error) {
	q := c.s.db.WithContext(ctx).Model(&model.Brand{})
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var out []model.Brand
	if err := q.Order("name ASC, id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ObserveBrands opens a live query over the brand table.
func (c *CatalogStore) ObserveBrands(activeOnly bool) (*Subscription[model.Brand], error) {
	return observe(c.s,
		[]string{model.Brand{}.TableName()},
		func() ([]model.Brand, error) { return c.Brands(context.Background(), activeOnly) },
		func(a, b []model.Brand) bool { return sliceEqual(a, b, model.Brand.Equal) },
	)
}

// Product returns a single product by id, or gorm.ErrRecordNotFound.
func (c *CatalogStore) Product(ctx context.Context, id string) (*model.Product, error) {
	var p model.Product
	if err := c.s.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// Brand returns a single brand by id, or gorm.ErrRecordNotFound.
func (c *CatalogStore) Brand(ctx context.Context, id string) (*model.Brand, error) {
	var b model.Brand
	if err := c.s.db.WithContext(ctx).Where("id = ?", id).First(&b).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func categoryActivity(tx *gorm.DB, ids []string) (map[string]bool, error) {
	out := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var cats []model.Category
	if err := tx.Where("id IN ?", ids).Find(&cats).Error; err != nil {
		return nil, fmt.Errorf("load categories for activity: %w", err)
	}
	for _, c := range cats {
		out[c.ID] = c.IsActive
	}
	return out, nil
}

func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
