package model

import (
	"strings"
	"time"
)

// Product is a catalog item cached locally. The authoritative copy lives in the
// remote "products" collection; rows here are written only by the realtime
// listener or the bulk importer, never by user action.
type Product struct {
	ID         string `gorm:"primaryKey"`
	Name       string `gorm:"not null;index"`
	CategoryID string `gorm:"index"`
	BrandID    string `gorm:"index"`
	Price      float64
	ImageURL   string
	IsActive   bool `gorm:"index"`

	// CategoryIsActive caches the referenced category's IsActive flag so a
	// single-table query can serve shopping surfaces. Kept consistent by the
	// category upsert path.
	CategoryIsActive bool

	Keywords []string `gorm:"serializer:json"`

	// SearchIndex is derived from Name+Keywords and recomputed on every write.
	SearchIndex string `gorm:"index"`

	// Timestamps mirror the remote document, never the local clock.
	CreatedAt time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false"`
}

func (Product) TableName() string { return "products" }

// RebuildSearchIndex derives the search index from the current name and
// keywords. Must be called before every persist of a Product.
func (p *Product) RebuildSearchIndex() {
	parts := make([]string, 0, len(p.Keywords)+1)
	parts = append(parts, strings.ToLower(p.Name))
	for _, kw := range p.Keywords {
		parts = append(parts, strings.ToLower(kw))
	}
	p.SearchIndex = strings.Join(parts, " ")
}

// Equal reports full field-for-field equality, used by the upsert skip check.
func (p Product) Equal(o Product) bool {
	return p.ID == o.ID &&
		p.Name == o.Name &&
		p.CategoryID == o.CategoryID &&
		p.BrandID == o.BrandID &&
		p.Price == o.Price &&
		p.ImageURL == o.ImageURL &&
		p.IsActive == o.IsActive &&
		p.CategoryIsActive == o.CategoryIsActive &&
		stringsEqual(p.Keywords, o.Keywords) &&
		p.SearchIndex == o.SearchIndex &&
		p.CreatedAt.Equal(o.CreatedAt) &&
		p.UpdatedAt.Equal(o.UpdatedAt)
}

// Document encodes the product for the remote collection.
func (p Product) Document() Document {
	return Document{
		"id":          p.ID,
		"name":        p.Name,
		"category_id": p.CategoryID,
		"brand_id":    p.BrandID,
		"price":       p.Price,
		"image_url":   p.ImageURL,
		"is_active":   p.IsActive,
		"keywords":    append([]string(nil), p.Keywords...),
		"created_at":  encodeTime(p.CreatedAt),
		"updated_at":  encodeTime(p.UpdatedAt),
	}
}

// ProductFromDocument decodes a remote document into a Product. The search
// index is rebuilt from the decoded fields, never taken from the document.
func ProductFromDocument(d Document) Product {
	p := Product{
		ID:         docString(d, "id"),
		Name:       docString(d, "name"),
		CategoryID: docString(d, "category_id"),
		BrandID:    docString(d, "brand_id"),
		Price:      docFloat(d, "price"),
		ImageURL:   docString(d, "image_url"),
		IsActive:   docBool(d, "is_active"),
		Keywords:   docStrings(d, "keywords"),
		CreatedAt:  docTime(d, "created_at"),
		UpdatedAt:  docTime(d, "updated_at"),
	}
	p.RebuildSearchIndex()
	return p
}
