package model

import "time"

// Category groups products; BrandIDs lists the brands sold under it.
type Category struct {
	ID       string `gorm:"primaryKey"`
	Name     string `gorm:"not null"`
	ImageURL string
	BrandIDs []string `gorm:"serializer:json"`
	IsActive bool

	CreatedAt time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false"`
}

func (Category) TableName() string { return "categories" }

func (c Category) Equal(o Category) bool {
	return c.ID == o.ID &&
		c.Name == o.Name &&
		c.ImageURL == o.ImageURL &&
		stringsEqual(c.BrandIDs, o.BrandIDs) &&
		c.IsActive == o.IsActive &&
		c.CreatedAt.Equal(o.CreatedAt) &&
		c.UpdatedAt.Equal(o.UpdatedAt)
}

func (c Category) Document() Document {
	return Document{
		"id":         c.ID,
		"name":       c.Name,
		"image_url":  c.ImageURL,
		"brand_ids":  append([]string(nil), c.BrandIDs...),
		"is_active":  c.IsActive,
		"created_at": encodeTime(c.CreatedAt),
		"updated_at": encodeTime(c.UpdatedAt),
	}
}

func CategoryFromDocument(d Document) Category {
	return Category{
		ID:        docString(d, "id"),
		Name:      docString(d, "name"),
		ImageURL:  docString(d, "image_url"),
		BrandIDs:  docStrings(d, "brand_ids"),
		IsActive:  docBool(d, "is_active"),
		CreatedAt: docTime(d, "created_at"),
		UpdatedAt: docTime(d, "updated_at"),
	}
}
