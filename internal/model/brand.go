package model

import "time"

type Brand struct {
	ID       string `gorm:"primaryKey"`
	Name     string `gorm:"not null"`
	ImageURL string
	IsActive bool

	CreatedAt time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false"`
}

func (Brand) TableName() string { return "brands" }

func (b Brand) Equal(o Brand) bool {
	return b.ID == o.ID &&
		b.Name == o.Name &&
		b.ImageURL == o.ImageURL &&
		b.IsActive == o.IsActive &&
		b.CreatedAt.Equal(o.CreatedAt) &&
		b.UpdatedAt.Equal(o.UpdatedAt)
}

func (b Brand) Document() Document {
	return Document{
		"id":         b.ID,
		"name":       b.Name,
		"image_url":  b.ImageURL,
		"is_active":  b.IsActive,
		"created_at": encodeTime(b.CreatedAt),
		"updated_at": encodeTime(b.UpdatedAt),
	}
}

func BrandFromDocument(d Document) Brand {
	return Brand{
		ID:        docString(d, "id"),
		Name:      docString(d, "name"),
		ImageURL:  docString(d, "image_url"),
		IsActive:  docBool(d, "is_active"),
		CreatedAt: docTime(d, "created_at"),
		UpdatedAt: docTime(d, "updated_at"),
	}
}
