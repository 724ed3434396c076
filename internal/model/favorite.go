package model

import "time"

// FavoriteEntry marks a product as favorite for a user, with the same frozen
// snapshot fields as CartLine.
type FavoriteEntry struct {
	UserID    string `gorm:"primaryKey;uniqueIndex:idx_fav_user_product"`
	ProductID string `gorm:"primaryKey;uniqueIndex:idx_fav_user_product"`

	BrandName string
	Title     string
	Price     float64
	ImageURL  string

	UpdatedAt time.Time `gorm:"autoUpdateTime:false"`
}

func (FavoriteEntry) TableName() string { return "favorite_entries" }

func (f FavoriteEntry) Equal(o FavoriteEntry) bool {
	return f.UserID == o.UserID &&
		f.ProductID == o.ProductID &&
		f.BrandName == o.BrandName &&
		f.Title == o.Title &&
		f.Price == o.Price &&
		f.ImageURL == o.ImageURL &&
		f.UpdatedAt.Equal(o.UpdatedAt)
}

func (f FavoriteEntry) Document() Document {
	return Document{
		"id":         f.ProductID,
		"user_id":    f.UserID,
		"brand_name": f.BrandName,
		"title":      f.Title,
		"price":      f.Price,
		"image_url":  f.ImageURL,
		"updated_at": encodeTime(f.UpdatedAt),
	}
}

func FavoriteEntryFromDocument(userID string, d Document) FavoriteEntry {
	return FavoriteEntry{
		UserID:    userID,
		ProductID: docString(d, "id"),
		BrandName: docString(d, "brand_name"),
		Title:     docString(d, "title"),
		Price:     docFloat(d, "price"),
		ImageURL:  docString(d, "image_url"),
		UpdatedAt: docTime(d, "updated_at"),
	}
}
