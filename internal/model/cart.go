package model

import "time"

// CartLine is one product in a user's cart. BrandName/Title/Price/ImageURL are
// snapshots frozen at the moment the product was added; they deliberately do
// not track later catalog changes (price-at-add-time semantics).
type CartLine struct {
	UserID    string `gorm:"primaryKey;uniqueIndex:idx_cart_user_product"`
	ProductID string `gorm:"primaryKey;uniqueIndex:idx_cart_user_product"`

	BrandName string
	Title     string
	Price     float64
	ImageURL  string

	Quantity  int       `gorm:"not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false"`
}

func (CartLine) TableName() string { return "cart_lines" }

func (l CartLine) Equal(o CartLine) bool {
	return l.UserID == o.UserID &&
		l.ProductID == o.ProductID &&
		l.BrandName == o.BrandName &&
		l.Title == o.Title &&
		l.Price == o.Price &&
		l.ImageURL == o.ImageURL &&
		l.Quantity == o.Quantity &&
		l.UpdatedAt.Equal(o.UpdatedAt)
}

func (l CartLine) Document() Document {
	return Document{
		"id":         l.ProductID,
		"user_id":    l.UserID,
		"brand_name": l.BrandName,
		"title":      l.Title,
		"price":      l.Price,
		"image_url":  l.ImageURL,
		"quantity":   l.Quantity,
		"updated_at": encodeTime(l.UpdatedAt),
	}
}

func CartLineFromDocument(userID string, d Document) CartLine {
	return CartLine{
		UserID:    userID,
		ProductID: docString(d, "id"),
		BrandName: docString(d, "brand_name"),
		Title:     docString(d, "title"),
		Price:     docFloat(d, "price"),
		ImageURL:  docString(d, "image_url"),
		Quantity:  docInt(d, "quantity"),
		UpdatedAt: docTime(d, "updated_at"),
	}
}

// SnapshotFromProduct freezes the display fields of p into a cart line.
func SnapshotFromProduct(userID string, p Product, brandName string, quantity int, now time.Time) CartLine {
	return CartLine{
		UserID:    userID,
		ProductID: p.ID,
		BrandName: brandName,
		Title:     p.Name,
		Price:     p.Price,
		ImageURL:  p.ImageURL,
		Quantity:  quantity,
		UpdatedAt: now.UTC(),
	}
}
