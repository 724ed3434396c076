package model

import "time"

// OrderStatus is the delivery state of an order.
type OrderStatus string

const (
	OrderAssembling OrderStatus = "assembling"
	OrderInTransit  OrderStatus = "in_transit"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

// Valid reports whether s is one of the known statuses.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderAssembling, OrderInTransit, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

// Order is a placed order. Lines are owned exclusively by the order: writing an
// order replaces its whole line list in the same transaction.
type Order struct {
	ID     string `gorm:"primaryKey"`
	UserID string `gorm:"index"`

	Status         OrderStatus `gorm:"not null"`
	ReceiveAddress string
	PaymentMethod  string
	Comment        string
	Phone          string

	Lines []OrderLine `gorm:"foreignKey:OrderID;references:ID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false"`
}

func (Order) TableName() string { return "orders" }

// OrderLine is one position of an order, with the catalog snapshot frozen at
// checkout time.
type OrderLine struct {
	OrderID  string `gorm:"primaryKey"`
	Position int    `gorm:"primaryKey;autoIncrement:false"`

	ProductID string
	BrandName string
	Title     string
	Price     float64
	ImageURL  string
	Quantity  int
}

func (OrderLine) TableName() string { return "order_lines" }

func (l OrderLine) Equal(o OrderLine) bool {
	return l.OrderID == o.OrderID &&
		l.Position == o.Position &&
		l.ProductID == o.ProductID &&
		l.BrandName == o.BrandName &&
		l.Title == o.Title &&
		l.Price == o.Price &&
		l.ImageURL == o.ImageURL &&
		l.Quantity == o.Quantity
}

func (o Order) Equal(other Order) bool {
	if o.ID != other.ID ||
		o.UserID != other.UserID ||
		o.Status != other.Status ||
		o.ReceiveAddress != other.ReceiveAddress ||
		o.PaymentMethod != other.PaymentMethod ||
		o.Comment != other.Comment ||
		o.Phone != other.Phone ||
		!o.CreatedAt.Equal(other.CreatedAt) ||
		!o.UpdatedAt.Equal(other.UpdatedAt) ||
		len(o.Lines) != len(other.Lines) {
		return false
	}
	for i := range o.Lines {
		if !o.Lines[i].Equal(other.Lines[i]) {
			return false
		}
	}
	return true
}

func (o Order) Document() Document {
	lines := make([]any, 0, len(o.Lines))
	for _, l := range o.Lines {
		lines = append(lines, map[string]any{
			"product_id": l.ProductID,
			"brand_name": l.BrandName,
			"title":      l.Title,
			"price":      l.Price,
			"image_url":  l.ImageURL,
			"quantity":   l.Quantity,
		})
	}
	return Document{
		"id":              o.ID,
		"user_id":         o.UserID,
		"status":          string(o.Status),
		"receive_address": o.ReceiveAddress,
		"payment_method":  o.PaymentMethod,
		"comment":         o.Comment,
		"phone":           o.Phone,
		"lines":           lines,
		"created_at":      encodeTime(o.CreatedAt),
		"updated_at":      encodeTime(o.UpdatedAt),
	}
}

func OrderFromDocument(userID string, d Document) Order {
	o := Order{
		ID:             docString(d, "id"),
		UserID:         userID,
		Status:         OrderStatus(docString(d, "status")),
		ReceiveAddress: docString(d, "receive_address"),
		PaymentMethod:  docString(d, "payment_method"),
		Comment:        docString(d, "comment"),
		Phone:          docString(d, "phone"),
		CreatedAt:      docTime(d, "created_at"),
		UpdatedAt:      docTime(d, "updated_at"),
	}
	raw, _ := d["lines"].([]any)
	for i, e := range raw {
		ld, ok := e.(map[string]any)
		if !ok {
			continue
		}
		o.Lines = append(o.Lines, OrderLine{
			OrderID:   o.ID,
			Position:  i,
			ProductID: docString(ld, "product_id"),
			BrandName: docString(ld, "brand_name"),
			Title:     docString(ld, "title"),
			Price:     docFloat(ld, "price"),
			ImageURL:  docString(ld, "image_url"),
			Quantity:  docInt(ld, "quantity"),
		})
	}
	return o
}
