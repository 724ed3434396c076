package model

import "time"

// UserProfile is the single profile record of a user.
type UserProfile struct {
	UserID string `gorm:"primaryKey"`
	Name   string
	Email  string
	Phone  string

	UpdatedAt time.Time `gorm:"autoUpdateTime:false"`
}

func (UserProfile) TableName() string { return "user_profiles" }

func (p UserProfile) Equal(o UserProfile) bool {
	return p.UserID == o.UserID &&
		p.Name == o.Name &&
		p.Email == o.Email &&
		p.Phone == o.Phone &&
		p.UpdatedAt.Equal(o.UpdatedAt)
}

func (p UserProfile) Document() Document {
	return Document{
		"id":         p.UserID,
		"name":       p.Name,
		"email":      p.Email,
		"phone":      p.Phone,
		"updated_at": encodeTime(p.UpdatedAt),
	}
}

func UserProfileFromDocument(userID string, d Document) UserProfile {
	return UserProfile{
		UserID:    userID,
		Name:      docString(d, "name"),
		Email:     docString(d, "email"),
		Phone:     docString(d, "phone"),
		UpdatedAt: docTime(d, "updated_at"),
	}
}
