package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

type Category struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Name        string    `json:"name" gorm:"uniqueIndex;not null;type:varchar(50)"`
	Description string    `json:"description" gorm:"type:varchar(500);default:''"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Product struct {
	ID           uint       `json:"id" gorm:"primaryKey"`
	RestaurantID uint       `json:"restaurant_id" gorm:"index;not null"`
	CategoryID   *uint      `json:"category_id,omitempty" gorm:"index"`
	Name         string     `json:"name" gorm:"not null;type:varchar(100)"`
	Description  string     `json:"description" gorm:"type:varchar(500);default:''"`
	Price        float64    `json:"price" gorm:"not null"`
	ImageURL     string     `json:"image_url" gorm:"type:text;default:''"`
	Stock        int        `json:"stock" gorm:"not null;default:0"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	Restaurant   Restaurant `json:"-" gorm:"foreignKey:RestaurantID"`
	Category     *Category  `json:"category,omitempty" gorm:"foreignKey:CategoryID"`
}

// AfterFind normalizes relative upload paths the same way they are served.
func (p *Product) AfterFind(tx *gorm.DB) error {
	if p.ImageURL == "" || strings.HasPrefix(p.ImageURL, "http") {
		return nil
	}

	if p.ImageURL[0] != '/' {
		p.ImageURL = "/" + p.ImageURL
	}

	return nil
}
