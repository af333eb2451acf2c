package models

import (
	"time"
)

type SpeedClass string

const (
	SpeedFast   SpeedClass = "fast"
	SpeedNormal SpeedClass = "normal"
	SpeedSlow   SpeedClass = "slow"
)

// Restaurant belongs to a user with the restaurante role.
// Coordinates are fixed and expected to be populated at registration or seed time.
type Restaurant struct {
	ID         uint       `json:"id" gorm:"primaryKey"`
	OwnerID    uint       `json:"owner_id" gorm:"uniqueIndex;not null"`
	Name       string     `json:"name" gorm:"not null;type:varchar(100)"`
	Address    string     `json:"address" gorm:"type:varchar(200)"`
	Phone      string     `json:"phone" gorm:"type:varchar(20)"`
	Lat        float64    `json:"lat" gorm:"not null"`
	Lng        float64    `json:"lng" gorm:"not null"`
	SpeedClass SpeedClass `json:"speed_class" gorm:"type:varchar(10);default:'normal'"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	Owner      User       `json:"-" gorm:"foreignKey:OwnerID"`
	Products   []Product  `json:"-" gorm:"foreignKey:RestaurantID"`
}
