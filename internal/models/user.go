package models

import (
	"time"
)

type Role string

const (
	RoleCustomer   Role = "cliente"
	RoleRestaurant Role = "restaurante"
	RoleCourier    Role = "repartidor"
	RoleAdmin      Role = "administrador"
)

type UserStatus string

const (
	UserStatusActive   UserStatus = "activo"
	UserStatusInactive UserStatus = "inactivo"
)

type User struct {
	ID           uint       `json:"id" gorm:"primaryKey;column:id;autoIncrement"`
	Name         string     `json:"name" gorm:"column:name;not null;type:varchar(100)"`
	Email        string     `json:"email" gorm:"column:email;uniqueIndex;not null;type:varchar(100)"`
	PasswordHash string     `json:"-" gorm:"column:password_hash;not null;type:text"`
	Address      string     `json:"address" gorm:"column:address;type:varchar(200)"`
	Phone        string     `json:"phone" gorm:"column:phone;type:varchar(20)"`
	Role         Role       `json:"role" gorm:"column:role;default:'cliente';type:varchar(20)"`
	Status       UserStatus `json:"status" gorm:"column:status;default:'activo';type:varchar(10)"`
	Lat          *float64   `json:"lat,omitempty" gorm:"column:lat"`
	Lng          *float64   `json:"lng,omitempty" gorm:"column:lng"`
	CreatedAt    time.Time  `json:"created_at" gorm:"column:created_at;autoCreateTime;type:timestamp with time zone"`
	UpdatedAt    time.Time  `json:"updated_at" gorm:"column:updated_at;autoUpdateTime;type:timestamp with time zone"`
}

type UserResponse struct {
	ID        uint       `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Address   string     `json:"address"`
	Phone     string     `json:"phone"`
	Role      Role       `json:"role"`
	Status    UserStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
}

// ToResponse strips credentials and internal fields.
func (u *User) ToResponse() UserResponse {
	return UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Address:   u.Address,
		Phone:     u.Phone,
		Role:      u.Role,
		Status:    u.Status,
		CreatedAt: u.CreatedAt,
	}
}

func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}

// HasLocation reports whether both coordinates have been stored.
func (u *User) HasLocation() bool {
	return u.Lat != nil && u.Lng != nil
}
