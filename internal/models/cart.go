package models

import (
	"time"
)

const MaxCartQuantity = 100

type CartItem struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"uniqueIndex:idx_cart_user_product;not null"`
	ProductID uint      `json:"product_id" gorm:"uniqueIndex:idx_cart_user_product;not null"`
	Quantity  int       `json:"quantity" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Product   Product   `json:"product" gorm:"foreignKey:ProductID"`
}

func (ci *CartItem) Subtotal() float64 {
	return ci.Product.Price * float64(ci.Quantity)
}

type CartResponse struct {
	Items        []CartItem `json:"items"`
	ItemCount    int        `json:"item_count"`
	Total        float64    `json:"total"`
	RestaurantID uint       `json:"restaurant_id,omitempty"`
}

// BuildCart sums the cart. RestaurantID is set only when every item comes
// from the same restaurant, which is what checkout requires.
func BuildCart(items []CartItem) CartResponse {
	resp := CartResponse{Items: items}
	if resp.Items == nil {
		resp.Items = []CartItem{}
	}

	var restaurantID uint
	mixed := false
	for i := range items {
		resp.ItemCount += items[i].Quantity
		resp.Total += items[i].Subtotal()

		rid := items[i].Product.RestaurantID
		if restaurantID == 0 {
			restaurantID = rid
		} else if rid != restaurantID {
			mixed = true
		}
	}
	if !mixed {
		resp.RestaurantID = restaurantID
	}
	return resp
}
