package handlers

import (
	"errors"
	"testing"
	"time"

	"domiflash/internal/models"
)

func product(id, restaurantID uint, price float64, stock int) models.Product {
	return models.Product{ID: id, RestaurantID: restaurantID, Name: "Producto", Price: price, Stock: stock}
}

func TestCheckCartAdd(t *testing.T) {
	cart := []models.CartItem{{ProductID: 1, Quantity: 2, Product: product(1, 7, 1000, 10)}}

	tests := []struct {
		name    string
		product models.Product
		inCart  int
		qty     int
		want    error
	}{
		{"same restaurant", product(2, 7, 500, 10), 0, 3, nil},
		{"existing line", product(1, 7, 1000, 10), 2, 3, nil},
		{"other restaurant", product(3, 8, 500, 10), 0, 1, ErrMixedRestaurants},
		{"above limit", product(2, 7, 500, 500), 60, 41, ErrQuantityLimit},
		{"at limit", product(2, 7, 500, 500), 60, 40, nil},
		{"no stock", product(2, 7, 500, 2), 0, 3, ErrOutOfStock},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CheckCartAdd(cart, &tt.product, tt.inCart, tt.qty)
			if !errors.Is(got, tt.want) {
				t.Fatalf("CheckCartAdd = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCheckCartAddEmptyCart(t *testing.T) {
	p := product(1, 3, 100, 5)
	if err := CheckCartAdd(nil, &p, 0, 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBuildOrder(t *testing.T) {
	cart := []models.CartItem{
		{ProductID: 1, Quantity: 2, Product: product(1, 4, 12500.5, 10)},
		{ProductID: 2, Quantity: 1, Product: product(2, 4, 3000, 10)},
	}

	order, err := BuildOrder(9, cart, models.PaymentNequi, "  Calle 10 # 5-20  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.UserID != 9 || order.RestaurantID != 4 {
		t.Fatalf("order owner/restaurant = %d/%d, want 9/4", order.UserID, order.RestaurantID)
	}
	if order.Status != models.OrderStatusPending {
		t.Errorf("Status = %q, want pendiente", order.Status)
	}
	if order.Total != 28001 {
		t.Errorf("Total = %v, want 28001", order.Total)
	}
	if order.DeliveryAddress != "Calle 10 # 5-20" {
		t.Errorf("DeliveryAddress = %q", order.DeliveryAddress)
	}
	if len(order.Items) != 2 {
		t.Fatalf("len(Items) = %d, want 2", len(order.Items))
	}
	if order.Items[0].UnitPrice != 12500.5 || order.Items[0].Quantity != 2 || order.Items[0].Name != "Producto" {
		t.Errorf("first item snapshot = %+v", order.Items[0])
	}
	if order.HasEstimate() {
		t.Error("new order should not carry an estimate")
	}
}

func TestBuildOrderErrors(t *testing.T) {
	tests := []struct {
		name string
		cart []models.CartItem
		want error
	}{
		{"empty", nil, ErrEmptyCart},
		{"mixed", []models.CartItem{
			{ProductID: 1, Quantity: 1, Product: product(1, 4, 100, 10)},
			{ProductID: 2, Quantity: 1, Product: product(2, 5, 100, 10)},
		}, ErrMixedRestaurants},
		{"stock", []models.CartItem{
			{ProductID: 1, Quantity: 11, Product: product(1, 4, 100, 10)},
		}, ErrOutOfStock},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := BuildOrder(1, tt.cart, models.PaymentCash, "Calle 1"); !errors.Is(err, tt.want) {
				t.Fatalf("BuildOrder error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestAuthorizeStatusChange(t *testing.T) {
	courier := uint(30)
	other := uint(31)

	tests := []struct {
		name   string
		order  models.Order
		to     models.OrderStatus
		role   models.Role
		userID uint
		want   error
	}{
		{"restaurant accepts", models.Order{Status: models.OrderStatusPending}, models.OrderStatusAccepted, models.RoleRestaurant, 5, nil},
		{"restaurant cannot deliver", models.Order{Status: models.OrderStatusOnTheWay}, models.OrderStatusDelivered, models.RoleRestaurant, 5, ErrInvalidTransition},
		{"customer cancels pending", models.Order{UserID: 9, Status: models.OrderStatusPending}, models.OrderStatusCancelled, models.RoleCustomer, 9, nil},
		{"customer cannot cancel accepted", models.Order{UserID: 9, Status: models.OrderStatusAccepted}, models.OrderStatusCancelled, models.RoleCustomer, 9, ErrInvalidTransition},
		{"customer of another order", models.Order{UserID: 8, Status: models.OrderStatusPending}, models.OrderStatusCancelled, models.RoleCustomer, 9, ErrNotOrderOwner},
		{"courier picks up", models.Order{CourierID: &courier, Status: models.OrderStatusPreparing}, models.OrderStatusOnTheWay, models.RoleCourier, 30, nil},
		{"courier delivers", models.Order{CourierID: &courier, Status: models.OrderStatusOnTheWay}, models.OrderStatusDelivered, models.RoleCourier, 30, nil},
		{"unclaimed courier", models.Order{Status: models.OrderStatusPreparing}, models.OrderStatusOnTheWay, models.RoleCourier, 30, ErrNotOrderOwner},
		{"other courier", models.Order{CourierID: &other, Status: models.OrderStatusPreparing}, models.OrderStatusOnTheWay, models.RoleCourier, 30, ErrNotOrderOwner},
		{"no skipping", models.Order{CourierID: &courier, Status: models.OrderStatusPreparing}, models.OrderStatusDelivered, models.RoleCourier, 30, ErrInvalidTransition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AuthorizeStatusChange(&tt.order, tt.to, tt.role, tt.userID)
			if !errors.Is(got, tt.want) {
				t.Fatalf("AuthorizeStatusChange = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOrderViewsProjectProgress(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	minutes := 40
	arrival := now.Add(20 * time.Minute)

	orders := []models.Order{
		{ID: 1, Status: models.OrderStatusPreparing, CreatedAt: now.Add(-20 * time.Minute), EstimatedMinutes: &minutes, EstimatedArrivalTime: &arrival},
		{ID: 2, Status: models.OrderStatusPending, CreatedAt: now},
	}
	views := OrderViews(orders, now)
	if len(views) != 2 {
		t.Fatalf("len(views) = %d, want 2", len(views))
	}

	p := views[0].Progress
	if p == nil {
		t.Fatal("expected progress for estimated order")
	}
	if p.RemainingMinutes != 20 || p.PercentComplete != 50 {
		t.Errorf("progress = %d min / %d%%, want 20 / 50", p.RemainingMinutes, p.PercentComplete)
	}
	if views[1].Progress != nil {
		t.Error("order without estimate should have no progress")
	}
}

func TestToggledStatus(t *testing.T) {
	if got := ToggledStatus(models.UserStatusActive); got != models.UserStatusInactive {
		t.Errorf("toggle activo = %q", got)
	}
	if got := ToggledStatus(models.UserStatusInactive); got != models.UserStatusActive {
		t.Errorf("toggle inactivo = %q", got)
	}
}

func TestUpdateProfileRequestUpdates(t *testing.T) {
	name := " Ana María "
	req := UpdateProfileRequest{Name: &name}
	updates := req.Updates()
	if len(updates) != 1 || updates["name"] != "Ana María" {
		t.Fatalf("updates = %v", updates)
	}

	empty := UpdateProfileRequest{}
	if len(empty.Updates()) != 0 {
		t.Fatal("empty request should produce no updates")
	}
}

func TestNewUserDefaults(t *testing.T) {
	u := NewUser(&RegisterRequest{Name: "Ana", Email: " Ana@Mail.COM ", Address: "Calle 1 # 2-3"}, "hash")
	if u.Role != models.RoleCustomer {
		t.Errorf("Role = %q, want cliente", u.Role)
	}
	if u.Email != "ana@mail.com" {
		t.Errorf("Email = %q, want lowercased", u.Email)
	}
	if !u.IsActive() {
		t.Error("new users start active")
	}

	r := NewUser(&RegisterRequest{Role: "restaurante"}, "hash")
	if r.Role != models.RoleRestaurant {
		t.Errorf("Role = %q, want restaurante", r.Role)
	}
}
