package delivery

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"domiflash/internal/models"
)

// OrderInfo is the slice of an order the estimator reads.
type OrderInfo struct {
	ID                   uint
	UserID               uint
	RestaurantID         uint
	Status               models.OrderStatus
	CreatedAt            time.Time
	ItemCount            int
	EstimatedMinutes     *int
	EstimatedArrivalTime *time.Time
}

type RestaurantLocation struct {
	ID         uint              `json:"id"`
	Name       string            `json:"name"`
	Lat        float64           `json:"lat"`
	Lng        float64           `json:"lng"`
	SpeedClass models.SpeedClass `json:"speed_class"`
}

// Store is the persistence the estimator needs. Implementations return
// ErrOrderNotFound, ErrRestaurantNotFound or ErrUserNotFound for missing rows.
type Store interface {
	OrderInfo(ctx context.Context, orderID uint) (*OrderInfo, error)
	RestaurantLocation(ctx context.Context, restaurantID uint) (*RestaurantLocation, error)
	// UserLocation returns nil without error when the user has no coordinate yet.
	UserLocation(ctx context.Context, userID uint) (*Point, error)
	// InitUserLocation stores p only if the user still has no coordinate.
	InitUserLocation(ctx context.Context, userID uint, p Point) error
	SaveEstimate(ctx context.Context, orderID uint, minutes int, arrival time.Time) error
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) OrderInfo(ctx context.Context, orderID uint) (*OrderInfo, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	// Line rows, not summed quantities.
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.OrderItem{}).
		Where("order_id = ?", orderID).
		Count(&count).Error; err != nil {
		return nil, err
	}

	return &OrderInfo{
		ID:                   order.ID,
		UserID:               order.UserID,
		RestaurantID:         order.RestaurantID,
		Status:               order.Status,
		CreatedAt:            order.CreatedAt,
		ItemCount:            int(count),
		EstimatedMinutes:     order.EstimatedMinutes,
		EstimatedArrivalTime: order.EstimatedArrivalTime,
	}, nil
}

func (s *GormStore) RestaurantLocation(ctx context.Context, restaurantID uint) (*RestaurantLocation, error) {
	var r models.Restaurant
	err := s.db.WithContext(ctx).
		Select("id", "name", "lat", "lng", "speed_class").
		First(&r, restaurantID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRestaurantNotFound
		}
		return nil, err
	}

	return &RestaurantLocation{
		ID:         r.ID,
		Name:       r.Name,
		Lat:        r.Lat,
		Lng:        r.Lng,
		SpeedClass: r.SpeedClass,
	}, nil
}

func (s *GormStore) UserLocation(ctx context.Context, userID uint) (*Point, error) {
	var u models.User
	err := s.db.WithContext(ctx).Select("id", "lat", "lng").First(&u, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if !u.HasLocation() {
		return nil, nil
	}
	return &Point{Lat: *u.Lat, Lng: *u.Lng}, nil
}

func (s *GormStore) InitUserLocation(ctx context.Context, userID uint, p Point) error {
	return s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND lat IS NULL", userID).
		Updates(map[string]interface{}{"lat": p.Lat, "lng": p.Lng}).Error
}

func (s *GormStore) SaveEstimate(ctx context.Context, orderID uint, minutes int, arrival time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]interface{}{
			"estimated_minutes":      minutes,
			"estimated_arrival_time": arrival,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrOrderNotFound
	}
	return nil
}
