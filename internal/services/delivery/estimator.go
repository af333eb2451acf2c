package delivery

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	ErrOrderNotFound      = errors.New("delivery: order not found")
	ErrEmptyOrder         = errors.New("delivery: order has no items")
	ErrRestaurantNotFound = errors.New("delivery: restaurant not found")
	ErrUserNotFound       = errors.New("delivery: user not found")
)

// PersistenceError wraps a datastore failure hit while estimating.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("delivery: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

type DeliveryEstimate struct {
	OrderID              uint      `json:"order_id"`
	DistanceKm           float64   `json:"distance_km"`
	EstimatedMinutes     int       `json:"estimated_minutes"`
	EstimatedArrivalTime time.Time `json:"estimated_arrival_time"`
	RestaurantName       string    `json:"restaurant_name"`
	ItemCount            int       `json:"item_count"`
	Formatted            string    `json:"formatted"`
}

type DeliveryProgress struct {
	Status                  string    `json:"status"`
	OriginalEstimateMinutes int       `json:"original_estimate_minutes"`
	RemainingMinutes        int       `json:"remaining_minutes"`
	EstimatedArrivalTime    time.Time `json:"estimated_arrival_time"`
	PercentComplete         int       `json:"percent_complete"`
	Formatted               string    `json:"formatted"`
}

type Service struct {
	store Store
	calc  *Calculator
	rnd   RandomSource
	base  Point
	log   logrus.FieldLogger
	now   func() time.Time
}

func NewService(store Store, base Point, rnd RandomSource, log logrus.FieldLogger) *Service {
	return &Service{
		store: store,
		calc:  NewCalculator(rnd),
		rnd:   rnd,
		base:  base,
		log:   log,
		now:   time.Now,
	}
}

// classify maps store errors onto the package sentinels, wrapping anything
// else as a PersistenceError.
func classify(op string, err error) error {
	switch {
	case errors.Is(err, ErrOrderNotFound),
		errors.Is(err, ErrRestaurantNotFound),
		errors.Is(err, ErrUserNotFound):
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// UserLocation returns the stored coordinate of the user, generating and
// persisting a simulated one on first use. Concurrent first calls converge
// on whichever value was written first.
func (s *Service) UserLocation(ctx context.Context, userID uint) (Point, error) {
	p, err := s.store.UserLocation(ctx, userID)
	if err != nil {
		return Point{}, classify("read user location", err)
	}
	if p != nil {
		return *p, nil
	}

	generated := SimulatedLocation(s.base, s.rnd)
	if err := s.store.InitUserLocation(ctx, userID, generated); err != nil {
		return Point{}, classify("store user location", err)
	}

	p, err = s.store.UserLocation(ctx, userID)
	if err != nil {
		return Point{}, classify("read user location", err)
	}
	if p == nil {
		return Point{}, &PersistenceError{Op: "store user location", Err: errors.New("location not persisted")}
	}
	return *p, nil
}

// NewLocation draws a simulated coordinate around the base point. Restaurants
// registered without coordinates get one this way.
func (s *Service) NewLocation() Point {
	return SimulatedLocation(s.base, s.rnd)
}

// ComputeForOrder estimates the delivery time of an order and stores it on
// the order, overwriting any previous estimate. Each call draws new random
// factors, so repeated calls may store different values.
func (s *Service) ComputeForOrder(ctx context.Context, orderID uint) (*DeliveryEstimate, error) {
	info, err := s.store.OrderInfo(ctx, orderID)
	if err != nil {
		return nil, classify("read order", err)
	}
	if info.ItemCount == 0 {
		return nil, ErrEmptyOrder
	}

	restaurant, err := s.store.RestaurantLocation(ctx, info.RestaurantID)
	if err != nil {
		return nil, classify("read restaurant", err)
	}
	user, err := s.UserLocation(ctx, info.UserID)
	if err != nil {
		return nil, err
	}

	distance := HaversineKm(restaurant.Lat, restaurant.Lng, user.Lat, user.Lng)
	minutes := s.calc.EstimateMinutes(distance, info.ItemCount, restaurant.SpeedClass)
	arrival := s.now().Add(time.Duration(minutes) * time.Minute)

	if err := s.store.SaveEstimate(ctx, orderID, minutes, arrival); err != nil {
		return nil, classify("save estimate", err)
	}

	return &DeliveryEstimate{
		OrderID:              orderID,
		DistanceKm:           math.Round(distance*100) / 100,
		EstimatedMinutes:     minutes,
		EstimatedArrivalTime: arrival,
		RestaurantName:       restaurant.Name,
		ItemCount:            info.ItemCount,
		Formatted:            FormatEstimate(minutes),
	}, nil
}

// outcome is the metric label for err.
func outcome(err error) string {
	var perr *PersistenceError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrOrderNotFound):
		return "order_not_found"
	case errors.Is(err, ErrEmptyOrder):
		return "empty_order"
	case errors.Is(err, ErrRestaurantNotFound):
		return "restaurant_not_found"
	case errors.Is(err, ErrUserNotFound):
		return "user_not_found"
	case errors.As(err, &perr):
		return "persistence"
	default:
		return "error"
	}
}

// EstimateOrder is ComputeForOrder for callers that must not fail: any error
// is logged and counted, and nil is returned.
func (s *Service) EstimateOrder(ctx context.Context, orderID uint) *DeliveryEstimate {
	est, err := s.ComputeForOrder(ctx, orderID)
	label := outcome(err)
	EstimatesTotal.WithLabelValues(label).Inc()

	if err != nil {
		s.log.WithFields(logrus.Fields{
			"order_id": orderID,
			"reason":   label,
		}).WithError(err).Warn("delivery estimate unavailable")
		return nil
	}

	EstimateMinutes.Observe(float64(est.EstimatedMinutes))
	s.log.WithFields(logrus.Fields{
		"order_id":    orderID,
		"minutes":     est.EstimatedMinutes,
		"distance_km": est.DistanceKm,
	}).Info("delivery estimate stored")
	return est
}

// Progress reports how much of the stored estimate has elapsed. It returns
// nil, nil when the order has no estimate.
func (s *Service) Progress(ctx context.Context, orderID uint) (*DeliveryProgress, error) {
	info, err := s.store.OrderInfo(ctx, orderID)
	if err != nil {
		return nil, classify("read order", err)
	}
	return ProjectProgress(string(info.Status), info.CreatedAt, info.EstimatedMinutes, info.EstimatedArrivalTime, s.now()), nil
}

// ProjectProgress derives progress at now from an order's stored estimate.
// It returns nil when either estimate field is missing or the estimate is not positive.
func ProjectProgress(status string, createdAt time.Time, estimatedMinutes *int, arrival *time.Time, now time.Time) *DeliveryProgress {
	if estimatedMinutes == nil || arrival == nil || *estimatedMinutes <= 0 {
		return nil
	}
	est := float64(*estimatedMinutes)
	elapsed := now.Sub(createdAt).Minutes()
	if elapsed < 0 {
		elapsed = 0
	}

	remaining := est - elapsed
	if remaining < 0 {
		remaining = 0
	}

	percent := int(math.Floor(elapsed / est * 100))
	if percent > 100 {
		percent = 100
	}

	return &DeliveryProgress{
		Status:                  status,
		OriginalEstimateMinutes: *estimatedMinutes,
		RemainingMinutes:        int(remaining),
		EstimatedArrivalTime:    *arrival,
		PercentComplete:         percent,
		Formatted:               FormatEstimate(*estimatedMinutes),
	}
}
