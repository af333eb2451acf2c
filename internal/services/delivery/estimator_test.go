package delivery

import (
	"context"
	"errors"
	"io"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"

	"domiflash/internal/models"
)

// memoryStore is an in-memory Store for tests.
type memoryStore struct {
	mu          sync.Mutex
	orders      map[uint]*OrderInfo
	restaurants map[uint]*RestaurantLocation
	users       map[uint]*Point
	knownUsers  map[uint]bool
	saveErr     error
	saves       int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		orders:      map[uint]*OrderInfo{},
		restaurants: map[uint]*RestaurantLocation{},
		users:       map[uint]*Point{},
		knownUsers:  map[uint]bool{},
	}
}

func (s *memoryStore) OrderInfo(ctx context.Context, orderID uint) (*OrderInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *memoryStore) RestaurantLocation(ctx context.Context, restaurantID uint) (*RestaurantLocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.restaurants[restaurantID]
	if !ok {
		return nil, ErrRestaurantNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *memoryStore) UserLocation(ctx context.Context, userID uint) (*Point, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.knownUsers[userID] {
		return nil, ErrUserNotFound
	}
	p := s.users[userID]
	if p == nil {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *memoryStore) InitUserLocation(ctx context.Context, userID uint, p Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.users[userID] == nil {
		s.users[userID] = &p
	}
	return nil
}

func (s *memoryStore) SaveEstimate(ctx context.Context, orderID uint, minutes int, arrival time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	o, ok := s.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	o.EstimatedMinutes = &minutes
	o.EstimatedArrivalTime = &arrival
	s.saves++
	return nil
}

var base = Point{Lat: -4.2981, Lng: -74.7846}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	log.SetLevel(logrus.ErrorLevel)
	return log
}

func seededStore() *memoryStore {
	s := newMemoryStore()
	s.restaurants[1] = &RestaurantLocation{ID: 1, Name: "Pizzeria Central", Lat: -4.30, Lng: -74.78, SpeedClass: models.SpeedNormal}
	s.knownUsers[10] = true
	s.orders[100] = &OrderInfo{ID: 100, UserID: 10, RestaurantID: 1, Status: models.OrderStatusPending, CreatedAt: time.Now(), ItemCount: 3}
	return s
}

func newTestService(store Store) *Service {
	return NewService(store, base, NewRandomSource(1), testLogger())
}

func TestComputeForOrderStoresEstimate(t *testing.T) {
	store := seededStore()
	svc := newTestService(store)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	est, err := svc.ComputeForOrder(context.Background(), 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if est.EstimatedMinutes < MinMinutes || est.EstimatedMinutes > MaxMinutes || est.EstimatedMinutes%5 != 0 {
		t.Fatalf("EstimatedMinutes = %d, want multiple of 5 in [20, 60]", est.EstimatedMinutes)
	}
	if want := now.Add(time.Duration(est.EstimatedMinutes) * time.Minute); !est.EstimatedArrivalTime.Equal(want) {
		t.Errorf("EstimatedArrivalTime = %v, want %v", est.EstimatedArrivalTime, want)
	}
	if est.RestaurantName != "Pizzeria Central" {
		t.Errorf("RestaurantName = %q, want Pizzeria Central", est.RestaurantName)
	}
	if est.ItemCount != 3 {
		t.Errorf("ItemCount = %d, want 3", est.ItemCount)
	}
	if est.Formatted != FormatEstimate(est.EstimatedMinutes) {
		t.Errorf("Formatted = %q", est.Formatted)
	}

	o := store.orders[100]
	if o.EstimatedMinutes == nil || o.EstimatedArrivalTime == nil {
		t.Fatal("estimate not persisted on both fields")
	}
	if *o.EstimatedMinutes != est.EstimatedMinutes {
		t.Errorf("stored minutes = %d, want %d", *o.EstimatedMinutes, est.EstimatedMinutes)
	}
}

func TestComputeForOrderGeneratesUserLocationOnce(t *testing.T) {
	store := seededStore()
	svc := newTestService(store)
	ctx := context.Background()

	if _, err := svc.ComputeForOrder(ctx, 100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first := store.users[10]
	if first == nil {
		t.Fatal("user location was not persisted")
	}
	if d := HaversineKm(base.Lat, base.Lng, first.Lat, first.Lng); d > 15 {
		t.Fatalf("generated location %v km from base, want within ~13 km", d)
	}

	p, err := svc.UserLocation(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p != *first {
		t.Fatalf("second lookup = %+v, want stored %+v", p, *first)
	}
}

func TestUserLocationConcurrentFirstCallsConverge(t *testing.T) {
	store := seededStore()
	svc := newTestService(store)

	const n = 16
	results := make([]Point, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := svc.UserLocation(context.Background(), 10)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			results[i] = p
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if results[i] != results[0] {
			t.Fatalf("caller %d got %+v, caller 0 got %+v", i, results[i], results[0])
		}
	}
}

func TestComputeForOrderTwiceGivesTwoValidEstimates(t *testing.T) {
	store := seededStore()
	svc := newTestService(store)

	for i := 0; i < 2; i++ {
		est, err := svc.ComputeForOrder(context.Background(), 100)
		if err != nil {
			t.Fatalf("call %d: unexpected error: %v", i, err)
		}
		if est.EstimatedMinutes < MinMinutes || est.EstimatedMinutes > MaxMinutes || est.EstimatedMinutes%5 != 0 {
			t.Fatalf("call %d: EstimatedMinutes = %d", i, est.EstimatedMinutes)
		}
	}
	if store.saves != 2 {
		t.Fatalf("saves = %d, want 2 (overwrite)", store.saves)
	}
}

func TestComputeForOrderErrors(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(s *memoryStore)
		orderID uint
		want    error
	}{
		{"missing order", func(s *memoryStore) {}, 999, ErrOrderNotFound},
		{"empty order", func(s *memoryStore) { s.orders[100].ItemCount = 0 }, 100, ErrEmptyOrder},
		{"missing restaurant", func(s *memoryStore) { delete(s.restaurants, 1) }, 100, ErrRestaurantNotFound},
		{"missing user", func(s *memoryStore) { delete(s.knownUsers, 10) }, 100, ErrUserNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := seededStore()
			tt.prepare(store)
			svc := newTestService(store)

			_, err := svc.ComputeForOrder(context.Background(), tt.orderID)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestComputeForOrderPersistenceError(t *testing.T) {
	store := seededStore()
	store.saveErr = errors.New("connection reset")
	svc := newTestService(store)

	_, err := svc.ComputeForOrder(context.Background(), 100)
	var perr *PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want *PersistenceError", err)
	}
	if perr.Op != "save estimate" {
		t.Errorf("Op = %q, want save estimate", perr.Op)
	}
	if store.orders[100].EstimatedMinutes != nil {
		t.Error("estimate should not be stored on failure")
	}
}

func TestEstimateOrderNeverFails(t *testing.T) {
	store := seededStore()
	store.orders[100].ItemCount = 0
	svc := newTestService(store)

	before := testutil.ToFloat64(EstimatesTotal.WithLabelValues("empty_order"))
	if est := svc.EstimateOrder(context.Background(), 100); est != nil {
		t.Fatalf("EstimateOrder = %+v, want nil", est)
	}
	if got := testutil.ToFloat64(EstimatesTotal.WithLabelValues("empty_order")); got != before+1 {
		t.Fatalf("empty_order counter = %v, want %v", got, before+1)
	}

	if est := svc.EstimateOrder(context.Background(), 12345); est != nil {
		t.Fatalf("EstimateOrder(missing) = %+v, want nil", est)
	}
}

func TestEstimateOrderSuccess(t *testing.T) {
	svc := newTestService(seededStore())

	before := testutil.ToFloat64(EstimatesTotal.WithLabelValues("ok"))
	if est := svc.EstimateOrder(context.Background(), 100); est == nil {
		t.Fatal("EstimateOrder = nil, want estimate")
	}
	if got := testutil.ToFloat64(EstimatesTotal.WithLabelValues("ok")); got != before+1 {
		t.Fatalf("ok counter = %v, want %v", got, before+1)
	}
}

func TestProgressWithoutEstimate(t *testing.T) {
	svc := newTestService(seededStore())

	p, err := svc.Progress(context.Background(), 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p != nil {
		t.Fatalf("Progress = %+v, want nil", p)
	}

	if _, err := svc.Progress(context.Background(), 404); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("err = %v, want ErrOrderNotFound", err)
	}
}

func TestProgressAfterEstimate(t *testing.T) {
	store := seededStore()
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.orders[100].CreatedAt = created
	svc := newTestService(store)
	svc.now = func() time.Time { return created }

	est, err := svc.ComputeForOrder(context.Background(), 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	svc.now = func() time.Time { return created.Add(10 * time.Minute) }
	p, err := svc.Progress(context.Background(), 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.OriginalEstimateMinutes != est.EstimatedMinutes {
		t.Errorf("OriginalEstimateMinutes = %d, want %d", p.OriginalEstimateMinutes, est.EstimatedMinutes)
	}
	if p.RemainingMinutes != est.EstimatedMinutes-10 {
		t.Errorf("RemainingMinutes = %d, want %d", p.RemainingMinutes, est.EstimatedMinutes-10)
	}
	if want := 1000 / est.EstimatedMinutes; p.PercentComplete != want {
		t.Errorf("PercentComplete = %d, want %d", p.PercentComplete, want)
	}
	if p.Status != string(models.OrderStatusPending) {
		t.Errorf("Status = %q, want pendiente", p.Status)
	}
}

func TestProjectProgressClamping(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	arrival := created.Add(30 * time.Minute)
	minutes := 30

	tests := []struct {
		name          string
		now           time.Time
		wantRemaining int
		wantPercent   int
	}{
		{"at creation", created, 30, 0},
		{"half way", created.Add(15 * time.Minute), 15, 50},
		{"partial minute", created.Add(10*time.Minute + 30*time.Second), 19, 35},
		{"exactly due", created.Add(30 * time.Minute), 0, 100},
		{"long overdue", created.Add(72 * time.Hour), 0, 100},
		{"clock skew", created.Add(-5 * time.Minute), 30, 0},
	}

	for _, tt := range tests {
		p := ProjectProgress("en_camino", created, &minutes, &arrival, tt.now)
		if p == nil {
			t.Fatalf("%s: ProjectProgress = nil", tt.name)
		}
		if p.RemainingMinutes != tt.wantRemaining {
			t.Errorf("%s: RemainingMinutes = %d, want %d", tt.name, p.RemainingMinutes, tt.wantRemaining)
		}
		if p.PercentComplete != tt.wantPercent {
			t.Errorf("%s: PercentComplete = %d, want %d", tt.name, p.PercentComplete, tt.wantPercent)
		}
		if p.RemainingMinutes < 0 || p.PercentComplete > 100 {
			t.Errorf("%s: out of range %+v", tt.name, p)
		}
	}
}

func TestProjectProgressRequiresBothFields(t *testing.T) {
	minutes := 30
	arrival := time.Now()
	if p := ProjectProgress("pendiente", time.Now(), &minutes, nil, time.Now()); p != nil {
		t.Fatal("want nil without arrival time")
	}
	if p := ProjectProgress("pendiente", time.Now(), nil, &arrival, time.Now()); p != nil {
		t.Fatal("want nil without minutes")
	}
}

func TestNewLocationAroundBase(t *testing.T) {
	svc := newTestService(newMemoryStore())
	for i := 0; i < 50; i++ {
		p := svc.NewLocation()
		if math.Abs(p.Lat-base.Lat) > 0.09 || math.Abs(p.Lng-base.Lng) > 0.09 {
			t.Fatalf("location %+v too far from base %+v", p, base)
		}
	}
}
