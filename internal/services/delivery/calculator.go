package delivery

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"domiflash/internal/models"
)

const (
	earthRadiusKm = 6371.0

	courierSpeedKmh    = 25.0
	basePrepMinutes    = 15.0
	perItemPrepMinutes = 2.0

	minTrafficFactor = 1.1
	maxTrafficFactor = 1.4
	minBufferMinutes = 3
	maxBufferMinutes = 8

	MinMinutes = 20
	MaxMinutes = 60
)

// RandomSource supplies the draws the heuristic needs. *rand.Rand satisfies it
// but is not safe for concurrent use; see NewRandomSource.
type RandomSource interface {
	Float64() float64
	Intn(n int) int
}

type lockedSource struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRandomSource returns a goroutine-safe source seeded with seed,
// or with the current time when seed is zero.
func NewRandomSource(seed int64) RandomSource {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &lockedSource{rnd: rand.New(rand.NewSource(seed))}
}

func (s *lockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Float64()
}

func (s *lockedSource) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Intn(n)
}

// HaversineKm returns the great-circle distance between two points in km.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	φ1 := lat1 * math.Pi / 180
	φ2 := lat2 * math.Pi / 180
	dφ := (lat2 - lat1) * math.Pi / 180
	dλ := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dφ/2)*math.Sin(dφ/2) +
		math.Cos(φ1)*math.Cos(φ2)*math.Sin(dλ/2)*math.Sin(dλ/2)
	c := 2 * math.Asin(math.Sqrt(a))

	return earthRadiusKm * c
}

func prepMultiplier(speed models.SpeedClass) float64 {
	switch speed {
	case models.SpeedFast:
		return 0.8
	case models.SpeedSlow:
		return 1.4
	default:
		return 1.0
	}
}

// RawEstimate is the unrounded delivery time in minutes for fixed traffic and
// buffer draws. An item count below one is treated as a single item.
func RawEstimate(distanceKm float64, itemCount int, speed models.SpeedClass, trafficFactor float64, bufferMinutes int) float64 {
	extra := itemCount - 1
	if extra < 0 {
		extra = 0
	}
	prep := (basePrepMinutes + float64(extra)*perItemPrepMinutes) * prepMultiplier(speed)
	travel := distanceKm / courierSpeedKmh * 60 * trafficFactor

	return prep + travel + float64(bufferMinutes)
}

// Finalize truncates raw to whole minutes, rounds to the nearest multiple of
// five and clamps the result to [MinMinutes, MaxMinutes].
func Finalize(raw float64) int {
	total := int(raw)
	rounded := int(math.Round(float64(total)/5)) * 5

	if rounded < MinMinutes {
		return MinMinutes
	}
	if rounded > MaxMinutes {
		return MaxMinutes
	}
	return rounded
}

// Calculator draws traffic and buffer values and produces final estimates.
type Calculator struct {
	rnd RandomSource
}

func NewCalculator(rnd RandomSource) *Calculator {
	return &Calculator{rnd: rnd}
}

// TrafficFactor is uniform in [1.1, 1.4).
func (c *Calculator) TrafficFactor() float64 {
	return minTrafficFactor + c.rnd.Float64()*(maxTrafficFactor-minTrafficFactor)
}

// BufferMinutes is uniform over 3..8 inclusive.
func (c *Calculator) BufferMinutes() int {
	return minBufferMinutes + c.rnd.Intn(maxBufferMinutes-minBufferMinutes+1)
}

// EstimateMinutes returns a value in [20, 60] that is a multiple of five.
func (c *Calculator) EstimateMinutes(distanceKm float64, itemCount int, speed models.SpeedClass) int {
	return Finalize(RawEstimate(distanceKm, itemCount, speed, c.TrafficFactor(), c.BufferMinutes()))
}

// FormatEstimate renders minutes as a five minute window, e.g. "20-25 min".
func FormatEstimate(minutes int) string {
	if minutes <= 25 {
		return fmt.Sprintf("%d-%d min", minutes-5, minutes)
	}
	return fmt.Sprintf("%d-%d min", minutes, minutes+5)
}
