package delivery

import (
	"math"
	"testing"

	"domiflash/internal/models"
)

// fixedSource replays the given draws in order, cycling when exhausted.
type fixedSource struct {
	floats []float64
	ints   []int
	fi, ii int
}

func (s *fixedSource) Float64() float64 {
	v := s.floats[s.fi%len(s.floats)]
	s.fi++
	return v
}

func (s *fixedSource) Intn(n int) int {
	v := s.ints[s.ii%len(s.ints)]
	s.ii++
	if v >= n {
		return n - 1
	}
	return v
}

func TestHaversineSymmetryAndZero(t *testing.T) {
	points := [][2]float64{
		{-4.2981, -74.7846},
		{4.711, -74.0721},
		{0, 0},
		{51.5074, -0.1278},
		{-33.8688, 151.2093},
	}

	for _, a := range points {
		if d := HaversineKm(a[0], a[1], a[0], a[1]); d != 0 {
			t.Errorf("HaversineKm(a, a) = %v, want 0 for %v", d, a)
		}
		for _, b := range points {
			ab := HaversineKm(a[0], a[1], b[0], b[1])
			ba := HaversineKm(b[0], b[1], a[0], a[1])
			if math.Abs(ab-ba) > 1e-9 {
				t.Errorf("HaversineKm not symmetric for %v %v: %v vs %v", a, b, ab, ba)
			}
		}
	}
}

func TestHaversineOneDegreeLatitude(t *testing.T) {
	d := HaversineKm(4, -74, 5, -74)
	if d < 110 || d > 112 {
		t.Fatalf("distance = %v, want within [110, 112]", d)
	}
}

func TestRawEstimateScenario(t *testing.T) {
	raw := RawEstimate(5.0, 3, models.SpeedNormal, 1.2, 5)
	if math.Abs(raw-38.4) > 1e-9 {
		t.Fatalf("raw = %v, want 38.4", raw)
	}
	if got := Finalize(raw); got != 40 {
		t.Fatalf("Finalize(%v) = %d, want 40", raw, got)
	}
}

func TestRawEstimateSpeedClass(t *testing.T) {
	normal := RawEstimate(0, 1, models.SpeedNormal, 1.2, 0)
	fast := RawEstimate(0, 1, models.SpeedFast, 1.2, 0)
	slow := RawEstimate(0, 1, models.SpeedSlow, 1.2, 0)

	if normal != 15 {
		t.Errorf("normal prep = %v, want 15", normal)
	}
	if fast != 12 {
		t.Errorf("fast prep = %v, want 12", fast)
	}
	if math.Abs(slow-21) > 1e-9 {
		t.Errorf("slow prep = %v, want 21", slow)
	}
	if unknown := RawEstimate(0, 1, "turbo", 1.2, 0); unknown != normal {
		t.Errorf("unknown speed class = %v, want %v", unknown, normal)
	}
}

func TestRawEstimateZeroItemsIsBaseTime(t *testing.T) {
	if got, want := RawEstimate(0, 0, models.SpeedNormal, 1.1, 0), RawEstimate(0, 1, models.SpeedNormal, 1.1, 0); got != want {
		t.Fatalf("zero items = %v, want %v", got, want)
	}
}

func TestRawEstimateMonotonic(t *testing.T) {
	for _, speed := range []models.SpeedClass{models.SpeedFast, models.SpeedNormal, models.SpeedSlow} {
		prev := -1.0
		for d := 0.0; d <= 30; d += 0.5 {
			raw := RawEstimate(d, 2, speed, 1.25, 4)
			if raw < prev {
				t.Fatalf("%s: raw decreased at distance %v: %v < %v", speed, d, raw, prev)
			}
			prev = raw
		}

		prev = -1.0
		for items := 1; items <= 40; items++ {
			raw := RawEstimate(3, items, speed, 1.25, 4)
			if raw < prev {
				t.Fatalf("%s: raw decreased at %d items: %v < %v", speed, items, raw, prev)
			}
			prev = raw
		}
	}
}

func TestFinalize(t *testing.T) {
	tests := []struct {
		raw  float64
		want int
	}{
		{0, 20},
		{19.9, 20},
		{22.9, 20},
		{23, 25},
		{37.99, 35},
		{38.4, 40},
		{57, 55},
		{58, 60},
		{62.9, 60},
		{250, 60},
	}

	for _, tt := range tests {
		if got := Finalize(tt.raw); got != tt.want {
			t.Errorf("Finalize(%v) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}

func TestEstimateMinutesBounds(t *testing.T) {
	calc := NewCalculator(NewRandomSource(42))

	for d := 0.0; d <= 50; d += 0.7 {
		for items := 1; items <= 20; items++ {
			for _, speed := range []models.SpeedClass{models.SpeedFast, models.SpeedNormal, models.SpeedSlow} {
				m := calc.EstimateMinutes(d, items, speed)
				if m < MinMinutes || m > MaxMinutes {
					t.Fatalf("EstimateMinutes(%v, %d, %s) = %d, out of [20, 60]", d, items, speed, m)
				}
				if m%5 != 0 {
					t.Fatalf("EstimateMinutes(%v, %d, %s) = %d, not a multiple of 5", d, items, speed, m)
				}
			}
		}
	}
}

func TestCalculatorDrawRanges(t *testing.T) {
	calc := NewCalculator(NewRandomSource(7))
	seen := map[int]bool{}

	for i := 0; i < 2000; i++ {
		f := calc.TrafficFactor()
		if f < 1.1 || f >= 1.4 {
			t.Fatalf("TrafficFactor = %v, want in [1.1, 1.4)", f)
		}
		b := calc.BufferMinutes()
		if b < 3 || b > 8 {
			t.Fatalf("BufferMinutes = %d, want in [3, 8]", b)
		}
		seen[b] = true
	}
	if len(seen) != 6 {
		t.Fatalf("saw buffers %v, want all of 3..8", seen)
	}
}

func TestEstimateMinutesWithFixedDraws(t *testing.T) {
	// Float64 0.3333 -> traffic 1.2, Intn 2 -> buffer 5.
	calc := NewCalculator(&fixedSource{floats: []float64{1.0 / 3}, ints: []int{2}})
	if got := calc.EstimateMinutes(5.0, 3, models.SpeedNormal); got != 40 {
		t.Fatalf("EstimateMinutes = %d, want 40", got)
	}
}

func TestFormatEstimate(t *testing.T) {
	tests := []struct {
		minutes int
		want    string
	}{
		{20, "15-20 min"},
		{25, "20-25 min"},
		{30, "30-35 min"},
		{60, "60-65 min"},
	}

	for _, tt := range tests {
		if got := FormatEstimate(tt.minutes); got != tt.want {
			t.Errorf("FormatEstimate(%d) = %q, want %q", tt.minutes, got, tt.want)
		}
	}
}

func TestSimulatedLocationWithinSpread(t *testing.T) {
	base := Point{Lat: -4.2981, Lng: -74.7846}
	rnd := NewRandomSource(99)

	for i := 0; i < 1000; i++ {
		p := SimulatedLocation(base, rnd)
		if math.Abs(p.Lat-base.Lat) > 0.09 || math.Abs(p.Lng-base.Lng) > 0.09 {
			t.Fatalf("point %+v more than 0.09 degrees from base", p)
		}
	}
}

func TestSimulatedLocationEdges(t *testing.T) {
	base := Point{Lat: 10, Lng: 20}

	low := SimulatedLocation(base, &fixedSource{floats: []float64{0}, ints: []int{0}})
	if math.Abs(low.Lat-9.91) > 1e-9 || math.Abs(low.Lng-19.91) > 1e-9 {
		t.Fatalf("low edge = %+v, want {9.91 19.91}", low)
	}

	mid := SimulatedLocation(base, &fixedSource{floats: []float64{0.5}, ints: []int{0}})
	if mid != base {
		t.Fatalf("mid = %+v, want base %+v", mid, base)
	}
}
