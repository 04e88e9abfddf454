package finder

import (
	"context"
	"fmt"

	"github.com/skylith/reoffer/internal/models"
)

// Booking identifies one impacted traveller on a disrupted flight, together
// with the candidate rebooking options sourced for them.
type Booking struct {
	BookingRef string
	SubjectID  string
	Email      string
	Options    []models.Option
}

// Finder resolves which bookings a flight disruption impacts. The real
// implementation lives upstream; this interface is the boundary the offer
// pipeline consumes.
type Finder interface {
	ImpactedBookings(ctx context.Context, flightNo string) ([]Booking, error)
}

// StaticFinder returns a fixed set of demo bookings for any flight. It backs
// the seed command and the disruption simulator.
type StaticFinder struct{}

// NewStaticFinder constructs a StaticFinder.
func NewStaticFinder() *StaticFinder {
	return &StaticFinder{}
}

func (f *StaticFinder) ImpactedBookings(_ context.Context, flightNo string) ([]Booking, error) {
	options := []models.Option{
		{
			FlightNo:       "AB456",
			Origin:         "YYZ",
			Destination:    "YVR",
			DepartAt:       "2026-09-12T09:10Z",
			ArriveAt:       "2026-09-12T12:30Z",
			Price:          320,
			Stops:          0,
			SameCabin:      true,
			MCTOk:          true,
			ArrivalDiffMin: 35,
		},
		{
			FlightNo:       "AB789",
			Origin:         "YYZ",
			Destination:    "YVR",
			DepartAt:       "2026-09-12T10:40Z",
			ArriveAt:       "2026-09-12T13:55Z",
			Price:          295,
			Stops:          1,
			SameCabin:      true,
			MCTOk:          true,
			ArrivalDiffMin: 120,
		},
	}

	bookings := make([]Booking, 0, 3)
	for i := 1; i <= 3; i++ {
		bookings = append(bookings, Booking{
			BookingRef: fmt.Sprintf("PNR-%s-%03d", flightNo, i),
			SubjectID:  fmt.Sprintf("PAX-%03d", i),
			Email:      fmt.Sprintf("pax%d@example.com", i),
			Options:    options,
		})
	}
	return bookings, nil
}
