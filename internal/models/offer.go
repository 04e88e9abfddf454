package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// Offer status values. ACCEPTED, DECLINED, and NO_OPTIONS are terminal.
// EXPIRED is derived at read time and never persisted.
const (
	StatusNoOptions = "NO_OPTIONS"
	StatusPending   = "PENDING"
	StatusAccepted  = "ACCEPTED"
	StatusDeclined  = "DECLINED"
	StatusExpired   = "EXPIRED"
)

// Option is one rebooking candidate inside an offer. The payload is fixed at
// offer creation and never mutated afterward.
type Option struct {
	FlightNo       string  `json:"flightNo"`
	Origin         string  `json:"origin,omitempty"`
	Destination    string  `json:"destination,omitempty"`
	DepartAt       string  `json:"departAt,omitempty"`
	ArriveAt       string  `json:"arriveAt,omitempty"`
	Price          float64 `json:"price,omitempty"`
	Stops          int     `json:"stops"`
	SameCabin      bool    `json:"sameCabin"`
	MCTOk          bool    `json:"mctOk"`
	ArrivalDiffMin int     `json:"arrivalDiffMin"`
	Score          int     `json:"score"`
}

// Offer is a single-use offer record addressed by a signed link.
//
// Only Cursor and Status mutate after creation; every other column is
// write-once. Expiry is stored as UNIX epoch seconds to match the exp
// query parameter carried in links.
type Offer struct {
	OfferID string `gorm:"primaryKey;type:text"` // "OFR-" + UUID.

	SubjectID  string `gorm:"type:text;not null;index"` // Passenger identifier the offer concerns.
	BookingRef string `gorm:"type:text;not null"`       // Disrupted booking (PNR) reference.

	Options datatypes.JSON `gorm:"type:json;not null"` // Ordered Option payloads, fixed at creation.
	Cursor  *int           // Index of the presented option; nil when NO_OPTIONS.
	Status  string         `gorm:"type:text;not null;index"` // Current lifecycle status.

	Token     string `gorm:"type:text;not null"` // Per-offer secret, compared by equality only.
	Signature string `gorm:"type:text;not null"` // Link signature as issued, kept for re-sends.
	ExpiresAt int64  `gorm:"not null"`           // UNIX epoch seconds.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// DecodeOptions unmarshals the stored option list.
func (o *Offer) DecodeOptions() ([]Option, error) {
	if len(o.Options) == 0 {
		return nil, nil
	}
	var opts []Option
	if err := json.Unmarshal(o.Options, &opts); err != nil {
		return nil, fmt.Errorf("offer %s: decode options: %w", o.OfferID, err)
	}
	return opts, nil
}

// EncodeOptions marshals an option list for storage.
func EncodeOptions(opts []Option) (datatypes.JSON, error) {
	if opts == nil {
		opts = []Option{}
	}
	data, err := json.Marshal(opts)
	if err != nil {
		return nil, fmt.Errorf("encode options: %w", err)
	}
	return datatypes.JSON(data), nil
}

// Expired reports whether the offer's validity window has passed.
func (o *Offer) Expired(now time.Time) bool {
	return now.Unix() > o.ExpiresAt
}

// Terminal reports whether the stored status permits no further transition.
func (o *Offer) Terminal() bool {
	switch o.Status {
	case StatusAccepted, StatusDeclined, StatusNoOptions:
		return true
	}
	return false
}

// DerivedStatus returns the status as seen by a caller at the given time:
// a still-PENDING offer past its expiry reads as EXPIRED.
func (o *Offer) DerivedStatus(now time.Time) string {
	if o.Status == StatusPending && o.Expired(now) {
		return StatusExpired
	}
	return o.Status
}
