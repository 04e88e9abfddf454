package models

import (
	"time"

	"gorm.io/datatypes"
)

// Audit event types recorded against offers.
const (
	EventOfferCreated  = "OFFER_CREATED"
	EventOfferNotified = "OFFER_NOTIFIED"
	EventOfferAdvanced = "OFFER_ADVANCED"
	EventOfferAccepted = "OFFER_ACCEPTED"
	EventOfferDeclined = "OFFER_DECLINED"
	EventSimRun        = "SIM_RUN"
)

// AuditEvent is a best-effort audit trail row. Writes may fail without
// affecting the primary operation.
type AuditEvent struct {
	EventID string `gorm:"primaryKey;type:text"` // "EVT-" + UUID.

	Type     string         `gorm:"type:text;not null;index"` // One of the Event* constants.
	EntityID string         `gorm:"type:text;not null;index"` // Offer or booking identifier.
	Payload  datatypes.JSON `gorm:"type:json"`                // Event-specific details.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
