package events

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/skylith/reoffer/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Recorder writes audit event rows. All writes are best-effort: a failed
// audit write is logged and swallowed so it can never fail the primary
// operation it describes.
type Recorder struct {
	db *gorm.DB
}

// NewRecorder constructs a Recorder.
func NewRecorder(db *gorm.DB) *Recorder {
	if db == nil {
		return nil
	}
	return &Recorder{db: db}
}

// Record persists one audit event. Safe on a nil receiver.
func (r *Recorder) Record(ctx context.Context, eventType, entityID string, payload map[string]any) {
	if r == nil {
		return
	}

	var raw datatypes.JSON
	if len(payload) > 0 {
		data, errMarshal := json.Marshal(payload)
		if errMarshal != nil {
			log.WithError(errMarshal).WithField("type", eventType).Warn("encode audit payload failed")
		} else {
			raw = datatypes.JSON(data)
		}
	}

	event := models.AuditEvent{
		EventID:  "EVT-" + uuid.NewString(),
		Type:     eventType,
		EntityID: entityID,
		Payload:  raw,
	}
	if errCreate := r.db.WithContext(ctx).Create(&event).Error; errCreate != nil {
		log.WithError(errCreate).WithFields(log.Fields{
			"type":      eventType,
			"entity_id": entityID,
		}).Warn("audit event write failed")
	}
}
