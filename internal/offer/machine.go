package offer

import (
	"context"
	"errors"
	"time"

	"github.com/skylith/reoffer/internal/events"
	"github.com/skylith/reoffer/internal/models"
)

// Machine applies decision transitions to authorized offers. It holds no
// state between requests; every transition is a conditional write against
// the store, so concurrent or duplicate requests for the same offer resolve
// to exactly one effective transition.
type Machine struct {
	store Store
	audit *events.Recorder
}

// NewMachine constructs a Machine.
func NewMachine(store Store, audit *events.Recorder) *Machine {
	return &Machine{store: store, audit: audit}
}

// PublicView is the read projection exposed to the link holder.
type PublicView struct {
	OfferID       string         `json:"offerId"`
	Status        string         `json:"status"`
	Cursor        *int           `json:"cursor"`
	CurrentOption *models.Option `json:"currentOption,omitempty"`
	OptionsCount  int            `json:"optionsCount"`
	ExpiresAt     int64          `json:"expiresAt"`
}

// Decision is the result of an accept or decline.
type Decision struct {
	OfferID string         `json:"offerId"`
	Status  string         `json:"status"`
	Option  *models.Option `json:"option,omitempty"` // The option in effect when accepted.
}

// Read projects an offer into its public view. No side effects.
func (m *Machine) Read(o *models.Offer, now time.Time) (*PublicView, error) {
	opts, err := o.DecodeOptions()
	if err != nil {
		return nil, err
	}

	view := &PublicView{
		OfferID:      o.OfferID,
		Status:       o.DerivedStatus(now),
		Cursor:       o.Cursor,
		OptionsCount: len(opts),
		ExpiresAt:    o.ExpiresAt,
	}
	if o.Cursor != nil && *o.Cursor < len(opts) {
		opt := opts[*o.Cursor]
		view.CurrentOption = &opt
	}
	return view, nil
}

// Advance moves the cursor to the next option. The write is conditioned on
// the status and cursor observed at read time, so a double-submitted request
// can never skip a position: one call advances, the other either lands on
// the same retried advance or fails. Past the last option the call fails
// with ErrNoMoreOptions and the record is untouched.
func (m *Machine) Advance(ctx context.Context, o *models.Offer, now time.Time) (int, error) {
	for attempt := 0; ; attempt++ {
		if o.Status != models.StatusPending {
			return 0, ErrConflict
		}
		if o.Expired(now) {
			return 0, ErrExpired
		}
		if o.Cursor == nil {
			return 0, ErrConflict
		}

		opts, errDecode := o.DecodeOptions()
		if errDecode != nil {
			return 0, errDecode
		}

		observed := *o.Cursor
		next := observed + 1
		if next >= len(opts) {
			return 0, ErrNoMoreOptions
		}

		errUpdate := withStoreRetry(ctx, func() error {
			return m.store.ConditionalUpdate(ctx, o.OfferID, models.StatusPending, &observed, map[string]any{
				"cursor": next,
			})
		})
		if errUpdate == nil {
			m.audit.Record(ctx, models.EventOfferAdvanced, o.OfferID, map[string]any{"cursor": next})
			return next, nil
		}
		if !errors.Is(errUpdate, ErrConditionFailed) {
			return 0, errUpdate
		}
		if attempt >= 1 {
			return 0, ErrConflict
		}

		fresh, errReload := m.reload(ctx, o.OfferID)
		if errReload != nil {
			return 0, errReload
		}
		o = fresh
	}
}

// Accept transitions PENDING to ACCEPTED. A repeated accept that finds the
// offer already ACCEPTED returns the same confirmation; any other settled
// state is a conflict.
func (m *Machine) Accept(ctx context.Context, o *models.Offer, now time.Time) (*Decision, error) {
	return m.decide(ctx, o, now, models.StatusAccepted, models.EventOfferAccepted)
}

// Decline transitions PENDING to DECLINED, under the same conditional-write
// discipline as Accept.
func (m *Machine) Decline(ctx context.Context, o *models.Offer, now time.Time) (*Decision, error) {
	return m.decide(ctx, o, now, models.StatusDeclined, models.EventOfferDeclined)
}

func (m *Machine) decide(ctx context.Context, o *models.Offer, now time.Time, target, eventType string) (*Decision, error) {
	for attempt := 0; ; attempt++ {
		switch o.Status {
		case target:
			// Retried decision observing its own prior success.
			return m.confirmation(o, target)
		case models.StatusAccepted, models.StatusDeclined, models.StatusNoOptions:
			return nil, ErrConflict
		}
		if o.Expired(now) {
			return nil, ErrExpired
		}

		errUpdate := withStoreRetry(ctx, func() error {
			return m.store.ConditionalUpdate(ctx, o.OfferID, models.StatusPending, nil, map[string]any{
				"status": target,
			})
		})
		if errUpdate == nil {
			m.audit.Record(ctx, eventType, o.OfferID, map[string]any{"status": target})
			o.Status = target
			return m.confirmation(o, target)
		}
		if !errors.Is(errUpdate, ErrConditionFailed) {
			return nil, errUpdate
		}
		if attempt >= 1 {
			return nil, ErrConflict
		}

		fresh, errReload := m.reload(ctx, o.OfferID)
		if errReload != nil {
			return nil, errReload
		}
		o = fresh
	}
}

func (m *Machine) confirmation(o *models.Offer, status string) (*Decision, error) {
	decision := &Decision{OfferID: o.OfferID, Status: status}
	if status == models.StatusAccepted && o.Cursor != nil {
		opts, errDecode := o.DecodeOptions()
		if errDecode != nil {
			return nil, errDecode
		}
		if *o.Cursor < len(opts) {
			opt := opts[*o.Cursor]
			decision.Option = &opt
		}
	}
	return decision, nil
}

func (m *Machine) reload(ctx context.Context, offerID string) (*models.Offer, error) {
	var fresh *models.Offer
	err := withStoreRetry(ctx, func() error {
		loaded, errGet := m.store.GetByID(ctx, offerID)
		if errGet != nil {
			return errGet
		}
		fresh = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fresh, nil
}
