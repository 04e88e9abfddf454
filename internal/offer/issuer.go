package offer

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/skylith/reoffer/internal/events"
	"github.com/skylith/reoffer/internal/models"
	"github.com/skylith/reoffer/internal/security"
)

// Issuer composes new offer records and their public links.
type Issuer struct {
	store   Store
	signer  *security.Signer
	audit   *events.Recorder
	ttl     time.Duration
	baseURL string
}

// NewIssuer constructs an Issuer.
func NewIssuer(store Store, signer *security.Signer, audit *events.Recorder, ttl time.Duration, baseURL string) *Issuer {
	return &Issuer{store: store, signer: signer, audit: audit, ttl: ttl, baseURL: baseURL}
}

// Issued is the result of creating an offer.
type Issued struct {
	Offer *models.Offer
	Link  string // Public link embedding offerId, token, sig, exp.
}

// CreateOffer mints a new offer for the subject with the given ranked
// options and persists it with a conditional insert. An id collision is
// practically unreachable at this entropy, but a colliding insert is
// regenerated and retried once before failing.
func (i *Issuer) CreateOffer(ctx context.Context, subjectID, bookingRef string, options []models.Option) (*Issued, error) {
	if subjectID == "" || bookingRef == "" {
		return nil, fmt.Errorf("%w: subjectID and bookingRef are required", ErrBadRequest)
	}

	encoded, errEncode := models.EncodeOptions(options)
	if errEncode != nil {
		return nil, errEncode
	}

	now := time.Now().UTC()
	expiresAt := now.Add(i.ttl).Unix()

	status := models.StatusPending
	var cursor *int
	if len(options) == 0 {
		status = models.StatusNoOptions
	} else {
		zero := 0
		cursor = &zero
	}

	var o *models.Offer
	for attempt := 0; attempt < 2; attempt++ {
		offerID := "OFR-" + uuid.NewString()
		token, errToken := security.GenerateToken()
		if errToken != nil {
			return nil, errToken
		}

		candidate := &models.Offer{
			OfferID:    offerID,
			SubjectID:  subjectID,
			BookingRef: bookingRef,
			Options:    encoded,
			Cursor:     cursor,
			Status:     status,
			Token:      token,
			Signature:  i.signer.Sign(token, offerID, expiresAt),
			ExpiresAt:  expiresAt,
		}

		errInsert := withStoreRetry(ctx, func() error {
			return i.store.InsertIfAbsent(ctx, candidate)
		})
		if errInsert == nil {
			o = candidate
			break
		}
		if !errors.Is(errInsert, ErrAlreadyExists) {
			return nil, errInsert
		}
		if attempt == 1 {
			return nil, fmt.Errorf("create offer: %w after retry", ErrAlreadyExists)
		}
	}

	i.audit.Record(ctx, models.EventOfferCreated, o.OfferID, map[string]any{
		"subjectId":  subjectID,
		"bookingRef": bookingRef,
		"hasOptions": len(options) > 0,
	})

	return &Issued{Offer: o, Link: i.Link(o)}, nil
}

// Link renders the public link for an offer as a query-style encoding of
// the four authority parameters.
func (i *Issuer) Link(o *models.Offer) string {
	params := url.Values{}
	params.Set("offerId", o.OfferID)
	params.Set("token", o.Token)
	params.Set("sig", o.Signature)
	params.Set("exp", strconv.FormatInt(o.ExpiresAt, 10))
	return i.baseURL + "?" + params.Encode()
}
