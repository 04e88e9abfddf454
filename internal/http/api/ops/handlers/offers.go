package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/skylith/reoffer/internal/events"
	"github.com/skylith/reoffer/internal/finder"
	"github.com/skylith/reoffer/internal/models"
	"github.com/skylith/reoffer/internal/notify"
	"github.com/skylith/reoffer/internal/offer"
	"github.com/skylith/reoffer/internal/scoring"
	log "github.com/sirupsen/logrus"
)

// OfferOpsHandler handles offer creation and inspection for operations.
type OfferOpsHandler struct {
	store    offer.Store
	issuer   *offer.Issuer
	find     finder.Finder
	notifier notify.Notifier
	audit    *events.Recorder
}

// NewOfferOpsHandler constructs an OfferOpsHandler.
func NewOfferOpsHandler(store offer.Store, issuer *offer.Issuer, find finder.Finder, notifier notify.Notifier, audit *events.Recorder) *OfferOpsHandler {
	return &OfferOpsHandler{store: store, issuer: issuer, find: find, notifier: notifier, audit: audit}
}

// createOfferRequest defines the request body for offer creation.
type createOfferRequest struct {
	SubjectID  string          `json:"subjectId"`
	BookingRef string          `json:"bookingRef"`
	Email      string          `json:"email"`
	Options    []models.Option `json:"options"`
}

// Create ranks the supplied options, issues an offer, and dispatches the
// link to the traveller.
func (h *OfferOpsHandler) Create(c *gin.Context) {
	var body createOfferRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(body.SubjectID) == "" || strings.TrimSpace(body.BookingRef) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "subjectId and bookingRef are required"})
		return
	}

	ranked := scoring.Rank(body.Options)
	issued, errCreate := h.issuer.CreateOffer(c.Request.Context(), body.SubjectID, body.BookingRef, ranked)
	if errCreate != nil {
		if errors.Is(errCreate, offer.ErrStoreUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily unavailable"})
			return
		}
		log.WithError(errCreate).Error("offer creation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "offer creation failed"})
		return
	}

	hasOptions := issued.Offer.Status == models.StatusPending
	notified := h.dispatch(c.Request.Context(), issued, body.Email, hasOptions)

	c.JSON(http.StatusOK, gin.H{
		"offerId":    issued.Offer.OfferID,
		"link":       issued.Link,
		"status":     issued.Offer.Status,
		"hasOptions": hasOptions,
		"notified":   notified,
	})
}

// Simulate runs the disruption pipeline for a flight: find impacted
// bookings, rank their options, issue offers, dispatch links.
func (h *OfferOpsHandler) Simulate(c *gin.Context) {
	flightNo := strings.TrimSpace(c.Param("flightNo"))
	if flightNo == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "flightNo is required"})
		return
	}

	bookings, errFind := h.find.ImpactedBookings(c.Request.Context(), flightNo)
	if errFind != nil {
		log.WithError(errFind).Error("impacted booking lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "finder failed"})
		return
	}

	results := make([]gin.H, 0, len(bookings))
	for _, booking := range bookings {
		ranked := scoring.Rank(booking.Options)
		issued, errCreate := h.issuer.CreateOffer(c.Request.Context(), booking.SubjectID, booking.BookingRef, ranked)
		if errCreate != nil {
			log.WithError(errCreate).WithField("booking_ref", booking.BookingRef).Error("offer creation failed")
			results = append(results, gin.H{"bookingRef": booking.BookingRef, "error": "offer creation failed"})
			continue
		}

		hasOptions := issued.Offer.Status == models.StatusPending
		notified := h.dispatch(c.Request.Context(), issued, booking.Email, hasOptions)
		results = append(results, gin.H{
			"bookingRef": booking.BookingRef,
			"offerId":    issued.Offer.OfferID,
			"link":       issued.Link,
			"status":     issued.Offer.Status,
			"notified":   notified,
		})
	}

	h.audit.Record(c.Request.Context(), models.EventSimRun, flightNo, map[string]any{
		"bookings": len(bookings),
	})
	c.JSON(http.StatusOK, gin.H{"flightNo": flightNo, "offers": results})
}

// Get returns the raw offer record for support inspection.
func (h *OfferOpsHandler) Get(c *gin.Context) {
	offerID := strings.TrimSpace(c.Param("offerId"))
	o, errGet := h.store.GetByID(c.Request.Context(), offerID)
	if errGet != nil {
		if errors.Is(errGet, offer.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "offer not found"})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily unavailable"})
		return
	}

	opts, errDecode := o.DecodeOptions()
	if errDecode != nil {
		log.WithError(errDecode).Error("stored options undecodable")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"offerId":      o.OfferID,
		"subjectId":    o.SubjectID,
		"bookingRef":   o.BookingRef,
		"status":       o.DerivedStatus(time.Now().UTC()),
		"cursor":       o.Cursor,
		"optionsCount": len(opts),
		"expiresAt":    o.ExpiresAt,
		"createdAt":    o.CreatedAt,
	})
}

// dispatch sends the offer link when the offer has options and a contact is
// known. Delivery failures are logged, never surfaced: notification is an
// auxiliary effect of issuance.
func (h *OfferOpsHandler) dispatch(ctx context.Context, issued *offer.Issued, email string, hasOptions bool) bool {
	if !hasOptions || strings.TrimSpace(email) == "" {
		return false
	}

	msg := notify.Message{
		To:      email,
		Subject: "Your rebooking options are ready",
		Body:    "We found new options for your disrupted flight. Review and respond: " + issued.Link + " (the link expires automatically).",
		Link:    issued.Link,
		OfferID: issued.Offer.OfferID,
	}
	messageID, errSend := h.notifier.Send(ctx, msg)
	if errSend != nil {
		log.WithError(errSend).WithField("offer_id", issued.Offer.OfferID).Warn("offer notification failed")
		return false
	}

	h.audit.Record(ctx, models.EventOfferNotified, issued.Offer.OfferID, map[string]any{
		"email":     email,
		"messageId": messageID,
	})
	return true
}
