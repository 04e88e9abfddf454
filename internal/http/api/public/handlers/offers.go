package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/skylith/reoffer/internal/models"
	"github.com/skylith/reoffer/internal/offer"
	log "github.com/sirupsen/logrus"
)

// OfferHandler serves the unauthenticated signed-link surface. Every route
// authorizes the link credentials before touching the state machine.
type OfferHandler struct {
	store   offer.Store
	guard   *offer.Guard
	machine *offer.Machine
}

// NewOfferHandler constructs an OfferHandler.
func NewOfferHandler(store offer.Store, guard *offer.Guard, machine *offer.Machine) *OfferHandler {
	return &OfferHandler{store: store, guard: guard, machine: machine}
}

// Get returns the public view of the offer.
func (h *OfferHandler) Get(c *gin.Context) {
	o, now, ok := h.authorize(c)
	if !ok {
		return
	}

	view, errRead := h.machine.Read(o, now)
	if errRead != nil {
		respondError(c, errRead)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Next advances the cursor to the following option.
func (h *OfferHandler) Next(c *gin.Context) {
	o, now, ok := h.authorize(c)
	if !ok {
		return
	}

	cursor, errAdvance := h.machine.Advance(c.Request.Context(), o, now)
	if errAdvance != nil {
		respondError(c, errAdvance)
		return
	}
	c.JSON(http.StatusOK, gin.H{"offerId": o.OfferID, "cursor": cursor})
}

// Accept records the traveller's acceptance of the presented option.
func (h *OfferHandler) Accept(c *gin.Context) {
	o, now, ok := h.authorize(c)
	if !ok {
		return
	}

	decision, errAccept := h.machine.Accept(c.Request.Context(), o, now)
	if errAccept != nil {
		respondError(c, errAccept)
		return
	}
	c.JSON(http.StatusOK, decision)
}

// Decline records the traveller's decline of the whole offer.
func (h *OfferHandler) Decline(c *gin.Context) {
	o, now, ok := h.authorize(c)
	if !ok {
		return
	}

	decision, errDecline := h.machine.Decline(c.Request.Context(), o, now)
	if errDecline != nil {
		respondError(c, errDecline)
		return
	}
	c.JSON(http.StatusOK, decision)
}

// authorize extracts the link credentials, loads the record, and runs the
// guard. On failure it writes the response and returns ok=false.
func (h *OfferHandler) authorize(c *gin.Context) (*models.Offer, time.Time, bool) {
	now := time.Now().UTC()

	creds := offer.Credentials{
		Token:   strings.TrimSpace(c.Param("token")),
		OfferID: strings.TrimSpace(c.Query("offerId")),
		Exp:     strings.TrimSpace(c.Query("exp")),
		Sig:     strings.TrimSpace(c.Query("sig")),
	}
	// Links may also carry the token in the query; the path copy is for
	// human readability and is never authoritative on its own.
	if creds.Token == "" {
		creds.Token = strings.TrimSpace(c.Query("token"))
	}
	if creds.Token == "" || creds.OfferID == "" {
		respondError(c, offer.ErrBadRequest)
		return nil, now, false
	}

	o, errGet := h.store.GetByID(c.Request.Context(), creds.OfferID)
	if errGet != nil {
		respondError(c, errGet)
		return nil, now, false
	}

	if errAuth := h.guard.Authorize(o, creds, now); errAuth != nil {
		respondError(c, errAuth)
		return nil, now, false
	}
	return o, now, true
}

// respondError maps the offer error taxonomy onto HTTP statuses. Anything
// outside the taxonomy reduces to a generic 500.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, offer.ErrBadRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid link parameters"})
	case errors.Is(err, offer.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "offer not found"})
	case errors.Is(err, offer.ErrExpired):
		c.JSON(http.StatusForbidden, gin.H{"error": "link expired"})
	case errors.Is(err, offer.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, offer.ErrNoMoreOptions):
		c.JSON(http.StatusGone, gin.H{"error": "no more options"})
	case errors.Is(err, offer.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "offer already settled"})
	case errors.Is(err, offer.ErrStoreUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily unavailable"})
	default:
		log.WithError(err).Error("offer request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
