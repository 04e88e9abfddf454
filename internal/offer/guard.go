package offer

import (
	"strconv"
	"strings"
	"time"

	"github.com/skylith/reoffer/internal/models"
	"github.com/skylith/reoffer/internal/security"
	"github.com/skylith/reoffer/internal/util"
	log "github.com/sirupsen/logrus"
)

// Credentials carries the raw link parameters supplied by a request. All
// authority derives from these four values jointly; the path segment the
// token rides in is convenience only.
type Credentials struct {
	Token   string
	OfferID string
	Exp     string // Decimal UNIX epoch seconds, as carried in the link.
	Sig     string
}

// Guard validates inbound link credentials against a loaded offer record.
type Guard struct {
	signer *security.Signer
}

// NewGuard constructs a Guard around the link signer.
func NewGuard(signer *security.Signer) *Guard {
	return &Guard{signer: signer}
}

// Authorize checks the supplied credentials against the offer record,
// short-circuiting on the first failure:
//
//  1. exp parses as a non-negative integer, else ErrBadRequest;
//  2. now is within the stated expiry, else ErrExpired;
//  3. the stated expiry equals the stored one, else ErrExpired (a client
//     must not be able to extend its own validity window);
//  4. the token matches the stored secret (constant time), else ErrForbidden;
//  5. the signature verifies, else ErrForbidden.
//
// Token and signature failures map to the same response class; only the
// internal log distinguishes them.
func (g *Guard) Authorize(o *models.Offer, creds Credentials, now time.Time) error {
	if strings.TrimSpace(creds.Token) == "" || strings.TrimSpace(creds.OfferID) == "" ||
		strings.TrimSpace(creds.Exp) == "" || strings.TrimSpace(creds.Sig) == "" {
		return ErrBadRequest
	}

	exp, errParse := strconv.ParseInt(creds.Exp, 10, 64)
	if errParse != nil || exp < 0 {
		return ErrBadRequest
	}
	if now.Unix() > exp {
		return ErrExpired
	}
	if exp != o.ExpiresAt {
		log.WithFields(log.Fields{
			"offer_id": o.OfferID,
			"exp":      exp,
		}).Warn("link expiry does not match stored offer expiry")
		return ErrExpired
	}

	if !security.TokensEqual(creds.Token, o.Token) {
		log.WithFields(log.Fields{
			"offer_id": o.OfferID,
			"token":    util.MaskToken(creds.Token),
		}).Warn("offer token mismatch")
		return ErrForbidden
	}

	if !g.signer.Verify(creds.Token, o.OfferID, exp, creds.Sig) {
		log.WithField("offer_id", o.OfferID).Warn("offer signature mismatch")
		return ErrForbidden
	}

	return nil
}
