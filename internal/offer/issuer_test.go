package offer

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/skylith/reoffer/internal/models"
	"github.com/skylith/reoffer/internal/security"
)

func issuerFixture(t *testing.T) (*Issuer, *GormStore, *security.Signer) {
	t.Helper()

	signer, errNew := security.NewSigner("issuer-test-secret")
	if errNew != nil {
		t.Fatalf("new signer: %v", errNew)
	}
	store := NewGormStore(setupOfferTestDB(t))
	issuer := NewIssuer(store, signer, nil, time.Hour, "https://offers.example.com/offer")
	return issuer, store, signer
}

func TestIssuerCreatesPendingOfferWithVerifiableLink(t *testing.T) {
	t.Parallel()

	issuer, store, signer := issuerFixture(t)
	ctx := context.Background()

	options := []models.Option{
		{FlightNo: "AB456", Score: 90},
		{FlightNo: "AB789", Score: 70},
	}
	issued, errCreate := issuer.CreateOffer(ctx, "PAX-001", "PNR-AB123-001", options)
	if errCreate != nil {
		t.Fatalf("create: %v", errCreate)
	}

	o := issued.Offer
	if o.Status != models.StatusPending {
		t.Fatalf("status = %s, want PENDING", o.Status)
	}
	if o.Cursor == nil || *o.Cursor != 0 {
		t.Fatalf("cursor = %v, want 0", o.Cursor)
	}

	parsed, errParse := url.Parse(issued.Link)
	if errParse != nil {
		t.Fatalf("parse link: %v", errParse)
	}
	q := parsed.Query()
	if q.Get("offerId") != o.OfferID || q.Get("token") != o.Token {
		t.Fatalf("link parameters do not match the record: %s", issued.Link)
	}
	exp, errExp := strconv.ParseInt(q.Get("exp"), 10, 64)
	if errExp != nil {
		t.Fatalf("parse exp: %v", errExp)
	}
	if exp != o.ExpiresAt {
		t.Fatalf("link exp = %d, stored %d", exp, o.ExpiresAt)
	}
	if !signer.Verify(q.Get("token"), q.Get("offerId"), exp, q.Get("sig")) {
		t.Fatalf("link signature does not verify")
	}

	stored, errGet := store.GetByID(ctx, o.OfferID)
	if errGet != nil {
		t.Fatalf("get: %v", errGet)
	}
	if stored.Token != o.Token || stored.ExpiresAt != o.ExpiresAt {
		t.Fatalf("stored record diverges from issued offer")
	}
}

func TestIssuerEmptyOptionsYieldNoOptionsStatus(t *testing.T) {
	t.Parallel()

	issuer, _, _ := issuerFixture(t)

	issued, errCreate := issuer.CreateOffer(context.Background(), "PAX-002", "PNR-AB123-002", nil)
	if errCreate != nil {
		t.Fatalf("create: %v", errCreate)
	}
	if issued.Offer.Status != models.StatusNoOptions {
		t.Fatalf("status = %s, want NO_OPTIONS", issued.Offer.Status)
	}
	if issued.Offer.Cursor != nil {
		t.Fatalf("cursor = %v, want nil", issued.Offer.Cursor)
	}
}

func TestIssuerRequiresSubjectAndBooking(t *testing.T) {
	t.Parallel()

	issuer, _, _ := issuerFixture(t)

	if _, err := issuer.CreateOffer(context.Background(), "", "PNR-1", nil); err == nil {
		t.Fatalf("expected error for missing subject")
	}
	if _, err := issuer.CreateOffer(context.Background(), "PAX-1", "", nil); err == nil {
		t.Fatalf("expected error for missing booking ref")
	}
}

func TestIssuerGeneratesDistinctCredentials(t *testing.T) {
	t.Parallel()

	issuer, _, _ := issuerFixture(t)
	ctx := context.Background()

	first, errFirst := issuer.CreateOffer(ctx, "PAX-003", "PNR-1", nil)
	if errFirst != nil {
		t.Fatalf("first create: %v", errFirst)
	}
	second, errSecond := issuer.CreateOffer(ctx, "PAX-003", "PNR-1", nil)
	if errSecond != nil {
		t.Fatalf("second create: %v", errSecond)
	}
	if first.Offer.OfferID == second.Offer.OfferID {
		t.Fatalf("duplicate offer ids issued")
	}
	if first.Offer.Token == second.Offer.Token {
		t.Fatalf("duplicate tokens issued")
	}
}

// collidingStore fails the first n inserts with ErrAlreadyExists and records
// every attempted offer. Reads are never reached in the issuance path.
type collidingStore struct {
	Store
	collisions int
	attempts   []*models.Offer
}

func (s *collidingStore) InsertIfAbsent(_ context.Context, o *models.Offer) error {
	s.attempts = append(s.attempts, o)
	if s.collisions > 0 {
		s.collisions--
		return ErrAlreadyExists
	}
	return nil
}

func TestIssuerRegeneratesCredentialsOnIDCollision(t *testing.T) {
	t.Parallel()

	signer, errNew := security.NewSigner("issuer-test-secret")
	if errNew != nil {
		t.Fatalf("new signer: %v", errNew)
	}
	store := &collidingStore{collisions: 1}
	issuer := NewIssuer(store, signer, nil, time.Hour, "https://offers.example.com/offer")

	issued, errCreate := issuer.CreateOffer(context.Background(), "PAX-001", "PNR-1", nil)
	if errCreate != nil {
		t.Fatalf("create: %v", errCreate)
	}
	if len(store.attempts) != 2 {
		t.Fatalf("insert attempts = %d, want 2", len(store.attempts))
	}
	if store.attempts[0].OfferID == store.attempts[1].OfferID {
		t.Fatalf("retry reused the colliding offer id")
	}
	if store.attempts[0].Token == store.attempts[1].Token {
		t.Fatalf("retry reused the colliding token")
	}
	if issued.Offer.OfferID != store.attempts[1].OfferID {
		t.Fatalf("issued offer is not the retried record")
	}
}

func TestIssuerGivesUpAfterSecondCollision(t *testing.T) {
	t.Parallel()

	signer, errNew := security.NewSigner("issuer-test-secret")
	if errNew != nil {
		t.Fatalf("new signer: %v", errNew)
	}
	store := &collidingStore{collisions: 2}
	issuer := NewIssuer(store, signer, nil, time.Hour, "https://offers.example.com/offer")

	_, errCreate := issuer.CreateOffer(context.Background(), "PAX-001", "PNR-1", nil)
	if !errors.Is(errCreate, ErrAlreadyExists) {
		t.Fatalf("create: got %v, want ErrAlreadyExists", errCreate)
	}
	if len(store.attempts) != 2 {
		t.Fatalf("insert attempts = %d, want 2", len(store.attempts))
	}
}
