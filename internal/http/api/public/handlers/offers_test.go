package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/skylith/reoffer/internal/models"
	"github.com/skylith/reoffer/internal/offer"
	"github.com/skylith/reoffer/internal/security"
	"gorm.io/gorm"
)

func setupOfferAPI(t *testing.T) (*gin.Engine, *offer.Issuer, *security.Signer) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:offer_api_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.AutoMigrate(&models.Offer{}, &models.AuditEvent{}); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}

	signer, errSigner := security.NewSigner("api-test-secret")
	if errSigner != nil {
		t.Fatalf("new signer: %v", errSigner)
	}

	store := offer.NewGormStore(db)
	guard := offer.NewGuard(signer)
	machine := offer.NewMachine(store, nil)
	issuer := offer.NewIssuer(store, signer, nil, time.Hour, "https://offers.example.com/offer")

	r := gin.New()
	h := NewOfferHandler(store, guard, machine)
	r.GET("/offer/:token", h.Get)
	r.POST("/offer/:token/next", h.Next)
	r.POST("/offer/:token/accept", h.Accept)
	r.POST("/offer/:token/decline", h.Decline)

	return r, issuer, signer
}

// linkQuery extracts the credential query string from an issued link.
func linkQuery(t *testing.T, link string) (token string, query string) {
	t.Helper()
	parsed, errParse := url.Parse(link)
	if errParse != nil {
		t.Fatalf("parse link: %v", errParse)
	}
	return parsed.Query().Get("token"), parsed.RawQuery
}

func doRequest(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return body
}

func TestOfferLinkWalkthrough(t *testing.T) {
	t.Parallel()

	r, issuer, _ := setupOfferAPI(t)

	issued, errCreate := issuer.CreateOffer(context.Background(), "PAX-001", "PNR-AB123-001", []models.Option{
		{FlightNo: "AB456", Score: 90},
		{FlightNo: "AB789", Score: 70},
	})
	if errCreate != nil {
		t.Fatalf("create offer: %v", errCreate)
	}
	token, query := linkQuery(t, issued.Link)

	// Fresh offer presents the first option.
	w := doRequest(r, http.MethodGet, "/offer/"+token+"?"+query)
	if w.Code != http.StatusOK {
		t.Fatalf("GET = %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["status"] != models.StatusPending {
		t.Fatalf("status = %v, want PENDING", body["status"])
	}
	if opt, _ := body["currentOption"].(map[string]any); opt == nil || opt["flightNo"] != "AB456" {
		t.Fatalf("currentOption = %v, want AB456", body["currentOption"])
	}

	// Advance moves to the second option.
	w = doRequest(r, http.MethodPost, "/offer/"+token+"/next?"+query)
	if w.Code != http.StatusOK {
		t.Fatalf("POST next = %d: %s", w.Code, w.Body.String())
	}
	if body = decodeBody(t, w); body["cursor"] != float64(1) {
		t.Fatalf("cursor = %v, want 1", body["cursor"])
	}

	w = doRequest(r, http.MethodGet, "/offer/"+token+"?"+query)
	if body = decodeBody(t, w); body["currentOption"].(map[string]any)["flightNo"] != "AB789" {
		t.Fatalf("currentOption = %v, want AB789", body["currentOption"])
	}

	// Past the last option the advance fails and the offer stays decidable.
	w = doRequest(r, http.MethodPost, "/offer/"+token+"/next?"+query)
	if w.Code != http.StatusGone {
		t.Fatalf("POST next past end = %d, want 410", w.Code)
	}

	w = doRequest(r, http.MethodPost, "/offer/"+token+"/accept?"+query)
	if w.Code != http.StatusOK {
		t.Fatalf("POST accept = %d: %s", w.Code, w.Body.String())
	}
	if body = decodeBody(t, w); body["status"] != models.StatusAccepted {
		t.Fatalf("accept status = %v, want ACCEPTED", body["status"])
	}

	// The opposite decision afterwards is a conflict.
	w = doRequest(r, http.MethodPost, "/offer/"+token+"/decline?"+query)
	if w.Code != http.StatusConflict {
		t.Fatalf("POST decline after accept = %d, want 409", w.Code)
	}

	// A retried accept replays the confirmation.
	w = doRequest(r, http.MethodPost, "/offer/"+token+"/accept?"+query)
	if w.Code != http.StatusOK {
		t.Fatalf("repeat accept = %d, want 200", w.Code)
	}
}

func TestOfferEmptyOptionsRejectsActions(t *testing.T) {
	t.Parallel()

	r, issuer, _ := setupOfferAPI(t)

	issued, errCreate := issuer.CreateOffer(context.Background(), "PAX-002", "PNR-AB123-002", nil)
	if errCreate != nil {
		t.Fatalf("create offer: %v", errCreate)
	}
	token, query := linkQuery(t, issued.Link)

	w := doRequest(r, http.MethodGet, "/offer/"+token+"?"+query)
	if w.Code != http.StatusOK {
		t.Fatalf("GET = %d", w.Code)
	}
	if body := decodeBody(t, w); body["status"] != models.StatusNoOptions {
		t.Fatalf("status = %v, want NO_OPTIONS", body["status"])
	}

	for _, action := range []string{"next", "accept", "decline"} {
		w = doRequest(r, http.MethodPost, "/offer/"+token+"/"+action+"?"+query)
		if w.Code != http.StatusConflict {
			t.Fatalf("POST %s = %d, want 409", action, w.Code)
		}
	}
}

func TestOfferExpiredLinkRejectedEverywhere(t *testing.T) {
	t.Parallel()

	r, issuer, signer := setupOfferAPI(t)

	issued, errCreate := issuer.CreateOffer(context.Background(), "PAX-003", "PNR-AB123-003", []models.Option{
		{FlightNo: "AB456"},
	})
	if errCreate != nil {
		t.Fatalf("create offer: %v", errCreate)
	}
	o := issued.Offer

	// Re-sign an already-past expiry: the signature itself is valid, the
	// window is not. Every route rejects, reads included.
	pastExp := time.Now().Add(-time.Minute).Unix()
	query := url.Values{}
	query.Set("offerId", o.OfferID)
	query.Set("token", o.Token)
	query.Set("exp", strconv.FormatInt(pastExp, 10))
	query.Set("sig", signer.Sign(o.Token, o.OfferID, pastExp))

	for _, route := range []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/offer/" + o.Token},
		{http.MethodPost, "/offer/" + o.Token + "/next"},
		{http.MethodPost, "/offer/" + o.Token + "/accept"},
		{http.MethodPost, "/offer/" + o.Token + "/decline"},
	} {
		w := doRequest(r, route.method, route.path+"?"+query.Encode())
		if w.Code != http.StatusForbidden {
			t.Fatalf("%s %s = %d, want 403", route.method, route.path, w.Code)
		}
		if body := decodeBody(t, w); body["error"] != "link expired" {
			t.Fatalf("%s %s error = %v, want link expired", route.method, route.path, body["error"])
		}
	}
}

func TestOfferForgedCredentialsShareOneResponse(t *testing.T) {
	t.Parallel()

	r, issuer, signer := setupOfferAPI(t)

	issued, errCreate := issuer.CreateOffer(context.Background(), "PAX-004", "PNR-AB123-004", []models.Option{
		{FlightNo: "AB456"},
	})
	if errCreate != nil {
		t.Fatalf("create offer: %v", errCreate)
	}
	o := issued.Offer
	token, query := linkQuery(t, issued.Link)

	// Wrong token, valid-looking signature for it.
	forged := url.Values{}
	forged.Set("offerId", o.OfferID)
	forged.Set("token", "tok-forged")
	forged.Set("exp", strconv.FormatInt(o.ExpiresAt, 10))
	forged.Set("sig", signer.Sign("tok-forged", o.OfferID, o.ExpiresAt))

	wToken := doRequest(r, http.MethodGet, "/offer/tok-forged?"+forged.Encode())
	if wToken.Code != http.StatusForbidden {
		t.Fatalf("forged token = %d, want 403", wToken.Code)
	}

	// Right token, wrong signature.
	tampered, _ := url.ParseQuery(query)
	tampered.Set("sig", "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")
	wSig := doRequest(r, http.MethodGet, "/offer/"+token+"?"+tampered.Encode())
	if wSig.Code != http.StatusForbidden {
		t.Fatalf("forged signature = %d, want 403", wSig.Code)
	}

	// The two failure modes must be indistinguishable to the caller.
	if decodeBody(t, wToken)["error"] != decodeBody(t, wSig)["error"] {
		t.Fatalf("token and signature failures expose different responses")
	}
}

func TestOfferMalformedAndUnknownRequests(t *testing.T) {
	t.Parallel()

	r, issuer, _ := setupOfferAPI(t)

	issued, errCreate := issuer.CreateOffer(context.Background(), "PAX-005", "PNR-AB123-005", []models.Option{
		{FlightNo: "AB456"},
	})
	if errCreate != nil {
		t.Fatalf("create offer: %v", errCreate)
	}
	token, query := linkQuery(t, issued.Link)

	// Missing exp.
	trimmed, _ := url.ParseQuery(query)
	trimmed.Del("exp")
	if w := doRequest(r, http.MethodGet, "/offer/"+token+"?"+trimmed.Encode()); w.Code != http.StatusBadRequest {
		t.Fatalf("missing exp = %d, want 400", w.Code)
	}

	// Non-numeric exp.
	bad, _ := url.ParseQuery(query)
	bad.Set("exp", "soon")
	if w := doRequest(r, http.MethodGet, "/offer/"+token+"?"+bad.Encode()); w.Code != http.StatusBadRequest {
		t.Fatalf("non-numeric exp = %d, want 400", w.Code)
	}

	// Missing offerId.
	noID, _ := url.ParseQuery(query)
	noID.Del("offerId")
	if w := doRequest(r, http.MethodGet, "/offer/"+token+"?"+noID.Encode()); w.Code != http.StatusBadRequest {
		t.Fatalf("missing offerId = %d, want 400", w.Code)
	}

	// Unknown offerId.
	unknown, _ := url.ParseQuery(query)
	unknown.Set("offerId", "OFR-unknown")
	if w := doRequest(r, http.MethodGet, "/offer/"+token+"?"+unknown.Encode()); w.Code != http.StatusNotFound {
		t.Fatalf("unknown offer = %d, want 404", w.Code)
	}
}
