package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"veranda/internal/audit"
	auditstore "veranda/internal/audit/store"
	httpapi "veranda/internal/http"
	identity "veranda/internal/identity/models"
	identitystore "veranda/internal/identity/store"
	listingstore "veranda/internal/listing/store"
	requeststore "veranda/internal/verification/store"
	"veranda/internal/workflow"
	"veranda/internal/workflow/handler"
	"veranda/internal/workflow/uow"
	id "veranda/pkg/domain"
)

type fixture struct {
	router  http.Handler
	service *workflow.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	stores := workflow.Stores{
		Identities: identitystore.NewInMemory(),
		Listings:   listingstore.NewInMemoryListings(),
		Photos:     listingstore.NewInMemoryPhotos(),
		Documents:  listingstore.NewInMemoryDocuments(),
		Requests:   requeststore.NewInMemory(),
	}
	publisher := audit.NewPublisher(auditstore.NewInMemory())
	service := workflow.NewService(stores, uow.NewSharded(), publisher)
	router := httpapi.NewRouter(handler.New(service, publisher, slog.New(slog.DiscardHandler)))
	return &fixture{router: router, service: service}
}

func (f *fixture) do(t *testing.T, method, path string, body any, userID string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

// verifyOwner pushes an owner through identity approval and email
// verification directly on the service, so listing tests can focus on HTTP.
func (f *fixture) verifyOwner(t *testing.T, owner, reviewer id.UserID) {
	t.Helper()
	ctx := context.Background()
	_, err := f.service.SubmitIdentity(ctx, owner, workflow.IdentitySubmission{
		IDType:        identity.IDTypeNIN,
		IDNumber:      "12345678901",
		IDDocumentRef: "s3://kyc/owner.pdf",
	})
	require.NoError(t, err)
	_, err = f.service.DecideIdentity(ctx, owner, identity.DecisionApproved, reviewer, "")
	require.NoError(t, err)
	require.NoError(t, f.service.MarkEmailVerified(ctx, owner))
}

func TestCreateAndGetListing(t *testing.T) {
	f := newFixture(t)
	owner := id.NewUserID().String()

	rec := f.do(t, http.MethodPost, "/api/v1/listings", map[string]any{
		"title":         "2 Bedroom Flat in Yaba",
		"property_type": "apartment",
		"listing_type":  "rent",
		"city":          "Lagos",
		"price_minor":   150000000,
	}, owner)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBody(t, rec)
	require.Equal(t, "draft", created["status"])
	require.Equal(t, "private", created["visibility"])
	require.Equal(t, "2-bedroom-flat-in-yaba", created["slug"])

	rec = f.do(t, http.MethodGet, "/api/v1/listings/"+created["id"].(string), nil, owner)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, created["id"], decodeBody(t, rec)["id"])
}

func TestUnauthenticatedRequestIsRejected(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/v1/listings", map[string]any{"title": "x"}, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "unauthorized", decodeBody(t, rec)["error"])
}

func TestSubmitWithoutPhotosIsRefused(t *testing.T) {
	f := newFixture(t)
	owner := id.NewUserID()
	f.verifyOwner(t, owner, id.NewUserID())

	rec := f.do(t, http.MethodPost, "/api/v1/listings", map[string]any{
		"title": "Bare listing", "property_type": "land", "listing_type": "sale",
	}, owner.String())
	require.Equal(t, http.StatusCreated, rec.Code)
	listingID := decodeBody(t, rec)["id"].(string)

	rec = f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/listings/%s/submit", listingID), nil, owner.String())
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, "prerequisites_not_met", body["error"])
	details := body["details"].(map[string]any)
	require.Contains(t, details["unmet"], "photo_required")
}

func TestNonOwnerCannotSubmit(t *testing.T) {
	f := newFixture(t)
	owner := id.NewUserID()
	rec := f.do(t, http.MethodPost, "/api/v1/listings", map[string]any{"title": "Mine"}, owner.String())
	require.Equal(t, http.StatusCreated, rec.Code)
	listingID := decodeBody(t, rec)["id"].(string)

	rec = f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/listings/%s/submit", listingID), nil, id.NewUserID().String())
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestReviewFlowOverHTTP(t *testing.T) {
	f := newFixture(t)
	owner := id.NewUserID()
	reviewer := id.NewUserID()
	f.verifyOwner(t, owner, reviewer)

	rec := f.do(t, http.MethodPost, "/api/v1/listings", map[string]any{
		"title":         "Detached Duplex, Lekki Phase 1",
		"property_type": "duplex",
		"listing_type":  "sale",
		"city":          "Lagos",
		"price_minor":   25000000000,
	}, owner.String())
	require.Equal(t, http.StatusCreated, rec.Code)
	listingID := decodeBody(t, rec)["id"].(string)
	base := "/api/v1/listings/" + listingID

	rec = f.do(t, http.MethodPost, base+"/photos", map[string]any{"storage_ref": "s3://photos/1.jpg"}, owner.String())
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, true, decodeBody(t, rec)["is_primary"])

	rec = f.do(t, http.MethodPost, base+"/documents", map[string]any{
		"doc_type": "c_of_o", "storage_ref": "s3://docs/cofo.pdf",
	}, owner.String())
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodGet, base+"/prerequisites", nil, owner.String())
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, decodeBody(t, rec)["satisfied"])

	rec = f.do(t, http.MethodPost, base+"/submit", nil, owner.String())
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, "in_review", decodeBody(t, rec)["status"])

	rec = f.do(t, http.MethodGet, "/api/v1/review/queue", nil, reviewer.String())
	require.Equal(t, http.StatusOK, rec.Code)
	var queue []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &queue))
	require.Len(t, queue, 1)

	rec = f.do(t, http.MethodPost, base+"/claim", nil, reviewer.String())
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodPost, base+"/decision", map[string]any{"approve": true}, reviewer.String())
	require.Equal(t, http.StatusOK, rec.Code)
	decided := decodeBody(t, rec)
	require.Equal(t, "verified", decided["status"])
	require.Equal(t, "public", decided["visibility"])

	// A second decision is stale and conflicts.
	rec = f.do(t, http.MethodPost, base+"/decision", map[string]any{"approve": false, "reason": "changed my mind"}, reviewer.String())
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "stale_decision", decodeBody(t, rec)["error"])

	rec = f.do(t, http.MethodGet, base+"/history", nil, owner.String())
	require.Equal(t, http.StatusOK, rec.Code)
	var history []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history, 1)
	require.Equal(t, "approved", history[0]["state"])

	rec = f.do(t, http.MethodGet, base+"/audit", nil, reviewer.String())
	require.Equal(t, http.StatusOK, rec.Code)
	var trail []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &trail))
	require.NotEmpty(t, trail)
}

func TestRejectionRequiresReason(t *testing.T) {
	f := newFixture(t)
	owner := id.NewUserID()
	reviewer := id.NewUserID()
	f.verifyOwner(t, owner, reviewer)

	rec := f.do(t, http.MethodPost, "/api/v1/listings", map[string]any{"title": "Flat"}, owner.String())
	listingID := decodeBody(t, rec)["id"].(string)
	base := "/api/v1/listings/" + listingID

	f.do(t, http.MethodPost, base+"/photos", map[string]any{"storage_ref": "s3://p/1.jpg"}, owner.String())
	f.do(t, http.MethodPost, base+"/documents", map[string]any{"doc_type": "deed", "storage_ref": "s3://d/1.pdf"}, owner.String())
	rec = f.do(t, http.MethodPost, base+"/submit", nil, owner.String())
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = f.do(t, http.MethodPost, base+"/decision", map[string]any{"approve": false}, reviewer.String())
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "validation", decodeBody(t, rec)["error"])
}

func TestIdentityEndpoints(t *testing.T) {
	f := newFixture(t)
	owner := id.NewUserID()
	reviewer := id.NewUserID()

	rec := f.do(t, http.MethodPost, "/api/v1/identity", map[string]any{
		"id_type": "passport", "id_number": "A01234567", "id_document_ref": "s3://kyc/a.pdf",
	}, owner.String())
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, "pending_review", decodeBody(t, rec)["status"])

	rec = f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/identity/%s/decision", owner), map[string]any{
		"outcome": "approved",
	}, reviewer.String())
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "approved", decodeBody(t, rec)["status"])

	rec = f.do(t, http.MethodGet, "/api/v1/identity", nil, owner.String())
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "approved", decodeBody(t, rec)["status"])

	rec = f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/identity/%s/reopen", owner), nil, reviewer.String())
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "pending_review", decodeBody(t, rec)["status"])
}
