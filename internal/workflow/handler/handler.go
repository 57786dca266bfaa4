// Package handler exposes the workflow service over HTTP. Authentication is
// terminated upstream; handlers read the acting user from request context and
// refuse requests without one.
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"veranda/internal/audit"
	identity "veranda/internal/identity/models"
	listing "veranda/internal/listing/models"
	"veranda/internal/workflow"
	id "veranda/pkg/domain"
	dErrors "veranda/pkg/domain-errors"
	"veranda/pkg/platform/httputil"
	"veranda/pkg/requestcontext"
)

// Handler serves the verification workflow endpoints.
type Handler struct {
	service *workflow.Service
	trail   *audit.Publisher
	logger  *slog.Logger
}

func New(service *workflow.Service, trail *audit.Publisher, logger *slog.Logger) *Handler {
	return &Handler{service: service, trail: trail, logger: logger}
}

// Register mounts the workflow routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/identity", func(r chi.Router) {
		r.Get("/", h.handleGetIdentity)
		r.Post("/", h.handleSubmitIdentity)
		r.Post("/{userID}/decision", h.handleDecideIdentity)
		r.Post("/{userID}/reopen", h.handleReopenIdentity)
	})

	r.Route("/listings", func(r chi.Router) {
		r.Post("/", h.handleCreateListing)
		r.Route("/{listingID}", func(r chi.Router) {
			r.Get("/", h.handleGetListing)
			r.Post("/submit", h.handleSubmitListing)
			r.Get("/prerequisites", h.handlePrerequisites)
			r.Post("/archive", h.handleArchiveListing)
			r.Post("/revision", h.handleRestartRevision)
			r.Post("/claim", h.handleClaimReview)
			r.Post("/decision", h.handleDecideListing)
			r.Get("/history", h.handleHistory)
			r.Get("/audit", h.handleAuditTrail)
			r.Route("/photos", func(r chi.Router) {
				r.Get("/", h.handleListPhotos)
				r.Post("/", h.handleAddPhoto)
				r.Post("/{photoID}/primary", h.handleSetPrimaryPhoto)
			})
			r.Route("/documents", func(r chi.Router) {
				r.Get("/", h.handleListDocuments)
				r.Post("/", h.handleAddDocument)
			})
		})
	})

	r.Post("/documents/{documentID}/review", h.handleReviewDocument)
	r.Get("/review/queue", h.handleReviewQueue)
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (id.UserID, bool) {
	userID := requestcontext.UserID(r.Context())
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing authenticated user"))
		return id.UserID{}, false
	}
	return userID, true
}

func listingIDParam(w http.ResponseWriter, r *http.Request) (id.ListingID, bool) {
	listingID, err := id.ParseListingID(chi.URLParam(r, "listingID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.ListingID{}, false
	}
	return listingID, true
}

// --- identity ---

type submitIdentityRequest struct {
	IDType        string     `json:"id_type"`
	IDNumber      string     `json:"id_number"`
	IDDocumentRef string     `json:"id_document_ref"`
	IDExpiry      *time.Time `json:"id_expiry,omitempty"`
}

func (h *Handler) handleSubmitIdentity(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.actor(w, r)
	if !ok {
		return
	}
	req, ok := httputil.Decode[submitIdentityRequest](w, r, h.logger)
	if !ok {
		return
	}
	owner, err := h.service.SubmitIdentity(r.Context(), userID, workflow.IdentitySubmission{
		IDType:        identity.IDType(req.IDType),
		IDNumber:      req.IDNumber,
		IDDocumentRef: req.IDDocumentRef,
		IDExpiry:      req.IDExpiry,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, identityResponse(owner))
}

func (h *Handler) handleGetIdentity(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.actor(w, r)
	if !ok {
		return
	}
	owner, err := h.service.GetIdentity(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, identityResponse(owner))
}

type decideIdentityRequest struct {
	Outcome string `json:"outcome"`
	Notes   string `json:"notes,omitempty"`
}

func (h *Handler) handleDecideIdentity(w http.ResponseWriter, r *http.Request) {
	reviewer, ok := h.actor(w, r)
	if !ok {
		return
	}
	subject, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[decideIdentityRequest](w, r, h.logger)
	if !ok {
		return
	}
	owner, err := h.service.DecideIdentity(r.Context(), subject, identity.DecisionOutcome(req.Outcome), reviewer, req.Notes)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, identityResponse(owner))
}

func (h *Handler) handleReopenIdentity(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	subject, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	owner, err := h.service.ReopenIdentity(r.Context(), subject, actor)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, identityResponse(owner))
}

// --- listings ---

type createListingRequest struct {
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	PropertyType string `json:"property_type"`
	ListingType  string `json:"listing_type"`
	City         string `json:"city"`
	PriceMinor   int64  `json:"price_minor"`
	Currency     string `json:"currency,omitempty"`
}

func (h *Handler) handleCreateListing(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.actor(w, r)
	if !ok {
		return
	}
	req, ok := httputil.Decode[createListingRequest](w, r, h.logger)
	if !ok {
		return
	}
	created, err := h.service.CreateListing(r.Context(), ownerID, workflow.ListingDraft{
		Title:        req.Title,
		Description:  req.Description,
		PropertyType: listing.PropertyType(req.PropertyType),
		ListingType:  listing.ListingType(req.ListingType),
		City:         req.City,
		PriceMinor:   req.PriceMinor,
		Currency:     req.Currency,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, listingResponse(created))
}

func (h *Handler) handleGetListing(w http.ResponseWriter, r *http.Request) {
	listingID, ok := listingIDParam(w, r)
	if !ok {
		return
	}
	l, err := h.service.GetListing(r.Context(), listingID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, listingResponse(l))
}

func (h *Handler) handleSubmitListing(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	listingID, ok := listingIDParam(w, r)
	if !ok {
		return
	}
	submitted, err := h.service.SubmitListing(r.Context(), listingID, actor)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, listingResponse(submitted))
}

func (h *Handler) handlePrerequisites(w http.ResponseWriter, r *http.Request) {
	listingID, ok := listingIDParam(w, r)
	if !ok {
		return
	}
	result, err := h.service.Prerequisites(r.Context(), listingID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"satisfied": result.Satisfied,
		"unmet":     result.Tags(),
	})
}

func (h *Handler) handleArchiveListing(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	listingID, ok := listingIDParam(w, r)
	if !ok {
		return
	}
	archived, err := h.service.ArchiveListing(r.Context(), listingID, actor)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, listingResponse(archived))
}

func (h *Handler) handleRestartRevision(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	listingID, ok := listingIDParam(w, r)
	if !ok {
		return
	}
	restarted, err := h.service.RestartRevision(r.Context(), listingID, actor)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, listingResponse(restarted))
}

func (h *Handler) handleClaimReview(w http.ResponseWriter, r *http.Request) {
	reviewer, ok := h.actor(w, r)
	if !ok {
		return
	}
	listingID, ok := listingIDParam(w, r)
	if !ok {
		return
	}
	if err := h.service.ClaimReview(r.Context(), listingID, reviewer); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type decideListingRequest struct {
	Approve bool   `json:"approve"`
	Reason  string `json:"reason,omitempty"`
}

func (h *Handler) handleDecideListing(w http.ResponseWriter, r *http.Request) {
	reviewer, ok := h.actor(w, r)
	if !ok {
		return
	}
	listingID, ok := listingIDParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.Decode[decideListingRequest](w, r, h.logger)
	if !ok {
		return
	}
	decided, err := h.service.DecideListing(r.Context(), listingID, reviewer, req.Approve, req.Reason)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, listingResponse(decided))
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	listingID, ok := listingIDParam(w, r)
	if !ok {
		return
	}
	history, err := h.service.VerificationHistory(r.Context(), listingID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]map[string]any, len(history))
	for i, request := range history {
		out[i] = requestResponse(&request)
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	listingID, ok := listingIDParam(w, r)
	if !ok {
		return
	}
	trail, err := h.trail.ListBySubject(r.Context(), audit.ListingSubject(listingID))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodePersistence, "load audit trail"))
		return
	}
	out := make([]map[string]any, len(trail))
	for i, entry := range trail {
		out[i] = map[string]any{
			"id":         entry.ID.String(),
			"actor":      entry.Actor.String(),
			"action":     string(entry.Action),
			"payload":    entry.Payload,
			"created_at": entry.CreatedAt,
		}
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleReviewQueue(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.actor(w, r); !ok {
		return
	}
	queue, err := h.service.ReviewQueue(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]map[string]any, len(queue))
	for i := range queue {
		out[i] = listingResponse(&queue[i])
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

// --- media ---

type addPhotoRequest struct {
	StorageRef string `json:"storage_ref"`
	Caption    string `json:"caption,omitempty"`
}

func (h *Handler) handleAddPhoto(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	listingID, ok := listingIDParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.Decode[addPhotoRequest](w, r, h.logger)
	if !ok {
		return
	}
	photo, err := h.service.AddPhoto(r.Context(), listingID, actor, req.StorageRef, req.Caption)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, photoResponse(photo))
}

func (h *Handler) handleSetPrimaryPhoto(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	listingID, ok := listingIDParam(w, r)
	if !ok {
		return
	}
	photoID, err := id.ParsePhotoID(chi.URLParam(r, "photoID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.SetPrimaryPhoto(r.Context(), listingID, photoID, actor); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListPhotos(w http.ResponseWriter, r *http.Request) {
	listingID, ok := listingIDParam(w, r)
	if !ok {
		return
	}
	photos, err := h.service.ListPhotos(r.Context(), listingID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]map[string]any, len(photos))
	for i := range photos {
		out[i] = photoResponse(&photos[i])
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

type addDocumentRequest struct {
	DocType    string `json:"doc_type"`
	StorageRef string `json:"storage_ref"`
}

func (h *Handler) handleAddDocument(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	listingID, ok := listingIDParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.Decode[addDocumentRequest](w, r, h.logger)
	if !ok {
		return
	}
	document, err := h.service.AddDocument(r.Context(), listingID, actor, listing.DocumentType(req.DocType), req.StorageRef)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, documentResponse(document))
}

func (h *Handler) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	listingID, ok := listingIDParam(w, r)
	if !ok {
		return
	}
	documents, err := h.service.ListDocuments(r.Context(), listingID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]map[string]any, len(documents))
	for i := range documents {
		out[i] = documentResponse(&documents[i])
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

type reviewDocumentRequest struct {
	Approve bool   `json:"approve"`
	Comment string `json:"comment,omitempty"`
}

func (h *Handler) handleReviewDocument(w http.ResponseWriter, r *http.Request) {
	reviewer, ok := h.actor(w, r)
	if !ok {
		return
	}
	documentID, err := id.ParseDocumentID(chi.URLParam(r, "documentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[reviewDocumentRequest](w, r, h.logger)
	if !ok {
		return
	}
	document, err := h.service.ReviewDocument(r.Context(), documentID, reviewer, req.Approve, req.Comment)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, documentResponse(document))
}
