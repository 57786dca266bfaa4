package handler

import (
	identity "veranda/internal/identity/models"
	listing "veranda/internal/listing/models"
	verification "veranda/internal/verification/models"
)

func identityResponse(owner *identity.OwnerIdentity) map[string]any {
	out := map[string]any{
		"user_id":        owner.UserID.String(),
		"status":         string(owner.Status),
		"email_verified": owner.EmailVerifiedAt != nil,
		"phone_verified": owner.PhoneVerifiedAt != nil,
		"updated_at":     owner.UpdatedAt,
	}
	if owner.IDType != "" {
		out["id_type"] = string(owner.IDType)
	}
	if owner.Notes != "" {
		out["notes"] = owner.Notes
	}
	if owner.ReviewedAt != nil {
		out["reviewed_at"] = owner.ReviewedAt
	}
	return out
}

func listingResponse(l *listing.Listing) map[string]any {
	out := map[string]any{
		"id":            l.ID.String(),
		"owner_id":      l.OwnerID.String(),
		"title":         l.Title,
		"slug":          l.Slug,
		"description":   l.Description,
		"property_type": string(l.PropertyType),
		"listing_type":  string(l.ListingType),
		"city":          l.City,
		"price_minor":   l.PriceMinor,
		"currency":      l.Currency,
		"status":        string(l.Status),
		"visibility":    string(l.Visibility),
		"created_at":    l.CreatedAt,
		"updated_at":    l.UpdatedAt,
	}
	if l.SubmittedAt != nil {
		out["submitted_at"] = l.SubmittedAt
	}
	if l.VerifiedAt != nil {
		out["verified_at"] = l.VerifiedAt
	}
	if l.RejectedAt != nil {
		out["rejected_at"] = l.RejectedAt
		out["rejection_reason"] = l.RejectionReason
	}
	return out
}

func photoResponse(p *listing.Photo) map[string]any {
	return map[string]any{
		"id":          p.ID.String(),
		"listing_id":  p.ListingID.String(),
		"storage_ref": p.StorageRef,
		"caption":     p.Caption,
		"position":    p.Position,
		"is_primary":  p.IsPrimary,
		"uploaded_at": p.UploadedAt,
	}
}

func documentResponse(d *listing.Document) map[string]any {
	out := map[string]any{
		"id":          d.ID.String(),
		"listing_id":  d.ListingID.String(),
		"doc_type":    string(d.Type),
		"storage_ref": d.StorageRef,
		"status":      string(d.Status),
		"uploaded_at": d.UploadedAt,
	}
	if d.ReviewedAt != nil {
		out["reviewed_at"] = d.ReviewedAt
		out["reviewer_comment"] = d.ReviewerComment
	}
	return out
}

func requestResponse(r *verification.VerificationRequest) map[string]any {
	out := map[string]any{
		"id":         r.ID.String(),
		"listing_id": r.ListingID.String(),
		"requester":  r.Requester.String(),
		"state":      string(r.State),
		"started_at": r.StartedAt,
	}
	if r.Reviewer != nil {
		out["reviewer"] = r.Reviewer.String()
	}
	if r.DecidedAt != nil {
		out["decided_at"] = r.DecidedAt
		out["notes"] = r.Notes
	}
	return out
}
