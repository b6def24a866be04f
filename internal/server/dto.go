package server

import "leadline/internal/domain"

// Request payloads

// IngestLeadRequest is deliberately permissive: every field is optional
// and missing values are defaulted, never rejected.
type IngestLeadRequest struct {
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
	Notes  string `json:"notes,omitempty"`
	Source string `json:"source,omitempty"`
}

type UpdateLeadStatusRequest struct {
	Status domain.Status `json:"status" enum:"needs_follow_up,in_review,success"`
	Force  bool          `json:"force,omitempty"`
}

// Response payloads

type IngestLeadResponse struct {
	Success bool        `json:"success"`
	Lead    domain.Lead `json:"lead"`
}

type IdeateResponse struct {
	Success bool `json:"success"`
}

type LeadListResponse struct {
	Leads []domain.Lead `json:"leads"`
}

type EventListResponse struct {
	Events []domain.Event `json:"events"`
}
