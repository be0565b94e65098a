// Package models defines the request and response data structures used
// for communication between the client and the URL shortener service.
package models

import "time"

// CreateRequest represents a request to shorten a URL.
type CreateRequest struct {
	// OriginalURL is the URL to be shortened. A missing scheme means https.
	OriginalURL string `json:"original_url"`

	// CustomCode, when set, is used instead of a generated short code.
	CustomCode string `json:"custom_code,omitempty"`

	// ExpiresAt is an ISO 8601 timestamp after which redirects stop working.
	// A timestamp without a zone is local time.
	ExpiresAt string `json:"expires_at,omitempty"`
}

// UpdateRequest replaces the original URL behind an existing short code.
type UpdateRequest struct {
	OriginalURL string `json:"original_url"`
}

// CreateResponse is returned for a newly created short URL.
type CreateResponse struct {
	OriginalURL string     `json:"original_url"`
	ShortCode   string     `json:"short_code"`
	ShortURL    string     `json:"short_url"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

// InfoResponse describes a short URL together with its lifecycle metadata.
type InfoResponse struct {
	OriginalURL string     `json:"original_url"`
	ShortCode   string     `json:"short_code"`
	ShortURL    string     `json:"short_url"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   *time.Time `json:"expires_at"`
	Clicks      int64      `json:"clicks"`
	IsActive    bool       `json:"is_active"`
	Expired     bool       `json:"expired"`
}

// DeleteResponse confirms a soft delete.
type DeleteResponse struct {
	Message   string `json:"message"`
	ShortCode string `json:"short_code"`
}

// ErrorResponse is the body of every non-2xx JSON answer.
type ErrorResponse struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code,omitempty"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
