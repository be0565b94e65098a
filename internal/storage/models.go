package storage

import "time"

// URLRecord is a persisted short-code mapping together with its lifecycle metadata.
type URLRecord struct {
	ID        int64      `json:"id"`
	Original  string     `json:"original_url"`
	Short     string     `json:"short_code"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Clicks    int64      `json:"clicks"`
	IsActive  bool       `json:"is_active"`
}
