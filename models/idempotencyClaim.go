package models

import "time"

// IdempotencyClaim provides durable, DB-backed idempotency for
// order-affecting operations. Unique constraint: (claim_key, scope).
// A claim with a stored response replays it; one without blocks concurrent
// retries until the first attempt completes or clears it.
type IdempotencyClaim struct {
	ID           int               `gorm:"primary_key" json:"id"`
	ClaimKey     string            `gorm:"size:255;not null;index:uniq_claim,unique" json:"claim_key"`
	Scope        string            `gorm:"size:100;not null;index:uniq_claim,unique" json:"scope"`
	RequestHash  string            `gorm:"size:64;not null" json:"request_hash"`
	Status       IdempotencyStatus `gorm:"size:20;not null;index" json:"status"`
	StatusCode   int               `json:"status_code"`
	ResourceId   string            `gorm:"size:255" json:"resource_id"`
	ResponseBody *string           `gorm:"type:text" json:"response_body"`
	ExpiresAt    time.Time         `gorm:"index;not null" json:"expires_at"`
	CreatedAt    time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}
