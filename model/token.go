// file: model/token.go

package model

import "time"

// RefreshTokenRecord is the server-side record correlated with an opaque
// refresh-token secret. The store key is the SHA-256 of the secret; the
// raw secret never touches durable storage.
type RefreshTokenRecord struct {
	ID        string    `json:"id"`
	UserID    int       `json:"user_id"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

func (r *RefreshTokenRecord) Expired(now time.Time) bool {
	return r.ExpiresAt.Before(now)
}
