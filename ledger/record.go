package ledger

import "time"

// Record is one persisted refresh token. Records form a singly-linked
// rotation chain through ReplacedBy; the chain is history, never an
// ownership graph, and is only walked by humans debugging an incident.
type Record struct {
	Token     string `json:"token"`
	UserID    string `json:"user_id"`
	IssuedAt  int64  `json:"issued_at"`
	ExpiresAt int64  `json:"expires_at"`
	Revoked   bool   `json:"revoked"`
	ReplacedBy string `json:"replaced_by,omitempty"`
}

// Active reports whether the record can still be presented for
// rotation at the given instant.
func (r *Record) Active(now time.Time) bool {
	return !r.Revoked && now.Unix() < r.ExpiresAt
}
