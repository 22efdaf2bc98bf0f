package domain

import "time"

// PresenceTTL is how long a ping keeps a user listed as online
const PresenceTTL = 300 * time.Second

// PresenceEntry records the last ping of a user in a workspace. There is at
// most one entry per (Workspace, UserID).
type PresenceEntry struct {
	Workspace string    `json:"workspace" bson:"workspace"`
	UserID    string    `json:"user_id" bson:"user_id"`
	LastPing  time.Time `json:"last_ping" bson:"last_ping"`
}

// IsOnline reports whether the entry is visible at now for the given ttl.
// The boundary is inclusive: a ping exactly ttl ago still counts.
func (p *PresenceEntry) IsOnline(now time.Time, ttl time.Duration) bool {
	return !p.LastPing.Before(now.Add(-ttl))
}
