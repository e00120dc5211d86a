package domain

import "time"

// Notification is a derived view over a user's transaction log — it is
// never persisted, just recomputed per request.
type Notification struct {
	ID      string    `json:"id"`
	Title   string    `json:"title"`
	Message string    `json:"message"`
	Read    bool      `json:"read"`
	Type    string    `json:"type"` // success | error | info | warning
	Date    time.Time `json:"date"`
}

// Contact is a recent transfer recipient, derived from the log.
type Contact struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar"`
}
