package models

import "time"

// RevokedToken is a revocation-list entry. Its presence alone makes the
// matching token invalid; ExpirationDate only tells the sweeper when the
// entry itself has become garbage.
type RevokedToken struct {
	TokenID        string    `json:"token_id"`
	ExpirationDate time.Time `json:"expiration_date"`
	CreatedAt      time.Time `json:"created_at"`
	Username       string    `json:"username"`
}
