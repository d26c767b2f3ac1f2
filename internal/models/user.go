package models

import "time"

// User is the account row backing identity lookups. The ban flag is read
// live on every request; it is never cached inside a session.
type User struct {
	Username             string     `db:"username" json:"username"`
	Email                string     `db:"email" json:"email"`
	PasswordHash         string     `db:"password_hash" json:"-"`
	IsAdmin              bool       `db:"is_admin" json:"is_admin"`
	IsBanned             bool       `db:"is_banned" json:"-"`
	PotentiallyDangerous bool       `db:"potentially_dangerous" json:"-"`
	BannedReason         string     `db:"banned_reason" json:"-"`
	BannedAt             *time.Time `db:"banned_at" json:"-"`
	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
	LastLogin            *time.Time `db:"last_login" json:"last_login,omitempty"`
}

// Roles derives the role strings carried in issued tokens.
func (u *User) Roles() []string {
	roles := []string{"ROLE_USER"}
	if u.IsAdmin {
		roles = append(roles, "ROLE_ADMIN")
	}
	return roles
}
