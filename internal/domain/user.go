package domain

import "time"

// User is a login-capable account. Non-superusers carry at most one sector assignment.
type User struct {
	ID           string
	Username     string
	FirstName    string
	LastName     string
	PasswordHash string
	IsSuperuser  bool
	IsStaff      bool
	Sector       *Sector
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Actor derives the request-scoped actor value for this account.
func (u *User) Actor() Actor {
	actor := Actor{UserID: u.ID, Username: u.Username, Superuser: u.IsSuperuser}
	if !u.IsSuperuser && u.Sector != nil && u.Sector.Valid() {
		s := *u.Sector
		actor.Sector = &s
	}
	return actor
}
