package domain

// ActorKind classifies an authenticated caller by scope.
type ActorKind string

const (
	ActorSuperuser ActorKind = "SUPERUSER"
	ActorSector    ActorKind = "SECTOR"
	ActorNone      ActorKind = "NONE"
)

// Actor is the explicit per-request identity handed to the policy and query engine.
type Actor struct {
	UserID    string
	Username  string
	Superuser bool
	Sector    *Sector
}

// Kind returns the actor classification.
func (a Actor) Kind() ActorKind {
	switch {
	case a.Superuser:
		return ActorSuperuser
	case a.Sector != nil && a.Sector.Valid():
		return ActorSector
	default:
		return ActorNone
	}
}

// SectorCode returns the assigned sector, or "" for superusers and unassigned actors.
func (a Actor) SectorCode() Sector {
	if a.Kind() != ActorSector {
		return ""
	}
	return *a.Sector
}
