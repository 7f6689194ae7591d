// Package policy decides which letters an actor may read, reply to, and administer.
// Every function is pure; callers evaluate it on each read and again on the locked row
// immediately before a write.
package policy

import (
	"strings"

	"github.com/spec-kit/letter-service/internal/domain"
	apperrors "github.com/spec-kit/letter-service/pkg/util/errorutil"
)

// View selects which listing surface a scope is resolved for.
type View string

const (
	ViewDashboard View = "dashboard"
	ViewAdmin     View = "admin"
)

// Scope is the effective set of sectors visible to a request.
type Scope struct {
	All    bool
	Sector *domain.Sector
}

// Empty reports whether the scope can match no letters at all.
func (s Scope) Empty() bool {
	return !s.All && s.Sector == nil
}

// Label renders the applied sector filter for responses.
func (s Scope) Label() string {
	switch {
	case s.All:
		return domain.SectorAll
	case s.Sector != nil:
		return string(*s.Sector)
	default:
		return ""
	}
}

// CanRead reports whether actor may view letter.
func CanRead(actor domain.Actor, letter *domain.Letter) bool {
	if letter == nil {
		return false
	}
	switch actor.Kind() {
	case domain.ActorSuperuser:
		return true
	case domain.ActorSector:
		return actor.SectorCode() == letter.TargetSector
	default:
		return false
	}
}

// CanReply reports whether actor may drive the reply workflow on letter. Superusers edit
// through admin management instead and are refused here.
func CanReply(actor domain.Actor, letter *domain.Letter) bool {
	if letter == nil || actor.Kind() != domain.ActorSector {
		return false
	}
	return actor.SectorCode() == letter.TargetSector
}

// CanAdminister reports whether actor may use admin management.
func CanAdminister(actor domain.Actor) bool {
	return actor.Kind() == domain.ActorSuperuser
}

// AuthorizeRead returns an access-denied error when actor may not view letter.
func AuthorizeRead(actor domain.Actor, letter *domain.Letter) error {
	if !CanRead(actor, letter) {
		return apperrors.NewForbidden("letter is outside your sector")
	}
	return nil
}

// AuthorizeReply returns an access-denied error when actor may not reply to letter.
func AuthorizeReply(actor domain.Actor, letter *domain.Letter) error {
	if CanReply(actor, letter) {
		return nil
	}
	if actor.Kind() == domain.ActorSuperuser {
		return apperrors.NewForbidden("superusers edit letters through admin management")
	}
	return apperrors.NewForbidden("letter is outside your sector")
}

// AuthorizeAdmin returns an access-denied error unless actor is a superuser.
func AuthorizeAdmin(actor domain.Actor) error {
	if !CanAdminister(actor) {
		return apperrors.NewForbidden("superuser privileges required")
	}
	return nil
}

// ResolveScope computes the sector scope for a listing request. Sector actors are always
// confined to their own sector regardless of requested; admin views are superuser-only
// and may select every sector or any single one.
func ResolveScope(actor domain.Actor, requested string, view View) (Scope, error) {
	if view == ViewAdmin {
		if err := AuthorizeAdmin(actor); err != nil {
			return Scope{}, err
		}
		return superuserScope(requested)
	}

	switch actor.Kind() {
	case domain.ActorSuperuser:
		return superuserScope(requested)
	case domain.ActorSector:
		s := actor.SectorCode()
		return Scope{Sector: &s}, nil
	default:
		return Scope{}, nil
	}
}

func superuserScope(requested string) (Scope, error) {
	requested = strings.TrimSpace(requested)
	if requested == "" || strings.EqualFold(requested, domain.SectorAll) {
		return Scope{All: true}, nil
	}
	s, ok := domain.ParseSector(requested)
	if !ok {
		return Scope{}, apperrors.NewFieldError("sector", "unknown sector")
	}
	return Scope{Sector: &s}, nil
}
