package support

import (
	"strings"

	domainrental "rentalcore/internal/domain/rental"
	"rentalcore/internal/pkg/errs"
)

var (
	ErrNotParticipant = errs.Mark(errs.New("rentals: actor is not a party to this rental"), errs.ErrForbidden)
	ErrOwnerOnly      = errs.Mark(errs.New("rentals: only the owner may do this"), errs.ErrForbidden)
	ErrRenterOnly     = errs.Mark(errs.New("rentals: only the renter may do this"), errs.ErrForbidden)
	ErrAdminOnly      = errs.Mark(errs.New("rentals: admin role required"), errs.ErrForbidden)
)

// Actor is the authenticated caller of a command or query.
type Actor struct {
	ID    string
	Admin bool
}

func (a Actor) ActorID() string { return strings.TrimSpace(a.ID) }

// PartyOf resolves which side of the rental the actor is on.
func (a Actor) PartyOf(r *domainrental.Rental) (domainrental.Party, bool) {
	switch a.ActorID() {
	case "":
		return "", false
	case r.RenterID:
		return domainrental.PartyRenter, true
	case r.OwnerID:
		return domainrental.PartyOwner, true
	default:
		return "", false
	}
}

func (a Actor) RequireParticipant(r *domainrental.Rental) error {
	if a.Admin {
		return nil
	}
	if _, ok := a.PartyOf(r); !ok {
		return ErrNotParticipant
	}
	return nil
}

// RequireOwner admits the owner and admins.
func (a Actor) RequireOwner(r *domainrental.Rental) error {
	if a.Admin {
		return nil
	}
	if p, ok := a.PartyOf(r); !ok || p != domainrental.PartyOwner {
		return ErrOwnerOnly
	}
	return nil
}

func (a Actor) RequireRenter(r *domainrental.Rental) error {
	if p, ok := a.PartyOf(r); !ok || p != domainrental.PartyRenter {
		return ErrRenterOnly
	}
	return nil
}

func (a Actor) RequireAdmin() error {
	if !a.Admin {
		return ErrAdminOnly
	}
	return nil
}
