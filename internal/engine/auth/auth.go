package auth

import (
	"errors"
	"fmt"
	"strings"
)

// UnauthorizedError indicates the caller is not the recognized principal.
type UnauthorizedError struct {
	ActorID string
}

func (e UnauthorizedError) Error() string {
	return fmt.Sprintf("actor %s is not authorized", e.ActorID)
}

// Policy decides whether an actor may run privileged operations. The
// deployment model recognizes exactly one principal, so the policy is a
// plain identity comparison against a configured owner id — but callers
// only see the interface, so the rule is swappable without touching
// operation logic.
type Policy interface {
	Authorize(actorID string) error
}

// OwnerPolicy authorizes exactly one configured owner identity.
type OwnerPolicy struct {
	OwnerID string
}

func NewOwnerPolicy(ownerID string) (OwnerPolicy, error) {
	if strings.TrimSpace(ownerID) == "" {
		return OwnerPolicy{}, errors.New("owner id required")
	}
	return OwnerPolicy{OwnerID: ownerID}, nil
}

func (p OwnerPolicy) Authorize(actorID string) error {
	if actorID == "" || actorID != p.OwnerID {
		return UnauthorizedError{ActorID: actorID}
	}
	return nil
}
