// Package actor models the verified caller identity handed to every core
// operation by the external credential service.
package actor

import (
	"fmt"
	"strings"
)

// Role is one of the fixed supply-chain roles
type Role string

const (
	RoleProducer    Role = "producer"
	RoleDistributor Role = "distributor"
	RoleRetailer    Role = "retailer"
	RoleConsumer    Role = "consumer"
	RoleAdmin       Role = "admin"
)

// Valid reports whether r belongs to the fixed enumeration
func (r Role) Valid() bool {
	switch r {
	case RoleProducer, RoleDistributor, RoleRetailer, RoleConsumer, RoleAdmin:
		return true
	}
	return false
}

// ParseRole normalizes s and checks it against the enumeration
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Actor is an already-verified (identity, role) pair
type Actor struct {
	ID   string `json:"actor_id"`
	Role Role   `json:"role"`
}

// New builds an Actor, leaving verification to Verified
func New(id string, role Role) Actor {
	return Actor{ID: strings.TrimSpace(id), Role: role}
}

// Verified reports whether the actor carries an identity and a known role
func (a Actor) Verified() bool {
	return a.ID != "" && a.Role.Valid()
}

// IsAdmin reports whether the actor holds the superuser role
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

func (a Actor) String() string {
	return string(a.Role) + ":" + a.ID
}
