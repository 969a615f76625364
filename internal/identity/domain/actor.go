package domain

import (
	"errors"
	"slices"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleShop     Role = "shop"
	RoleAdmin    Role = "admin"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden for this actor")
)

// Actor is the authenticated caller. The zero value is unauthenticated.
//
// Shop actors carry their own shop in ShopID; customer actors carry the shop
// and slip their ordering session was opened for.
type Actor struct {
	Role   Role   `json:"role"`
	ID     string `json:"id"`
	ShopID string `json:"shopId,omitempty"`
	SlipID string `json:"slipId,omitempty"`
	Token  string `json:"-"`
}

func (a Actor) Authenticated() bool {
	return a.ID != "" && a.Role != ""
}

// Require fails with ErrUnauthenticated for the zero actor and ErrForbidden
// when the actor's role is not one of roles.
func (a Actor) Require(roles ...Role) error {
	if !a.Authenticated() {
		return ErrUnauthenticated
	}
	if len(roles) > 0 && !slices.Contains(roles, a.Role) {
		return ErrForbidden
	}
	return nil
}

// CanActForShop reports whether the actor may manage shopID's orders.
func (a Actor) CanActForShop(shopID string) bool {
	switch a.Role {
	case RoleAdmin:
		return true
	case RoleShop:
		return a.ShopID == shopID
	default:
		return false
	}
}

// Slip is a customer's ordering session opened by scanning a shop code.
type Slip struct {
	ID         string `json:"slipId"`
	ShopID     string `json:"shopId"`
	CustomerID string `json:"customerId"`
	Token      string `json:"token"`
}
