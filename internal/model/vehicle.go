// Package model defines the shared types of the identity resolution pipeline.
package model

import (
	"strings"
	"time"
)

// OwnerClass is the provider's classification of an ownership record.
type OwnerClass string

const (
	OwnerClassPerson  OwnerClass = "person"
	OwnerClassCompany OwnerClass = "company"
	OwnerClassUnknown OwnerClass = "unknown"
)

// ParseOwnerClass maps a provider owner-type string onto an OwnerClass,
// ignoring case and surrounding whitespace.
func ParseOwnerClass(s string) OwnerClass {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "person", "private", "individual":
		return OwnerClassPerson
	case "company", "organization", "organisation":
		return OwnerClassCompany
	default:
		return OwnerClassUnknown
	}
}

// OwnershipRecord is one holder in a vehicle's ownership history.
type OwnershipRecord struct {
	Name       string     `json:"name"`
	Class      OwnerClass `json:"owner_class"`
	ProfileRef string     `json:"profile_ref,omitempty"`
	Since      time.Time  `json:"since,omitempty"`
}

// HasProfile reports whether the record carries a dereferenceable profile reference.
func (r OwnershipRecord) HasProfile() bool {
	return r.ProfileRef != ""
}

// OwnershipChain is ordered most recent first: index 0 is the current holder.
type OwnershipChain []OwnershipRecord

// Holder returns the current holder. ok is false for an empty chain.
func (c OwnershipChain) Holder() (OwnershipRecord, bool) {
	if len(c) == 0 {
		return OwnershipRecord{}, false
	}
	return c[0], true
}

// SellerKind is what the marketplace listing declares about its seller.
type SellerKind string

const (
	SellerPrivate SellerKind = "private"
	SellerDealer  SellerKind = "dealer"
)

// ListingAssertion is the seller identity declared by the marketplace listing.
type ListingAssertion struct {
	DeclaredSellerName string     `json:"declared_seller_name"`
	DeclaredSellerKind SellerKind `json:"declared_seller_kind"`
}

// EnrichStatus tracks a vehicle's position in the enrichment queue.
type EnrichStatus string

const (
	EnrichPending  EnrichStatus = "pending"
	EnrichResolved EnrichStatus = "resolved"
	EnrichNoData   EnrichStatus = "no_data"
	EnrichFailed   EnrichStatus = "failed"
	EnrichSkipped  EnrichStatus = "skipped"
)

// Vehicle is a queued vehicle offered for sale.
type Vehicle struct {
	Plate     string           `json:"plate"`
	Chassis   string           `json:"chassis,omitempty"`
	ModelText string           `json:"model_text,omitempty"`
	Listing   ListingAssertion `json:"listing"`
	Status    EnrichStatus     `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
}

// LookupKey returns the identifier used against the provider: plate, else chassis.
func (v Vehicle) LookupKey() string {
	if v.Plate != "" {
		return v.Plate
	}
	return v.Chassis
}

// Contact is postal and phone information attached to a profile or dealer.
type Contact struct {
	Address    string `json:"address,omitempty" yaml:"address,omitempty"`
	PostalCode string `json:"postal_code,omitempty" yaml:"postal_code,omitempty"`
	PostalCity string `json:"postal_city,omitempty" yaml:"postal_city,omitempty"`
	Phone      string `json:"phone,omitempty" yaml:"phone,omitempty"`
}

// IsEmpty reports whether no contact field is set.
func (c *Contact) IsEmpty() bool {
	return c == nil || (c.Address == "" && c.PostalCode == "" && c.PostalCity == "" && c.Phone == "")
}

// ProfileVehicle is a vehicle listed on a provider profile.
type ProfileVehicle struct {
	Plate     string `json:"plate"`
	ModelText string `json:"model_text,omitempty"`
	Category  string `json:"category,omitempty"`
}

// Profile is the dereferenced provider profile of an owner.
type Profile struct {
	Ref             string           `json:"ref"`
	Name            string           `json:"name"`
	Contact         Contact          `json:"contact"`
	Vehicles        []ProfileVehicle `json:"vehicles,omitempty"`
	AddressVehicles []ProfileVehicle `json:"address_vehicles,omitempty"`
}

// VehicleCount returns the number of vehicles registered to the profile.
func (p *Profile) VehicleCount() int {
	if p == nil {
		return 0
	}
	return len(p.Vehicles)
}
