package model

import "time"

// OwnerKind is the resolved nature of the party behind a sale.
type OwnerKind string

const (
	OwnerPrivate OwnerKind = "private"
	OwnerCompany OwnerKind = "company"
	OwnerDealer  OwnerKind = "dealer"
	OwnerBroker  OwnerKind = "broker"
)

// LeadKind tags a lead found in an ownership chain.
type LeadKind string

const (
	LeadCompany LeadKind = "company"
	LeadPrivate LeadKind = "private"
)

// ResolvedProvenance is the immutable outcome of resolving one vehicle.
// It is persisted keyed by Plate and replaced in full on re-resolution.
type ResolvedProvenance struct {
	Plate       string           `json:"plate"`
	OwnerKind   OwnerKind        `json:"owner_kind"`
	Reason      string           `json:"reason"`
	HolderName  string           `json:"holder_name"`
	Lead        *OwnershipRecord `json:"lead,omitempty"`
	LeadKind    LeadKind         `json:"lead_kind,omitempty"`
	LeadContact *Contact         `json:"lead_contact,omitempty"`
	LeadFleet   []ProfileVehicle `json:"lead_fleet,omitempty"`
	DealerSince *time.Time       `json:"dealer_since,omitempty"`
	Category    string           `json:"category"`
	RunID       string           `json:"run_id,omitempty"`
	ResolvedAt  time.Time        `json:"resolved_at"`
}

// HasLead reports whether a lead record was identified.
func (p *ResolvedProvenance) HasLead() bool {
	return p != nil && p.Lead != nil
}
