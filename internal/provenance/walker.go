// Package provenance walks vehicle ownership chains to decide who is behind
// a sale and, for dealer sales, which earlier owner is the real lead.
package provenance

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/lead-resolver/internal/model"
	"github.com/sells-group/lead-resolver/internal/names"
	"github.com/sells-group/lead-resolver/internal/vehicle"
)

// DefaultDealerVehicleThreshold is the vehicle count at which a holder is
// considered dealer-like.
const DefaultDealerVehicleThreshold = 10

// Reason values explain how an owner kind was decided.
const (
	ReasonDeclaredPrivate = "declared_private"
	ReasonHolderMismatch  = "holder_mismatch"
	ReasonDealerLike      = "dealer_like"
	ReasonDeclaredDealer  = "declared_dealer"
)

// DealerRegistry is the subset of the dealer registry the walker needs.
type DealerRegistry interface {
	IsKnownDealer(name string) bool
	Enrich(ctx context.Context, primaryName, observedAlias string, contact *model.Contact) error
}

// ProfileSource dereferences a record's profile reference.
type ProfileSource interface {
	LookupProfile(ctx context.Context, ref string) (*model.Profile, error)
}

// Walker resolves ownership chains against the dealer registry.
type Walker struct {
	registry        DealerRegistry
	dealerThreshold int
	now             func() time.Time
}

// NewWalker returns a Walker. A threshold <= 0 uses DefaultDealerVehicleThreshold.
func NewWalker(registry DealerRegistry, dealerThreshold int) *Walker {
	if dealerThreshold <= 0 {
		dealerThreshold = DefaultDealerVehicleThreshold
	}
	return &Walker{
		registry:        registry,
		dealerThreshold: dealerThreshold,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// DetermineOwnerKind classifies the current holder of a listed vehicle.
// holder.Name must already be the resolved holder name. vehicleCount is the
// holder's known fleet size, or a negative value when unknown.
//
// The name mismatch is checked before the dealer-likelihood heuristic, so a
// dealer-like holder that does not match the declared seller is a broker.
func (w *Walker) DetermineOwnerKind(assertion model.ListingAssertion, holder model.OwnershipRecord, vehicleCount int) (model.OwnerKind, string) {
	if assertion.DeclaredSellerKind != model.SellerDealer {
		return model.OwnerPrivate, ReasonDeclaredPrivate
	}

	declared := names.Normalize(assertion.DeclaredSellerName)
	if declared != "" &&
		!names.Matches(names.Normalize(holder.Name), declared) &&
		!w.registry.IsKnownDealer(holder.Name) {
		return model.OwnerBroker, ReasonHolderMismatch
	}

	if vehicleCount >= w.dealerThreshold || holder.Class == model.OwnerClassCompany {
		return model.OwnerDealer, ReasonDealerLike
	}
	return model.OwnerDealer, ReasonDeclaredDealer
}

// FindLeadInChain walks the chain from index 1, skipping known dealers, and
// returns the first company record or the first person record that carries a
// profile reference. ok is false when no such record exists.
func (w *Walker) FindLeadInChain(chain model.OwnershipChain) (lead model.OwnershipRecord, kind model.LeadKind, ok bool) {
	for i := 1; i < len(chain); i++ {
		rec := chain[i]
		if w.registry.IsKnownDealer(rec.Name) {
			continue
		}
		switch {
		case rec.Class == model.OwnerClassCompany:
			return rec, model.LeadCompany, true
		case rec.Class == model.OwnerClassPerson && rec.HasProfile():
			return rec, model.LeadPrivate, true
		}
	}
	return model.OwnershipRecord{}, "", false
}

// Outcome is the result of resolving one vehicle.
type Outcome struct {
	// Provenance is nil when NoData is set.
	Provenance *model.ResolvedProvenance
	NoData     bool

	// ProfileErrors are profile lookups that failed. The provenance was
	// still produced, without the contact data those lookups would have added.
	ProfileErrors []error

	// RegistryErr is a failed write-through of dealer feedback.
	RegistryErr error
}

// Resolve classifies the vehicle's holder, finds the lead behind a dealer
// sale and feeds confirmed dealers back into the registry. An empty chain is
// reported as NoData. Resolve does not return errors: profile failures
// degrade the result and are collected on the Outcome.
func (w *Walker) Resolve(ctx context.Context, v model.Vehicle, chain model.OwnershipChain, profiles ProfileSource) Outcome {
	holder, ok := chain.Holder()
	if !ok {
		return Outcome{NoData: true}
	}

	var out Outcome
	log := zap.L().With(zap.String("component", "provenance"), zap.String("plate", v.Plate))

	holderProfile := w.fetchProfile(ctx, holder, profiles, &out)

	resolved := holder
	vehicleCount := -1
	if holderProfile != nil {
		if holderProfile.Name != "" {
			resolved.Name = holderProfile.Name
		}
		vehicleCount = holderProfile.VehicleCount()
	}

	kind, reason := w.DetermineOwnerKind(v.Listing, resolved, vehicleCount)
	prov := &model.ResolvedProvenance{
		Plate:      v.Plate,
		OwnerKind:  kind,
		Reason:     reason,
		HolderName: resolved.Name,
		Category:   string(vehicle.Classify(v.ModelText)),
		ResolvedAt: w.now(),
	}

	switch kind {
	case model.OwnerPrivate, model.OwnerBroker:
		// The holder is the party of interest; no chain walk.
		lead := holder
		prov.Lead = &lead
		prov.LeadKind = leadKindOf(holder)
		attachProfile(prov, holderProfile)

	case model.OwnerDealer:
		if !holder.Since.IsZero() {
			since := holder.Since
			prov.DealerSince = &since
		}

		var holderContact *model.Contact
		if holderProfile != nil && !holderProfile.Contact.IsEmpty() {
			c := holderProfile.Contact
			holderContact = &c
		}
		primary := v.Listing.DeclaredSellerName
		if names.Normalize(primary) == "" {
			primary = resolved.Name
		}
		if err := w.registry.Enrich(ctx, primary, resolved.Name, holderContact); err != nil {
			log.Warn("provenance: registry feedback failed", zap.String("dealer", primary), zap.Error(err))
			out.RegistryErr = err
		}

		if lead, leadKind, found := w.FindLeadInChain(chain); found {
			prov.Lead = &lead
			prov.LeadKind = leadKind
			attachProfile(prov, w.fetchProfile(ctx, lead, profiles, &out))
		}
	}

	log.Debug("provenance: resolved",
		zap.String("owner_kind", string(kind)),
		zap.String("reason", reason),
		zap.Bool("has_lead", prov.HasLead()),
	)
	out.Provenance = prov
	return out
}

func (w *Walker) fetchProfile(ctx context.Context, rec model.OwnershipRecord, profiles ProfileSource, out *Outcome) *model.Profile {
	if profiles == nil || !rec.HasProfile() {
		return nil
	}
	p, err := profiles.LookupProfile(ctx, rec.ProfileRef)
	if err != nil {
		out.ProfileErrors = append(out.ProfileErrors, err)
		return nil
	}
	return p
}

func leadKindOf(rec model.OwnershipRecord) model.LeadKind {
	if rec.Class == model.OwnerClassCompany {
		return model.LeadCompany
	}
	return model.LeadPrivate
}

// attachProfile copies the lead's contact details and the part of its fleet
// worth contacting about onto the provenance.
func attachProfile(prov *model.ResolvedProvenance, p *model.Profile) {
	if p == nil {
		return
	}
	if !p.Contact.IsEmpty() {
		c := p.Contact
		prov.LeadContact = &c
	}
	prov.LeadFleet = Fleet(p)
}

// Fleet returns the profile's vehicles and address vehicles, deduplicated by
// plate and classified, dropping categories not worth keeping.
func Fleet(p *model.Profile) []model.ProfileVehicle {
	if p == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var out []model.ProfileVehicle
	for _, list := range [][]model.ProfileVehicle{p.Vehicles, p.AddressVehicles} {
		for _, pv := range list {
			if pv.Plate != "" {
				if _, dup := seen[pv.Plate]; dup {
					continue
				}
				seen[pv.Plate] = struct{}{}
			}
			cat := vehicle.Classify(pv.ModelText)
			if !cat.WorthKeeping() {
				continue
			}
			pv.Category = string(cat)
			out = append(out, pv)
		}
	}
	return out
}
