package provider

import (
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tidwall/gjson"

	"github.com/sells-group/lead-resolver/internal/model"
)

// The ownership and search endpoints disagree on response shape, and both
// have changed over time. Every field is read from the first path present.
var (
	currentOwnerPaths = []string{"owner", "current_owner", "data.owner", "result.vehicle.owner"}
	historyPaths      = []string{"history", "previous_owners", "owners", "ownership_history", "data.owners", "result.vehicle.owners"}
	listingPaths      = []string{"listing", "ad", "result.listing"}

	ownerNamePaths    = []string{"name", "owner_name", "full_name", "company_name"}
	ownerClassPaths   = []string{"type", "owner_type", "kind", "class"}
	ownerProfilePaths = []string{"profile_id", "profile.id", "profile_ref", "profileRef", "profile.ref"}
	ownerSincePaths   = []string{"since", "from", "start_date", "registered_at", "owner_since"}

	profileNamePaths    = []string{"name", "full_name", "company_name", "data.name"}
	profileStreetPaths  = []string{"address.street", "street_address", "address_line", "data.address.street"}
	profileZipPaths     = []string{"address.zip", "address.postal_code", "postal_code", "zip", "data.address.zip"}
	profileCityPaths    = []string{"address.city", "address.postal_city", "postal_city", "city", "data.address.city"}
	profilePhonePaths   = []string{"phone", "phone_number", "phones.0", "data.phone"}
	profileVehiclePaths = []string{"vehicles", "owned_vehicles", "data.vehicles"}
	profileAddrVehPaths = []string{"address_vehicles", "vehicles_at_address", "data.address_vehicles"}
	vehiclePlatePaths   = []string{"plate", "regno", "registration", "registration_number"}
	vehicleModelPaths   = []string{"model", "model_text", "description", "name"}
)

var dateLayouts = []string{time.RFC3339, "2006-01-02", "2006-01-02 15:04:05", "2006-01"}

func first(r gjson.Result, paths []string) gjson.Result {
	for _, p := range paths {
		if v := r.Get(p); v.Exists() && v.Type != gjson.Null {
			return v
		}
	}
	return gjson.Result{}
}

func firstString(r gjson.Result, paths []string) string {
	return strings.TrimSpace(first(r, paths).String())
}

func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func parseRecord(r gjson.Result) (model.OwnershipRecord, bool) {
	if r.Type == gjson.String {
		// Some search responses list bare owner names.
		name := strings.TrimSpace(r.String())
		return model.OwnershipRecord{Name: name, Class: model.OwnerClassUnknown}, name != ""
	}
	rec := model.OwnershipRecord{
		Name:       firstString(r, ownerNamePaths),
		Class:      model.ParseOwnerClass(firstString(r, ownerClassPaths)),
		ProfileRef: firstString(r, ownerProfilePaths),
		Since:      parseDate(firstString(r, ownerSincePaths)),
	}
	return rec, rec.Name != ""
}

func parseOwnership(body []byte) (*OwnershipResult, error) {
	if !gjson.ValidBytes(body) {
		return nil, eris.New("provider: invalid ownership json")
	}
	root := gjson.ParseBytes(body)
	out := &OwnershipResult{}

	var chain model.OwnershipChain
	if cur := first(root, currentOwnerPaths); cur.Exists() {
		if rec, ok := parseRecord(cur); ok {
			chain = append(chain, rec)
		}
	}
	if hist := first(root, historyPaths); hist.IsArray() {
		for i, item := range hist.Array() {
			rec, ok := parseRecord(item)
			if !ok {
				continue
			}
			// History lists often repeat the current owner first.
			if i == 0 && len(chain) == 1 && sameHolder(chain[0], rec) {
				if chain[0].ProfileRef == "" {
					chain[0].ProfileRef = rec.ProfileRef
				}
				continue
			}
			chain = append(chain, rec)
		}
	}
	out.Chain = orderMostRecentFirst(chain)

	if l := first(root, listingPaths); l.Exists() {
		name := firstString(l, []string{"seller_name", "seller.name", "dealer_name"})
		kind := strings.ToLower(firstString(l, []string{"seller_type", "seller.type", "seller_kind"}))
		if name != "" || kind != "" {
			a := &model.ListingAssertion{DeclaredSellerName: name, DeclaredSellerKind: model.SellerPrivate}
			if kind == "dealer" || kind == "company" || kind == "business" {
				a.DeclaredSellerKind = model.SellerDealer
			}
			out.Assertion = a
		}
	}
	return out, nil
}

func sameHolder(a, b model.OwnershipRecord) bool {
	return strings.EqualFold(a.Name, b.Name) && (a.Since.IsZero() || b.Since.IsZero() || a.Since.Equal(b.Since))
}

// orderMostRecentFirst sorts by Since descending when every record is dated;
// otherwise the provider's order is kept.
func orderMostRecentFirst(chain model.OwnershipChain) model.OwnershipChain {
	for _, r := range chain {
		if r.Since.IsZero() {
			return chain
		}
	}
	sort.SliceStable(chain, func(i, j int) bool { return chain[i].Since.After(chain[j].Since) })
	return chain
}

func parseProfile(ref string, body []byte) (*model.Profile, error) {
	if !gjson.ValidBytes(body) {
		return nil, eris.New("provider: invalid profile json")
	}
	root := gjson.ParseBytes(body)

	p := &model.Profile{
		Ref:  ref,
		Name: firstString(root, profileNamePaths),
		Contact: model.Contact{
			PostalCode: firstString(root, profileZipPaths),
			PostalCity: firstString(root, profileCityPaths),
			Phone:      firstString(root, profilePhonePaths),
		},
		Vehicles:        parseVehicles(first(root, profileVehiclePaths)),
		AddressVehicles: parseVehicles(first(root, profileAddrVehPaths)),
	}
	if addr := root.Get("address"); addr.Type == gjson.String {
		p.Contact.Address = strings.TrimSpace(addr.String())
	} else {
		p.Contact.Address = firstString(root, profileStreetPaths)
	}
	return p, nil
}

func parseVehicles(list gjson.Result) []model.ProfileVehicle {
	if !list.IsArray() {
		return nil
	}
	var out []model.ProfileVehicle
	for _, item := range list.Array() {
		v := model.ProfileVehicle{
			Plate:     strings.ToUpper(firstString(item, vehiclePlatePaths)),
			ModelText: firstString(item, vehicleModelPaths),
		}
		if v.Plate == "" && v.ModelText == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
