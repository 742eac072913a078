// Package vehicle labels free-text model descriptions with a coarse vehicle class.
package vehicle

import (
	"regexp"
	"strings"

	"github.com/sells-group/lead-resolver/internal/names"
)

// Category is a coarse vehicle class.
type Category string

// Vehicle categories.
const (
	Motorcycle         Category = "motorcycle"
	Snowmobile         Category = "snowmobile"
	AllTerrainVehicle  Category = "all_terrain_vehicle"
	CaravanOrMotorhome Category = "caravan_or_motorhome"
	Trailer            Category = "trailer"
	LightCommercialVan Category = "light_commercial_van"
	Pickup             Category = "pickup"
	HeavyMachinery     Category = "heavy_machinery"
	PassengerCar       Category = "passenger_car"
)

type rule struct {
	category Category
	pattern  *regexp.Regexp
}

func words(tokens ...string) *regexp.Regexp {
	quoted := make([]string, len(tokens))
	for i, t := range tokens {
		quoted[i] = regexp.QuoteMeta(t)
	}
	// A token may carry a numeric model suffix: "mt" matches "mt07", "l" matches "l120h".
	return regexp.MustCompile(`(?:^|\s)(?:` + strings.Join(quoted, "|") + `)(?:\d[0-9a-z]*)?(?:\s|$)`)
}

// rules are evaluated in order against normalized text (hyphens and
// diacritics already folded); the first match wins. Motorhomes are checked
// before vans because most are built on van chassis (Ducato, Sprinter).
var rules = []rule{
	{Snowmobile, words("skidoo", "ski doo", "lynx", "arctic cat", "snoskoter", "snowmobile", "polaris rmk", "polaris indy", "polaris switchback", "yamaha viper", "yamaha sidewinder")},
	{AllTerrainVehicle, words("atv", "utv", "fyrhjuling", "quad", "canam outlander", "can am outlander", "canam maverick", "polaris sportsman", "polaris ranger", "polaris rzr", "cfmoto cforce", "yamaha grizzly", "yamaha raptor", "yamaha kodiak", "tgb blade", "segway snarler")},
	{Motorcycle, words("mc", "motorcykel", "motorcycle", "harley", "harleydavidson", "harley davidson", "ducati", "ktm", "triumph", "moto guzzi", "mv agusta", "aprilia", "royal enfield", "indian scout", "indian chief", "yamaha mt", "yamaha yzf", "kawasaki ninja", "kawasaki z", "honda cbr", "honda cb", "honda africa twin", "bmw gs", "bmw r", "suzuki gsxr", "suzuki vstrom", "moped", "scooter", "vespa")},
	{CaravanOrMotorhome, words("husvagn", "husbil", "caravan", "motorhome", "kabe", "hobby", "adria", "knaus", "dethleffs", "hymer", "burstner", "polar", "solifer", "tabbert", "fendt caravan", "bailey", "chausson", "rapido", "weinsberg", "sunlight", "carado", "globecar", "poessl", "westfalia")},
	{Trailer, words("slap", "slapvagn", "trailer", "karra", "tippvagn", "hasttransport", "brenderup", "fogelsta", "tiki", "respo", "humbaur", "ifor williams", "boggi")},
	{HeavyMachinery, words("hjullastare", "gravmaskin", "traktor", "tractor", "dumper", "truck", "lastbil", "excavator", "wheel loader", "caterpillar", "jcb", "komatsu", "hitachi zx", "liebherr", "volvo bm", "volvo ec", "volvo l", "john deere", "valtra", "massey ferguson", "new holland", "case ih", "kubota", "scania", "volvo fh", "volvo fm", "man tgx", "man tgs")},
	{Pickup, words("pickup", "pick up", "hilux", "ranger", "amarok", "navara", "l200", "dmax", "d max", "isuzu dmax", "f150", "f 150", "ram 1500", "ram 2500", "silverado", "tundra", "tacoma", "raptor", "gladiator", "maxus t60", "ssangyong musso", "musso", "xclass", "x class")},
	{LightCommercialVan, words("skapbil", "transportbil", "van", "transit", "transit custom", "sprinter", "vito", "citan", "crafter", "transporter", "caddy", "ducato", "jumper", "boxer", "berlingo", "partner", "expert", "jumpy", "proace", "vivaro", "movano", "combo", "trafic", "master", "kangoo", "doblo", "talento", "nv200", "nv300", "primastar", "hiace", "daily", "ehiace", "ivecodaily", "etransit", "id buzz cargo")},
}

// Classify returns the category for a model description. Unmatched or empty
// text is a passenger car.
func Classify(modelText string) Category {
	text := names.Normalize(modelText)
	if text == "" {
		return PassengerCar
	}
	for _, r := range rules {
		if r.pattern.MatchString(text) {
			return r.category
		}
	}
	return PassengerCar
}

// WorthKeeping reports whether vehicles of this category are worth retaining
// on an enriched lead. Trailers carry no prospecting value.
func (c Category) WorthKeeping() bool {
	return c != Trailer
}
