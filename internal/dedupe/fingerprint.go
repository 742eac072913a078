package dedupe

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-resolver/internal/model"
	"github.com/sells-group/lead-resolver/internal/names"
)

// Field is one fingerprint dimension.
type Field string

const (
	FieldPlate   Field = "plate"
	FieldChassis Field = "chassis"
	FieldPhone   Field = "phone"
	FieldName    Field = "name"
)

// AllFields lists the fingerprint fields in probe order.
var AllFields = []Field{FieldPlate, FieldChassis, FieldPhone, FieldName}

// Minimum phone and name key lengths. Plate and chassis only need to be
// non-empty.
const (
	minPhoneLen = 8
	minNameLen  = 4
)

// MatchOptions selects the fields the detector compares on.
type MatchOptions struct {
	Plate   bool
	Chassis bool
	Phone   bool
	Name    bool
}

// Fields returns the enabled fields in probe order.
func (o MatchOptions) Fields() []Field {
	var out []Field
	if o.Plate {
		out = append(out, FieldPlate)
	}
	if o.Chassis {
		out = append(out, FieldChassis)
	}
	if o.Phone {
		out = append(out, FieldPhone)
	}
	if o.Name {
		out = append(out, FieldName)
	}
	return out
}

// ParseMatchOptions builds MatchOptions from field names.
func ParseMatchOptions(fields []string) (MatchOptions, error) {
	var o MatchOptions
	for _, f := range fields {
		switch Field(strings.ToLower(strings.TrimSpace(f))) {
		case FieldPlate:
			o.Plate = true
		case FieldChassis:
			o.Chassis = true
		case FieldPhone:
			o.Phone = true
		case FieldName:
			o.Name = true
		case "":
		default:
			return MatchOptions{}, eris.Errorf("dedupe: unknown match field %q", f)
		}
	}
	return o, nil
}

// Fingerprint holds the normalized keys of one lead. An empty key is never
// indexed.
type Fingerprint struct {
	Plate   string
	Chassis string
	Phone   string
	Name    string
}

// FingerprintOf derives the fingerprint of a lead.
func FingerprintOf(l model.Lead) Fingerprint {
	return Fingerprint{
		Plate:   compactUpper(l.Plate),
		Chassis: compactUpper(l.Chassis),
		Phone:   guard(digits(l.Phone), minPhoneLen),
		Name:    guard(names.Normalize(l.OwnerName), minNameLen),
	}
}

// Get returns the key for field.
func (f Fingerprint) Get(field Field) string {
	switch field {
	case FieldPlate:
		return f.Plate
	case FieldChassis:
		return f.Chassis
	case FieldPhone:
		return f.Phone
	case FieldName:
		return f.Name
	default:
		return ""
	}
}

// compactUpper drops whitespace and upper-cases. Punctuation is kept, so
// "AB-C123" and "ABC-123" stay distinct.
func compactUpper(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func guard(key string, minLen int) string {
	if utf8.RuneCountInString(key) < minLen {
		return ""
	}
	return key
}
