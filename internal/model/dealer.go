package model

import (
	"sort"
	"time"
)

// DealerEntry is a known dealer with the normalized aliases it has been seen under.
type DealerEntry struct {
	PrimaryName      string              `json:"primary_name" yaml:"primary_name"`
	Aliases          map[string]struct{} `json:"-" yaml:"-"`
	Contact          *Contact            `json:"contact,omitempty" yaml:"contact,omitempty"`
	VehicleCountHint *int                `json:"vehicle_count_hint,omitempty" yaml:"vehicle_count_hint,omitempty"`
	UpdatedAt        time.Time           `json:"updated_at" yaml:"-"`
}

// AliasList returns the aliases in sorted order.
func (e *DealerEntry) AliasList() []string {
	out := make([]string, 0, len(e.Aliases))
	for a := range e.Aliases {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// AddAlias inserts an alias, ignoring empty strings. Returns true if it was new.
func (e *DealerEntry) AddAlias(alias string) bool {
	if alias == "" {
		return false
	}
	if e.Aliases == nil {
		e.Aliases = make(map[string]struct{})
	}
	if _, ok := e.Aliases[alias]; ok {
		return false
	}
	e.Aliases[alias] = struct{}{}
	return true
}

// MergeContact overwrites fields with non-empty values from c. Empty values
// never erase existing data.
func (e *DealerEntry) MergeContact(c *Contact) bool {
	if c.IsEmpty() {
		return false
	}
	if e.Contact == nil {
		e.Contact = &Contact{}
	}
	changed := false
	set := func(dst *string, v string) {
		if v != "" && *dst != v {
			*dst = v
			changed = true
		}
	}
	set(&e.Contact.Address, c.Address)
	set(&e.Contact.PostalCode, c.PostalCode)
	set(&e.Contact.PostalCity, c.PostalCity)
	set(&e.Contact.Phone, c.Phone)
	return changed
}
