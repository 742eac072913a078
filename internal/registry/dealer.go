// Package registry holds the dealer registry: known dealer names and the
// aliases they have been observed under, cached in memory over the store.
package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-resolver/internal/model"
	"github.com/sells-group/lead-resolver/internal/names"
)

// Store is the persistence the registry reads through and writes through.
type Store interface {
	ListDealers(ctx context.Context) ([]model.DealerEntry, error)
	UpsertDealer(ctx context.Context, e *model.DealerEntry) error
	UpsertDealers(ctx context.Context, entries []model.DealerEntry) (int, error)
}

// Registry is the dealer alias cache. A nil store gives a registry that only
// lives for the process.
type Registry struct {
	store Store

	mu      sync.RWMutex
	entries map[string]*model.DealerEntry // keyed by normalized primary name
	aliases []string                      // normalized, first-seen order
	seen    map[string]struct{}
}

// New returns an empty registry over store. Call Reload to seed it.
func New(store Store) *Registry {
	return &Registry{
		store:   store,
		entries: make(map[string]*model.DealerEntry),
		seen:    make(map[string]struct{}),
	}
}

// Reload replaces the in-memory state with the persisted entries.
func (r *Registry) Reload(ctx context.Context) error {
	var persisted []model.DealerEntry
	if r.store != nil {
		var err error
		persisted, err = r.store.ListDealers(ctx)
		if err != nil {
			return eris.Wrap(err, "registry: reload")
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = make(map[string]*model.DealerEntry, len(persisted))
	r.aliases = r.aliases[:0]
	r.seen = make(map[string]struct{})

	for i := range persisted {
		e := persisted[i]
		key := names.Normalize(e.PrimaryName)
		if key == "" {
			continue
		}
		entry := r.entryLocked(key, e.PrimaryName)
		entry.MergeContact(e.Contact)
		if e.VehicleCountHint != nil {
			entry.VehicleCountHint = e.VehicleCountHint
		}
		entry.UpdatedAt = e.UpdatedAt
		r.addAliasLocked(entry, e.PrimaryName)
		for _, a := range e.AliasList() {
			r.addAliasLocked(entry, a)
		}
	}

	zap.L().Debug("registry: reloaded",
		zap.Int("dealers", len(r.entries)),
		zap.Int("aliases", len(r.aliases)),
	)
	return nil
}

// IsKnownDealer reports whether name fuzzy-matches any registered alias.
func (r *Registry) IsKnownDealer(name string) bool {
	n := names.Normalize(name)
	if n == "" {
		return false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.seen[n]; ok {
		return true
	}
	for _, alias := range r.aliases {
		if names.Matches(n, alias) {
			return true
		}
	}
	return false
}

// Enrich records that the dealer primaryName was observed as observedAlias,
// merging any contact details. The alias is effective for IsKnownDealer
// immediately; the entry is then written through to the store.
func (r *Registry) Enrich(ctx context.Context, primaryName, observedAlias string, contact *model.Contact) error {
	key := names.Normalize(primaryName)
	if key == "" {
		return eris.New("registry: empty primary name")
	}

	r.mu.Lock()
	entry := r.entryLocked(key, primaryName)
	added := r.addAliasLocked(entry, primaryName)
	if r.addAliasLocked(entry, observedAlias) {
		added = true
	}
	merged := entry.MergeContact(contact)
	entry.UpdatedAt = time.Now().UTC()
	snapshot := cloneEntry(entry)
	r.mu.Unlock()

	zap.L().Debug("registry: enriched dealer",
		zap.String("dealer", primaryName),
		zap.String("alias", names.Normalize(observedAlias)),
		zap.Bool("new_alias", added),
		zap.Bool("contact_merged", merged),
	)

	if r.store == nil {
		return nil
	}
	return eris.Wrapf(r.store.UpsertDealer(ctx, &snapshot), "registry: persist dealer %s", primaryName)
}

// Seed merges entries into the registry and persists the merged result in
// one batch. It returns the number of entries written.
func (r *Registry) Seed(ctx context.Context, entries []model.DealerEntry) (int, error) {
	r.mu.Lock()
	touched := make(map[string]struct{}, len(entries))
	for i := range entries {
		e := entries[i]
		key := names.Normalize(e.PrimaryName)
		if key == "" {
			continue
		}
		entry := r.entryLocked(key, e.PrimaryName)
		r.addAliasLocked(entry, e.PrimaryName)
		for _, a := range e.AliasList() {
			r.addAliasLocked(entry, a)
		}
		entry.MergeContact(e.Contact)
		if e.VehicleCountHint != nil {
			entry.VehicleCountHint = e.VehicleCountHint
		}
		entry.UpdatedAt = time.Now().UTC()
		touched[key] = struct{}{}
	}
	batch := make([]model.DealerEntry, 0, len(touched))
	for key := range touched {
		batch = append(batch, cloneEntry(r.entries[key]))
	}
	r.mu.Unlock()

	sort.Slice(batch, func(i, j int) bool { return batch[i].PrimaryName < batch[j].PrimaryName })
	if r.store == nil || len(batch) == 0 {
		return len(batch), nil
	}
	n, err := r.store.UpsertDealers(ctx, batch)
	if err != nil {
		return 0, eris.Wrap(err, "registry: seed")
	}
	return n, nil
}

// Entries returns a copy of every entry, sorted by primary name.
func (r *Registry) Entries() []model.DealerEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.DealerEntry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, cloneEntry(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PrimaryName < out[j].PrimaryName })
	return out
}

// Len returns the number of distinct aliases.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.aliases)
}

func (r *Registry) entryLocked(key, primaryName string) *model.DealerEntry {
	if e, ok := r.entries[key]; ok {
		return e
	}
	e := &model.DealerEntry{PrimaryName: primaryName}
	r.entries[key] = e
	return e
}

// addAliasLocked normalizes alias and adds it to entry and the match list.
func (r *Registry) addAliasLocked(entry *model.DealerEntry, alias string) bool {
	n := names.Normalize(alias)
	if n == "" {
		return false
	}
	added := entry.AddAlias(n)
	if _, ok := r.seen[n]; !ok {
		r.seen[n] = struct{}{}
		r.aliases = append(r.aliases, n)
	}
	return added
}

func cloneEntry(e *model.DealerEntry) model.DealerEntry {
	out := model.DealerEntry{
		PrimaryName: e.PrimaryName,
		UpdatedAt:   e.UpdatedAt,
		Aliases:     make(map[string]struct{}, len(e.Aliases)),
	}
	for a := range e.Aliases {
		out.Aliases[a] = struct{}{}
	}
	if e.Contact != nil {
		c := *e.Contact
		out.Contact = &c
	}
	if e.VehicleCountHint != nil {
		n := *e.VehicleCountHint
		out.VehicleCountHint = &n
	}
	return out
}
