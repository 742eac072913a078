// Package dedupe flags candidate leads that duplicate the existing lead
// population or each other.
package dedupe

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-resolver/internal/model"
)

var (
	// ErrNoCandidates is returned for an empty candidate batch.
	ErrNoCandidates = eris.New("dedupe: no candidate leads")
	// ErrNoMatchFields is returned when no match field is enabled.
	ErrNoMatchFields = eris.New("dedupe: no match fields enabled")
)

// DefaultPageSize is the page size used to read the existing population.
const DefaultPageSize = 1000

// MatchSource says where the earlier lead of a match lives.
type MatchSource string

const (
	SourceExisting MatchSource = "existing"
	SourceBatch    MatchSource = "batch"
)

// DuplicateMatch is one field-level hit. MatchedID is the existing lead or,
// for in-batch matches, the first candidate carrying the value.
type DuplicateMatch struct {
	LeadID    string      `json:"lead_id"`
	MatchedID string      `json:"matched_id"`
	Field     Field       `json:"field"`
	Value     string      `json:"value"`
	Source    MatchSource `json:"source"`
}

// Result summarizes one detection pass.
type Result struct {
	TotalChecked   int              `json:"total_checked"`
	UniqueCount    int              `json:"unique_count"`
	DuplicateCount int              `json:"duplicate_count"`
	ExistingLeads  int              `json:"existing_leads"`
	Matches        []DuplicateMatch `json:"matches"`
	DuplicateIDs   []string         `json:"duplicate_ids"`
}

// Population pages through the existing leads.
type Population interface {
	ListLeads(ctx context.Context, offset, limit int) ([]model.Lead, error)
}

// Detector compares candidate batches against a lead population.
type Detector struct {
	population Population
	pageSize   int
}

// NewDetector returns a Detector. pageSize <= 0 uses DefaultPageSize.
func NewDetector(population Population, pageSize int) *Detector {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Detector{population: population, pageSize: pageSize}
}

// index maps a fingerprint value to the first lead id that carried it.
type index map[string]string

// Detect checks candidates against the existing population and against
// each other. Candidates already present in the population (same id) are
// left out of the population side.
func (d *Detector) Detect(ctx context.Context, candidates []model.Lead, opts MatchOptions) (*Result, error) {
	fields := opts.Fields()
	if len(fields) == 0 {
		return nil, ErrNoMatchFields
	}
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}

	exclude := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		if c.ID != "" {
			exclude[c.ID] = struct{}{}
		}
	}

	existing, scanned, err := d.buildIndices(ctx, fields, exclude)
	if err != nil {
		return nil, err
	}

	res := &Result{TotalChecked: len(candidates), ExistingLeads: scanned}
	flagged := make(map[int]struct{})

	prints := make([]Fingerprint, len(candidates))
	for i, c := range candidates {
		prints[i] = FingerprintOf(c)
	}

	// Against the existing population.
	for i, c := range candidates {
		for _, f := range fields {
			v := prints[i].Get(f)
			if v == "" {
				continue
			}
			if id, ok := existing[f][v]; ok {
				res.Matches = append(res.Matches, DuplicateMatch{
					LeadID: c.ID, MatchedID: id, Field: f, Value: v, Source: SourceExisting,
				})
				flagged[i] = struct{}{}
			}
		}
	}

	// Within the batch: the first lead carrying a value is canonical.
	for _, f := range fields {
		first := make(map[string]int)
		for i, c := range candidates {
			v := prints[i].Get(f)
			if v == "" {
				continue
			}
			j, seen := first[v]
			if !seen {
				first[v] = i
				continue
			}
			res.Matches = append(res.Matches, DuplicateMatch{
				LeadID: c.ID, MatchedID: candidates[j].ID, Field: f, Value: v, Source: SourceBatch,
			})
			flagged[i] = struct{}{}
		}
	}

	for i, c := range candidates {
		if _, ok := flagged[i]; ok {
			res.DuplicateIDs = append(res.DuplicateIDs, c.ID)
		}
	}
	res.DuplicateCount = len(flagged)
	res.UniqueCount = res.TotalChecked - res.DuplicateCount

	zap.L().Info("dedupe: batch checked",
		zap.Int("candidates", res.TotalChecked),
		zap.Int("existing", res.ExistingLeads),
		zap.Int("duplicates", res.DuplicateCount),
		zap.Int("matches", len(res.Matches)),
	)
	return res, nil
}

// buildIndices reads the population page by page until a short page and
// indexes every enabled field.
func (d *Detector) buildIndices(ctx context.Context, fields []Field, exclude map[string]struct{}) (map[Field]index, int, error) {
	indices := make(map[Field]index, len(fields))
	for _, f := range fields {
		indices[f] = make(index)
	}

	scanned := 0
	for offset := 0; ; offset += d.pageSize {
		page, err := d.population.ListLeads(ctx, offset, d.pageSize)
		if err != nil {
			return nil, 0, eris.Wrapf(err, "dedupe: list leads at offset %d", offset)
		}
		for _, l := range page {
			if _, skip := exclude[l.ID]; skip {
				continue
			}
			scanned++
			fp := FingerprintOf(l)
			for _, f := range fields {
				v := fp.Get(f)
				if v == "" {
					continue
				}
				if _, ok := indices[f][v]; !ok {
					indices[f][v] = l.ID
				}
			}
		}
		if len(page) < d.pageSize {
			break
		}
	}

	zap.L().Debug("dedupe: indices built", zap.Int("leads", scanned))
	return indices, scanned, nil
}
