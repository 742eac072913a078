package enrich

import (
	"time"

	"github.com/sells-group/lead-resolver/internal/model"
)

// Outcome is what happened to one vehicle in a run.
type Outcome string

const (
	OutcomeResolved    Outcome = "resolved"
	OutcomeNoData      Outcome = "no_data"
	OutcomeFailed      Outcome = "failed"
	OutcomeRateLimited Outcome = "rate_limited"
	OutcomeSkipped     Outcome = "skipped"
)

// ItemResult records one vehicle's outcome.
type ItemResult struct {
	Plate            string          `json:"plate"`
	Outcome          Outcome         `json:"outcome"`
	Detail           string          `json:"detail,omitempty"`
	OwnerKind        model.OwnerKind `json:"owner_kind,omitempty"`
	HasLead          bool            `json:"has_lead,omitempty"`
	Delay            time.Duration   `json:"delay_ns,omitempty"`
	ProfileFailures  int             `json:"profile_failures,omitempty"`
	RegistryFailures int             `json:"registry_failures,omitempty"`
	PersistFailures  int             `json:"persist_failures,omitempty"`
}

// RunSummary is the batch-level report of one enrichment run. Counts are
// reported even under partial failure.
type RunSummary struct {
	RunID           string          `json:"run_id"`
	Status          model.RunStatus `json:"status"`
	Error           string          `json:"error,omitempty"`
	Total           int             `json:"total"`
	Resolved        int             `json:"resolved"`
	NoData          int             `json:"no_data"`
	Failed          int             `json:"failed"`
	RateLimited     int             `json:"rate_limited"`
	Skipped         int             `json:"skipped"`
	Leads           int             `json:"leads"`
	ProfileFailures int             `json:"profile_failures"`
	PersistFailures int             `json:"persist_failures"`
	RegistryErrors  int             `json:"registry_errors"`
	BreakerOpened   bool            `json:"breaker_opened"`
	Cancelled       bool            `json:"cancelled"`
	FinalDelay      time.Duration   `json:"final_delay_ns"`
	StartedAt       time.Time       `json:"started_at"`
	FinishedAt      time.Time       `json:"finished_at"`
	Items           []ItemResult    `json:"items"`
}

func (s *RunSummary) record(item ItemResult) {
	switch item.Outcome {
	case OutcomeResolved:
		s.Resolved++
		if item.HasLead {
			s.Leads++
		}
	case OutcomeNoData:
		s.NoData++
	case OutcomeFailed:
		s.Failed++
	case OutcomeRateLimited:
		s.RateLimited++
	case OutcomeSkipped:
		s.Skipped++
	}
	s.ProfileFailures += item.ProfileFailures
	s.PersistFailures += item.PersistFailures
	s.RegistryErrors += item.RegistryFailures
	s.Items = append(s.Items, item)
}

// Attempted returns the number of items that reached the provider.
func (s *RunSummary) Attempted() int {
	return s.Total - s.Skipped
}
