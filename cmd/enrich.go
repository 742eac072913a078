package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/lead-resolver/internal/config"
	"github.com/sells-group/lead-resolver/internal/enrich"
	"github.com/sells-group/lead-resolver/internal/provenance"
	"github.com/sells-group/lead-resolver/internal/registry"
	"github.com/sells-group/lead-resolver/internal/resilience"
	"github.com/sells-group/lead-resolver/internal/store"
	"github.com/sells-group/lead-resolver/pkg/provider"
)

var enrichLimit int

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Resolve ownership for the next batch of queued vehicles",
	Long: "Pulls pending vehicles from the queue and resolves each one against the ownership provider, one at a time. " +
		"Requests are paced with jitter and backoff; repeated rate limiting opens a breaker that skips the rest of the batch.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("enrich"); err != nil {
			return err
		}

		lock := flock.New(cfg.Enrich.LockPath)
		ok, err := lock.TryLock()
		if err != nil {
			return eris.Wrap(err, "enrich: acquire lock")
		}
		if !ok {
			return eris.Errorf("enrich: another run holds %s", cfg.Enrich.LockPath)
		}
		defer lock.Unlock() //nolint:errcheck

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		orch := buildOrchestrator(cfg, st, enrichLimit)
		summary, err := orch.Run(ctx)
		if summary != nil {
			fmt.Fprintln(os.Stdout, formatEnrichSummary(summary))
		}
		if errors.Is(err, enrich.ErrProviderUnavailable) {
			return eris.Wrap(err, "enrich: run aborted")
		}
		return err
	},
}

func init() {
	enrichCmd.Flags().IntVar(&enrichLimit, "limit", 0, "max vehicles to process (default enrich.batch_size)")
	rootCmd.AddCommand(enrichCmd)
}

func enrichConfig(c *config.Config, limit int) enrich.Config {
	e := c.Enrich
	batch := e.BatchSize
	if limit > 0 {
		batch = limit
	}
	return enrich.Config{
		Pacer: resilience.FromPacingConfig(e.InitialDelayMs, e.MaxDelayMs, e.RelaxFactor,
			e.FailureThreshold, e.JitterMinMs, e.JitterMaxMs),
		ProfileDelayMin: time.Duration(e.ProfileDelayMinMs) * time.Millisecond,
		ProfileDelayMax: time.Duration(e.ProfileDelayMaxMs) * time.Millisecond,
		BatchSize:       batch,
		Retry:           resilience.DefaultRetryConfig(),
	}
}

func newProviderClient(c *config.Config) provider.Client {
	opts := []provider.Option{
		provider.WithRequestsPerMinute(c.Provider.RequestsPerMinute),
		provider.WithUserAgent(c.Provider.UserAgent),
	}
	if c.Provider.TimeoutSecs > 0 {
		opts = append(opts, provider.WithTimeout(time.Duration(c.Provider.TimeoutSecs)*time.Second))
	}
	return provider.NewClient(c.Provider.BaseURL, c.Provider.APIKey, opts...)
}

func buildOrchestrator(c *config.Config, st store.Store, limit int) *enrich.Orchestrator {
	reg := registry.New(st)
	walker := provenance.NewWalker(reg, c.Enrich.DealerVehicleThreshold)
	return enrich.New(newProviderClient(c), st, walker, reg, enrichConfig(c, limit))
}

func formatEnrichSummary(s *enrich.RunSummary) string {
	rows := make([][]string, 0, len(s.Items))
	for _, item := range s.Items {
		lead := ""
		if item.HasLead {
			lead = "yes"
		}
		delay := ""
		if item.Delay > 0 {
			delay = item.Delay.Round(100 * time.Millisecond).String()
		}
		rows = append(rows, []string{
			item.Plate,
			string(item.Outcome),
			string(item.OwnerKind),
			lead,
			truncate(item.Detail, 40),
			delay,
		})
	}
	table := renderTable(
		[]string{"PLATE", "OUTCOME", "OWNER", "LEAD", "DETAIL", "DELAY"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
	)

	totals := renderTable(
		[]string{"RUN", "STATUS", "RESOLVED", "NO DATA", "FAILED", "RATE LIMITED", "SKIPPED", "LEADS", "PERSIST ERR"},
		[][]string{{
			truncateID(s.RunID),
			string(s.Status),
			strconv.Itoa(s.Resolved),
			strconv.Itoa(s.NoData),
			strconv.Itoa(s.Failed),
			strconv.Itoa(s.RateLimited),
			strconv.Itoa(s.Skipped),
			strconv.Itoa(s.Leads),
			strconv.Itoa(s.PersistFailures),
		}},
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
	)

	out := totals
	if len(rows) > 0 {
		out = table + "\n" + totals
	}
	if s.BreakerOpened {
		out += "\ncircuit breaker opened: remaining vehicles were skipped and stay queued"
	}
	if s.Cancelled {
		out += "\nrun cancelled: remaining vehicles were skipped and stay queued"
	}
	return out
}
