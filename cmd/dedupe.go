package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/lead-resolver/internal/dedupe"
)

var (
	dedupeBatchID string
	dedupeFields  []string
)

var dedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Flag duplicate leads in an imported batch",
	Long:  "Checks every lead of an import batch against the rest of the lead population and against the other leads of the batch.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("dedupe"); err != nil {
			return err
		}
		if dedupeBatchID == "" {
			return eris.New("dedupe: --batch is required")
		}
		opts, err := dedupe.ParseMatchOptions(dedupeFields)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		summary, err := dedupe.NewService(st, cfg.Dedupe.PageSize).CheckBatch(ctx, dedupeBatchID, opts)
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, formatDedupeResult(summary.Result))
		return nil
	},
}

func init() {
	fields := make([]string, 0, len(dedupe.AllFields))
	for _, f := range dedupe.AllFields {
		fields = append(fields, string(f))
	}
	dedupeCmd.Flags().StringVar(&dedupeBatchID, "batch", "", "import batch id to check")
	dedupeCmd.Flags().StringSliceVar(&dedupeFields, "fields", fields, "fields to match on (plate, chassis, phone, name)")
	rootCmd.AddCommand(dedupeCmd)
}

func formatDedupeResult(res *dedupe.Result) string {
	rows := make([][]string, 0, len(res.Matches))
	for _, m := range res.Matches {
		rows = append(rows, []string{m.LeadID, m.MatchedID, string(m.Source), string(m.Field), m.Value})
	}
	out := ""
	if len(rows) > 0 {
		out = renderTable([]string{"LEAD", "DUPLICATE OF", "SOURCE", "FIELD", "VALUE"}, rows, nil) + "\n"
	}
	return out + renderTable(
		[]string{"CHECKED", "UNIQUE", "DUPLICATES", "EXISTING"},
		[][]string{{
			strconv.Itoa(res.TotalChecked),
			strconv.Itoa(res.UniqueCount),
			strconv.Itoa(res.DuplicateCount),
			strconv.Itoa(res.ExistingLeads),
		}},
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight},
	)
}
