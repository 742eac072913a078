package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/lead-resolver/internal/model"
	"github.com/sells-group/lead-resolver/internal/registry"
)

var dealersSeedFile string

var dealersCmd = &cobra.Command{
	Use:   "dealers",
	Short: "Manage the dealer registry",
}

var dealersSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load known dealers from a YAML file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("store"); err != nil {
			return err
		}
		if dealersSeedFile == "" {
			return eris.New("dealers seed: --file is required")
		}

		f, err := os.Open(dealersSeedFile)
		if err != nil {
			return eris.Wrap(err, "dealers seed: open file")
		}
		defer f.Close() //nolint:errcheck

		entries, err := parseDealerSeed(f)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		reg := registry.New(st)
		if err := reg.Reload(ctx); err != nil {
			return err
		}
		n, err := reg.Seed(ctx, entries)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "seeded %d dealers (%d aliases known)\n", n, reg.Len())
		return nil
	},
}

var dealersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered dealers and their aliases",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("store"); err != nil {
			return err
		}
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		entries, err := st.ListDealers(ctx)
		if err != nil {
			return eris.Wrap(err, "dealers list")
		}
		if len(entries) == 0 {
			fmt.Fprintln(os.Stderr, "No dealers registered.")
			return nil
		}
		fmt.Fprintln(os.Stdout, formatDealers(entries))
		return nil
	},
}

func init() {
	dealersSeedCmd.Flags().StringVar(&dealersSeedFile, "file", "", "YAML file of dealers")
	dealersCmd.AddCommand(dealersSeedCmd)
	dealersCmd.AddCommand(dealersListCmd)
	rootCmd.AddCommand(dealersCmd)
}

type dealerSeedFile struct {
	Dealers []dealerSeed `yaml:"dealers"`
}

type dealerSeed struct {
	PrimaryName      string         `yaml:"primary_name"`
	Aliases          []string       `yaml:"aliases"`
	Contact          *model.Contact `yaml:"contact"`
	VehicleCountHint *int           `yaml:"vehicle_count_hint"`
}

// parseDealerSeed reads a dealers file. Entries without a primary name are
// rejected.
func parseDealerSeed(r io.Reader) ([]model.DealerEntry, error) {
	var file dealerSeedFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil && err != io.EOF {
		return nil, eris.Wrap(err, "dealers seed: decode yaml")
	}

	entries := make([]model.DealerEntry, 0, len(file.Dealers))
	for i, d := range file.Dealers {
		if strings.TrimSpace(d.PrimaryName) == "" {
			return nil, eris.Errorf("dealers seed: entry %d has no primary_name", i+1)
		}
		e := model.DealerEntry{
			PrimaryName:      strings.TrimSpace(d.PrimaryName),
			Contact:          d.Contact,
			VehicleCountHint: d.VehicleCountHint,
		}
		for _, a := range d.Aliases {
			e.AddAlias(a)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func formatDealers(entries []model.DealerEntry) string {
	rows := make([][]string, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		phone, city := "", ""
		if e.Contact != nil {
			phone, city = e.Contact.Phone, e.Contact.PostalCity
		}
		hint := ""
		if e.VehicleCountHint != nil {
			hint = strconv.Itoa(*e.VehicleCountHint)
		}
		rows = append(rows, []string{
			e.PrimaryName,
			truncate(strings.Join(e.AliasList(), ", "), 60),
			phone,
			city,
			hint,
		})
	}
	return renderTable(
		[]string{"DEALER", "ALIASES", "PHONE", "CITY", "VEHICLES"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
	)
}
