package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/lead-resolver/internal/model"
)

var (
	importFilePath string
	importBatchID  string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Queue vehicles and ingest a lead batch from a YAML file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("store"); err != nil {
			return err
		}
		if importFilePath == "" {
			return eris.New("import: --file is required")
		}

		f, err := os.Open(importFilePath)
		if err != nil {
			return eris.Wrap(err, "import: open file")
		}
		defer f.Close() //nolint:errcheck

		data, err := parseImportFile(f, importBatchID)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		for _, v := range data.Vehicles {
			if err := st.UpsertVehicle(ctx, v); err != nil {
				return eris.Wrapf(err, "import: queue vehicle %s", v.Plate)
			}
		}
		n, err := st.InsertLeads(ctx, data.Leads)
		if err != nil {
			return eris.Wrap(err, "import: insert leads")
		}

		fmt.Fprintf(os.Stderr, "queued %d vehicles, imported %d leads\n", len(data.Vehicles), n)
		if n > 0 {
			fmt.Fprintf(os.Stdout, "batch %s\n", data.BatchID)
		}
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importFilePath, "file", "", "YAML file with vehicles and/or leads")
	importCmd.Flags().StringVar(&importBatchID, "batch", "", "batch id for the imported leads (default: file batch or a new uuid)")
	rootCmd.AddCommand(importCmd)
}

type importDoc struct {
	Batch    string          `yaml:"batch"`
	Vehicles []importVehicle `yaml:"vehicles"`
	Leads    []importLead    `yaml:"leads"`
}

type importVehicle struct {
	Plate      string `yaml:"plate"`
	Chassis    string `yaml:"chassis"`
	Model      string `yaml:"model"`
	SellerName string `yaml:"seller_name"`
	SellerKind string `yaml:"seller_kind"`
}

type importLead struct {
	ID        string `yaml:"id"`
	Plate     string `yaml:"plate"`
	Chassis   string `yaml:"chassis"`
	Phone     string `yaml:"phone"`
	OwnerName string `yaml:"owner_name"`
}

type importData struct {
	BatchID  string
	Vehicles []model.Vehicle
	Leads    []model.Lead
}

// parseImportFile decodes an import document. batchOverride wins over the
// file's batch; with neither, a new batch id is generated.
func parseImportFile(r io.Reader, batchOverride string) (*importData, error) {
	var doc importDoc
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && err != io.EOF {
		return nil, eris.Wrap(err, "import: decode yaml")
	}

	out := &importData{BatchID: batchOverride}
	if out.BatchID == "" {
		out.BatchID = doc.Batch
	}
	if out.BatchID == "" {
		out.BatchID = uuid.New().String()
	}

	for i, v := range doc.Vehicles {
		plate := strings.ToUpper(strings.Join(strings.Fields(v.Plate), ""))
		if plate == "" {
			return nil, eris.Errorf("import: vehicle %d has no plate", i+1)
		}
		kind := model.SellerKind(strings.ToLower(strings.TrimSpace(v.SellerKind)))
		switch kind {
		case model.SellerPrivate, model.SellerDealer, "":
		default:
			return nil, eris.Errorf("import: vehicle %s has unknown seller_kind %q", plate, v.SellerKind)
		}
		out.Vehicles = append(out.Vehicles, model.Vehicle{
			Plate:     plate,
			Chassis:   strings.TrimSpace(v.Chassis),
			ModelText: strings.TrimSpace(v.Model),
			Listing:   model.ListingAssertion{DeclaredSellerName: strings.TrimSpace(v.SellerName), DeclaredSellerKind: kind},
			Status:    model.EnrichPending,
		})
	}

	for _, l := range doc.Leads {
		id := l.ID
		if id == "" {
			id = uuid.New().String()
		}
		out.Leads = append(out.Leads, model.Lead{
			ID:        id,
			BatchID:   out.BatchID,
			Plate:     l.Plate,
			Chassis:   l.Chassis,
			Phone:     l.Phone,
			OwnerName: l.OwnerName,
		})
	}
	return out, nil
}
