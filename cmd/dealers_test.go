package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-resolver/internal/config"
	"github.com/sells-group/lead-resolver/internal/model"
)

func TestParseDealerSeed(t *testing.T) {
	in := `
dealers:
  - primary_name: " Bilo AB "
    aliases: ["Bilo", "Bilo Göteborg"]
    contact:
      phone: 031-100200
      postal_city: Göteborg
    vehicle_count_hint: 140
  - primary_name: Riddermark Bil AB
`
	entries, err := parseDealerSeed(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "Bilo AB", entries[0].PrimaryName)
	assert.Equal(t, []string{"Bilo", "Bilo Göteborg"}, entries[0].AliasList())
	require.NotNil(t, entries[0].Contact)
	assert.Equal(t, "031-100200", entries[0].Contact.Phone)
	require.NotNil(t, entries[0].VehicleCountHint)
	assert.Equal(t, 140, *entries[0].VehicleCountHint)
	assert.Empty(t, entries[1].AliasList())
}

func TestParseDealerSeed_MissingPrimary(t *testing.T) {
	_, err := parseDealerSeed(strings.NewReader("dealers:\n  - aliases: [x]\n"))
	assert.ErrorContains(t, err, "entry 1 has no primary_name")
}

func TestFormatDealers(t *testing.T) {
	hint := 12
	e := model.DealerEntry{PrimaryName: "Bilo AB", Contact: &model.Contact{Phone: "031-100200", PostalCity: "Göteborg"}, VehicleCountHint: &hint}
	e.AddAlias("bilo")
	e.AddAlias("bilo ab")

	out := formatDealers([]model.DealerEntry{e, {PrimaryName: "Solo Bil"}})
	assert.Contains(t, out, "Bilo AB")
	assert.Contains(t, out, "bilo, bilo ab")
	assert.Contains(t, out, "031-100200")
	assert.Contains(t, out, "12")
	assert.Contains(t, out, "Solo Bil")
}

func TestDealersSeedCmd_RequiresFile(t *testing.T) {
	cfg = &config.Config{Store: config.StoreConfig{Driver: "sqlite", DatabaseURL: "leads.db"}}
	old := dealersSeedFile
	dealersSeedFile = ""
	defer func() { dealersSeedFile = old }()

	err := dealersSeedCmd.RunE(dealersSeedCmd, nil)
	assert.ErrorContains(t, err, "--file is required")
}
