package vehicle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		model string
		want  Category
	}{
		{"Volvo V70 2.4", PassengerCar},
		{"", PassengerCar},
		{"Harley-Davidson Softail", Motorcycle},
		{"Yamaha MT-07", Motorcycle},
		{"BMW R1250GS Adventure", Motorcycle},
		{"Ski-Doo MXZ 600", Snowmobile},
		{"Lynx Rave RE 850", Snowmobile},
		{"Can-Am Outlander 650", AllTerrainVehicle},
		{"Polaris Ranger XP 1000", AllTerrainVehicle},
		{"Kabe Royal 560", CaravanOrMotorhome},
		{"Fiat Ducato Husbil", CaravanOrMotorhome},
		{"Brenderup 1205S", Trailer},
		{"Släpvagn Fogelsta", Trailer},
		{"Ford Transit Custom", LightCommercialVan},
		{"Mercedes-Benz Sprinter 316", LightCommercialVan},
		{"Toyota Hilux 2.4 D-4D", Pickup},
		{"Isuzu D-Max", Pickup},
		{"Ford F-150 Raptor", Pickup},
		{"Volvo L120H", HeavyMachinery},
		{"John Deere 6155R", HeavyMachinery},
		{"Volkswagen Passat Variant", PassengerCar},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.model))
		})
	}
}

func TestCategory_WorthKeeping(t *testing.T) {
	assert.False(t, Trailer.WorthKeeping())
	assert.True(t, PassengerCar.WorthKeeping())
	assert.True(t, Motorcycle.WorthKeeping())
}
