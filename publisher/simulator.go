package main

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/observatorio-agua/notifications/pkg/models"
)

// Simulated stand-ins for the real upstream data source.
// TODO: replace with readings pulled from the observatory ingest API.
var waterParameters = []string{
	"pH", "Turbidity", "Dissolved oxygen", "Conductivity",
	"Total coliforms", "E. coli", "Nitrates", "Phosphates",
	"Temperature", "Suspended solids",
}

var sampleLocations = []string{
	"Main River - North Station",
	"Main River - Central Station",
	"Main River - South Station",
	"East Tributary",
	"West Tributary",
	"Central Lagoon",
	"Municipal Reservoir",
}

var reportingEntities = []string{
	"Environment Secretariat",
	"Municipal Hydrology Institute",
	"Autonomous University - Environmental Engineering Faculty",
	"Public Utilities Company",
	"EcoWater NGO",
}

var uploadMethods = []string{"API", "Desktop App", "Field Device"}

// round2 keeps simulated decimals to two places, matching what field devices
// report.
func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}

// sampleMeasurement generates one measurement with a value range and unit
// appropriate for the parameter. Roughly one in five exceeds its permissible
// limit.
func sampleMeasurement(rng *rand.Rand) models.Measurement {
	parameter := waterParameters[rng.Intn(len(waterParameters))]

	var value float64
	var unit string
	switch parameter {
	case "pH":
		value = round2(6.0 + rng.Float64()*3.0) // 6.0–9.0
		unit = "pH"
	case "Temperature":
		value = round1(15.0 + rng.Float64()*15.0) // 15–30 °C
		unit = "°C"
	case "Turbidity":
		value = round2(0.5 + rng.Float64()*14.5) // 0.5–15 NTU
		unit = "NTU"
	case "Dissolved oxygen":
		value = round2(2.0 + rng.Float64()*10.0) // 2–12 mg/L
		unit = "mg/L"
	case "Total coliforms", "E. coli":
		value = float64(rng.Intn(5001)) // 0–5000
		unit = "CFU/100mL"
	default:
		value = round2(0.1 + rng.Float64()*99.9)
		unit = "mg/L"
	}

	return models.Measurement{
		Parameter:         parameter,
		Value:             value,
		Unit:              unit,
		ThresholdExceeded: rng.Float64() < 0.2,
	}
}

// simulateUpload generates one batch of 3–10 measurements as if an entity had
// just uploaded water-quality data for a sampling site.
func simulateUpload(rng *rand.Rand) models.UploadRecord {
	count := 3 + rng.Intn(8) // 3–10
	measurements := make([]models.Measurement, 0, count)
	for i := 0; i < count; i++ {
		measurements = append(measurements, sampleMeasurement(rng))
	}

	return models.UploadRecord{
		BatchID:         uuid.NewString(),
		Timestamp:       time.Now().UTC().Format(time.RFC3339Nano),
		Location:        sampleLocations[rng.Intn(len(sampleLocations))],
		ReportingEntity: reportingEntities[rng.Intn(len(reportingEntities))],
		Measurements:    measurements,
		Metadata: map[string]string{
			"device_id":     fmt.Sprintf("SENSOR-%d", 1000+rng.Intn(9000)),
			"upload_method": uploadMethods[rng.Intn(len(uploadMethods))],
			"comments":      "simulated data for proof of concept",
		},
	}
}
