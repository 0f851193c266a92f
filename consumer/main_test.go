package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/observatorio-agua/notifications/pkg/models"
)

func testEnvelope(measurements []models.Measurement) models.Envelope {
	return models.NewEnvelope(models.UploadRecord{
		BatchID:         "cc1b2c3d-0000-4000-8000-0000000000cc",
		Timestamp:       time.Now().UTC().Format(time.RFC3339Nano),
		Location:        "Municipal Reservoir",
		ReportingEntity: "Environment Secretariat",
		Measurements:    measurements,
		Metadata:        map[string]string{"device_id": "SENSOR-2024"},
	})
}

// Minimal batch: one measurement, nothing exceeded. The render must flag
// zero alerts.
func TestDisplayNoAlerts(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	n := NewConsoleNotifier(&buf)

	env := testEnvelope([]models.Measurement{
		{Parameter: "pH", Value: 7.1, Unit: "pH", ThresholdExceeded: false},
	})
	if err := n.Display(env); err != nil {
		t.Fatalf("Display: %v", err)
	}

	out := buf.String()
	if strings.Contains(out, "ATTENTION!") {
		t.Fatal("no alert summary expected when nothing exceeds a threshold")
	}
	if strings.Count(out, "ALERT") != 0 {
		t.Fatalf("expected zero alert lines, got output:\n%s", out)
	}
	if !strings.Contains(out, "pH") || !strings.Contains(out, "Normal") {
		t.Fatalf("measurement line missing from render:\n%s", out)
	}
}

// Two measurements, one exceeded: rendered alert count must equal 1.
func TestDisplayOneAlert(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	n := NewConsoleNotifier(&buf)

	env := testEnvelope([]models.Measurement{
		{Parameter: "pH", Value: 7.1, Unit: "pH", ThresholdExceeded: false},
		{Parameter: "Turbidity", Value: 14.8, Unit: "NTU", ThresholdExceeded: true},
	})
	if err := n.Display(env); err != nil {
		t.Fatalf("Display: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "ATTENTION! 1 parameter(s) exceed permissible limits.") {
		t.Fatalf("expected alert summary for exactly 1 parameter:\n%s", out)
	}
	if got := strings.Count(out, "Status: "+ansiRed+"ALERT"); got != 1 {
		t.Fatalf("expected exactly 1 ALERT measurement line, got %d", got)
	}
}

func TestDisplayRendersBatchSummary(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	n := NewConsoleNotifier(&buf)

	env := testEnvelope([]models.Measurement{
		{Parameter: "Nitrates", Value: 12.3, Unit: "mg/L"},
	})
	if err := n.Display(env); err != nil {
		t.Fatalf("Display: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		env.Data.BatchID,
		env.Data.Location,
		env.Data.ReportingEntity,
		"NEW DATA UPLOAD DETECTED",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("render missing %q:\n%s", want, out)
		}
	}
}

func TestNotifierCountsNotifications(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	n := NewConsoleNotifier(&buf)

	env := testEnvelope([]models.Measurement{
		{Parameter: "pH", Value: 7.0, Unit: "pH"},
	})
	for i := 1; i <= 3; i++ {
		if err := n.Display(env); err != nil {
			t.Fatalf("Display #%d: %v", i, err)
		}
		if n.Count() != i {
			t.Fatalf("Count() = %d after %d displays", n.Count(), i)
		}
	}
	if !strings.Contains(buf.String(), "Notifications received: 3") {
		t.Fatal("header should show the running notification count")
	}
}

// A notifier without an output must fail the handler contract, not panic,
// so the receive loop can apply its drop policy.
func TestHandlerFailsWithoutOutput(t *testing.T) {
	t.Parallel()

	n := NewConsoleNotifier(nil)
	handler := makeHandler(n)

	env := testEnvelope([]models.Measurement{
		{Parameter: "pH", Value: 7.0, Unit: "pH"},
	})
	if err := handler(env); err == nil {
		t.Fatal("expected handler error when the notifier has no output")
	}
}
