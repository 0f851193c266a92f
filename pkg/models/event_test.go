package models

import (
	"strings"
	"testing"
	"time"
)

func validRecord() UploadRecord {
	return UploadRecord{
		BatchID:         "7b1c9a3e-0000-4000-8000-000000000001",
		Timestamp:       time.Now().UTC().Format(time.RFC3339Nano),
		Location:        "Main River - North Station",
		ReportingEntity: "Municipal Hydrology Institute",
		Measurements: []Measurement{
			{Parameter: "pH", Value: 7.2, Unit: "pH", ThresholdExceeded: false},
			{Parameter: "Turbidity", Value: 12.4, Unit: "NTU", ThresholdExceeded: true},
		},
		Metadata: map[string]string{
			"device_id":     "SENSOR-1234",
			"upload_method": "API",
		},
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Envelope)
		wantErr string
	}{
		{
			name:   "valid envelope",
			mutate: func(_ *Envelope) {},
		},
		{
			name:    "empty event_type",
			mutate:  func(e *Envelope) { e.EventType = "" },
			wantErr: "event_type is required",
		},
		{
			name:    "whitespace-only event_type",
			mutate:  func(e *Envelope) { e.EventType = "   " },
			wantErr: "event_type is required",
		},
		{
			name:    "empty envelope timestamp",
			mutate:  func(e *Envelope) { e.Timestamp = "" },
			wantErr: "timestamp is required",
		},
		{
			name:    "empty batch_id",
			mutate:  func(e *Envelope) { e.Data.BatchID = "" },
			wantErr: "batch_id is required",
		},
		{
			name:    "empty record timestamp",
			mutate:  func(e *Envelope) { e.Data.Timestamp = "" },
			wantErr: "timestamp is required",
		},
		{
			name:    "empty location",
			mutate:  func(e *Envelope) { e.Data.Location = "" },
			wantErr: "location is required",
		},
		{
			name:    "empty reporting_entity",
			mutate:  func(e *Envelope) { e.Data.ReportingEntity = "" },
			wantErr: "reporting_entity is required",
		},
		{
			name:    "nil measurements",
			mutate:  func(e *Envelope) { e.Data.Measurements = nil },
			wantErr: "measurements must not be empty",
		},
		{
			name:    "empty measurements",
			mutate:  func(e *Envelope) { e.Data.Measurements = []Measurement{} },
			wantErr: "measurements must not be empty",
		},
		{
			name: "measurement missing parameter",
			mutate: func(e *Envelope) {
				e.Data.Measurements[1].Parameter = ""
			},
			wantErr: "measurement 1: parameter is required",
		},
		{
			name: "measurement missing unit",
			mutate: func(e *Envelope) {
				e.Data.Measurements[0].Unit = ""
			},
			wantErr: "measurement 0: unit is required",
		},
		{
			name:   "nil metadata is allowed",
			mutate: func(e *Envelope) { e.Data.Metadata = nil },
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			env := NewEnvelope(validRecord())
			tc.mutate(&env)
			err := env.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("expected no error, got: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got: %v", tc.wantErr, err)
			}
		})
	}
}

func TestNewEnvelope(t *testing.T) {
	t.Parallel()

	rec := validRecord()
	env := NewEnvelope(rec)

	if env.EventType != EventTypeDataUpload {
		t.Fatalf("event_type = %q, want %q", env.EventType, EventTypeDataUpload)
	}
	if _, err := time.Parse(time.RFC3339Nano, env.Timestamp); err != nil {
		t.Fatalf("envelope timestamp is not RFC 3339: %v", err)
	}
	if env.Data.BatchID != rec.BatchID {
		t.Fatalf("payload batch_id changed: %q", env.Data.BatchID)
	}
	// The envelope timestamp is independent of the sample timestamp.
	if env.Timestamp == "" || env.Data.Timestamp == "" {
		t.Fatal("both timestamps must be set")
	}
}

func TestAlertCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		measurements []Measurement
		want         int
	}{
		{
			name: "no alerts",
			measurements: []Measurement{
				{Parameter: "pH", Value: 7.0, Unit: "pH"},
			},
			want: 0,
		},
		{
			name: "one of two exceeded",
			measurements: []Measurement{
				{Parameter: "pH", Value: 7.0, Unit: "pH"},
				{Parameter: "E. coli", Value: 4800, Unit: "CFU/100mL", ThresholdExceeded: true},
			},
			want: 1,
		},
		{
			name: "all exceeded",
			measurements: []Measurement{
				{Parameter: "Nitrates", Value: 99, Unit: "mg/L", ThresholdExceeded: true},
				{Parameter: "Phosphates", Value: 80, Unit: "mg/L", ThresholdExceeded: true},
			},
			want: 2,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rec := validRecord()
			rec.Measurements = tc.measurements
			if got := rec.AlertCount(); got != tc.want {
				t.Fatalf("AlertCount() = %d, want %d", got, tc.want)
			}
		})
	}
}
