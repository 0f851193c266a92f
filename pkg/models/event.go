package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// EventTypeDataUpload tags envelopes announcing a completed data upload.
// It is the only event type the pipeline emits today.
const EventTypeDataUpload = "data_upload"

// Measurement is a single sampled water-quality value. ThresholdExceeded is
// computed once by the producer and must never be recomputed downstream.
type Measurement struct {
	Parameter         string  `json:"parameter"`
	Value             float64 `json:"value"`
	Unit              string  `json:"unit"`
	ThresholdExceeded bool    `json:"threshold_exceeded"`
}

// UploadRecord is the payload of a data-upload notification: one batch of
// measurements reported for a sampling site by some entity.
type UploadRecord struct {
	BatchID         string            `json:"batch_id"`
	Timestamp       string            `json:"timestamp"`
	Location        string            `json:"location"`
	ReportingEntity string            `json:"reporting_entity"`
	Measurements    []Measurement     `json:"measurements"`
	Metadata        map[string]string `json:"metadata"`
}

// Envelope is the unit of transport between publisher and consumer. Its
// timestamp is set at envelope creation and may differ from the timestamp of
// the sampled data inside. Envelopes are immutable once serialized.
type Envelope struct {
	EventType string       `json:"event_type"`
	Timestamp string       `json:"timestamp"`
	Data      UploadRecord `json:"data"`
}

// NewEnvelope wraps an upload record in a data-upload envelope stamped with
// the current time.
func NewEnvelope(rec UploadRecord) Envelope {
	return Envelope{
		EventType: EventTypeDataUpload,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Data:      rec,
	}
}

// Validate checks that all required fields are present. Decoding fails closed
// on the same checks, so a consumer never sees a partial record.
func (e Envelope) Validate() error {
	if strings.TrimSpace(e.EventType) == "" {
		return errors.New("event_type is required")
	}
	if strings.TrimSpace(e.Timestamp) == "" {
		return errors.New("timestamp is required")
	}
	return e.Data.Validate()
}

// Validate checks the record's required fields and each measurement.
func (r UploadRecord) Validate() error {
	if strings.TrimSpace(r.BatchID) == "" {
		return errors.New("batch_id is required")
	}
	if strings.TrimSpace(r.Timestamp) == "" {
		return errors.New("timestamp is required")
	}
	if strings.TrimSpace(r.Location) == "" {
		return errors.New("location is required")
	}
	if strings.TrimSpace(r.ReportingEntity) == "" {
		return errors.New("reporting_entity is required")
	}
	if len(r.Measurements) == 0 {
		return errors.New("measurements must not be empty")
	}
	for i, m := range r.Measurements {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("measurement %d: %w", i, err)
		}
	}
	return nil
}

// Validate checks a single measurement's required fields.
func (m Measurement) Validate() error {
	if strings.TrimSpace(m.Parameter) == "" {
		return errors.New("parameter is required")
	}
	if strings.TrimSpace(m.Unit) == "" {
		return errors.New("unit is required")
	}
	return nil
}

// AlertCount returns how many measurements carry an exceeded threshold flag.
// It only reads the flag set by the producer.
func (r UploadRecord) AlertCount() int {
	n := 0
	for _, m := range r.Measurements {
		if m.ThresholdExceeded {
			n++
		}
	}
	return n
}
