package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ReportType enumerates the asynchronous export categories.
type ReportType string

const (
	ReportPayments     ReportType = "payments"
	ReportAttendance   ReportType = "attendance"
	ReportCompensation ReportType = "compensation"
)

// Valid reports whether the type is a known value.
func (t ReportType) Valid() bool {
	switch t {
	case ReportPayments, ReportAttendance, ReportCompensation:
		return true
	}
	return false
}

// ReportFormat enumerates the rendered output formats.
type ReportFormat string

const (
	ReportFormatCSV ReportFormat = "csv"
	ReportFormatPDF ReportFormat = "pdf"
)

// Valid reports whether the format is a known value.
func (f ReportFormat) Valid() bool {
	return f == ReportFormatCSV || f == ReportFormatPDF
}

// ReportStatus captures the background job lifecycle.
type ReportStatus string

const (
	ReportQueued     ReportStatus = "QUEUED"
	ReportProcessing ReportStatus = "PROCESSING"
	ReportFinished   ReportStatus = "FINISHED"
	ReportFailed     ReportStatus = "FAILED"
)

// ReportJob is the persisted metadata of one export run.
type ReportJob struct {
	ID           string          `db:"id" json:"id"`
	Type         ReportType      `db:"type" json:"type"`
	Params       ReportJobParams `db:"params" json:"params"`
	Status       ReportStatus    `db:"status" json:"status"`
	ResultURL    *string         `db:"result_url" json:"result_url,omitempty"`
	CreatedBy    string          `db:"created_by" json:"created_by"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	FinishedAt   *time.Time      `db:"finished_at" json:"finished_at,omitempty"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
}

// ReportJobParams holds the request options, persisted as JSONB.
type ReportJobParams struct {
	From      time.Time    `json:"from"`
	To        time.Time    `json:"to"`
	TeacherID *string      `json:"teacher_id,omitempty"`
	UserID    *string      `json:"user_id,omitempty"`
	Format    ReportFormat `json:"format"`
}

// Value marshals the params for persistence.
func (p ReportJobParams) Value() (driver.Value, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal report job params: %w", err)
	}
	return data, nil
}

// Scan unmarshals a JSON payload into the params struct.
func (p *ReportJobParams) Scan(value interface{}) error {
	if value == nil {
		*p = ReportJobParams{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for ReportJobParams", value)
	}
	if len(data) == 0 {
		*p = ReportJobParams{}
		return nil
	}
	if err := json.Unmarshal(data, p); err != nil {
		return fmt.Errorf("unmarshal report job params: %w", err)
	}
	return nil
}
