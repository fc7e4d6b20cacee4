package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/accademia-musici/academy-api/internal/models"
	"github.com/accademia-musici/academy-api/pkg/export"
	"github.com/accademia-musici/academy-api/pkg/storage"
)

type exportPaymentSource interface {
	List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, error)
}

type exportAttendanceSource interface {
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.Attendance, error)
}

type exportCompensationSource interface {
	Compute(ctx context.Context, teacherID string, from, to time.Time) (*models.CompensationStatement, error)
}

type exportUserLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type exportFileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export generation.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures where a rendered export ended up.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportService builds report datasets, renders them and persists the files.
type ExportService struct {
	payments     exportPaymentSource
	attendance   exportAttendanceSource
	compensation exportCompensationSource
	users        exportUserLookup
	storage      exportFileStorage
	csv          csvRenderer
	pdf          pdfRenderer
	signer       *storage.SignedURLSigner
	logger       *zap.Logger
	cfg          ExportConfig
}

// NewExportService creates an instance of ExportService.
func NewExportService(payments exportPaymentSource, attendance exportAttendanceSource, compensation exportCompensationSource, users exportUserLookup, store exportFileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{
		payments:     payments,
		attendance:   attendance,
		compensation: compensation,
		users:        users,
		storage:      store,
		csv:          export.NewCSVExporter(),
		pdf:          export.NewPDFExporter(),
		signer:       signer,
		logger:       logger,
		cfg:          cfg,
	}
}

// Generate builds the dataset for the job, renders it in the requested
// format and stores the result, returning a signed download reference.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, title, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	relPath, err := s.storage.Save(s.buildFilename(job), payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/export/%s", prefix, token),
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates a download token.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to a stored export file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes stored files older than ttl.
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, string, error) {
	switch job.Type {
	case models.ReportPayments:
		return s.buildPaymentsDataset(ctx, job.Params)
	case models.ReportAttendance:
		return s.buildAttendanceDataset(ctx, job.Params)
	case models.ReportCompensation:
		return s.buildCompensationDataset(ctx, job.Params)
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported report type %s", job.Type)
	}
}

func (s *ExportService) buildPaymentsDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	filter := models.PaymentFilter{From: &params.From, To: &params.To}
	if params.UserID != nil {
		filter.UserID = *params.UserID
	}
	payments, err := s.payments.List(ctx, filter)
	if err != nil {
		return export.Dataset{}, "", err
	}

	rows := make([]map[string]string, 0, len(payments))
	for _, p := range payments {
		paidAt := ""
		if p.PaidAt != nil {
			paidAt = p.PaidAt.Format("2006-01-02")
		}
		rows = append(rows, map[string]string{
			"User":        s.displayName(ctx, p.UserID),
			"Type":        string(p.Type),
			"Description": p.Description,
			"Amount":      fmt.Sprintf("%.2f", p.Amount),
			"Due Date":    p.DueDate.Format("2006-01-02"),
			"Status":      string(p.Status),
			"Paid At":     paidAt,
		})
	}
	dataset := export.Dataset{
		Headers: []string{"User", "Type", "Description", "Amount", "Due Date", "Status", "Paid At"},
		Rows:    rows,
	}
	title := fmt.Sprintf("Payments %s to %s", params.From.Format("2006-01-02"), params.To.Format("2006-01-02"))
	return dataset, title, nil
}

func (s *ExportService) buildAttendanceDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	filter := models.AttendanceFilter{From: &params.From, To: &params.To}
	if params.TeacherID != nil {
		filter.TeacherID = *params.TeacherID
	}
	records, err := s.attendance.List(ctx, filter)
	if err != nil {
		return export.Dataset{}, "", err
	}

	rows := make([]map[string]string, 0, len(records))
	for _, a := range records {
		makeup := ""
		if a.MakeupDate != nil {
			makeup = a.MakeupDate.Format("2006-01-02")
		}
		rows = append(rows, map[string]string{
			"Date":        a.Date.Format("2006-01-02"),
			"Student":     s.displayName(ctx, a.StudentID),
			"Teacher":     s.displayName(ctx, a.TeacherID),
			"Status":      string(a.Status),
			"Makeup Date": makeup,
			"Payable":     fmt.Sprintf("%t", a.Payable()),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Date", "Student", "Teacher", "Status", "Makeup Date", "Payable"},
		Rows:    rows,
	}
	title := fmt.Sprintf("Attendance %s to %s", params.From.Format("2006-01-02"), params.To.Format("2006-01-02"))
	return dataset, title, nil
}

func (s *ExportService) buildCompensationDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	if params.TeacherID == nil || *params.TeacherID == "" {
		return export.Dataset{}, "", fmt.Errorf("teacher_id required for compensation report")
	}
	statement, err := s.compensation.Compute(ctx, *params.TeacherID, params.From, params.To)
	if err != nil {
		return export.Dataset{}, "", err
	}

	dataset := export.Dataset{
		Headers: []string{"Teacher", "Period", "Present", "Absent Unjustified", "Justified With Makeup", "Makeup", "Paid Lessons", "Rate", "Total"},
		Rows: []map[string]string{{
			"Teacher":               s.displayName(ctx, statement.TeacherID),
			"Period":                fmt.Sprintf("%s to %s", statement.PeriodStart.Format("2006-01-02"), statement.PeriodEnd.Format("2006-01-02")),
			"Present":               fmt.Sprintf("%d", statement.Breakdown.Present),
			"Absent Unjustified":    fmt.Sprintf("%d", statement.Breakdown.AbsentUnjustified),
			"Justified With Makeup": fmt.Sprintf("%d", statement.Breakdown.JustifiedWithMakeup),
			"Makeup":                fmt.Sprintf("%d", statement.Breakdown.Makeup),
			"Paid Lessons":          fmt.Sprintf("%d", statement.PaidLessonCount),
			"Rate":                  fmt.Sprintf("%.2f", statement.RatePerLesson),
			"Total":                 fmt.Sprintf("%.2f", statement.TotalAmount),
		}},
	}
	title := fmt.Sprintf("Compensation %s", statement.PeriodStart.Format("2006-01"))
	return dataset, title, nil
}

func (s *ExportService) displayName(ctx context.Context, userID string) string {
	if s.users == nil {
		return userID
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return userID
	}
	return user.FirstName + " " + user.LastName
}

func (s *ExportService) buildFilename(job *models.ReportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	return fmt.Sprintf("%s_%s_%s.%s", job.Type, job.Params.From.Format("20060102"), timestamp, job.Params.Format)
}
