package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/accademia-musici/academy-api/internal/models"
	"github.com/accademia-musici/academy-api/internal/repository"
	appErrors "github.com/accademia-musici/academy-api/pkg/errors"
	"github.com/accademia-musici/academy-api/pkg/jobs"
	"github.com/accademia-musici/academy-api/pkg/storage"
)

type mockReportStore struct {
	jobs map[string]*models.ReportJob
	seq  int
}

func (m *mockReportStore) Create(ctx context.Context, job *models.ReportJob) error {
	if m.jobs == nil {
		m.jobs = make(map[string]*models.ReportJob)
	}
	if job.ID == "" {
		m.seq++
		job.ID = "job-1"
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *mockReportStore) FindByID(ctx context.Context, id string) (*models.ReportJob, error) {
	if job, ok := m.jobs[id]; ok {
		cp := *job
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockReportStore) Update(ctx context.Context, id string, params repository.UpdateReportJobParams) error {
	job, ok := m.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.ResultURL != nil {
		job.ResultURL = params.ResultURL
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	return nil
}

func (m *mockReportStore) ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error) {
	var out []models.ReportJob
	for _, job := range m.jobs {
		if job.Status == models.ReportQueued {
			out = append(out, *job)
		}
	}
	return out, nil
}

func (m *mockReportStore) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error) {
	return nil, nil
}

type mockDispatcher struct {
	enqueued []jobs.Job
	fail     bool
}

func (m *mockDispatcher) Enqueue(job jobs.Job) error {
	if m.fail {
		return context.Canceled
	}
	m.enqueued = append(m.enqueued, job)
	return nil
}

type mockExportPayments struct {
	payments []models.Payment
}

func (m *mockExportPayments) List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, error) {
	return m.payments, nil
}

type mockExportAttendance struct{}

func (m *mockExportAttendance) List(ctx context.Context, filter models.AttendanceFilter) ([]models.Attendance, error) {
	return nil, nil
}

type mockExportCompensation struct{}

func (m *mockExportCompensation) Compute(ctx context.Context, teacherID string, from, to time.Time) (*models.CompensationStatement, error) {
	return &models.CompensationStatement{
		TeacherID:       teacherID,
		PeriodStart:     from,
		PeriodEnd:       to,
		RatePerLesson:   30,
		PaidLessonCount: 4,
		TotalAmount:     120,
	}, nil
}

func reportPeriod() (time.Time, time.Time) {
	from := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, 0)
}

func newTestExportService(t *testing.T, payments []models.Payment) *ExportService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	return NewExportService(
		&mockExportPayments{payments: payments},
		&mockExportAttendance{},
		&mockExportCompensation{},
		&mockUserLookup{},
		store,
		signer,
		ExportConfig{APIPrefix: "/api/v1"},
		zap.NewNop(),
	)
}

func TestReportCreateJobEnqueues(t *testing.T) {
	repo := &mockReportStore{}
	queue := &mockDispatcher{}
	svc := NewReportService(repo, queue, nil, zap.NewNop(), ReportServiceConfig{})

	from, to := reportPeriod()
	job, err := svc.CreateJob(context.Background(), adminUser(), CreateReportRequest{
		Type:   models.ReportPayments,
		Format: models.ReportFormatCSV,
		From:   from,
		To:     to,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ReportQueued, job.Status)
	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, job.ID, queue.enqueued[0].ID)
}

func TestReportCreateJobScopesTeacher(t *testing.T) {
	repo := &mockReportStore{}
	queue := &mockDispatcher{}
	svc := NewReportService(repo, queue, nil, zap.NewNop(), ReportServiceConfig{})

	other := "someone-else"
	from, to := reportPeriod()
	teacher := &models.User{ID: "t1", Role: models.RoleTeacher}
	job, err := svc.CreateJob(context.Background(), teacher, CreateReportRequest{
		Type:      models.ReportAttendance,
		Format:    models.ReportFormatPDF,
		From:      from,
		To:        to,
		TeacherID: &other,
	})
	require.NoError(t, err)
	require.NotNil(t, job.Params.TeacherID)
	assert.Equal(t, "t1", *job.Params.TeacherID)
}

func TestReportCreateJobUnknownType(t *testing.T) {
	svc := NewReportService(&mockReportStore{}, &mockDispatcher{}, nil, zap.NewNop(), ReportServiceConfig{})

	from, to := reportPeriod()
	_, err := svc.CreateJob(context.Background(), adminUser(), CreateReportRequest{
		Type:   models.ReportType("grades"),
		Format: models.ReportFormatCSV,
		From:   from,
		To:     to,
	})
	var apiErr *appErrors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, appErrors.ErrValidation.Code, apiErr.Code)
}

func TestReportCreateJobEnqueueFailureMarksFailed(t *testing.T) {
	repo := &mockReportStore{}
	svc := NewReportService(repo, &mockDispatcher{fail: true}, nil, zap.NewNop(), ReportServiceConfig{})

	from, to := reportPeriod()
	_, err := svc.CreateJob(context.Background(), adminUser(), CreateReportRequest{
		Type:   models.ReportPayments,
		Format: models.ReportFormatCSV,
		From:   from,
		To:     to,
	})
	require.Error(t, err)
	require.Len(t, repo.jobs, 1)
	for _, job := range repo.jobs {
		assert.Equal(t, models.ReportFailed, job.Status)
	}
}

func TestReportGetStatusOwnerOnly(t *testing.T) {
	from, to := reportPeriod()
	repo := &mockReportStore{jobs: map[string]*models.ReportJob{
		"job-1": {ID: "job-1", Type: models.ReportAttendance, Status: models.ReportQueued, CreatedBy: "t1", Params: models.ReportJobParams{From: from, To: to}},
	}}
	svc := NewReportService(repo, &mockDispatcher{}, nil, zap.NewNop(), ReportServiceConfig{})

	other := &models.User{ID: "t2", Role: models.RoleTeacher}
	_, err := svc.GetStatus(context.Background(), other, "job-1")
	var apiErr *appErrors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, apiErr.Code)

	job, err := svc.GetStatus(context.Background(), adminUser(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, "job-1", job.ID)
}

func TestReportWorkerFinishesJob(t *testing.T) {
	from, to := reportPeriod()
	due := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	exporter := newTestExportService(t, []models.Payment{
		{ID: "p1", UserID: "s1", Type: models.PaymentMonthly, Amount: 150, Description: "September tuition", DueDate: due, Status: models.PaymentPaid},
	})
	repo := &mockReportStore{jobs: map[string]*models.ReportJob{
		"job-1": {ID: "job-1", Type: models.ReportPayments, Status: models.ReportQueued, CreatedBy: "a1", Params: models.ReportJobParams{From: from, To: to, Format: models.ReportFormatCSV}},
	}}
	worker := NewReportWorker(repo, exporter, 3, zap.NewNop())

	require.NoError(t, worker.Handle(context.Background(), jobs.Job{ID: "job-1", Type: "payments"}))

	job := repo.jobs["job-1"]
	assert.Equal(t, models.ReportFinished, job.Status)
	require.NotNil(t, job.ResultURL)
	assert.Contains(t, *job.ResultURL, "/api/v1/export/")
	assert.NotNil(t, job.FinishedAt)
}

func TestReportWorkerFinalFailureMarksFailed(t *testing.T) {
	from, to := reportPeriod()
	exporter := newTestExportService(t, nil)
	repo := &mockReportStore{jobs: map[string]*models.ReportJob{
		"job-1": {ID: "job-1", Type: models.ReportType("grades"), Status: models.ReportQueued, CreatedBy: "a1", Params: models.ReportJobParams{From: from, To: to, Format: models.ReportFormatCSV}},
	}}
	worker := NewReportWorker(repo, exporter, 2, zap.NewNop())

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 2})
	require.Error(t, err)
	job := repo.jobs["job-1"]
	assert.Equal(t, models.ReportFailed, job.Status)
	require.NotNil(t, job.ErrorMessage)
}

func TestReportDownloadRoundTrip(t *testing.T) {
	from, to := reportPeriod()
	due := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	exporter := newTestExportService(t, []models.Payment{
		{ID: "p1", UserID: "s1", Type: models.PaymentMonthly, Amount: 150, Description: "September tuition", DueDate: due, Status: models.PaymentPaid},
	})
	repo := &mockReportStore{jobs: map[string]*models.ReportJob{
		"job-1": {ID: "job-1", Type: models.ReportPayments, Status: models.ReportQueued, CreatedBy: "a1", Params: models.ReportJobParams{From: from, To: to, Format: models.ReportFormatCSV}},
	}}
	worker := NewReportWorker(repo, exporter, 3, zap.NewNop())
	require.NoError(t, worker.Handle(context.Background(), jobs.Job{ID: "job-1"}))

	svc := NewReportService(repo, &mockDispatcher{}, exporter, zap.NewNop(), ReportServiceConfig{})

	url := *repo.jobs["job-1"].ResultURL
	token := url[strings.LastIndex(url, "/")+1:]
	download, err := svc.ResolveDownload(context.Background(), token)
	require.NoError(t, err)
	defer download.File.Close()
	assert.Equal(t, models.ReportFormatCSV, download.Format)
	assert.True(t, strings.HasSuffix(download.Filename, ".csv"))

	_, err = svc.ResolveDownload(context.Background(), "not-a-token")
	var apiErr *appErrors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, apiErr.Code)
}
