package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/admissions-crm/internal/models"
	"github.com/noah-isme/admissions-crm/pkg/export"
	appErrors "github.com/noah-isme/admissions-crm/pkg/errors"
)

type leadLister interface {
	List(ctx context.Context, filter models.LeadFilter) ([]models.Lead, error)
}

type datasetRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
	ContentType() string
	Extension() string
}

var leadExportHeaders = []string{
	"Name", "Email", "Phone", "Course", "Source", "Status", "Assigned To", "City", "State", "Next Follow-up", "Created At",
}

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders the lead list into downloadable CSV or PDF files.
type ExportService struct {
	leads     leadLister
	renderers map[string]datasetRenderer
	title     string
	logger    *zap.Logger
	now       func() time.Time
}

// NewExportService constructs an ExportService with the CSV and PDF renderers registered.
func NewExportService(leads leadLister, title string, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if title == "" {
		title = "Leads"
	}
	return &ExportService{
		leads: leads,
		renderers: map[string]datasetRenderer{
			"csv": export.NewCSVExporter(),
			"pdf": export.NewPDFExporter(),
		},
		title:  title,
		logger: logger,
		now:    time.Now,
	}
}

// Leads renders every lead in the requested format.
func (s *ExportService) Leads(ctx context.Context, format string) (*ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = "csv"
	}
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "Unsupported export format")
	}

	leads, err := s.leads.List(ctx, models.LeadFilter{})
	if err != nil {
		return nil, internalError(err, "failed to load leads for export")
	}

	data, err := renderer.Render(leadDataset(leads), s.title)
	if err != nil {
		return nil, internalError(err, "failed to render export")
	}
	s.logger.Info("lead export rendered", zap.String("format", format), zap.Int("rows", len(leads)))

	return &ExportFile{
		Filename:    fmt.Sprintf("leads_%s.%s", s.now().UTC().Format("20060102_150405"), renderer.Extension()),
		ContentType: renderer.ContentType(),
		Data:        data,
	}, nil
}

func leadDataset(leads []models.Lead) export.Dataset {
	rows := make([]map[string]string, 0, len(leads))
	for _, lead := range leads {
		assignee := ""
		if lead.Assignee != nil {
			assignee = lead.Assignee.Name
		}
		rows = append(rows, map[string]string{
			"Name":           lead.Name,
			"Email":          lead.Email,
			"Phone":          lead.Phone,
			"Course":         lead.CourseInterested,
			"Source":         string(lead.Source),
			"Status":         string(lead.Status),
			"Assigned To":    assignee,
			"City":           lead.City,
			"State":          lead.State,
			"Next Follow-up": formatOptionalTime(lead.NextFollowUp),
			"Created At":     lead.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return export.Dataset{Headers: leadExportHeaders, Rows: rows}
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
