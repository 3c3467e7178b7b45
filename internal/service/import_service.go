package service

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/admissions-crm/internal/models"
	appErrors "github.com/noah-isme/admissions-crm/pkg/errors"
	"github.com/noah-isme/admissions-crm/pkg/storage"
)

const (
	importErrMissing  = "Missing required fields"
	importErrSource   = "Invalid source"
	importErrStatus   = "Invalid status"
	importErrAssignee = "Invalid assignee"
	importErrMalform  = "Malformed row"
	importErrSave     = "Failed to save lead"
)

var defaultImportMIMEs = []string{
	"text/csv",
	"application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

type tempStorage interface {
	SaveTemp(originalName string, r io.Reader, maxBytes int64) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
}

type leadCreator interface {
	Create(ctx context.Context, lead *models.Lead) error
}

// Upload is a file received from a multipart request.
type Upload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// ImportConfig bounds accepted uploads.
type ImportConfig struct {
	MaxBytes     int64
	AllowedMIMEs []string
}

// ImportService bulk-creates leads from CSV uploads. Rows fail independently.
type ImportService struct {
	storage tempStorage
	leads   leadCreator
	users   userReader
	audit   auditLogger
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger
	cfg     ImportConfig
}

// NewImportService constructs an ImportService.
func NewImportService(store tempStorage, leads leadCreator, users userReader, audit auditLogger, cache *CacheService, metrics *MetricsService, cfg ImportConfig, logger *zap.Logger) *ImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(cfg.AllowedMIMEs) == 0 {
		cfg.AllowedMIMEs = defaultImportMIMEs
	}
	return &ImportService{
		storage: store,
		leads:   leads,
		users:   users,
		audit:   audit,
		cache:   cache,
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
	}
}

// Accepts reports whether an upload looks like a CSV file by MIME type or extension.
func (s *ImportService) Accepts(filename, contentType string) bool {
	if strings.EqualFold(filepath.Ext(filename), ".csv") {
		return true
	}
	mediaType := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	for _, allowed := range s.cfg.AllowedMIMEs {
		if mediaType == allowed {
			return true
		}
	}
	return false
}

// Import stages the upload, creates a lead per valid row and removes the staged file on every
// path.
func (s *ImportService) Import(ctx context.Context, actor models.Actor, upload Upload) (*models.ImportResult, error) {
	if upload.Body == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "No file uploaded")
	}
	if !s.Accepts(upload.Filename, upload.ContentType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "Only CSV files are allowed")
	}

	name, err := s.storage.SaveTemp(upload.Filename, upload.Body, s.cfg.MaxBytes)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "File is too large")
		}
		return nil, internalError(err, "failed to stage upload")
	}
	defer func() {
		if err := s.storage.Delete(name); err != nil {
			s.logger.Warn("failed to remove staged upload", zap.String("file", name), zap.Error(err))
		}
	}()

	file, err := s.storage.Open(name)
	if err != nil {
		return nil, internalError(err, "failed to open upload")
	}
	defer file.Close()

	result, err := s.process(ctx, file)
	if err != nil {
		return nil, err
	}

	s.metrics.ImportRows("created", result.Count)
	s.metrics.ImportRows("rejected", len(result.Errors))
	if result.Count > 0 {
		s.cache.InvalidateAnalytics(ctx)
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionLeadImport, "leads", "", nil,
		map[string]interface{}{"file": upload.Filename, "created": result.Count, "rejected": len(result.Errors)})
	s.logger.Info("lead import finished",
		zap.String("file", upload.Filename), zap.Int("created", result.Count), zap.Int("rejected", len(result.Errors)))
	return result, nil
}

func (s *ImportService) process(ctx context.Context, r io.Reader) (*models.ImportResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "CSV file is empty")
		}
		return nil, appErrors.Clone(appErrors.ErrValidation, "CSV header could not be read")
	}
	columns := indexColumns(header)

	result := &models.ImportResult{Success: true, Errors: make([]models.ImportRowError, 0)}
	for row := 1; ; row++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				result.Errors = append(result.Errors, models.ImportRowError{Row: row, Error: importErrMalform})
				continue
			}
			return nil, internalError(err, "failed to read upload")
		}
		if blankRecord(record) {
			row--
			continue
		}

		lead, reason := s.buildLead(ctx, columns, record)
		if reason != "" {
			result.Errors = append(result.Errors, models.ImportRowError{Row: row, Error: reason})
			continue
		}
		if err := s.leads.Create(ctx, lead); err != nil {
			s.logger.Warn("failed to import lead row", zap.Int("row", row), zap.Error(err))
			result.Errors = append(result.Errors, models.ImportRowError{Row: row, Error: importErrSave})
			continue
		}
		s.metrics.LeadCreated(string(lead.Source))
		result.Count++
	}
	return result, nil
}

func (s *ImportService) buildLead(ctx context.Context, columns map[string]int, record []string) (*models.Lead, string) {
	get := func(key string) string {
		idx, ok := columns[strings.ToLower(key)]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	lead := &models.Lead{
		Name:             get("name"),
		Email:            normaliseEmail(get("email")),
		Phone:            get("phone"),
		AlternatePhone:   get("alternatePhone"),
		CourseInterested: get("courseInterested"),
		City:             get("city"),
		State:            get("state"),
		ParentName:       get("parentName"),
		ParentPhone:      get("parentPhone"),
		Source:           models.LeadSourceWebsite,
		Status:           models.LeadStatusNew,
	}
	if lead.Name == "" || lead.Email == "" || lead.Phone == "" || lead.CourseInterested == "" {
		return nil, importErrMissing
	}
	if raw := get("source"); raw != "" {
		lead.Source = models.LeadSource(canonicalEnum(raw))
		if !lead.Source.Valid() {
			return nil, importErrSource
		}
	}
	if raw := get("status"); raw != "" {
		lead.Status = models.LeadStatus(canonicalEnum(raw))
		if !lead.Status.Valid() {
			return nil, importErrStatus
		}
	}
	if raw := get("assignedTo"); raw != "" {
		if !validID(raw) || s.users == nil {
			return nil, importErrAssignee
		}
		user, err := s.users.FindByID(ctx, raw)
		if err != nil || !user.Role.IsStaff() {
			return nil, importErrAssignee
		}
		lead.AssignedTo = &user.ID
	}
	return lead, ""
}

// canonicalEnum folds display labels such as "Follow-up" or "Not Interested" onto stored values.
func canonicalEnum(raw string) string {
	return strings.NewReplacer("-", "_", " ", "_").Replace(strings.ToLower(strings.TrimSpace(raw)))
}

func indexColumns(header []string) map[string]int {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimPrefix(name, "\ufeff")
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return columns
}

func blankRecord(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
