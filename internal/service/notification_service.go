package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/admissions-crm/internal/models"
	"github.com/noah-isme/admissions-crm/pkg/jobs"
	"github.com/noah-isme/admissions-crm/pkg/notify"
)

// JobTypeAssignmentEmail identifies queued assignment notification jobs.
const JobTypeAssignmentEmail = "assignment_email"

// maxListedLeads caps how many lead names one email lists.
const maxListedLeads = 20

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

type assignmentNotice struct {
	To        string
	StaffName string
	LeadNames []string
	Total     int
}

// NotificationService turns assignment events into queued emails. A service without a queue or
// sender is a no-op.
type NotificationService struct {
	sender  notify.Sender
	queue   jobEnqueuer
	metrics *MetricsService
	logger  *zap.Logger
}

// NewNotificationService constructs the notifier. The queue is attached separately because the
// queue's handler is the service itself.
func NewNotificationService(sender notify.Sender, metrics *MetricsService, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{sender: sender, metrics: metrics, logger: logger}
}

// AttachQueue sets the queue used by NotifyAssignment.
func (s *NotificationService) AttachQueue(queue jobEnqueuer) {
	s.queue = queue
}

// NotifyAssignment enqueues an email telling staff about newly assigned leads. total may exceed
// len(leadNames) for bulk assignments. Enqueue failures are logged only.
func (s *NotificationService) NotifyAssignment(staff *models.User, leadNames []string, total int) {
	if s == nil || s.queue == nil || s.sender == nil || staff == nil || staff.Email == "" || total <= 0 {
		return
	}
	if len(leadNames) > maxListedLeads {
		leadNames = leadNames[:maxListedLeads]
	}
	notice := assignmentNotice{To: staff.Email, StaffName: staff.Name, LeadNames: leadNames, Total: total}
	if err := s.queue.Enqueue(jobs.Job{Type: JobTypeAssignmentEmail, Payload: notice}); err != nil {
		s.logger.Warn("failed to enqueue assignment email", zap.String("user_id", staff.ID), zap.Error(err))
		s.metrics.NotificationSent(false)
	}
}

// Handle processes one queued notification job.
func (s *NotificationService) Handle(ctx context.Context, job jobs.Job) error {
	if job.Type != JobTypeAssignmentEmail {
		return fmt.Errorf("unknown notification job type %q", job.Type)
	}
	notice, ok := job.Payload.(assignmentNotice)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", job.Payload, job.Type)
	}

	body, err := notify.RenderAssignment(notify.AssignmentData{
		StaffName: notice.StaffName,
		LeadNames: notice.LeadNames,
		Total:     notice.Total,
	})
	if err != nil {
		return err
	}
	err = s.sender.Send(notify.Message{
		To:      notice.To,
		Subject: fmt.Sprintf("%d new lead(s) assigned to you", notice.Total),
		HTML:    body,
	})
	s.metrics.NotificationSent(err == nil)
	if err != nil {
		return err
	}
	s.logger.Info("assignment email sent", zap.String("job_id", job.ID), zap.String("to", notice.To))
	return nil
}
