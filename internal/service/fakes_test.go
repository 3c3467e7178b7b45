package service

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/admissions-crm/internal/models"
	"github.com/noah-isme/admissions-crm/internal/repository"
)

type fakeUserRepo struct {
	mu        sync.Mutex
	users     map[string]*models.User
	auditLogs []*models.AuditLog
	err       error
}

func newFakeUserRepo(users ...*models.User) *fakeUserRepo {
	repo := &fakeUserRepo{users: make(map[string]*models.User)}
	for _, u := range users {
		if u.ID == "" {
			u.ID = uuid.NewString()
		}
		repo.users[u.ID] = u
	}
	return repo
}

func (f *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			clone := *u
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *u
	return &clone, nil
}

func (f *fakeUserRepo) CountStaff(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, u := range f.users {
		if u.Role.IsStaff() {
			count++
		}
	}
	return count, nil
}

func (f *fakeUserRepo) ListByRole(ctx context.Context, role models.UserRole) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.User, 0)
	for _, u := range f.users {
		if u.Role == role {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, 0, f.err
	}
	out := make([]models.User, 0)
	for _, u := range f.users {
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, len(out), nil
}

func (f *fakeUserRepo) Create(ctx context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	return f.insertLocked(user)
}

func (f *fakeUserRepo) insertLocked(user *models.User) error {
	for _, u := range f.users {
		if strings.EqualFold(u.Email, user.Email) {
			return repository.ErrDuplicate
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	clone := *user
	f.users[user.ID] = &clone
	return nil
}

func (f *fakeUserRepo) CreateFirstAdmin(ctx context.Context, user *models.User) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Role == models.RoleAdmin {
			return false, nil
		}
	}
	user.Role = models.RoleAdmin
	if err := f.insertLocked(user); err != nil {
		return false, err
	}
	return true, nil
}

func (f *fakeUserRepo) Update(ctx context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, u := range f.users {
		if id != user.ID && strings.EqualFold(u.Email, user.Email) {
			return repository.ErrDuplicate
		}
	}
	clone := *user
	f.users[user.ID] = &clone
	return nil
}

func (f *fakeUserRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = updatedAt
	return nil
}

func (f *fakeUserRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.users, id)
	return nil
}

func (f *fakeUserRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.auditLogs = append(f.auditLogs, log)
	return nil
}

func (f *fakeUserRepo) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.auditLogs))
	for _, l := range f.auditLogs {
		out = append(out, l.Action)
	}
	return out
}

func newStaff(role models.UserRole, name string) *models.User {
	return &models.User{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com",
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
}

func actorFor(u *models.User) models.Actor {
	return models.Actor{ID: u.ID, Role: u.Role, IP: "127.0.0.1", UserAgent: "test"}
}

type fakeLeadRepo struct {
	mu    sync.Mutex
	leads map[string]*models.Lead
	users *fakeUserRepo
	err   error
}

func newFakeLeadRepo(users *fakeUserRepo, leads ...*models.Lead) *fakeLeadRepo {
	repo := &fakeLeadRepo{leads: make(map[string]*models.Lead), users: users}
	for _, l := range leads {
		if l.ID == "" {
			l.ID = uuid.NewString()
		}
		if l.CreatedAt.IsZero() {
			l.CreatedAt = time.Now().UTC()
		}
		repo.leads[l.ID] = l
	}
	return repo
}

func (f *fakeLeadRepo) populate(l models.Lead) models.Lead {
	l.Assignee = nil
	if l.AssignedTo != nil && f.users != nil {
		if u, err := f.users.FindByID(context.Background(), *l.AssignedTo); err == nil {
			summary := u.Summary()
			l.Assignee = &summary
		}
	}
	return l
}

func (f *fakeLeadRepo) Create(ctx context.Context, lead *models.Lead) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if lead.ID == "" {
		lead.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	lead.CreatedAt = now
	lead.UpdatedAt = now
	clone := *lead
	f.leads[lead.ID] = &clone
	return nil
}

func (f *fakeLeadRepo) FindByID(ctx context.Context, id string) (*models.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	l, ok := f.leads[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	out := f.populate(*l)
	return &out, nil
}

func (f *fakeLeadRepo) List(ctx context.Context, filter models.LeadFilter) ([]models.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.Lead, 0)
	for _, l := range f.leads {
		if filter.AssignedTo != nil && !l.IsAssignedTo(*filter.AssignedTo) {
			continue
		}
		if filter.Unassigned && l.AssignedTo != nil {
			continue
		}
		if filter.Status != nil && l.Status != *filter.Status {
			continue
		}
		if filter.Course != "" && !strings.Contains(strings.ToLower(l.CourseInterested), strings.ToLower(filter.Course)) {
			continue
		}
		if filter.NextFollowUpFrom != nil && (l.NextFollowUp == nil || l.NextFollowUp.Before(*filter.NextFollowUpFrom)) {
			continue
		}
		if filter.NextFollowUpTo != nil && (l.NextFollowUp == nil || l.NextFollowUp.After(*filter.NextFollowUpTo)) {
			continue
		}
		out = append(out, f.populate(*l))
	}
	if filter.OrderBy == "next_follow_up_asc" {
		sort.Slice(out, func(i, j int) bool { return out[i].NextFollowUp.Before(*out[j].NextFollowUp) })
	} else {
		sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (f *fakeLeadRepo) Update(ctx context.Context, lead *models.Lead) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.leads[lead.ID]; !ok {
		return sql.ErrNoRows
	}
	lead.UpdatedAt = time.Now().UTC()
	clone := *lead
	f.leads[lead.ID] = &clone
	return nil
}

func (f *fakeLeadRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.leads[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.leads, id)
	return nil
}

func (f *fakeLeadRepo) Assign(ctx context.Context, leadID string, userID *string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.leads[leadID]
	if !ok {
		return sql.ErrNoRows
	}
	l.AssignedTo = userID
	l.UpdatedAt = at
	return nil
}

func (f *fakeLeadRepo) AssignMany(ctx context.Context, leadIDs []string, userID string, at time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	updated := 0
	for _, id := range leadIDs {
		if l, ok := f.leads[id]; ok {
			uid := userID
			l.AssignedTo = &uid
			l.UpdatedAt = at
			updated++
		}
	}
	return updated, nil
}

func (f *fakeLeadRepo) Stats(ctx context.Context, assignedTo *string) (models.LeadStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var stats models.LeadStats
	for _, l := range f.leads {
		if assignedTo != nil && !l.IsAssignedTo(*assignedTo) {
			continue
		}
		stats.TotalLeads++
		switch l.Status {
		case models.LeadStatusNew:
			stats.NewLeads++
		case models.LeadStatusInterested:
			stats.Interested++
		case models.LeadStatusFollowUp:
			stats.FollowUps++
		case models.LeadStatusAdmitted:
			stats.Converted++
		case models.LeadStatusNotInterested:
			stats.NotInterested++
		}
	}
	return stats, nil
}

func (f *fakeLeadRepo) get(id string) models.Lead {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.leads[id]
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []notifyCall
}

type notifyCall struct {
	userID string
	names  []string
	total  int
}

func (r *recordingNotifier) NotifyAssignment(staff *models.User, leadNames []string, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, notifyCall{userID: staff.ID, names: leadNames, total: total})
}

func newLead(name string, status models.LeadStatus, assignee *models.User) *models.Lead {
	lead := &models.Lead{
		ID:               uuid.NewString(),
		Name:             name,
		Email:            strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@student.test",
		Phone:            "555-0100",
		CourseInterested: "Computer Science",
		Source:           models.LeadSourceWebsite,
		Status:           status,
		CreatedAt:        time.Now().UTC(),
	}
	if assignee != nil {
		id := assignee.ID
		lead.AssignedTo = &id
	}
	return lead
}

type fakeInteractionRepo struct {
	mu      sync.Mutex
	items   map[string]*models.Interaction
	leads   *fakeLeadRepo
	changes []models.LeadChange
	failTx  error
}

func newFakeInteractionRepo(leads *fakeLeadRepo) *fakeInteractionRepo {
	return &fakeInteractionRepo{items: make(map[string]*models.Interaction), leads: leads}
}

// apply mirrors the transactional lead update: either both writes land or neither does.
func (f *fakeInteractionRepo) apply(change *models.LeadChange) error {
	if change == nil {
		return nil
	}
	f.leads.mu.Lock()
	defer f.leads.mu.Unlock()
	l, ok := f.leads.leads[change.LeadID]
	if !ok {
		return sql.ErrNoRows
	}
	l.Status = change.Status
	if change.NextFollowUp != nil {
		next := *change.NextFollowUp
		l.NextFollowUp = &next
	}
	at := change.At
	l.LastFollowUp = &at
	l.UpdatedAt = at
	f.changes = append(f.changes, *change)
	return nil
}

func (f *fakeInteractionRepo) Create(ctx context.Context, interaction *models.Interaction, change *models.LeadChange) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTx != nil {
		return f.failTx
	}
	if err := f.apply(change); err != nil {
		return err
	}
	if interaction.ID == "" {
		interaction.ID = uuid.NewString()
	}
	clone := *interaction
	f.items[interaction.ID] = &clone
	return nil
}

func (f *fakeInteractionRepo) Update(ctx context.Context, interaction *models.Interaction, change *models.LeadChange) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTx != nil {
		return f.failTx
	}
	if _, ok := f.items[interaction.ID]; !ok {
		return sql.ErrNoRows
	}
	if err := f.apply(change); err != nil {
		return err
	}
	clone := *interaction
	f.items[interaction.ID] = &clone
	return nil
}

func (f *fakeInteractionRepo) FindByID(ctx context.Context, id string) (*models.Interaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	out := f.populate(*item)
	return &out, nil
}

func (f *fakeInteractionRepo) populate(item models.Interaction) models.Interaction {
	if lead, err := f.leads.FindByID(context.Background(), item.LeadID); err == nil {
		item.LeadInfo = &models.LeadSummary{ID: lead.ID, Name: lead.Name, Email: lead.Email, Phone: lead.Phone, Status: lead.Status}
	}
	return item
}

func (f *fakeInteractionRepo) List(ctx context.Context, filter models.InteractionFilter) ([]models.Interaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Interaction, 0)
	for _, item := range f.items {
		if filter.AgentID != nil && !item.IsAgent(*filter.AgentID) {
			continue
		}
		if filter.LeadID != nil && item.LeadID != *filter.LeadID {
			continue
		}
		out = append(out, f.populate(*item))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (f *fakeInteractionRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.items, id)
	return nil
}

func (f *fakeInteractionRepo) Stats(ctx context.Context, agentID *string) (models.InteractionStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var stats models.InteractionStats
	for _, item := range f.items {
		if agentID != nil && !item.IsAgent(*agentID) {
			continue
		}
		stats.TotalInteractions++
		switch item.Type {
		case models.InteractionCall:
			stats.ByType.Call++
		case models.InteractionSMS:
			stats.ByType.SMS++
		case models.InteractionWhatsApp:
			stats.ByType.WhatsApp++
		case models.InteractionEmail:
			stats.ByType.Email++
		}
		switch item.StatusAfter {
		case models.LeadStatusInterested:
			stats.Conversions.Interested++
		case models.LeadStatusNotInterested:
			stats.Conversions.NotInterested++
		case models.LeadStatusFollowUp:
			stats.Conversions.FollowUp++
		}
	}
	return stats, nil
}
