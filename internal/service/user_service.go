package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/admissions-crm/internal/models"
	"github.com/noah-isme/admissions-crm/internal/repository"
	appErrors "github.com/noah-isme/admissions-crm/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	ListByRole(ctx context.Context, role models.UserRole) ([]models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
	Delete(ctx context.Context, id string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

const userNotFound = "User not found"

var createUserMessages = map[string]string{
	"name":     "Name is required",
	"email":    "Please include a valid email",
	"password": "Please enter a password with 6 or more characters",
	"role":     "Role must be admin, agent or lead",
}

// UserService handles user management workflows.
type UserService struct {
	repo      userRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, validator: validate, logger: logger}
}

// List returns paginated users and pagination metadata.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	if filter.Role != nil && !filter.Role.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "Invalid role")
	}
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list users")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 50
	}

	return users, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Agents lists users with the agent role.
func (s *UserService) Agents(ctx context.Context) ([]models.User, error) {
	return s.byRole(ctx, models.RoleAgent)
}

// LeadUsers lists users with the lead role.
func (s *UserService) LeadUsers(ctx context.Context) ([]models.User, error) {
	return s.byRole(ctx, models.RoleLead)
}

func (s *UserService) byRole(ctx context.Context, role models.UserRole) ([]models.User, error) {
	users, err := s.repo.ListByRole(ctx, role)
	if err != nil {
		return nil, internalError(err, "failed to list users")
	}
	return users, nil
}

// Get returns a user visible to the actor: admins see anyone, others only themselves.
func (s *UserService) Get(ctx context.Context, actor models.Actor, id string) (*models.User, error) {
	if !actor.IsAdmin() && actor.ID != id {
		return nil, appErrors.ErrForbidden
	}
	return s.load(ctx, id)
}

// Create adds a user of any role.
func (s *UserService) Create(ctx context.Context, actor models.Actor, req models.CreateUserRequest) (*models.User, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err, createUserMessages)
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        normaliseEmail(req.Email),
		PasswordHash: hash,
		Role:         req.Role,
		Phone:        strings.TrimSpace(req.Phone),
		Department:   strings.TrimSpace(req.Department),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "User already exists")
		}
		return nil, internalError(err, "failed to create user")
	}

	recordAudit(ctx, s.repo, s.logger, actor, models.AuditActionUserCreate, "users", user.ID, nil,
		map[string]interface{}{"id": user.ID, "email": user.Email, "role": user.Role})
	return user, nil
}

// Update modifies profile fields. Admins may edit anyone; others only themselves.
func (s *UserService) Update(ctx context.Context, actor models.Actor, id string, req models.UpdateUserRequest) (*models.User, error) {
	if !actor.IsAdmin() && actor.ID != id {
		return nil, appErrors.ErrForbidden
	}
	req.Name = trimmed(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err, map[string]string{
			"name":  "Name is required",
			"email": "Please include a valid email",
		})
	}

	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	before := map[string]interface{}{"name": user.Name, "email": user.Email, "phone": user.Phone, "department": user.Department}

	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		user.Email = normaliseEmail(*req.Email)
	}
	if req.Phone != nil {
		user.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Department != nil {
		user.Department = strings.TrimSpace(*req.Department)
	}

	if err := s.repo.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "User already exists")
		}
		return nil, internalError(err, "failed to update user")
	}

	recordAudit(ctx, s.repo, s.logger, actor, models.AuditActionUserUpdate, "users", user.ID, before,
		map[string]interface{}{"name": user.Name, "email": user.Email, "phone": user.Phone, "department": user.Department})
	return user, nil
}

// ChangePassword replaces the actor's own password after checking the current one.
func (s *UserService) ChangePassword(ctx context.Context, actor models.Actor, id string, req models.ChangePasswordRequest) error {
	if actor.ID != id {
		return appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return appErrors.FromValidation(err, map[string]string{
			"currentPassword": "Current password is required",
			"newPassword":     "Please enter a password with 6 or more characters",
		})
	}

	user, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "Current password is incorrect")
	}

	hash, err := hashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePassword(ctx, id, hash, time.Now().UTC()); err != nil {
		return internalError(err, "failed to update password")
	}

	recordAudit(ctx, s.repo, s.logger, actor, models.AuditActionPasswordChange, "users", id, nil, nil)
	return nil
}

// Delete removes a user. Admins cannot delete their own account.
func (s *UserService) Delete(ctx context.Context, actor models.Actor, id string) error {
	if actor.ID == id {
		return appErrors.Clone(appErrors.ErrValidation, "You cannot delete your own account")
	}
	user, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, userNotFound)
		}
		return internalError(err, "failed to delete user")
	}

	recordAudit(ctx, s.repo, s.logger, actor, models.AuditActionUserDelete, "users", id,
		map[string]interface{}{"email": user.Email, "role": user.Role}, nil)
	s.logger.Info("user deleted", zap.String("user_id", id), zap.String("actor_id", actor.ID))
	return nil
}

func (s *UserService) load(ctx context.Context, id string) (*models.User, error) {
	if !validID(id) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, userNotFound)
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, userNotFound)
	}
	return user, nil
}
