package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/admissions-crm/internal/models"
	appErrors "github.com/noah-isme/admissions-crm/pkg/errors"
)

func newAuthService(repo *fakeUserRepo) *AuthService {
	return NewAuthService(repo, nil, zap.NewNop(), AuthConfig{Secret: "secret", Expiry: time.Hour, Issuer: "test"})
}

func userWithPassword(t *testing.T, role models.UserRole, email, password string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	u := newStaff(role, "Someone")
	u.Email = email
	u.PasswordHash = string(hash)
	return u
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	user := userWithPassword(t, models.RoleAgent, "agent@example.com", "password123")
	svc := newAuthService(newFakeUserRepo(user))

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "agent@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, user.ID, res.User.ID)
	assert.Equal(t, int64(3600), res.ExpiresIn)

	claims, err := svc.ValidateToken(context.Background(), res.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, models.RoleAgent, claims.Role)
}

func TestAuthServiceLoginFailuresAreIndistinguishable(t *testing.T) {
	user := userWithPassword(t, models.RoleAgent, "agent@example.com", "password123")
	svc := newAuthService(newFakeUserRepo(user))

	_, errWrong := svc.Login(context.Background(), models.LoginRequest{Email: "agent@example.com", Password: "nope"})
	_, errUnknown := svc.Login(context.Background(), models.LoginRequest{Email: "ghost@example.com", Password: "password123"})

	require.Error(t, errWrong)
	require.Error(t, errUnknown)
	assert.Equal(t, appErrors.FromError(errWrong).Message, appErrors.FromError(errUnknown).Message)
	assert.Equal(t, 401, appErrors.FromError(errWrong).Status)
}

func TestAuthServiceLoginValidation(t *testing.T) {
	svc := newAuthService(newFakeUserRepo())
	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "not-an-email", Password: "x"})
	appErr := appErrors.FromError(err)
	assert.Equal(t, 400, appErr.Status)
	assert.Equal(t, "Please include a valid email", appErr.Message)
}

func TestAuthServiceRegisterDefaultsToAgent(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newAuthService(repo)

	res, err := svc.Register(context.Background(), models.RegisterRequest{Name: "New Agent", Email: "New@Example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAgent, res.User.Role)
	assert.Equal(t, "new@example.com", res.User.Email)

	_, err = svc.Register(context.Background(), models.RegisterRequest{Name: "Dup", Email: "new@example.com", Password: "secret1"})
	appErr := appErrors.FromError(err)
	assert.Equal(t, 400, appErr.Status)
	assert.Equal(t, "User already exists", appErr.Message)
}

func TestAuthServiceRegisterRejectsAdminRole(t *testing.T) {
	svc := newAuthService(newFakeUserRepo())
	_, err := svc.Register(context.Background(), models.RegisterRequest{Name: "Sneaky", Email: "s@example.com", Password: "secret1", Role: models.RoleAdmin})
	appErr := appErrors.FromError(err)
	assert.Equal(t, 400, appErr.Status)
	require.Len(t, appErr.Details, 1)
	assert.Equal(t, "role", appErr.Details[0].Param)
}

func TestAuthServiceRegisterLeadUser(t *testing.T) {
	svc := newAuthService(newFakeUserRepo())
	res, err := svc.RegisterLeadUser(context.Background(), models.RegisterLeadUserRequest{Name: "Lead", Email: "lead@example.com", Password: "secret1", Phone: "999"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleLead, res.User.Role)
	assert.Equal(t, "999", res.User.Phone)
}

func TestAuthServiceFirstAdminOnlyOnce(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newAuthService(repo)

	res, err := svc.RegisterFirstAdmin(context.Background(), models.FirstAdminRequest{Name: "Root", Email: "root@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, res.User.Role)

	_, err = svc.RegisterFirstAdmin(context.Background(), models.FirstAdminRequest{Name: "Other", Email: "other@example.com", Password: "secret1"})
	appErr := appErrors.FromError(err)
	assert.Equal(t, 403, appErr.Status)
	assert.Equal(t, "Admin already exists", appErr.Message)
}

func TestAuthServiceFirstAdminConcurrent(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newAuthService(repo)

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.RegisterFirstAdmin(context.Background(), models.FirstAdminRequest{
				Name:     "Admin",
				Email:    string(rune('a'+i)) + "@example.com",
				Password: "secret1",
			})
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, successes)
}

func TestAuthServiceValidateTokenRejectsGarbage(t *testing.T) {
	svc := newAuthService(newFakeUserRepo())
	_, err := svc.ValidateToken(context.Background(), "not-a-token")
	appErr := appErrors.FromError(err)
	assert.Equal(t, 401, appErr.Status)
	assert.Equal(t, "Token is not valid", appErr.Message)
}

func TestAuthServiceValidateTokenRejectsOtherAlgorithms(t *testing.T) {
	svc := newAuthService(newFakeUserRepo())
	claims := &models.JWTClaims{UserID: "x", Role: models.RoleAdmin}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = svc.ValidateToken(context.Background(), signed)
	assert.Equal(t, 401, appErrors.FromError(err).Status)
}

func TestAuthServiceValidateTokenDeletedUser(t *testing.T) {
	user := userWithPassword(t, models.RoleAgent, "agent@example.com", "password123")
	repo := newFakeUserRepo(user)
	svc := newAuthService(repo)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "agent@example.com", Password: "password123"})
	require.NoError(t, err)
	require.NoError(t, repo.Delete(context.Background(), user.ID))

	_, err = svc.ValidateToken(context.Background(), res.Token)
	appErr := appErrors.FromError(err)
	assert.Equal(t, 401, appErr.Status)
	assert.Equal(t, "User not found, please login again", appErr.Message)
}

func TestAuthServiceValidateTokenExpired(t *testing.T) {
	user := userWithPassword(t, models.RoleAgent, "agent@example.com", "password123")
	svc := newAuthService(newFakeUserRepo(user))
	claims := &models.JWTClaims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = svc.ValidateToken(context.Background(), signed)
	assert.Equal(t, "Token is not valid", appErrors.FromError(err).Message)
}

func TestAuthServiceRegisterRejectsBlankName(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newAuthService(repo)

	_, err := svc.Register(context.Background(), models.RegisterRequest{Name: "   ", Email: "blank@example.com", Password: "secret1"})
	assert.Equal(t, "Name is required", appErrors.FromError(err).Message)

	_, err = svc.RegisterFirstAdmin(context.Background(), models.FirstAdminRequest{Name: "\t", Email: "root@example.com", Password: "secret1"})
	assert.Equal(t, "Name is required", appErrors.FromError(err).Message)

	_, err = repo.FindByEmail(context.Background(), "blank@example.com")
	assert.Error(t, err)
}
