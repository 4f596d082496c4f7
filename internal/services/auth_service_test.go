package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/forots/vigia/internal/config"
	"github.com/forots/vigia/internal/models"
)

func setupAuthService(t *testing.T) (*AuthService, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}))

	cfg := config.Config{JWTSecret: "test-secret"}
	return NewAuthService(db, cfg), db
}

func TestRegister_FirstUserIsAdmin(t *testing.T) {
	svc, _ := setupAuthService(t)

	first, err := svc.Register("admin@example.com", "s3cretpass", "Admin")
	require.NoError(t, err)
	assert.Equal(t, "admin", first.Role)
	assert.NotEmpty(t, first.UUID)

	second, err := svc.Register("user@example.com", "s3cretpass", "User")
	require.NoError(t, err)
	assert.Equal(t, "user", second.Role)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, _ := setupAuthService(t)

	_, err := svc.Register("a@example.com", "s3cretpass", "A")
	require.NoError(t, err)

	_, err = svc.Register("a@example.com", "otherpass1", "A2")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestLogin_IssuesValidToken(t *testing.T) {
	svc, _ := setupAuthService(t)

	user, err := svc.Register("a@example.com", "s3cretpass", "A")
	require.NoError(t, err)

	token, logged, err := svc.Login("a@example.com", "s3cretpass")
	require.NoError(t, err)
	assert.Equal(t, user.ID, logged.ID)
	assert.NotNil(t, logged.LastLogin)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "admin", claims.Role)
}

func TestLogin_WrongPassword(t *testing.T) {
	svc, _ := setupAuthService(t)

	_, err := svc.Register("a@example.com", "s3cretpass", "A")
	require.NoError(t, err)

	_, _, err = svc.Login("a@example.com", "wrongpass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_UnknownEmail(t *testing.T) {
	svc, _ := setupAuthService(t)
	_, _, err := svc.Login("nobody@example.com", "whatever1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_DisabledUser(t *testing.T) {
	svc, db := setupAuthService(t)

	user, err := svc.Register("a@example.com", "s3cretpass", "A")
	require.NoError(t, err)
	require.NoError(t, db.Model(user).Update("enabled", false).Error)

	_, _, err = svc.Login("a@example.com", "s3cretpass")
	assert.ErrorIs(t, err, ErrUserDisabled)
}

func TestValidateToken_RejectsTamperedToken(t *testing.T) {
	svc, _ := setupAuthService(t)

	_, err := svc.Register("a@example.com", "s3cretpass", "A")
	require.NoError(t, err)
	token, _, err := svc.Login("a@example.com", "s3cretpass")
	require.NoError(t, err)

	_, err = svc.ValidateToken(token + "x")
	assert.Error(t, err)
}

func TestResetPassword_RoundTrip(t *testing.T) {
	svc, _ := setupAuthService(t)

	_, err := svc.Register("a@example.com", "s3cretpass", "A")
	require.NoError(t, err)

	token, found, err := svc.CreateResetToken("a@example.com")
	require.NoError(t, err)
	require.True(t, found)
	require.NotEmpty(t, token)

	_, err = svc.ResetPassword(token, "newpassword1")
	require.NoError(t, err)

	// Old password no longer works, new one does, token is spent.
	_, _, err = svc.Login("a@example.com", "s3cretpass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.Login("a@example.com", "newpassword1")
	assert.NoError(t, err)
	_, err = svc.ResetPassword(token, "anotherpass1")
	assert.ErrorIs(t, err, ErrInvalidResetToken)
}

func TestCreateResetToken_UnknownEmailNotFound(t *testing.T) {
	svc, _ := setupAuthService(t)

	token, found, err := svc.CreateResetToken("nobody@example.com")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, token)
}

func TestResetPassword_UnknownToken(t *testing.T) {
	svc, _ := setupAuthService(t)
	_, err := svc.ResetPassword("deadbeef", "newpassword1")
	assert.ErrorIs(t, err, ErrInvalidResetToken)
}
