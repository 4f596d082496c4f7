package services

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/forots/vigia/internal/config"
	"github.com/forots/vigia/internal/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserDisabled       = errors.New("user disabled")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidResetToken  = errors.New("invalid or expired reset token")
)

const resetTokenTTL = time.Hour

// Claims is the JWT payload issued on login.
type Claims struct {
	UserID uint   `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// AuthService handles registration, login and password recovery.
type AuthService struct {
	db  *gorm.DB
	cfg config.Config
}

// NewAuthService returns an AuthService using the provided DB and config.
func NewAuthService(db *gorm.DB, cfg config.Config) *AuthService {
	return &AuthService{db: db, cfg: cfg}
}

// Register creates a user account. The first registered account gets the
// admin role.
func (s *AuthService) Register(email, password, name string) (*models.User, error) {
	var count int64
	if err := s.db.Model(&models.User{}).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}

	var existing models.User
	if err := s.db.Where("email = ?", email).First(&existing).Error; err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	user := models.User{
		UUID:    uuid.New().String(),
		Email:   email,
		Name:    name,
		Role:    "user",
		Enabled: true,
	}
	if count == 0 {
		user.Role = "admin"
	}
	if err := user.SetPassword(password); err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	if err := s.db.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &user, nil
}

// Login verifies credentials and returns a signed token. Callers are
// responsible for reporting the outcome to the abuse guard; this method
// only decides whether the credentials are valid.
func (s *AuthService) Login(email, password string) (string, *models.User, error) {
	var user models.User
	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("lookup user: %w", err)
	}

	if !user.Enabled {
		return "", nil, ErrUserDisabled
	}
	if !user.CheckPassword(password) {
		return "", nil, ErrInvalidCredentials
	}

	now := time.Now()
	user.LastLogin = &now
	if err := s.db.Save(&user).Error; err != nil {
		return "", nil, fmt.Errorf("update last login: %w", err)
	}

	token, err := s.issueToken(&user)
	if err != nil {
		return "", nil, err
	}
	return token, &user, nil
}

// ValidateToken parses and verifies a token issued by Login.
func (s *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// GetUserByID fetches a user by primary key.
func (s *AuthService) GetUserByID(id uint) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateResetToken generates a password-recovery token for the account, if
// it exists. The boolean reports whether an account matched; callers must
// not leak that distinction to the client.
func (s *AuthService) CreateResetToken(email string) (string, bool, error) {
	var user models.User
	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("lookup user: %w", err)
	}

	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", false, fmt.Errorf("generate reset token: %w", err)
	}
	token := hex.EncodeToString(raw)
	expires := time.Now().Add(resetTokenTTL)

	user.ResetToken = token
	user.ResetExpires = &expires
	if err := s.db.Save(&user).Error; err != nil {
		return "", false, fmt.Errorf("store reset token: %w", err)
	}
	return token, true, nil
}

// ResetPassword consumes a recovery token and sets the new password.
func (s *AuthService) ResetPassword(token, newPassword string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("reset_token = ?", token).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidResetToken
		}
		return nil, fmt.Errorf("lookup reset token: %w", err)
	}

	if token == "" || user.ResetExpires == nil || user.ResetExpires.Before(time.Now()) {
		return nil, ErrInvalidResetToken
	}

	if err := user.SetPassword(newPassword); err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user.ResetToken = ""
	user.ResetExpires = nil

	if err := s.db.Save(&user).Error; err != nil {
		return nil, fmt.Errorf("save password: %w", err)
	}
	return &user, nil
}

func (s *AuthService) issueToken(user *models.User) (string, error) {
	claims := Claims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.UUID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
