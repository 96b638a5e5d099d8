// internal/domain/admin/service.go
package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/pkg/apperror"
	"github.com/your-org/storefront-backend/internal/pkg/auth"
	"gorm.io/gorm"
)

// Service handles admin authentication
type Service struct {
	db              *gorm.DB
	config          *config.Config
	passwordManager *auth.PasswordManager
	jwtManager      *auth.JWTManager
	logger          *logrus.Logger
}

// NewService creates a new admin service
func NewService(db *gorm.DB, cfg *config.Config, logger *logrus.Logger) *Service {
	return &Service{
		db:              db,
		config:          cfg,
		passwordManager: auth.NewPasswordManager(cfg),
		jwtManager:      auth.NewJWTManager(cfg),
		logger:          logger,
	}
}

// SignupRequest represents admin registration data
type SignupRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name" binding:"required,max=100"`
}

// LoginRequest represents admin login data
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse represents admin authentication response
type AuthResponse struct {
	Admin *Admin `json:"admin"`
	*auth.TokenPair
}

// Signup creates an admin account when self-service admin signup is enabled
func (s *Service) Signup(ctx context.Context, req *SignupRequest) (*AuthResponse, error) {
	if !s.config.Security.AllowAdminSignup {
		return nil, apperror.Forbidden("admin signup is disabled")
	}

	email := normalizeEmail(req.Email)
	name := strings.TrimSpace(req.Name)
	if email == "" || name == "" {
		return nil, apperror.InvalidArgument("email and name are required")
	}

	hashedPassword, err := s.passwordManager.HashPassword(req.Password)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInvalidArgument, err, "invalid password")
	}

	db := s.db.WithContext(ctx)

	var count int64
	if err := db.Model(&Admin{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if count > 0 {
		return nil, apperror.Conflict("admin with this email already exists")
	}

	a := Admin{
		Email:    email,
		Password: hashedPassword,
		Name:     name,
		Role:     string(auth.RoleAdmin),
	}
	if err := db.Create(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperror.Conflict("admin with this email already exists")
		}
		return nil, fmt.Errorf("failed to create admin: %w", err)
	}

	s.logger.WithField("admin_id", a.ID).Info("admin registered")
	return s.issueTokens(&a)
}

// Login authenticates an admin
func (s *Service) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	db := s.db.WithContext(ctx)

	var a Admin
	if err := db.Where("email = ?", normalizeEmail(req.Email)).First(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.Unauthorized("invalid email or password")
		}
		return nil, fmt.Errorf("failed to find admin: %w", err)
	}

	if err := s.passwordManager.VerifyPassword(req.Password, a.Password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, apperror.Unauthorized("invalid email or password")
		}
		return nil, err
	}

	now := time.Now().UTC()
	if err := db.Model(&a).Update("last_login_at", now).Error; err != nil {
		s.logger.WithError(err).WithField("admin_id", a.ID).Warn("failed to record last login")
	}
	a.LastLoginAt = &now

	return s.issueTokens(&a)
}

// RefreshToken exchanges an admin refresh token for new tokens
func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	claims, err := s.jwtManager.ValidateRefreshToken(refreshToken)
	if err != nil || claims.Role != auth.RoleAdmin {
		return nil, apperror.Unauthorized("invalid or expired refresh token")
	}

	a, err := s.GetAdmin(ctx, claims.PrincipalID)
	if err != nil {
		if apperror.Is(err, apperror.KindNotFound) {
			return nil, apperror.Unauthorized("invalid or expired refresh token")
		}
		return nil, err
	}

	pair, err := s.jwtManager.Refresh(refreshToken)
	if err != nil {
		return nil, apperror.Unauthorized("invalid or expired refresh token")
	}
	return &AuthResponse{Admin: a, TokenPair: pair}, nil
}

// GetAdmin retrieves an admin by ID
func (s *Service) GetAdmin(ctx context.Context, id uint) (*Admin, error) {
	var a Admin
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("admin %d not found", id)
		}
		return nil, fmt.Errorf("failed to retrieve admin: %w", err)
	}
	return &a, nil
}

func (s *Service) issueTokens(a *Admin) (*AuthResponse, error) {
	pair, err := s.jwtManager.GenerateTokenPair(a.ID, a.Email, auth.RoleAdmin)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{Admin: a, TokenPair: pair}, nil
}
