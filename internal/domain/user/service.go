// internal/domain/user/service.go
package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/domain/cart"
	"github.com/your-org/storefront-backend/internal/pkg/apperror"
	"github.com/your-org/storefront-backend/internal/pkg/auth"
	"github.com/your-org/storefront-backend/internal/pkg/softdelete"
	"gorm.io/gorm"
)

// Service handles user authentication and profile logic
type Service struct {
	db              *gorm.DB
	config          *config.Config
	passwordManager *auth.PasswordManager
	jwtManager      *auth.JWTManager
	logger          *logrus.Logger
}

// NewService creates a new user service
func NewService(db *gorm.DB, cfg *config.Config, logger *logrus.Logger) *Service {
	return &Service{
		db:              db,
		config:          cfg,
		passwordManager: auth.NewPasswordManager(cfg),
		jwtManager:      auth.NewJWTManager(cfg),
		logger:          logger,
	}
}

// RegisterRequest represents user registration data
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name" binding:"required,max=100"`
	Address  string `json:"address" binding:"max=1000"`
	Phone    string `json:"phone" binding:"max=20"`
}

// LoginRequest represents user login data
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// UpdateProfileRequest represents profile changes
type UpdateProfileRequest struct {
	Name    *string `json:"name" binding:"omitempty,max=100"`
	Address *string `json:"address" binding:"omitempty,max=1000"`
	Phone   *string `json:"phone" binding:"omitempty,max=20"`
}

// AuthResponse represents authentication response
type AuthResponse struct {
	User *UserResponse `json:"user"`
	*auth.TokenPair
}

// Register creates a user and their cart in one transaction
func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error) {
	email := NormalizeEmail(req.Email)
	name := strings.TrimSpace(req.Name)
	if email == "" || name == "" {
		return nil, apperror.InvalidArgument("email and name are required")
	}

	hashedPassword, err := s.passwordManager.HashPassword(req.Password)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInvalidArgument, err, "invalid password")
	}

	user := User{
		Email:    email,
		Password: hashedPassword,
		Name:     name,
		Address:  strings.TrimSpace(req.Address),
		Phone:    strings.TrimSpace(req.Phone),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&User{}).Scopes(softdelete.Active).Where("email = ?", email).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check email: %w", err)
		}
		if count > 0 {
			return apperror.Conflict("user with this email already exists")
		}

		if err := tx.Create(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperror.Conflict("user with this email already exists")
			}
			return fmt.Errorf("failed to create user: %w", err)
		}

		if err := tx.Create(&cart.Cart{UserID: user.ID}).Error; err != nil {
			return fmt.Errorf("failed to create cart: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithField("user_id", user.ID).Info("user registered")
	return s.issueTokens(&user)
}

// Login authenticates a user. Deleted users cannot log in.
func (s *Service) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	db := s.db.WithContext(ctx)

	var user User
	err := db.Scopes(softdelete.Active).Where("email = ?", NormalizeEmail(req.Email)).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.Unauthorized("invalid email or password")
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if err := s.passwordManager.VerifyPassword(req.Password, user.Password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, apperror.Unauthorized("invalid email or password")
		}
		return nil, err
	}

	now := time.Now().UTC()
	if err := db.Model(&user).Update("last_login_at", now).Error; err != nil {
		s.logger.WithError(err).WithField("user_id", user.ID).Warn("failed to record last login")
	}

	return s.issueTokens(&user)
}

// RefreshToken exchanges a user refresh token for new tokens
func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	claims, err := s.jwtManager.ValidateRefreshToken(refreshToken)
	if err != nil || claims.Role != auth.RoleUser {
		return nil, apperror.Unauthorized("invalid or expired refresh token")
	}

	user, err := s.GetProfile(ctx, claims.PrincipalID)
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
	return &AuthResponse{User: user.ToResponse(), TokenPair: pair}, nil
}

// GetProfile retrieves a non-deleted user
func (s *Service) GetProfile(ctx context.Context, userID uint) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).Scopes(softdelete.Active).Where("id = ?", userID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("user %d not found", userID)
		}
		return nil, fmt.Errorf("failed to retrieve user: %w", err)
	}
	return &user, nil
}

// UpdateProfile changes name, address and phone of a user
func (s *Service) UpdateProfile(ctx context.Context, userID uint, req *UpdateProfileRequest) (*User, error) {
	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, apperror.InvalidArgument("name must not be empty")
		}
		updates["name"] = name
	}
	if req.Address != nil {
		updates["address"] = strings.TrimSpace(*req.Address)
	}
	if req.Phone != nil {
		updates["phone"] = strings.TrimSpace(*req.Phone)
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("failed to update profile: %w", err)
		}
	}

	return s.GetProfile(ctx, userID)
}

func (s *Service) issueTokens(user *User) (*AuthResponse, error) {
	pair, err := s.jwtManager.GenerateTokenPair(user.ID, user.Email, auth.RoleUser)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{User: user.ToResponse(), TokenPair: pair}, nil
}
