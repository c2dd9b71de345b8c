package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/pawpledge/internal/config"
	"github.com/pawpledge/internal/constants"
	"github.com/pawpledge/internal/logger"
	"github.com/pawpledge/internal/models"
	"github.com/pawpledge/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// AuthService 认证服务
type AuthService struct {
	cfg      config.JWTConfig
	userRepo repository.UserRepository
	policy   config.PasswordPolicyConfig
}

// NewAuthService 创建认证服务实例
func NewAuthService(cfg config.JWTConfig, userRepo repository.UserRepository) *AuthService {
	if cfg.ExpireHours <= 0 {
		cfg.ExpireHours = 24
	}
	return &AuthService{cfg: cfg, userRepo: userRepo}
}

// SetPasswordPolicy 设置新建账号的密码策略
func (s *AuthService) SetPasswordPolicy(policy config.PasswordPolicyConfig) {
	s.policy = policy
}

// EnsureUserInput 初始化账号输入
type EnsureUserInput struct {
	Email       string
	Password    string
	DisplayName string
	Role        string
}

// EnsureUser 账号不存在时创建，已存在则原样返回
func (s *AuthService) EnsureUser(ctx context.Context, input EnsureUserInput) (*models.User, bool, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, false, ErrInvalidEmail
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, false, ErrInvalidEmail
	}
	existing, err := s.userRepo.GetByEmail(email)
	if err != nil {
		return nil, false, ErrPersistFailed.Wrap(err)
	}
	if existing != nil {
		return existing, false, nil
	}
	if err := validatePassword(s.policy, input.Password); err != nil {
		return nil, false, err
	}
	role := strings.ToLower(strings.TrimSpace(input.Role))
	switch role {
	case constants.RoleAdmin, constants.RoleModerator, constants.RoleUser:
	case "":
		role = constants.RoleUser
	default:
		return nil, false, ErrUserRoleInvalid
	}
	hash, err := HashPassword(input.Password)
	if err != nil {
		return nil, false, err
	}
	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		DisplayName:  strings.TrimSpace(input.DisplayName),
		Role:         role,
		Status:       constants.UserStatusActive,
	}
	if err := s.userRepo.Create(user); err != nil {
		return nil, false, ErrPersistFailed.Wrap(err)
	}
	logger.Infow("auth_user_created", "user_id", user.ID, "role", user.Role)
	return user, true, nil
}

// Identity 已认证的调用方
type Identity struct {
	UserID uint
	Role   string
}

// IsStaff 管理员或版主
func (i Identity) IsStaff() bool {
	return i.Role == constants.RoleAdmin || i.Role == constants.RoleModerator
}

// JWTClaims JWT 声明
type JWTClaims struct {
	UserID uint   `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// LoginResult 登录结果
type LoginResult struct {
	User      *models.User
	Token     string
	ExpiresAt time.Time
}

// HashPassword 使用 bcrypt 加密密码
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// GenerateJWT 生成 JWT Token
func (s *AuthService) GenerateJWT(user *models.User) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(time.Duration(s.cfg.ExpireHours) * time.Hour)
	claims := JWTClaims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.cfg.SecretKey))
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// ParseToken 解析 Bearer Token
func (s *AuthService) ParseToken(tokenString string) (*Identity, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, ErrTokenInvalid
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	token, err := parser.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.SecretKey), nil
	})
	if err != nil {
		return nil, ErrTokenInvalid.Wrap(err)
	}
	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid || claims.UserID == 0 {
		return nil, ErrTokenInvalid
	}
	role := strings.TrimSpace(claims.Role)
	if role == "" {
		role = constants.RoleUser
	}
	return &Identity{UserID: claims.UserID, Role: role}, nil
}

// Login 邮箱密码登录
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := s.userRepo.GetByEmail(email)
	if err != nil {
		return nil, ErrPersistFailed.Wrap(err)
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			logger.Warnw("auth_password_compare_failed", "user_id", user.ID, "error", err)
		}
		return nil, ErrInvalidCredentials
	}
	if user.Status == constants.UserStatusDisabled {
		return nil, ErrUserDisabled
	}

	token, expiresAt, err := s.GenerateJWT(user)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	if err := s.userRepo.TouchLastLogin(user.ID, now); err != nil {
		logger.Warnw("auth_touch_last_login_failed", "user_id", user.ID, "error", err)
	}
	user.LastLoginAt = &now
	return &LoginResult{User: user, Token: token, ExpiresAt: expiresAt}, nil
}
