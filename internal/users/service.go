package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/suPer8Hu/chat-ai/internal/auth"
	"github.com/suPer8Hu/chat-ai/internal/email"
	"github.com/suPer8Hu/chat-ai/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrValidation           = errors.New("validation failed")
	ErrEmailTaken           = errors.New("email already registered")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrEmailNotVerified     = errors.New("email not verified")
	ErrVerificationNotFound = errors.New("verification token not found")
	ErrTooManyAttempts      = errors.New("too many failed login attempts")
	ErrMailDelivery         = errors.New("verification mail delivery failed")
)

// LoginLimiter counts failed logins per email.
type LoginLimiter interface {
	Blocked(ctx context.Context, email string) (bool, error)
	RecordFailure(ctx context.Context, email string) error
	Reset(ctx context.Context, email string) error
}

type Config struct {
	JWTSecret           string
	JWTTTL              time.Duration
	VerificationBaseURL string
	Product             string
}

type Service struct {
	db      *gorm.DB
	mail    email.Sender
	limiter LoginLimiter
	cfg     Config
	log     *zap.Logger
}

// NewService wires registration, verification and login. limiter may be nil.
func NewService(db *gorm.DB, mail email.Sender, limiter LoginLimiter, cfg Config, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Product == "" {
		cfg.Product = "Chat AI"
	}
	return &Service{db: db, mail: mail, limiter: limiter, cfg: cfg, log: log}
}

// Register creates an unverified account and sends the verification mail. The
// user row is removed again when the mail cannot be dispatched.
func (s *Service) Register(ctx context.Context, username, emailAddr, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	emailAddr = models.NormalizeEmail(emailAddr)
	if username == "" || emailAddr == "" || password == "" {
		return nil, fmt.Errorf("%w: username, email and password are required", ErrValidation)
	}
	if !strings.Contains(emailAddr, "@") {
		return nil, fmt.Errorf("%w: invalid email", ErrValidation)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	token := uuid.NewString()
	user := &models.User{
		ID:                models.UserIDForEmail(emailAddr),
		Username:          username,
		Email:             emailAddr,
		PasswordHash:      hash,
		VerificationToken: &token,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cnt int64
		if err := tx.Model(&models.User{}).Where("email = ?", emailAddr).Count(&cnt).Error; err != nil {
			return err
		}
		if cnt > 0 {
			return ErrEmailTaken
		}
		if err := tx.Create(user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrEmailTaken
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// mail goes out after commit so the link always points at a stored token
	if err := s.sendVerification(ctx, user, token); err != nil {
		if derr := s.db.WithContext(context.WithoutCancel(ctx)).
			Where("id = ? AND email_verified = ?", user.ID, false).
			Delete(&models.User{}).Error; derr != nil {
			s.log.Error("remove unverifiable user", zap.String("user_id", user.ID), zap.Error(derr))
		}
		return nil, err
	}

	s.log.Info("user registered", zap.String("user_id", user.ID))
	return user, nil
}

func (s *Service) sendVerification(ctx context.Context, user *models.User, token string) error {
	msg, err := email.VerificationMessage(s.cfg.Product, user.Email, user.Username,
		email.VerificationLink(s.cfg.VerificationBaseURL, token))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMailDelivery, err)
	}
	if err := s.mail.Send(ctx, msg); err != nil {
		return fmt.Errorf("%w: %v", ErrMailDelivery, err)
	}
	return nil
}

// Verify consumes a verification token. Unknown and already used tokens both
// yield ErrVerificationNotFound.
func (s *Service) Verify(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("%w: token is required", ErrValidation)
	}
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("verification_token = ?", token).
		Updates(map[string]any{
			"email_verified":     true,
			"verification_token": nil,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVerificationNotFound
	}
	return nil
}

type LoginResult struct {
	UserID   string
	Username string
	Token    string
}

// Login checks the password before the verification flag, so a wrong password
// never reveals whether an account is verified.
func (s *Service) Login(ctx context.Context, emailAddr, password string) (*LoginResult, error) {
	emailAddr = models.NormalizeEmail(emailAddr)
	if emailAddr == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrValidation)
	}

	if s.limiter != nil {
		blocked, err := s.limiter.Blocked(ctx, emailAddr)
		if err != nil {
			s.log.Warn("login limiter unavailable", zap.Error(err))
		} else if blocked {
			return nil, ErrTooManyAttempts
		}
	}

	var u models.User
	err := s.db.WithContext(ctx).Where("email = ?", emailAddr).First(&u).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if err != nil || !auth.CheckPassword(u.PasswordHash, password) {
		s.recordFailure(ctx, emailAddr)
		return nil, ErrInvalidCredentials
	}
	if !u.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	token, err := auth.SignToken(u.ID, u.Username, u.Email, s.cfg.JWTSecret, s.cfg.JWTTTL)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	if s.limiter != nil {
		if err := s.limiter.Reset(ctx, emailAddr); err != nil {
			s.log.Warn("reset login failures", zap.Error(err))
		}
	}
	return &LoginResult{UserID: u.ID, Username: u.Username, Token: token}, nil
}

func (s *Service) recordFailure(ctx context.Context, emailAddr string) {
	if s.limiter == nil {
		return
	}
	if err := s.limiter.RecordFailure(ctx, emailAddr); err != nil {
		s.log.Warn("record login failure", zap.Error(err))
	}
}
