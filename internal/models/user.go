package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID                string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Username          string    `gorm:"type:varchar(64);not null" json:"username"`
	Email             string    `gorm:"type:varchar(191);uniqueIndex;not null" json:"email"`
	PasswordHash      string    `gorm:"type:varchar(255);not null" json:"-"`
	EmailVerified     bool      `gorm:"not null;default:false" json:"email_verified"`
	VerificationToken *string   `gorm:"type:varchar(64);uniqueIndex" json:"-"`
	CreatedAt         time.Time `json:"created_at"`
}

func (User) TableName() string { return "users" }

// userNamespace scopes the name-based ids so they never collide with other UUIDv5 users.
var userNamespace = uuid.MustParse("6f0e3c1a-8a63-4f5e-9a55-3c0b8f3d2a41")

// UserIDForEmail derives the stable user id for an email address.
func UserIDForEmail(email string) string {
	return uuid.NewSHA1(userNamespace, []byte(NormalizeEmail(email))).String()
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
