package model

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	FirstName                     string     `gorm:"column:first_name;not null"`
	LastName                      string     `gorm:"column:last_name;not null"`
	PhoneNumber                   *string    `gorm:"column:phone_number;default:null"`
	Email                         string     `gorm:"column:email;uniqueIndex;not null"`
	Password                      string     `gorm:"column:password;not null"`
	EmailValidationToken          *string    `gorm:"column:email_validation_token;default:null;index"`
	EmailVerified                 bool       `gorm:"column:email_verified;default:false;not null"`
	EmailVerifiedAt               *time.Time `gorm:"column:email_verified_at;default:null"`
	PasswordResetCode             *string    `gorm:"column:password_reset_code;default:null"`
	PasswordResetCodeExpiresAt    *time.Time `gorm:"column:password_reset_code_expires_at;default:null"`
	ProfileImage                  *string    `gorm:"column:profile_image;default:null"`
	LastActive                    *time.Time `gorm:"column:last_active;default:null"`
	HasAcceptedTermsAndConditions bool       `gorm:"column:has_accepted_terms_and_conditions;not null"`
}

// FullName is the display name used on outgoing notifications.
func (u *User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
