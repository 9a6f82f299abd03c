package dto

import "strings"

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type SignupRequest struct {
	FirstName                     string  `json:"firstname" binding:"required,max=50"`
	LastName                      string  `json:"lastname" binding:"required,max=50"`
	Email                         string  `json:"email" binding:"required,email,max=255"`
	Password                      string  `json:"password" binding:"required,strongpassword"`
	PhoneNumber                   *string `json:"phonenumber" binding:"omitempty,e164"`
	ProfileImage                  *string `json:"profileImage" binding:"omitempty,url,max=2048"`
	HasAcceptedTermsAndConditions *bool   `json:"hasAcceptedTermsAndConditions"`
}

type VerifyEmailRequest struct {
	EmailValidationToken string `json:"emailValidationToken" binding:"required"`
	Email                string `json:"email" binding:"required,email"`
}

type EmailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

func (r *LoginRequest) Normalize()       { r.Email = strings.TrimSpace(r.Email) }
func (r *SignupRequest) Normalize()      { r.Email = strings.TrimSpace(r.Email) }
func (r *VerifyEmailRequest) Normalize() { r.Email = strings.TrimSpace(r.Email) }
func (r *EmailRequest) Normalize()       { r.Email = strings.TrimSpace(r.Email) }

type ResetPasswordRequest struct {
	ResetToken string `json:"resetToken" binding:"required"`
	Password   string `json:"password" binding:"required,strongpassword"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	Password    string `json:"password" binding:"required,strongpassword"`
}

// EditProfileRequest holds the mutable profile fields; nil means unchanged.
type EditProfileRequest struct {
	FirstName    *string `json:"firstname" binding:"omitempty,min=1,max=50"`
	LastName     *string `json:"lastname" binding:"omitempty,min=1,max=50"`
	PhoneNumber  *string `json:"phonenumber" binding:"omitempty,e164"`
	ProfileImage *string `json:"profileImage" binding:"omitempty,url,max=2048"`
}
