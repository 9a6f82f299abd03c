package dto

import (
	"time"

	"github.com/Payphone-Digital/account-service/internal/model"
)

// UserResponse is the public view of a user. Password hash and one-time
// codes are never part of it.
type UserResponse struct {
	ID                            uint       `json:"id"`
	FirstName                     string     `json:"firstname"`
	LastName                      string     `json:"lastname"`
	Email                         string     `json:"email"`
	PhoneNumber                   *string    `json:"phonenumber"`
	ProfileImage                  *string    `json:"profileImage"`
	EmailVerified                 bool       `json:"emailVerified"`
	LastActive                    *time.Time `json:"lastActive"`
	HasAcceptedTermsAndConditions bool       `json:"hasAcceptedTermsAndConditions"`
	CreatedAt                     time.Time  `json:"createdAt"`
	UpdatedAt                     time.Time  `json:"updatedAt"`
}

// SessionResponse is returned by every operation that issues a token.
type SessionResponse struct {
	User           UserResponse `json:"user"`
	Token          string       `json:"token"`
	TokenExpiresAt time.Time    `json:"tokenExpiresAt"`
}

func ToUserResponse(u *model.User) UserResponse {
	return UserResponse{
		ID:                            u.ID,
		FirstName:                     u.FirstName,
		LastName:                      u.LastName,
		Email:                         u.Email,
		PhoneNumber:                   u.PhoneNumber,
		ProfileImage:                  u.ProfileImage,
		EmailVerified:                 u.EmailVerified,
		LastActive:                    u.LastActive,
		HasAcceptedTermsAndConditions: u.HasAcceptedTermsAndConditions,
		CreatedAt:                     u.CreatedAt,
		UpdatedAt:                     u.UpdatedAt,
	}
}
