package model

import (
	"time"

	"gorm.io/gorm"
)

// User struct
type User struct {
	gorm.Model
	Email          string     `gorm:"uniqueIndex;not null" json:"email"`
	Name           string     `gorm:"not null" json:"name"`
	Password       string     `gorm:"not null" json:"-"`
	Role           string     `json:"role"`
	Bio            string     `json:"bio"`
	University     string     `json:"university"`
	BirthDate      *time.Time `json:"birthDate"`
	ProfilePicture string     `json:"profilePicture"`

	TermsAcceptedAt        *time.Time `json:"termsAcceptedAt"`
	CookiePolicyAcceptedAt *time.Time `json:"cookiePolicyAcceptedAt"`

	OtpEnabled bool   `gorm:"default:false" json:"otpEnabled"`
	OtpSecret  string `json:"-"`
}

// UserSummary is the public face of a user inside conversations and messages.
type UserSummary struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

func (u User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Email: u.Email}
}
