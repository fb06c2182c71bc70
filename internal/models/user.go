package models

import (
	"strings"
	"time"
)

// User is the decrypted, application-facing view of a registered identity.
// Password is transient: when set, the next save hashes it into PasswordHash.
type User struct {
	ID                       string
	Email                    string
	Password                 string
	PasswordHash             string
	Role                     Role
	FirstName                string
	LastName                 string
	Phone                    string
	IsVerified               bool
	VerificationTokenHash    string
	VerificationTokenExpires time.Time
	LastVerificationSentAt   time.Time
	ResendAttemptCount       int
	ResendWindowStart        time.Time
	DeviceTokens             []string
	Caregivers               []string
	Patients                 []string
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

// FullName joins first and last name.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Summary is the subset returned alongside session cookies.
type Summary struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      Role   `json:"role"`
}

// Profile is the self-service view; it never carries credentials or device tokens.
type Profile struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	FirstName  string    `json:"firstName"`
	LastName   string    `json:"lastName"`
	FullName   string    `json:"fullName"`
	Phone      string    `json:"phoneNumber,omitempty"`
	Role       Role      `json:"role"`
	IsVerified bool      `json:"isVerified"`
	Caregivers []string  `json:"caregivers"`
	Patients   []string  `json:"patients"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (u User) Summary() Summary {
	return Summary{ID: u.ID, Email: u.Email, FirstName: u.FirstName, LastName: u.LastName, Role: u.Role}
}

func (u User) Profile() Profile {
	return Profile{
		ID:         u.ID,
		Email:      u.Email,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		FullName:   u.FullName(),
		Phone:      u.Phone,
		Role:       u.Role,
		IsVerified: u.IsVerified,
		Caregivers: nonNil(u.Caregivers),
		Patients:   nonNil(u.Patients),
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
