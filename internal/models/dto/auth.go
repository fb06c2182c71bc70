package dto

import "github.com/hongminglow/medimate-be/internal/models"

type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Role        string `json:"role"`
	Phone       string `json:"phone"`
	PhoneNumber string `json:"phoneNumber"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type VerifyEmailRequest struct {
	Token string `json:"token"`
}

type ResendVerificationRequest struct {
	Email string `json:"email"`
}

type DeviceTokenRequest struct {
	Token string `json:"token"`
}

// SessionResponse carries no tokens; those travel in cookies.
type SessionResponse struct {
	User models.Summary `json:"user"`
}

type ProfileResponse struct {
	User models.Profile `json:"user"`
}
