package account

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/hengadev/errsx"

	"github.com/hongminglow/medimate-be/internal/apperr"
	"github.com/hongminglow/medimate-be/internal/models"
)

// MinPasswordLength is enforced at intake, before any hashing.
const MinPasswordLength = 8

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^\+?[\d\s-]{10,}$`)
)

func validationError(errs errsx.Map) error {
	if errs.IsEmpty() {
		return nil
	}
	return &apperr.Validation{Fields: errs.AsError()}
}

func validateEmail(errs *errsx.Map, email string) {
	email = strings.TrimSpace(email)
	switch {
	case email == "":
		errs.Set("email", "email is required")
	case !emailPattern.MatchString(email):
		errs.Set("email", "email is not valid")
	}
}

func validateRegister(in RegisterInput) error {
	var errs errsx.Map
	validateEmail(&errs, in.Email)
	if utf8.RuneCountInString(in.Password) < MinPasswordLength {
		errs.Set("password", "password must be at least 8 characters")
	}
	if strings.TrimSpace(in.FirstName) == "" {
		errs.Set("firstName", "first name is required")
	}
	if strings.TrimSpace(in.LastName) == "" {
		errs.Set("lastName", "last name is required")
	}
	if _, ok := models.ParseRole(strings.TrimSpace(in.Role)); !ok {
		errs.Set("role", "role must be one of patient, caregiver, doctor, admin")
	}
	if phone := strings.TrimSpace(in.Phone); phone != "" && !phonePattern.MatchString(phone) {
		errs.Set("phone", "phone number is not valid")
	}
	return validationError(errs)
}

func validateLogin(email, password string) error {
	var errs errsx.Map
	if strings.TrimSpace(email) == "" {
		errs.Set("email", "email is required")
	}
	if password == "" {
		errs.Set("password", "password is required")
	}
	return validationError(errs)
}

func validateResend(email string) error {
	var errs errsx.Map
	validateEmail(&errs, email)
	return validationError(errs)
}

func validateDeviceToken(token string) error {
	var errs errsx.Map
	if strings.TrimSpace(token) == "" {
		errs.Set("token", "device token is required")
	}
	return validationError(errs)
}
