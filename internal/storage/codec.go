package storage

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/hongminglow/medimate-be/internal/fieldcrypt"
	"github.com/hongminglow/medimate-be/internal/models"
)

// DefaultBcryptCost is used when the codec is built with a non-positive cost.
const DefaultBcryptCost = 12

// FieldCipher is satisfied by *fieldcrypt.Cipher.
type FieldCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(token string) (string, error)
}

// Codec converts between the decrypted models.User and the persisted UserRecord.
type Codec struct {
	cipher FieldCipher
	cost   int
}

// NewCodec builds a codec around the field cipher.
func NewCodec(cipher FieldCipher, bcryptCost int) *Codec {
	if bcryptCost <= 0 {
		bcryptCost = DefaultBcryptCost
	}
	return &Codec{cipher: cipher, cost: bcryptCost}
}

// NormalizePhone keeps digits and '+'.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(phone) {
		if (r >= '0' && r <= '9') || r == '+' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Encode produces the stored form. A non-empty Password is hashed; an empty
// one keeps user.PasswordHash, so saving a loaded user never re-hashes.
func (c *Codec) Encode(user models.User) (UserRecord, error) {
	email := fieldcrypt.NormalizeEmail(user.Email)
	rec := UserRecord{
		ID:                       user.ID,
		EmailHash:                fieldcrypt.HashEmail(email),
		PasswordHash:             user.PasswordHash,
		Role:                     user.Role,
		IsVerified:               user.IsVerified,
		VerificationTokenHash:    user.VerificationTokenHash,
		VerificationTokenExpires: user.VerificationTokenExpires,
		LastVerificationSentAt:   user.LastVerificationSentAt,
		ResendAttemptCount:       user.ResendAttemptCount,
		ResendWindowStart:        user.ResendWindowStart,
		DeviceTokens:             user.DeviceTokens,
		Caregivers:               user.Caregivers,
		Patients:                 user.Patients,
		CreatedAt:                user.CreatedAt,
		UpdatedAt:                user.UpdatedAt,
	}
	if rec.Role == "" {
		rec.Role = models.RolePatient
	}

	fields := []struct {
		dst   *string
		value string
	}{
		{&rec.EmailCiphertext, email},
		{&rec.FirstNameCiphertext, strings.TrimSpace(user.FirstName)},
		{&rec.LastNameCiphertext, strings.TrimSpace(user.LastName)},
		{&rec.PhoneCiphertext, NormalizePhone(user.Phone)},
	}
	for _, f := range fields {
		token, err := c.cipher.Encrypt(f.value)
		if err != nil {
			return UserRecord{}, fmt.Errorf("encrypt field: %w", err)
		}
		*f.dst = token
	}

	if user.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(user.Password), c.cost)
		if err != nil {
			return UserRecord{}, fmt.Errorf("hash password: %w", err)
		}
		rec.PasswordHash = string(hash)
	}
	if rec.PasswordHash == "" {
		return UserRecord{}, errors.New("encode user: password is required")
	}
	return rec, nil
}

// Decode decrypts a stored record. Tampered fields surface as
// fieldcrypt.ErrTamperOrKeyMismatch.
func (c *Codec) Decode(rec UserRecord) (models.User, error) {
	user := models.User{
		ID:                       rec.ID,
		PasswordHash:             rec.PasswordHash,
		Role:                     rec.Role,
		IsVerified:               rec.IsVerified,
		VerificationTokenHash:    rec.VerificationTokenHash,
		VerificationTokenExpires: rec.VerificationTokenExpires,
		LastVerificationSentAt:   rec.LastVerificationSentAt,
		ResendAttemptCount:       rec.ResendAttemptCount,
		ResendWindowStart:        rec.ResendWindowStart,
		DeviceTokens:             rec.DeviceTokens,
		Caregivers:               rec.Caregivers,
		Patients:                 rec.Patients,
		CreatedAt:                rec.CreatedAt,
		UpdatedAt:                rec.UpdatedAt,
	}
	fields := []struct {
		dst   *string
		token string
		name  string
	}{
		{&user.Email, rec.EmailCiphertext, "email"},
		{&user.FirstName, rec.FirstNameCiphertext, "firstName"},
		{&user.LastName, rec.LastNameCiphertext, "lastName"},
		{&user.Phone, rec.PhoneCiphertext, "phone"},
	}
	for _, f := range fields {
		plain, err := c.cipher.Decrypt(f.token)
		if err != nil {
			return models.User{}, fmt.Errorf("decrypt %s of user %s: %w", f.name, rec.ID, err)
		}
		*f.dst = plain
	}
	return user, nil
}

// CheckPassword reports whether plain matches the stored bcrypt hash.
func CheckPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
