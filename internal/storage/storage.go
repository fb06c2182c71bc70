package storage

import (
	"context"
	"errors"
	"time"

	"github.com/hongminglow/medimate-be/internal/models"
)

// ErrNotFound indicates a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness conflict.
var ErrAlreadyExists = errors.New("record already exists")

// ErrNotPending indicates a verification write found no unverified user with
// the given id.
var ErrNotPending = errors.New("no pending verification")

// VerificationToken is a freshly issued token hash and its expiry.
type VerificationToken struct {
	Hash    string
	Expires time.Time
}

// ResendState is the resend throttle slice of a user record.
type ResendState struct {
	LastSentAt   time.Time
	AttemptCount int
	WindowStart  time.Time
}

// UserRecord is the persisted form of a user. PII fields hold field-cipher
// tokens; EmailHash is the deterministic lookup key.
type UserRecord struct {
	ID                       string
	EmailCiphertext          string
	EmailHash                string
	PasswordHash             string
	Role                     models.Role
	FirstNameCiphertext      string
	LastNameCiphertext       string
	PhoneCiphertext          string
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

// UserRecords is implemented by storage backends. Backends must enforce
// EmailHash uniqueness themselves and report conflicts as ErrAlreadyExists.
type UserRecords interface {
	EmailHashExists(ctx context.Context, emailHash string) (bool, error)
	InsertUser(ctx context.Context, rec UserRecord) (UserRecord, error)
	UserByEmailHash(ctx context.Context, emailHash string) (UserRecord, error)
	UserByID(ctx context.Context, id string) (UserRecord, error)
	UpdateUser(ctx context.Context, rec UserRecord) (UserRecord, error)
	// DeleteUser is idempotent.
	DeleteUser(ctx context.Context, id string) error
	// ConsumeVerificationToken marks the owner of an unexpired token verified
	// and clears the token in one step. ErrNotFound when nothing matched.
	ConsumeVerificationToken(ctx context.Context, tokenHash string, now time.Time) (UserRecord, error)
	// RotateVerificationToken writes only the token and throttle columns of an
	// unverified user. ErrNotPending when the user is verified or gone.
	RotateVerificationToken(ctx context.Context, id string, tok VerificationToken, resend ResendState, now time.Time) (UserRecord, error)
	// RecordResendAttempt writes only the throttle columns of an unverified user.
	RecordResendAttempt(ctx context.Context, id string, resend ResendState, now time.Time) (UserRecord, error)
	AddDeviceToken(ctx context.Context, id, token string) error
	RemoveDeviceToken(ctx context.Context, id, token string) error
}

// MedicationStore is the slice of the medication collaborator the auth core depends on.
type MedicationStore interface {
	ListByUser(ctx context.Context, userID string) ([]models.Medication, error)
	// DeleteByUser is idempotent and returns the number of rows removed.
	DeleteByUser(ctx context.Context, userID string) (int64, error)
}

// UserStore captures persistence operations needed by services, in decrypted form.
type UserStore interface {
	Create(ctx context.Context, user models.User) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByID(ctx context.Context, id string) (models.User, error)
	Save(ctx context.Context, user models.User) (models.User, error)
	Delete(ctx context.Context, id string) error
	ConsumeVerificationToken(ctx context.Context, tokenHash string, now time.Time) (models.User, error)
	RotateVerificationToken(ctx context.Context, id string, tok VerificationToken, resend ResendState) (models.User, error)
	RecordResendAttempt(ctx context.Context, id string, resend ResendState) (models.User, error)
	AddDeviceToken(ctx context.Context, id, token string) error
	RemoveDeviceToken(ctx context.Context, id, token string) error
}
