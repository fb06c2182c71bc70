package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hongminglow/medimate-be/internal/fieldcrypt"
	"github.com/hongminglow/medimate-be/internal/models"
)

// Ensure CredentialStore satisfies the UserStore interface at compile time.
var _ UserStore = (*CredentialStore)(nil)

// CredentialStore applies the codec on top of a UserRecords backend so callers
// only ever see decrypted users.
type CredentialStore struct {
	records UserRecords
	codec   *Codec
	now     func() time.Time
}

// NewCredentialStore wires a backend with the codec.
func NewCredentialStore(records UserRecords, codec *Codec) *CredentialStore {
	return &CredentialStore{records: records, codec: codec, now: time.Now}
}

// Create persists a new user. A taken email is reported as ErrAlreadyExists
// before any encryption or password hashing happens; a concurrent insert that
// loses the race on the unique index is reported the same way.
func (s *CredentialStore) Create(ctx context.Context, user models.User) (models.User, error) {
	emailHash := fieldcrypt.HashEmail(user.Email)
	exists, err := s.records.EmailHashExists(ctx, emailHash)
	if err != nil {
		return models.User{}, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return models.User{}, ErrAlreadyExists
	}

	now := s.now().UTC()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now

	rec, err := s.codec.Encode(user)
	if err != nil {
		return models.User{}, err
	}
	inserted, err := s.records.InsertUser(ctx, rec)
	if err != nil {
		return models.User{}, err
	}
	return s.codec.Decode(inserted)
}

// FindByEmail looks a user up by the hash of the normalized email.
func (s *CredentialStore) FindByEmail(ctx context.Context, email string) (models.User, error) {
	rec, err := s.records.UserByEmailHash(ctx, fieldcrypt.HashEmail(email))
	if err != nil {
		return models.User{}, err
	}
	return s.codec.Decode(rec)
}

// FindByID fetches a user by identifier.
func (s *CredentialStore) FindByID(ctx context.Context, id string) (models.User, error) {
	rec, err := s.records.UserByID(ctx, id)
	if err != nil {
		return models.User{}, err
	}
	return s.codec.Decode(rec)
}

// Save writes every mutable field of an existing user in a single update.
// Verification state changes go through RotateVerificationToken and
// RecordResendAttempt instead, which cannot overwrite a concurrent verify.
func (s *CredentialStore) Save(ctx context.Context, user models.User) (models.User, error) {
	if user.ID == "" {
		return models.User{}, errors.New("save user: missing id")
	}
	user.UpdatedAt = s.now().UTC()
	rec, err := s.codec.Encode(user)
	if err != nil {
		return models.User{}, err
	}
	updated, err := s.records.UpdateUser(ctx, rec)
	if err != nil {
		return models.User{}, err
	}
	return s.codec.Decode(updated)
}

// Delete removes a user. Deleting a missing user is not an error.
func (s *CredentialStore) Delete(ctx context.Context, id string) error {
	return s.records.DeleteUser(ctx, id)
}

// ConsumeVerificationToken verifies the owner of tokenHash if it has not expired.
func (s *CredentialStore) ConsumeVerificationToken(ctx context.Context, tokenHash string, now time.Time) (models.User, error) {
	rec, err := s.records.ConsumeVerificationToken(ctx, tokenHash, now)
	if err != nil {
		return models.User{}, err
	}
	return s.codec.Decode(rec)
}

// RotateVerificationToken installs a new token for a still-unverified user.
func (s *CredentialStore) RotateVerificationToken(ctx context.Context, id string, tok VerificationToken, resend ResendState) (models.User, error) {
	rec, err := s.records.RotateVerificationToken(ctx, id, tok, resend, s.now().UTC())
	if err != nil {
		return models.User{}, err
	}
	return s.codec.Decode(rec)
}

// RecordResendAttempt stores a throttled attempt for a still-unverified user.
func (s *CredentialStore) RecordResendAttempt(ctx context.Context, id string, resend ResendState) (models.User, error) {
	rec, err := s.records.RecordResendAttempt(ctx, id, resend, s.now().UTC())
	if err != nil {
		return models.User{}, err
	}
	return s.codec.Decode(rec)
}

func (s *CredentialStore) AddDeviceToken(ctx context.Context, id, token string) error {
	return s.records.AddDeviceToken(ctx, id, token)
}

func (s *CredentialStore) RemoveDeviceToken(ctx context.Context, id, token string) error {
	return s.records.RemoveDeviceToken(ctx, id, token)
}
