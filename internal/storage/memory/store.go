// Package memory is an in-process storage backend used by tests and local runs
// without a database. It enforces the same uniqueness rules as Postgres.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hongminglow/medimate-be/internal/models"
	"github.com/hongminglow/medimate-be/internal/storage"
)

var (
	_ storage.UserRecords     = (*Store)(nil)
	_ storage.MedicationStore = (*Store)(nil)
)

// Store keeps users and medications in maps guarded by a single mutex.
type Store struct {
	mu          sync.Mutex
	users       map[string]storage.UserRecord
	byEmailHash map[string]string
	medications map[string]models.Medication
}

func New() *Store {
	return &Store{
		users:       make(map[string]storage.UserRecord),
		byEmailHash: make(map[string]string),
		medications: make(map[string]models.Medication),
	}
}

func clone(rec storage.UserRecord) storage.UserRecord {
	rec.DeviceTokens = slices.Clone(rec.DeviceTokens)
	rec.Caregivers = slices.Clone(rec.Caregivers)
	rec.Patients = slices.Clone(rec.Patients)
	return rec
}

func (s *Store) EmailHashExists(_ context.Context, emailHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.byEmailHash[emailHash]
	return ok, nil
}

func (s *Store) InsertUser(_ context.Context, rec storage.UserRecord) (storage.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmailHash[rec.EmailHash]; ok {
		return storage.UserRecord{}, storage.ErrAlreadyExists
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if _, ok := s.users[rec.ID]; ok {
		return storage.UserRecord{}, storage.ErrAlreadyExists
	}
	rec = clone(rec)
	s.users[rec.ID] = rec
	s.byEmailHash[rec.EmailHash] = rec.ID
	return clone(rec), nil
}

func (s *Store) UserByEmailHash(_ context.Context, emailHash string) (storage.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byEmailHash[emailHash]
	if !ok {
		return storage.UserRecord{}, storage.ErrNotFound
	}
	return clone(s.users[id]), nil
}

func (s *Store) UserByID(_ context.Context, id string) (storage.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[id]
	if !ok {
		return storage.UserRecord{}, storage.ErrNotFound
	}
	return clone(rec), nil
}

func (s *Store) UpdateUser(_ context.Context, rec storage.UserRecord) (storage.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.users[rec.ID]
	if !ok {
		return storage.UserRecord{}, storage.ErrNotFound
	}
	if rec.EmailHash != current.EmailHash {
		if _, taken := s.byEmailHash[rec.EmailHash]; taken {
			return storage.UserRecord{}, storage.ErrAlreadyExists
		}
		delete(s.byEmailHash, current.EmailHash)
		s.byEmailHash[rec.EmailHash] = rec.ID
	}
	rec.CreatedAt = current.CreatedAt
	rec = clone(rec)
	s.users[rec.ID] = rec
	return clone(rec), nil
}

func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.users[id]; ok {
		delete(s.byEmailHash, rec.EmailHash)
		delete(s.users, id)
	}
	return nil
}

func (s *Store) ConsumeVerificationToken(_ context.Context, tokenHash string, now time.Time) (storage.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tokenHash == "" {
		return storage.UserRecord{}, storage.ErrNotFound
	}
	for id, rec := range s.users {
		if rec.VerificationTokenHash != tokenHash || !rec.VerificationTokenExpires.After(now) {
			continue
		}
		rec.IsVerified = true
		rec.VerificationTokenHash = ""
		rec.VerificationTokenExpires = time.Time{}
		rec.UpdatedAt = now.UTC()
		s.users[id] = rec
		return clone(rec), nil
	}
	return storage.UserRecord{}, storage.ErrNotFound
}

func (s *Store) RotateVerificationToken(_ context.Context, id string, tok storage.VerificationToken, resend storage.ResendState, now time.Time) (storage.UserRecord, error) {
	return s.updatePending(id, func(rec *storage.UserRecord) {
		rec.VerificationTokenHash = tok.Hash
		rec.VerificationTokenExpires = tok.Expires
		applyResend(rec, resend, now)
	})
}

func (s *Store) RecordResendAttempt(_ context.Context, id string, resend storage.ResendState, now time.Time) (storage.UserRecord, error) {
	return s.updatePending(id, func(rec *storage.UserRecord) {
		applyResend(rec, resend, now)
	})
}

func (s *Store) updatePending(id string, apply func(*storage.UserRecord)) (storage.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[id]
	if !ok || rec.IsVerified {
		return storage.UserRecord{}, storage.ErrNotPending
	}
	apply(&rec)
	s.users[id] = rec
	return clone(rec), nil
}

func applyResend(rec *storage.UserRecord, resend storage.ResendState, now time.Time) {
	rec.LastVerificationSentAt = resend.LastSentAt
	rec.ResendAttemptCount = resend.AttemptCount
	rec.ResendWindowStart = resend.WindowStart
	rec.UpdatedAt = now.UTC()
}

func (s *Store) AddDeviceToken(_ context.Context, id, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	if !slices.Contains(rec.DeviceTokens, token) {
		rec.DeviceTokens = append(slices.Clone(rec.DeviceTokens), token)
		s.users[id] = rec
	}
	return nil
}

func (s *Store) RemoveDeviceToken(_ context.Context, id, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	rec.DeviceTokens = slices.DeleteFunc(slices.Clone(rec.DeviceTokens), func(t string) bool { return t == token })
	s.users[id] = rec
	return nil
}

// AddMedication seeds a medication row; the medication CRUD surface lives elsewhere.
func (s *Store) AddMedication(m models.Medication) models.Medication {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	s.medications[m.ID] = m
	return m
}

func (s *Store) ListByUser(_ context.Context, userID string) ([]models.Medication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Medication, 0)
	for _, m := range s.medications {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	slices.SortFunc(out, func(a, b models.Medication) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

func (s *Store) DeleteByUser(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, m := range s.medications {
		if m.UserID == userID {
			delete(s.medications, id)
			n++
		}
	}
	return n, nil
}
