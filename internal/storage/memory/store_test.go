package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/medimate-be/internal/models"
	"github.com/hongminglow/medimate-be/internal/storage"
)

func TestInsertUser_UniqueEmailHash(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.InsertUser(ctx, storage.UserRecord{ID: "a", EmailHash: "h1"})
	require.NoError(t, err)
	_, err = s.InsertUser(ctx, storage.UserRecord{ID: "b", EmailHash: "h1"})
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)

	exists, err := s.EmailHashExists(ctx, "h1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestUpdateUser_EmailChangeKeepsIndex(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, err := s.InsertUser(ctx, storage.UserRecord{ID: "a", EmailHash: "h1"})
	require.NoError(t, err)
	_, err = s.InsertUser(ctx, storage.UserRecord{ID: "b", EmailHash: "h2"})
	require.NoError(t, err)

	_, err = s.UpdateUser(ctx, storage.UserRecord{ID: "a", EmailHash: "h2"})
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)

	_, err = s.UpdateUser(ctx, storage.UserRecord{ID: "a", EmailHash: "h3"})
	require.NoError(t, err)
	_, err = s.UserByEmailHash(ctx, "h1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	got, err := s.UserByEmailHash(ctx, "h3")
	require.NoError(t, err)
	assert.Equal(t, "a", got.ID)

	_, err = s.UpdateUser(ctx, storage.UserRecord{ID: "missing", EmailHash: "h9"})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestConsumeVerificationToken_Expired(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()
	_, err := s.InsertUser(ctx, storage.UserRecord{
		ID:                       "a",
		EmailHash:                "h1",
		VerificationTokenHash:    "tok",
		VerificationTokenExpires: now.Add(-time.Second),
	})
	require.NoError(t, err)

	_, err = s.ConsumeVerificationToken(ctx, "tok", now)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	rec, err := s.UserByID(ctx, "a")
	require.NoError(t, err)
	assert.False(t, rec.IsVerified)
}

func TestReturnedRecordsDoNotAlias(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, err := s.InsertUser(ctx, storage.UserRecord{ID: "a", EmailHash: "h1", DeviceTokens: []string{"x"}})
	require.NoError(t, err)

	got, err := s.UserByID(ctx, "a")
	require.NoError(t, err)
	got.DeviceTokens[0] = "mutated"

	again, err := s.UserByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, again.DeviceTokens)
}

func TestMedications_ListAndDeleteByUser(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.AddMedication(models.Medication{UserID: "a", DrugName: "Metformin"})
	s.AddMedication(models.Medication{UserID: "a", DrugName: "Lisinopril"})
	s.AddMedication(models.Medication{UserID: "b", DrugName: "Aspirin"})

	meds, err := s.ListByUser(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, meds, 2)

	n, err := s.DeleteByUser(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = s.DeleteByUser(ctx, "a")
	require.NoError(t, err)
	assert.Zero(t, n)

	meds, err = s.ListByUser(ctx, "b")
	require.NoError(t, err)
	assert.Len(t, meds, 1)
}

func TestVerificationWrites_OnlyTouchPendingUsers(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now().UTC()
	_, err := s.InsertUser(ctx, storage.UserRecord{ID: "a", EmailHash: "h1", DeviceTokens: []string{"fcm-1"}})
	require.NoError(t, err)

	resend := storage.ResendState{LastSentAt: now, AttemptCount: 2, WindowStart: now.Add(-time.Minute)}
	rec, err := s.RotateVerificationToken(ctx, "a", storage.VerificationToken{Hash: "tok", Expires: now.Add(time.Hour)}, resend, now)
	require.NoError(t, err)
	assert.Equal(t, "tok", rec.VerificationTokenHash)
	assert.Equal(t, 2, rec.ResendAttemptCount)
	assert.Equal(t, []string{"fcm-1"}, rec.DeviceTokens)

	resend.AttemptCount = 3
	rec, err = s.RecordResendAttempt(ctx, "a", resend, now)
	require.NoError(t, err)
	assert.Equal(t, "tok", rec.VerificationTokenHash)
	assert.Equal(t, 3, rec.ResendAttemptCount)

	_, err = s.ConsumeVerificationToken(ctx, "tok", now)
	require.NoError(t, err)

	_, err = s.RotateVerificationToken(ctx, "a", storage.VerificationToken{Hash: "tok-2", Expires: now.Add(time.Hour)}, resend, now)
	assert.ErrorIs(t, err, storage.ErrNotPending)
	_, err = s.RecordResendAttempt(ctx, "a", resend, now)
	assert.ErrorIs(t, err, storage.ErrNotPending)
	_, err = s.RecordResendAttempt(ctx, "missing", resend, now)
	assert.ErrorIs(t, err, storage.ErrNotPending)

	stored, err := s.UserByID(ctx, "a")
	require.NoError(t, err)
	assert.True(t, stored.IsVerified)
	assert.Empty(t, stored.VerificationTokenHash)
}
