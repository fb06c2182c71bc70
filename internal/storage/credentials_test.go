package storage_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/hongminglow/medimate-be/internal/fieldcrypt"
	"github.com/hongminglow/medimate-be/internal/models"
	"github.com/hongminglow/medimate-be/internal/storage"
	"github.com/hongminglow/medimate-be/internal/storage/memory"
)

type countingCipher struct {
	inner    *fieldcrypt.Cipher
	encrypts atomic.Int64
}

func (c *countingCipher) Encrypt(p string) (string, error) {
	c.encrypts.Add(1)
	return c.inner.Encrypt(p)
}

func (c *countingCipher) Decrypt(t string) (string, error) { return c.inner.Decrypt(t) }

func newStore(t *testing.T) (*storage.CredentialStore, *memory.Store, *countingCipher) {
	t.Helper()
	fc, err := fieldcrypt.New(bytes.Repeat([]byte{0x11}, fieldcrypt.KeySize))
	require.NoError(t, err)
	cc := &countingCipher{inner: fc}
	backend := memory.New()
	return storage.NewCredentialStore(backend, storage.NewCodec(cc, bcrypt.MinCost)), backend, cc
}

func alice() models.User {
	return models.User{
		Email:     "  Alice@Example.com ",
		Password:  "password123",
		FirstName: " Alice ",
		LastName:  "Doe",
		Phone:     "+1 (555) 123-4567",
	}
}

func TestCreate_EncryptsPIIAndHashesPassword(t *testing.T) {
	store, backend, _ := newStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, alice())
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "alice@example.com", created.Email)
	assert.Equal(t, "Alice", created.FirstName)
	assert.Equal(t, "+15551234567", created.Phone)
	assert.Equal(t, models.RolePatient, created.Role)
	assert.False(t, created.IsVerified)
	assert.True(t, storage.CheckPassword(created.PasswordHash, "password123"))

	rec, err := backend.UserByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, fieldcrypt.HashEmail("alice@example.com"), rec.EmailHash)
	assert.NotContains(t, rec.EmailCiphertext, "alice")
	assert.NotEqual(t, "password123", rec.PasswordHash)
	assert.NotEqual(t, rec.FirstNameCiphertext, rec.LastNameCiphertext)
}

func TestCreate_DuplicateFailsBeforeCrypto(t *testing.T) {
	store, _, cc := newStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, alice())
	require.NoError(t, err)
	before := cc.encrypts.Load()

	dup := alice()
	dup.Email = "ALICE@example.com"
	_, err = store.Create(ctx, dup)
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)
	assert.Equal(t, before, cc.encrypts.Load())
}

func TestCreate_ConcurrentDuplicateLeavesOneRecord(t *testing.T) {
	store, _, _ := newStore(t)
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.Create(ctx, alice())
		}(i)
	}
	wg.Wait()

	var ok, dup int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, storage.ErrAlreadyExists):
			dup++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, dup)
}

func TestFindByEmail_NormalizesInput(t *testing.T) {
	store, _, _ := newStore(t)
	ctx := context.Background()
	created, err := store.Create(ctx, alice())
	require.NoError(t, err)

	got, err := store.FindByEmail(ctx, " ALICE@example.COM")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = store.FindByEmail(ctx, "bob@example.com")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSave_DoesNotRehashLoadedPassword(t *testing.T) {
	store, _, _ := newStore(t)
	ctx := context.Background()
	created, err := store.Create(ctx, alice())
	require.NoError(t, err)

	loaded, err := store.FindByID(ctx, created.ID)
	require.NoError(t, err)
	loaded.FirstName = "Alicia"
	saved, err := store.Save(ctx, loaded)
	require.NoError(t, err)
	assert.Equal(t, created.PasswordHash, saved.PasswordHash)
	assert.Equal(t, "Alicia", saved.FirstName)

	saved.Password = "another-password"
	rehashed, err := store.Save(ctx, saved)
	require.NoError(t, err)
	assert.NotEqual(t, created.PasswordHash, rehashed.PasswordHash)
	assert.True(t, storage.CheckPassword(rehashed.PasswordHash, "another-password"))
}

func TestDecode_TamperedFieldFailsClosed(t *testing.T) {
	store, backend, _ := newStore(t)
	ctx := context.Background()
	created, err := store.Create(ctx, alice())
	require.NoError(t, err)

	rec, err := backend.UserByID(ctx, created.ID)
	require.NoError(t, err)
	raw := []byte(rec.LastNameCiphertext)
	if raw[len(raw)/2] == 'A' {
		raw[len(raw)/2] = 'B'
	} else {
		raw[len(raw)/2] = 'A'
	}
	rec.LastNameCiphertext = string(raw)
	_, err = backend.UpdateUser(ctx, rec)
	require.NoError(t, err)

	_, err = store.FindByID(ctx, created.ID)
	assert.ErrorIs(t, err, fieldcrypt.ErrTamperOrKeyMismatch)
}

func TestConsumeVerificationToken_SingleUse(t *testing.T) {
	store, _, _ := newStore(t)
	ctx := context.Background()
	u := alice()
	u.VerificationTokenHash = fieldcrypt.SHA256Hex("raw")
	u.VerificationTokenExpires = time.Now().Add(time.Hour)
	_, err := store.Create(ctx, u)
	require.NoError(t, err)

	verified, err := store.ConsumeVerificationToken(ctx, fieldcrypt.SHA256Hex("raw"), time.Now())
	require.NoError(t, err)
	assert.True(t, verified.IsVerified)
	assert.Empty(t, verified.VerificationTokenHash)

	_, err = store.ConsumeVerificationToken(ctx, fieldcrypt.SHA256Hex("raw"), time.Now())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeviceTokens_Deduplicated(t *testing.T) {
	store, _, _ := newStore(t)
	ctx := context.Background()
	created, err := store.Create(ctx, alice())
	require.NoError(t, err)

	require.NoError(t, store.AddDeviceToken(ctx, created.ID, "fcm-1"))
	require.NoError(t, store.AddDeviceToken(ctx, created.ID, "fcm-1"))
	require.NoError(t, store.AddDeviceToken(ctx, created.ID, "fcm-2"))
	got, err := store.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"fcm-1", "fcm-2"}, got.DeviceTokens)

	require.NoError(t, store.RemoveDeviceToken(ctx, created.ID, "fcm-1"))
	got, err = store.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"fcm-2"}, got.DeviceTokens)
}

func TestDelete_Idempotent(t *testing.T) {
	store, _, _ := newStore(t)
	ctx := context.Background()
	created, err := store.Create(ctx, alice())
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, created.ID))
	require.NoError(t, store.Delete(ctx, created.ID))
	_, err = store.FindByEmail(ctx, "alice@example.com")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
