package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hongminglow/medimate-be/internal/models"
	"github.com/hongminglow/medimate-be/internal/storage"
)

const userColumns = `id, email_ciphertext, email_hash, password_hash, role,
	first_name_ciphertext, last_name_ciphertext, phone_ciphertext, is_verified,
	verification_token_hash, verification_token_expires, last_verification_sent_at,
	resend_attempt_count, resend_window_start, device_tokens, caregivers, patients,
	created_at, updated_at`

const (
	emailHashExistsQuery = `SELECT EXISTS(SELECT 1 FROM users WHERE email_hash = $1)`

	insertUserQuery = `INSERT INTO users (` + userColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	RETURNING ` + userColumns

	userByEmailHashQuery = `SELECT ` + userColumns + ` FROM users WHERE email_hash = $1`

	userByIDQuery = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	updateUserQuery = `UPDATE users SET
		email_ciphertext = $2, email_hash = $3, password_hash = $4, role = $5,
		first_name_ciphertext = $6, last_name_ciphertext = $7, phone_ciphertext = $8,
		is_verified = $9, verification_token_hash = $10, verification_token_expires = $11,
		last_verification_sent_at = $12, resend_attempt_count = $13, resend_window_start = $14,
		device_tokens = $15, caregivers = $16, patients = $17, updated_at = $18
	WHERE id = $1
	RETURNING ` + userColumns

	deleteUserQuery = `DELETE FROM users WHERE id = $1`

	consumeVerificationQuery = `UPDATE users SET
		is_verified = TRUE, verification_token_hash = NULL, verification_token_expires = NULL, updated_at = $2
	WHERE verification_token_hash = $1 AND verification_token_expires > $2
	RETURNING ` + userColumns

	rotateVerificationQuery = `UPDATE users SET
		verification_token_hash = $2, verification_token_expires = $3,
		last_verification_sent_at = $4, resend_attempt_count = $5, resend_window_start = $6, updated_at = $7
	WHERE id = $1 AND is_verified = FALSE
	RETURNING ` + userColumns

	recordResendAttemptQuery = `UPDATE users SET
		last_verification_sent_at = $2, resend_attempt_count = $3, resend_window_start = $4, updated_at = $5
	WHERE id = $1 AND is_verified = FALSE
	RETURNING ` + userColumns

	addDeviceTokenQuery = `UPDATE users SET
		device_tokens = CASE WHEN $2 = ANY(device_tokens) THEN device_tokens ELSE array_append(device_tokens, $2) END,
		updated_at = NOW()
	WHERE id = $1`

	removeDeviceTokenQuery = `UPDATE users SET device_tokens = array_remove(device_tokens, $2), updated_at = NOW() WHERE id = $1`
)

func (s *Store) EmailHashExists(ctx context.Context, emailHash string) (bool, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, emailHashExistsQuery, emailHash).Scan(&exists); err != nil {
		return false, fmt.Errorf("check email hash: %w", err)
	}
	return exists, nil
}

func (s *Store) InsertUser(ctx context.Context, rec storage.UserRecord) (storage.UserRecord, error) {
	row := s.db.QueryRowContext(ctx, insertUserQuery,
		rec.ID, rec.EmailCiphertext, rec.EmailHash, rec.PasswordHash, string(rec.Role),
		rec.FirstNameCiphertext, rec.LastNameCiphertext, rec.PhoneCiphertext, rec.IsVerified,
		nullString(rec.VerificationTokenHash), nullTime(rec.VerificationTokenExpires), nullTime(rec.LastVerificationSentAt),
		rec.ResendAttemptCount, nullTime(rec.ResendWindowStart),
		pq.Array(nonNil(rec.DeviceTokens)), pq.Array(nonNil(rec.Caregivers)), pq.Array(nonNil(rec.Patients)),
		rec.CreatedAt, rec.UpdatedAt,
	)
	created, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.UserRecord{}, storage.ErrAlreadyExists
		}
		return storage.UserRecord{}, fmt.Errorf("insert user: %w", err)
	}
	return created, nil
}

func (s *Store) UserByEmailHash(ctx context.Context, emailHash string) (storage.UserRecord, error) {
	return scanUser(s.db.QueryRowContext(ctx, userByEmailHashQuery, emailHash))
}

func (s *Store) UserByID(ctx context.Context, id string) (storage.UserRecord, error) {
	return scanUser(s.db.QueryRowContext(ctx, userByIDQuery, id))
}

// UpdateUser writes token, throttle counters and profile in one statement so a
// record is never left half-rotated.
func (s *Store) UpdateUser(ctx context.Context, rec storage.UserRecord) (storage.UserRecord, error) {
	row := s.db.QueryRowContext(ctx, updateUserQuery,
		rec.ID, rec.EmailCiphertext, rec.EmailHash, rec.PasswordHash, string(rec.Role),
		rec.FirstNameCiphertext, rec.LastNameCiphertext, rec.PhoneCiphertext, rec.IsVerified,
		nullString(rec.VerificationTokenHash), nullTime(rec.VerificationTokenExpires), nullTime(rec.LastVerificationSentAt),
		rec.ResendAttemptCount, nullTime(rec.ResendWindowStart),
		pq.Array(nonNil(rec.DeviceTokens)), pq.Array(nonNil(rec.Caregivers)), pq.Array(nonNil(rec.Patients)),
		rec.UpdatedAt,
	)
	updated, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.UserRecord{}, storage.ErrAlreadyExists
		}
		if errors.Is(err, storage.ErrNotFound) {
			return storage.UserRecord{}, err
		}
		return storage.UserRecord{}, fmt.Errorf("update user: %w", err)
	}
	return updated, nil
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, deleteUserQuery, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

func (s *Store) ConsumeVerificationToken(ctx context.Context, tokenHash string, now time.Time) (storage.UserRecord, error) {
	if tokenHash == "" {
		return storage.UserRecord{}, storage.ErrNotFound
	}
	return scanUser(s.db.QueryRowContext(ctx, consumeVerificationQuery, tokenHash, now.UTC()))
}

func (s *Store) RotateVerificationToken(ctx context.Context, id string, tok storage.VerificationToken, resend storage.ResendState, now time.Time) (storage.UserRecord, error) {
	row := s.db.QueryRowContext(ctx, rotateVerificationQuery,
		id, nullString(tok.Hash), nullTime(tok.Expires),
		nullTime(resend.LastSentAt), resend.AttemptCount, nullTime(resend.WindowStart), now.UTC(),
	)
	return pendingResult(scanUser(row))
}

func (s *Store) RecordResendAttempt(ctx context.Context, id string, resend storage.ResendState, now time.Time) (storage.UserRecord, error) {
	row := s.db.QueryRowContext(ctx, recordResendAttemptQuery,
		id, nullTime(resend.LastSentAt), resend.AttemptCount, nullTime(resend.WindowStart), now.UTC(),
	)
	return pendingResult(scanUser(row))
}

// pendingResult maps "no unverified row matched" to ErrNotPending.
func pendingResult(rec storage.UserRecord, err error) (storage.UserRecord, error) {
	switch {
	case err == nil:
		return rec, nil
	case errors.Is(err, storage.ErrNotFound):
		return storage.UserRecord{}, storage.ErrNotPending
	default:
		return storage.UserRecord{}, fmt.Errorf("update verification state: %w", err)
	}
}

func (s *Store) AddDeviceToken(ctx context.Context, id, token string) error {
	return s.execOne(ctx, "add device token", addDeviceTokenQuery, id, token)
}

func (s *Store) RemoveDeviceToken(ctx context.Context, id, token string) error {
	return s.execOne(ctx, "remove device token", removeDeviceTokenQuery, id, token)
}

func (s *Store) execOne(ctx context.Context, op, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanUser(row *sql.Row) (storage.UserRecord, error) {
	var (
		rec                                    storage.UserRecord
		role                                   string
		tokenHash                              sql.NullString
		tokenExpires, lastSent, windowStart    sql.NullTime
		deviceTokens, caregivers, patientsList []string
	)
	err := row.Scan(
		&rec.ID, &rec.EmailCiphertext, &rec.EmailHash, &rec.PasswordHash, &role,
		&rec.FirstNameCiphertext, &rec.LastNameCiphertext, &rec.PhoneCiphertext, &rec.IsVerified,
		&tokenHash, &tokenExpires, &lastSent,
		&rec.ResendAttemptCount, &windowStart,
		pq.Array(&deviceTokens), pq.Array(&caregivers), pq.Array(&patientsList),
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.UserRecord{}, storage.ErrNotFound
		}
		return storage.UserRecord{}, err
	}
	rec.Role = models.Role(role)
	rec.VerificationTokenHash = tokenHash.String
	rec.VerificationTokenExpires = tokenExpires.Time
	rec.LastVerificationSentAt = lastSent.Time
	rec.ResendWindowStart = windowStart.Time
	rec.DeviceTokens = deviceTokens
	rec.Caregivers = caregivers
	rec.Patients = patientsList
	return rec, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
