// Package verification issues and checks single-use email verification tokens
// and throttles resend requests per user.
package verification

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/hongminglow/medimate-be/internal/apperr"
	"github.com/hongminglow/medimate-be/internal/fieldcrypt"
	"github.com/hongminglow/medimate-be/internal/mail"
	"github.com/hongminglow/medimate-be/internal/models"
	"github.com/hongminglow/medimate-be/internal/storage"
)

const tokenBytes = 32

// Config controls token lifetime and the resend throttle.
type Config struct {
	TokenTTL       time.Duration
	ResendWindow   time.Duration
	ResendMax      int
	ResendCooldown time.Duration
	FrontendURL    string
}

func (c Config) withDefaults() Config {
	if c.TokenTTL <= 0 {
		c.TokenTTL = 24 * time.Hour
	}
	if c.ResendWindow <= 0 {
		c.ResendWindow = time.Hour
	}
	if c.ResendMax <= 0 {
		c.ResendMax = 6
	}
	if c.ResendCooldown <= 0 {
		c.ResendCooldown = time.Hour
	}
	return c
}

// Workflow owns the verification token lifecycle.
type Workflow struct {
	store  storage.UserStore
	sender mail.Sender
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
	random io.Reader
}

func New(store storage.UserStore, sender mail.Sender, cfg Config, logger *zap.Logger) *Workflow {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Workflow{
		store:  store,
		sender: sender,
		cfg:    cfg.withDefaults(),
		logger: logger,
		now:    time.Now,
		random: rand.Reader,
	}
}

// Issue stamps a fresh token hash and expiry onto user and returns the raw
// token. Nothing is persisted; the caller saves user.
func (w *Workflow) Issue(user *models.User) (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := io.ReadFull(w.random, buf); err != nil {
		return "", fmt.Errorf("generate verification token: %w", err)
	}
	raw := hex.EncodeToString(buf)
	now := w.now().UTC()
	user.VerificationTokenHash = fieldcrypt.SHA256Hex(raw)
	user.VerificationTokenExpires = now.Add(w.cfg.TokenTTL)
	user.LastVerificationSentAt = now
	return raw, nil
}

// Deliver emails the raw token. Failures are reported as apperr.ErrDeliveryFailure
// and leave stored state untouched.
func (w *Workflow) Deliver(ctx context.Context, user models.User, raw string) error {
	msg, err := mail.VerificationEmail(user.Email, user.FirstName, w.cfg.FrontendURL, raw)
	if err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrDeliveryFailure, err)
	}
	if err := w.sender.Send(ctx, msg); err != nil {
		w.logger.Error("verification email not delivered", zap.String("user_id", user.ID), zap.Error(err))
		if errors.Is(err, apperr.ErrDeliveryFailure) {
			return err
		}
		return fmt.Errorf("%w: %w", apperr.ErrDeliveryFailure, err)
	}
	return nil
}

// Verify consumes raw. A second call with the same token fails.
func (w *Workflow) Verify(ctx context.Context, raw string) (models.User, error) {
	if raw == "" {
		return models.User{}, apperr.ErrInvalidOrExpired
	}
	user, err := w.store.ConsumeVerificationToken(ctx, fieldcrypt.SHA256Hex(raw), w.now().UTC())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.User{}, apperr.ErrInvalidOrExpired
		}
		return models.User{}, fmt.Errorf("consume verification token: %w", err)
	}
	return user, nil
}

// Resend rotates the token and emails it again, subject to the sliding window
// throttle. Rejected attempts are still recorded.
func (w *Workflow) Resend(ctx context.Context, email string) error {
	user, err := w.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.ErrUserNotFound
		}
		return fmt.Errorf("find user: %w", err)
	}
	if user.IsVerified {
		return apperr.ErrAlreadyVerified
	}

	now := w.now().UTC()
	resend := storage.ResendState{
		LastSentAt:   now,
		AttemptCount: user.ResendAttemptCount,
		WindowStart:  user.ResendWindowStart,
	}
	if resend.WindowStart.IsZero() || now.Sub(resend.WindowStart) >= w.cfg.ResendWindow {
		resend.AttemptCount = 0
		resend.WindowStart = now
	}
	resend.AttemptCount++

	if resend.AttemptCount > w.cfg.ResendMax {
		if _, err := w.store.RecordResendAttempt(ctx, user.ID, resend); err != nil {
			return pendingErr("record resend attempt", err)
		}
		w.logger.Info("verification resend throttled",
			zap.String("user_id", user.ID),
			zap.Int("attempts", resend.AttemptCount),
		)
		return &apperr.ThrottleError{RetryAfter: w.cfg.ResendCooldown}
	}

	raw, err := w.Issue(&user)
	if err != nil {
		return err
	}
	saved, err := w.store.RotateVerificationToken(ctx, user.ID, storage.VerificationToken{
		Hash:    user.VerificationTokenHash,
		Expires: user.VerificationTokenExpires,
	}, resend)
	if err != nil {
		return pendingErr("rotate verification token", err)
	}
	return w.Deliver(ctx, saved, raw)
}

// pendingErr reports a user verified between the read and the write as
// already verified.
func pendingErr(op string, err error) error {
	if errors.Is(err, storage.ErrNotPending) {
		return apperr.ErrAlreadyVerified
	}
	return fmt.Errorf("%s: %w", op, err)
}
