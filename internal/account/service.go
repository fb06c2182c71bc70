// Package account orchestrates the session flows: register, login, email
// verification, refresh, profile and account deletion.
package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hongminglow/medimate-be/internal/apperr"
	"github.com/hongminglow/medimate-be/internal/auth"
	"github.com/hongminglow/medimate-be/internal/models"
	"github.com/hongminglow/medimate-be/internal/storage"
	"github.com/hongminglow/medimate-be/internal/verification"
)

// Config toggles product decisions that are not settled yet.
type Config struct {
	// GenericLoginErrors reports unknown email and wrong password both as
	// apperr.ErrInvalidCredentials.
	GenericLoginErrors bool
}

// Service is the auth session controller.
type Service struct {
	users    storage.UserStore
	meds     storage.MedicationStore
	tokens   *auth.TokenManager
	verifier *verification.Workflow
	cfg      Config
	logger   *zap.Logger
}

func NewService(
	users storage.UserStore,
	meds storage.MedicationStore,
	tokens *auth.TokenManager,
	verifier *verification.Workflow,
	cfg Config,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{users: users, meds: meds, tokens: tokens, verifier: verifier, cfg: cfg, logger: logger}
}

type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      string
	Phone     string
}

// RegisterResult never carries tokens. EmailSent is false when the user was
// created but the verification email could not be delivered.
type RegisterResult struct {
	User      models.Summary
	EmailSent bool
}

// Session is the credential material for a signed-in user. RefreshToken is
// empty when only the access token was reissued.
type Session struct {
	User         models.Summary
	AccessToken  string
	RefreshToken string
}

// Register creates an unverified user and sends the verification email.
func (s *Service) Register(ctx context.Context, in RegisterInput) (RegisterResult, error) {
	if err := validateRegister(in); err != nil {
		return RegisterResult{}, err
	}
	role, _ := models.ParseRole(strings.TrimSpace(in.Role))

	user := models.User{
		Email:     in.Email,
		Password:  in.Password,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Phone:     in.Phone,
		Role:      role,
	}
	raw, err := s.verifier.Issue(&user)
	if err != nil {
		return RegisterResult{}, err
	}

	created, err := s.users.Create(ctx, user)
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return RegisterResult{}, apperr.ErrDuplicateEmail
		}
		return RegisterResult{}, fmt.Errorf("create user: %w", err)
	}
	s.logger.Info("user registered", zap.String("user_id", created.ID), zap.String("role", string(created.Role)))

	result := RegisterResult{User: created.Summary(), EmailSent: true}
	if err := s.verifier.Deliver(ctx, created, raw); err != nil {
		result.EmailSent = false
	}
	return result, nil
}

// Login checks existence, then password, then verification status, in that order.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	if err := validateLogin(email, password); err != nil {
		return Session{}, err
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Session{}, s.credentialsError(apperr.ErrUserNotFound)
		}
		return Session{}, fmt.Errorf("find user: %w", err)
	}
	if !storage.CheckPassword(user.PasswordHash, password) {
		return Session{}, s.credentialsError(apperr.ErrIncorrectPassword)
	}
	if !user.IsVerified {
		return Session{}, apperr.ErrEmailNotVerified
	}
	return s.newSession(user)
}

func (s *Service) credentialsError(specific error) error {
	if s.cfg.GenericLoginErrors {
		return apperr.ErrInvalidCredentials
	}
	return specific
}

// VerifyEmail consumes the token and signs the user in.
func (s *Service) VerifyEmail(ctx context.Context, rawToken string) (Session, error) {
	user, err := s.verifier.Verify(ctx, strings.TrimSpace(rawToken))
	if err != nil {
		return Session{}, err
	}
	s.logger.Info("email verified", zap.String("user_id", user.ID))
	return s.newSession(user)
}

// ResendVerification rotates and re-sends the verification token.
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	if err := validateResend(email); err != nil {
		return err
	}
	return s.verifier.Resend(ctx, email)
}

// Refresh issues a new access token. The refresh token itself is not rotated.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	if refreshToken == "" {
		return Session{}, apperr.ErrInvalidRefreshToken
	}
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return Session{}, apperr.ErrInvalidRefreshToken
	}
	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Session{}, apperr.ErrUserNotFound
		}
		return Session{}, fmt.Errorf("find user: %w", err)
	}
	access, err := s.tokens.IssueAccess(user.ID, user.Role)
	if err != nil {
		return Session{}, fmt.Errorf("issue access token: %w", err)
	}
	return Session{User: user.Summary(), AccessToken: access}, nil
}

// Profile returns the non-sensitive view of the user.
func (s *Service) Profile(ctx context.Context, userID string) (models.Profile, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.Profile{}, apperr.ErrUserNotFound
		}
		return models.Profile{}, fmt.Errorf("find user: %w", err)
	}
	return user.Profile(), nil
}

// DeleteAccount removes the user's medications and then the user. There is no
// rollback: both steps are idempotent, so a failed call can be retried.
func (s *Service) DeleteAccount(ctx context.Context, userID string) error {
	removed, err := s.meds.DeleteByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("delete medications: %w", err)
	}
	if err := s.users.Delete(ctx, userID); err != nil {
		return fmt.Errorf("delete user after removing %d medications: %w", removed, err)
	}
	s.logger.Info("account deleted", zap.String("user_id", userID), zap.Int64("medications", removed))
	return nil
}

func (s *Service) AddDeviceToken(ctx context.Context, userID, token string) error {
	if err := validateDeviceToken(token); err != nil {
		return err
	}
	return s.deviceTokenResult(s.users.AddDeviceToken(ctx, userID, strings.TrimSpace(token)))
}

func (s *Service) RemoveDeviceToken(ctx context.Context, userID, token string) error {
	if err := validateDeviceToken(token); err != nil {
		return err
	}
	return s.deviceTokenResult(s.users.RemoveDeviceToken(ctx, userID, strings.TrimSpace(token)))
}

func (s *Service) deviceTokenResult(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.ErrUserNotFound
	}
	return err
}

// Medications lists the medications of patientID as seen by the caller.
// Patients only ever see their own; other roles may name a patient.
func (s *Service) Medications(ctx context.Context, caller auth.Identity, patientID string) ([]models.Medication, error) {
	target := caller.UserID
	if caller.Role != models.RolePatient && patientID != "" {
		target = patientID
	}
	return s.meds.ListByUser(ctx, target)
}

func (s *Service) newSession(user models.User) (Session, error) {
	access, err := s.tokens.IssueAccess(user.ID, user.Role)
	if err != nil {
		return Session{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.tokens.IssueRefresh(user.ID)
	if err != nil {
		return Session{}, fmt.Errorf("issue refresh token: %w", err)
	}
	return Session{User: user.Summary(), AccessToken: access, RefreshToken: refresh}, nil
}
