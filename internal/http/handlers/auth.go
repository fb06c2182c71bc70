package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hongminglow/medimate-be/internal/account"
	"github.com/hongminglow/medimate-be/internal/apperr"
	"github.com/hongminglow/medimate-be/internal/auth"
	"github.com/hongminglow/medimate-be/internal/http/respond"
	"github.com/hongminglow/medimate-be/internal/models"
	"github.com/hongminglow/medimate-be/internal/models/dto"
)

// AccountService is implemented by *account.Service.
type AccountService interface {
	Register(ctx context.Context, in account.RegisterInput) (account.RegisterResult, error)
	Login(ctx context.Context, email, password string) (account.Session, error)
	VerifyEmail(ctx context.Context, rawToken string) (account.Session, error)
	ResendVerification(ctx context.Context, email string) error
	Refresh(ctx context.Context, refreshToken string) (account.Session, error)
	Profile(ctx context.Context, userID string) (models.Profile, error)
	DeleteAccount(ctx context.Context, userID string) error
	AddDeviceToken(ctx context.Context, userID, token string) error
	RemoveDeviceToken(ctx context.Context, userID, token string) error
	Medications(ctx context.Context, caller auth.Identity, patientID string) ([]models.Medication, error)
}

// AuthHandler owns the /auth endpoints.
type AuthHandler struct {
	svc     AccountService
	cookies CookiePolicy
	logger  *zap.Logger
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(svc AccountService, cookies CookiePolicy, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{svc: svc, cookies: cookies, logger: logger}
}

// Routes mounts the auth endpoints. authn guards the endpoints that need an
// access token; resendLimit throttles resend-verification per client.
func (h *AuthHandler) Routes(r chi.Router, authn, resendLimit func(http.Handler) http.Handler) {
	r.Post("/register", h.handleRegister)
	r.Post("/login", h.handleLogin)
	r.Post("/verify-email", h.handleVerifyEmail)
	r.With(resendLimit).Post("/resend-verification", h.handleResendVerification)
	r.Post("/refresh-token", h.handleRefresh)
	r.Post("/logout", h.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(authn)
		r.Get("/me", h.handleMe)
		r.Post("/delete", h.handleDelete)
		r.Post("/device-tokens", h.handleAddDeviceToken)
		r.Delete("/device-tokens", h.handleRemoveDeviceToken)
	})
}

func (h *AuthHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	phone := req.Phone
	if phone == "" {
		phone = req.PhoneNumber
	}
	result, err := h.svc.Register(r.Context(), account.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      req.Role,
		Phone:     phone,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !result.EmailSent {
		respond.JSON(w, http.StatusCreated,
			"Registration successful, but we could not send the verification email. Please request a new one.", nil)
		return
	}
	respond.JSON(w, http.StatusCreated,
		"Registration successful. Please check your email to verify your account.", nil)
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	session, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, apperr.ErrUserNotFound) {
			h.failWithStatus(w, r, err, http.StatusUnauthorized)
			return
		}
		h.fail(w, r, err)
		return
	}
	h.startSession(w, session)
	respond.JSON(w, http.StatusOK, "login successful", dto.SessionResponse{User: session.User})
}

func (h *AuthHandler) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req dto.VerifyEmailRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	if req.Token == "" {
		req.Token = r.URL.Query().Get("token")
	}
	session, err := h.svc.VerifyEmail(r.Context(), req.Token)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.startSession(w, session)
	respond.JSON(w, http.StatusOK, "email verified", dto.SessionResponse{User: session.User})
}

func (h *AuthHandler) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	var req dto.ResendVerificationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.ResendVerification(r.Context(), req.Email); err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, "verification email sent", nil)
}

func (h *AuthHandler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var refresh string
	if c, err := r.Cookie(auth.RefreshCookieName); err == nil {
		refresh = c.Value
	}
	session, err := h.svc.Refresh(r.Context(), refresh)
	if err != nil {
		if errors.Is(err, apperr.ErrUserNotFound) {
			h.failWithStatus(w, r, err, http.StatusUnauthorized)
			return
		}
		h.fail(w, r, err)
		return
	}
	h.cookies.setAccess(w, session.AccessToken)
	respond.JSON(w, http.StatusOK, "token refreshed", dto.SessionResponse{User: session.User})
}

func (h *AuthHandler) handleLogout(w http.ResponseWriter, _ *http.Request) {
	h.cookies.clear(w)
	respond.JSON(w, http.StatusOK, "logged out", nil)
}

func (h *AuthHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())
	profile, err := h.svc.Profile(r.Context(), id.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, "profile", dto.ProfileResponse{User: profile})
}

func (h *AuthHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())
	if err := h.svc.DeleteAccount(r.Context(), id.UserID); err != nil {
		h.fail(w, r, err)
		return
	}
	h.cookies.clear(w)
	respond.JSON(w, http.StatusOK, "account deleted", nil)
}

func (h *AuthHandler) handleAddDeviceToken(w http.ResponseWriter, r *http.Request) {
	h.deviceToken(w, r, h.svc.AddDeviceToken, "device token registered")
}

func (h *AuthHandler) handleRemoveDeviceToken(w http.ResponseWriter, r *http.Request) {
	h.deviceToken(w, r, h.svc.RemoveDeviceToken, "device token removed")
}

func (h *AuthHandler) deviceToken(w http.ResponseWriter, r *http.Request, op func(context.Context, string, string) error, message string) {
	var req dto.DeviceTokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id, _ := auth.IdentityFromContext(r.Context())
	if err := op(r.Context(), id.UserID, req.Token); err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, message, nil)
}

func (h *AuthHandler) startSession(w http.ResponseWriter, session account.Session) {
	h.cookies.setAccess(w, session.AccessToken)
	h.cookies.setRefresh(w, session.RefreshToken)
}
