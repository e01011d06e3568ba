package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/nullpass/nullpass/internal/dto"
	"github.com/nullpass/nullpass/internal/models"
	"github.com/nullpass/nullpass/internal/repository"
	"github.com/nullpass/nullpass/internal/totp"
)

const (
	bcryptCost        = 10
	minPasswordLength = 8
)

// SubscriptionCanceller ends a billing subscription at the provider.
type SubscriptionCanceller interface {
	Enabled() bool
	CancelSubscription(ctx context.Context, id string) error
}

type AuthService struct {
	users        UserStore
	sessions     *SessionService
	entitlements *EntitlementService
	tokens       TokenIssuer
	totp         *totp.Verifier
	audit        *AuditService
	billing      SubscriptionCanceller
}

func NewAuthService(
	users UserStore,
	sessions *SessionService,
	entitlements *EntitlementService,
	tokens TokenIssuer,
	verifier *totp.Verifier,
	audit *AuditService,
	billing SubscriptionCanceller,
) *AuthService {
	return &AuthService{
		users:        users,
		sessions:     sessions,
		entitlements: entitlements,
		tokens:       tokens,
		totp:         verifier,
		audit:        audit,
		billing:      billing,
	}
}

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return invalid("Invalid email address")
	}
	return nil
}

func (s *AuthService) Register(ctx context.Context, req *dto.RegisterRequest, ip string) (*dto.AuthResponse, error) {
	if err := validateEmail(req.Email); err != nil {
		return nil, err
	}
	if len(req.Password) < minPasswordLength {
		return nil, invalid("Password must be at least 8 characters")
	}

	_, err := s.users.GetByEmail(ctx, req.Email)
	if err == nil {
		return nil, ErrEmailTaken
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	hashed := string(hash)

	user := &models.User{
		ID:           uuid.New(),
		Email:        req.Email,
		PasswordHash: &hashed,
		DisplayName:  req.DisplayName,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	issued, err := s.sessions.Create(ctx, user, ip)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, user.ID, models.AuditUserRegister, map[string]any{"email": user.Email, "ip": ip})

	slog.InfoContext(ctx, "user registered", "user_id", user.ID)
	return &dto.AuthResponse{User: dto.NewUserResponse(user), Token: issued.Token}, nil
}

// Login checks the password, then the second factor, then reconciles the
// session for the caller's IP.
func (s *AuthService) Login(ctx context.Context, req *dto.LoginRequest, ip string) (*dto.LoginResponse, error) {
	user, err := s.users.GetByEmail(ctx, req.Email)
	if errors.Is(err, repository.ErrNotFound) {
		slog.WarnContext(ctx, "login failed", "reason", "unknown email")
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !user.CanPasswordLogin() {
		slog.WarnContext(ctx, "login failed", "reason", "no password", "user_id", user.ID)
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(req.Password)); err != nil {
		slog.WarnContext(ctx, "login failed", "reason", "bad password", "user_id", user.ID)
		return nil, ErrInvalidCredentials
	}
	if user.Disabled {
		return nil, ErrAccountDisabled
	}

	if user.TwoFactorEnabled {
		if req.VerificationCode == "" {
			pending, err := s.tokens.Issue(user.ID.String(), user.Email)
			if err != nil {
				return nil, fmt.Errorf("issue token: %w", err)
			}
			return &dto.LoginResponse{
				User:         dto.NewUserResponse(user),
				Requires2FA:  true,
				PendingToken: pending,
				Message:      "2FA verification required",
			}, nil
		}
		if !user.HasTwoFactorSecret() {
			slog.ErrorContext(ctx, "2FA enabled without secret", "user_id", user.ID)
			return nil, ErrTwoFactorMisconfigured
		}
		if !s.totp.Verify(*user.TwoFactorSecret, req.VerificationCode) {
			return nil, ErrInvalidTwoFactorCode
		}
	}

	issued, err := s.sessions.Reconcile(ctx, user, ip, user.TwoFactorEnabled && req.VerificationCode != "")
	if err != nil {
		return nil, err
	}

	services, err := s.entitlements.List(ctx, user.ID, "")
	if err != nil {
		return nil, err
	}

	return &dto.LoginResponse{
		User:     dto.NewUserResponse(user),
		Token:    issued.Token,
		Services: services,
	}, nil
}

// Me returns the user with every entitlement attached.
func (s *AuthService) Me(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.users.GetWithEntitlements(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// GetUserInternal is Me for trusted service-to-service callers.
func (s *AuthService) GetUserInternal(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return s.Me(ctx, userID)
}

// VerifyToken checks a token's signature and expiry only. It does not consult
// the session table.
func (s *AuthService) VerifyToken(raw string) (*dto.VerifyTokenResponse, error) {
	payload, ok := s.tokens.Verify(raw)
	if !ok {
		return nil, ErrInvalidToken
	}
	return &dto.VerifyTokenResponse{Valid: true, Payload: payload}, nil
}

func (s *AuthService) ToggleTwoFactor(ctx context.Context, userID uuid.UUID, req *dto.TwoFactorRequest) (*dto.TwoFactorResponse, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.Enable {
		if req.VerificationCode == "" || req.Secret == "" {
			enrollment, err := s.totp.GenerateSecret(user.Email)
			if err != nil {
				return nil, fmt.Errorf("generate 2FA secret: %w", err)
			}
			return &dto.TwoFactorResponse{
				Message:        "Scan the QR code with your authenticator app",
				QRCode:         enrollment.QRCode,
				Secret:         enrollment.Secret,
				ManualEntryKey: enrollment.Secret,
			}, nil
		}
		if !s.totp.Verify(req.Secret, req.VerificationCode) {
			return nil, ErrInvalidVerification
		}
		if err := s.users.Update(ctx, userID, map[string]any{
			"two_factor_enabled": true,
			"two_factor_secret":  req.Secret,
		}); err != nil {
			return nil, fmt.Errorf("enable 2FA: %w", err)
		}
		s.audit.Record(ctx, userID, models.AuditTwoFactorEnable, nil)
		enabled := true
		return &dto.TwoFactorResponse{Message: "2FA enabled successfully", TwoFactorEnabled: &enabled}, nil
	}

	if req.VerificationCode == "" {
		return nil, ErrDisableCodeRequired
	}
	if !user.TwoFactorEnabled || !user.HasTwoFactorSecret() {
		return nil, ErrTwoFactorNotEnabled
	}
	if !s.totp.Verify(*user.TwoFactorSecret, req.VerificationCode) {
		return nil, ErrInvalidVerification
	}
	if err := s.users.Update(ctx, userID, map[string]any{
		"two_factor_enabled": false,
		"two_factor_secret":  nil,
	}); err != nil {
		return nil, fmt.Errorf("disable 2FA: %w", err)
	}
	s.audit.Record(ctx, userID, models.AuditTwoFactorDisable, nil)
	disabled := false
	return &dto.TwoFactorResponse{Message: "2FA disabled successfully", TwoFactorEnabled: &disabled}, nil
}

func (s *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, req *dto.ChangePasswordRequest) error {
	if req.CurrentPassword == "" {
		return invalid("Current password is required")
	}
	if len(req.NewPassword) < minPasswordLength {
		return invalid("New password must be at least 8 characters")
	}

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if !user.CanPasswordLogin() {
		return ErrUserNotFound
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return ErrInvalidCurrentPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.users.Update(ctx, userID, map[string]any{"password_hash": string(hash)}); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	s.audit.Record(ctx, userID, models.AuditPasswordChange, nil)
	return nil
}

// DisableAccount blocks future logins and ends every session.
func (s *AuthService) DisableAccount(ctx context.Context, userID uuid.UUID, req *dto.AccountRequest) error {
	user, err := s.confirmAccount(ctx, userID, req)
	if err != nil {
		return err
	}

	s.cancelSubscriptions(ctx, userID)
	if err := s.users.Update(ctx, userID, map[string]any{"disabled": true}); err != nil {
		return fmt.Errorf("disable account: %w", err)
	}
	if _, err := s.sessions.RevokeAll(ctx, userID); err != nil {
		return err
	}
	s.audit.Record(ctx, userID, models.AuditUserDisable, map[string]any{"email": user.Email})
	return nil
}

// DeleteAccount removes the user. Sessions, entitlements and the audit trail
// go with it.
func (s *AuthService) DeleteAccount(ctx context.Context, userID uuid.UUID, req *dto.AccountRequest) error {
	user, err := s.confirmAccount(ctx, userID, req)
	if err != nil {
		return err
	}

	s.cancelSubscriptions(ctx, userID)
	s.audit.Record(ctx, userID, models.AuditUserDelete, map[string]any{"email": user.Email})
	if err := s.users.Delete(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("delete user: %w", err)
	}
	slog.InfoContext(ctx, "user deleted", "user_id", userID)
	return nil
}

func (s *AuthService) confirmAccount(ctx context.Context, userID uuid.UUID, req *dto.AccountRequest) (*models.User, error) {
	if req.Password == "" {
		return nil, invalid("Password is required")
	}
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.CanPasswordLogin() {
		return nil, ErrUserNotFound
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidPassword
	}
	if user.TwoFactorEnabled {
		if req.VerificationCode == "" {
			return nil, ErrTwoFactorCodeRequired
		}
		if !user.HasTwoFactorSecret() {
			return nil, ErrTwoFactorSecretMissing
		}
		if !s.totp.Verify(*user.TwoFactorSecret, req.VerificationCode) {
			return nil, ErrInvalidTwoFactorCode
		}
	}
	return user, nil
}

func (s *AuthService) cancelSubscriptions(ctx context.Context, userID uuid.UUID) {
	if s.billing == nil || !s.billing.Enabled() {
		return
	}
	list, err := s.entitlements.List(ctx, userID, "")
	if err != nil {
		slog.WarnContext(ctx, "list entitlements for cancellation failed", "user_id", userID, "error", err)
		return
	}
	for _, e := range list {
		if e.PolarSubscriptionID == nil || *e.PolarSubscriptionID == "" {
			continue
		}
		if err := s.billing.CancelSubscription(ctx, *e.PolarSubscriptionID); err != nil {
			slog.WarnContext(ctx, "subscription cancellation failed",
				"user_id", userID, "service", e.Service, "subscription_id", *e.PolarSubscriptionID, "error", err)
		}
	}
}

func (s *AuthService) loadUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}
